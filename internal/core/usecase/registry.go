package usecase

import (
	"context"
	"fmt"
	"sort"

	"github.com/kirillkom/filings-assistant/internal/core/domain"
	"github.com/kirillkom/filings-assistant/internal/core/ports"
)

// Operation names dispatched through the registry.
const (
	OpRetrievalHybrid = "retrieval.hybrid"
	OpRetrievalDense  = "retrieval.dense"
	OpQueryAnswer     = "query.answer"
)

// Operation is a named engine entry point with a typed input and result,
// invoked through the registry instead of being bound at call sites.
type Operation struct {
	Name        string
	Description string
	Run         func(ctx context.Context, req domain.RetrievalRequest) (any, error)
}

// Registry maps operation names to their typed handlers. It is the explicit
// dispatch table standing in for runtime-registered tool callables.
type Registry struct {
	operations map[string]Operation
}

func NewRegistry(retriever ports.RetrievalService, answers ports.QueryAnswerService) *Registry {
	r := &Registry{operations: make(map[string]Operation)}
	r.register(Operation{
		Name:        OpRetrievalHybrid,
		Description: "Full hybrid retrieval pipeline over the filings corpus.",
		Run: func(ctx context.Context, req domain.RetrievalRequest) (any, error) {
			return retriever.Retrieve(ctx, req)
		},
	})
	r.register(Operation{
		Name:        OpRetrievalDense,
		Description: "Dense-only vector retrieval, no sparse/graph signals.",
		Run: func(ctx context.Context, req domain.RetrievalRequest) (any, error) {
			return retriever.RetrieveDense(ctx, req)
		},
	})
	if answers != nil {
		r.register(Operation{
			Name:        OpQueryAnswer,
			Description: "Retrieval plus grounded answer synthesis with citations.",
			Run: func(ctx context.Context, req domain.RetrievalRequest) (any, error) {
				return answers.Answer(ctx, req)
			},
		})
	}
	return r
}

func (r *Registry) register(op Operation) {
	r.operations[op.Name] = op
}

// Invoke dispatches one named operation. Unknown names are an input error,
// not an internal one.
func (r *Registry) Invoke(ctx context.Context, name string, req domain.RetrievalRequest) (any, error) {
	op, ok := r.operations[name]
	if !ok {
		return nil, domain.WrapError(domain.ErrInvalidInput, "invoke operation", fmt.Errorf("unknown operation %q", name))
	}
	return op.Run(ctx, req)
}

// Names lists registered operations in stable order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.operations))
	for name := range r.operations {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
