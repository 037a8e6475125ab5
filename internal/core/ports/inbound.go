package ports

import (
	"context"

	"github.com/kirillkom/filings-assistant/internal/core/domain"
)

// RetrievalService is the inbound contract for passage retrieval.
type RetrievalService interface {
	Retrieve(ctx context.Context, req domain.RetrievalRequest) (*domain.RetrievalResult, error)
	RetrieveDense(ctx context.Context, req domain.RetrievalRequest) (*domain.RetrievalResult, error)
}

// QueryAnswerService is the inbound contract for retrieval plus answer
// synthesis.
type QueryAnswerService interface {
	Answer(ctx context.Context, req domain.RetrievalRequest) (*domain.Answer, error)
}
