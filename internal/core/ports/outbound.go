package ports

import (
	"context"

	"github.com/kirillkom/filings-assistant/internal/core/domain"
)

// Embedder builds vectors for query text.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// SparseVector is the keyword-hash encoding handed to hybrid search.
type SparseVector struct {
	Indices []uint32
	Values  []float32
}

// SparseEncoder deterministically encodes text into a sparse keyword
// vector. Implementations must be pure: equal text yields equal vectors.
type SparseEncoder interface {
	Encode(text string) SparseVector
}

// GraphEntity is a canonical entity resolved from fuzzy query text.
type GraphEntity struct {
	Name string
	Type string
}

// VectorSearcher performs nearest-neighbor lookups against the child-chunk
// index. Search is the required dense signal; SearchHybrid additionally
// matches the sparse keyword vector and is optional.
type VectorSearcher interface {
	Search(ctx context.Context, queryVector []float32, limit int, filter domain.SearchFilter) ([]domain.Candidate, error)
	SearchHybrid(ctx context.Context, queryVector []float32, sparse SparseVector, limit int, filter domain.SearchFilter) ([]domain.Candidate, error)
}

// GraphStore answers entity-centric document lookups. Implementations must
// distinguish an unreachable/paused database from a plain query error via
// domain.ErrGraphPaused / domain.ErrConnectivity.
type GraphStore interface {
	FindDocumentsMentioning(ctx context.Context, entity string, hops int) ([]domain.GraphDocumentRef, error)
	EntitySearch(ctx context.Context, fuzzy string) ([]GraphEntity, error)
	// Verify health-checks a cached connection before reuse.
	Verify(ctx context.Context) error
	Close(ctx context.Context) error
}

// QueryPlanner produces query variants and the KG traversal classification
// in one model call.
type QueryPlanner interface {
	Analyze(ctx context.Context, query string) (domain.QueryAnalysis, error)
}

// RelevanceJudge scores one (query, passage) pair 1-10.
type RelevanceJudge interface {
	Judge(ctx context.Context, query, passage string) (int, error)
}

// PassageCompressor extracts only the query-relevant sentences of a passage.
// An empty result with nil error means nothing in the passage is relevant.
type PassageCompressor interface {
	Compress(ctx context.Context, query, passage string) ([]string, error)
}

// ParentStore hydrates parent passage text for deduplicated candidates.
type ParentStore interface {
	GetParentTexts(ctx context.Context, parentIDs []string) (map[string]string, error)
}

// AnswerGenerator creates the final user-facing answer text.
type AnswerGenerator interface {
	GenerateAnswer(ctx context.Context, question string, candidates []domain.FusedCandidate) (string, error)
}

// EventPublisher emits retrieval telemetry events for downstream
// collaborators. Publish failures must never affect the response.
type EventPublisher interface {
	PublishRetrievalCompleted(ctx context.Context, event domain.RetrievalEvent) error
}
