package usecase

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/kirillkom/filings-assistant/internal/core/domain"
	"github.com/kirillkom/filings-assistant/internal/core/ports"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakePlanner struct {
	analysis domain.QueryAnalysis
	err      error
	calls    int
}

func (f *fakePlanner) Analyze(context.Context, string) (domain.QueryAnalysis, error) {
	f.calls++
	return f.analysis, f.err
}

type fakeEmbedder struct {
	err error
}

func (f *fakeEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	vectors := make([][]float32, len(texts))
	for i := range texts {
		vectors[i] = []float32{float32(len(texts[i])), 1}
	}
	return vectors, nil
}

func (f *fakeEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	vectors, err := f.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// fakeVectorSearcher serves the same lists for every call. The mutex matters:
// variant searches run concurrently.
type fakeVectorSearcher struct {
	mu        sync.Mutex
	dense     []domain.Candidate
	denseErr  error
	sparse    []domain.Candidate
	sparseErr error
	// denseErrOnce fails only the first dense call, for partial-failure cases.
	denseErrOnce error

	denseCalls  int
	sparseCalls int
}

func (f *fakeVectorSearcher) Search(context.Context, []float32, int, domain.SearchFilter) ([]domain.Candidate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.denseCalls++
	if f.denseErrOnce != nil && f.denseCalls == 1 {
		return nil, f.denseErrOnce
	}
	return f.dense, f.denseErr
}

func (f *fakeVectorSearcher) SearchHybrid(context.Context, []float32, ports.SparseVector, int, domain.SearchFilter) ([]domain.Candidate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sparseCalls++
	return f.sparse, f.sparseErr
}

type fakeSparseEncoder struct{}

func (fakeSparseEncoder) Encode(text string) ports.SparseVector {
	if strings.TrimSpace(text) == "" {
		return ports.SparseVector{}
	}
	return ports.SparseVector{Indices: []uint32{1}, Values: []float32{1}}
}

type fakeGraphStore struct {
	entities    []ports.GraphEntity
	entitiesErr error
	refs        []domain.GraphDocumentRef
	refsErr     error

	gotHops    int
	lookups    int
	searchedAt []string
}

func (f *fakeGraphStore) FindDocumentsMentioning(_ context.Context, _ string, hops int) ([]domain.GraphDocumentRef, error) {
	f.lookups++
	f.gotHops = hops
	return f.refs, f.refsErr
}

func (f *fakeGraphStore) EntitySearch(_ context.Context, term string) ([]ports.GraphEntity, error) {
	f.searchedAt = append(f.searchedAt, term)
	return f.entities, f.entitiesErr
}

func (f *fakeGraphStore) Verify(context.Context) error { return nil }

func (f *fakeGraphStore) Close(context.Context) error { return nil }

// fakeJudge scores by candidate id, missing ids fail.
type fakeJudge struct {
	scores map[string]int
	err    error
	calls  int
}

func (f *fakeJudge) Judge(_ context.Context, _ string, passage string) (int, error) {
	f.calls++
	if f.err != nil {
		return 0, f.err
	}
	for id, score := range f.scores {
		if strings.Contains(passage, id) {
			return score, nil
		}
	}
	return 0, fmt.Errorf("no score for passage %q", passage)
}

type fakeCompressor struct {
	sentences map[string][]string
	err       error
	calls     int
}

func (f *fakeCompressor) Compress(_ context.Context, _ string, passage string) ([]string, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	for key, result := range f.sentences {
		if strings.Contains(passage, key) {
			return result, nil
		}
	}
	return nil, nil
}

type fakeParentStore struct {
	texts map[string]string
	err   error
	got   []string
}

func (f *fakeParentStore) GetParentTexts(_ context.Context, parentIDs []string) (map[string]string, error) {
	f.got = append(f.got, parentIDs...)
	if f.err != nil {
		return nil, f.err
	}
	return f.texts, nil
}

type fakePublisher struct {
	events []domain.RetrievalEvent
	err    error
}

func (f *fakePublisher) PublishRetrievalCompleted(_ context.Context, event domain.RetrievalEvent) error {
	f.events = append(f.events, event)
	return f.err
}

type fakeGenerator struct {
	text string
	err  error
}

func (f *fakeGenerator) GenerateAnswer(context.Context, string, []domain.FusedCandidate) (string, error) {
	return f.text, f.err
}

func fused(id, parentID string, score float64, sources ...string) domain.FusedCandidate {
	return domain.FusedCandidate{
		Candidate: domain.Candidate{ID: id, ParentID: parentID},
		RRFScore:  score,
		Sources:   sources,
	}
}
