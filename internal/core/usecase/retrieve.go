package usecase

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/filings-assistant/internal/core/domain"
	"github.com/kirillkom/filings-assistant/internal/core/ports"
)

// RetrieverConfig tunes the hybrid pipeline. Zero values fall back to the
// defaults below.
type RetrieverConfig struct {
	TopK             int
	RRFK             int
	DedupeMargin     int
	DenseTimeout     time.Duration
	HybridTimeout    time.Duration
	OutOfCorpusScore int
	KGBoostFactor    float64
}

func (c RetrieverConfig) normalize() RetrieverConfig {
	if c.TopK <= 0 {
		c.TopK = 5
	}
	if c.RRFK <= 0 {
		c.RRFK = 60
	}
	if c.DedupeMargin <= 0 {
		c.DedupeMargin = 3
	}
	if c.DenseTimeout <= 0 {
		c.DenseTimeout = 20 * time.Second
	}
	if c.HybridTimeout <= 0 {
		c.HybridTimeout = 45 * time.Second
	}
	if c.OutOfCorpusScore <= 0 {
		c.OutOfCorpusScore = 3
	}
	if c.KGBoostFactor <= 1 {
		c.KGBoostFactor = defaultKGBoostFactor
	}
	return c
}

// HybridRetriever sequences query analysis, per-variant dense/sparse fanout,
// graph lookup, rank fusion, KG boost, parent dedup, rerank and compression
// into one budgeted pipeline. Only the dense signal can abort it.
type HybridRetriever struct {
	embedder   ports.Embedder
	vectors    ports.VectorSearcher
	sparse     ports.SparseEncoder
	analyzer   *QueryAnalyzer
	graph      *GraphLookup
	judge      ports.RelevanceJudge
	compressor ports.PassageCompressor
	parents    ports.ParentStore
	events     ports.EventPublisher
	logger     *slog.Logger
	cfg        RetrieverConfig
}

func NewHybridRetriever(
	embedder ports.Embedder,
	vectors ports.VectorSearcher,
	sparse ports.SparseEncoder,
	analyzer *QueryAnalyzer,
	graph *GraphLookup,
	judge ports.RelevanceJudge,
	compressor ports.PassageCompressor,
	parents ports.ParentStore,
	events ports.EventPublisher,
	logger *slog.Logger,
	cfg RetrieverConfig,
) *HybridRetriever {
	if logger == nil {
		logger = slog.Default()
	}
	return &HybridRetriever{
		embedder:   embedder,
		vectors:    vectors,
		sparse:     sparse,
		analyzer:   analyzer,
		graph:      graph,
		judge:      judge,
		compressor: compressor,
		parents:    parents,
		events:     events,
		logger:     logger,
		cfg:        cfg.normalize(),
	}
}

type variantSearch struct {
	dense     []domain.Candidate
	denseErr  error
	sparse    []domain.Candidate
	sparseErr error
}

// Retrieve runs the full hybrid pipeline. When the hybrid configuration is
// absent it transparently falls back to dense-only retrieval and records a
// fallback notice naming the reason.
func (r *HybridRetriever) Retrieve(ctx context.Context, req domain.RetrievalRequest) (*domain.RetrievalResult, error) {
	query, err := ValidateQuery(req.Query)
	if err != nil {
		return nil, err
	}
	req.Query = query

	if reason := r.hybridUnavailable(); reason != "" {
		result, err := r.RetrieveDense(ctx, req)
		if err != nil {
			return nil, err
		}
		result.FallbackNotice = fmt.Sprintf("Hybrid retrieval unavailable (%s), fell back to dense-only search.", reason)
		return result, nil
	}

	started := time.Now()
	ctx, cancel := context.WithTimeout(ctx, r.cfg.HybridTimeout)
	defer cancel()

	result, err := r.retrieveHybrid(ctx, req)
	if err != nil {
		return nil, r.shapeError(ctx, err)
	}

	r.publishEvent(ctx, req, result, time.Since(started))
	return result, nil
}

// RetrieveDense is the reduced entry point used when hybrid search is not
// configured or as the transparent fallback path.
func (r *HybridRetriever) RetrieveDense(ctx context.Context, req domain.RetrievalRequest) (*domain.RetrievalResult, error) {
	query, err := ValidateQuery(req.Query)
	if err != nil {
		return nil, err
	}
	req.Query = query

	started := time.Now()
	ctx, cancel := context.WithTimeout(ctx, r.cfg.DenseTimeout)
	defer cancel()

	topK := r.topK(req)
	fetch := topK * r.cfg.DedupeMargin

	vector, err := r.embedder.EmbedQuery(ctx, req.Query)
	if err != nil {
		return nil, r.shapeError(ctx, domain.WrapError(domain.ErrDenseSearch, "embed query", err))
	}

	candidates, err := r.vectors.Search(ctx, vector, fetch, req.Filter)
	if err != nil {
		return nil, r.shapeError(ctx, domain.WrapError(domain.ErrDenseSearch, "dense search", err))
	}

	fused := fuseRRF([]RankedList{{Source: domain.SignalDense, Candidates: candidates}}, r.cfg.RRFK)
	fused = dedupeByParent(fused)
	fused = trimCandidates(fused, topK)
	r.hydrateParents(ctx, fused)

	result := &domain.RetrievalResult{
		Candidates:       fused,
		RetrievalSources: []string{domain.SignalDense},
		Mode:             domain.ModeDense,
	}
	r.publishEvent(ctx, req, result, time.Since(started))
	return result, nil
}

func (r *HybridRetriever) retrieveHybrid(ctx context.Context, req domain.RetrievalRequest) (*domain.RetrievalResult, error) {
	topK := r.topK(req)
	fetch := topK * r.cfg.DedupeMargin

	// Stage: analyzing. Failure inside degrades to a single variant.
	analysis := r.analyzer.Analyze(ctx, req.Query)

	// Stage: retrieving. Graph lookup runs concurrently with the variant
	// fanout, once for the original query.
	var (
		evidence     domain.GraphEvidence
		graphOutcome domain.StageOutcome
		graphDone    = make(chan struct{})
	)
	go func() {
		defer close(graphDone)
		evidence, graphOutcome = r.graph.Lookup(ctx, req.Query, analysis.Use2Hop)
	}()

	searches, err := r.searchVariants(ctx, analysis.Variants, fetch, req.Filter)
	if err != nil {
		return nil, err
	}

	lists := make([]RankedList, 0, 2*len(searches))
	denseOK := false
	sparseOK := false
	sparseFailed := false
	for i, search := range searches {
		if search.denseErr == nil {
			denseOK = true
			lists = append(lists, RankedList{Source: domain.SignalDense, Candidates: search.dense})
		} else {
			r.logger.Warn("dense_variant_degraded", "variant", i, "error", search.denseErr)
		}
		if search.sparseErr == nil {
			sparseOK = true
			lists = append(lists, RankedList{Source: domain.SignalSparse, Candidates: search.sparse})
		} else {
			sparseFailed = true
		}
	}
	if !denseOK {
		return nil, domain.WrapError(domain.ErrDenseSearch, "hybrid retrieval", firstDenseError(searches))
	}

	<-graphDone

	// Stages: fusing, boosting, deduping.
	fused := fuseRRF(lists, r.cfg.RRFK)
	fused = applyKGBoost(fused, evidence, r.cfg.KGBoostFactor)
	fused = dedupeByParent(fused)
	fused = trimCandidates(fused, fetch)
	r.hydrateParents(ctx, fused)

	// Stages: reranking, compressing. Both are fault tolerant per item, but
	// a budget expiry inside either aborts the whole pipeline: partial
	// results must never masquerade as a completed retrieval.
	fused, rerankOutcome := rerankCandidates(ctx, r.judge, r.logger, req.Query, fused, topK)
	if rerankOutcome.Status == domain.StageFatal {
		return nil, rerankOutcome.Err
	}
	fused, compressOutcome := compressCandidates(ctx, r.compressor, r.logger, req.Query, fused)
	if compressOutcome.Status == domain.StageFatal {
		return nil, compressOutcome.Err
	}

	result := &domain.RetrievalResult{
		Candidates: fused,
		Mode:       domain.ModeHybrid,
	}
	result.RetrievalSources = append(result.RetrievalSources, domain.SignalDense)
	if sparseOK {
		result.RetrievalSources = append(result.RetrievalSources, domain.SignalSparse)
	}
	if sparseFailed && !sparseOK {
		result.FailedSources = append(result.FailedSources, domain.SignalSparse)
	}
	r.recordOutcome(result, graphOutcome)
	r.recordOutcome(result, rerankOutcome)
	r.recordOutcome(result, compressOutcome)

	result.OutOfCorpus = r.isOutOfCorpus(fused, rerankOutcome, compressOutcome)
	return result, nil
}

func (r *HybridRetriever) searchVariants(ctx context.Context, variants []string, fetch int, filter domain.SearchFilter) ([]variantSearch, error) {
	vectors, err := r.embedder.Embed(ctx, variants)
	if err != nil {
		return nil, domain.WrapError(domain.ErrDenseSearch, "embed query variants", err)
	}
	if len(vectors) != len(variants) {
		return nil, domain.WrapError(domain.ErrDenseSearch, "embed query variants",
			fmt.Errorf("expected %d vectors, got %d", len(variants), len(vectors)))
	}

	searches := make([]variantSearch, len(variants))
	var wg sync.WaitGroup
	for i := range variants {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			searches[i].dense, searches[i].denseErr = r.vectors.Search(ctx, vectors[i], fetch, filter)

			sparse := r.sparse.Encode(variants[i])
			if len(sparse.Indices) == 0 {
				searches[i].sparseErr = fmt.Errorf("empty sparse vector")
				return
			}
			searches[i].sparse, searches[i].sparseErr = r.vectors.SearchHybrid(ctx, vectors[i], sparse, fetch, filter)
		}(i)
	}
	wg.Wait()
	return searches, nil
}

func (r *HybridRetriever) hydrateParents(ctx context.Context, candidates []domain.FusedCandidate) {
	if r.parents == nil || len(candidates) == 0 {
		return
	}
	parentIDs := make([]string, 0, len(candidates))
	for _, candidate := range candidates {
		if candidate.ParentID != "" && candidate.ParentText == "" {
			parentIDs = append(parentIDs, candidate.ParentID)
		}
	}
	if len(parentIDs) == 0 {
		return
	}

	texts, err := r.parents.GetParentTexts(ctx, parentIDs)
	if err != nil {
		r.logger.Warn("parent_hydration_degraded", "error", err)
		return
	}
	for i := range candidates {
		if candidates[i].ParentText == "" {
			candidates[i].ParentText = texts[candidates[i].ParentID]
		}
	}
}

func (r *HybridRetriever) recordOutcome(result *domain.RetrievalResult, outcome domain.StageOutcome) {
	if outcome.Succeeded() {
		result.RetrievalSources = append(result.RetrievalSources, outcome.Signal)
		return
	}
	result.FailedSources = append(result.FailedSources, outcome.Signal)
}

// isOutOfCorpus flags results where the judge found every candidate weak
// and compression found nothing relevant anywhere: the corpus likely has no
// answer, whatever the raw candidate count says.
func (r *HybridRetriever) isOutOfCorpus(candidates []domain.FusedCandidate, rerank, compress domain.StageOutcome) bool {
	if !rerank.Succeeded() || !compress.Succeeded() || len(candidates) == 0 {
		return false
	}
	top := 0
	for _, candidate := range candidates {
		if candidate.RelevanceScore > top {
			top = candidate.RelevanceScore
		}
	}
	return top > 0 && top < r.cfg.OutOfCorpusScore && allCompressionSkipped(candidates)
}

func (r *HybridRetriever) hybridUnavailable() string {
	switch {
	case r.sparse == nil:
		return "sparse encoder not configured"
	case r.analyzer == nil:
		return "query analyzer not configured"
	default:
		return ""
	}
}

func (r *HybridRetriever) topK(req domain.RetrievalRequest) int {
	if req.TopK > 0 {
		return req.TopK
	}
	return r.cfg.TopK
}

// shapeError converts a mid-pipeline deadline hit into the user-facing
// timeout category instead of leaking the raw cause.
func (r *HybridRetriever) shapeError(ctx context.Context, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return domain.WrapError(domain.ErrTimeout, "retrieval pipeline", err)
	}
	return err
}

func (r *HybridRetriever) publishEvent(ctx context.Context, req domain.RetrievalRequest, result *domain.RetrievalResult, elapsed time.Duration) {
	if r.events == nil {
		return
	}
	requestID := uuid.NewString()
	event := domain.RetrievalEvent{
		RequestID:      requestID,
		Mode:           result.Mode,
		QueryHash:      hashQuery(req.Query),
		Candidates:     len(result.Candidates),
		Sources:        result.RetrievalSources,
		FailedSources:  result.FailedSources,
		OutOfCorpus:    result.OutOfCorpus,
		DurationMillis: elapsed.Milliseconds(),
		OccurredAt:     time.Now().UTC(),
	}

	publishCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer cancel()
	if err := r.events.PublishRetrievalCompleted(publishCtx, event); err != nil {
		r.logger.Warn("retrieval_event_publish_failed", "request_id", requestID, "error", err)
	}
}

func firstDenseError(searches []variantSearch) error {
	for _, search := range searches {
		if search.denseErr != nil {
			return search.denseErr
		}
	}
	return fmt.Errorf("dense search returned no results for any variant")
}

func hashQuery(query string) string {
	sum := sha256.Sum256([]byte(query))
	return hex.EncodeToString(sum[:8])
}
