package httpadapter

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/kirillkom/filings-assistant/internal/core/domain"
	"github.com/kirillkom/filings-assistant/internal/core/ports"
	"github.com/kirillkom/filings-assistant/internal/core/usecase"
	"github.com/kirillkom/filings-assistant/internal/observability/metrics"
)

const serviceName = "api"

type HealthChecker interface {
	BreakerStates() map[string]string
}

type Router struct {
	retriever ports.RetrievalService
	answers   ports.QueryAnswerService
	ops       *usecase.Registry
	metrics   *metrics.HTTPServerMetrics
	health    HealthChecker

	rateLimitRPS   float64
	rateLimitBurst int
	maxInFlight    int
}

type RouterOptions struct {
	RateLimitRPS   float64
	RateLimitBurst int
	MaxInFlight    int
}

func NewRouter(
	retriever ports.RetrievalService,
	answers ports.QueryAnswerService,
	ops *usecase.Registry,
	serverMetrics *metrics.HTTPServerMetrics,
	health HealthChecker,
	options RouterOptions,
) *Router {
	return &Router{
		retriever:      retriever,
		answers:        answers,
		ops:            ops,
		metrics:        serverMetrics,
		health:         health,
		rateLimitRPS:   options.RateLimitRPS,
		rateLimitBurst: options.RateLimitBurst,
		maxInFlight:    options.MaxInFlight,
	}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", rt.healthz)
	mux.HandleFunc("/v1/retrieve", rt.retrieve)
	mux.HandleFunc("/v1/query", rt.query)
	mux.HandleFunc("/v1/operations", rt.listOperations)
	mux.HandleFunc("/v1/operations/", rt.invokeOperation)
	if rt.metrics != nil {
		mux.Handle("/metrics", rt.metrics.Handler())
	}

	var handler http.Handler = mux
	if rt.maxInFlight > 0 {
		handler = backpressureMiddleware(handler, rt.maxInFlight, 100*time.Millisecond)
	}
	if rt.rateLimitRPS > 0 {
		handler = rateLimitMiddleware(handler, rt.rateLimitRPS, rt.rateLimitBurst)
	}
	if rt.metrics != nil {
		handler = rt.metrics.Middleware(serviceName, handler)
	}
	return requestIDMiddleware(accessLogMiddleware(handler))
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	payload := map[string]any{"status": "ok"}
	if rt.health != nil {
		if states := rt.health.BreakerStates(); len(states) > 0 {
			payload["breakers"] = states
		}
	}
	writeJSON(w, http.StatusOK, payload)
}

type retrieveRequest struct {
	Query  string        `json:"query"`
	TopK   int           `json:"top_k"`
	Filter filterRequest `json:"filter"`
}

type filterRequest struct {
	Ticker     string `json:"ticker"`
	DocType    string `json:"doc_type"`
	Section    string `json:"section"`
	FiscalYear int    `json:"fiscal_year"`
}

func (f filterRequest) toDomain() domain.SearchFilter {
	return domain.SearchFilter{
		Ticker:     f.Ticker,
		DocType:    f.DocType,
		Section:    f.Section,
		FiscalYear: f.FiscalYear,
	}
}

func (rt *Router) retrieve(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeRetrievalRequest(w, r)
	if !ok {
		return
	}

	start := time.Now()
	result, err := rt.retriever.Retrieve(r.Context(), req)
	if err != nil {
		rt.recordRetrieval(string(domain.ModeHybrid), "error", 0, time.Since(start))
		writeError(w, err)
		return
	}

	rt.recordRetrieval(string(result.Mode), "ok", len(result.Candidates), time.Since(start))
	rt.recordResultSignals(result)
	writeJSON(w, http.StatusOK, result)
}

func (rt *Router) query(w http.ResponseWriter, r *http.Request) {
	if rt.answers == nil {
		writeJSON(w, http.StatusNotImplemented, map[string]string{"error": "answer synthesis is not configured"})
		return
	}
	req, ok := decodeRetrievalRequest(w, r)
	if !ok {
		return
	}

	answer, err := rt.answers.Answer(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, answer)
}

func (rt *Router) listOperations(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"operations": rt.ops.Names()})
}

func (rt *Router) invokeOperation(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimPrefix(r.URL.Path, "/v1/operations/")
	if name == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "operation name is required"})
		return
	}
	req, ok := decodeRetrievalRequest(w, r)
	if !ok {
		return
	}

	result, err := rt.ops.Invoke(r.Context(), name, req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func decodeRetrievalRequest(w http.ResponseWriter, r *http.Request) (domain.RetrievalRequest, bool) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return domain.RetrievalRequest{}, false
	}

	var req retrieveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return domain.RetrievalRequest{}, false
	}
	if strings.TrimSpace(req.Query) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "query is required"})
		return domain.RetrievalRequest{}, false
	}

	return domain.RetrievalRequest{
		Query:  req.Query,
		TopK:   req.TopK,
		Filter: req.Filter.toDomain(),
	}, true
}

func (rt *Router) recordRetrieval(mode, status string, candidates int, duration time.Duration) {
	if rt.metrics == nil {
		return
	}
	rt.metrics.RecordRetrieval(serviceName, mode, status, candidates, duration)
}

func (rt *Router) recordResultSignals(result *domain.RetrievalResult) {
	if rt.metrics == nil {
		return
	}
	for _, source := range result.FailedSources {
		rt.metrics.RecordDegradedSource(serviceName, source)
	}
	if result.OutOfCorpus {
		rt.metrics.RecordOutOfCorpus(serviceName)
	}
	if result.FallbackNotice != "" {
		rt.metrics.RecordDenseFallback(serviceName)
	}
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": domain.UserMessage(err)})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
