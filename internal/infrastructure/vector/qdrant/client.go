package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/kirillkom/filings-assistant/internal/core/domain"
	"github.com/kirillkom/filings-assistant/internal/core/ports"
)

const sparseVectorName = "keywords"

// Client queries the child-chunk collection over the Qdrant HTTP API.
// Upserts belong to the ingestion worker, retrieval only reads.
type Client struct {
	baseURL    string
	collection string
	httpClient *http.Client
}

func New(baseURL, collection string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		collection: collection,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// Search is the required dense signal: cosine nearest neighbors with an
// optional metadata filter.
func (c *Client) Search(
	ctx context.Context,
	queryVector []float32,
	limit int,
	filter domain.SearchFilter,
) ([]domain.Candidate, error) {
	reqBody := map[string]any{
		"vector":       queryVector,
		"limit":        limit,
		"with_payload": true,
	}
	if conditions := filterConditions(filter); len(conditions) > 0 {
		reqBody["filter"] = map[string]any{"must": conditions}
	}

	var searchResp struct {
		Result []scoredPoint `json:"result"`
	}
	if err := c.postJSON(ctx, "/points/search", reqBody, &searchResp, "dense search"); err != nil {
		return nil, err
	}
	return pointsToCandidates(searchResp.Result), nil
}

// SearchHybrid runs the dense and sparse keyword vectors through the query
// API with server-side prefetch. Optional signal: callers treat an error
// here as a per-variant degradation.
func (c *Client) SearchHybrid(
	ctx context.Context,
	queryVector []float32,
	sparse ports.SparseVector,
	limit int,
	filter domain.SearchFilter,
) ([]domain.Candidate, error) {
	prefetch := []map[string]any{
		{
			"query": queryVector,
			"limit": limit,
		},
		{
			"query": map[string]any{
				"indices": sparse.Indices,
				"values":  sparse.Values,
			},
			"using": sparseVectorName,
			"limit": limit,
		},
	}

	reqBody := map[string]any{
		"prefetch":     prefetch,
		"query":        map[string]any{"fusion": "rrf"},
		"limit":        limit,
		"with_payload": true,
	}
	if conditions := filterConditions(filter); len(conditions) > 0 {
		reqBody["filter"] = map[string]any{"must": conditions}
	}

	var queryResp struct {
		Result struct {
			Points []scoredPoint `json:"points"`
		} `json:"result"`
	}
	if err := c.postJSON(ctx, "/points/query", reqBody, &queryResp, "hybrid search"); err != nil {
		return nil, err
	}
	return pointsToCandidates(queryResp.Result.Points), nil
}

type scoredPoint struct {
	ID      any            `json:"id"`
	Score   float64        `json:"score"`
	Payload map[string]any `json:"payload"`
}

func pointsToCandidates(points []scoredPoint) []domain.Candidate {
	out := make([]domain.Candidate, 0, len(points))
	for _, point := range points {
		candidate := domain.Candidate{
			ID:           getStringPayload(point.Payload, "chunk_id"),
			ParentID:     getStringPayload(point.Payload, "parent_id"),
			ChildText:    getStringPayload(point.Payload, "child_text"),
			ChildTextRaw: getStringPayload(point.Payload, "child_text_raw"),
			Score:        point.Score,
			Metadata: domain.ChunkMetadata{
				Ticker:     getStringPayload(point.Payload, "ticker"),
				DocType:    getStringPayload(point.Payload, "doc_type"),
				Section:    getStringPayload(point.Payload, "section"),
				FiscalYear: getIntPayload(point.Payload, "fiscal_year"),
				PageStart:  getIntPayload(point.Payload, "page_start"),
				PageEnd:    getIntPayload(point.Payload, "page_end"),
				SourceName: getStringPayload(point.Payload, "source_name"),
				Headline:   getStringPayload(point.Payload, "headline"),
				DocumentID: getStringPayload(point.Payload, "document_id"),
			},
		}
		if candidate.ID == "" {
			candidate.ID = fmt.Sprintf("%v", point.ID)
		}
		if candidate.ChildTextRaw == "" {
			candidate.ChildTextRaw = candidate.ChildText
		}
		out = append(out, candidate)
	}
	return out
}

func filterConditions(filter domain.SearchFilter) []map[string]any {
	conditions := make([]map[string]any, 0, 4)
	match := func(key string, value any) {
		conditions = append(conditions, map[string]any{
			"key":   key,
			"match": map[string]any{"value": value},
		})
	}
	if filter.Ticker != "" {
		match("ticker", filter.Ticker)
	}
	if filter.DocType != "" {
		match("doc_type", filter.DocType)
	}
	if filter.Section != "" {
		match("section", filter.Section)
	}
	if filter.FiscalYear > 0 {
		match("fiscal_year", filter.FiscalYear)
	}
	return conditions
}

func (c *Client) postJSON(ctx context.Context, path string, payload any, out any, operation string) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s body: %w", operation, err)
	}

	url := fmt.Sprintf("%s/collections/%s%s", c.baseURL, c.collection, path)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create %s request: %w", operation, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.WrapError(domain.ErrConnectivity, "qdrant "+operation, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		if msg := strings.TrimSpace(string(respBody)); msg != "" {
			return fmt.Errorf("qdrant %s status: %s: %s", operation, resp.Status, msg)
		}
		return fmt.Errorf("qdrant %s status: %s", operation, resp.Status)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", operation, err)
	}
	return nil
}

func getStringPayload(payload map[string]any, key string) string {
	v, ok := payload[key]
	if !ok {
		return ""
	}
	s, ok := v.(string)
	if ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}

func getIntPayload(payload map[string]any, key string) int {
	v, ok := payload[key]
	if !ok {
		return 0
	}
	switch n := v.(type) {
	case float64:
		return int(n)
	case int:
		return n
	default:
		return 0
	}
}
