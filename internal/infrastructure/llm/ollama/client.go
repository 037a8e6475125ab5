package ollama

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/kirillkom/filings-assistant/internal/core/domain"
	"github.com/kirillkom/filings-assistant/internal/infrastructure/resilience"
)

type Client struct {
	baseURL    string
	genModel   string
	embedModel string
	httpClient *http.Client
	executor   *resilience.Executor
}

func New(baseURL, genModel, embedModel string, executor *resilience.Executor) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		genModel:   genModel,
		embedModel: embedModel,
		httpClient: &http.Client{Timeout: 120 * time.Second},
		executor:   executor,
	}
}

type Embedder struct {
	client *Client
}

func NewEmbedder(client *Client) *Embedder {
	return &Embedder{client: client}
}

func (e *Embedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	request := map[string]any{
		"model": e.client.embedModel,
		"input": texts,
	}

	var response struct {
		Embeddings [][]float32 `json:"embeddings"`
	}
	if err := e.client.postJSON(ctx, "/api/embed", request, &response, "embed"); err != nil {
		return nil, err
	}
	return response.Embeddings, nil
}

func (e *Embedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("embed query: empty embedding result")
	}
	return vectors[0], nil
}

// Planner expands a query into alternate phrasings and classifies graph
// traversal complexity in a single model call.
type Planner struct {
	client *Client
}

func NewPlanner(client *Client) *Planner {
	return &Planner{client: client}
}

func (p *Planner) Analyze(ctx context.Context, query string) (domain.QueryAnalysis, error) {
	respText, err := p.client.generateJSON(ctx, buildAnalysisPrompt(query))
	if err != nil {
		return domain.QueryAnalysis{}, err
	}

	var parsed struct {
		Variants     []string `json:"variants"`
		KGComplexity string   `json:"kg_complexity"`
	}
	if err := json.Unmarshal([]byte(extractJSONObject(respText)), &parsed); err != nil {
		return domain.QueryAnalysis{}, fmt.Errorf("parse analysis response: %w", err)
	}

	complexity := domain.KGSimple
	if strings.EqualFold(strings.TrimSpace(parsed.KGComplexity), string(domain.KGComplex)) {
		complexity = domain.KGComplex
	}
	return domain.QueryAnalysis{
		Variants:     parsed.Variants,
		KGComplexity: complexity,
	}, nil
}

// Judge scores one query/passage pair on the 1-10 relevance scale.
type Judge struct {
	client *Client
}

func NewJudge(client *Client) *Judge {
	return &Judge{client: client}
}

func (j *Judge) Judge(ctx context.Context, query, passage string) (int, error) {
	respText, err := j.client.generateJSON(ctx, buildJudgePrompt(query, passage))
	if err != nil {
		return 0, err
	}

	var parsed struct {
		Score int `json:"score"`
	}
	if err := json.Unmarshal([]byte(extractJSONObject(respText)), &parsed); err != nil {
		return 0, fmt.Errorf("parse judge response: %w", err)
	}
	if parsed.Score < 1 || parsed.Score > 10 {
		return 0, fmt.Errorf("judge score %d out of range", parsed.Score)
	}
	return parsed.Score, nil
}

// Compressor extracts only the query-relevant sentences of a passage.
type Compressor struct {
	client *Client
}

func NewCompressor(client *Client) *Compressor {
	return &Compressor{client: client}
}

func (c *Compressor) Compress(ctx context.Context, query, passage string) ([]string, error) {
	respText, err := c.client.generateJSON(ctx, buildCompressionPrompt(query, passage))
	if err != nil {
		return nil, err
	}

	var parsed struct {
		RelevantSentences []string `json:"relevant_sentences"`
	}
	if err := json.Unmarshal([]byte(extractJSONObject(respText)), &parsed); err != nil {
		return nil, fmt.Errorf("parse compression response: %w", err)
	}

	sentences := make([]string, 0, len(parsed.RelevantSentences))
	for _, sentence := range parsed.RelevantSentences {
		sentence = strings.TrimSpace(sentence)
		if sentence != "" {
			sentences = append(sentences, sentence)
		}
	}
	return sentences, nil
}

type Generator struct {
	client *Client
}

func NewGenerator(client *Client) *Generator {
	return &Generator{client: client}
}

func (g *Generator) GenerateAnswer(ctx context.Context, question string, candidates []domain.FusedCandidate) (string, error) {
	return g.client.generateText(ctx, buildAnswerPrompt(question, candidates))
}

func (c *Client) generateJSON(ctx context.Context, prompt string) (string, error) {
	return c.generate(ctx, map[string]any{
		"model":  c.genModel,
		"prompt": prompt,
		"stream": false,
		"format": "json",
	})
}

func (c *Client) generateText(ctx context.Context, prompt string) (string, error) {
	return c.generate(ctx, map[string]any{
		"model":  c.genModel,
		"prompt": prompt,
		"stream": false,
	})
}

func (c *Client) generate(ctx context.Context, reqBody map[string]any) (string, error) {
	var response struct {
		Response string `json:"response"`
	}
	if err := c.postJSON(ctx, "/api/generate", reqBody, &response, "generate"); err != nil {
		return "", err
	}
	return strings.TrimSpace(response.Response), nil
}

// Models that wrap JSON in prose or code fences are common enough that we
// strip down to the outermost object before unmarshalling.
func extractJSONObject(raw string) string {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start >= 0 && end > start {
		return raw[start : end+1]
	}
	return raw
}
