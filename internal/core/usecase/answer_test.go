package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/kirillkom/filings-assistant/internal/core/domain"
)

type fakeRetrievalService struct {
	result   *domain.RetrievalResult
	err      error
	denseHit int
	gotReq   domain.RetrievalRequest
}

func (f *fakeRetrievalService) Retrieve(_ context.Context, req domain.RetrievalRequest) (*domain.RetrievalResult, error) {
	f.gotReq = req
	return f.result, f.err
}

func (f *fakeRetrievalService) RetrieveDense(_ context.Context, req domain.RetrievalRequest) (*domain.RetrievalResult, error) {
	f.denseHit++
	f.gotReq = req
	return f.result, f.err
}

type countingGenerator struct {
	fakeGenerator
	calls int
}

func (g *countingGenerator) GenerateAnswer(ctx context.Context, question string, candidates []domain.FusedCandidate) (string, error) {
	g.calls++
	return g.fakeGenerator.GenerateAnswer(ctx, question, candidates)
}

func answerCandidate(id string, score int) domain.FusedCandidate {
	c := fused(id, "p-"+id, 0.03, domain.SignalDense)
	c.Metadata = domain.ChunkMetadata{Ticker: "AAPL", DocType: "10-K", FiscalYear: 2023, Section: "Item 7", PageStart: 41}
	c.RelevanceScore = score
	return c
}

func TestAnswerBuildsCitations(t *testing.T) {
	retriever := &fakeRetrievalService{result: &domain.RetrievalResult{
		Candidates: []domain.FusedCandidate{answerCandidate("c1", 9), answerCandidate("c2", 7)},
		Mode:       domain.ModeHybrid,
	}}
	uc := NewAnswerUseCase(retriever, &fakeGenerator{text: "Revenue grew 8% [1]."})

	answer, err := uc.Answer(context.Background(), domain.RetrievalRequest{Query: "apple revenue"})
	if err != nil {
		t.Fatalf("Answer() error = %v", err)
	}
	if answer.Text != "Revenue grew 8% [1]." {
		t.Fatalf("text = %q", answer.Text)
	}
	if len(answer.Citations) != 2 {
		t.Fatalf("citations = %v", answer.Citations)
	}
	want := "[1] Source: AAPL 10-K 2023, Item 7, Page 41 (relevance: 9/10)"
	if answer.Citations[0] != want {
		t.Fatalf("citation = %q, want %q", answer.Citations[0], want)
	}
	if len(answer.Sources) != 2 {
		t.Fatalf("sources = %d", len(answer.Sources))
	}
}

func TestAnswerOutOfCorpusSkipsGeneration(t *testing.T) {
	retriever := &fakeRetrievalService{result: &domain.RetrievalResult{
		Candidates:  []domain.FusedCandidate{answerCandidate("c1", 2)},
		OutOfCorpus: true,
	}}
	generator := &countingGenerator{fakeGenerator: fakeGenerator{text: "should not run"}}
	uc := NewAnswerUseCase(retriever, generator)

	answer, err := uc.Answer(context.Background(), domain.RetrievalRequest{Query: "quantum gravity"})
	if err != nil {
		t.Fatalf("Answer() error = %v", err)
	}
	if answer.Text != noAnswerMessage {
		t.Fatalf("text = %q", answer.Text)
	}
	if generator.calls != 0 {
		t.Fatalf("generator must not run for out-of-corpus results")
	}
	if len(answer.Citations) != 0 {
		t.Fatalf("citations = %v", answer.Citations)
	}
}

func TestAnswerEmptyResultSkipsGeneration(t *testing.T) {
	retriever := &fakeRetrievalService{result: &domain.RetrievalResult{}}
	generator := &countingGenerator{}
	uc := NewAnswerUseCase(retriever, generator)

	answer, err := uc.Answer(context.Background(), domain.RetrievalRequest{Query: "apple revenue"})
	if err != nil {
		t.Fatalf("Answer() error = %v", err)
	}
	if answer.Text != noAnswerMessage || generator.calls != 0 {
		t.Fatalf("answer = %+v, generator calls = %d", answer, generator.calls)
	}
}

func TestAnswerPrefixesFallbackNotice(t *testing.T) {
	retriever := &fakeRetrievalService{result: &domain.RetrievalResult{
		Candidates:     []domain.FusedCandidate{answerCandidate("c1", 8)},
		Mode:           domain.ModeDense,
		FallbackNotice: "Hybrid retrieval unavailable (sparse encoder not configured), fell back to dense-only search.",
	}}
	uc := NewAnswerUseCase(retriever, &fakeGenerator{text: "Revenue grew."})

	answer, err := uc.Answer(context.Background(), domain.RetrievalRequest{Query: "apple revenue"})
	if err != nil {
		t.Fatalf("Answer() error = %v", err)
	}
	if !strings.HasPrefix(answer.Text, "Hybrid retrieval unavailable") {
		t.Fatalf("notice missing: %q", answer.Text)
	}
	if !strings.HasSuffix(answer.Text, "Revenue grew.") {
		t.Fatalf("answer body missing: %q", answer.Text)
	}
}

func TestAnswerPropagatesRetrievalError(t *testing.T) {
	wantErr := domain.WrapError(domain.ErrDenseSearch, "hybrid retrieval", errors.New("down"))
	uc := NewAnswerUseCase(&fakeRetrievalService{err: wantErr}, &fakeGenerator{})

	_, err := uc.Answer(context.Background(), domain.RetrievalRequest{Query: "apple revenue"})
	if !errors.Is(err, wantErr) {
		t.Fatalf("err = %v", err)
	}
}

func TestAnswerWrapsGeneratorError(t *testing.T) {
	retriever := &fakeRetrievalService{result: &domain.RetrievalResult{
		Candidates: []domain.FusedCandidate{answerCandidate("c1", 8)},
	}}
	uc := NewAnswerUseCase(retriever, &fakeGenerator{err: errors.New("model offline")})

	_, err := uc.Answer(context.Background(), domain.RetrievalRequest{Query: "apple revenue"})
	if err == nil || !strings.Contains(err.Error(), "generate answer") {
		t.Fatalf("err = %v", err)
	}
}
