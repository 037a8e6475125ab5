package usecase

import (
	"context"
	"testing"

	"github.com/kirillkom/filings-assistant/internal/core/domain"
)

type fakeAnswerService struct {
	answer *domain.Answer
	calls  int
}

func (f *fakeAnswerService) Answer(context.Context, domain.RetrievalRequest) (*domain.Answer, error) {
	f.calls++
	return f.answer, nil
}

func TestRegistryNamesAreSorted(t *testing.T) {
	registry := NewRegistry(&fakeRetrievalService{result: &domain.RetrievalResult{}}, &fakeAnswerService{})

	got := registry.Names()
	want := []string{OpQueryAnswer, OpRetrievalDense, OpRetrievalHybrid}
	if len(got) != len(want) {
		t.Fatalf("names = %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("names = %v, want %v", got, want)
		}
	}
}

func TestRegistryOmitsAnswerOpWithoutGenerator(t *testing.T) {
	registry := NewRegistry(&fakeRetrievalService{result: &domain.RetrievalResult{}}, nil)

	for _, name := range registry.Names() {
		if name == OpQueryAnswer {
			t.Fatalf("query.answer must not register without an answer service")
		}
	}
	_, err := registry.Invoke(context.Background(), OpQueryAnswer, domain.RetrievalRequest{Query: "q"})
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("err = %v", err)
	}
}

func TestRegistryInvokeDispatchesDense(t *testing.T) {
	retriever := &fakeRetrievalService{result: &domain.RetrievalResult{Mode: domain.ModeDense}}
	registry := NewRegistry(retriever, nil)

	out, err := registry.Invoke(context.Background(), OpRetrievalDense, domain.RetrievalRequest{Query: "apple revenue"})
	if err != nil {
		t.Fatalf("Invoke() error = %v", err)
	}
	if retriever.denseHit != 1 {
		t.Fatalf("dense entry point not used")
	}
	result, ok := out.(*domain.RetrievalResult)
	if !ok || result.Mode != domain.ModeDense {
		t.Fatalf("out = %#v", out)
	}
}

func TestRegistryInvokeDispatchesAnswer(t *testing.T) {
	answers := &fakeAnswerService{answer: &domain.Answer{Text: "grounded"}}
	registry := NewRegistry(&fakeRetrievalService{result: &domain.RetrievalResult{}}, answers)

	out, err := registry.Invoke(context.Background(), OpQueryAnswer, domain.RetrievalRequest{Query: "apple revenue"})
	if err != nil {
		t.Fatalf("Invoke() error = %v", err)
	}
	if answers.calls != 1 {
		t.Fatalf("answer service not invoked")
	}
	if answer, ok := out.(*domain.Answer); !ok || answer.Text != "grounded" {
		t.Fatalf("out = %#v", out)
	}
}

func TestRegistryInvokeUnknownOperation(t *testing.T) {
	registry := NewRegistry(&fakeRetrievalService{result: &domain.RetrievalResult{}}, nil)

	_, err := registry.Invoke(context.Background(), "ingest.pdf", domain.RetrievalRequest{Query: "q"})
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("err = %v", err)
	}
}
