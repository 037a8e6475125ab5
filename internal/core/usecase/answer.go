package usecase

import (
	"context"
	"fmt"
	"strings"

	"github.com/kirillkom/filings-assistant/internal/core/domain"
	"github.com/kirillkom/filings-assistant/internal/core/ports"
)

const noAnswerMessage = "No relevant documents found for this question. " +
	"The corpus may not cover this topic, consider another information source."

// AnswerUseCase runs retrieval and synthesizes a grounded answer with the
// citation block. Fallback notices from degraded retrieval are prefixed to
// the answer text.
type AnswerUseCase struct {
	retriever ports.RetrievalService
	generator ports.AnswerGenerator
}

func NewAnswerUseCase(retriever ports.RetrievalService, generator ports.AnswerGenerator) *AnswerUseCase {
	return &AnswerUseCase{retriever: retriever, generator: generator}
}

func (uc *AnswerUseCase) Answer(ctx context.Context, req domain.RetrievalRequest) (*domain.Answer, error) {
	result, err := uc.retriever.Retrieve(ctx, req)
	if err != nil {
		return nil, err
	}

	if result.OutOfCorpus || len(result.Candidates) == 0 {
		return &domain.Answer{Text: noAnswerMessage}, nil
	}

	text, err := uc.generator.GenerateAnswer(ctx, req.Query, result.Candidates)
	if err != nil {
		return nil, fmt.Errorf("generate answer: %w", err)
	}

	if result.FallbackNotice != "" {
		text = result.FallbackNotice + "\n\n" + text
	}

	citations := make([]string, 0, len(result.Candidates))
	for i, candidate := range result.Candidates {
		citations = append(citations, domain.FormatCitation(i+1, candidate))
	}

	return &domain.Answer{
		Text:      strings.TrimSpace(text),
		Citations: citations,
		Sources:   result.Candidates,
	}, nil
}
