package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/kirillkom/filings-assistant/internal/core/domain"
	"github.com/kirillkom/filings-assistant/internal/core/ports"
)

const (
	maxQueryLength   = 1024
	maxQueryVariants = 4
)

// QueryAnalyzer expands a query into alternate phrasings and classifies the
// graph traversal depth. Planner failure degrades to the original query
// alone; the caller must never block on this stage.
type QueryAnalyzer struct {
	planner ports.QueryPlanner
	logger  *slog.Logger
}

func NewQueryAnalyzer(planner ports.QueryPlanner, logger *slog.Logger) *QueryAnalyzer {
	if logger == nil {
		logger = slog.Default()
	}
	return &QueryAnalyzer{planner: planner, logger: logger}
}

// ValidateQuery enforces the 1-1024 character contract shared by both
// retrieval entry points.
func ValidateQuery(query string) (string, error) {
	trimmed := strings.TrimSpace(query)
	if trimmed == "" {
		return "", domain.WrapError(domain.ErrInvalidInput, "validate query", fmt.Errorf("query is empty"))
	}
	if utf8.RuneCountInString(trimmed) > maxQueryLength {
		return "", domain.WrapError(domain.ErrInvalidInput, "validate query", fmt.Errorf("query exceeds %d characters", maxQueryLength))
	}
	return trimmed, nil
}

func (a *QueryAnalyzer) Analyze(ctx context.Context, query string) domain.QueryAnalysis {
	fallback := domain.QueryAnalysis{
		Variants:     []string{query},
		KGComplexity: domain.KGSimple,
	}
	if a.planner == nil {
		return fallback
	}

	analysis, err := a.planner.Analyze(ctx, query)
	if err != nil {
		a.logger.Warn("query_analysis_degraded", "error", err)
		return fallback
	}

	return normalizeAnalysis(query, analysis)
}

// normalizeAnalysis enforces the output contract regardless of what the
// model returned: original query first, at most 4 variants, no blanks or
// duplicates, 2-hop only for complex queries.
func normalizeAnalysis(query string, analysis domain.QueryAnalysis) domain.QueryAnalysis {
	variants := make([]string, 0, maxQueryVariants)
	variants = append(variants, query)
	for _, variant := range analysis.Variants {
		if len(variants) == maxQueryVariants {
			break
		}
		variant = strings.TrimSpace(variant)
		if variant == "" || containsFold(variants, variant) {
			continue
		}
		variants = append(variants, variant)
	}

	complexity := analysis.KGComplexity
	if complexity != domain.KGComplex {
		complexity = domain.KGSimple
	}

	return domain.QueryAnalysis{
		Variants:     variants,
		KGComplexity: complexity,
		Use2Hop:      complexity == domain.KGComplex,
	}
}

func containsFold(values []string, value string) bool {
	for _, v := range values {
		if strings.EqualFold(v, value) {
			return true
		}
	}
	return false
}
