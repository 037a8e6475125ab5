package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/kirillkom/filings-assistant/internal/core/domain"
)

func TestValidateQueryTrimsAndAccepts(t *testing.T) {
	got, err := ValidateQuery("  what was revenue?  ")
	if err != nil {
		t.Fatalf("ValidateQuery() error = %v", err)
	}
	if got != "what was revenue?" {
		t.Fatalf("trimmed query = %q", got)
	}
}

func TestValidateQueryRejectsEmpty(t *testing.T) {
	_, err := ValidateQuery("   ")
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}

func TestValidateQueryRejectsOverlong(t *testing.T) {
	_, err := ValidateQuery(strings.Repeat("q", 1025))
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
	if _, err := ValidateQuery(strings.Repeat("q", 1024)); err != nil {
		t.Fatalf("1024 characters must pass, got %v", err)
	}
}

func TestValidateQueryCountsRunesNotBytes(t *testing.T) {
	// 1024 two-byte runes exceed 1024 bytes but stay within the limit.
	if _, err := ValidateQuery(strings.Repeat("é", 1024)); err != nil {
		t.Fatalf("1024 multibyte characters must pass, got %v", err)
	}
	_, err := ValidateQuery(strings.Repeat("é", 1025))
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}

func TestAnalyzePutsOriginalFirstAndCaps(t *testing.T) {
	planner := &fakePlanner{analysis: domain.QueryAnalysis{
		Variants:     []string{"v1", "v2", "v3", "v4", "v5"},
		KGComplexity: domain.KGComplex,
	}}
	analyzer := NewQueryAnalyzer(planner, testLogger())

	analysis := analyzer.Analyze(context.Background(), "original")
	if len(analysis.Variants) != 4 {
		t.Fatalf("variant count = %d, want 4", len(analysis.Variants))
	}
	if analysis.Variants[0] != "original" {
		t.Fatalf("original must come first: %v", analysis.Variants)
	}
	if !analysis.Use2Hop {
		t.Fatalf("complex classification must enable 2-hop")
	}
}

func TestAnalyzeDropsDuplicateAndBlankVariants(t *testing.T) {
	planner := &fakePlanner{analysis: domain.QueryAnalysis{
		Variants: []string{"ORIGINAL", "  ", "fresh variant"},
	}}
	analyzer := NewQueryAnalyzer(planner, testLogger())

	analysis := analyzer.Analyze(context.Background(), "original")
	if len(analysis.Variants) != 2 {
		t.Fatalf("variants = %v", analysis.Variants)
	}
	if analysis.Variants[1] != "fresh variant" {
		t.Fatalf("variants = %v", analysis.Variants)
	}
}

func TestAnalyzeDegradesToSingleVariantOnPlannerError(t *testing.T) {
	planner := &fakePlanner{err: errors.New("model unavailable")}
	analyzer := NewQueryAnalyzer(planner, testLogger())

	analysis := analyzer.Analyze(context.Background(), "original")
	if len(analysis.Variants) != 1 || analysis.Variants[0] != "original" {
		t.Fatalf("fallback variants = %v", analysis.Variants)
	}
	if analysis.KGComplexity != domain.KGSimple || analysis.Use2Hop {
		t.Fatalf("fallback must be simple: %+v", analysis)
	}
}

func TestAnalyzeUnknownComplexityMapsToSimple(t *testing.T) {
	planner := &fakePlanner{analysis: domain.QueryAnalysis{
		Variants:     []string{"v1"},
		KGComplexity: domain.KGComplexity("weird"),
	}}
	analyzer := NewQueryAnalyzer(planner, testLogger())

	analysis := analyzer.Analyze(context.Background(), "original")
	if analysis.KGComplexity != domain.KGSimple {
		t.Fatalf("complexity = %q", analysis.KGComplexity)
	}
}
