package usecase

import (
	"testing"

	"github.com/kirillkom/filings-assistant/internal/core/domain"
)

func TestDedupeByParentKeepsBestChild(t *testing.T) {
	candidates := []domain.FusedCandidate{
		fused("c1", "p1", 0.030, domain.SignalDense),
		fused("c2", "p1", 0.045, domain.SignalDense, domain.SignalSparse),
		fused("c3", "p2", 0.020, domain.SignalDense),
	}

	out := dedupeByParent(candidates)
	if len(out) != 2 {
		t.Fatalf("expected 2 parents, got %d", len(out))
	}
	if out[0].ID != "c2" {
		t.Fatalf("p1 winner = %s, want c2", out[0].ID)
	}
	if out[1].ID != "c3" {
		t.Fatalf("p2 winner = %s, want c3", out[1].ID)
	}
}

func TestDedupeByParentTieBreaksByLowerID(t *testing.T) {
	candidates := []domain.FusedCandidate{
		fused("c2", "p1", 0.030, domain.SignalDense),
		fused("c1", "p1", 0.030, domain.SignalDense),
	}

	out := dedupeByParent(candidates)
	if len(out) != 1 || out[0].ID != "c1" {
		t.Fatalf("tie winner = %+v", out)
	}
}

func TestDedupeByParentTreatsOrphansIndividually(t *testing.T) {
	candidates := []domain.FusedCandidate{
		fused("c1", "", 0.030, domain.SignalDense),
		fused("c2", "", 0.020, domain.SignalDense),
	}

	out := dedupeByParent(candidates)
	if len(out) != 2 {
		t.Fatalf("orphans must not dedupe against each other, got %d", len(out))
	}
}

func TestDedupeByParentResortsByScore(t *testing.T) {
	candidates := []domain.FusedCandidate{
		fused("c1", "p1", 0.010, domain.SignalDense),
		fused("c2", "p2", 0.050, domain.SignalDense),
	}

	out := dedupeByParent(candidates)
	if out[0].ID != "c2" {
		t.Fatalf("expected highest score first, got %s", out[0].ID)
	}
}
