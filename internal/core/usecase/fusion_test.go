package usecase

import (
	"math"
	"testing"

	"github.com/kirillkom/filings-assistant/internal/core/domain"
)

func TestFuseRRFSumsReciprocalRanks(t *testing.T) {
	lists := []RankedList{
		{Source: domain.SignalDense, Candidates: []domain.Candidate{
			{ID: "a"}, {ID: "b"}, {ID: "c"},
		}},
		{Source: domain.SignalSparse, Candidates: []domain.Candidate{
			{ID: "b"}, {ID: "a"},
		}},
	}

	fusedOut := fuseRRF(lists, 60)
	if len(fusedOut) != 3 {
		t.Fatalf("expected 3 candidates, got %d", len(fusedOut))
	}

	scores := make(map[string]float64)
	for _, candidate := range fusedOut {
		scores[candidate.ID] = candidate.RRFScore
	}

	wantA := 1.0/61 + 1.0/62
	wantB := 1.0/62 + 1.0/61
	wantC := 1.0 / 63
	if math.Abs(scores["a"]-wantA) > 1e-12 {
		t.Fatalf("score a = %v, want %v", scores["a"], wantA)
	}
	if math.Abs(scores["b"]-wantB) > 1e-12 {
		t.Fatalf("score b = %v, want %v", scores["b"], wantB)
	}
	if math.Abs(scores["c"]-wantC) > 1e-12 {
		t.Fatalf("score c = %v, want %v", scores["c"], wantC)
	}
}

func TestFuseRRFTiesBreakByID(t *testing.T) {
	// a and b have identical score sums, so order must be lexicographic.
	lists := []RankedList{
		{Source: domain.SignalDense, Candidates: []domain.Candidate{{ID: "b"}, {ID: "a"}}},
		{Source: domain.SignalSparse, Candidates: []domain.Candidate{{ID: "a"}, {ID: "b"}}},
	}

	fusedOut := fuseRRF(lists, 60)
	if fusedOut[0].ID != "a" || fusedOut[1].ID != "b" {
		t.Fatalf("tie break order = %s, %s", fusedOut[0].ID, fusedOut[1].ID)
	}
}

func TestFuseRRFIgnoresDuplicateWithinOneList(t *testing.T) {
	lists := []RankedList{
		{Source: domain.SignalDense, Candidates: []domain.Candidate{{ID: "a"}, {ID: "a"}}},
	}

	fusedOut := fuseRRF(lists, 60)
	if len(fusedOut) != 1 {
		t.Fatalf("expected 1 candidate, got %d", len(fusedOut))
	}
	want := 1.0 / 61
	if math.Abs(fusedOut[0].RRFScore-want) > 1e-12 {
		t.Fatalf("duplicate must contribute once: score = %v, want %v", fusedOut[0].RRFScore, want)
	}
}

func TestFuseRRFTracksContributingSources(t *testing.T) {
	lists := []RankedList{
		{Source: domain.SignalDense, Candidates: []domain.Candidate{{ID: "a"}, {ID: "b"}}},
		{Source: domain.SignalSparse, Candidates: []domain.Candidate{{ID: "a"}}},
	}

	fusedOut := fuseRRF(lists, 60)
	for _, candidate := range fusedOut {
		switch candidate.ID {
		case "a":
			if !candidate.HasSource(domain.SignalDense) || !candidate.HasSource(domain.SignalSparse) {
				t.Fatalf("a sources = %v", candidate.Sources)
			}
		case "b":
			if candidate.HasSource(domain.SignalSparse) {
				t.Fatalf("b must not carry sparse source: %v", candidate.Sources)
			}
		}
	}
}

func TestFuseRRFMergesRicherPayload(t *testing.T) {
	lists := []RankedList{
		{Source: domain.SignalDense, Candidates: []domain.Candidate{
			{ID: "a", ParentID: "p1"},
		}},
		{Source: domain.SignalSparse, Candidates: []domain.Candidate{
			{ID: "a", ChildText: "body", Metadata: domain.ChunkMetadata{Ticker: "AAPL"}},
		}},
	}

	fusedOut := fuseRRF(lists, 60)
	got := fusedOut[0]
	if got.ParentID != "p1" || got.ChildText != "body" || got.Metadata.Ticker != "AAPL" {
		t.Fatalf("payload not merged: %+v", got)
	}
}
