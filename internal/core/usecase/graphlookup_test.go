package usecase

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/kirillkom/filings-assistant/internal/core/domain"
	"github.com/kirillkom/filings-assistant/internal/core/ports"
)

func TestExtractEntityTerms(t *testing.T) {
	cases := []struct {
		name  string
		query string
		want  []string
	}{
		{
			name:  "capitalized run",
			query: "what did Apple Inc report about supply chains?",
			want:  []string{"Apple Inc"},
		},
		{
			name:  "leading ticker",
			query: "AAPL revenue in 2023",
			want:  []string{"AAPL"},
		},
		{
			name:  "leading capitalized word alone is not an entity",
			query: "What was the revenue?",
			want:  []string{},
		},
		{
			name:  "punctuation trimmed",
			query: "compare Microsoft, and Nvidia.",
			want:  []string{"Microsoft", "Nvidia"},
		},
		{
			name:  "no entities",
			query: "what was total revenue last year",
			want:  []string{},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := extractEntityTerms(tc.query)
			if len(got) == 0 && len(tc.want) == 0 {
				return
			}
			if !reflect.DeepEqual(got, tc.want) {
				t.Fatalf("terms = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestLookupBuildsPageKeyedEvidence(t *testing.T) {
	store := &fakeGraphStore{
		entities: []ports.GraphEntity{{Name: "Apple Inc", Type: "Company"}},
		refs: []domain.GraphDocumentRef{
			{DocumentID: "10-K-AAPL-2023", Page: 28},
			{DocumentID: "10-K-AAPL-2023"},
		},
	}
	lookup := NewGraphLookup(store, testLogger())

	evidence, outcome := lookup.Lookup(context.Background(), "what did Apple Inc report?", false)
	if !outcome.Succeeded() {
		t.Fatalf("outcome = %+v", outcome)
	}
	if store.gotHops != 1 {
		t.Fatalf("hops = %d, want 1", store.gotHops)
	}

	pageEv, ok := evidence["10-K-AAPL-2023:28"]
	if !ok {
		t.Fatalf("missing page-keyed evidence: %v", evidence)
	}
	if pageEv.MatchedEntity != "Apple Inc" || pageEv.EntityType != "Company" || pageEv.MatchType != "direct" {
		t.Fatalf("evidence = %+v", pageEv)
	}
	if _, ok := evidence["10-K-AAPL-2023"]; !ok {
		t.Fatalf("missing document-keyed evidence: %v", evidence)
	}
}

func TestLookupUsesTwoHopsAndMarksRelated(t *testing.T) {
	store := &fakeGraphStore{
		entities: []ports.GraphEntity{{Name: "Apple Inc", Type: "Company"}},
		refs: []domain.GraphDocumentRef{
			{DocumentID: "10-K-TSMC-2023", Page: 5, RelatedTo: "TSMC"},
		},
	}
	lookup := NewGraphLookup(store, testLogger())

	evidence, outcome := lookup.Lookup(context.Background(), "Apple Inc suppliers", true)
	if !outcome.Succeeded() {
		t.Fatalf("outcome = %+v", outcome)
	}
	if store.gotHops != 2 {
		t.Fatalf("hops = %d, want 2", store.gotHops)
	}
	ev := evidence["10-K-TSMC-2023:5"]
	if ev.MatchType != "related" || ev.RelatedTo != "TSMC" {
		t.Fatalf("evidence = %+v", ev)
	}
}

func TestLookupNoEntityTermsIsOkWithNoEvidence(t *testing.T) {
	store := &fakeGraphStore{}
	lookup := NewGraphLookup(store, testLogger())

	evidence, outcome := lookup.Lookup(context.Background(), "what was total revenue", false)
	if !outcome.Succeeded() {
		t.Fatalf("outcome = %+v", outcome)
	}
	if len(evidence) != 0 {
		t.Fatalf("evidence = %v", evidence)
	}
	if len(store.searchedAt) != 0 {
		t.Fatalf("store must not be queried without terms: %v", store.searchedAt)
	}
}

func TestLookupDegradesOnConnectivityError(t *testing.T) {
	store := &fakeGraphStore{
		entitiesErr: domain.WrapError(domain.ErrConnectivity, "neo4j.entity_search", errors.New("refused")),
	}
	lookup := NewGraphLookup(store, testLogger())

	evidence, outcome := lookup.Lookup(context.Background(), "Apple Inc revenue", false)
	if outcome.Succeeded() {
		t.Fatalf("expected degraded outcome")
	}
	if outcome.Signal != domain.SignalGraph {
		t.Fatalf("signal = %q", outcome.Signal)
	}
	if evidence != nil {
		t.Fatalf("degraded lookup must return no evidence: %v", evidence)
	}
}

func TestLookupDegradesDistinctlyWhenPaused(t *testing.T) {
	store := &fakeGraphStore{
		entitiesErr: domain.WrapError(domain.ErrGraphPaused, "neo4j.entity_search", errors.New("paused")),
	}
	lookup := NewGraphLookup(store, testLogger())

	_, outcome := lookup.Lookup(context.Background(), "Apple Inc revenue", false)
	if outcome.Succeeded() {
		t.Fatalf("expected degraded outcome")
	}
	if outcome.Reason != "graph database paused" {
		t.Fatalf("reason = %q", outcome.Reason)
	}
}

func TestLookupNilStoreDegrades(t *testing.T) {
	lookup := NewGraphLookup(nil, testLogger())

	_, outcome := lookup.Lookup(context.Background(), "Apple Inc revenue", false)
	if outcome.Succeeded() {
		t.Fatalf("expected degraded outcome for missing store")
	}
}
