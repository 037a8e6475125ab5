package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"unicode"

	"github.com/kirillkom/filings-assistant/internal/core/domain"
	"github.com/kirillkom/filings-assistant/internal/core/ports"
)

const (
	maxEntityTerms      = 6
	maxEntitiesPerTerm  = 2
	maxResolvedEntities = 8
)

// GraphLookup resolves query entities against the knowledge graph and
// collects document/page evidence for the KG boost. Every failure path is a
// degradation, never an abort: the graph is an optional signal.
type GraphLookup struct {
	store  ports.GraphStore
	logger *slog.Logger
}

func NewGraphLookup(store ports.GraphStore, logger *slog.Logger) *GraphLookup {
	if logger == nil {
		logger = slog.Default()
	}
	return &GraphLookup{store: store, logger: logger}
}

// Lookup runs once per original query (entity extraction is variant
// invariant). use2Hop widens traversal to entities related through shared
// documents.
func (g *GraphLookup) Lookup(ctx context.Context, query string, use2Hop bool) (domain.GraphEvidence, domain.StageOutcome) {
	if g == nil || g.store == nil {
		return nil, domain.Degraded(domain.SignalGraph, "graph store not configured", nil)
	}

	terms := extractEntityTerms(query)
	if len(terms) == 0 {
		return nil, domain.Ok(domain.SignalGraph)
	}

	entities, err := g.resolveEntities(ctx, terms)
	if err != nil {
		return nil, g.degrade("entity search", err)
	}

	hops := 1
	if use2Hop {
		hops = 2
	}

	evidence := make(domain.GraphEvidence)
	for _, entity := range entities {
		refs, err := g.store.FindDocumentsMentioning(ctx, entity.Name, hops)
		if err != nil {
			return nil, g.degrade("document lookup", err)
		}
		for _, ref := range refs {
			matchType := "direct"
			if ref.RelatedTo != "" {
				matchType = "related"
			}
			key := ref.DocumentID
			if ref.Page > 0 {
				key = fmt.Sprintf("%s:%d", ref.DocumentID, ref.Page)
			}
			// First entity to claim a page wins, keeping evidence stable.
			if _, ok := evidence[key]; ok {
				continue
			}
			evidence[key] = domain.KGEvidence{
				MatchedEntity: entity.Name,
				EntityType:    entity.Type,
				MatchType:     matchType,
				RelatedTo:     ref.RelatedTo,
			}
		}
	}

	return evidence, domain.Ok(domain.SignalGraph)
}

func (g *GraphLookup) resolveEntities(ctx context.Context, terms []string) ([]ports.GraphEntity, error) {
	resolved := make([]ports.GraphEntity, 0, maxResolvedEntities)
	seen := make(map[string]struct{})
	for _, term := range terms {
		if len(resolved) >= maxResolvedEntities {
			break
		}
		entities, err := g.store.EntitySearch(ctx, term)
		if err != nil {
			return nil, err
		}
		for i, entity := range entities {
			if i >= maxEntitiesPerTerm || len(resolved) >= maxResolvedEntities {
				break
			}
			key := strings.ToLower(entity.Name)
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			resolved = append(resolved, entity)
		}
	}
	return resolved, nil
}

func (g *GraphLookup) degrade(operation string, err error) domain.StageOutcome {
	if domain.IsKind(err, domain.ErrGraphPaused) {
		g.logger.Warn("graph_lookup_degraded", "operation", operation, "reason", "database paused")
		return domain.Degraded(domain.SignalGraph, "graph database paused", err)
	}
	g.logger.Warn("graph_lookup_degraded", "operation", operation, "error", err)
	return domain.Degraded(domain.SignalGraph, "graph store unavailable", err)
}

// extractEntityTerms pulls likely entity mentions out of the query:
// capitalized word runs and ticker-style all-caps tokens. The graph store's
// fuzzy entity search does the real resolution.
func extractEntityTerms(query string) []string {
	words := strings.Fields(query)
	terms := make([]string, 0, maxEntityTerms)
	var run []string

	flush := func() {
		if len(run) == 0 {
			return
		}
		term := strings.Join(run, " ")
		run = run[:0]
		if len(terms) < maxEntityTerms && !containsFold(terms, term) {
			terms = append(terms, term)
		}
	}

	for i, word := range words {
		cleaned := strings.TrimFunc(word, func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsDigit(r)
		})
		if cleaned == "" {
			flush()
			continue
		}
		// Leading sentence position alone does not make a word an entity,
		// unless it is all caps like a ticker.
		if isCapitalized(cleaned) && (i > 0 || isAllUpper(cleaned)) {
			run = append(run, cleaned)
			continue
		}
		flush()
	}
	flush()
	return terms
}

func isCapitalized(word string) bool {
	for _, r := range word {
		return unicode.IsUpper(r)
	}
	return false
}

func isAllUpper(word string) bool {
	hasLetter := false
	for _, r := range word {
		if unicode.IsLetter(r) {
			hasLetter = true
			if !unicode.IsUpper(r) {
				return false
			}
		}
	}
	return hasLetter
}
