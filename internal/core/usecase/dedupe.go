package usecase

import (
	"github.com/kirillkom/filings-assistant/internal/core/domain"
)

// dedupeByParent keeps the best-scoring child per parent passage. Sibling
// chunks are near duplicates as evidence, so one entry per parent_id
// survives, re-sorted by fused score descending.
func dedupeByParent(candidates []domain.FusedCandidate) []domain.FusedCandidate {
	if len(candidates) == 0 {
		return candidates
	}

	best := make(map[string]domain.FusedCandidate, len(candidates))
	order := make([]string, 0, len(candidates))
	for _, candidate := range candidates {
		parentID := candidate.ParentID
		if parentID == "" {
			// Orphan chunks dedupe against themselves.
			parentID = candidate.ID
		}
		existing, ok := best[parentID]
		if !ok {
			best[parentID] = candidate
			order = append(order, parentID)
			continue
		}
		if candidate.RRFScore > existing.RRFScore ||
			(candidate.RRFScore == existing.RRFScore && candidate.ID < existing.ID) {
			best[parentID] = candidate
		}
	}

	out := make([]domain.FusedCandidate, 0, len(order))
	for _, parentID := range order {
		out = append(out, best[parentID])
	}
	sortFusedByScore(out)
	return out
}
