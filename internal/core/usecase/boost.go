package usecase

import (
	"github.com/kirillkom/filings-assistant/internal/core/domain"
)

// defaultKGBoostFactor is the multiplicative bump for candidates whose
// source page was independently surfaced by graph traversal.
const defaultKGBoostFactor = 1.2

// applyKGBoost attaches graph evidence to matching candidates and re-sorts.
// A nil/empty evidence map leaves the slice untouched.
func applyKGBoost(candidates []domain.FusedCandidate, evidence domain.GraphEvidence, factor float64) []domain.FusedCandidate {
	if factor <= 1 {
		factor = defaultKGBoostFactor
	}
	if len(evidence) == 0 || len(candidates) == 0 {
		return candidates
	}

	boosted := false
	for i := range candidates {
		ev, ok := evidence.EvidenceFor(candidates[i].Metadata)
		if !ok {
			continue
		}
		evCopy := ev
		candidates[i].KGEvidence = &evCopy
		candidates[i].RRFScore *= factor
		if !containsSource(candidates[i].Sources, domain.SignalGraph) {
			candidates[i].Sources = append(candidates[i].Sources, domain.SignalGraph)
		}
		boosted = true
	}

	if boosted {
		sortFusedByScore(candidates)
	}
	return candidates
}
