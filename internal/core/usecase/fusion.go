package usecase

import (
	"sort"

	"github.com/kirillkom/filings-assistant/internal/core/domain"
)

// RankedList is one ordered candidate list entering fusion, tagged with the
// signal that produced it.
type RankedList struct {
	Source     string
	Candidates []domain.Candidate
}

type fusionAccumulator struct {
	candidate domain.Candidate
	score     float64
	sources   []string
}

// fuseRRF merges ranked lists with Reciprocal Rank Fusion:
// score(c) = sum over lists containing c of 1/(k + rank), rank 1-based.
// Pure function; output is ordered by fused score descending with candidate
// id as the deterministic tie break.
func fuseRRF(lists []RankedList, rrfK int) []domain.FusedCandidate {
	if rrfK <= 0 {
		rrfK = 60
	}

	acc := make(map[string]fusionAccumulator)
	for _, list := range lists {
		seen := make(map[string]struct{}, len(list.Candidates))
		for rank, candidate := range list.Candidates {
			if candidate.ID == "" {
				continue
			}
			// A list contributes at most one term per candidate.
			if _, dup := seen[candidate.ID]; dup {
				continue
			}
			seen[candidate.ID] = struct{}{}

			entry := acc[candidate.ID]
			entry.candidate = preferRicherCandidate(entry.candidate, candidate)
			entry.score += 1.0 / float64(rrfK+rank+1)
			if !containsSource(entry.sources, list.Source) {
				entry.sources = append(entry.sources, list.Source)
			}
			acc[candidate.ID] = entry
		}
	}

	out := make([]domain.FusedCandidate, 0, len(acc))
	for _, entry := range acc {
		out = append(out, domain.FusedCandidate{
			Candidate: entry.candidate,
			RRFScore:  entry.score,
			Sources:   entry.sources,
		})
	}

	sortFusedByScore(out)
	return out
}

func sortFusedByScore(candidates []domain.FusedCandidate) {
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].RRFScore != candidates[j].RRFScore {
			return candidates[i].RRFScore > candidates[j].RRFScore
		}
		return candidates[i].ID < candidates[j].ID
	})
}

func containsSource(sources []string, source string) bool {
	for _, s := range sources {
		if s == source {
			return true
		}
	}
	return false
}

// preferRicherCandidate keeps the most complete field set when the same
// chunk arrives from several lists with uneven payloads.
func preferRicherCandidate(current, candidate domain.Candidate) domain.Candidate {
	if current.ID == "" {
		return candidate
	}
	if current.ChildText == "" && candidate.ChildText != "" {
		current.ChildText = candidate.ChildText
	}
	if current.ChildTextRaw == "" && candidate.ChildTextRaw != "" {
		current.ChildTextRaw = candidate.ChildTextRaw
	}
	if current.ParentText == "" && candidate.ParentText != "" {
		current.ParentText = candidate.ParentText
	}
	if current.ParentID == "" && candidate.ParentID != "" {
		current.ParentID = candidate.ParentID
	}
	if current.Metadata == (domain.ChunkMetadata{}) {
		current.Metadata = candidate.Metadata
	}
	if candidate.Score > current.Score {
		current.Score = candidate.Score
	}
	return current
}

func trimCandidates(candidates []domain.FusedCandidate, limit int) []domain.FusedCandidate {
	if limit <= 0 || len(candidates) <= limit {
		return candidates
	}
	return candidates[:limit]
}
