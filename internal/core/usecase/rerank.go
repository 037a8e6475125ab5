package usecase

import (
	"context"
	"log/slog"
	"sort"

	"github.com/kirillkom/filings-assistant/internal/core/domain"
	"github.com/kirillkom/filings-assistant/internal/core/ports"
)

// rerankCandidates scores each (query, passage) pair with the LLM judge and
// reorders by relevance. Judge failure for one candidate keeps that
// candidate at its fused rank instead of dropping it; the stage outcome only
// turns Degraded when no candidate could be scored.
func rerankCandidates(
	ctx context.Context,
	judge ports.RelevanceJudge,
	logger *slog.Logger,
	query string,
	candidates []domain.FusedCandidate,
	topK int,
) ([]domain.FusedCandidate, domain.StageOutcome) {
	if judge == nil {
		return trimCandidates(candidates, topK), domain.Degraded(domain.SignalRerank, "judge not configured", nil)
	}
	if len(candidates) == 0 {
		return candidates, domain.Ok(domain.SignalRerank)
	}

	scored := 0
	for i := range candidates {
		// Context expiry is the pipeline budget running out, not a judge
		// problem: abort instead of degrading to partial results.
		if err := ctx.Err(); err != nil {
			return candidates, domain.Fatal(domain.SignalRerank, err)
		}

		passage := judgePassage(candidates[i])
		score, err := judge.Judge(ctx, query, passage)
		if err != nil || score < 1 || score > 10 {
			logger.Warn("rerank_item_degraded", "candidate_id", candidates[i].ID, "score", score, "error", err)
			continue
		}
		candidates[i].RelevanceScore = score
		scored++
	}

	if scored == 0 {
		return trimCandidates(candidates, topK), domain.Degraded(domain.SignalRerank, "judge scored no candidates", nil)
	}

	// Scored candidates sort by relevance, unscored ones keep their fused
	// order below them.
	sort.SliceStable(candidates, func(i, j int) bool {
		si, sj := candidates[i].RelevanceScore, candidates[j].RelevanceScore
		if si != sj {
			return si > sj
		}
		if candidates[i].RRFScore != candidates[j].RRFScore {
			return candidates[i].RRFScore > candidates[j].RRFScore
		}
		return candidates[i].ID < candidates[j].ID
	})

	return trimCandidates(candidates, topK), domain.Ok(domain.SignalRerank)
}

func judgePassage(candidate domain.FusedCandidate) string {
	if candidate.ParentText != "" {
		return candidate.ParentText
	}
	return candidate.ChildText
}
