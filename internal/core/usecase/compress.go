package usecase

import (
	"context"
	"log/slog"
	"strings"

	"github.com/kirillkom/filings-assistant/internal/core/domain"
	"github.com/kirillkom/filings-assistant/internal/core/ports"
)

// compressMinLength is the passage size below which compression is skipped,
// there is nothing useful to trim.
const compressMinLength = 400

// compressCandidates replaces each candidate's synthesis text with only the
// query-relevant sentences of its parent passage. ChildTextRaw stays
// untouched for citation previews. A passage with no relevant sentences is
// flagged CompressionSkipped, which downstream out-of-corpus detection
// reads.
func compressCandidates(
	ctx context.Context,
	compressor ports.PassageCompressor,
	logger *slog.Logger,
	query string,
	candidates []domain.FusedCandidate,
) ([]domain.FusedCandidate, domain.StageOutcome) {
	if compressor == nil {
		return candidates, domain.Degraded(domain.SignalCompress, "compressor not configured", nil)
	}
	if len(candidates) == 0 {
		return candidates, domain.Ok(domain.SignalCompress)
	}

	processed := 0
	for i := range candidates {
		// Budget expiry aborts the stage rather than degrading it.
		if err := ctx.Err(); err != nil {
			return candidates, domain.Fatal(domain.SignalCompress, err)
		}

		passage := candidates[i].ParentText
		if passage == "" {
			passage = candidates[i].ChildText
		}
		if len(passage) < compressMinLength {
			processed++
			continue
		}

		sentences, err := compressor.Compress(ctx, query, passage)
		if err != nil {
			logger.Warn("compress_item_degraded", "candidate_id", candidates[i].ID, "error", err)
			continue
		}
		processed++
		if len(sentences) == 0 {
			candidates[i].CompressionSkipped = true
			continue
		}
		candidates[i].CompressedText = strings.Join(sentences, " ")
	}

	if processed == 0 {
		return candidates, domain.Degraded(domain.SignalCompress, "compressor processed no candidates", nil)
	}
	return candidates, domain.Ok(domain.SignalCompress)
}

// allCompressionSkipped reports whether compression found nothing relevant
// in any candidate.
func allCompressionSkipped(candidates []domain.FusedCandidate) bool {
	if len(candidates) == 0 {
		return false
	}
	for _, candidate := range candidates {
		if !candidate.CompressionSkipped {
			return false
		}
	}
	return true
}
