package recognition

import (
	"math"

	"go.uber.org/zap"

	"faceid/internal/database"
)

// ClampUnit clamps a value into [0, 1] for display. Raw cosine similarity
// lives in [-1, 1]; callers never see values outside the unit range.
func ClampUnit(v float64) float64 {
	if v > 1 {
		return 1
	}
	if v < 0 {
		return 0
	}
	return v
}

// Compare computes the cosine similarity of two embeddings and reports
// whether it exceeds the threshold (strictly). Zero-norm or mismatched
// vectors yield similarity 0 and no match; NaN never propagates.
func Compare(a, b []float32, threshold float64) (bool, float64) {
	if len(a) != len(b) || len(a) == 0 {
		return false, 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return false, 0
	}

	similarity := dot / (math.Sqrt(normA) * math.Sqrt(normB))
	// Clamp to [-1, 1] to handle floating point errors.
	if similarity > 1 {
		similarity = 1
	}
	if similarity < -1 {
		similarity = -1
	}

	return similarity > threshold, similarity
}

// Match is the outcome of a best-match scan.
type Match struct {
	PhotoID    int64
	Similarity float64
}

// FindBestMatch scans all candidates linearly and returns the one with the
// highest similarity strictly above the threshold, or nil when none
// qualifies. Ties keep the first-seen candidate, so the result is
// deterministic for a given candidate order. Candidates with a corrupt
// embedding are logged and skipped.
func FindBestMatch(target []float32, candidates []database.Candidate, threshold float64, log *zap.SugaredLogger) *Match {
	var best *Match
	for _, c := range candidates {
		if len(c.Embedding) != len(target) {
			log.Warnw("skipping candidate with corrupt embedding",
				"photo_id", c.PhotoID,
				"embedding_size", len(c.Embedding))
			continue
		}

		isMatch, similarity := Compare(target, c.Embedding, threshold)
		if !isMatch {
			continue
		}
		if best == nil || similarity > best.Similarity {
			best = &Match{PhotoID: c.PhotoID, Similarity: similarity}
		}
	}
	return best
}
