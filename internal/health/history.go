package health

// MaxPreviousScores caps the trailing history retained across
// recalculations.
const MaxPreviousScores = 2

// Rotate produces the value object to persist after a recalculation. The
// prior total and date move to the front of the history (most-recent-first)
// and the oldest entry beyond the cap is dropped. The write is a full
// overwrite; the caller is responsible for serializing concurrent
// recalculations of the same project.
func Rotate(prev *ProjectHealthScore, next ProjectHealthScore) ProjectHealthScore {
	if prev == nil {
		next.PreviousScores = nil
		return next
	}

	history := make([]PreviousScore, 0, MaxPreviousScores)
	history = append(history, PreviousScore{
		TotalScore:     prev.TotalScore,
		CalculatedDate: prev.LastCalculatedDate,
	})
	history = append(history, prev.PreviousScores...)
	if len(history) > MaxPreviousScores {
		history = history[:MaxPreviousScores]
	}

	next.PreviousScores = history
	return next
}
