package scoring

// PenaltyKind identifies a score penalty. Tests and API consumers match on
// the kind; the human-readable message is derived formatting only.
type PenaltyKind string

const (
	PenaltyHighCommitRatio     PenaltyKind = "high_commit_to_pr_ratio"
	PenaltyModerateCommitRatio PenaltyKind = "moderate_commit_to_pr_ratio"
	PenaltyLowPRCount          PenaltyKind = "low_pr_count"
	PenaltyLowReviewActivity   PenaltyKind = "low_review_activity"
)

// Penalty records one multiplicative penalty applied to the base score,
// in application order.
type Penalty struct {
	Kind   PenaltyKind `json:"kind"`
	Factor float64     `json:"factor"`
}

// Message returns the display text for the penalty.
func (p Penalty) Message() string {
	switch p.Kind {
	case PenaltyHighCommitRatio:
		return "High commit-to-PR ratio (mostly solo work)"
	case PenaltyModerateCommitRatio:
		return "Moderate commit-to-PR ratio"
	case PenaltyLowPRCount:
		return "Low PR count for account age"
	case PenaltyLowReviewActivity:
		return "Limited code review activity"
	default:
		return string(p.Kind)
	}
}
