package scoring

import (
	"math"
)

// Category weights for raw activity counters. Peer-facing activity (PRs,
// reviews, closed issues) is worth more than raw commit volume, which is
// trivially inflatable.
const (
	commitWeight = 1.0
	prWeight     = 3.0
	issueWeight  = 2.0
	reviewWeight = 2.5

	// Per-day commit ceiling; bounds pathological commit counts.
	commitsPerDayCeiling = 20.0

	// Floor for the age normalization factor, prevents blow-up for
	// brand-new accounts.
	minAgeFactor = 0.5

	// Empirical normalization constant calibrating score magnitude to the
	// 0-100+ display range.
	scoreDivisor = 12.0

	maxDisplayScore = 100
)

// Penalty and bonus multipliers applied to the base score.
const (
	highRatioFactor     = 0.70
	moderateRatioFactor = 0.85
	lowPRFactor         = 0.90
	lowReviewFactor     = 0.90
	reviewCultureBonus  = 1.15

	highRatioThreshold     = 50.0
	moderateRatioThreshold = 30.0
	lowPRThreshold         = 50
	lowReviewThreshold     = 20
	matureAccountYears     = 2.0
)

// ActivityCounters holds the raw developer activity gathered from GitHub.
// A transient value object: computed on demand, never stored.
type ActivityCounters struct {
	TotalCommits      int     `json:"total_commits"`
	TotalPRs          int     `json:"total_prs"`
	TotalIssuesClosed int     `json:"total_issues_closed"`
	TotalReviews      int     `json:"total_reviews"`
	AccountAgeYears   float64 `json:"account_age_years"`
}

// Breakdown holds the per-category weighted contributions from the
// weighting step, before any penalty is applied. Exposed for display.
type Breakdown struct {
	Commits float64 `json:"commits"`
	PRs     float64 `json:"prs"`
	Issues  float64 `json:"issues"`
	Reviews float64 `json:"reviews"`
}

// Result is the full output of the impact score calculation.
// Score is the raw, unbounded value; DisplayScore is the only number shown
// to end users and never exceeds 100.
type Result struct {
	Score            int       `json:"score"`
	DisplayScore     int       `json:"display_score"`
	Tier             Tier      `json:"tier"`
	EliteBadge       string    `json:"elite_badge,omitempty"`
	WeightedActivity float64   `json:"weighted_activity"`
	ConsistencyBonus float64   `json:"consistency_bonus"`
	Breakdown        Breakdown `json:"breakdown"`
	Penalties        []Penalty `json:"penalties"`
}

// CalculateImpactScore converts raw activity counters into a bounded impact
// score with tier, badge, and a diagnostic breakdown. Pure and total over
// non-negative inputs; degenerate values are clamped, never rejected.
func CalculateImpactScore(c ActivityCounters) Result {
	// Step 1: weighting. Commits are capped at a generous per-day ceiling
	// so absurd inputs cannot dominate the weighted sum.
	effectiveCommits := float64(c.TotalCommits)
	if ceiling := c.AccountAgeYears * 365 * commitsPerDayCeiling; effectiveCommits > ceiling {
		effectiveCommits = ceiling
	}

	breakdown := Breakdown{
		Commits: effectiveCommits * commitWeight,
		PRs:     float64(c.TotalPRs) * prWeight,
		Issues:  float64(c.TotalIssuesClosed) * issueWeight,
		Reviews: float64(c.TotalReviews) * reviewWeight,
	}
	weightedActivity := breakdown.Commits + breakdown.PRs + breakdown.Issues + breakdown.Reviews

	// Step 2-3: age normalization. Square root dampens the advantage of
	// long-lived accounts without removing it entirely.
	ageFactor := math.Max(math.Sqrt(c.AccountAgeYears), minAgeFactor)
	baseScore := weightedActivity / ageFactor / scoreDivisor

	penalties := make([]Penalty, 0, 3)

	// Step 4: solo-work ratio penalty. Branches are mutually exclusive.
	commitToPRRatio := float64(c.TotalCommits) / math.Max(float64(c.TotalPRs), 1)
	switch {
	case commitToPRRatio > highRatioThreshold:
		baseScore *= highRatioFactor
		penalties = append(penalties, Penalty{Kind: PenaltyHighCommitRatio, Factor: highRatioFactor})
	case commitToPRRatio > moderateRatioThreshold:
		baseScore *= moderateRatioFactor
		penalties = append(penalties, Penalty{Kind: PenaltyModerateCommitRatio, Factor: moderateRatioFactor})
	}

	// Step 5: low PR count for a mature account.
	if c.TotalPRs < lowPRThreshold && c.AccountAgeYears >= matureAccountYears {
		baseScore *= lowPRFactor
		penalties = append(penalties, Penalty{Kind: PenaltyLowPRCount, Factor: lowPRFactor})
	}

	// Step 6: low review count for a mature account.
	if c.TotalReviews < lowReviewThreshold && c.AccountAgeYears >= matureAccountYears {
		baseScore *= lowReviewFactor
		penalties = append(penalties, Penalty{Kind: PenaltyLowReviewActivity, Factor: lowReviewFactor})
	}

	// Step 7: review culture bonus. Bonuses are not recorded in the
	// penalty list.
	if float64(c.TotalReviews) > float64(c.TotalPRs)/2 && c.TotalReviews > 30 {
		baseScore *= reviewCultureBonus
	}

	// Step 8: consistency bonus rewards balance across all four activity
	// types over volume in any single one.
	consistencyBonus := consistencyBonusFor(c)
	rawScore := int(math.Round(baseScore * consistencyBonus))

	// Steps 9-10: display clamp and tier lookup against the raw score.
	displayScore := rawScore
	if displayScore > maxDisplayScore {
		displayScore = maxDisplayScore
	}

	tier, badge := TierFor(rawScore)

	return Result{
		Score:            rawScore,
		DisplayScore:     displayScore,
		Tier:             tier,
		EliteBadge:       badge,
		WeightedActivity: weightedActivity,
		ConsistencyBonus: consistencyBonus,
		Breakdown:        breakdown,
		Penalties:        penalties,
	}
}

// consistencyBonusFor counts how many activity categories show sustained
// engagement and maps that to a multiplier: all four 1.15, exactly three
// 1.05, otherwise 1.0.
func consistencyBonusFor(c ActivityCounters) float64 {
	held := 0
	if c.TotalCommits > 0 {
		held++
	}
	if c.TotalPRs > 10 {
		held++
	}
	if c.TotalIssuesClosed > 5 {
		held++
	}
	if c.TotalReviews > 10 {
		held++
	}

	switch held {
	case 4:
		return 1.15
	case 3:
		return 1.05
	default:
		return 1.0
	}
}
