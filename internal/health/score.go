package health

import (
	"fmt"
	"math"
	"time"

	"github.com/wekraft/gitpilot/internal/errors"
)

// Sub-score caps. They sum to 100, so the composite is bounded by
// construction.
const (
	maxActivityMomentum   = 35
	maxMaintenanceQuality = 35
	maxCommunityTrust     = 20
	maxFreshness          = 10
)

// Tuning constants for the sub-score curves.
const (
	velocitySaturation = 30.0 // commits/60d at which momentum flattens
	recencyTau         = 14.0 // days, momentum recency component
	freshnessTau       = 30.0 // days, freshness decay horizon

	mergeRateWeight  = 16.0
	issueRatioWeight = 14.0
	docSignalWeight  = 2.5 // per doc signal (README, LICENSE)

	starsLogWeight   = 9.0
	forksLogWeight   = 6.0
	upvotesLogWeight = 5.0
)

// DateLayout is the calendar-date format used for score timestamps.
const DateLayout = "2006-01-02"

// RepoActivitySignals holds the repository activity gathered from GitHub
// and the platform, the input to the health calculation.
type RepoActivitySignals struct {
	CommitsLast60Days   int     `json:"commits_last_60_days"`
	TotalPRs            int     `json:"total_prs"`
	MergedPRs           int     `json:"merged_prs"`
	OpenIssues          int     `json:"open_issues"`
	ClosedIssues        int     `json:"closed_issues"`
	Stars               int     `json:"stars"`
	Forks               int     `json:"forks"`
	Upvotes             int     `json:"upvotes"`
	DaysSinceLastCommit float64 `json:"days_since_last_commit"`
	HasReadme           bool    `json:"has_readme"`
	HasLicense          bool    `json:"has_license"`
}

// Validate rejects malformed signals at the service boundary.
func (s RepoActivitySignals) Validate() error {
	fieldErrors := make(map[string]string)

	counts := map[string]int{
		"commits_last_60_days": s.CommitsLast60Days,
		"total_prs":            s.TotalPRs,
		"merged_prs":           s.MergedPRs,
		"open_issues":          s.OpenIssues,
		"closed_issues":        s.ClosedIssues,
		"stars":                s.Stars,
		"forks":                s.Forks,
		"upvotes":              s.Upvotes,
	}
	for field, v := range counts {
		if v < 0 {
			fieldErrors[field] = fmt.Sprintf("must be non-negative, got %d", v)
		}
	}

	switch {
	case math.IsNaN(s.DaysSinceLastCommit) || math.IsInf(s.DaysSinceLastCommit, 0):
		fieldErrors["days_since_last_commit"] = "must be finite"
	case s.DaysSinceLastCommit < 0:
		fieldErrors["days_since_last_commit"] = fmt.Sprintf("must be non-negative, got %g", s.DaysSinceLastCommit)
	}

	if s.MergedPRs > s.TotalPRs {
		fieldErrors["merged_prs"] = "cannot exceed total_prs"
	}

	if len(fieldErrors) > 0 {
		return errors.NewValidationError("invalid repo activity signals", fieldErrors)
	}
	return nil
}

// PreviousScore is one retained history entry.
type PreviousScore struct {
	TotalScore     int    `json:"total_score"`
	CalculatedDate string `json:"calculated_date"`
}

// ProjectHealthScore is the composite health value object embedded 1:1 in a
// project. TotalScore is always the sum of the four sub-scores.
type ProjectHealthScore struct {
	TotalScore         int             `json:"total_score"`
	ActivityMomentum   int             `json:"activity_momentum"`
	MaintenanceQuality int             `json:"maintenance_quality"`
	CommunityTrust     int             `json:"community_trust"`
	Freshness          int             `json:"freshness"`
	LastCalculatedDate string          `json:"last_calculated_date"`
	PreviousScores     []PreviousScore `json:"previous_scores,omitempty"`
}

// CalculateProjectHealth blends repository activity signals into a 0-100
// composite with four independently bounded sub-scores. Pure; the caller
// persists the result.
func CalculateProjectHealth(s RepoActivitySignals, today time.Time) ProjectHealthScore {
	momentum := activityMomentum(s)
	maintenance := maintenanceQuality(s)
	trust := communityTrust(s)
	fresh := freshness(s)

	return ProjectHealthScore{
		TotalScore:         momentum + maintenance + trust + fresh,
		ActivityMomentum:   momentum,
		MaintenanceQuality: maintenance,
		CommunityTrust:     trust,
		Freshness:          fresh,
		LastCalculatedDate: today.Format(DateLayout),
	}
}

// activityMomentum rewards recent commit volume and recency. The velocity
// term saturates so a burst of commits cannot dominate the composite.
func activityMomentum(s RepoActivitySignals) int {
	velocity := 25.0 * (1.0 - math.Exp(-float64(s.CommitsLast60Days)/velocitySaturation))
	recency := 10.0 * DecayWeight(s.DaysSinceLastCommit, recencyTau)
	return clampRound(velocity+recency, maxActivityMomentum)
}

// maintenanceQuality rewards a high PR merge rate, a high issue closure
// ratio, and the presence of basic documentation.
func maintenanceQuality(s RepoActivitySignals) int {
	mergeRate := float64(s.MergedPRs) / math.Max(float64(s.TotalPRs), 1)

	// Neutral prior when the repo has no issue history at all.
	issueRatio := 0.5
	if total := s.OpenIssues + s.ClosedIssues; total > 0 {
		issueRatio = float64(s.ClosedIssues) / float64(total)
	}

	docs := 0.0
	if s.HasReadme {
		docs += docSignalWeight
	}
	if s.HasLicense {
		docs += docSignalWeight
	}

	return clampRound(mergeRateWeight*mergeRate+issueRatioWeight*issueRatio+docs, maxMaintenanceQuality)
}

// communityTrust scales logarithmically so very popular repositories get
// diminishing returns instead of unbounded dominance.
func communityTrust(s RepoActivitySignals) int {
	t := starsLogWeight*math.Log10(float64(s.Stars)+1) +
		forksLogWeight*math.Log10(float64(s.Forks)+1) +
		upvotesLogWeight*math.Log10(float64(s.Upvotes)+1)
	return clampRound(t, maxCommunityTrust)
}

// freshness decays toward 0 as the repository goes stale and saturates at
// the cap for very recent activity.
func freshness(s RepoActivitySignals) int {
	return clampRound(float64(maxFreshness)*DecayWeight(s.DaysSinceLastCommit, freshnessTau), maxFreshness)
}
