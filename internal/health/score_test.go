package health

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/wekraft/gitpilot/internal/errors"
)

var testDate = time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)

func TestCalculateProjectHealthActiveRepo(t *testing.T) {
	// Regression baseline for a healthy, actively maintained repo.
	signals := RepoActivitySignals{
		CommitsLast60Days:   90,
		TotalPRs:            40,
		MergedPRs:           30,
		OpenIssues:          10,
		ClosedIssues:        30,
		Stars:               120,
		Forks:               30,
		Upvotes:             15,
		DaysSinceLastCommit: 7,
		HasReadme:           true,
		HasLicense:          true,
	}

	score := CalculateProjectHealth(signals, testDate)

	assert.Equal(t, 30, score.ActivityMomentum)
	assert.Equal(t, 28, score.MaintenanceQuality)
	assert.Equal(t, 20, score.CommunityTrust)
	assert.Equal(t, 8, score.Freshness)
	assert.Equal(t, 86, score.TotalScore)
	assert.Equal(t, "2026-09-01", score.LastCalculatedDate)
	assert.Empty(t, score.PreviousScores)
}

func TestCalculateProjectHealthDormantRepo(t *testing.T) {
	signals := RepoActivitySignals{
		DaysSinceLastCommit: 365,
	}

	score := CalculateProjectHealth(signals, testDate)

	assert.Equal(t, 0, score.ActivityMomentum)
	// No issue history keeps the closure ratio at the neutral prior.
	assert.Equal(t, 7, score.MaintenanceQuality)
	assert.Equal(t, 0, score.CommunityTrust)
	assert.Equal(t, 0, score.Freshness)
	assert.Equal(t, 7, score.TotalScore)
}

func TestCalculateProjectHealthSubScoreBounds(t *testing.T) {
	tests := []struct {
		name    string
		signals RepoActivitySignals
	}{
		{
			name:    "all zero signals",
			signals: RepoActivitySignals{},
		},
		{
			name: "extreme activity saturates momentum and freshness",
			signals: RepoActivitySignals{
				CommitsLast60Days:   100000,
				DaysSinceLastCommit: 0,
			},
		},
		{
			name: "viral repo saturates community trust",
			signals: RepoActivitySignals{
				Stars:   500000,
				Forks:   80000,
				Upvotes: 20000,
			},
		},
		{
			name: "perfect maintenance saturates quality",
			signals: RepoActivitySignals{
				TotalPRs:     100,
				MergedPRs:    100,
				ClosedIssues: 50,
				HasReadme:    true,
				HasLicense:   true,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			score := CalculateProjectHealth(tt.signals, testDate)

			assert.GreaterOrEqual(t, score.ActivityMomentum, 0)
			assert.LessOrEqual(t, score.ActivityMomentum, maxActivityMomentum)
			assert.GreaterOrEqual(t, score.MaintenanceQuality, 0)
			assert.LessOrEqual(t, score.MaintenanceQuality, maxMaintenanceQuality)
			assert.GreaterOrEqual(t, score.CommunityTrust, 0)
			assert.LessOrEqual(t, score.CommunityTrust, maxCommunityTrust)
			assert.GreaterOrEqual(t, score.Freshness, 0)
			assert.LessOrEqual(t, score.Freshness, maxFreshness)

			total := score.ActivityMomentum + score.MaintenanceQuality +
				score.CommunityTrust + score.Freshness
			assert.Equal(t, total, score.TotalScore)
			assert.LessOrEqual(t, score.TotalScore, 100)
		})
	}
}

func TestFreshnessDecay(t *testing.T) {
	fresh := RepoActivitySignals{DaysSinceLastCommit: 0}
	stale := RepoActivitySignals{DaysSinceLastCommit: 300}

	assert.Equal(t, maxFreshness, freshness(fresh))
	assert.Equal(t, 0, freshness(stale))

	// Strictly fresher repos never score lower.
	prev := maxFreshness + 1
	for days := 0.0; days <= 120; days += 5 {
		f := freshness(RepoActivitySignals{DaysSinceLastCommit: days})
		assert.LessOrEqual(t, f, prev)
		prev = f
	}
}

func TestDecayWeight(t *testing.T) {
	assert.Equal(t, 1.0, DecayWeight(0, 30))
	assert.InDelta(t, 0.3678794, DecayWeight(30, 30), 1e-6)
	assert.Equal(t, 0.0, DecayWeight(10, 0))
	assert.Equal(t, 0.0, DecayWeight(10, -5))
}

func TestRepoActivitySignalsValidate(t *testing.T) {
	tests := []struct {
		name    string
		signals RepoActivitySignals
		wantErr bool
	}{
		{
			name:    "zero signals are valid",
			signals: RepoActivitySignals{},
			wantErr: false,
		},
		{
			name: "typical signals are valid",
			signals: RepoActivitySignals{
				CommitsLast60Days:   20,
				TotalPRs:            10,
				MergedPRs:           8,
				DaysSinceLastCommit: 3,
			},
			wantErr: false,
		},
		{
			name:    "negative stars rejected",
			signals: RepoActivitySignals{Stars: -1},
			wantErr: true,
		},
		{
			name:    "negative staleness rejected",
			signals: RepoActivitySignals{DaysSinceLastCommit: -2},
			wantErr: true,
		},
		{
			name:    "merged exceeding total rejected",
			signals: RepoActivitySignals{TotalPRs: 5, MergedPRs: 6},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.signals.Validate()

			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}

			require.Error(t, err)
			appErr := apperrors.ToAppError(err)
			assert.Equal(t, apperrors.CategoryValidation, appErr.Category)
		})
	}
}
