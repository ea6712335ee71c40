package database

import (
	"database/sql"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wekraft/gitpilot/internal/health"
)

func newTestRepo(t *testing.T) *Repository {
	t.Helper()

	db, err := NewMemoryDB(uuid.New().String())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	return NewRepository(db)
}

func TestGetOrCreateProject(t *testing.T) {
	repo := newTestRepo(t)

	created, err := repo.GetOrCreateProject("wekraft", "gitpilot", "GitPilot")
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, "wekraft", created.Owner)
	assert.Equal(t, "GitPilot", created.Name)
	assert.Nil(t, created.HealthScore)

	// Second call returns the same project
	again, err := repo.GetOrCreateProject("wekraft", "gitpilot", "GitPilot")
	require.NoError(t, err)
	assert.Equal(t, created.ID, again.ID)
}

func TestGetOrCreateProjectDefaultsName(t *testing.T) {
	repo := newTestRepo(t)

	created, err := repo.GetOrCreateProject("wekraft", "gitpilot", "")
	require.NoError(t, err)
	assert.Equal(t, "gitpilot", created.Name)
}

func TestSaveHealthScoreRotatesHistory(t *testing.T) {
	repo := newTestRepo(t)

	project, err := repo.GetOrCreateProject("wekraft", "gitpilot", "")
	require.NoError(t, err)

	first := health.ProjectHealthScore{
		TotalScore:         60,
		ActivityMomentum:   25,
		MaintenanceQuality: 20,
		CommunityTrust:     10,
		Freshness:          5,
		LastCalculatedDate: "2026-08-01",
	}
	saved, err := repo.SaveHealthScore(project.ID, first)
	require.NoError(t, err)
	assert.Equal(t, 60, saved.TotalScore)
	assert.Empty(t, saved.PreviousScores)

	second := first
	second.TotalScore = 75
	second.LastCalculatedDate = "2026-08-04"
	saved, err = repo.SaveHealthScore(project.ID, second)
	require.NoError(t, err)
	require.Len(t, saved.PreviousScores, 1)
	assert.Equal(t, health.PreviousScore{TotalScore: 60, CalculatedDate: "2026-08-01"}, saved.PreviousScores[0])

	third := first
	third.TotalScore = 80
	third.LastCalculatedDate = "2026-08-07"
	saved, err = repo.SaveHealthScore(project.ID, third)
	require.NoError(t, err)
	require.Len(t, saved.PreviousScores, 2)
	assert.Equal(t, 75, saved.PreviousScores[0].TotalScore)
	assert.Equal(t, 60, saved.PreviousScores[1].TotalScore)

	// Cap holds across a fourth calculation
	fourth := first
	fourth.TotalScore = 90
	fourth.LastCalculatedDate = "2026-08-10"
	saved, err = repo.SaveHealthScore(project.ID, fourth)
	require.NoError(t, err)
	require.Len(t, saved.PreviousScores, 2)
	assert.Equal(t, 80, saved.PreviousScores[0].TotalScore)
	assert.Equal(t, 75, saved.PreviousScores[1].TotalScore)

	// Reload from storage and verify the history round-trips
	loaded, err := repo.GetProject(project.ID)
	require.NoError(t, err)
	require.NotNil(t, loaded.HealthScore)
	assert.Equal(t, 90, loaded.HealthScore.TotalScore)
	assert.Equal(t, "2026-08-10", loaded.HealthScore.LastCalculatedDate)
	require.Len(t, loaded.HealthScore.PreviousScores, 2)
	assert.Equal(t, 80, loaded.HealthScore.PreviousScores[0].TotalScore)
}

func TestDeleteProjectRemovesHistory(t *testing.T) {
	repo := newTestRepo(t)

	project, err := repo.GetOrCreateProject("wekraft", "gitpilot", "")
	require.NoError(t, err)

	_, err = repo.SaveHealthScore(project.ID, health.ProjectHealthScore{
		TotalScore:         50,
		LastCalculatedDate: "2026-08-01",
	})
	require.NoError(t, err)

	require.NoError(t, repo.DeleteProject(project.ID))

	_, err = repo.GetProject(project.ID)
	assert.ErrorIs(t, err, sql.ErrNoRows)

	// Deleting again reports not found
	assert.ErrorIs(t, repo.DeleteProject(project.ID), sql.ErrNoRows)
}

func TestSetUpvotes(t *testing.T) {
	repo := newTestRepo(t)

	project, err := repo.GetOrCreateProject("wekraft", "gitpilot", "")
	require.NoError(t, err)

	require.NoError(t, repo.SetUpvotes(project.ID, 42))

	loaded, err := repo.GetProject(project.ID)
	require.NoError(t, err)
	assert.Equal(t, 42, loaded.UpvoteCount)
}

func TestImpactSnapshotUpsert(t *testing.T) {
	repo := newTestRepo(t)

	now := time.Now()
	snap := &ImpactSnapshot{
		ID:               uuid.New().String(),
		UsernameHash:     "abc123",
		Username:         "octocat",
		Score:            120,
		DisplayScore:     100,
		Tier:             "Passionate / Experienced Dev",
		WeightedActivity: 2100,
		ConsistencyBonus: 1.05,
		IsPublic:         true,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	require.NoError(t, repo.SaveImpactSnapshot(snap))

	// Refresh with a higher score keeps one row per developer
	snap2 := *snap
	snap2.ID = uuid.New().String()
	snap2.Score = 155
	snap2.Tier = "Elite Developer"
	snap2.EliteBadge = "Top 1% • Exceptional"
	snap2.UpdatedAt = now.Add(time.Hour)
	require.NoError(t, repo.SaveImpactSnapshot(&snap2))

	loaded, err := repo.GetImpactSnapshot("abc123")
	require.NoError(t, err)
	assert.Equal(t, 155, loaded.Score)
	assert.Equal(t, "Top 1% • Exceptional", loaded.EliteBadge)

	tops, err := repo.GetTopImpactSnapshots(10)
	require.NoError(t, err)
	require.Len(t, tops, 1)
	assert.Equal(t, "octocat", tops[0].Username)
}

func TestGetTopImpactSnapshotsOrderingAndVisibility(t *testing.T) {
	repo := newTestRepo(t)

	now := time.Now()
	scores := map[string]int{"alice": 90, "bob": 140, "carol": 60}
	for name, score := range scores {
		require.NoError(t, repo.SaveImpactSnapshot(&ImpactSnapshot{
			ID:           uuid.New().String(),
			UsernameHash: "hash-" + name,
			Username:     name,
			Score:        score,
			DisplayScore: score,
			Tier:         "Regular Developer",
			IsPublic:     true,
			CreatedAt:    now,
			UpdatedAt:    now,
		}))
	}
	// Private snapshots never appear on the board
	require.NoError(t, repo.SaveImpactSnapshot(&ImpactSnapshot{
		ID:           uuid.New().String(),
		UsernameHash: "hash-dave",
		Username:     "dave",
		Score:        200,
		DisplayScore: 100,
		Tier:         "Elite Developer",
		IsPublic:     false,
		CreatedAt:    now,
		UpdatedAt:    now,
	}))

	tops, err := repo.GetTopImpactSnapshots(10)
	require.NoError(t, err)
	require.Len(t, tops, 3)
	assert.Equal(t, "bob", tops[0].Username)
	assert.Equal(t, "alice", tops[1].Username)
	assert.Equal(t, "carol", tops[2].Username)
}

func TestProjectServiceCadence(t *testing.T) {
	repo := newTestRepo(t)
	service := NewProjectService(repo)

	project, err := service.Register("wekraft", "gitpilot", "")
	require.NoError(t, err)

	now := time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)

	// No score yet: always stale
	assert.True(t, service.NeedsRecalculation(project, now))

	score, err := service.RecordHealth(project.ID, health.RepoActivitySignals{
		CommitsLast60Days:   30,
		DaysSinceLastCommit: 2,
		HasReadme:           true,
	}, now)
	require.NoError(t, err)
	assert.Equal(t, "2026-09-01", score.LastCalculatedDate)

	project, err = service.Get(project.ID)
	require.NoError(t, err)

	assert.False(t, service.NeedsRecalculation(project, now.Add(24*time.Hour)))
	assert.False(t, service.NeedsRecalculation(project, now.Add(2*24*time.Hour)))
	assert.True(t, service.NeedsRecalculation(project, now.Add(4*24*time.Hour)))
}

func TestProjectServiceRejectsInvalidSignals(t *testing.T) {
	repo := newTestRepo(t)
	service := NewProjectService(repo)

	project, err := service.Register("wekraft", "gitpilot", "")
	require.NoError(t, err)

	_, err = service.RecordHealth(project.ID, health.RepoActivitySignals{Stars: -1}, time.Now())
	assert.Error(t, err)
}
