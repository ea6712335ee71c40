package database

import (
	"time"

	"github.com/google/uuid"

	"github.com/wekraft/gitpilot/internal/health"
)

// Project represents a tracked repository and its latest health score.
// HealthScore is nil until the first calculation runs.
type Project struct {
	ID          string                     `json:"id" db:"id"`
	Owner       string                     `json:"owner" db:"owner"`
	Repo        string                     `json:"repo" db:"repo"`
	Name        string                     `json:"name" db:"name"`
	UpvoteCount int                        `json:"upvote_count" db:"upvote_count"`
	HealthScore *health.ProjectHealthScore `json:"health_score,omitempty"`
	CreatedAt   time.Time                  `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time                  `json:"updated_at" db:"updated_at"`
}

// ImpactSnapshot is a stored impact score for a developer, keyed by an
// anonymized username hash for the public leaderboard
type ImpactSnapshot struct {
	ID               string    `json:"id" db:"id"`
	UsernameHash     string    `json:"username_hash" db:"username_hash"`
	Username         string    `json:"username" db:"username"`
	Score            int       `json:"score" db:"score"`
	DisplayScore     int       `json:"display_score" db:"display_score"`
	Tier             string    `json:"tier" db:"tier"`
	EliteBadge       string    `json:"elite_badge,omitempty" db:"elite_badge"`
	WeightedActivity float64   `json:"weighted_activity" db:"weighted_activity"`
	ConsistencyBonus float64   `json:"consistency_bonus" db:"consistency_bonus"`
	PenaltiesJSON    string    `json:"-" db:"penalties"`
	IsPublic         bool      `json:"is_public" db:"is_public"`
	CreatedAt        time.Time `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time `json:"updated_at" db:"updated_at"`
}

// NewProject creates a new project with a generated ID
func NewProject(owner, repo, name string) *Project {
	now := time.Now()
	if name == "" {
		name = repo
	}
	return &Project{
		ID:        uuid.New().String(),
		Owner:     owner,
		Repo:      repo,
		Name:      name,
		CreatedAt: now,
		UpdatedAt: now,
	}
}
