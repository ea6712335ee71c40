package database

import (
	"fmt"
	"time"

	"github.com/wekraft/gitpilot/internal/health"
)

// RecalculationInterval is how long a stored health score stays fresh.
// Scores are recomputed at most once per interval unless forced.
const RecalculationInterval = 3 * 24 * time.Hour

// ProjectService provides business logic for project health tracking
type ProjectService struct {
	repo     *Repository
	interval time.Duration
}

// NewProjectService creates a new project service
func NewProjectService(repo *Repository) *ProjectService {
	return &ProjectService{
		repo:     repo,
		interval: RecalculationInterval,
	}
}

// Register finds or creates the tracked project for a repository
func (s *ProjectService) Register(owner, repo, name string) (*Project, error) {
	return s.repo.GetOrCreateProject(owner, repo, name)
}

// Get retrieves a project by ID
func (s *ProjectService) Get(id string) (*Project, error) {
	return s.repo.GetProject(id)
}

// List returns tracked projects ordered by health score
func (s *ProjectService) List(limit int) ([]*Project, error) {
	return s.repo.ListProjects(limit)
}

// Delete removes a project along with its score history
func (s *ProjectService) Delete(id string) error {
	return s.repo.DeleteProject(id)
}

// NeedsRecalculation reports whether a project's health score is stale.
// A project with no score yet always needs one.
func (s *ProjectService) NeedsRecalculation(p *Project, now time.Time) bool {
	if p.HealthScore == nil {
		return true
	}

	last, err := time.Parse(health.DateLayout, p.HealthScore.LastCalculatedDate)
	if err != nil {
		return true
	}

	return now.Sub(last) >= s.interval
}

// RecordHealth computes and persists a fresh health score for a project
// from its activity signals, rotating the old score into the history
func (s *ProjectService) RecordHealth(projectID string, signals health.RepoActivitySignals, now time.Time) (*health.ProjectHealthScore, error) {
	if err := signals.Validate(); err != nil {
		return nil, err
	}

	next := health.CalculateProjectHealth(signals, now)

	saved, err := s.repo.SaveHealthScore(projectID, next)
	if err != nil {
		return nil, fmt.Errorf("failed to record health score: %w", err)
	}

	return saved, nil
}
