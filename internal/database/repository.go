package database

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/wekraft/gitpilot/internal/health"
)

// Repository handles database operations
type Repository struct {
	db *DB
}

// NewRepository creates a new repository
func NewRepository(db *DB) *Repository {
	return &Repository{db: db}
}

// GetOrCreateProject finds a project by owner/repo or registers it
func (r *Repository) GetOrCreateProject(owner, repo, name string) (*Project, error) {
	project, err := r.GetProjectByRepo(owner, repo)
	if err == nil {
		return project, nil
	}
	if err != sql.ErrNoRows {
		return nil, err
	}

	project = NewProject(owner, repo, name)
	_, err = r.db.Exec(`
		INSERT INTO projects (id, owner, repo, name, upvote_count, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, project.ID, project.Owner, project.Repo, project.Name, project.UpvoteCount,
		project.CreatedAt, project.UpdatedAt)

	if err != nil {
		return nil, fmt.Errorf("failed to create project: %w", err)
	}

	return project, nil
}

// GetProject retrieves a project by ID
func (r *Repository) GetProject(id string) (*Project, error) {
	stmt, err := r.db.GetPreparedStatement("get_project_by_id")
	if err != nil {
		return nil, err
	}
	return scanProject(stmt.QueryRow(id))
}

// GetProjectByRepo retrieves a project by its owner and repo name
func (r *Repository) GetProjectByRepo(owner, repo string) (*Project, error) {
	stmt, err := r.db.GetPreparedStatement("get_project_by_repo")
	if err != nil {
		return nil, err
	}
	return scanProject(stmt.QueryRow(owner, repo))
}

// ListProjects returns projects ordered by health score
func (r *Repository) ListProjects(limit int) ([]*Project, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := r.db.Query(`
		SELECT id, owner, repo, name, upvote_count,
			total_score, activity_momentum, maintenance_quality, community_trust, freshness,
			last_calculated_date, previous_scores, created_at, updated_at
		FROM projects
		ORDER BY total_score DESC, updated_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	defer rows.Close()

	var projects []*Project
	for rows.Next() {
		project, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		projects = append(projects, project)
	}

	return projects, rows.Err()
}

// DeleteProject removes a project and its embedded score history
func (r *Repository) DeleteProject(id string) error {
	res, err := r.db.Exec(`DELETE FROM projects WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete project: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return sql.ErrNoRows
	}

	return nil
}

// SetUpvotes updates a project's upvote count
func (r *Repository) SetUpvotes(id string, count int) error {
	res, err := r.db.Exec(`
		UPDATE projects SET upvote_count = ?, updated_at = ? WHERE id = ?
	`, count, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to set upvotes: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return sql.ErrNoRows
	}

	return nil
}

// SaveHealthScore stores a freshly calculated score for a project,
// rotating the previous score into the bounded history. The read and
// write happen inside one transaction so concurrent recalculations
// cannot interleave their history updates.
func (r *Repository) SaveHealthScore(projectID string, next health.ProjectHealthScore) (*health.ProjectHealthScore, error) {
	tx, err := r.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var (
		total, momentum, maintenance, community, freshness int
		lastDate                                           sql.NullString
		prevJSON                                           string
	)
	err = tx.QueryRow(`
		SELECT total_score, activity_momentum, maintenance_quality, community_trust, freshness,
			last_calculated_date, previous_scores
		FROM projects WHERE id = ?
	`, projectID).Scan(&total, &momentum, &maintenance, &community, &freshness, &lastDate, &prevJSON)
	if err != nil {
		return nil, fmt.Errorf("failed to load current score: %w", err)
	}

	var prev *health.ProjectHealthScore
	if lastDate.Valid {
		prev = &health.ProjectHealthScore{
			TotalScore:         total,
			ActivityMomentum:   momentum,
			MaintenanceQuality: maintenance,
			CommunityTrust:     community,
			Freshness:          freshness,
			LastCalculatedDate: lastDate.String,
		}
		if err := json.Unmarshal([]byte(prevJSON), &prev.PreviousScores); err != nil {
			return nil, fmt.Errorf("failed to decode score history: %w", err)
		}
	}

	rotated := health.Rotate(prev, next)

	historyJSON, err := json.Marshal(rotated.PreviousScores)
	if err != nil {
		return nil, fmt.Errorf("failed to encode score history: %w", err)
	}
	if rotated.PreviousScores == nil {
		historyJSON = []byte("[]")
	}

	_, err = tx.Exec(`
		UPDATE projects SET
			total_score = ?, activity_momentum = ?, maintenance_quality = ?,
			community_trust = ?, freshness = ?, last_calculated_date = ?,
			previous_scores = ?, updated_at = ?
		WHERE id = ?
	`, rotated.TotalScore, rotated.ActivityMomentum, rotated.MaintenanceQuality,
		rotated.CommunityTrust, rotated.Freshness, rotated.LastCalculatedDate,
		string(historyJSON), time.Now(), projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to save health score: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit health score: %w", err)
	}

	return &rotated, nil
}

// SaveImpactSnapshot inserts or refreshes a developer's snapshot
func (r *Repository) SaveImpactSnapshot(snap *ImpactSnapshot) error {
	stmt, err := r.db.GetPreparedStatement("upsert_snapshot")
	if err != nil {
		return err
	}

	if snap.PenaltiesJSON == "" {
		snap.PenaltiesJSON = "[]"
	}

	_, err = stmt.Exec(
		snap.ID, snap.UsernameHash, snap.Username, snap.Score, snap.DisplayScore,
		snap.Tier, snap.EliteBadge, snap.WeightedActivity, snap.ConsistencyBonus,
		snap.PenaltiesJSON, snap.IsPublic, snap.CreatedAt, snap.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save impact snapshot: %w", err)
	}

	return nil
}

// GetTopImpactSnapshots returns the highest public scores
func (r *Repository) GetTopImpactSnapshots(limit int) ([]*ImpactSnapshot, error) {
	stmt, err := r.db.GetPreparedStatement("get_top_snapshots")
	if err != nil {
		return nil, err
	}

	rows, err := stmt.Query(limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query top snapshots: %w", err)
	}
	defer rows.Close()

	var snapshots []*ImpactSnapshot
	for rows.Next() {
		var snap ImpactSnapshot
		var badge sql.NullString
		err := rows.Scan(
			&snap.ID, &snap.UsernameHash, &snap.Username, &snap.Score, &snap.DisplayScore,
			&snap.Tier, &badge, &snap.WeightedActivity, &snap.ConsistencyBonus,
			&snap.PenaltiesJSON, &snap.IsPublic, &snap.CreatedAt, &snap.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan snapshot: %w", err)
		}
		snap.EliteBadge = badge.String
		snapshots = append(snapshots, &snap)
	}

	return snapshots, rows.Err()
}

// CountHigherPublicScores returns how many public snapshots outscore
// the given score, which is that score's zero-based rank
func (r *Repository) CountHigherPublicScores(score int) (int, error) {
	var count int
	err := r.db.QueryRow(`
		SELECT COUNT(*) FROM impact_snapshots WHERE is_public = TRUE AND score > ?
	`, score).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count higher scores: %w", err)
	}
	return count, nil
}

// CountPublicSnapshots returns the number of snapshots on the board
func (r *Repository) CountPublicSnapshots() (int, error) {
	var count int
	err := r.db.QueryRow(`SELECT COUNT(*) FROM impact_snapshots WHERE is_public = TRUE`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count snapshots: %w", err)
	}
	return count, nil
}

// GetImpactSnapshot retrieves a snapshot by its anonymized hash
func (r *Repository) GetImpactSnapshot(usernameHash string) (*ImpactSnapshot, error) {
	var snap ImpactSnapshot
	var badge sql.NullString
	err := r.db.QueryRow(`
		SELECT id, username_hash, username, score, display_score, tier, elite_badge,
			weighted_activity, consistency_bonus, penalties, is_public, created_at, updated_at
		FROM impact_snapshots WHERE username_hash = ?
	`, usernameHash).Scan(
		&snap.ID, &snap.UsernameHash, &snap.Username, &snap.Score, &snap.DisplayScore,
		&snap.Tier, &badge, &snap.WeightedActivity, &snap.ConsistencyBonus,
		&snap.PenaltiesJSON, &snap.IsPublic, &snap.CreatedAt, &snap.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	snap.EliteBadge = badge.String

	return &snap, nil
}

// rowScanner covers *sql.Row and *sql.Rows
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanProject(row rowScanner) (*Project, error) {
	var p Project
	var (
		total, momentum, maintenance, community, freshness int
		lastDate                                           sql.NullString
		prevJSON                                           string
	)

	err := row.Scan(
		&p.ID, &p.Owner, &p.Repo, &p.Name, &p.UpvoteCount,
		&total, &momentum, &maintenance, &community, &freshness,
		&lastDate, &prevJSON, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if lastDate.Valid {
		score := &health.ProjectHealthScore{
			TotalScore:         total,
			ActivityMomentum:   momentum,
			MaintenanceQuality: maintenance,
			CommunityTrust:     community,
			Freshness:          freshness,
			LastCalculatedDate: lastDate.String,
		}
		if err := json.Unmarshal([]byte(prevJSON), &score.PreviousScores); err != nil {
			return nil, fmt.Errorf("failed to decode score history: %w", err)
		}
		p.HealthScore = score
	}

	return &p, nil
}
