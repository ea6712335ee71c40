package database

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// DB represents the database connection with pooling
type DB struct {
	*sql.DB
	pool     *ConnectionPool
	prepared map[string]*sql.Stmt
	mutex    sync.RWMutex
}

// ConnectionPool manages database connection pooling
type ConnectionPool struct {
	db           *sql.DB
	maxOpenConns int
	maxIdleConns int
	maxLifetime  time.Duration
}

// NewConnectionPool creates a new database connection pool
func NewConnectionPool(db *sql.DB, maxOpen, maxIdle int, maxLifetime time.Duration) *ConnectionPool {
	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(maxIdle)
	db.SetConnMaxLifetime(maxLifetime)

	return &ConnectionPool{
		db:           db,
		maxOpenConns: maxOpen,
		maxIdleConns: maxIdle,
		maxLifetime:  maxLifetime,
	}
}

// GetStats returns connection pool statistics
func (cp *ConnectionPool) GetStats() map[string]interface{} {
	stats := cp.db.Stats()

	return map[string]interface{}{
		"open_connections":     stats.OpenConnections,
		"in_use":               stats.InUse,
		"idle":                 stats.Idle,
		"max_open_connections": cp.maxOpenConns,
		"max_idle_connections": cp.maxIdleConns,
		"max_lifetime_seconds": cp.maxLifetime.Seconds(),
		"wait_count":           stats.WaitCount,
		"wait_duration_ms":     stats.WaitDuration.Milliseconds(),
		"max_idle_closed":      stats.MaxIdleClosed,
		"max_lifetime_closed":  stats.MaxLifetimeClosed,
	}
}

// NewDB creates a new database connection with optimized pooling
func NewDB(dataDir string) (*DB, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, "gitpilot.db")

	connStr := fmt.Sprintf("%s?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=foreign_keys(ON)&_pragma=busy_timeout(5000)", dbPath)

	return open(connStr)
}

// NewMemoryDB opens a named in-memory database, used by tests. The
// shared cache keeps all pooled connections on the same database.
func NewMemoryDB(name string) (*DB, error) {
	return open(fmt.Sprintf("file:%s?mode=memory&cache=shared", name))
}

func open(connStr string) (*DB, error) {
	db, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	pool := NewConnectionPool(db, 25, 5, 5*time.Minute)

	database := &DB{
		DB:       db,
		pool:     pool,
		prepared: make(map[string]*sql.Stmt),
	}

	if err := database.migrate(); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	if err := database.initPreparedStatements(); err != nil {
		return nil, fmt.Errorf("failed to initialize prepared statements: %w", err)
	}

	slog.Info("Database initialized with connection pooling",
		"max_open_conns", pool.maxOpenConns,
		"max_idle_conns", pool.maxIdleConns,
		"max_lifetime", pool.maxLifetime)

	return database, nil
}

// migrate creates the necessary tables
func (db *DB) migrate() error {
	queries := []string{
		// Tracked projects with their latest health score embedded.
		// A NULL last_calculated_date means the score has never been
		// computed. previous_scores holds the rotation history as JSON.
		`CREATE TABLE IF NOT EXISTS projects (
			id TEXT PRIMARY KEY,
			owner TEXT NOT NULL,
			repo TEXT NOT NULL,
			name TEXT NOT NULL,
			upvote_count INTEGER NOT NULL DEFAULT 0,
			total_score INTEGER NOT NULL DEFAULT 0,
			activity_momentum INTEGER NOT NULL DEFAULT 0,
			maintenance_quality INTEGER NOT NULL DEFAULT 0,
			community_trust INTEGER NOT NULL DEFAULT 0,
			freshness INTEGER NOT NULL DEFAULT 0,
			last_calculated_date TEXT,
			previous_scores TEXT NOT NULL DEFAULT '[]',
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL,
			UNIQUE(owner, repo)
		)`,

		// Impact score snapshots feeding the leaderboard
		`CREATE TABLE IF NOT EXISTS impact_snapshots (
			id TEXT PRIMARY KEY,
			username_hash TEXT NOT NULL UNIQUE,
			username TEXT NOT NULL,
			score INTEGER NOT NULL,
			display_score INTEGER NOT NULL,
			tier TEXT NOT NULL,
			elite_badge TEXT,
			weighted_activity REAL NOT NULL,
			consistency_bonus REAL NOT NULL,
			penalties TEXT NOT NULL DEFAULT '[]',
			is_public BOOLEAN DEFAULT FALSE,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		)`,

		// Indexes for performance
		`CREATE INDEX IF NOT EXISTS idx_projects_owner_repo ON projects(owner, repo)`,
		`CREATE INDEX IF NOT EXISTS idx_projects_total_score ON projects(total_score DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_impact_snapshots_hash ON impact_snapshots(username_hash)`,
		`CREATE INDEX IF NOT EXISTS idx_impact_snapshots_score ON impact_snapshots(score DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_impact_snapshots_updated ON impact_snapshots(updated_at DESC)`,
	}

	for _, query := range queries {
		if _, err := db.Exec(query); err != nil {
			return fmt.Errorf("failed to execute migration: %w", err)
		}
	}

	return nil
}

// initPreparedStatements initializes frequently used prepared statements
func (db *DB) initPreparedStatements() error {
	statements := map[string]string{
		"get_project_by_id": `SELECT id, owner, repo, name, upvote_count,
			total_score, activity_momentum, maintenance_quality, community_trust, freshness,
			last_calculated_date, previous_scores, created_at, updated_at
			FROM projects WHERE id = ?`,

		"get_project_by_repo": `SELECT id, owner, repo, name, upvote_count,
			total_score, activity_momentum, maintenance_quality, community_trust, freshness,
			last_calculated_date, previous_scores, created_at, updated_at
			FROM projects WHERE owner = ? AND repo = ?`,

		"upsert_snapshot": `INSERT INTO impact_snapshots (
			id, username_hash, username, score, display_score, tier, elite_badge,
			weighted_activity, consistency_bonus, penalties, is_public, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(username_hash) DO UPDATE SET
			score = excluded.score,
			display_score = excluded.display_score,
			tier = excluded.tier,
			elite_badge = excluded.elite_badge,
			weighted_activity = excluded.weighted_activity,
			consistency_bonus = excluded.consistency_bonus,
			penalties = excluded.penalties,
			is_public = excluded.is_public,
			updated_at = excluded.updated_at`,

		"get_top_snapshots": `SELECT id, username_hash, username, score, display_score,
			tier, elite_badge, weighted_activity, consistency_bonus, penalties,
			is_public, created_at, updated_at
			FROM impact_snapshots WHERE is_public = TRUE
			ORDER BY score DESC, updated_at ASC LIMIT ?`,
	}

	db.mutex.Lock()
	defer db.mutex.Unlock()

	for name, query := range statements {
		stmt, err := db.Prepare(query)
		if err != nil {
			return fmt.Errorf("failed to prepare statement %s: %w", name, err)
		}
		db.prepared[name] = stmt

		slog.Debug("Prepared statement initialized", "name", name)
	}

	return nil
}

// GetPreparedStatement retrieves a prepared statement
func (db *DB) GetPreparedStatement(name string) (*sql.Stmt, error) {
	db.mutex.RLock()
	defer db.mutex.RUnlock()

	stmt, exists := db.prepared[name]
	if !exists {
		return nil, fmt.Errorf("prepared statement %s not found", name)
	}

	return stmt, nil
}

// GetPoolStats returns database connection pool statistics
func (db *DB) GetPoolStats() map[string]interface{} {
	return db.pool.GetStats()
}

// Close closes the database connection and prepared statements
func (db *DB) Close() error {
	db.mutex.Lock()
	defer db.mutex.Unlock()

	for name, stmt := range db.prepared {
		if err := stmt.Close(); err != nil {
			slog.Warn("Failed to close prepared statement", "name", name, "error", err)
		}
	}

	db.prepared = make(map[string]*sql.Stmt)

	return db.DB.Close()
}
