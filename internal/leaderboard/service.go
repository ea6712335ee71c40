package leaderboard

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/montanaflynn/stats"

	"github.com/wekraft/gitpilot/internal/database"
	"github.com/wekraft/gitpilot/internal/scoring"
)

// Entry represents a ranked developer on the leaderboard
type Entry struct {
	Rank         int    `json:"rank"`
	UsernameHash string `json:"username_hash"`
	Username     string `json:"username"`
	Score        int    `json:"score"`
	DisplayScore int    `json:"display_score"`
	Tier         string `json:"tier"`
	EliteBadge   string `json:"elite_badge,omitempty"`
}

// ScoreDistribution summarizes the spread of public scores
type ScoreDistribution struct {
	Mean   float64 `json:"mean"`
	Median float64 `json:"median"`
	P90    float64 `json:"p90"`
	P99    float64 `json:"p99"`
}

// Response represents the response for leaderboard queries
type Response struct {
	Entries      []Entry            `json:"entries"`
	Total        int                `json:"total"`
	Distribution *ScoreDistribution `json:"distribution,omitempty"`
	GeneratedAt  time.Time          `json:"generated_at"`
}

// RankResult is a single developer's standing
type RankResult struct {
	Entry      Entry     `json:"entry"`
	Percentile float64   `json:"percentile"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Service handles leaderboard operations
type Service struct {
	repo  *database.Repository
	cache *Cache
}

// NewService creates a new leaderboard service
func NewService(repo *database.Repository) *Service {
	return &Service{
		repo:  repo,
		cache: NewCache(15 * time.Minute),
	}
}

// NewServiceWithCache creates a new leaderboard service with custom cache
func NewServiceWithCache(repo *database.Repository, cache *Cache) *Service {
	return &Service{
		repo:  repo,
		cache: cache,
	}
}

// HashUsername anonymizes a username for storage and lookup
func HashUsername(username string) string {
	hash := sha256.Sum256([]byte(strings.ToLower(username)))
	return hex.EncodeToString(hash[:])
}

// SaveScore stores an impact score snapshot for a developer
func (s *Service) SaveScore(username string, result scoring.Result, isPublic bool) error {
	penaltiesJSON, err := json.Marshal(result.Penalties)
	if err != nil {
		return fmt.Errorf("failed to marshal penalties: %w", err)
	}

	now := time.Now()
	snap := &database.ImpactSnapshot{
		ID:               uuid.New().String(),
		UsernameHash:     HashUsername(username),
		Username:         username,
		Score:            result.Score,
		DisplayScore:     result.DisplayScore,
		Tier:             string(result.Tier),
		EliteBadge:       result.EliteBadge,
		WeightedActivity: result.WeightedActivity,
		ConsistencyBonus: result.ConsistencyBonus,
		PenaltiesJSON:    string(penaltiesJSON),
		IsPublic:         isPublic,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	if err := s.repo.SaveImpactSnapshot(snap); err != nil {
		return err
	}

	// Stale rankings disappear with the next read
	s.cache.InvalidateAll()

	slog.Info("Impact snapshot saved to leaderboard",
		"username_hash", snap.UsernameHash[:8]+"...",
		"score", result.Score,
		"tier", result.Tier,
	)

	return nil
}

// GetLeaderboard retrieves the top public scores with a distribution summary
func (s *Service) GetLeaderboard(limit int) (*Response, error) {
	if limit <= 0 {
		limit = 50
	}
	if limit > 100 {
		limit = 100
	}

	if cached, found := s.cache.GetLeaderboard(limit); found {
		return cached, nil
	}

	snapshots, err := s.repo.GetTopImpactSnapshots(limit)
	if err != nil {
		return nil, fmt.Errorf("failed to load leaderboard: %w", err)
	}

	entries := make([]Entry, 0, len(snapshots))
	scores := make([]float64, 0, len(snapshots))
	for i, snap := range snapshots {
		entries = append(entries, Entry{
			Rank:         i + 1,
			UsernameHash: snap.UsernameHash,
			Username:     snap.Username,
			Score:        snap.Score,
			DisplayScore: snap.DisplayScore,
			Tier:         snap.Tier,
			EliteBadge:   snap.EliteBadge,
		})
		scores = append(scores, float64(snap.Score))
	}

	response := &Response{
		Entries:      entries,
		Total:        len(entries),
		Distribution: distributionFor(scores),
		GeneratedAt:  time.Now(),
	}

	s.cache.SetLeaderboard(limit, response)

	return response, nil
}

// GetDeveloperRank gets a developer's current standing by username
func (s *Service) GetDeveloperRank(username string) (*RankResult, error) {
	hash := HashUsername(username)

	if cached, found := s.cache.GetRank(hash); found {
		return cached, nil
	}

	snap, err := s.repo.GetImpactSnapshot(hash)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get developer rank: %w", err)
	}

	higher, err := s.repo.CountHigherPublicScores(snap.Score)
	if err != nil {
		return nil, err
	}

	total, err := s.repo.CountPublicSnapshots()
	if err != nil {
		return nil, err
	}
	if total < higher+1 {
		// Private snapshots rank against the public board
		total = higher + 1
	}

	percentile := 100.0 * float64(total-higher) / float64(total)

	result := &RankResult{
		Entry: Entry{
			Rank:         higher + 1,
			UsernameHash: snap.UsernameHash,
			Username:     snap.Username,
			Score:        snap.Score,
			DisplayScore: snap.DisplayScore,
			Tier:         snap.Tier,
			EliteBadge:   snap.EliteBadge,
		},
		Percentile: percentile,
		UpdatedAt:  snap.UpdatedAt,
	}

	s.cache.SetRank(hash, result)

	return result, nil
}

// distributionFor computes summary statistics over the visible scores
func distributionFor(scores []float64) *ScoreDistribution {
	if len(scores) == 0 {
		return nil
	}

	mean, err := stats.Mean(scores)
	if err != nil {
		return nil
	}
	median, err := stats.Median(scores)
	if err != nil {
		return nil
	}
	p90, err := stats.Percentile(scores, 90)
	if err != nil {
		// Percentile needs at least two samples
		p90 = scores[0]
	}
	p99, err := stats.Percentile(scores, 99)
	if err != nil {
		p99 = scores[0]
	}

	return &ScoreDistribution{
		Mean:   mean,
		Median: median,
		P90:    p90,
		P99:    p99,
	}
}

// GetCacheStats returns leaderboard cache statistics
func (s *Service) GetCacheStats() map[string]interface{} {
	return s.cache.GetStats()
}
