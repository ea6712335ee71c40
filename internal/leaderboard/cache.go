package leaderboard

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/wekraft/gitpilot/internal/cache"
)

// Cache provides TTL caching for leaderboard data
type Cache struct {
	cache *cache.Cache
}

// NewCache creates a new leaderboard cache
func NewCache(ttl time.Duration) *Cache {
	return &Cache{
		cache: cache.NewCache(ttl),
	}
}

func (lc *Cache) leaderboardKey(limit int) string {
	return fmt.Sprintf("leaderboard:%d", limit)
}

func (lc *Cache) rankKey(hash string) string {
	return fmt.Sprintf("rank:%s", hash)
}

// GetLeaderboard retrieves cached leaderboard data
func (lc *Cache) GetLeaderboard(limit int) (*Response, bool) {
	data, found := lc.cache.Get(lc.leaderboardKey(limit))
	if !found {
		return nil, false
	}

	var response Response
	if err := json.Unmarshal(data, &response); err != nil {
		slog.Error("Failed to unmarshal cached leaderboard data", "error", err, "limit", limit)
		return nil, false
	}

	slog.Debug("Leaderboard cache hit", "limit", limit)
	return &response, true
}

// SetLeaderboard caches leaderboard data
func (lc *Cache) SetLeaderboard(limit int, response *Response) {
	data, err := json.Marshal(response)
	if err != nil {
		slog.Error("Failed to marshal leaderboard data for cache", "error", err)
		return
	}

	lc.cache.Set(lc.leaderboardKey(limit), data)
	slog.Debug("Leaderboard cached", "limit", limit, "entries", len(response.Entries))
}

// GetRank retrieves cached rank data
func (lc *Cache) GetRank(hash string) (*RankResult, bool) {
	data, found := lc.cache.Get(lc.rankKey(hash))
	if !found {
		return nil, false
	}

	var result RankResult
	if err := json.Unmarshal(data, &result); err != nil {
		slog.Error("Failed to unmarshal cached rank data", "error", err)
		return nil, false
	}

	return &result, true
}

// SetRank caches rank data
func (lc *Cache) SetRank(hash string, result *RankResult) {
	data, err := json.Marshal(result)
	if err != nil {
		slog.Error("Failed to marshal rank data for cache", "error", err, "hash", hash[:8]+"...")
		return
	}

	lc.cache.Set(lc.rankKey(hash), data)
}

// InvalidateAll clears every cached leaderboard entry
func (lc *Cache) InvalidateAll() {
	lc.cache.Clear()
	slog.Info("Leaderboard cache cleared")
}

// GetStats returns cache statistics
func (lc *Cache) GetStats() map[string]interface{} {
	return lc.cache.Stats()
}
