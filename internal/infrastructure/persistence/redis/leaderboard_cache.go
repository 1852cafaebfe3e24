package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/deoglory/study-engine/internal/domain/leaderboard"
)

// ══════════════════════════════════════════════════════════════════════════════
// LEADERBOARD CACHE IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// LeaderboardCache implements leaderboard.Cache on top of Redis.
// Entries are stored as a single JSON blob per period with a short TTL;
// the ranking itself is always recomputed from the XP event log, the
// cache only absorbs request bursts.
type LeaderboardCache struct {
	cache *Cache
}

// NewLeaderboardCache creates a new LeaderboardCache.
func NewLeaderboardCache(cache *Cache) *LeaderboardCache {
	return &LeaderboardCache{cache: cache}
}

// Get returns the cached entries of a period, or (nil, nil) on a miss.
func (l *LeaderboardCache) Get(ctx context.Context, period leaderboard.Period) ([]*leaderboard.Entry, error) {
	data, err := l.cache.GetString(ctx, LeaderboardKey(period.String()))
	if errors.Is(err, ErrCacheMiss) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("leaderboard cache get: %w", err)
	}

	var entries []*leaderboard.Entry
	if err := json.Unmarshal([]byte(data), &entries); err != nil {
		// A corrupt blob behaves like a miss; the next Set overwrites it.
		return nil, nil
	}
	return entries, nil
}

// Set stores the entries of a period with the given TTL.
func (l *LeaderboardCache) Set(ctx context.Context, period leaderboard.Period, entries []*leaderboard.Entry, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = TTLLeaderboardCache
	}

	data, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCacheSerialization, err)
	}
	if err := l.cache.SetString(ctx, LeaderboardKey(period.String()), string(data), ttl); err != nil {
		return fmt.Errorf("leaderboard cache set: %w", err)
	}
	return nil
}

// Invalidate drops the cached entries of a period.
func (l *LeaderboardCache) Invalidate(ctx context.Context, period leaderboard.Period) error {
	if err := l.cache.Delete(ctx, LeaderboardKey(period.String())); err != nil {
		return fmt.Errorf("leaderboard cache invalidate: %w", err)
	}
	return nil
}
