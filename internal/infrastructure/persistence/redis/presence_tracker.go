package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/deoglory/study-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// PRESENCE TRACKER IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// ErrUserIDEmpty is returned when an empty user ID is passed to the tracker.
var ErrUserIDEmpty = errors.New("presence: user ID cannot be empty")

// PresenceTracker implements presence.Tracker on a single Redis sorted set.
// The member is the user ID and the score is the last heartbeat as a unix
// timestamp, so every instance of the service sees the same online set and
// eviction is a single ZREMRANGEBYSCORE.
type PresenceTracker struct {
	cache   *Cache
	timeout time.Duration
	now     func() time.Time
}

// NewPresenceTracker creates a tracker with the given heartbeat timeout.
// A non-positive timeout falls back to TTLPresenceHeartbeat.
func NewPresenceTracker(cache *Cache, timeout time.Duration) *PresenceTracker {
	if timeout <= 0 {
		timeout = TTLPresenceHeartbeat
	}
	return &PresenceTracker{
		cache:   cache,
		timeout: timeout,
		now:     time.Now,
	}
}

// MarkOnline records a heartbeat for the user.
func (t *PresenceTracker) MarkOnline(ctx context.Context, userID shared.UserID) error {
	if userID.IsEmpty() {
		return ErrUserIDEmpty
	}

	score := float64(t.now().Unix())
	err := t.cache.Client().ZAdd(ctx, PresenceKey(), redis.Z{
		Score:  score,
		Member: userID.String(),
	}).Err()
	if err != nil {
		return fmt.Errorf("presence mark online: %w", err)
	}
	return nil
}

// MarkOffline removes the user from the online set.
func (t *PresenceTracker) MarkOffline(ctx context.Context, userID shared.UserID) error {
	if userID.IsEmpty() {
		return ErrUserIDEmpty
	}

	if err := t.cache.Client().ZRem(ctx, PresenceKey(), userID.String()).Err(); err != nil {
		return fmt.Errorf("presence mark offline: %w", err)
	}
	return nil
}

// IsOnline reports whether the user has a heartbeat within the timeout.
func (t *PresenceTracker) IsOnline(ctx context.Context, userID shared.UserID) (bool, error) {
	if userID.IsEmpty() {
		return false, ErrUserIDEmpty
	}

	score, err := t.cache.Client().ZScore(ctx, PresenceKey(), userID.String()).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("presence is online: %w", err)
	}
	return int64(score) >= t.cutoff(), nil
}

// OnlineUserIDs returns a snapshot of users with a live heartbeat.
func (t *PresenceTracker) OnlineUserIDs(ctx context.Context) ([]shared.UserID, error) {
	members, err := t.cache.Client().ZRangeByScore(ctx, PresenceKey(), &redis.ZRangeBy{
		Min: strconv.FormatInt(t.cutoff(), 10),
		Max: "+inf",
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("presence online users: %w", err)
	}

	ids := make([]shared.UserID, 0, len(members))
	for _, m := range members {
		ids = append(ids, shared.UserID(m))
	}
	return ids, nil
}

// OnlineCount returns the size of the live online set.
func (t *PresenceTracker) OnlineCount(ctx context.Context) (int, error) {
	count, err := t.cache.Client().ZCount(ctx, PresenceKey(),
		strconv.FormatInt(t.cutoff(), 10), "+inf").Result()
	if err != nil {
		return 0, fmt.Errorf("presence online count: %w", err)
	}
	return int(count), nil
}

// OnlineStates returns the online flag for each of the given users in a
// single pipelined round trip.
func (t *PresenceTracker) OnlineStates(ctx context.Context, userIDs []shared.UserID) (map[shared.UserID]bool, error) {
	states := make(map[shared.UserID]bool, len(userIDs))
	if len(userIDs) == 0 {
		return states, nil
	}

	pipe := t.cache.Client().Pipeline()
	cmds := make([]*redis.FloatCmd, len(userIDs))
	for i, id := range userIDs {
		cmds[i] = pipe.ZScore(ctx, PresenceKey(), id.String())
	}
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("presence online states: %w", err)
	}

	cutoff := t.cutoff()
	for i, id := range userIDs {
		score, err := cmds[i].Result()
		if errors.Is(err, redis.Nil) {
			states[id] = false
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("presence online states: %w", err)
		}
		states[id] = int64(score) >= cutoff
	}
	return states, nil
}

// PruneStale removes members whose heartbeat expired.
func (t *PresenceTracker) PruneStale(ctx context.Context) (int, error) {
	removed, err := t.cache.Client().ZRemRangeByScore(ctx, PresenceKey(),
		"-inf", strconv.FormatInt(t.cutoff()-1, 10)).Result()
	if err != nil {
		return 0, fmt.Errorf("presence prune stale: %w", err)
	}
	return int(removed), nil
}

func (t *PresenceTracker) cutoff() int64 {
	return t.now().Add(-t.timeout).Unix()
}
