package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/deoglory/study-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// SESSION GUARD IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// releaseScript deletes the lock only when it still belongs to the session
// that acquired it. Without the ownership check a slow request could free
// a lock that a newer session already holds.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// SessionGuard implements practice.SessionGuard with a Redis SET NX lock.
// The TTL bounds how long a crashed session blocks a new start; the
// partial unique index in PostgreSQL remains the hard invariant.
type SessionGuard struct {
	cache *Cache
}

// NewSessionGuard creates a new SessionGuard.
func NewSessionGuard(cache *Cache) *SessionGuard {
	return &SessionGuard{cache: cache}
}

// Acquire tries to take the session lock of a (user, week) pair.
// Returns false when another session already holds it.
func (g *SessionGuard) Acquire(ctx context.Context, userID shared.UserID, weekID shared.WeekID, sessionID string, ttl time.Duration) (bool, error) {
	if ttl <= 0 {
		ttl = TTLDistributedLock
	}

	key := PracticeLockKey(userID.String(), weekID.String())
	ok, err := g.cache.Client().SetNX(ctx, key, sessionID, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("session guard acquire: %w", err)
	}
	return ok, nil
}

// Release frees the lock if it is still owned by the given session.
func (g *SessionGuard) Release(ctx context.Context, userID shared.UserID, weekID shared.WeekID, sessionID string) error {
	key := PracticeLockKey(userID.String(), weekID.String())
	if err := releaseScript.Run(ctx, g.cache.Client(), []string{key}, sessionID).Err(); err != nil {
		return fmt.Errorf("session guard release: %w", err)
	}
	return nil
}
