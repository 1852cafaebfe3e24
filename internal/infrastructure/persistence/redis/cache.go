// Package redis holds the hot-path state of the study engine: the
// short-lived leaderboard cache, the online presence sorted set and the
// distributed guard for running practice sessions.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	// ErrCacheMiss is returned when the requested key does not exist.
	ErrCacheMiss = errors.New("cache: key not found")

	// ErrCacheConnection is returned when Redis is unreachable.
	ErrCacheConnection = errors.New("cache: connection failed")

	// ErrCacheSerialization is returned when a cached payload cannot be
	// encoded or decoded.
	ErrCacheSerialization = errors.New("cache: serialization failed")

	// ErrCacheKeyEmpty is returned when an empty key is provided.
	ErrCacheKeyEmpty = errors.New("cache: key cannot be empty")
)

// Key namespaces. Every key this package writes starts with one of these.
const (
	prefixLeaderboard = "leaderboard:"
	prefixPresence    = "presence:"
	prefixPractice    = "practice:"
)

const (
	// TTLPresenceHeartbeat is how long a user stays online without a
	// heartbeat when no explicit timeout is configured.
	TTLPresenceHeartbeat = 2 * time.Minute

	// TTLLeaderboardCache is the TTL for assembled leaderboard entries.
	// Short on purpose: rank changes must surface within seconds.
	TTLLeaderboardCache = 5 * time.Second

	// TTLDistributedLock bounds how long a crashed practice session can
	// hold its guard key.
	TTLDistributedLock = 30 * time.Second
)

// LeaderboardKey is the key of an assembled leaderboard period.
func LeaderboardKey(period string) string {
	if period == "" {
		period = "weekly"
	}
	return prefixLeaderboard + period
}

// PresenceKey is the key of the shared online sorted set.
func PresenceKey() string {
	return prefixPresence + "online"
}

// PracticeLockKey is the guard key of a running practice session.
func PracticeLockKey(userID, weekID string) string {
	return prefixPractice + "running:" + userID + ":" + weekID
}

// Config holds Redis connection settings.
type Config struct {
	Host         string
	Port         int
	Password     string
	DB           int
	PoolSize     int
	MinIdleConns int
	MaxRetries   int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DefaultConfig returns settings suited to a single engine instance.
func DefaultConfig() Config {
	return Config{
		Host:         "localhost",
		Port:         6379,
		DB:           0,
		PoolSize:     10,
		MinIdleConns: 2,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	}
}

// Addr returns the address in "host:port" form.
func (c Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Cache wraps the Redis client shared by the presence tracker, the
// session guard and the leaderboard cache.
type Cache struct {
	client *redis.Client
}

// NewCache connects to Redis and verifies the connection with a ping.
func NewCache(cfg Config) (*Cache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr(),
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		MaxRetries:   cfg.MaxRetries,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), cfg.DialTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCacheConnection, err)
	}
	return &Cache{client: client}, nil
}

// Client exposes the underlying go-redis client for sorted-set and
// scripting commands the tracker and guard need.
func (c *Cache) Client() *redis.Client {
	return c.client
}

// Close closes the connection.
func (c *Cache) Close() error {
	return c.client.Close()
}

// Ping checks that Redis is reachable.
func (c *Cache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// SetString stores a raw string value with a TTL.
func (c *Cache) SetString(ctx context.Context, key, value string, ttl time.Duration) error {
	if key == "" {
		return ErrCacheKeyEmpty
	}
	return c.client.Set(ctx, key, value, ttl).Err()
}

// GetString reads a raw string value. Returns ErrCacheMiss when the key
// does not exist.
func (c *Cache) GetString(ctx context.Context, key string) (string, error) {
	if key == "" {
		return "", ErrCacheKeyEmpty
	}

	val, err := c.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrCacheMiss
	}
	if err != nil {
		return "", err
	}
	return val, nil
}

// Delete removes keys. Missing keys are not an error.
func (c *Cache) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return c.client.Del(ctx, keys...).Err()
}
