// Package jobs contains implementations of scheduled jobs for the study engine.
package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/deoglory/study-engine/internal/domain/practice"
)

// ══════════════════════════════════════════════════════════════════════════════
// CLEANUP SESSIONS JOB
// ══════════════════════════════════════════════════════════════════════════════

// CleanupSessionsJob removes abandoned practice sessions. A session left
// running past its time limit plus a grace window was never submitted;
// deleting the row frees the (user, week) slot for a fresh start. The
// Redis lock expires on its own TTL, so no result is ever written for
// these sessions.
type CleanupSessionsJob struct {
	sessionRepo practice.SessionRepository
	logger      *slog.Logger
	config      CleanupSessionsConfig

	lastRunStats atomic.Value // *CleanupStats
}

// CleanupSessionsConfig contains configuration for the cleanup job.
type CleanupSessionsConfig struct {
	// MaxSessionAge is how long after StartedAt a running session is
	// considered abandoned. Must exceed the quiz time limit.
	MaxSessionAge time.Duration

	// Timeout is the maximum duration for one cleanup run.
	Timeout time.Duration
}

// DefaultCleanupSessionsConfig returns sensible defaults.
func DefaultCleanupSessionsConfig() CleanupSessionsConfig {
	return CleanupSessionsConfig{
		MaxSessionAge: 1 * time.Hour,
		Timeout:       30 * time.Second,
	}
}

// CleanupStats contains statistics from a cleanup run.
type CleanupStats struct {
	StartedAt       time.Time
	Duration        time.Duration
	SessionsDeleted int
}

// NewCleanupSessionsJob creates a new cleanup job.
func NewCleanupSessionsJob(sessionRepo practice.SessionRepository, logger *slog.Logger, config CleanupSessionsConfig) *CleanupSessionsJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &CleanupSessionsJob{
		sessionRepo: sessionRepo,
		logger:      logger,
		config:      config,
	}
}

// Name returns the unique name of the job.
func (j *CleanupSessionsJob) Name() string {
	return "cleanup_sessions"
}

// Description returns a human-readable description of the job.
func (j *CleanupSessionsJob) Description() string {
	return "Deletes abandoned practice sessions past the grace window"
}

// Run executes the job.
func (j *CleanupSessionsJob) Run(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, j.config.Timeout)
	defer cancel()

	started := time.Now()
	threshold := started.Add(-j.config.MaxSessionAge)

	deleted, err := j.sessionRepo.DeleteExpired(ctx, threshold)
	if err != nil {
		return fmt.Errorf("cleanup sessions: %w", err)
	}

	stats := &CleanupStats{
		StartedAt:       started,
		Duration:        time.Since(started),
		SessionsDeleted: deleted,
	}
	j.lastRunStats.Store(stats)

	if deleted > 0 {
		j.logger.Info("abandoned practice sessions deleted",
			"count", deleted,
			"older_than", threshold,
		)
	}
	return nil
}

// LastStats returns statistics from the most recent run, or nil.
func (j *CleanupSessionsJob) LastStats() *CleanupStats {
	if v := j.lastRunStats.Load(); v != nil {
		return v.(*CleanupStats)
	}
	return nil
}
