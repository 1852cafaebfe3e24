package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// REFRESH LEADERBOARD JOB
// ══════════════════════════════════════════════════════════════════════════════

// LeaderboardWarmer re-assembles a leaderboard and stores it in the cache.
// Implemented by the query layer.
type LeaderboardWarmer interface {
	// WarmWeekly rebuilds the current weekly ranking into the cache.
	WarmWeekly(ctx context.Context) error
}

// RefreshLeaderboardJob keeps the weekly leaderboard cache warm so that
// the first request after an invalidation never pays the aggregation
// cost. Annual and seasonal rankings are requested rarely enough to ride
// the regular cache TTL.
type RefreshLeaderboardJob struct {
	warmer  LeaderboardWarmer
	logger  *slog.Logger
	timeout time.Duration
}

// NewRefreshLeaderboardJob creates a new leaderboard refresh job.
func NewRefreshLeaderboardJob(warmer LeaderboardWarmer, logger *slog.Logger) *RefreshLeaderboardJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &RefreshLeaderboardJob{
		warmer:  warmer,
		logger:  logger,
		timeout: 30 * time.Second,
	}
}

// Name returns the unique name of the job.
func (j *RefreshLeaderboardJob) Name() string {
	return "refresh_leaderboard"
}

// Description returns a human-readable description of the job.
func (j *RefreshLeaderboardJob) Description() string {
	return "Keeps the weekly leaderboard cache warm"
}

// Run executes the job.
func (j *RefreshLeaderboardJob) Run(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, j.timeout)
	defer cancel()

	if err := j.warmer.WarmWeekly(ctx); err != nil {
		return fmt.Errorf("refresh leaderboard: %w", err)
	}
	return nil
}
