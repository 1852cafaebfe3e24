package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/deoglory/study-engine/internal/domain/presence"
)

// ══════════════════════════════════════════════════════════════════════════════
// PRUNE PRESENCE JOB
// ══════════════════════════════════════════════════════════════════════════════

// PrunePresenceJob evicts users whose heartbeat expired from the online
// set. Readers already filter by heartbeat age, so this job only keeps
// the sorted set from growing without bound.
type PrunePresenceJob struct {
	tracker presence.Tracker
	logger  *slog.Logger
	timeout time.Duration
}

// NewPrunePresenceJob creates a new presence pruning job.
func NewPrunePresenceJob(tracker presence.Tracker, logger *slog.Logger) *PrunePresenceJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &PrunePresenceJob{
		tracker: tracker,
		logger:  logger,
		timeout: 10 * time.Second,
	}
}

// Name returns the unique name of the job.
func (j *PrunePresenceJob) Name() string {
	return "prune_presence"
}

// Description returns a human-readable description of the job.
func (j *PrunePresenceJob) Description() string {
	return "Evicts users with expired heartbeats from the online set"
}

// Run executes the job.
func (j *PrunePresenceJob) Run(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, j.timeout)
	defer cancel()

	removed, err := j.tracker.PruneStale(ctx)
	if err != nil {
		return fmt.Errorf("prune presence: %w", err)
	}
	if removed > 0 {
		j.logger.Debug("stale presence records pruned", "count", removed)
	}
	return nil
}
