package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// ErrMigrationFailed indicates a migration could not be applied.
var ErrMigrationFailed = errors.New("postgres: migration failed")

// Migration is one versioned schema step. The SQL ships embedded in
// the binary; the engine applies pending steps on startup.
type Migration struct {
	Version int
	Name    string
	SQL     string
}

func allMigrations() []Migration {
	return []Migration{
		{Version: 1, Name: "create_content", SQL: migration001Up},
		{Version: 2, Name: "create_progress", SQL: migration002Up},
		{Version: 3, Name: "create_practice", SQL: migration003Up},
		{Version: 4, Name: "create_achievements", SQL: migration004Up},
		{Version: 5, Name: "create_seasons", SQL: migration005Up},
	}
}

// Migrator applies embedded migrations in version order.
type Migrator struct {
	conn       *Connection
	migrations []Migration
}

// NewMigrator creates a migrator over the embedded schema.
func NewMigrator(conn *Connection) *Migrator {
	return &Migrator{conn: conn, migrations: allMigrations()}
}

// Migrate applies every migration not yet recorded in
// schema_migrations. Each step runs in its own transaction together
// with its bookkeeping row.
func (m *Migrator) Migrate(ctx context.Context) error {
	const table = `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			applied_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
		)`
	if _, err := m.conn.Exec(ctx, table); err != nil {
		return fmt.Errorf("%w: create schema_migrations: %v", ErrMigrationFailed, err)
	}

	applied, err := m.appliedVersions(ctx)
	if err != nil {
		return err
	}

	for _, mig := range m.migrations {
		if applied[mig.Version] {
			continue
		}
		err := m.conn.WithTx(ctx, func(tx pgx.Tx) error {
			if _, err := tx.Exec(ctx, mig.SQL); err != nil {
				return err
			}
			_, err := tx.Exec(ctx,
				"INSERT INTO schema_migrations (version, name) VALUES ($1, $2)",
				mig.Version, mig.Name,
			)
			return err
		})
		if err != nil {
			return fmt.Errorf("%w: version %d (%s): %v", ErrMigrationFailed, mig.Version, mig.Name, err)
		}
	}
	return nil
}

func (m *Migrator) appliedVersions(ctx context.Context) (map[int]bool, error) {
	rows, err := m.conn.Query(ctx, "SELECT version FROM schema_migrations")
	if err != nil {
		return nil, fmt.Errorf("%w: read schema_migrations: %v", ErrMigrationFailed, err)
	}
	defer rows.Close()

	applied := make(map[int]bool)
	for rows.Next() {
		var version int
		if err := rows.Scan(&version); err != nil {
			return nil, fmt.Errorf("%w: scan schema_migrations: %v", ErrMigrationFailed, err)
		}
		applied[version] = true
	}
	return applied, rows.Err()
}

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 001: CREATE CONTENT
// ══════════════════════════════════════════════════════════════════════════════

const migration001Up = `
-- Migration: Create study content tables
-- Version: 001

-- Weekly themes published by the content pipeline
CREATE TABLE IF NOT EXISTS weeks (
    id VARCHAR(64) PRIMARY KEY,
    title VARCHAR(200) NOT NULL,
    week_order INTEGER NOT NULL UNIQUE,
    published_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT valid_week_order CHECK (week_order > 0)
);

-- Lessons within a week, three fixed stages each
CREATE TABLE IF NOT EXISTS lessons (
    id VARCHAR(64) PRIMARY KEY,
    week_id VARCHAR(64) NOT NULL REFERENCES weeks(id) ON DELETE CASCADE,
    title VARCHAR(200) NOT NULL,
    lesson_order INTEGER NOT NULL,
    xp_reward INTEGER NOT NULL DEFAULT 0,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT valid_lesson_order CHECK (lesson_order > 0),
    CONSTRAINT valid_xp_reward CHECK (xp_reward >= 0),
    CONSTRAINT uq_lessons_week_order UNIQUE (week_id, lesson_order)
);

-- Stage unit counts per lesson (estude, medite, responda)
CREATE TABLE IF NOT EXISTS lesson_stages (
    lesson_id VARCHAR(64) NOT NULL REFERENCES lessons(id) ON DELETE CASCADE,
    stage_type VARCHAR(16) NOT NULL,
    total_units INTEGER NOT NULL,

    PRIMARY KEY (lesson_id, stage_type),
    CONSTRAINT valid_stage_type CHECK (stage_type IN ('estude', 'medite', 'responda')),
    CONSTRAINT valid_total_units CHECK (total_units > 0)
);

CREATE INDEX IF NOT EXISTS idx_lessons_week_id ON lessons(week_id, lesson_order);
`


// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 002: CREATE PROGRESS
// ══════════════════════════════════════════════════════════════════════════════

const migration002Up = `
-- Migration: Create user progress and the XP event log
-- Version: 002

-- One row per user; the single writer of XP, level and streak
CREATE TABLE IF NOT EXISTS user_progress (
    user_id UUID PRIMARY KEY,
    total_xp INTEGER NOT NULL DEFAULT 0,
    level INTEGER NOT NULL DEFAULT 1,
    current_streak INTEGER NOT NULL DEFAULT 0,
    best_streak INTEGER NOT NULL DEFAULT 0,
    last_activity_date TIMESTAMP WITH TIME ZONE,
    units_completed INTEGER NOT NULL DEFAULT 0,
    lessons_completed INTEGER NOT NULL DEFAULT 0,
    weeks_mastered INTEGER NOT NULL DEFAULT 0,
    practices_completed INTEGER NOT NULL DEFAULT 0,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT valid_total_xp CHECK (total_xp >= 0),
    CONSTRAINT valid_level CHECK (level >= 1),
    CONSTRAINT valid_streaks CHECK (current_streak >= 0 AND best_streak >= current_streak)
);

-- Append-only XP event log; feeds period leaderboards
CREATE TABLE IF NOT EXISTS xp_events (
    id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    user_id UUID NOT NULL,
    amount INTEGER NOT NULL,
    source VARCHAR(32) NOT NULL,
    ref_id VARCHAR(64) NOT NULL DEFAULT '',
    occurred_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT valid_amount CHECK (amount >= 0),
    CONSTRAINT valid_source CHECK (source IN ('lesson_completed', 'practice_completed', 'achievement_unlocked'))
);

-- Period aggregation scans by time window, then groups by user
CREATE INDEX IF NOT EXISTS idx_xp_events_occurred_at ON xp_events(occurred_at);
CREATE INDEX IF NOT EXISTS idx_xp_events_user_occurred ON xp_events(user_id, occurred_at);

-- Per-unit completion records; the status projection's only input
CREATE TABLE IF NOT EXISTS stage_completions (
    user_id UUID NOT NULL,
    week_id VARCHAR(64) NOT NULL,
    lesson_id VARCHAR(64) NOT NULL,
    stage_type VARCHAR(16) NOT NULL,
    completed_units INTEGER NOT NULL DEFAULT 0,
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    PRIMARY KEY (user_id, lesson_id, stage_type),
    CONSTRAINT valid_completion_stage CHECK (stage_type IN ('estude', 'medite', 'responda')),
    CONSTRAINT valid_completed_units CHECK (completed_units >= 0)
);

CREATE INDEX IF NOT EXISTS idx_stage_completions_user_week ON stage_completions(user_id, week_id);
`


// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 003: CREATE PRACTICE
// ══════════════════════════════════════════════════════════════════════════════

const migration003Up = `
-- Migration: Create practice sessions and results
-- Version: 003

-- Open practice sessions; questions snapshotted at start
CREATE TABLE IF NOT EXISTS practice_sessions (
    id UUID PRIMARY KEY,
    user_id UUID NOT NULL,
    week_id VARCHAR(64) NOT NULL,
    questions JSONB NOT NULL,
    time_limit_seconds INTEGER NOT NULL,
    started_at TIMESTAMP WITH TIME ZONE NOT NULL,
    state VARCHAR(16) NOT NULL DEFAULT 'running',

    CONSTRAINT valid_session_state CHECK (state IN ('running', 'completed', 'timed_out')),
    CONSTRAINT valid_time_limit CHECK (time_limit_seconds > 0)
);

-- At most one running session per (user, week)
CREATE UNIQUE INDEX IF NOT EXISTS uq_practice_sessions_running
    ON practice_sessions(user_id, week_id) WHERE state = 'running';

CREATE INDEX IF NOT EXISTS idx_practice_sessions_started_at
    ON practice_sessions(started_at) WHERE state = 'running';

-- Terminal attempt records; best attempt drives stars and mastery
CREATE TABLE IF NOT EXISTS practice_results (
    session_id UUID PRIMARY KEY,
    user_id UUID NOT NULL,
    week_id VARCHAR(64) NOT NULL,
    stars_earned INTEGER NOT NULL,
    correct_answers INTEGER NOT NULL,
    total_questions INTEGER NOT NULL,
    time_spent_seconds INTEGER NOT NULL,
    completed_within_time BOOLEAN NOT NULL,
    is_mastered BOOLEAN NOT NULL DEFAULT FALSE,
    timed_out BOOLEAN NOT NULL DEFAULT FALSE,
    completed_at TIMESTAMP WITH TIME ZONE NOT NULL,

    CONSTRAINT valid_stars CHECK (stars_earned BETWEEN 0 AND 3),
    CONSTRAINT valid_correct CHECK (correct_answers BETWEEN 0 AND total_questions)
);

CREATE INDEX IF NOT EXISTS idx_practice_results_user_week
    ON practice_results(user_id, week_id, stars_earned DESC, correct_answers DESC);
`


// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 004: CREATE ACHIEVEMENTS
// ══════════════════════════════════════════════════════════════════════════════

const migration004Up = `
-- Migration: Create achievement unlocks
-- Version: 004

-- The catalog itself ships with the binary; only unlocks persist.
-- The primary key makes re-evaluation idempotent.
CREATE TABLE IF NOT EXISTS achievement_unlocks (
    user_id UUID NOT NULL,
    code VARCHAR(64) NOT NULL,
    unlocked_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    PRIMARY KEY (user_id, code)
);

CREATE INDEX IF NOT EXISTS idx_achievement_unlocks_user
    ON achievement_unlocks(user_id, unlocked_at DESC);
`


// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 005: CREATE SEASONS
// ══════════════════════════════════════════════════════════════════════════════

const migration005Up = `
-- Migration: Create leaderboard seasons
-- Version: 005

CREATE TABLE IF NOT EXISTS seasons (
    id VARCHAR(64) PRIMARY KEY,
    name VARCHAR(200) NOT NULL,
    start_date TIMESTAMP WITH TIME ZONE NOT NULL,
    end_date TIMESTAMP WITH TIME ZONE NOT NULL,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT valid_season_window CHECK (end_date > start_date)
);

CREATE INDEX IF NOT EXISTS idx_seasons_start_date ON seasons(start_date DESC);
`

