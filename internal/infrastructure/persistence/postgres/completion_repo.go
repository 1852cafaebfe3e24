package postgres

import (
	"context"
	"fmt"

	"github.com/deoglory/study-engine/internal/domain/shared"
	"github.com/deoglory/study-engine/internal/domain/study"
)

// ══════════════════════════════════════════════════════════════════════════════
// COMPLETION REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// CompletionRepository implements study.CompletionRepository for PostgreSQL.
type CompletionRepository struct {
	conn *Connection
}

// NewCompletionRepository creates a new CompletionRepository.
func NewCompletionRepository(conn *Connection) *CompletionRepository {
	return &CompletionRepository{conn: conn}
}

// GetWeekCompletions returns all stage completion records of a user for a week.
func (r *CompletionRepository) GetWeekCompletions(ctx context.Context, userID shared.UserID, weekID shared.WeekID) (study.CompletionSet, error) {
	query := `
		SELECT lesson_id, stage_type, completed_units, updated_at
		FROM stage_completions
		WHERE user_id = $1 AND week_id = $2
	`

	rows, err := r.conn.Query(ctx, query, userID.String(), weekID.String())
	if err != nil {
		return nil, fmt.Errorf("get week completions: %w", err)
	}
	defer rows.Close()

	set := make(study.CompletionSet)
	for rows.Next() {
		var c study.StageCompletion
		var lessonID, stageType string
		if err := rows.Scan(&lessonID, &stageType, &c.CompletedUnits, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan completion: %w", err)
		}
		c.LessonID = shared.LessonID(lessonID)
		c.StageType = study.StageType(stageType)
		set.Put(c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate completions: %w", err)
	}
	return set, nil
}

// SaveCompletion upserts a stage completion record. Completed units never
// move backwards: a stale write cannot shrink recorded progress.
func (r *CompletionRepository) SaveCompletion(ctx context.Context, userID shared.UserID, weekID shared.WeekID, c study.StageCompletion) error {
	query := `
		INSERT INTO stage_completions (user_id, week_id, lesson_id, stage_type, completed_units, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (user_id, lesson_id, stage_type) DO UPDATE SET
			completed_units = GREATEST(stage_completions.completed_units, EXCLUDED.completed_units),
			updated_at = EXCLUDED.updated_at
	`

	if _, err := r.conn.Exec(ctx, query,
		userID.String(), weekID.String(), c.LessonID.String(), c.StageType.String(),
		c.CompletedUnits, c.UpdatedAt,
	); err != nil {
		return fmt.Errorf("save completion: %w", err)
	}
	return nil
}

// IsWeekCompleted reports whether every stage of every lesson in the week
// has all of its units completed.
func (r *CompletionRepository) IsWeekCompleted(ctx context.Context, userID shared.UserID, weekID shared.WeekID) (bool, error) {
	// A week is completed when no stage of it lacks a full completion record.
	query := `
		SELECT NOT EXISTS (
			SELECT 1
			FROM lessons l
			JOIN lesson_stages s ON s.lesson_id = l.id
			LEFT JOIN stage_completions c
				ON c.lesson_id = l.id
				AND c.stage_type = s.stage_type
				AND c.user_id = $1
			WHERE l.week_id = $2
				AND (c.completed_units IS NULL OR c.completed_units < s.total_units)
		) AND EXISTS (SELECT 1 FROM lessons WHERE week_id = $2)
	`

	var done bool
	row := r.conn.QueryRow(ctx, query, userID.String(), weekID.String())
	if err := row.Scan(&done); err != nil {
		return false, fmt.Errorf("is week completed: %w", err)
	}
	return done, nil
}

// CountCompletedLessons returns how many lessons the user has fully
// completed across all weeks.
func (r *CompletionRepository) CountCompletedLessons(ctx context.Context, userID shared.UserID) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM lessons l
		WHERE NOT EXISTS (
			SELECT 1
			FROM lesson_stages s
			LEFT JOIN stage_completions c
				ON c.lesson_id = s.lesson_id
				AND c.stage_type = s.stage_type
				AND c.user_id = $1
			WHERE s.lesson_id = l.id
				AND (c.completed_units IS NULL OR c.completed_units < s.total_units)
		)
	`

	var count int
	row := r.conn.QueryRow(ctx, query, userID.String())
	if err := row.Scan(&count); err != nil {
		return 0, fmt.Errorf("count completed lessons: %w", err)
	}
	return count, nil
}
