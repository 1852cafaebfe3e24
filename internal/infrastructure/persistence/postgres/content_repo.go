package postgres

import (
	"context"
	"fmt"

	"github.com/deoglory/study-engine/internal/domain/shared"
	"github.com/deoglory/study-engine/internal/domain/study"
)

// ══════════════════════════════════════════════════════════════════════════════
// CONTENT REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// ContentRepository implements study.ContentRepository for PostgreSQL.
type ContentRepository struct {
	conn *Connection
}

// NewContentRepository creates a new ContentRepository.
func NewContentRepository(conn *Connection) *ContentRepository {
	return &ContentRepository{conn: conn}
}

// GetWeek returns a week with its lessons and stages fully loaded.
func (r *ContentRepository) GetWeek(ctx context.Context, weekID shared.WeekID) (*study.Week, error) {
	query := `SELECT id, title, week_order, published_at FROM weeks WHERE id = $1`

	var w study.Week
	var id string
	row := r.conn.QueryRow(ctx, query, weekID.String())
	if err := row.Scan(&id, &w.Title, &w.Order, &w.PublishedAt); err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrWeekNotFound
		}
		return nil, fmt.Errorf("get week: %w", err)
	}
	w.ID = shared.WeekID(id)

	lessons, err := r.loadLessons(ctx, w.ID)
	if err != nil {
		return nil, err
	}
	w.Lessons = lessons
	return &w, nil
}

// GetPreviousWeek returns the week preceding the given one in week_order.
// Returns (nil, nil) for the first week.
func (r *ContentRepository) GetPreviousWeek(ctx context.Context, weekID shared.WeekID) (*study.Week, error) {
	query := `
		SELECT prev.id
		FROM weeks cur
		JOIN weeks prev ON prev.week_order = cur.week_order - 1
		WHERE cur.id = $1
	`

	var prevID string
	row := r.conn.QueryRow(ctx, query, weekID.String())
	if err := row.Scan(&prevID); err != nil {
		if IsNoRows(err) {
			// Either the week does not exist or it is the first one.
			// Distinguish the two so callers get ErrWeekNotFound for bad IDs.
			var exists bool
			check := r.conn.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM weeks WHERE id = $1)`, weekID.String())
			if err := check.Scan(&exists); err != nil {
				return nil, fmt.Errorf("check week exists: %w", err)
			}
			if !exists {
				return nil, shared.ErrWeekNotFound
			}
			return nil, nil
		}
		return nil, fmt.Errorf("get previous week: %w", err)
	}

	return r.GetWeek(ctx, shared.WeekID(prevID))
}

// ListWeeks returns all weeks in progression order with lessons loaded.
func (r *ContentRepository) ListWeeks(ctx context.Context) ([]*study.Week, error) {
	query := `SELECT id, title, week_order, published_at FROM weeks ORDER BY week_order`

	rows, err := r.conn.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list weeks: %w", err)
	}
	defer rows.Close()

	var weeks []*study.Week
	for rows.Next() {
		var w study.Week
		var id string
		if err := rows.Scan(&id, &w.Title, &w.Order, &w.PublishedAt); err != nil {
			return nil, fmt.Errorf("scan week: %w", err)
		}
		w.ID = shared.WeekID(id)
		weeks = append(weeks, &w)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate weeks: %w", err)
	}

	for _, w := range weeks {
		lessons, err := r.loadLessons(ctx, w.ID)
		if err != nil {
			return nil, err
		}
		w.Lessons = lessons
	}
	return weeks, nil
}

// loadLessons loads the lessons of a week together with their stages
// in a single joined query.
func (r *ContentRepository) loadLessons(ctx context.Context, weekID shared.WeekID) ([]*study.Lesson, error) {
	query := `
		SELECT l.id, l.title, l.lesson_order, l.xp_reward, s.stage_type, s.total_units
		FROM lessons l
		JOIN lesson_stages s ON s.lesson_id = l.id
		WHERE l.week_id = $1
		ORDER BY l.lesson_order,
			CASE s.stage_type WHEN 'estude' THEN 0 WHEN 'medite' THEN 1 ELSE 2 END
	`

	rows, err := r.conn.Query(ctx, query, weekID.String())
	if err != nil {
		return nil, fmt.Errorf("load lessons: %w", err)
	}
	defer rows.Close()

	var lessons []*study.Lesson
	var cur *study.Lesson
	for rows.Next() {
		var lessonID, title, stage string
		var order, xpReward, totalUnits int
		if err := rows.Scan(&lessonID, &title, &order, &xpReward, &stage, &totalUnits); err != nil {
			return nil, fmt.Errorf("scan lesson stage: %w", err)
		}

		if cur == nil || cur.ID.String() != lessonID {
			cur = &study.Lesson{
				ID:       shared.LessonID(lessonID),
				WeekID:   weekID,
				Title:    title,
				Order:    order,
				XPReward: xpReward,
			}
			lessons = append(lessons, cur)
		}
		cur.Stages = append(cur.Stages, study.Stage{
			Type:       study.StageType(stage),
			TotalUnits: totalUnits,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate lessons: %w", err)
	}
	return lessons, nil
}
