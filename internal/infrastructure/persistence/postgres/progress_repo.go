package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/deoglory/study-engine/internal/domain/progress"
	"github.com/deoglory/study-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// PROGRESS REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// ProgressRepository implements progress.Repository for PostgreSQL.
type ProgressRepository struct {
	conn *Connection
}

// NewProgressRepository creates a new ProgressRepository.
func NewProgressRepository(conn *Connection) *ProgressRepository {
	return &ProgressRepository{conn: conn}
}

const progressColumns = `user_id, total_xp, level, current_streak, best_streak,
	last_activity_date, units_completed, lessons_completed, weeks_mastered,
	practices_completed, created_at, updated_at`

// GetByUserID returns the progress row of a user.
func (r *ProgressRepository) GetByUserID(ctx context.Context, userID shared.UserID) (*progress.UserProgress, error) {
	query := fmt.Sprintf(`SELECT %s FROM user_progress WHERE user_id = $1`, progressColumns)

	row := r.conn.QueryRow(ctx, query, userID.String())
	p, err := scanProgress(row)
	if IsNoRows(err) {
		return nil, shared.ErrProgressNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get progress: %w", err)
	}
	return p, nil
}

// GetOrCreate returns the progress row, inserting an empty one on first use.
func (r *ProgressRepository) GetOrCreate(ctx context.Context, userID shared.UserID) (*progress.UserProgress, error) {
	p, err := r.GetByUserID(ctx, userID)
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, shared.ErrProgressNotFound) {
		return nil, err
	}

	fresh := progress.NewUserProgress(userID)
	insert := `
		INSERT INTO user_progress (user_id, total_xp, level, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id) DO NOTHING
	`
	if _, err := r.conn.Exec(ctx, insert,
		fresh.UserID.String(), fresh.TotalXP.Int(), fresh.Level.Int(), fresh.CreatedAt, fresh.UpdatedAt,
	); err != nil {
		return nil, fmt.Errorf("create progress: %w", err)
	}

	// Re-read in case a concurrent request inserted first.
	return r.GetByUserID(ctx, userID)
}

// ApplyCompletion atomically applies a completion: locks the progress row,
// runs the domain mutation, writes the row back and appends the XP event,
// all in one transaction.
func (r *ProgressRepository) ApplyCompletion(
	ctx context.Context,
	userID shared.UserID,
	event progress.XPEvent,
	apply func(*progress.UserProgress) (progress.CompletionDelta, error),
) (progress.CompletionDelta, error) {
	var delta progress.CompletionDelta

	err := r.conn.WithTx(ctx, func(tx pgx.Tx) error {
		lockQuery := fmt.Sprintf(`SELECT %s FROM user_progress WHERE user_id = $1 FOR UPDATE`, progressColumns)

		row := tx.QueryRow(ctx, lockQuery, userID.String())
		p, err := scanProgress(row)
		if IsNoRows(err) {
			p = progress.NewUserProgress(userID)
			insert := `
				INSERT INTO user_progress (user_id, total_xp, level, created_at, updated_at)
				VALUES ($1, $2, $3, $4, $5)
			`
			if _, err := tx.Exec(ctx, insert,
				p.UserID.String(), p.TotalXP.Int(), p.Level.Int(), p.CreatedAt, p.UpdatedAt,
			); err != nil {
				return fmt.Errorf("insert progress: %w", err)
			}
		} else if err != nil {
			return fmt.Errorf("lock progress: %w", err)
		}

		delta, err = apply(p)
		if err != nil {
			return err
		}
		p.UpdatedAt = time.Now().UTC()

		update := `
			UPDATE user_progress SET
				total_xp = $1,
				level = $2,
				current_streak = $3,
				best_streak = $4,
				last_activity_date = $5,
				units_completed = $6,
				lessons_completed = $7,
				weeks_mastered = $8,
				practices_completed = $9,
				updated_at = $10
			WHERE user_id = $11
		`
		var lastActivity *time.Time
		if !p.LastActivityDate.IsZero() {
			lastActivity = &p.LastActivityDate
		}
		if _, err := tx.Exec(ctx, update,
			p.TotalXP.Int(), p.Level.Int(), p.CurrentStreak, p.BestStreak,
			lastActivity, p.UnitsCompleted, p.LessonsCompleted, p.WeeksMastered,
			p.PracticesCompleted, p.UpdatedAt, p.UserID.String(),
		); err != nil {
			return fmt.Errorf("update progress: %w", err)
		}

		if event.Amount > 0 {
			insertEvent := `
				INSERT INTO xp_events (user_id, amount, source, ref_id, occurred_at)
				VALUES ($1, $2, $3, $4, $5)
			`
			if _, err := tx.Exec(ctx, insertEvent,
				event.UserID.String(), event.Amount, string(event.Source), event.RefID, event.OccurredAt,
			); err != nil {
				return fmt.Errorf("append xp event: %w", err)
			}
		}

		return nil
	})
	if err != nil {
		return progress.CompletionDelta{}, err
	}
	return delta, nil
}

// GetByUserIDs returns the progress rows of several users.
func (r *ProgressRepository) GetByUserIDs(ctx context.Context, userIDs []shared.UserID) (map[shared.UserID]*progress.UserProgress, error) {
	result := make(map[shared.UserID]*progress.UserProgress, len(userIDs))
	if len(userIDs) == 0 {
		return result, nil
	}

	ids := make([]string, len(userIDs))
	for i, id := range userIDs {
		ids[i] = id.String()
	}

	query := fmt.Sprintf(`SELECT %s FROM user_progress WHERE user_id = ANY($1)`, progressColumns)

	rows, err := r.conn.Query(ctx, query, ids)
	if err != nil {
		return nil, fmt.Errorf("get progress batch: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		p, err := scanProgress(rows)
		if err != nil {
			return nil, fmt.Errorf("scan progress: %w", err)
		}
		result[p.UserID] = p
	}
	return result, rows.Err()
}

// scanProgress reads one user_progress row.
func scanProgress(row pgx.Row) (*progress.UserProgress, error) {
	var (
		p            progress.UserProgress
		userID       string
		totalXP      int
		level        int
		lastActivity *time.Time
	)
	err := row.Scan(
		&userID, &totalXP, &level, &p.CurrentStreak, &p.BestStreak,
		&lastActivity, &p.UnitsCompleted, &p.LessonsCompleted, &p.WeeksMastered,
		&p.PracticesCompleted, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	p.UserID = shared.UserID(userID)
	p.TotalXP = shared.XP(totalXP)
	p.Level = shared.Level(level)
	if lastActivity != nil {
		p.LastActivityDate = *lastActivity
	}
	return &p, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// XP EVENT REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// XPEventRepository implements progress.XPEventRepository for PostgreSQL.
type XPEventRepository struct {
	conn *Connection
}

// NewXPEventRepository creates a new XPEventRepository.
func NewXPEventRepository(conn *Connection) *XPEventRepository {
	return &XPEventRepository{conn: conn}
}

// SumByPeriod returns per-user XP sums inside the half-open window [from, to),
// plus the last activity time inside the window and the XP of the trailing
// 24 hours for display.
func (r *XPEventRepository) SumByPeriod(ctx context.Context, window shared.TimeRange) ([]progress.PeriodSum, error) {
	query := `
		SELECT
			user_id,
			SUM(amount)::int AS total_xp,
			SUM(amount) FILTER (WHERE occurred_at >= $3)::int AS daily_xp,
			MAX(occurred_at) AS last_activity_at
		FROM xp_events
		WHERE occurred_at >= $1 AND occurred_at < $2
		GROUP BY user_id
		HAVING SUM(amount) > 0
	`

	dayAgo := time.Now().UTC().Add(-24 * time.Hour)
	rows, err := r.conn.Query(ctx, query, window.From, window.To, dayAgo)
	if err != nil {
		return nil, fmt.Errorf("sum xp by period: %w", err)
	}
	defer rows.Close()

	var sums []progress.PeriodSum
	for rows.Next() {
		var (
			sum     progress.PeriodSum
			userID  string
			dailyXP *int
		)
		if err := rows.Scan(&userID, &sum.TotalXP, &dailyXP, &sum.LastActivityAt); err != nil {
			return nil, fmt.Errorf("scan period sum: %w", err)
		}
		sum.UserID = shared.UserID(userID)
		if dailyXP != nil {
			sum.DailyXP = *dailyXP
		}
		sums = append(sums, sum)
	}
	return sums, rows.Err()
}

// SumForUser returns one user's XP sum inside the window.
func (r *XPEventRepository) SumForUser(ctx context.Context, userID shared.UserID, window shared.TimeRange) (int, error) {
	query := `
		SELECT COALESCE(SUM(amount), 0)::int
		FROM xp_events
		WHERE user_id = $1 AND occurred_at >= $2 AND occurred_at < $3
	`

	var sum int
	if err := r.conn.QueryRow(ctx, query, userID.String(), window.From, window.To).Scan(&sum); err != nil {
		return 0, fmt.Errorf("sum xp for user: %w", err)
	}
	return sum, nil
}

// ListForUser returns one user's XP events inside the window, oldest first.
func (r *XPEventRepository) ListForUser(ctx context.Context, userID shared.UserID, window shared.TimeRange) ([]progress.XPEvent, error) {
	query := `
		SELECT id, user_id, amount, source, ref_id, occurred_at
		FROM xp_events
		WHERE user_id = $1 AND occurred_at >= $2 AND occurred_at < $3
		ORDER BY occurred_at
	`

	rows, err := r.conn.Query(ctx, query, userID.String(), window.From, window.To)
	if err != nil {
		return nil, fmt.Errorf("list xp events: %w", err)
	}
	defer rows.Close()

	var events []progress.XPEvent
	for rows.Next() {
		var (
			e      progress.XPEvent
			id     string
			uid    string
			source string
		)
		if err := rows.Scan(&id, &uid, &e.Amount, &source, &e.RefID, &e.OccurredAt); err != nil {
			return nil, fmt.Errorf("scan xp event: %w", err)
		}
		e.ID = id
		e.UserID = shared.UserID(uid)
		e.Source = progress.XPSource(source)
		events = append(events, e)
	}
	return events, rows.Err()
}
