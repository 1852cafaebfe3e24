package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/deoglory/study-engine/internal/domain/practice"
	"github.com/deoglory/study-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// PRACTICE SESSION REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// SessionRepository implements practice.SessionRepository for PostgreSQL.
type SessionRepository struct {
	conn *Connection
}

// NewSessionRepository creates a new SessionRepository.
func NewSessionRepository(conn *Connection) *SessionRepository {
	return &SessionRepository{conn: conn}
}

// storedQuestion mirrors practice.Question for JSONB persistence. The domain
// type hides correct answers from JSON on purpose; the snapshot stored with
// a session must keep them.
type storedQuestion struct {
	ID              string   `json:"id"`
	Kind            string   `json:"kind"`
	Prompt          string   `json:"prompt"`
	Options         []string `json:"options,omitempty"`
	CorrectOption   int      `json:"correct_option"`
	CorrectBool     bool     `json:"correct_bool"`
	AcceptedAnswers []string `json:"accepted_answers,omitempty"`
}

func encodeQuestions(questions []practice.Question) ([]byte, error) {
	stored := make([]storedQuestion, len(questions))
	for i, q := range questions {
		stored[i] = storedQuestion{
			ID:              q.ID,
			Kind:            string(q.Kind),
			Prompt:          q.Prompt,
			Options:         q.Options,
			CorrectOption:   q.CorrectOption,
			CorrectBool:     q.CorrectBool,
			AcceptedAnswers: q.AcceptedAnswers,
		}
	}
	return json.Marshal(stored)
}

func decodeQuestions(data []byte) ([]practice.Question, error) {
	var stored []storedQuestion
	if err := json.Unmarshal(data, &stored); err != nil {
		return nil, err
	}
	questions := make([]practice.Question, len(stored))
	for i, s := range stored {
		questions[i] = practice.Question{
			ID:              s.ID,
			Kind:            practice.QuestionKind(s.Kind),
			Prompt:          s.Prompt,
			Options:         s.Options,
			CorrectOption:   s.CorrectOption,
			CorrectBool:     s.CorrectBool,
			AcceptedAnswers: s.AcceptedAnswers,
		}
	}
	return questions, nil
}

// Create stores a new running session. The partial unique index on
// (user_id, week_id) WHERE state = 'running' enforces at most one open
// session per pair even under concurrent starts.
func (r *SessionRepository) Create(ctx context.Context, session *practice.Session) error {
	questions, err := encodeQuestions(session.Questions)
	if err != nil {
		return fmt.Errorf("encode questions: %w", err)
	}

	query := `
		INSERT INTO practice_sessions (id, user_id, week_id, questions, time_limit_seconds, started_at, state)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	if _, err := r.conn.Exec(ctx, query,
		session.ID, session.UserID.String(), session.WeekID.String(),
		questions, int(session.TimeLimit.Seconds()), session.StartedAt, string(session.State),
	); err != nil {
		if IsUniqueViolation(err) {
			return shared.ErrSessionAlreadyRunning
		}
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

// GetRunning returns the open session of a (user, week) pair.
func (r *SessionRepository) GetRunning(ctx context.Context, userID shared.UserID, weekID shared.WeekID) (*practice.Session, error) {
	query := `
		SELECT id, user_id, week_id, questions, time_limit_seconds, started_at, state
		FROM practice_sessions
		WHERE user_id = $1 AND week_id = $2 AND state = 'running'
	`

	var s practice.Session
	var uid, wid, state string
	var questions []byte
	var timeLimitSeconds int
	row := r.conn.QueryRow(ctx, query, userID.String(), weekID.String())
	if err := row.Scan(&s.ID, &uid, &wid, &questions, &timeLimitSeconds, &s.StartedAt, &state); err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrSessionNotFound
		}
		return nil, fmt.Errorf("get running session: %w", err)
	}

	decoded, err := decodeQuestions(questions)
	if err != nil {
		return nil, fmt.Errorf("decode questions: %w", err)
	}
	s.UserID = shared.UserID(uid)
	s.WeekID = shared.WeekID(wid)
	s.Questions = decoded
	s.TimeLimit = time.Duration(timeLimitSeconds) * time.Second
	s.State = practice.State(state)
	return &s, nil
}

// Close moves a session into a terminal state. The WHERE clause makes the
// first writer win: a concurrent close sees zero affected rows.
func (r *SessionRepository) Close(ctx context.Context, sessionID string, state practice.State) error {
	query := `UPDATE practice_sessions SET state = $2 WHERE id = $1 AND state = 'running'`

	tag, err := r.conn.Exec(ctx, query, sessionID, string(state))
	if err != nil {
		return fmt.Errorf("close session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrSessionAlreadyClosed
	}
	return nil
}

// HasClosed reports whether the pair has a session in a terminal state.
func (r *SessionRepository) HasClosed(ctx context.Context, userID shared.UserID, weekID shared.WeekID) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM practice_sessions
			WHERE user_id = $1 AND week_id = $2 AND state <> 'running'
		)
	`

	var closed bool
	row := r.conn.QueryRow(ctx, query, userID.String(), weekID.String())
	if err := row.Scan(&closed); err != nil {
		return false, fmt.Errorf("has closed session: %w", err)
	}
	return closed, nil
}

// DeleteExpired removes running sessions started before the threshold.
func (r *SessionRepository) DeleteExpired(ctx context.Context, olderThan time.Time) (int, error) {
	query := `DELETE FROM practice_sessions WHERE state = 'running' AND started_at < $1`

	tag, err := r.conn.Exec(ctx, query, olderThan)
	if err != nil {
		return 0, fmt.Errorf("delete expired sessions: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

// ══════════════════════════════════════════════════════════════════════════════
// PRACTICE RESULT REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// ResultRepository implements practice.ResultRepository for PostgreSQL.
type ResultRepository struct {
	conn *Connection
}

// NewResultRepository creates a new ResultRepository.
func NewResultRepository(conn *Connection) *ResultRepository {
	return &ResultRepository{conn: conn}
}

const resultColumns = `session_id, user_id, week_id, stars_earned, correct_answers,
	total_questions, time_spent_seconds, completed_within_time, is_mastered,
	timed_out, completed_at`

// Save stores a terminal practice result.
func (r *ResultRepository) Save(ctx context.Context, result practice.Result) error {
	query := fmt.Sprintf(`
		INSERT INTO practice_results (%s)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (session_id) DO NOTHING
	`, resultColumns)

	if _, err := r.conn.Exec(ctx, query,
		result.SessionID, result.UserID.String(), result.WeekID.String(),
		result.StarsEarned.Int(), result.CorrectAnswers, result.TotalQuestions,
		result.TimeSpentSeconds, result.CompletedWithinTime, result.IsMastered,
		result.TimedOut, result.CompletedAt,
	); err != nil {
		return fmt.Errorf("save result: %w", err)
	}
	return nil
}

// GetBest returns the best attempt of a (user, week) pair, ranked by
// stars then correct answers. Returns (nil, nil) when there are no attempts.
func (r *ResultRepository) GetBest(ctx context.Context, userID shared.UserID, weekID shared.WeekID) (*practice.Result, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM practice_results
		WHERE user_id = $1 AND week_id = $2
		ORDER BY stars_earned DESC, correct_answers DESC, completed_at ASC
		LIMIT 1
	`, resultColumns)

	var res practice.Result
	var uid, wid string
	var stars int
	row := r.conn.QueryRow(ctx, query, userID.String(), weekID.String())
	err := row.Scan(
		&res.SessionID, &uid, &wid, &stars, &res.CorrectAnswers,
		&res.TotalQuestions, &res.TimeSpentSeconds, &res.CompletedWithinTime,
		&res.IsMastered, &res.TimedOut, &res.CompletedAt,
	)
	if IsNoRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get best result: %w", err)
	}
	res.UserID = shared.UserID(uid)
	res.WeekID = shared.WeekID(wid)
	res.StarsEarned = shared.Stars(stars)
	return &res, nil
}

// IsMastered reports whether the user has any three-star attempt for the week.
func (r *ResultRepository) IsMastered(ctx context.Context, userID shared.UserID, weekID shared.WeekID) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM practice_results
			WHERE user_id = $1 AND week_id = $2 AND is_mastered
		)
	`

	var mastered bool
	row := r.conn.QueryRow(ctx, query, userID.String(), weekID.String())
	if err := row.Scan(&mastered); err != nil {
		return false, fmt.Errorf("is mastered: %w", err)
	}
	return mastered, nil
}

// CountCompleted returns the number of finished practice attempts of a user.
func (r *ResultRepository) CountCompleted(ctx context.Context, userID shared.UserID) (int, error) {
	query := `SELECT COUNT(*) FROM practice_results WHERE user_id = $1`

	var count int
	row := r.conn.QueryRow(ctx, query, userID.String())
	if err := row.Scan(&count); err != nil {
		return 0, fmt.Errorf("count completed practices: %w", err)
	}
	return count, nil
}

// CountMastered returns the number of distinct weeks mastered by a user.
func (r *ResultRepository) CountMastered(ctx context.Context, userID shared.UserID) (int, error) {
	query := `SELECT COUNT(DISTINCT week_id) FROM practice_results WHERE user_id = $1 AND is_mastered`

	var count int
	row := r.conn.QueryRow(ctx, query, userID.String())
	if err := row.Scan(&count); err != nil {
		return 0, fmt.Errorf("count mastered weeks: %w", err)
	}
	return count, nil
}
