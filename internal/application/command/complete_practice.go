package command

import (
	"context"
	"errors"
	"time"

	"github.com/deoglory/study-engine/internal/domain/practice"
	"github.com/deoglory/study-engine/internal/domain/progress"
	"github.com/deoglory/study-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// COMPLETE PRACTICE COMMAND
// Finalizes the running practice session of a (user, week) pair: scores
// the attempt, persists the terminal result, and awards star-based XP.
// Elapsed time is measured against the server-side start; the client
// value can only make the attempt slower, never faster.
// ══════════════════════════════════════════════════════════════════════════════

// CompletePracticeCommand contains the data to finalize a practice session.
type CompletePracticeCommand struct {
	// UserID is the authenticated user.
	UserID shared.UserID

	// WeekID is the week being practiced.
	WeekID shared.WeekID

	// CorrectAnswers as counted by the client.
	CorrectAnswers int

	// TimeSpentSeconds as reported by the client. Untrusted.
	TimeSpentSeconds int

	// CorrelationID for tracing.
	CorrelationID string
}

// Validate validates the command.
func (c CompletePracticeCommand) Validate() error {
	if c.UserID.IsEmpty() {
		return errors.New("complete_practice: user_id is required")
	}
	if !c.WeekID.IsValid() {
		return errors.New("complete_practice: week_id is invalid")
	}
	if c.CorrectAnswers < 0 {
		return errors.New("complete_practice: correct_answers must be non-negative")
	}
	if c.TimeSpentSeconds < 0 {
		return errors.New("complete_practice: time_spent must be non-negative")
	}
	return nil
}

// CompletePracticeResult contains the scored attempt.
type CompletePracticeResult struct {
	// StarsEarned for this attempt (0-3).
	StarsEarned int `json:"stars_earned"`

	// CorrectAnswers accepted by the server.
	CorrectAnswers int `json:"correct_answers"`

	// TotalQuestions in the session.
	TotalQuestions int `json:"total_questions"`

	// TimeSpentSeconds accepted by the server.
	TimeSpentSeconds int `json:"time_spent_seconds"`

	// TimedOut indicates the session exceeded the time limit.
	TimedOut bool `json:"timed_out"`

	// IsMastered indicates the week reached its terminal mastered state.
	IsMastered bool `json:"is_mastered"`

	// XPGained for this attempt.
	XPGained int `json:"xp_gained"`

	// CurrentStreak after the attempt.
	CurrentStreak int `json:"current_streak"`

	// Level after the attempt.
	Level int `json:"level"`
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// CompletePracticeHandler handles the CompletePracticeCommand.
type CompletePracticeHandler struct {
	sessionRepo    practice.SessionRepository
	resultRepo     practice.ResultRepository
	progressRepo   progress.Repository
	guard          practice.SessionGuard
	eventPublisher shared.EventPublisher

	scoring practice.ScoringConfig

	// Location defines the calendar day for streak accounting.
	location *time.Location
}

// NewCompletePracticeHandler creates a new CompletePracticeHandler.
func NewCompletePracticeHandler(
	sessionRepo practice.SessionRepository,
	resultRepo practice.ResultRepository,
	progressRepo progress.Repository,
	guard practice.SessionGuard,
	eventPublisher shared.EventPublisher,
	scoring practice.ScoringConfig,
	location *time.Location,
) *CompletePracticeHandler {
	return &CompletePracticeHandler{
		sessionRepo:    sessionRepo,
		resultRepo:     resultRepo,
		progressRepo:   progressRepo,
		guard:          guard,
		eventPublisher: eventPublisher,
		scoring:        scoring,
		location:       location,
	}
}

// Handle executes the complete practice command.
func (h *CompletePracticeHandler) Handle(ctx context.Context, cmd CompletePracticeCommand) (*CompletePracticeResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, shared.WrapError("command", "CompletePractice", shared.ErrValidation, "validation failed", err)
	}

	session, err := h.sessionRepo.GetRunning(ctx, cmd.UserID, cmd.WeekID)
	if err != nil {
		// A completion retry after the first one succeeded is not
		// "no session", it is "session already closed". Callers
		// branch on the kind, so the distinction matters.
		if errors.Is(err, shared.ErrSessionNotFound) {
			closed, closedErr := h.sessionRepo.HasClosed(ctx, cmd.UserID, cmd.WeekID)
			if closedErr == nil && closed {
				return nil, shared.ErrSessionAlreadyClosed
			}
		}
		return nil, err
	}

	wasMastered, err := h.resultRepo.IsMastered(ctx, cmd.UserID, cmd.WeekID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	scored, err := session.Finalize(h.scoring, cmd.CorrectAnswers, cmd.TimeSpentSeconds, now)
	if err != nil {
		return nil, err
	}

	// First writer wins: the repository rejects the close if a concurrent
	// request already moved the session out of the running state.
	if err := h.sessionRepo.Close(ctx, session.ID, session.State); err != nil {
		return nil, err
	}

	if err := h.resultRepo.Save(ctx, scored); err != nil {
		return nil, err
	}

	// A failed release is recovered by the guard TTL; the attempt stands.
	_ = h.guard.Release(ctx, cmd.UserID, cmd.WeekID, session.ID)

	// Mastery is one-way: it flips only on the first three-star attempt.
	newlyMastered := scored.IsMastered && !wasMastered

	result := &CompletePracticeResult{
		StarsEarned:      scored.StarsEarned.Int(),
		CorrectAnswers:   scored.CorrectAnswers,
		TotalQuestions:   scored.TotalQuestions,
		TimeSpentSeconds: scored.TimeSpentSeconds,
		TimedOut:         scored.TimedOut,
		IsMastered:       scored.IsMastered || wasMastered,
	}

	xp := scored.XPReward(h.scoring)
	event := progress.XPEvent{
		UserID:     cmd.UserID,
		Amount:     xp,
		Source:     progress.SourcePractice,
		RefID:      session.ID,
		OccurredAt: now,
	}
	delta, err := h.progressRepo.ApplyCompletion(ctx, cmd.UserID, event, func(p *progress.UserProgress) (progress.CompletionDelta, error) {
		d, applyErr := p.ApplyCompletion(xp, now, h.location)
		if applyErr != nil {
			return d, applyErr
		}
		p.PracticesCompleted++
		if newlyMastered {
			p.WeeksMastered++
		}
		return d, nil
	})
	if err != nil {
		return nil, err
	}

	result.XPGained = delta.XPGained
	result.CurrentStreak = delta.NewStreak
	result.Level = delta.NewLevel.Int()

	events := []shared.Event{
		withCorrelation(shared.NewPracticeCompletedEvent(
			cmd.UserID.String(), cmd.WeekID.String(),
			scored.StarsEarned.Int(), scored.CorrectAnswers, scored.TotalQuestions,
			scored.TimeSpentSeconds, scored.IsMastered, scored.TimedOut,
		), cmd.CorrelationID),
	}
	if xp > 0 {
		events = append(events, withCorrelation(shared.NewXPGainedEvent(
			cmd.UserID.String(), delta.XPGained, delta.NewTotalXP,
			string(progress.SourcePractice), session.ID,
		), cmd.CorrelationID))
	}
	if delta.LeveledUp {
		events = append(events, withCorrelation(shared.NewLevelUpEvent(
			cmd.UserID.String(), delta.OldLevel.Int(), delta.NewLevel.Int(),
		), cmd.CorrelationID))
	}
	if newlyMastered {
		events = append(events, withCorrelation(shared.NewWeekMasteredEvent(
			cmd.UserID.String(), cmd.WeekID.String(),
		), cmd.CorrelationID))
	}
	for _, e := range events {
		_ = h.eventPublisher.Publish(e)
	}

	return result, nil
}
