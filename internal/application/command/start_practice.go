package command

import (
	"context"
	"errors"
	"time"

	"github.com/deoglory/study-engine/internal/domain/practice"
	"github.com/deoglory/study-engine/internal/domain/shared"
	"github.com/deoglory/study-engine/internal/domain/study"
)

// ══════════════════════════════════════════════════════════════════════════════
// START PRACTICE COMMAND
// Opens a timed practice session for a week. Preconditions: every lesson
// of the week is completed, the week is not already mastered, and no other
// session is running for the same (user, week) pair.
// ══════════════════════════════════════════════════════════════════════════════

// StartPracticeCommand contains the data to start a practice session.
type StartPracticeCommand struct {
	// UserID is the authenticated user.
	UserID shared.UserID

	// WeekID is the week to practice.
	WeekID shared.WeekID

	// CorrelationID for tracing.
	CorrelationID string
}

// Validate validates the command.
func (c StartPracticeCommand) Validate() error {
	if c.UserID.IsEmpty() {
		return errors.New("start_practice: user_id is required")
	}
	if !c.WeekID.IsValid() {
		return errors.New("start_practice: week_id is invalid")
	}
	return nil
}

// PracticeQuestionDTO is a question as exposed to the client.
// Correct answers are stripped: only prompts and options travel.
type PracticeQuestionDTO struct {
	ID      string   `json:"id"`
	Kind    string   `json:"kind"`
	Prompt  string   `json:"prompt"`
	Options []string `json:"options,omitempty"`
}

// StartPracticeResult contains the opened session.
type StartPracticeResult struct {
	// SessionID identifies the opened session.
	SessionID string `json:"session_id"`

	// Questions are the snapshotted questions in fixed order.
	Questions []PracticeQuestionDTO `json:"questions"`

	// TimeLimitSeconds is the session time limit.
	TimeLimitSeconds int `json:"time_limit"`

	// TotalQuestions is the number of questions.
	TotalQuestions int `json:"total_questions"`
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// StartPracticeHandler handles the StartPracticeCommand.
type StartPracticeHandler struct {
	contentRepo    study.ContentRepository
	completionRepo study.CompletionRepository
	sessionRepo    practice.SessionRepository
	resultRepo     practice.ResultRepository
	guard          practice.SessionGuard
	questions      practice.QuestionSource
	eventPublisher shared.EventPublisher

	scoring    practice.ScoringConfig
	sessionTTL time.Duration
}

// NewStartPracticeHandler creates a new StartPracticeHandler.
func NewStartPracticeHandler(
	contentRepo study.ContentRepository,
	completionRepo study.CompletionRepository,
	sessionRepo practice.SessionRepository,
	resultRepo practice.ResultRepository,
	guard practice.SessionGuard,
	questions practice.QuestionSource,
	eventPublisher shared.EventPublisher,
	scoring practice.ScoringConfig,
	sessionTTL time.Duration,
) *StartPracticeHandler {
	return &StartPracticeHandler{
		contentRepo:    contentRepo,
		completionRepo: completionRepo,
		sessionRepo:    sessionRepo,
		resultRepo:     resultRepo,
		guard:          guard,
		questions:      questions,
		eventPublisher: eventPublisher,
		scoring:        scoring,
		sessionTTL:     sessionTTL,
	}
}

// Handle executes the start practice command.
func (h *StartPracticeHandler) Handle(ctx context.Context, cmd StartPracticeCommand) (*StartPracticeResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, shared.WrapError("command", "StartPractice", shared.ErrValidation, "validation failed", err)
	}

	// Week must exist.
	if _, err := h.contentRepo.GetWeek(ctx, cmd.WeekID); err != nil {
		return nil, err
	}

	// Mastery is a one-way terminal state: once three stars were earned,
	// the week is read-only for practice.
	mastered, err := h.resultRepo.IsMastered(ctx, cmd.UserID, cmd.WeekID)
	if err != nil {
		return nil, err
	}
	if mastered {
		return nil, shared.ErrAlreadyMastered
	}

	// Practice unlocks only after every lesson of the week is completed.
	unlocked, err := h.completionRepo.IsWeekCompleted(ctx, cmd.UserID, cmd.WeekID)
	if err != nil {
		return nil, err
	}
	if !unlocked {
		return nil, shared.ErrPracticeNotUnlocked
	}

	questions, err := h.questions.QuestionsForWeek(ctx, cmd.WeekID, h.scoring.TotalQuestions)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	session, err := practice.NewSession(cmd.UserID, cmd.WeekID, questions, h.scoring.TimeLimit, now)
	if err != nil {
		return nil, err
	}

	// At-most-one running session per (user, week): the guard loses to
	// whoever holds an open session, with the TTL as a safety valve for
	// abandoned clients.
	acquired, err := h.guard.Acquire(ctx, cmd.UserID, cmd.WeekID, session.ID, h.sessionTTL)
	if err != nil {
		return nil, err
	}
	if !acquired {
		return nil, shared.ErrSessionAlreadyRunning
	}

	if err := h.sessionRepo.Create(ctx, session); err != nil {
		_ = h.guard.Release(ctx, cmd.UserID, cmd.WeekID, session.ID)
		return nil, err
	}

	_ = h.eventPublisher.Publish(withCorrelation(shared.NewPracticeStartedEvent(
		cmd.UserID.String(), cmd.WeekID.String(), session.ID,
	), cmd.CorrelationID))

	result := &StartPracticeResult{
		SessionID:        session.ID,
		Questions:        make([]PracticeQuestionDTO, 0, len(questions)),
		TimeLimitSeconds: int(h.scoring.TimeLimit / time.Second),
		TotalQuestions:   len(questions),
	}
	for _, q := range questions {
		result.Questions = append(result.Questions, PracticeQuestionDTO{
			ID:      q.ID,
			Kind:    string(q.Kind),
			Prompt:  q.Prompt,
			Options: q.Options,
		})
	}
	return result, nil
}
