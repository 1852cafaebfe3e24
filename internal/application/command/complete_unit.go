// Package command contains write operations (CQRS - Commands).
package command

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/deoglory/study-engine/internal/domain/practice"
	"github.com/deoglory/study-engine/internal/domain/progress"
	"github.com/deoglory/study-engine/internal/domain/shared"
	"github.com/deoglory/study-engine/internal/domain/study"
)

// ══════════════════════════════════════════════════════════════════════════════
// COMPLETE UNIT COMMAND
// Advances one unit of one stage. This is the single entry point through
// which lessons, stages, and weeks become completed, and the only trigger
// for XP/streak mutation on the study path.
// ══════════════════════════════════════════════════════════════════════════════

// CompleteUnitCommand contains the data to complete a unit.
type CompleteUnitCommand struct {
	// UserID is the authenticated user.
	UserID shared.UserID

	// WeekID is the week the lesson belongs to.
	WeekID shared.WeekID

	// LessonID is the lesson being advanced.
	LessonID shared.LessonID

	// StageType is the stage being advanced.
	StageType study.StageType

	// UnitIndex is the zero-based index of the unit being completed.
	UnitIndex int

	// Timestamp is when the completion occurred (defaults to now if zero).
	Timestamp time.Time

	// CorrelationID for tracing.
	CorrelationID string
}

// Validate validates the command.
func (c CompleteUnitCommand) Validate() error {
	if c.UserID.IsEmpty() {
		return errors.New("complete_unit: user_id is required")
	}
	if !c.WeekID.IsValid() {
		return errors.New("complete_unit: week_id is invalid")
	}
	if !c.LessonID.IsValid() {
		return errors.New("complete_unit: lesson_id is invalid")
	}
	if !c.StageType.IsValid() {
		return fmt.Errorf("complete_unit: unknown stage type: %s", c.StageType)
	}
	if c.UnitIndex < 0 {
		return errors.New("complete_unit: unit_index must be non-negative")
	}
	return nil
}

// CompleteUnitResult contains the result of completing a unit.
type CompleteUnitResult struct {
	// StageCompleted indicates the stage flipped to completed.
	StageCompleted bool

	// LessonCompleted indicates the lesson flipped to completed.
	LessonCompleted bool

	// WeekCompleted indicates every lesson of the week is now completed.
	WeekCompleted bool

	// XPGained is the XP awarded (non-zero only on lesson completion).
	XPGained int

	// CurrentStreak is the streak after this completion.
	CurrentStreak int

	// Level is the level after this completion.
	Level int

	// WeekStatus is the recomputed projection after the mutation.
	WeekStatus study.WeekStatus
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// CompleteUnitHandler handles the CompleteUnitCommand.
type CompleteUnitHandler struct {
	contentRepo    study.ContentRepository
	completionRepo study.CompletionRepository
	progressRepo   progress.Repository
	resultRepo     practice.ResultRepository
	eventPublisher shared.EventPublisher

	// Location defines the calendar day for streak accounting.
	location *time.Location

	// Fallback XP per lesson when content carries no explicit reward.
	xpPerLesson int
}

// NewCompleteUnitHandler creates a new CompleteUnitHandler.
func NewCompleteUnitHandler(
	contentRepo study.ContentRepository,
	completionRepo study.CompletionRepository,
	progressRepo progress.Repository,
	resultRepo practice.ResultRepository,
	eventPublisher shared.EventPublisher,
	location *time.Location,
	xpPerLesson int,
) *CompleteUnitHandler {
	return &CompleteUnitHandler{
		contentRepo:    contentRepo,
		completionRepo: completionRepo,
		progressRepo:   progressRepo,
		resultRepo:     resultRepo,
		eventPublisher: eventPublisher,
		location:       location,
		xpPerLesson:    xpPerLesson,
	}
}

// Handle executes the complete unit command.
func (h *CompleteUnitHandler) Handle(ctx context.Context, cmd CompleteUnitCommand) (*CompleteUnitResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, shared.WrapError("command", "CompleteUnit", shared.ErrValidation, "validation failed", err)
	}

	timestamp := cmd.Timestamp
	if timestamp.IsZero() {
		timestamp = time.Now().UTC()
	}

	week, err := h.contentRepo.GetWeek(ctx, cmd.WeekID)
	if err != nil {
		return nil, err
	}

	prevWeekDone, err := h.previousWeekDone(ctx, cmd.UserID, cmd.WeekID)
	if err != nil {
		return nil, err
	}

	completions, err := h.completionRepo.GetWeekCompletions(ctx, cmd.UserID, cmd.WeekID)
	if err != nil {
		return nil, err
	}

	unitResult, err := study.CompleteUnit(
		week, completions, prevWeekDone,
		cmd.LessonID, cmd.StageType, cmd.UnitIndex, timestamp,
	)
	if err != nil {
		return nil, err
	}

	if err := h.completionRepo.SaveCompletion(ctx, cmd.UserID, cmd.WeekID, unitResult.Completion); err != nil {
		return nil, err
	}

	result := &CompleteUnitResult{
		StageCompleted:  unitResult.StageCompleted,
		LessonCompleted: unitResult.LessonCompleted,
		WeekCompleted:   unitResult.WeekCompleted,
	}

	events := []shared.Event{
		withCorrelation(shared.NewUnitCompletedEvent(
			cmd.UserID.String(), cmd.WeekID.String(), cmd.LessonID.String(),
			cmd.StageType.String(), cmd.UnitIndex,
		), cmd.CorrelationID),
	}

	if unitResult.LessonCompleted {
		xp := h.xpPerLesson
		if lesson, ok := week.Lesson(cmd.LessonID); ok && lesson.XPReward > 0 {
			xp = lesson.XPReward
		}

		event := progress.XPEvent{
			UserID:     cmd.UserID,
			Amount:     xp,
			Source:     progress.SourceLesson,
			RefID:      cmd.LessonID.String(),
			OccurredAt: timestamp,
		}
		delta, err := h.progressRepo.ApplyCompletion(ctx, cmd.UserID, event, func(p *progress.UserProgress) (progress.CompletionDelta, error) {
			d, applyErr := p.ApplyCompletion(xp, timestamp, h.location)
			if applyErr != nil {
				return d, applyErr
			}
			p.UnitsCompleted++
			p.LessonsCompleted++
			return d, nil
		})
		if err != nil {
			return nil, err
		}

		result.XPGained = delta.XPGained
		result.CurrentStreak = delta.NewStreak
		result.Level = delta.NewLevel.Int()

		events = append(events, withCorrelation(shared.NewLessonCompletedEvent(
			cmd.UserID.String(), cmd.WeekID.String(), cmd.LessonID.String(), xp,
		), cmd.CorrelationID))
		events = append(events, shared.NewXPGainedEvent(
			cmd.UserID.String(), delta.XPGained, delta.NewTotalXP,
			string(progress.SourceLesson), cmd.LessonID.String(),
		))
		if delta.LeveledUp {
			events = append(events, shared.NewLevelUpEvent(
				cmd.UserID.String(), delta.OldLevel.Int(), delta.NewLevel.Int(),
			))
		}
		events = append(events, shared.NewStreakUpdatedEvent(
			cmd.UserID.String(), delta.NewStreak, delta.OldStreak, delta.StreakReset,
		))
	} else {
		// Unit progress without lesson completion still counts units.
		_, err := h.progressRepo.ApplyCompletion(ctx, cmd.UserID, progress.XPEvent{
			UserID:     cmd.UserID,
			Amount:     0,
			Source:     progress.SourceLesson,
			RefID:      cmd.LessonID.String(),
			OccurredAt: timestamp,
		}, func(p *progress.UserProgress) (progress.CompletionDelta, error) {
			d, applyErr := p.ApplyCompletion(0, timestamp, h.location)
			if applyErr != nil {
				return d, applyErr
			}
			p.UnitsCompleted++
			return d, nil
		})
		if err != nil {
			return nil, err
		}
	}

	if unitResult.WeekCompleted {
		events = append(events, withCorrelation(shared.NewWeekCompletedEvent(
			cmd.UserID.String(), cmd.WeekID.String(),
		), cmd.CorrelationID))
	}

	// Event delivery is best-effort: achievement evaluation and other
	// listeners must never fail a successful completion.
	for _, event := range events {
		_ = h.eventPublisher.Publish(event)
	}

	mastered, err := h.resultRepo.IsMastered(ctx, cmd.UserID, cmd.WeekID)
	if err != nil {
		mastered = false
	}
	result.WeekStatus = study.ComputeWeekStatus(week, completions, prevWeekDone, mastered)

	return result, nil
}

// previousWeekDone reports whether the week preceding weekID is fully
// completed by the user. The first week is always unlocked.
func (h *CompleteUnitHandler) previousWeekDone(ctx context.Context, userID shared.UserID, weekID shared.WeekID) (bool, error) {
	prev, err := h.contentRepo.GetPreviousWeek(ctx, weekID)
	if err != nil {
		return false, err
	}
	if prev == nil {
		return true, nil
	}
	return h.completionRepo.IsWeekCompleted(ctx, userID, prev.ID)
}

// withCorrelation attaches a correlation ID to an event when present.
func withCorrelation(event shared.Event, correlationID string) shared.Event {
	if correlationID == "" {
		return event
	}
	switch e := event.(type) {
	case shared.UnitCompletedEvent:
		e.BaseEvent = e.BaseEvent.WithCorrelationID(correlationID)
		return e
	case shared.LessonCompletedEvent:
		e.BaseEvent = e.BaseEvent.WithCorrelationID(correlationID)
		return e
	case shared.WeekCompletedEvent:
		e.BaseEvent = e.BaseEvent.WithCorrelationID(correlationID)
		return e
	case shared.XPGainedEvent:
		e.BaseEvent = e.BaseEvent.WithCorrelationID(correlationID)
		return e
	case shared.LevelUpEvent:
		e.BaseEvent = e.BaseEvent.WithCorrelationID(correlationID)
		return e
	case shared.StreakUpdatedEvent:
		e.BaseEvent = e.BaseEvent.WithCorrelationID(correlationID)
		return e
	case shared.PracticeStartedEvent:
		e.BaseEvent = e.BaseEvent.WithCorrelationID(correlationID)
		return e
	case shared.PracticeCompletedEvent:
		e.BaseEvent = e.BaseEvent.WithCorrelationID(correlationID)
		return e
	case shared.WeekMasteredEvent:
		e.BaseEvent = e.BaseEvent.WithCorrelationID(correlationID)
		return e
	default:
		return event
	}
}
