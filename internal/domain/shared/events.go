// Package shared contains common domain types, errors, events, and value objects
// that are used across all domain packages.
package shared

import (
	"encoding/json"
	"time"
)

// EventType represents the type of domain event.
type EventType string

// Domain event types - these drive the event-driven architecture.
// Each event represents something significant that happened in the domain.
const (
	// Study events
	EventUnitCompleted   EventType = "study.unit_completed"
	EventStageCompleted  EventType = "study.stage_completed"
	EventLessonCompleted EventType = "study.lesson_completed"
	EventWeekCompleted   EventType = "study.week_completed"

	// Progress events
	EventXPGained      EventType = "progress.xp_gained"
	EventLevelUp       EventType = "progress.level_up"
	EventStreakUpdated EventType = "progress.streak_updated"
	EventStreakBroken  EventType = "progress.streak_broken"

	// Practice events
	EventPracticeStarted   EventType = "practice.started"
	EventPracticeCompleted EventType = "practice.completed"
	EventPracticeTimedOut  EventType = "practice.timed_out"
	EventWeekMastered      EventType = "practice.week_mastered"

	// Achievement events
	EventAchievementUnlocked EventType = "achievement.unlocked"

	// Presence events
	EventUserWentOnline  EventType = "presence.went_online"
	EventUserWentOffline EventType = "presence.went_offline"
)

// Event is the base interface for all domain events.
type Event interface {
	// EventType returns the type of the event.
	EventType() EventType

	// OccurredAt returns when the event occurred.
	OccurredAt() time.Time

	// AggregateID returns the ID of the aggregate that produced this event.
	AggregateID() string

	// Payload returns the event data as a map for serialization.
	Payload() map[string]interface{}
}

// BaseEvent provides common event functionality.
type BaseEvent struct {
	Type          EventType `json:"type"`
	Timestamp     time.Time `json:"timestamp"`
	AggregateId   string    `json:"aggregate_id"`
	Version       int       `json:"version"`
	CorrelationID string    `json:"correlation_id,omitempty"`
}

// EventType implements Event interface.
func (e BaseEvent) EventType() EventType {
	return e.Type
}

// OccurredAt implements Event interface.
func (e BaseEvent) OccurredAt() time.Time {
	return e.Timestamp
}

// AggregateID implements Event interface.
func (e BaseEvent) AggregateID() string {
	return e.AggregateId
}

// NewBaseEvent creates a new base event.
func NewBaseEvent(eventType EventType, aggregateID string) BaseEvent {
	return BaseEvent{
		Type:        eventType,
		Timestamp:   time.Now().UTC(),
		AggregateId: aggregateID,
		Version:     1,
	}
}

// WithCorrelationID sets the correlation ID for tracing.
func (e BaseEvent) WithCorrelationID(id string) BaseEvent {
	e.CorrelationID = id
	return e
}

// ═══════════════════════════════════════════════════════════════════════════
// Study Events
// ═══════════════════════════════════════════════════════════════════════════

// UnitCompletedEvent is emitted when a user completes a single unit of a stage.
type UnitCompletedEvent struct {
	BaseEvent
	UserID    string `json:"user_id"`
	WeekID    string `json:"week_id"`
	LessonID  string `json:"lesson_id"`
	StageType string `json:"stage_type"`
	UnitIndex int    `json:"unit_index"`
}

// Payload implements Event interface.
func (e UnitCompletedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":    e.UserID,
		"week_id":    e.WeekID,
		"lesson_id":  e.LessonID,
		"stage_type": e.StageType,
		"unit_index": e.UnitIndex,
	}
}

// NewUnitCompletedEvent creates a new UnitCompletedEvent.
func NewUnitCompletedEvent(userID, weekID, lessonID, stageType string, unitIndex int) UnitCompletedEvent {
	return UnitCompletedEvent{
		BaseEvent: NewBaseEvent(EventUnitCompleted, userID),
		UserID:    userID,
		WeekID:    weekID,
		LessonID:  lessonID,
		StageType: stageType,
		UnitIndex: unitIndex,
	}
}

// LessonCompletedEvent is emitted when the last stage of a lesson flips to completed.
type LessonCompletedEvent struct {
	BaseEvent
	UserID   string `json:"user_id"`
	WeekID   string `json:"week_id"`
	LessonID string `json:"lesson_id"`
	XPEarned int    `json:"xp_earned"`
}

// Payload implements Event interface.
func (e LessonCompletedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":   e.UserID,
		"week_id":   e.WeekID,
		"lesson_id": e.LessonID,
		"xp_earned": e.XPEarned,
	}
}

// NewLessonCompletedEvent creates a new LessonCompletedEvent.
func NewLessonCompletedEvent(userID, weekID, lessonID string, xpEarned int) LessonCompletedEvent {
	return LessonCompletedEvent{
		BaseEvent: NewBaseEvent(EventLessonCompleted, userID),
		UserID:    userID,
		WeekID:    weekID,
		LessonID:  lessonID,
		XPEarned:  xpEarned,
	}
}

// WeekCompletedEvent is emitted when every lesson of a week is completed.
type WeekCompletedEvent struct {
	BaseEvent
	UserID string `json:"user_id"`
	WeekID string `json:"week_id"`
}

// Payload implements Event interface.
func (e WeekCompletedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id": e.UserID,
		"week_id": e.WeekID,
	}
}

// NewWeekCompletedEvent creates a new WeekCompletedEvent.
func NewWeekCompletedEvent(userID, weekID string) WeekCompletedEvent {
	return WeekCompletedEvent{
		BaseEvent: NewBaseEvent(EventWeekCompleted, userID),
		UserID:    userID,
		WeekID:    weekID,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Progress Events
// ═══════════════════════════════════════════════════════════════════════════

// XPGainedEvent is emitted when a user gains XP.
type XPGainedEvent struct {
	BaseEvent
	UserID   string `json:"user_id"`
	Amount   int    `json:"amount"`
	NewTotal int    `json:"new_total"`
	Source   string `json:"source"` // e.g., "lesson_completed", "practice", "achievement"
	RefID    string `json:"ref_id,omitempty"`
}

// Payload implements Event interface.
func (e XPGainedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":   e.UserID,
		"amount":    e.Amount,
		"new_total": e.NewTotal,
		"source":    e.Source,
		"ref_id":    e.RefID,
	}
}

// NewXPGainedEvent creates a new XPGainedEvent.
func NewXPGainedEvent(userID string, amount, newTotal int, source, refID string) XPGainedEvent {
	return XPGainedEvent{
		BaseEvent: NewBaseEvent(EventXPGained, userID),
		UserID:    userID,
		Amount:    amount,
		NewTotal:  newTotal,
		Source:    source,
		RefID:     refID,
	}
}

// LevelUpEvent is emitted when the derived level of a user increases.
type LevelUpEvent struct {
	BaseEvent
	UserID   string `json:"user_id"`
	OldLevel int    `json:"old_level"`
	NewLevel int    `json:"new_level"`
}

// Payload implements Event interface.
func (e LevelUpEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":   e.UserID,
		"old_level": e.OldLevel,
		"new_level": e.NewLevel,
	}
}

// NewLevelUpEvent creates a new LevelUpEvent.
func NewLevelUpEvent(userID string, oldLevel, newLevel int) LevelUpEvent {
	return LevelUpEvent{
		BaseEvent: NewBaseEvent(EventLevelUp, userID),
		UserID:    userID,
		OldLevel:  oldLevel,
		NewLevel:  newLevel,
	}
}

// StreakUpdatedEvent is emitted when a user's daily streak changes.
type StreakUpdatedEvent struct {
	BaseEvent
	UserID         string `json:"user_id"`
	CurrentStreak  int    `json:"current_streak"`
	PreviousStreak int    `json:"previous_streak"`
	WasReset       bool   `json:"was_reset"`
}

// Payload implements Event interface.
func (e StreakUpdatedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":         e.UserID,
		"current_streak":  e.CurrentStreak,
		"previous_streak": e.PreviousStreak,
		"was_reset":       e.WasReset,
	}
}

// NewStreakUpdatedEvent creates a new StreakUpdatedEvent.
func NewStreakUpdatedEvent(userID string, current, previous int, wasReset bool) StreakUpdatedEvent {
	return StreakUpdatedEvent{
		BaseEvent:      NewBaseEvent(EventStreakUpdated, userID),
		UserID:         userID,
		CurrentStreak:  current,
		PreviousStreak: previous,
		WasReset:       wasReset,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Practice Events
// ═══════════════════════════════════════════════════════════════════════════

// PracticeStartedEvent is emitted when a practice session is opened.
type PracticeStartedEvent struct {
	BaseEvent
	UserID    string `json:"user_id"`
	WeekID    string `json:"week_id"`
	SessionID string `json:"session_id"`
}

// Payload implements Event interface.
func (e PracticeStartedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":    e.UserID,
		"week_id":    e.WeekID,
		"session_id": e.SessionID,
	}
}

// NewPracticeStartedEvent creates a new PracticeStartedEvent.
func NewPracticeStartedEvent(userID, weekID, sessionID string) PracticeStartedEvent {
	return PracticeStartedEvent{
		BaseEvent: NewBaseEvent(EventPracticeStarted, userID),
		UserID:    userID,
		WeekID:    weekID,
		SessionID: sessionID,
	}
}

// PracticeCompletedEvent is emitted when a practice session is finalized.
type PracticeCompletedEvent struct {
	BaseEvent
	UserID           string `json:"user_id"`
	WeekID           string `json:"week_id"`
	StarsEarned      int    `json:"stars_earned"`
	CorrectAnswers   int    `json:"correct_answers"`
	TotalQuestions   int    `json:"total_questions"`
	TimeSpentSeconds int    `json:"time_spent_seconds"`
	IsMastered       bool   `json:"is_mastered"`
	TimedOut         bool   `json:"timed_out"`
}

// Payload implements Event interface.
func (e PracticeCompletedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":            e.UserID,
		"week_id":            e.WeekID,
		"stars_earned":       e.StarsEarned,
		"correct_answers":    e.CorrectAnswers,
		"total_questions":    e.TotalQuestions,
		"time_spent_seconds": e.TimeSpentSeconds,
		"is_mastered":        e.IsMastered,
		"timed_out":          e.TimedOut,
	}
}

// NewPracticeCompletedEvent creates a new PracticeCompletedEvent.
func NewPracticeCompletedEvent(userID, weekID string, stars, correct, total, timeSpent int, mastered, timedOut bool) PracticeCompletedEvent {
	eventType := EventPracticeCompleted
	if timedOut {
		eventType = EventPracticeTimedOut
	}
	return PracticeCompletedEvent{
		BaseEvent:        NewBaseEvent(eventType, userID),
		UserID:           userID,
		WeekID:           weekID,
		StarsEarned:      stars,
		CorrectAnswers:   correct,
		TotalQuestions:   total,
		TimeSpentSeconds: timeSpent,
		IsMastered:       mastered,
		TimedOut:         timedOut,
	}
}

// WeekMasteredEvent is emitted on the one-way transition to the mastered state.
type WeekMasteredEvent struct {
	BaseEvent
	UserID string `json:"user_id"`
	WeekID string `json:"week_id"`
}

// Payload implements Event interface.
func (e WeekMasteredEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id": e.UserID,
		"week_id": e.WeekID,
	}
}

// NewWeekMasteredEvent creates a new WeekMasteredEvent.
func NewWeekMasteredEvent(userID, weekID string) WeekMasteredEvent {
	return WeekMasteredEvent{
		BaseEvent: NewBaseEvent(EventWeekMastered, userID),
		UserID:    userID,
		WeekID:    weekID,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Achievement Events
// ═══════════════════════════════════════════════════════════════════════════

// AchievementUnlockedEvent is emitted when a user unlocks an achievement.
type AchievementUnlockedEvent struct {
	BaseEvent
	UserID   string `json:"user_id"`
	Code     string `json:"code"`
	XPReward int    `json:"xp_reward"`
}

// Payload implements Event interface.
func (e AchievementUnlockedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":   e.UserID,
		"code":      e.Code,
		"xp_reward": e.XPReward,
	}
}

// NewAchievementUnlockedEvent creates a new AchievementUnlockedEvent.
func NewAchievementUnlockedEvent(userID, code string, xpReward int) AchievementUnlockedEvent {
	return AchievementUnlockedEvent{
		BaseEvent: NewBaseEvent(EventAchievementUnlocked, userID),
		UserID:    userID,
		Code:      code,
		XPReward:  xpReward,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Event Envelope (for serialization and transport)
// ═══════════════════════════════════════════════════════════════════════════

// EventEnvelope wraps an event for transport/storage.
type EventEnvelope struct {
	ID            string          `json:"id"`
	Type          EventType       `json:"type"`
	AggregateID   string          `json:"aggregate_id"`
	Timestamp     time.Time       `json:"timestamp"`
	Version       int             `json:"version"`
	CorrelationID string          `json:"correlation_id,omitempty"`
	Payload       json.RawMessage `json:"payload"`
}

// EventHandler is a function that handles an event.
type EventHandler func(event Event) error

// EventPublisher defines the interface for publishing events.
type EventPublisher interface {
	// Publish sends an event to subscribers.
	Publish(event Event) error
}

// EventSubscriber defines the interface for subscribing to events.
type EventSubscriber interface {
	// Subscribe registers a handler for an event type.
	Subscribe(eventType EventType, handler EventHandler) error

	// SubscribeAll registers a handler for all events.
	SubscribeAll(handler EventHandler) error
}

// EventBus combines publishing and subscribing.
type EventBus interface {
	EventPublisher
	EventSubscriber
}
