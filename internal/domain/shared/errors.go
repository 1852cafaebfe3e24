// Package shared contains common domain types, errors, events, and value objects
// that are used across all domain packages. This package has zero external dependencies.
package shared

import (
	"errors"
	"fmt"
)

// Base domain errors that can be used for error checking with errors.Is().
var (
	// Entity errors
	ErrNotFound      = errors.New("entity not found")
	ErrAlreadyExists = errors.New("entity already exists")
	ErrInvalidEntity = errors.New("invalid entity")

	// Validation errors
	ErrValidation      = errors.New("validation error")
	ErrInvalidID       = errors.New("invalid ID")
	ErrInvalidInput    = errors.New("invalid input")
	ErrEmptyValue      = errors.New("value cannot be empty")
	ErrNegativeValue   = errors.New("value cannot be negative")
	ErrValueOutOfRange = errors.New("value out of range")
	ErrInvalidFormat   = errors.New("invalid format")

	// State errors
	ErrInvalidState    = errors.New("invalid state")
	ErrStateTransition = errors.New("invalid state transition")
	ErrLocked          = errors.New("locked")
	ErrTerminalState   = errors.New("terminal state reached")
	ErrExpired         = errors.New("expired")
	ErrAlreadyClosed   = errors.New("already closed")

	// Authorization errors
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrForbidden       = errors.New("forbidden")

	// Concurrency errors
	ErrConcurrentModification = errors.New("concurrent modification detected")

	// External service errors
	ErrExternalService    = errors.New("external service error")
	ErrServiceUnavailable = errors.New("service unavailable")
	ErrTimeout            = errors.New("operation timeout")
	ErrRetryable          = errors.New("retryable error")
)

// DomainError represents a domain-specific error with context.
type DomainError struct {
	Domain  string // e.g., "practice", "leaderboard", "study"
	Op      string // Operation that failed, e.g., "Start", "Complete"
	Kind    error  // Base error type for errors.Is() checking
	Message string // Human-readable message
	Err     error  // Underlying error (optional)
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	msg := fmt.Sprintf("%s.%s: %s", e.Domain, e.Op, e.Message)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying error for errors.Unwrap().
func (e *DomainError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return e.Kind
}

// Is implements errors.Is() matching against both the kind and the cause.
func (e *DomainError) Is(target error) bool {
	return (e.Kind != nil && errors.Is(e.Kind, target)) ||
		(e.Err != nil && errors.Is(e.Err, target))
}

// NewDomainError creates a new domain error.
func NewDomainError(domain, op string, kind error, message string) *DomainError {
	return WrapError(domain, op, kind, message, nil)
}

// WrapError wraps an existing error with domain context.
func WrapError(domain, op string, kind error, message string, err error) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Message: message,
		Err:     err,
	}
}

// Study domain errors
var (
	ErrWeekNotFound    = NewDomainError("study", "Find", ErrNotFound, "week not found")
	ErrLessonNotFound  = NewDomainError("study", "Find", ErrNotFound, "lesson not found")
	ErrStageLocked     = NewDomainError("study", "CompleteUnit", ErrLocked, "stage is locked")
	ErrLessonLocked    = NewDomainError("study", "CompleteUnit", ErrLocked, "lesson is locked")
	ErrUnitOutOfRange  = NewDomainError("study", "CompleteUnit", ErrValueOutOfRange, "unit index out of range")
	ErrStageRegression = NewDomainError("study", "CompleteUnit", ErrStateTransition, "completed stages cannot regress")
)

// Practice domain errors
var (
	ErrPracticeNotUnlocked   = NewDomainError("practice", "Start", ErrLocked, "practice requires all lessons of the week completed")
	ErrAlreadyMastered       = NewDomainError("practice", "Start", ErrTerminalState, "week already mastered with three stars")
	ErrSessionExpired        = NewDomainError("practice", "Complete", ErrExpired, "practice session timed out")
	ErrSessionAlreadyClosed  = NewDomainError("practice", "Complete", ErrAlreadyClosed, "practice session already finalized")
	ErrSessionNotFound       = NewDomainError("practice", "Complete", ErrNotFound, "no open practice session")
	ErrSessionAlreadyRunning = NewDomainError("practice", "Start", ErrAlreadyExists, "practice session already running")
)

// Progress domain errors
var (
	ErrProgressNotFound = NewDomainError("progress", "Find", ErrNotFound, "user progress not found")
	ErrInvalidXPAmount  = NewDomainError("progress", "Validate", ErrNegativeValue, "xp amount must be non-negative")
)

// Achievement domain errors
var (
	ErrAchievementNotFound = NewDomainError("achievement", "Find", ErrNotFound, "achievement not found")
	ErrAchievementUnlocked = NewDomainError("achievement", "Unlock", ErrAlreadyExists, "achievement already unlocked")
)

// Leaderboard domain errors
var (
	ErrSeasonNotFound      = NewDomainError("leaderboard", "Find", ErrNotFound, "season not found")
	ErrInvalidPeriod       = NewDomainError("leaderboard", "Validate", ErrInvalidInput, "invalid leaderboard period")
	ErrLeaderboardDegraded = NewDomainError("leaderboard", "Query", ErrRetryable, "leaderboard temporarily unavailable")
)

// Identity errors
var (
	ErrUserUnauthenticated = NewDomainError("identity", "Resolve", ErrUnauthenticated, "request carries no authenticated user")
)

// IsNotFound checks if the error is a "not found" error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsAlreadyExists checks if the error is an "already exists" error.
func IsAlreadyExists(err error) bool {
	return errors.Is(err, ErrAlreadyExists)
}

// IsValidation checks if the error is a validation error.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrInvalidID) ||
		errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrEmptyValue) ||
		errors.Is(err, ErrNegativeValue) ||
		errors.Is(err, ErrValueOutOfRange)
}

// IsRetryable checks if the operation can be retried.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrRetryable) ||
		errors.Is(err, ErrServiceUnavailable) ||
		errors.Is(err, ErrTimeout) ||
		errors.Is(err, ErrConcurrentModification)
}

// IsTerminal checks if the error marks a one-way terminal state (e.g. mastery).
func IsTerminal(err error) bool {
	return errors.Is(err, ErrTerminalState)
}
