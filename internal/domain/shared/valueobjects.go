// Package shared contains common domain types, errors, events, and value objects
// that are used across all domain packages.
package shared

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// ═══════════════════════════════════════════════════════════════════════════
// ID Value Objects
// ═══════════════════════════════════════════════════════════════════════════

// UserID represents a unique user identifier (UUID format).
type UserID string

// UUID validation regex (simple version).
var uuidRegex = regexp.MustCompile(`^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}$`)

// IsValid checks if the user ID is a valid UUID.
func (u UserID) IsValid() bool {
	return uuidRegex.MatchString(string(u))
}

// String returns the string representation.
func (u UserID) String() string {
	return string(u)
}

// IsEmpty checks if the ID is empty.
func (u UserID) IsEmpty() bool {
	return u == ""
}

// NewUserID creates a new UserID with validation.
func NewUserID(id string) (UserID, error) {
	uid := UserID(strings.ToLower(strings.TrimSpace(id)))
	if !uid.IsValid() {
		return "", NewDomainError("shared", "NewUserID", ErrInvalidID, "invalid user ID format")
	}
	return uid, nil
}

// WeekID represents a study week identifier.
// Format: category-number (e.g., "genesis-01", "nt-survey-12").
type WeekID string

var slugIDRegex = regexp.MustCompile(`^[a-z][a-z0-9]*(-[a-z0-9]+)*$`)

// IsValid checks if the week ID format is valid.
func (w WeekID) IsValid() bool {
	s := string(w)
	return len(s) >= 3 && len(s) <= 50 && slugIDRegex.MatchString(s)
}

// String returns the string representation.
func (w WeekID) String() string {
	return string(w)
}

// NewWeekID creates a new WeekID with validation.
func NewWeekID(id string) (WeekID, error) {
	wid := WeekID(strings.ToLower(strings.TrimSpace(id)))
	if !wid.IsValid() {
		return "", NewDomainError("shared", "NewWeekID", ErrInvalidID, "invalid week ID format")
	}
	return wid, nil
}

// LessonID represents a lesson identifier inside a week.
type LessonID string

// IsValid checks if the lesson ID format is valid.
func (l LessonID) IsValid() bool {
	s := string(l)
	return len(s) >= 3 && len(s) <= 80 && slugIDRegex.MatchString(s)
}

// String returns the string representation.
func (l LessonID) String() string {
	return string(l)
}

// NewLessonID creates a new LessonID with validation.
func NewLessonID(id string) (LessonID, error) {
	lid := LessonID(strings.ToLower(strings.TrimSpace(id)))
	if !lid.IsValid() {
		return "", NewDomainError("shared", "NewLessonID", ErrInvalidID, "invalid lesson ID format")
	}
	return lid, nil
}

// ═══════════════════════════════════════════════════════════════════════════
// XP Value Object (Experience Points)
// ═══════════════════════════════════════════════════════════════════════════

// XP represents experience points earned by a user.
type XP int

const (
	// XP boundaries
	MinXP XP = 0
	MaxXP XP = 1000000 // 1 million XP cap
)

// IsValid checks if the XP value is within valid range.
func (x XP) IsValid() bool {
	return x >= MinXP && x <= MaxXP
}

// Int returns the underlying int value.
func (x XP) Int() int {
	return int(x)
}

// Add adds XP and returns the result, capped at MaxXP.
func (x XP) Add(amount int) XP {
	result := XP(int(x) + amount)
	if result > MaxXP {
		return MaxXP
	}
	if result < MinXP {
		return MinXP
	}
	return result
}

// Level calculates the level based on XP.
// Each level requires progressively more XP: level N needs 100*N on top
// of the previous one, so the function is monotonic and never demotes.
func (x XP) Level() Level {
	lvl := MinLevel
	for int(x) >= (lvl + 1).RequiredXP() {
		lvl++
	}
	return lvl
}

// ProgressToNextLevel returns percentage progress to next level (0-100).
func (x XP) ProgressToNextLevel() int {
	currentLevel := x.Level()
	currentLevelXP := currentLevel.RequiredXP()
	nextLevelXP := (currentLevel + 1).RequiredXP()

	xpInCurrentLevel := int(x) - currentLevelXP
	xpNeededForLevel := nextLevelXP - currentLevelXP

	if xpNeededForLevel == 0 {
		return 100
	}

	return (xpInCurrentLevel * 100) / xpNeededForLevel
}

// NewXP creates a new XP value with validation.
func NewXP(amount int) (XP, error) {
	if amount < int(MinXP) {
		return 0, NewDomainError("shared", "NewXP", ErrNegativeValue, "XP cannot be negative")
	}
	if amount > int(MaxXP) {
		return MaxXP, nil // Cap at max
	}
	return XP(amount), nil
}

// ═══════════════════════════════════════════════════════════════════════════
// Level Value Object
// ═══════════════════════════════════════════════════════════════════════════

// Level represents a user's level derived from total XP.
type Level int

const (
	MinLevel Level = 1
	MaxLevel Level = 100
)

// IsValid checks if the level is within valid range.
func (l Level) IsValid() bool {
	return l >= MinLevel && l <= MaxLevel
}

// Int returns the underlying int value.
func (l Level) Int() int {
	return int(l)
}

// RequiredXP returns the total XP required to reach this level.
// The per-level cost grows by 100 each step, so the cumulative
// requirement is the arithmetic sum 100*(1+2+...+(l-1)).
func (l Level) RequiredXP() int {
	if l <= 1 {
		return 0
	}
	n := int(l) - 1
	return 50 * n * (n + 1)
}

// ═══════════════════════════════════════════════════════════════════════════
// Stars Value Object (practice session rating)
// ═══════════════════════════════════════════════════════════════════════════

// Stars represents the star rating earned in a practice session (0-3).
type Stars int

const (
	NoStars    Stars = 0
	OneStar    Stars = 1
	TwoStars   Stars = 2
	ThreeStars Stars = 3
)

// IsValid checks if the star count is within valid range.
func (s Stars) IsValid() bool {
	return s >= NoStars && s <= ThreeStars
}

// Int returns the underlying int value.
func (s Stars) Int() int {
	return int(s)
}

// IsMastery reports whether this rating masters a week.
func (s Stars) IsMastery() bool {
	return s == ThreeStars
}

// Max returns the greater of two ratings.
func (s Stars) Max(other Stars) Stars {
	if other > s {
		return other
	}
	return s
}

// NewStars creates a new Stars value with validation.
func NewStars(value int) (Stars, error) {
	s := Stars(value)
	if !s.IsValid() {
		return 0, NewDomainError("shared", "NewStars", ErrValueOutOfRange, "stars must be between 0 and 3")
	}
	return s, nil
}

// ═══════════════════════════════════════════════════════════════════════════
// Rank Value Object
// ═══════════════════════════════════════════════════════════════════════════

// Rank represents a user's position in the leaderboard.
type Rank int

const (
	MinRank  Rank = 1
	Unranked Rank = 0 // Not yet ranked
)

// IsValid checks if the rank is valid.
func (r Rank) IsValid() bool {
	return r >= MinRank
}

// Int returns the underlying int value.
func (r Rank) Int() int {
	return int(r)
}

// IsUnranked checks if the user is not yet ranked.
func (r Rank) IsUnranked() bool {
	return r == Unranked
}

// IsTop returns true if the rank is in the top N.
func (r Rank) IsTop(n int) bool {
	return r.IsValid() && int(r) <= n
}

// NewRank creates a new Rank with validation.
func NewRank(position int) (Rank, error) {
	if position < 0 {
		return Unranked, NewDomainError("shared", "NewRank", ErrNegativeValue, "rank cannot be negative")
	}
	return Rank(position), nil
}

// ═══════════════════════════════════════════════════════════════════════════
// TimeRange Value Object
// ═══════════════════════════════════════════════════════════════════════════

// TimeRange represents a half-open time period [From, To).
// Leaderboard period windows use half-open ranges so that adjacent
// periods never overlap on their boundary instant.
type TimeRange struct {
	From time.Time
	To   time.Time
}

// IsValid checks if the time range is valid.
func (t TimeRange) IsValid() bool {
	return !t.From.IsZero() && !t.To.IsZero() && t.From.Before(t.To)
}

// Duration returns the duration of the time range.
func (t TimeRange) Duration() time.Duration {
	return t.To.Sub(t.From)
}

// Contains checks if a time is within the range.
func (t TimeRange) Contains(tm time.Time) bool {
	return !tm.Before(t.From) && tm.Before(t.To)
}

// String returns a compact representation, useful in logs and cache keys.
func (t TimeRange) String() string {
	return fmt.Sprintf("%s..%s", t.From.Format(time.RFC3339), t.To.Format(time.RFC3339))
}

// NewTimeRange creates a new TimeRange with validation.
func NewTimeRange(from, to time.Time) (TimeRange, error) {
	tr := TimeRange{From: from, To: to}
	if !tr.IsValid() {
		return TimeRange{}, NewDomainError("shared", "NewTimeRange", ErrInvalidInput, "'from' must be before 'to'")
	}
	return tr, nil
}

// ═══════════════════════════════════════════════════════════════════════════
// Pagination Value Object
// ═══════════════════════════════════════════════════════════════════════════

// Pagination represents pagination parameters.
type Pagination struct {
	Page     int
	PageSize int
}

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Offset returns the offset for database queries.
func (p Pagination) Offset() int {
	if p.Page <= 0 {
		return 0
	}
	return (p.Page - 1) * p.Limit()
}

// Limit returns the limit for database queries.
func (p Pagination) Limit() int {
	if p.PageSize <= 0 {
		return DefaultPageSize
	}
	if p.PageSize > MaxPageSize {
		return MaxPageSize
	}
	return p.PageSize
}

// NewPagination creates a new Pagination, clamping out-of-range input.
func NewPagination(page, pageSize int) Pagination {
	p := Pagination{Page: page, PageSize: pageSize}
	if p.Page <= 0 {
		p.Page = 1
	}
	p.PageSize = p.Limit()
	return p
}

// DefaultPagination returns default pagination.
func DefaultPagination() Pagination {
	return NewPagination(1, DefaultPageSize)
}
