// Package timeutil provides calendar utilities for the community's home
// timezone. Streaks and leaderboard periods are defined over calendar days
// of that timezone, not UTC. The default is São Paulo; SetLocation rebinds
// the package to the configured zone at startup.
// No external dependencies - uses only standard library.
package timeutil

import (
	"fmt"
	"time"
)

// SaoPauloTZ is the São Paulo timezone (UTC-3, no DST).
// Brazil abolished DST in 2019, so this is constant year-round.
var SaoPauloTZ = time.FixedZone("America/Sao_Paulo", -3*60*60)

// location is the home timezone of all calendar math in this package.
var location = SaoPauloTZ

// SetLocation rebinds the package to the given timezone. Call once during
// startup, before any goroutine uses the package; nil is ignored.
func SetLocation(loc *time.Location) {
	if loc != nil {
		location = loc
	}
}

// Location returns the home timezone currently in effect.
func Location() *time.Location {
	return location
}

// Now returns the current time in the home timezone.
func Now() time.Time {
	return time.Now().In(location)
}

// ToLocal converts a time to the home timezone.
func ToLocal(t time.Time) time.Time {
	return t.In(location)
}

// ToUTC converts a time to UTC.
func ToUTC(t time.Time) time.Time {
	return t.UTC()
}

// Date creates a time in the home timezone with the given date.
func Date(year, month, day int) time.Time {
	return time.Date(year, time.Month(month), day, 0, 0, 0, 0, location)
}

// StartOfDay returns the start of the day (00:00:00) in the home timezone.
func StartOfDay(t time.Time) time.Time {
	local := ToLocal(t)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, location)
}

// StartOfWeek returns the start of the ISO week (Monday 00:00:00).
func StartOfWeek(t time.Time) time.Time {
	local := ToLocal(t)
	weekday := int(local.Weekday())
	if weekday == 0 {
		weekday = 7 // Sunday
	}
	daysToSubtract := weekday - 1 // Monday = 1
	return StartOfDay(local.AddDate(0, 0, -daysToSubtract))
}

// StartOfYear returns January 1st 00:00:00 of the given year.
func StartOfYear(year int) time.Time {
	return time.Date(year, time.January, 1, 0, 0, 0, 0, location)
}

// WeekWindow returns the half-open window [Monday, next Monday) of the
// ISO week containing t, plus the ISO week key ("2026-W36").
func WeekWindow(t time.Time) (from, to time.Time, key string) {
	from = StartOfWeek(t)
	to = from.AddDate(0, 0, 7)
	year, week := ToLocal(t).ISOWeek()
	key = fmt.Sprintf("%d-W%02d", year, week)
	return from, to, key
}

// YearWindow returns the half-open window [Jan 1, next Jan 1) of the
// given calendar year, plus the key ("2026").
func YearWindow(year int) (from, to time.Time, key string) {
	from = StartOfYear(year)
	to = StartOfYear(year + 1)
	key = fmt.Sprintf("%d", year)
	return from, to, key
}

// Last24Hours returns the half-open window covering the last 24 hours.
func Last24Hours(now time.Time) (from, to time.Time) {
	return now.Add(-24 * time.Hour), now
}

// IsSameDay checks if two times are on the same calendar day.
func IsSameDay(t1, t2 time.Time) bool {
	l1, l2 := ToLocal(t1), ToLocal(t2)
	return l1.Year() == l2.Year() && l1.YearDay() == l2.YearDay()
}

// IsConsecutiveDay checks if t2 is the day after t1.
func IsConsecutiveDay(t1, t2 time.Time) bool {
	l1, l2 := ToLocal(t1), ToLocal(t2)
	nextDay := l1.AddDate(0, 0, 1)
	return IsSameDay(nextDay, l2)
}

// DaysBetween calculates the number of calendar days between two times.
// Rounding to whole days absorbs DST transitions: in zones that shift
// their clocks, adjacent midnights can be 23 or 25 hours apart.
func DaysBetween(t1, t2 time.Time) int {
	const day = 24 * time.Hour
	days := int(StartOfDay(t2).Sub(StartOfDay(t1)).Round(day) / day)
	if days < 0 {
		days = -days
	}
	return days
}

// Common date/time formats.
const (
	// FormatDate is the standard date format (YYYY-MM-DD).
	FormatDate = "2006-01-02"
	// FormatDateTime is the standard datetime format.
	FormatDateTime = "2006-01-02 15:04"
	// FormatDateTimeSeconds includes seconds.
	FormatDateTimeSeconds = "2006-01-02 15:04:05"
)

// FormatLocal formats a time in the home timezone with the given layout.
func FormatLocal(t time.Time, layout string) string {
	return ToLocal(t).Format(layout)
}

// FormatDateStr formats a time as a date string (YYYY-MM-DD).
func FormatDateStr(t time.Time) string {
	return FormatLocal(t, FormatDate)
}

// ParseLocal parses a time string in the home timezone.
func ParseLocal(layout, value string) (time.Time, error) {
	return time.ParseInLocation(layout, value, location)
}

// ParseDate parses a date string (YYYY-MM-DD) in the home timezone.
func ParseDate(value string) (time.Time, error) {
	return ParseLocal(FormatDate, value)
}
