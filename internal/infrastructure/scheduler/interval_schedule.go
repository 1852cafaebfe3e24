package scheduler

import (
	"fmt"
	"time"
)

// IntervalSchedule fires at a fixed interval.
type IntervalSchedule struct {
	interval time.Duration
}

// NewIntervalSchedule creates a schedule that fires every interval.
// Intervals shorter than a second are clamped to a second.
func NewIntervalSchedule(interval time.Duration) *IntervalSchedule {
	if interval < time.Second {
		interval = time.Second
	}
	return &IntervalSchedule{interval: interval}
}

// Next returns the next run time after t.
func (s *IntervalSchedule) Next(t time.Time) time.Time {
	return t.Add(s.interval)
}

// String returns a human-readable representation of the schedule.
func (s *IntervalSchedule) String() string {
	return fmt.Sprintf("every %s", s.interval)
}
