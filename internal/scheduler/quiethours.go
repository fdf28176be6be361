// Package scheduler turns dosing rules into concrete reminder instants inside
// a rolling time window and materializes them as adherence records.
package scheduler

import (
	"fmt"
	"time"

	"github.com/medtrack/go-adherence/internal/domain/medication"
)

// QuietWindow is a parsed quiet-hours band in minutes since midnight.
// Start > End means the band wraps past midnight.
type QuietWindow struct {
	Start int
	End   int
}

// ParseQuietWindow parses a schedule's quiet hours. A nil input yields a nil
// window, which is never quiet.
func ParseQuietWindow(q *medication.QuietHours) (*QuietWindow, error) {
	if q == nil {
		return nil, nil
	}
	sh, sm, err := medication.ParseClock(q.Start)
	if err != nil {
		return nil, fmt.Errorf("quiet hours start: %w", err)
	}
	eh, em, err := medication.ParseClock(q.End)
	if err != nil {
		return nil, fmt.Errorf("quiet hours end: %w", err)
	}
	return &QuietWindow{Start: sh*60 + sm, End: eh*60 + em}, nil
}

// Contains reports whether the instant's time-of-day falls inside the quiet
// band. Only the wall-clock component of t is compared.
func (w *QuietWindow) Contains(t time.Time) bool {
	if w == nil {
		return false
	}
	minute := t.Hour()*60 + t.Minute()
	if w.Start <= w.End {
		return minute >= w.Start && minute <= w.End
	}
	// Band wraps midnight.
	return minute >= w.Start || minute <= w.End
}

// ShiftPast moves a quiet instant to the moment quiet hours end: the
// time-of-day becomes End, rolling to the next calendar day when that would
// not land strictly after t.
func (w *QuietWindow) ShiftPast(t time.Time) time.Time {
	if w == nil {
		return t
	}
	shifted := time.Date(t.Year(), t.Month(), t.Day(), w.End/60, w.End%60, 0, 0, t.Location())
	if !shifted.After(t) {
		shifted = shifted.AddDate(0, 0, 1)
	}
	return shifted
}
