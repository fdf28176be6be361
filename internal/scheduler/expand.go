package scheduler

import (
	"fmt"
	"time"

	"github.com/medtrack/go-adherence/internal/domain/medication"
)

const (
	// MaxIntervalCandidates caps INTERVAL expansion regardless of window
	// size. Defends against misconfigured schedules with tiny intervals.
	MaxIntervalCandidates = 100
	// DedupTolerance is the +/- band around a candidate instant inside which
	// an existing record suppresses creation. Both the at-creation expansion
	// and the hourly sweep produce candidates; this band keeps them from
	// double-booking.
	DedupTolerance = 5 * time.Minute
	// LookaheadWindow is the standing forward horizon of materialized
	// records.
	LookaheadWindow = 48 * time.Hour
)

// Expand computes the candidate reminder instants for a schedule that fall
// inside [windowStart, windowEnd]. Pure generation: no dedup, no persistence,
// no day-cap accounting. Calendar math runs in loc. INTERVAL instants lie on
// the fixed grid anchor + k*IntervalHrs, so successive windows over the same
// medication agree on the same dose times; now trims grid points that are
// already in the past.
func Expand(sched medication.Schedule, loc *time.Location, anchor, windowStart, windowEnd, now time.Time) ([]time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	quiet, err := ParseQuietWindow(sched.QuietHours)
	if err != nil {
		return nil, err
	}

	switch sched.Rule {
	case medication.RuleDaily:
		return expandDaily(sched, loc, windowStart, windowEnd, quiet), nil
	case medication.RuleInterval:
		return expandInterval(sched, loc, anchor, windowStart, windowEnd, now, quiet), nil
	}
	return nil, fmt.Errorf("%w: unknown rule %q", medication.ErrInvalidSchedule, sched.Rule)
}

func expandDaily(sched medication.Schedule, loc *time.Location, windowStart, windowEnd time.Time, quiet *QuietWindow) []time.Time {
	var out []time.Time

	start := windowStart.In(loc)
	day := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, loc)

	for !day.After(windowEnd.In(loc)) {
		for _, tod := range sched.Times {
			hour, minute, err := medication.ParseClock(tod)
			if err != nil {
				continue // malformed entries were rejected at creation
			}
			candidate := time.Date(day.Year(), day.Month(), day.Day(), hour, minute, 0, 0, loc)
			if kept, ok := keepCandidate(candidate, windowStart, windowEnd, quiet); ok {
				out = append(out, kept)
			}
		}
		day = day.AddDate(0, 0, 1)
	}
	return out
}

func expandInterval(sched medication.Schedule, loc *time.Location, anchor, windowStart, windowEnd, now time.Time, quiet *QuietWindow) []time.Time {
	step := time.Duration(sched.IntervalHrs) * time.Hour

	earliest := windowStart
	if now.After(earliest) {
		earliest = now
	}

	// First grid point at or past earliest. The anchor instant itself never
	// fires; the first dose is one interval after it.
	k := int64(1)
	if diff := earliest.Sub(anchor); diff > 0 {
		k = int64(diff / step)
		if anchor.Add(time.Duration(k) * step).Before(earliest) {
			k++
		}
	}

	var out []time.Time
	for generated := 0; generated < MaxIntervalCandidates; generated++ {
		candidate := anchor.Add(time.Duration(k) * step).In(loc)
		k++
		if candidate.After(windowEnd) {
			break
		}
		if kept, ok := keepCandidate(candidate, windowStart, windowEnd, quiet); ok {
			out = append(out, kept)
		}
	}
	return out
}

// keepCandidate applies the quiet-hours filter and window membership. A quiet
// candidate is shifted past the band and must land back inside the window to
// survive.
func keepCandidate(candidate, windowStart, windowEnd time.Time, quiet *QuietWindow) (time.Time, bool) {
	if candidate.Before(windowStart) || candidate.After(windowEnd) {
		return time.Time{}, false
	}
	if quiet.Contains(candidate) {
		candidate = quiet.ShiftPast(candidate)
		if candidate.Before(windowStart) || candidate.After(windowEnd) {
			return time.Time{}, false
		}
	}
	return candidate, true
}
