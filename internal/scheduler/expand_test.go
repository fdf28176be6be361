package scheduler

import (
	"testing"
	"time"

	"github.com/medtrack/go-adherence/internal/domain/medication"
)

func utc(y int, m time.Month, d, hour, minute int) time.Time {
	return time.Date(y, m, d, hour, minute, 0, 0, time.UTC)
}

func TestExpandDaily(t *testing.T) {
	sched := medication.Schedule{
		Rule:  medication.RuleDaily,
		Times: []string{"08:00", "20:00"},
	}
	windowStart := utc(2024, 1, 1, 0, 0)
	windowEnd := utc(2024, 1, 2, 0, 0)

	got, err := Expand(sched, time.UTC, windowStart, windowStart, windowEnd, windowStart)
	if err != nil {
		t.Fatalf("expand failed: %v", err)
	}

	want := []time.Time{utc(2024, 1, 1, 8, 0), utc(2024, 1, 1, 20, 0)}
	if len(got) != len(want) {
		t.Fatalf("got %d candidates %v, want %d", len(got), got, len(want))
	}
	for i := range want {
		if !got[i].Equal(want[i]) {
			t.Errorf("candidate %d = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestExpandDailyQuietHoursShift(t *testing.T) {
	sched := medication.Schedule{
		Rule:       medication.RuleDaily,
		Times:      []string{"23:00"},
		QuietHours: &medication.QuietHours{Start: "22:00", End: "07:00"},
	}
	windowStart := utc(2024, 1, 1, 0, 0)
	windowEnd := utc(2024, 1, 3, 0, 0)

	got, err := Expand(sched, time.UTC, windowStart, windowStart, windowEnd, windowStart)
	if err != nil {
		t.Fatalf("expand failed: %v", err)
	}

	// Jan 1 23:00 shifts to Jan 2 07:00 and stays inside the window.
	// Jan 2 23:00 would shift to Jan 3 07:00, past the window, so it drops.
	if len(got) != 1 {
		t.Fatalf("got %d candidates %v, want 1", len(got), got)
	}
	if want := utc(2024, 1, 2, 7, 0); !got[0].Equal(want) {
		t.Errorf("candidate = %v, want %v", got[0], want)
	}
}

func TestExpandDailyTimezone(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}

	sched := medication.Schedule{
		Rule:  medication.RuleDaily,
		Times: []string{"08:00"},
	}
	windowStart := utc(2024, 1, 1, 0, 0)
	windowEnd := utc(2024, 1, 2, 0, 0)

	got, err := Expand(sched, loc, windowStart, windowStart, windowEnd, windowStart)
	if err != nil {
		t.Fatalf("expand failed: %v", err)
	}

	// 08:00 in New York is 13:00 UTC in January.
	if len(got) != 1 {
		t.Fatalf("got %d candidates %v, want 1", len(got), got)
	}
	if want := utc(2024, 1, 1, 13, 0); !got[0].UTC().Equal(want) {
		t.Errorf("candidate = %v, want %v", got[0].UTC(), want)
	}
}

func TestExpandDailyNarrowWindow(t *testing.T) {
	// A one-hour slice at a day boundary picks up only the time-of-day that
	// lands inside it.
	sched := medication.Schedule{
		Rule:  medication.RuleDaily,
		Times: []string{"08:00", "23:30"},
	}
	windowStart := utc(2024, 1, 2, 23, 0)
	windowEnd := utc(2024, 1, 3, 0, 0)

	got, err := Expand(sched, time.UTC, utc(2024, 1, 1, 0, 0), windowStart, windowEnd, windowStart)
	if err != nil {
		t.Fatalf("expand failed: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("got %d candidates %v, want 1", len(got), got)
	}
	if want := utc(2024, 1, 2, 23, 30); !got[0].Equal(want) {
		t.Errorf("candidate = %v, want %v", got[0], want)
	}
}

func TestExpandInterval(t *testing.T) {
	sched := medication.Schedule{
		Rule:        medication.RuleInterval,
		IntervalHrs: 6,
	}
	anchor := utc(2024, 1, 1, 0, 0)
	windowEnd := utc(2024, 1, 2, 0, 0)

	got, err := Expand(sched, time.UTC, anchor, anchor, windowEnd, anchor)
	if err != nil {
		t.Fatalf("expand failed: %v", err)
	}

	// First candidate is one interval after the anchor, not the anchor itself.
	want := []time.Time{
		utc(2024, 1, 1, 6, 0),
		utc(2024, 1, 1, 12, 0),
		utc(2024, 1, 1, 18, 0),
		utc(2024, 1, 2, 0, 0),
	}
	if len(got) != len(want) {
		t.Fatalf("got %d candidates %v, want %d", len(got), got, len(want))
	}
	for i := range want {
		if !got[i].Equal(want[i]) {
			t.Errorf("candidate %d = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestExpandIntervalSkipsPastKeepsPhase(t *testing.T) {
	sched := medication.Schedule{
		Rule:        medication.RuleInterval,
		IntervalHrs: 4,
	}
	anchor := utc(2024, 1, 1, 0, 0)
	windowEnd := utc(2024, 1, 1, 12, 0)
	now := utc(2024, 1, 1, 5, 0)

	got, err := Expand(sched, time.UTC, anchor, anchor, windowEnd, now)
	if err != nil {
		t.Fatalf("expand failed: %v", err)
	}

	// The 04:00 grid point is already past at now=05:00 and drops; the rest
	// of the grid stays aligned on the anchor rather than re-basing on now.
	want := []time.Time{utc(2024, 1, 1, 8, 0), utc(2024, 1, 1, 12, 0)}
	if len(got) != len(want) {
		t.Fatalf("got %d candidates %v, want %d", len(got), got, len(want))
	}
	for i := range want {
		if !got[i].Equal(want[i]) {
			t.Errorf("candidate %d = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestExpandIntervalHorizonSlice(t *testing.T) {
	// A one-hour window two days after the anchor still yields the grid point
	// that lands inside it. Windows far from the anchor must not come back
	// empty for multi-hour intervals.
	sched := medication.Schedule{
		Rule:        medication.RuleInterval,
		IntervalHrs: 6,
	}
	anchor := utc(2024, 1, 1, 0, 0)
	windowStart := utc(2024, 1, 3, 5, 0)
	windowEnd := utc(2024, 1, 3, 6, 0)
	now := utc(2024, 1, 1, 6, 0)

	got, err := Expand(sched, time.UTC, anchor, windowStart, windowEnd, now)
	if err != nil {
		t.Fatalf("expand failed: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("got %d candidates %v, want 1", len(got), got)
	}
	if want := utc(2024, 1, 3, 6, 0); !got[0].Equal(want) {
		t.Errorf("candidate = %v, want %v", got[0], want)
	}
}

func TestExpandIntervalCandidateCap(t *testing.T) {
	sched := medication.Schedule{
		Rule:        medication.RuleInterval,
		IntervalHrs: 1,
	}
	windowStart := utc(2024, 1, 1, 0, 0)
	windowEnd := windowStart.Add(200 * time.Hour)

	got, err := Expand(sched, time.UTC, windowStart, windowStart, windowEnd, windowStart)
	if err != nil {
		t.Fatalf("expand failed: %v", err)
	}
	if len(got) != MaxIntervalCandidates {
		t.Fatalf("got %d candidates, want cap of %d", len(got), MaxIntervalCandidates)
	}
}

func TestExpandUnknownRule(t *testing.T) {
	sched := medication.Schedule{Rule: "WEEKLY"}
	start := utc(2024, 1, 1, 0, 0)
	if _, err := Expand(sched, time.UTC, start, start, utc(2024, 1, 2, 0, 0), start); err == nil {
		t.Fatal("expected error for unknown rule")
	}
}
