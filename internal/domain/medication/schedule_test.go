package medication

import (
	"errors"
	"testing"
	"time"
)

func TestScheduleValidate(t *testing.T) {
	tests := []struct {
		name    string
		sched   Schedule
		wantErr bool
	}{
		{"daily with times", Schedule{Rule: RuleDaily, Times: []string{"08:00", "20:00"}}, false},
		{"daily without times", Schedule{Rule: RuleDaily}, true},
		{"daily with malformed time", Schedule{Rule: RuleDaily, Times: []string{"8am"}}, true},
		{"interval", Schedule{Rule: RuleInterval, IntervalHrs: 6}, false},
		{"interval below one hour", Schedule{Rule: RuleInterval, IntervalHrs: 0}, true},
		{"unknown rule", Schedule{Rule: "WEEKLY"}, true},
		{"negative max per day", Schedule{Rule: RuleInterval, IntervalHrs: 4, MaxPerDay: -1}, true},
		{"valid quiet hours", Schedule{Rule: RuleInterval, IntervalHrs: 4, QuietHours: &QuietHours{Start: "22:00", End: "07:00"}}, false},
		{"malformed quiet start", Schedule{Rule: RuleInterval, IntervalHrs: 4, QuietHours: &QuietHours{Start: "24:00", End: "07:00"}}, true},
		{"malformed quiet end", Schedule{Rule: RuleInterval, IntervalHrs: 4, QuietHours: &QuietHours{Start: "22:00", End: "7"}}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.sched.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidSchedule) {
				t.Errorf("error %v should wrap ErrInvalidSchedule", err)
			}
		})
	}
}

func TestParseClock(t *testing.T) {
	hour, minute, err := ParseClock("08:30")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if hour != 8 || minute != 30 {
		t.Errorf("got %d:%d, want 8:30", hour, minute)
	}

	hour, minute, err = ParseClock(" 23:59 ")
	if err != nil {
		t.Fatalf("parse with whitespace failed: %v", err)
	}
	if hour != 23 || minute != 59 {
		t.Errorf("got %d:%d, want 23:59", hour, minute)
	}

	for _, bad := range []string{"", "8am", "24:00", "12:60", "-1:30", "12", "12:"} {
		if _, _, err := ParseClock(bad); err == nil {
			t.Errorf("ParseClock(%q) should fail", bad)
		}
	}
}

func TestMedicationActiveAt(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC)

	open := &Medication{StartAt: start}
	if open.ActiveAt(start.Add(-time.Second)) {
		t.Error("active before start")
	}
	if !open.ActiveAt(start) {
		t.Error("inactive at start")
	}
	if !open.ActiveAt(start.AddDate(10, 0, 0)) {
		t.Error("open-ended medication should stay active")
	}

	bounded := &Medication{StartAt: start, EndAt: &end}
	if !bounded.ActiveAt(end) {
		t.Error("inactive at end; bounds are inclusive")
	}
	if bounded.ActiveAt(end.Add(time.Second)) {
		t.Error("active past end")
	}
}

func TestMedicationLocation(t *testing.T) {
	m := &Medication{Timezone: "America/New_York"}
	if loc := m.Location(); loc.String() != "America/New_York" {
		t.Errorf("location = %s", loc)
	}

	for _, tz := range []string{"", "Mars/Olympus", "  "} {
		m := &Medication{Timezone: tz}
		if loc := m.Location(); loc != time.UTC {
			t.Errorf("Timezone %q should fall back to UTC, got %s", tz, loc)
		}
	}
}
