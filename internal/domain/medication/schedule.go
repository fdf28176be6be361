package medication

import (
	"fmt"
	"strconv"
	"strings"
)

// Rule identifies how a schedule generates dose instants.
type Rule string

const (
	// RuleDaily fires at fixed wall-clock times every day.
	RuleDaily Rule = "DAILY"
	// RuleInterval fires every IntervalHrs hours.
	RuleInterval Rule = "INTERVAL"
)

// QuietHours is a daily recurring wall-clock band during which reminders must
// not fire. Start > End means the band wraps past midnight.
type QuietHours struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// Schedule is the dosing rule attached to a medication (one-to-one).
type Schedule struct {
	MedicationID string
	Rule         Rule
	// Times holds "HH:MM" wall-clock times-of-day for RuleDaily.
	Times []string
	// IntervalHrs is the dose spacing for RuleInterval.
	IntervalHrs int
	MaxPerDay   int
	QuietHours  *QuietHours
}

// Validate enforces the rule invariants. Violations are input errors that
// block medication creation.
func (s *Schedule) Validate() error {
	switch s.Rule {
	case RuleDaily:
		if len(s.Times) == 0 {
			return fmt.Errorf("%w: DAILY schedule requires at least one time", ErrInvalidSchedule)
		}
		for _, t := range s.Times {
			if _, _, err := ParseClock(t); err != nil {
				return fmt.Errorf("%w: %v", ErrInvalidSchedule, err)
			}
		}
	case RuleInterval:
		if s.IntervalHrs < 1 {
			return fmt.Errorf("%w: INTERVAL schedule requires intervalHrs >= 1", ErrInvalidSchedule)
		}
	default:
		return fmt.Errorf("%w: unknown rule %q", ErrInvalidSchedule, s.Rule)
	}

	if s.MaxPerDay < 0 {
		return fmt.Errorf("%w: maxPerDay cannot be negative", ErrInvalidSchedule)
	}
	if q := s.QuietHours; q != nil {
		if _, _, err := ParseClock(q.Start); err != nil {
			return fmt.Errorf("%w: quiet hours start: %v", ErrInvalidSchedule, err)
		}
		if _, _, err := ParseClock(q.End); err != nil {
			return fmt.Errorf("%w: quiet hours end: %v", ErrInvalidSchedule, err)
		}
	}
	return nil
}

// ParseClock parses an "HH:MM" wall-clock string.
func ParseClock(s string) (hour, minute int, err error) {
	parts := strings.SplitN(strings.TrimSpace(s), ":", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("malformed time %q", s)
	}
	hour, err = strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, fmt.Errorf("malformed hour in %q", s)
	}
	minute, err = strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("malformed minute in %q", s)
	}
	return hour, minute, nil
}
