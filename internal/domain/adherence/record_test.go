package adherence

import "testing"

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to Status
		want     bool
	}{
		{StatusDue, StatusSent, true},
		{StatusDue, StatusTaken, true},
		{StatusDue, StatusSkipped, true},
		{StatusDue, StatusSnoozed, true},
		{StatusDue, StatusMissed, false},

		{StatusSent, StatusTaken, true},
		{StatusSent, StatusSkipped, true},
		{StatusSent, StatusSnoozed, true},
		{StatusSent, StatusMissed, true},
		{StatusSent, StatusSent, false},

		// Terminal states accept nothing.
		{StatusTaken, StatusSkipped, false},
		{StatusTaken, StatusTaken, false},
		{StatusMissed, StatusTaken, false},
		{StatusSkipped, StatusSnoozed, false},

		// Snoozed is replaced by a fresh record, never transitioned.
		{StatusSnoozed, StatusSent, false},
		{StatusSnoozed, StatusTaken, false},
	}

	for _, tt := range tests {
		if got := CanTransition(tt.from, tt.to); got != tt.want {
			t.Errorf("CanTransition(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

func TestStatusTerminal(t *testing.T) {
	terminal := []Status{StatusTaken, StatusMissed, StatusSkipped}
	for _, s := range terminal {
		if !s.Terminal() {
			t.Errorf("%s should be terminal", s)
		}
	}
	open := []Status{StatusDue, StatusSent, StatusSnoozed}
	for _, s := range open {
		if s.Terminal() {
			t.Errorf("%s should not be terminal", s)
		}
	}
}
