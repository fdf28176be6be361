// Package adherence implements the dose reminder lifecycle.
// A Record is one concrete "take this dose at this instant" with its own
// state machine, independent of its parent medication.
package adherence

import (
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when a record does not exist.
	ErrNotFound = errors.New("adherence record not found")
	// ErrInvalidTransition is returned when a requested transition is not
	// allowed from the record's current status.
	ErrInvalidTransition = errors.New("invalid adherence transition")
)

const (
	// MissedGracePeriod is how far past DueAt a sent record may linger before
	// the periodic sweep flips it to missed.
	MissedGracePeriod = 2 * time.Hour
	// TerminalRetention is how long terminal records are kept before the
	// daily purge removes them.
	TerminalRetention = 30 * 24 * time.Hour
	// DefaultSnoozeMinutes is applied when a snooze request carries no value.
	DefaultSnoozeMinutes = 15
	// MinSnoozeMinutes is the shortest accepted snooze.
	MinSnoozeMinutes = 5
)

// Status represents the lifecycle state of a record.
type Status string

const (
	StatusDue     Status = "due"
	StatusSent    Status = "sent"
	StatusTaken   Status = "taken"
	StatusMissed  Status = "missed"
	StatusSnoozed Status = "snoozed"
	StatusSkipped Status = "skipped"
)

// Terminal reports whether the status is final. Snoozed is not terminal: it
// is a transient marker immediately followed by a fresh due record.
func (s Status) Terminal() bool {
	switch s {
	case StatusTaken, StatusMissed, StatusSkipped:
		return true
	}
	return false
}

// CanTransition reports whether from -> to is a legal lifecycle step.
func CanTransition(from, to Status) bool {
	switch to {
	case StatusSent:
		return from == StatusDue
	case StatusMissed:
		return from == StatusSent
	case StatusTaken, StatusSkipped, StatusSnoozed:
		return from == StatusDue || from == StatusSent
	}
	return false
}

// Record is a single reminder instance.
type Record struct {
	ID           string
	MedicationID string
	DueAt        time.Time
	Status       Status
	TakenAt      *time.Time
	// Channels lists the delivery channels attempted for this record.
	Channels []string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Summary carries the medication fields a notification needs. It keeps the
// dispatcher decoupled from the medication package.
type Summary struct {
	MedicationID string
	OwnerID      string
	Name         string
	Strength     string
	DueAt        time.Time
}
