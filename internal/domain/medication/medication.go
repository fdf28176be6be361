// Package medication implements the medication and schedule model.
package medication

import (
	"errors"
	"strings"
	"time"
)

var (
	// ErrNotFound is returned when a medication does not exist.
	ErrNotFound = errors.New("medication not found")
	// ErrInvalidSchedule is returned for schedules that violate the rule invariants.
	ErrInvalidSchedule = errors.New("invalid schedule")
)

// Medication is a tracked over-the-counter medication for one owner.
// The drug name is free text and is not required to match the safety catalog.
type Medication struct {
	ID       string
	OwnerID  string
	Name     string
	Form     string
	Strength string
	Notes    string
	StartAt  time.Time
	EndAt    *time.Time
	Timezone string
	Schedule Schedule

	CreatedAt time.Time
	UpdatedAt time.Time
}

// ActiveAt reports whether the medication's [StartAt, EndAt] window contains t.
func (m *Medication) ActiveAt(t time.Time) bool {
	if t.Before(m.StartAt) {
		return false
	}
	if m.EndAt != nil && t.After(*m.EndAt) {
		return false
	}
	return true
}

// Location resolves the medication's IANA timezone, falling back to UTC.
func (m *Medication) Location() *time.Location {
	loc, err := time.LoadLocation(strings.TrimSpace(m.Timezone))
	if err != nil || loc == nil {
		return time.UTC
	}
	return loc
}
