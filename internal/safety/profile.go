// Package safety validates a proposed medication regimen against the drug
// safety catalog and the patient's context. Validation is advisory: warnings
// are surfaced for acknowledgement and never block creation, whatever their
// severity.
package safety

import (
	"context"
	"errors"
	"time"
)

// ErrProfileNotFound is returned by a Catalog when no profile matches.
var ErrProfileNotFound = errors.New("drug safety profile not found")

// DrugProfile is a read-only catalog row describing one drug's safety bounds.
type DrugProfile struct {
	ID          string
	DisplayName string
	EnglishName string
	GenericName string

	MaxDosesPerDay         int
	MinDosingIntervalHours int
	MaxDailyDoseMG         int
	// MinAgeMonths and MaxAgeYears bound the allowed patient age; zero means
	// no bound.
	MinAgeMonths int
	MaxAgeYears  int

	Contraindications []string
	Interactions      []string
}

// Names returns the profile's name variants used for fuzzy matching.
func (p *DrugProfile) Names() []string {
	return []string{p.DisplayName, p.EnglishName, p.GenericName}
}

// Catalog is the read-only drug safety knowledge base lookup.
type Catalog interface {
	// FindDrugProfile resolves a drug by fuzzy name match: case-insensitive
	// substring over display, english and generic names.
	FindDrugProfile(ctx context.Context, nameQuery string) (*DrugProfile, error)
}

// PatientContext provides the patient facts the validator cross-references.
type PatientContext interface {
	// ActiveMedications returns names of medications whose active window
	// contains now.
	ActiveMedications(ctx context.Context, patientID string) ([]string, error)
	ActiveConditions(ctx context.Context, patientID string) ([]string, error)
	Allergies(ctx context.Context, patientID string) ([]string, error)
	DateOfBirth(ctx context.Context, patientID string) (time.Time, error)
}
