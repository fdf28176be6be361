package safety_test

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/medtrack/go-adherence/internal/safety"
	"github.com/medtrack/go-adherence/internal/storage/memory"
	"github.com/medtrack/go-adherence/pkg/clock"
)

func newValidator(patients safety.PatientContext) *safety.Validator {
	return safety.NewValidator(
		memory.SeedCatalog(),
		patients,
		clock.NewFake(time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)),
		nil,
	)
}

func emptyPatient() *memory.PatientContext {
	return memory.NewPatientContext()
}

func countByType(warnings []safety.Warning, wt safety.WarningType) int {
	n := 0
	for _, w := range warnings {
		if w.Type == wt {
			n++
		}
	}
	return n
}

func findSeverity(warnings []safety.Warning, wt safety.WarningType) safety.Severity {
	for _, w := range warnings {
		if w.Type == wt {
			return w.Severity
		}
	}
	return ""
}

func TestValidateCleanRegimen(t *testing.T) {
	v := newValidator(emptyPatient())

	warnings := v.Validate(context.Background(), "patient-1", safety.Regimen{
		DrugName:    "ibuprofen",
		MaxPerDay:   3,
		IntervalHrs: 8,
	})
	if len(warnings) != 0 {
		t.Fatalf("expected no warnings, got %v", warnings)
	}
}

func TestValidateUnknownDrugSingleWarning(t *testing.T) {
	v := newValidator(emptyPatient())

	warnings := v.Validate(context.Background(), "patient-1", safety.Regimen{
		DrugName:  "obscurium",
		MaxPerDay: 99,
	})
	// Exactly one MEDIUM warning; the remaining checks are meaningless
	// without a profile and must not fire.
	if len(warnings) != 1 {
		t.Fatalf("got %d warnings %v, want exactly 1", len(warnings), warnings)
	}
	if warnings[0].Severity != safety.SeverityMedium {
		t.Errorf("severity = %s, want MEDIUM", warnings[0].Severity)
	}
}

func TestValidateMaxDoseExceeded(t *testing.T) {
	v := newValidator(emptyPatient())

	warnings := v.Validate(context.Background(), "patient-1", safety.Regimen{
		DrugName:  "ibuprofen",
		MaxPerDay: 6, // catalog limit is 3
	})
	if countByType(warnings, safety.WarningMaxDose) != 1 {
		t.Fatalf("expected one MAX_DOSE warning, got %v", warnings)
	}
	if findSeverity(warnings, safety.WarningMaxDose) != safety.SeverityHigh {
		t.Errorf("MAX_DOSE severity = %s, want HIGH", findSeverity(warnings, safety.WarningMaxDose))
	}
}

func TestValidateFrequencyTooTight(t *testing.T) {
	v := newValidator(emptyPatient())

	warnings := v.Validate(context.Background(), "patient-1", safety.Regimen{
		DrugName:    "ibuprofen",
		MaxPerDay:   3,
		IntervalHrs: 3, // catalog minimum is 6
	})
	if countByType(warnings, safety.WarningFrequency) != 1 {
		t.Fatalf("expected one FREQUENCY warning, got %v", warnings)
	}
}

func TestValidateInteraction(t *testing.T) {
	patients := emptyPatient()
	patients.Set("patient-1", memory.PatientProfile{
		Medications: []string{"Aspirin 100mg"},
	})
	v := newValidator(patients)

	warnings := v.Validate(context.Background(), "patient-1", safety.Regimen{
		DrugName:  "ibuprofen",
		MaxPerDay: 3,
	})
	if countByType(warnings, safety.WarningInteraction) != 1 {
		t.Fatalf("expected one INTERACTION warning, got %v", warnings)
	}
	if findSeverity(warnings, safety.WarningInteraction) != safety.SeverityHigh {
		t.Errorf("severity = %s, want HIGH", findSeverity(warnings, safety.WarningInteraction))
	}
}

func TestValidateContraindication(t *testing.T) {
	patients := emptyPatient()
	patients.Set("patient-1", memory.PatientProfile{
		Conditions: []string{"Peptic Ulcer"},
	})
	v := newValidator(patients)

	warnings := v.Validate(context.Background(), "patient-1", safety.Regimen{
		DrugName:  "ibuprofen",
		MaxPerDay: 3,
	})
	if countByType(warnings, safety.WarningContraindication) != 1 {
		t.Fatalf("expected one CONTRAINDICATION warning, got %v", warnings)
	}
	if findSeverity(warnings, safety.WarningContraindication) != safety.SeverityCritical {
		t.Errorf("severity = %s, want CRITICAL", findSeverity(warnings, safety.WarningContraindication))
	}
}

func TestValidateAgeRestriction(t *testing.T) {
	patients := emptyPatient()
	// Ten years old: under aspirin's 16-year floor.
	patients.Set("patient-1", memory.PatientProfile{
		DateOfBirth: time.Date(2014, 3, 1, 0, 0, 0, 0, time.UTC),
	})
	v := newValidator(patients)

	warnings := v.Validate(context.Background(), "patient-1", safety.Regimen{
		DrugName:  "aspirin",
		MaxPerDay: 2,
	})
	if countByType(warnings, safety.WarningAgeRestriction) != 1 {
		t.Fatalf("expected one AGE_RESTRICTION warning, got %v", warnings)
	}
	if findSeverity(warnings, safety.WarningAgeRestriction) != safety.SeverityCritical {
		t.Errorf("severity = %s, want CRITICAL", findSeverity(warnings, safety.WarningAgeRestriction))
	}
}

func TestValidateAgeUnknownNoWarning(t *testing.T) {
	v := newValidator(emptyPatient())

	warnings := v.Validate(context.Background(), "patient-1", safety.Regimen{
		DrugName:  "aspirin",
		MaxPerDay: 2,
	})
	if countByType(warnings, safety.WarningAgeRestriction) != 0 {
		t.Fatalf("unknown date of birth must not produce age warnings, got %v", warnings)
	}
}

func TestValidateAllergy(t *testing.T) {
	patients := emptyPatient()
	patients.Set("patient-1", memory.PatientProfile{
		Allergies: []string{"acetaminophen"},
	})
	v := newValidator(patients)

	warnings := v.Validate(context.Background(), "patient-1", safety.Regimen{
		DrugName:  "paracetamol",
		MaxPerDay: 2,
	})
	// The allergy is recorded under the english name; matching goes through
	// all name variants.
	if countByType(warnings, safety.WarningContraindication) != 1 {
		t.Fatalf("expected one allergy warning, got %v", warnings)
	}
}

func TestValidatePolypharmacy(t *testing.T) {
	patients := emptyPatient()
	patients.Set("patient-1", memory.PatientProfile{
		Medications: []string{"drug-a", "drug-b", "drug-c", "drug-d"},
	})
	v := newValidator(patients)

	warnings := v.Validate(context.Background(), "patient-1", safety.Regimen{
		DrugName:  "loratadine",
		MaxPerDay: 1,
	})
	// Four active plus the proposed one reaches the threshold of five.
	if countByType(warnings, safety.WarningInteraction) != 1 {
		t.Fatalf("expected one polypharmacy warning, got %v", warnings)
	}
	if findSeverity(warnings, safety.WarningInteraction) != safety.SeverityMedium {
		t.Errorf("severity = %s, want MEDIUM", findSeverity(warnings, safety.WarningInteraction))
	}
}

// wrappingCatalog reports every drug unknown through a wrapped sentinel, the
// way a storage layer annotates its errors.
type wrappingCatalog struct{}

func (wrappingCatalog) FindDrugProfile(context.Context, string) (*safety.DrugProfile, error) {
	return nil, fmt.Errorf("catalog scan: %w", safety.ErrProfileNotFound)
}

func TestValidateWrappedProfileNotFound(t *testing.T) {
	v := safety.NewValidator(
		wrappingCatalog{},
		memory.NewPatientContext(),
		clock.NewFake(time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)),
		nil,
	)

	warnings := v.Validate(context.Background(), "patient-1", safety.Regimen{
		DrugName:  "obscurium",
		MaxPerDay: 2,
	})
	// A wrapped not-found must take the unknown-drug path, not degrade into
	// the generic lookup-failure warning.
	if len(warnings) != 1 {
		t.Fatalf("got %d warnings %v, want exactly 1", len(warnings), warnings)
	}
	if !strings.Contains(warnings[0].Message, "not in the drug safety catalog") {
		t.Errorf("message = %q, want the unknown-drug message", warnings[0].Message)
	}
}

// panickingPatients simulates a sub-check blowing up on bad data.
type panickingPatients struct{ *memory.PatientContext }

func (p panickingPatients) ActiveConditions(context.Context, string) ([]string, error) {
	panic("corrupt condition row")
}

func TestValidateSubCheckPanicDegrades(t *testing.T) {
	v := newValidator(panickingPatients{memory.NewPatientContext()})

	warnings := v.Validate(context.Background(), "patient-1", safety.Regimen{
		DrugName:  "ibuprofen",
		MaxPerDay: 3,
	})
	// The panicking contraindication check degrades to one generic MEDIUM
	// warning; the other checks still run.
	if len(warnings) != 1 {
		t.Fatalf("got %d warnings %v, want 1", len(warnings), warnings)
	}
	if warnings[0].Severity != safety.SeverityMedium {
		t.Errorf("severity = %s, want MEDIUM", warnings[0].Severity)
	}
}
