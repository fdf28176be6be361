package safety

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/medtrack/go-adherence/pkg/clock"
)

// PolypharmacyThreshold is the concurrent active medication count (including
// the proposed one) at which a polypharmacy warning fires.
const PolypharmacyThreshold = 5

// Regimen is the proposed dosing the caller wants validated.
type Regimen struct {
	DrugName    string
	MaxPerDay   int
	IntervalHrs int
}

// Validator cross-references a proposed regimen against the catalog and the
// patient's medications, conditions, allergies and age.
type Validator struct {
	catalog  Catalog
	patients PatientContext
	clock    clock.Clock
	logger   *zap.Logger
}

// NewValidator creates a validator.
func NewValidator(catalog Catalog, patients PatientContext, clk clock.Clock, logger *zap.Logger) *Validator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if clk == nil {
		clk = clock.New()
	}
	return &Validator{catalog: catalog, patients: patients, clock: clk, logger: logger}
}

// Validate runs every sub-check and concatenates their warnings. It never
// returns an error and never panics to the caller: a failing sub-check
// degrades to a single generic MEDIUM warning.
func (v *Validator) Validate(ctx context.Context, patientID string, reg Regimen) []Warning {
	profile, err := v.catalog.FindDrugProfile(ctx, reg.DrugName)
	if err != nil {
		if errors.Is(err, ErrProfileNotFound) {
			return []Warning{{
				Type:     WarningInteraction,
				Severity: SeverityMedium,
				Message:  fmt.Sprintf("%q is not in the drug safety catalog; no safety data available", reg.DrugName),
				Recommendation: "Verify the drug name with a pharmacist before relying on reminders " +
					"for dosing safety",
			}}
		}
		v.logger.Warn("catalog lookup failed", zap.String("drug", reg.DrugName), zap.Error(err))
		return []Warning{genericWarning()}
	}

	var warnings []Warning
	checks := []func(context.Context, string, Regimen, *DrugProfile) []Warning{
		v.checkDoseLimits,
		v.checkInteractions,
		v.checkContraindications,
		v.checkAge,
		v.checkAllergies,
		v.checkPolypharmacy,
	}
	for _, check := range checks {
		warnings = append(warnings, v.runCheck(ctx, check, patientID, reg, profile)...)
	}
	return warnings
}

// runCheck isolates a sub-check: a panic or degraded lookup inside it turns
// into one generic warning instead of aborting validation.
func (v *Validator) runCheck(ctx context.Context, check func(context.Context, string, Regimen, *DrugProfile) []Warning, patientID string, reg Regimen, profile *DrugProfile) (out []Warning) {
	defer func() {
		if r := recover(); r != nil {
			v.logger.Error("safety sub-check panicked", zap.Any("panic", r), zap.String("drug", reg.DrugName))
			out = []Warning{genericWarning()}
		}
	}()
	return check(ctx, patientID, reg, profile)
}

func (v *Validator) checkDoseLimits(_ context.Context, _ string, reg Regimen, profile *DrugProfile) []Warning {
	var out []Warning
	if profile.MaxDosesPerDay > 0 && reg.MaxPerDay > profile.MaxDosesPerDay {
		out = append(out, Warning{
			Type:     WarningMaxDose,
			Severity: SeverityHigh,
			Message: fmt.Sprintf("proposed %d doses/day exceeds the %d doses/day limit for %s",
				reg.MaxPerDay, profile.MaxDosesPerDay, profile.DisplayName),
			Recommendation: "Reduce the daily dose count or consult a pharmacist",
		})
	}
	if profile.MinDosingIntervalHours > 0 && reg.IntervalHrs > 0 && reg.IntervalHrs < profile.MinDosingIntervalHours {
		out = append(out, Warning{
			Type:     WarningFrequency,
			Severity: SeverityHigh,
			Message: fmt.Sprintf("proposed %dh interval is below the minimum %dh dosing interval for %s",
				reg.IntervalHrs, profile.MinDosingIntervalHours, profile.DisplayName),
			Recommendation: "Space doses at least the minimum interval apart",
		})
	}
	return out
}

func (v *Validator) checkInteractions(ctx context.Context, patientID string, _ Regimen, profile *DrugProfile) []Warning {
	active, err := v.patients.ActiveMedications(ctx, patientID)
	if err != nil {
		v.logger.Warn("active medication lookup failed", zap.String("patient_id", patientID), zap.Error(err))
		return []Warning{genericWarning()}
	}

	var out []Warning
	for _, name := range active {
		for _, interaction := range profile.Interactions {
			if matchFold(name, interaction) {
				out = append(out, Warning{
					Type:     WarningInteraction,
					Severity: SeverityHigh,
					Message: fmt.Sprintf("%s may interact with current medication %q",
						profile.DisplayName, name),
					Recommendation: "Discuss this combination with a doctor or pharmacist",
				})
				break
			}
		}
	}
	return out
}

func (v *Validator) checkContraindications(ctx context.Context, patientID string, _ Regimen, profile *DrugProfile) []Warning {
	conditions, err := v.patients.ActiveConditions(ctx, patientID)
	if err != nil {
		v.logger.Warn("condition lookup failed", zap.String("patient_id", patientID), zap.Error(err))
		return []Warning{genericWarning()}
	}

	var out []Warning
	for _, cond := range conditions {
		for _, contra := range profile.Contraindications {
			if matchFold(cond, contra) {
				out = append(out, Warning{
					Type:     WarningContraindication,
					Severity: SeverityCritical,
					Message: fmt.Sprintf("%s is contraindicated for condition %q",
						profile.DisplayName, cond),
					Recommendation: "Do not start this medication without medical advice",
				})
				break
			}
		}
	}
	return out
}

func (v *Validator) checkAge(ctx context.Context, patientID string, _ Regimen, profile *DrugProfile) []Warning {
	if profile.MinAgeMonths == 0 && profile.MaxAgeYears == 0 {
		return nil
	}

	dob, err := v.patients.DateOfBirth(ctx, patientID)
	if err != nil || dob.IsZero() {
		if err != nil {
			v.logger.Warn("date of birth lookup failed", zap.String("patient_id", patientID), zap.Error(err))
			return []Warning{genericWarning()}
		}
		return nil
	}

	years := wholeYears(dob, v.clock.Now())
	var out []Warning
	if profile.MinAgeMonths > 0 && float64(years) < float64(profile.MinAgeMonths)/12.0 {
		out = append(out, Warning{
			Type:     WarningAgeRestriction,
			Severity: SeverityCritical,
			Message: fmt.Sprintf("%s is not approved below %d months of age",
				profile.DisplayName, profile.MinAgeMonths),
			Recommendation: "Consult a pediatrician before use",
		})
	}
	if profile.MaxAgeYears > 0 && years > profile.MaxAgeYears {
		out = append(out, Warning{
			Type:     WarningAgeRestriction,
			Severity: SeverityHigh,
			Message: fmt.Sprintf("%s carries an upper age limit of %d years",
				profile.DisplayName, profile.MaxAgeYears),
			Recommendation: "Review suitability with a doctor",
		})
	}
	return out
}

func (v *Validator) checkAllergies(ctx context.Context, patientID string, reg Regimen, profile *DrugProfile) []Warning {
	allergies, err := v.patients.Allergies(ctx, patientID)
	if err != nil {
		v.logger.Warn("allergy lookup failed", zap.String("patient_id", patientID), zap.Error(err))
		return []Warning{genericWarning()}
	}

	var out []Warning
	for _, allergy := range allergies {
		matched := matchFold(allergy, reg.DrugName)
		for _, name := range profile.Names() {
			if matched {
				break
			}
			matched = name != "" && matchFold(allergy, name)
		}
		if matched {
			out = append(out, Warning{
				Type:     WarningContraindication,
				Severity: SeverityCritical,
				Message: fmt.Sprintf("recorded allergy %q matches %s",
					allergy, profile.DisplayName),
				Recommendation: "Do not take this medication; confirm the allergy record with a doctor",
			})
		}
	}
	return out
}

func (v *Validator) checkPolypharmacy(ctx context.Context, patientID string, _ Regimen, _ *DrugProfile) []Warning {
	active, err := v.patients.ActiveMedications(ctx, patientID)
	if err != nil {
		v.logger.Warn("active medication lookup failed", zap.String("patient_id", patientID), zap.Error(err))
		return []Warning{genericWarning()}
	}

	// The proposed medication counts toward the total.
	if len(active)+1 < PolypharmacyThreshold {
		return nil
	}
	return []Warning{{
		Type:     WarningInteraction,
		Severity: SeverityMedium,
		Message: fmt.Sprintf("patient would be on %d concurrent medications",
			len(active)+1),
		Recommendation: "Consider a medication review with a pharmacist",
	}}
}

func genericWarning() Warning {
	return Warning{
		Type:           WarningInteraction,
		Severity:       SeverityMedium,
		Message:        "safety data could not be fully evaluated for this medication",
		Recommendation: "Consult a pharmacist to confirm this regimen is safe",
	}
}

// matchFold reports a case-insensitive bidirectional substring match.
func matchFold(a, b string) bool {
	a = strings.ToLower(strings.TrimSpace(a))
	b = strings.ToLower(strings.TrimSpace(b))
	if a == "" || b == "" {
		return false
	}
	return strings.Contains(a, b) || strings.Contains(b, a)
}

// wholeYears computes completed years between dob and now.
func wholeYears(dob, now time.Time) int {
	years := now.Year() - dob.Year()
	if now.Month() < dob.Month() || (now.Month() == dob.Month() && now.Day() < dob.Day()) {
		years--
	}
	if years < 0 {
		return 0
	}
	return years
}
