package safety

// WarningType classifies what a safety warning is about.
type WarningType string

const (
	WarningMaxDose          WarningType = "MAX_DOSE"
	WarningInteraction      WarningType = "INTERACTION"
	WarningContraindication WarningType = "CONTRAINDICATION"
	WarningAgeRestriction   WarningType = "AGE_RESTRICTION"
	WarningFrequency        WarningType = "FREQUENCY"
)

// Severity ranks a warning. Even CRITICAL warnings are advisory.
type Severity string

const (
	SeverityLow      Severity = "LOW"
	SeverityMedium   Severity = "MEDIUM"
	SeverityHigh     Severity = "HIGH"
	SeverityCritical Severity = "CRITICAL"
)

// Warning is a pure value object regenerated on demand, never persisted.
type Warning struct {
	Type           WarningType `json:"type"`
	Severity       Severity    `json:"severity"`
	Message        string      `json:"message"`
	Recommendation string      `json:"recommendation,omitempty"`
}
