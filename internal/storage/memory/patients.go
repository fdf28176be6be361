package memory

import (
	"context"
	"sync"
	"time"
)

// PatientProfile holds one patient's facts.
type PatientProfile struct {
	Conditions  []string
	Allergies   []string
	DateOfBirth time.Time
	Medications []string
}

// PatientContext is an in-memory safety.PatientContext. Unknown patients
// resolve to an empty profile so validation degrades instead of failing.
type PatientContext struct {
	mu       sync.RWMutex
	profiles map[string]*PatientProfile
}

// NewPatientContext creates an empty patient context.
func NewPatientContext() *PatientContext {
	return &PatientContext{profiles: make(map[string]*PatientProfile)}
}

// Set stores the profile for a patient.
func (p *PatientContext) Set(patientID string, profile PatientProfile) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.profiles[patientID] = &profile
}

// ActiveMedications returns the patient's medication names.
func (p *PatientContext) ActiveMedications(_ context.Context, patientID string) ([]string, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if prof, ok := p.profiles[patientID]; ok {
		return append([]string(nil), prof.Medications...), nil
	}
	return nil, nil
}

// ActiveConditions returns the patient's recorded conditions.
func (p *PatientContext) ActiveConditions(_ context.Context, patientID string) ([]string, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if prof, ok := p.profiles[patientID]; ok {
		return append([]string(nil), prof.Conditions...), nil
	}
	return nil, nil
}

// Allergies returns the patient's recorded allergies.
func (p *PatientContext) Allergies(_ context.Context, patientID string) ([]string, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if prof, ok := p.profiles[patientID]; ok {
		return append([]string(nil), prof.Allergies...), nil
	}
	return nil, nil
}

// DateOfBirth returns the patient's date of birth; zero when unknown.
func (p *PatientContext) DateOfBirth(_ context.Context, patientID string) (time.Time, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if prof, ok := p.profiles[patientID]; ok {
		return prof.DateOfBirth, nil
	}
	return time.Time{}, nil
}
