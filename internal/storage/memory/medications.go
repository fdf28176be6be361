// Package memory provides in-memory implementations of the persistence
// ports, used in tests and local development.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/medtrack/go-adherence/internal/domain/medication"
)

// MedicationRepository is an in-memory medication.Repository.
type MedicationRepository struct {
	mu   sync.RWMutex
	meds map[string]*medication.Medication
}

// NewMedicationRepository creates an empty repository.
func NewMedicationRepository() *MedicationRepository {
	return &MedicationRepository{meds: make(map[string]*medication.Medication)}
}

// Create stores a copy of the medication.
func (r *MedicationRepository) Create(_ context.Context, m *medication.Medication) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now().UTC()
	if m.CreatedAt.IsZero() {
		m.CreatedAt = now
	}
	if m.UpdatedAt.IsZero() {
		m.UpdatedAt = now
	}

	cp := *m
	r.meds[m.ID] = &cp
	return nil
}

// GetByID retrieves a medication by ID.
func (r *MedicationRepository) GetByID(_ context.Context, id string) (*medication.Medication, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	m, ok := r.meds[id]
	if !ok {
		return nil, medication.ErrNotFound
	}
	cp := *m
	return &cp, nil
}

// ListOverlapping returns medications whose active span overlaps the window.
func (r *MedicationRepository) ListOverlapping(_ context.Context, windowStart, windowEnd time.Time) ([]*medication.Medication, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*medication.Medication
	for _, m := range r.meds {
		if m.StartAt.After(windowEnd) {
			continue
		}
		if m.EndAt != nil && m.EndAt.Before(windowStart) {
			continue
		}
		cp := *m
		out = append(out, &cp)
	}
	sortByCreated(out)
	return out, nil
}

// ListActiveByOwner returns the owner's medications active at the instant.
func (r *MedicationRepository) ListActiveByOwner(_ context.Context, ownerID string, at time.Time) ([]*medication.Medication, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*medication.Medication
	for _, m := range r.meds {
		if m.OwnerID != ownerID || !m.ActiveAt(at) {
			continue
		}
		cp := *m
		out = append(out, &cp)
	}
	sortByCreated(out)
	return out, nil
}

// Delete removes the medication.
func (r *MedicationRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.meds[id]; !ok {
		return medication.ErrNotFound
	}
	delete(r.meds, id)
	return nil
}

func sortByCreated(meds []*medication.Medication) {
	sort.Slice(meds, func(i, j int) bool {
		if meds[i].CreatedAt.Equal(meds[j].CreatedAt) {
			return meds[i].ID < meds[j].ID
		}
		return meds[i].CreatedAt.Before(meds[j].CreatedAt)
	})
}
