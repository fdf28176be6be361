package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/medtrack/go-adherence/internal/domain/adherence"
)

// RecordRepository is an in-memory adherence.Repository. A single mutex
// stands in for the database's row-level atomicity on conditional updates.
type RecordRepository struct {
	mu   sync.RWMutex
	recs map[string]*adherence.Record
}

// NewRecordRepository creates an empty repository.
func NewRecordRepository() *RecordRepository {
	return &RecordRepository{recs: make(map[string]*adherence.Record)}
}

// Create stores a copy of the record.
func (r *RecordRepository) Create(_ context.Context, rec *adherence.Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now().UTC()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = now
	}

	cp := *rec
	r.recs[rec.ID] = &cp
	return nil
}

// GetByID retrieves a record by ID.
func (r *RecordRepository) GetByID(_ context.Context, id string) (*adherence.Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.recs[id]
	if !ok {
		return nil, adherence.ErrNotFound
	}
	cp := *rec
	return &cp, nil
}

// ListByMedication returns the medication's records, newest due first.
func (r *RecordRepository) ListByMedication(_ context.Context, medicationID string, limit int) ([]*adherence.Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*adherence.Record
	for _, rec := range r.recs {
		if rec.MedicationID != medicationID {
			continue
		}
		cp := *rec
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DueAt.After(out[j].DueAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// ListDue returns due records with DueAt at or before asOf, oldest first.
func (r *RecordRepository) ListDue(_ context.Context, asOf time.Time, limit int) ([]*adherence.Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*adherence.Record
	for _, rec := range r.recs {
		if rec.Status != adherence.StatusDue || rec.DueAt.After(asOf) {
			continue
		}
		cp := *rec
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DueAt.Before(out[j].DueAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// ExistsNear reports whether any record for the medication falls within
// +/- tolerance of dueAt.
func (r *RecordRepository) ExistsNear(_ context.Context, medicationID string, dueAt time.Time, tolerance time.Duration) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	lo, hi := dueAt.Add(-tolerance), dueAt.Add(tolerance)
	for _, rec := range r.recs {
		if rec.MedicationID != medicationID {
			continue
		}
		if !rec.DueAt.Before(lo) && !rec.DueAt.After(hi) {
			return true, nil
		}
	}
	return false, nil
}

// CountInRange counts the medication's records with DueAt in [from, to).
func (r *RecordRepository) CountInRange(_ context.Context, medicationID string, from, to time.Time) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := 0
	for _, rec := range r.recs {
		if rec.MedicationID != medicationID {
			continue
		}
		if !rec.DueAt.Before(from) && rec.DueAt.Before(to) {
			n++
		}
	}
	return n, nil
}

// MarkSent flips due -> sent, recording the attempted channels.
func (r *RecordRepository) MarkSent(_ context.Context, id string, channels []string, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.recs[id]
	if !ok || rec.Status != adherence.StatusDue {
		return false, nil
	}
	rec.Status = adherence.StatusSent
	rec.Channels = append([]string(nil), channels...)
	rec.UpdatedAt = at
	return true, nil
}

// MarkTaken flips due/sent -> taken and stamps TakenAt.
func (r *RecordRepository) MarkTaken(_ context.Context, id string, at time.Time) (bool, error) {
	return r.transition(id, adherence.StatusTaken, at)
}

// MarkSkipped flips due/sent -> skipped.
func (r *RecordRepository) MarkSkipped(_ context.Context, id string, at time.Time) (bool, error) {
	return r.transition(id, adherence.StatusSkipped, at)
}

// MarkSnoozed flips due/sent -> snoozed.
func (r *RecordRepository) MarkSnoozed(_ context.Context, id string, at time.Time) (bool, error) {
	return r.transition(id, adherence.StatusSnoozed, at)
}

func (r *RecordRepository) transition(id string, to adherence.Status, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.recs[id]
	if !ok || !adherence.CanTransition(rec.Status, to) {
		return false, nil
	}
	rec.Status = to
	if to == adherence.StatusTaken {
		t := at
		rec.TakenAt = &t
	}
	rec.UpdatedAt = at
	return true, nil
}

// SweepMissed flips sent records with DueAt before dueBefore to missed.
func (r *RecordRepository) SweepMissed(_ context.Context, dueBefore, at time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var n int64
	for _, rec := range r.recs {
		if rec.Status == adherence.StatusSent && rec.DueAt.Before(dueBefore) {
			rec.Status = adherence.StatusMissed
			rec.UpdatedAt = at
			n++
		}
	}
	return n, nil
}

// PurgeTerminal deletes terminal records last updated before olderThan.
func (r *RecordRepository) PurgeTerminal(_ context.Context, olderThan time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var n int64
	for id, rec := range r.recs {
		if rec.Status.Terminal() && rec.UpdatedAt.Before(olderThan) {
			delete(r.recs, id)
			n++
		}
	}
	return n, nil
}

// DeleteFuture removes the medication's due records with DueAt after the
// given instant.
func (r *RecordRepository) DeleteFuture(_ context.Context, medicationID string, after time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var n int64
	for id, rec := range r.recs {
		if rec.MedicationID == medicationID && rec.Status == adherence.StatusDue && rec.DueAt.After(after) {
			delete(r.recs, id)
			n++
		}
	}
	return n, nil
}
