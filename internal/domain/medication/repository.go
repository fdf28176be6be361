package medication

import (
	"context"
	"time"
)

// Repository is the persistence port for medications and their schedules.
// Postgres and in-memory implementations live under internal/storage.
type Repository interface {
	Create(ctx context.Context, m *Medication) error
	GetByID(ctx context.Context, id string) (*Medication, error)
	// ListOverlapping returns medications whose [StartAt, EndAt] span
	// overlaps [windowStart, windowEnd]. The scheduler feeds expansion runs
	// from it.
	ListOverlapping(ctx context.Context, windowStart, windowEnd time.Time) ([]*Medication, error)
	// ListActiveByOwner returns the owner's medications active at the given
	// instant. The safety validator's patient context is built on it.
	ListActiveByOwner(ctx context.Context, ownerID string, at time.Time) ([]*Medication, error)
	// Delete removes the medication and its schedule. Future adherence records
	// are cancelled separately by the caller.
	Delete(ctx context.Context, id string) error
}
