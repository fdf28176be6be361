package adherence

import (
	"context"
	"time"
)

// Repository is the persistence port for adherence records.
//
// The Mark* methods are atomic conditional updates: they apply only when the
// current status permits the transition and report false otherwise. This is
// what keeps a user "taken" from racing the missed-dose sweep.
type Repository interface {
	Create(ctx context.Context, rec *Record) error
	GetByID(ctx context.Context, id string) (*Record, error)
	ListByMedication(ctx context.Context, medicationID string, limit int) ([]*Record, error)
	// ListDue returns due records whose DueAt is at or before asOf.
	ListDue(ctx context.Context, asOf time.Time, limit int) ([]*Record, error)
	// ExistsNear reports whether a record for the medication exists with
	// DueAt within +/- tolerance of dueAt. This is the scheduler's dedup key.
	ExistsNear(ctx context.Context, medicationID string, dueAt time.Time, tolerance time.Duration) (bool, error)
	// CountInRange counts the medication's records with DueAt in [from, to).
	// The scheduler checks daily dose caps against it, so the count spans
	// expansion runs, not just the current one.
	CountInRange(ctx context.Context, medicationID string, from, to time.Time) (int, error)

	MarkSent(ctx context.Context, id string, channels []string, at time.Time) (bool, error)
	MarkTaken(ctx context.Context, id string, at time.Time) (bool, error)
	MarkSkipped(ctx context.Context, id string, at time.Time) (bool, error)
	MarkSnoozed(ctx context.Context, id string, at time.Time) (bool, error)

	// SweepMissed flips sent records with DueAt before dueBefore to missed
	// and returns how many were flipped.
	SweepMissed(ctx context.Context, dueBefore, at time.Time) (int64, error)
	// PurgeTerminal deletes terminal records last updated before olderThan.
	PurgeTerminal(ctx context.Context, olderThan time.Time) (int64, error)
	// DeleteFuture cancels (deletes) due records for the medication with
	// DueAt after the given instant.
	DeleteFuture(ctx context.Context, medicationID string, after time.Time) (int64, error)
}

// Dispatcher is the external notification-delivery boundary. The core only
// decides that and when to notify; wire formats belong to implementations.
type Dispatcher interface {
	// Notify emits one notification attempt for the record. The attempted
	// flag is all the core persists; delivery outcome is the dispatcher's
	// concern and is never retried here.
	Notify(ctx context.Context, rec *Record, med Summary) (attempted bool, err error)
	// Channels names the delivery channels this dispatcher will attempt.
	Channels() []string
}
