package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/medtrack/go-adherence/internal/domain/adherence"
)

// RecordRepository persists adherence records. The Mark* methods are
// conditional UPDATEs guarded by the allowed source statuses, so concurrent
// transitions resolve in the database without application locks.
type RecordRepository struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// NewRecordRepository creates a new repository.
func NewRecordRepository(pool *pgxpool.Pool, logger *zap.Logger) *RecordRepository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RecordRepository{pool: pool, logger: logger}
}

// Create inserts a record.
func (r *RecordRepository) Create(ctx context.Context, rec *adherence.Record) error {
	query := `
		INSERT INTO adherence_records (id, medication_id, due_at, status, taken_at, channels)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at
	`

	err := r.pool.QueryRow(ctx, query,
		rec.ID, rec.MedicationID, rec.DueAt, string(rec.Status), rec.TakenAt, rec.Channels,
	).Scan(&rec.CreatedAt, &rec.UpdatedAt)

	if err != nil {
		return fmt.Errorf("failed to insert adherence record: %w", err)
	}
	return nil
}

const recordColumns = `id, medication_id, due_at, status, taken_at, channels, created_at, updated_at`

// GetByID retrieves a record by ID.
func (r *RecordRepository) GetByID(ctx context.Context, id string) (*adherence.Record, error) {
	query := `SELECT ` + recordColumns + ` FROM adherence_records WHERE id = $1`

	rec, err := scanRecord(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, adherence.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get record: %w", err)
	}
	return rec, nil
}

// ListByMedication returns the medication's records, newest due first.
func (r *RecordRepository) ListByMedication(ctx context.Context, medicationID string, limit int) ([]*adherence.Record, error) {
	query := `
		SELECT ` + recordColumns + `
		FROM adherence_records
		WHERE medication_id = $1
		ORDER BY due_at DESC
		LIMIT $2
	`

	rows, err := r.pool.Query(ctx, query, medicationID, limit)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	return collectRecords(rows)
}

// ListDue returns due records with DueAt at or before asOf, oldest first.
func (r *RecordRepository) ListDue(ctx context.Context, asOf time.Time, limit int) ([]*adherence.Record, error) {
	query := `
		SELECT ` + recordColumns + `
		FROM adherence_records
		WHERE status = 'due' AND due_at <= $1
		ORDER BY due_at ASC
		LIMIT $2
	`

	rows, err := r.pool.Query(ctx, query, asOf, limit)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	return collectRecords(rows)
}

// ExistsNear reports whether any record for the medication falls within
// +/- tolerance of dueAt.
func (r *RecordRepository) ExistsNear(ctx context.Context, medicationID string, dueAt time.Time, tolerance time.Duration) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM adherence_records
			WHERE medication_id = $1
			  AND due_at BETWEEN $2 AND $3
		)
	`

	var exists bool
	err := r.pool.QueryRow(ctx, query, medicationID, dueAt.Add(-tolerance), dueAt.Add(tolerance)).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("query failed: %w", err)
	}
	return exists, nil
}

// CountInRange counts the medication's records with DueAt in [from, to).
func (r *RecordRepository) CountInRange(ctx context.Context, medicationID string, from, to time.Time) (int, error) {
	query := `
		SELECT COUNT(*) FROM adherence_records
		WHERE medication_id = $1
		  AND due_at >= $2
		  AND due_at < $3
	`

	var n int
	if err := r.pool.QueryRow(ctx, query, medicationID, from, to).Scan(&n); err != nil {
		return 0, fmt.Errorf("query failed: %w", err)
	}
	return n, nil
}

// MarkSent flips due -> sent, recording the attempted channels.
func (r *RecordRepository) MarkSent(ctx context.Context, id string, channels []string, at time.Time) (bool, error) {
	query := `
		UPDATE adherence_records
		SET status = 'sent', channels = $2, updated_at = $3
		WHERE id = $1 AND status = 'due'
	`
	return r.conditionalUpdate(ctx, query, id, channels, at)
}

// MarkTaken flips due/sent -> taken and stamps TakenAt.
func (r *RecordRepository) MarkTaken(ctx context.Context, id string, at time.Time) (bool, error) {
	query := `
		UPDATE adherence_records
		SET status = 'taken', taken_at = $2, updated_at = $2
		WHERE id = $1 AND status IN ('due', 'sent')
	`
	return r.conditionalUpdate(ctx, query, id, at)
}

// MarkSkipped flips due/sent -> skipped.
func (r *RecordRepository) MarkSkipped(ctx context.Context, id string, at time.Time) (bool, error) {
	query := `
		UPDATE adherence_records
		SET status = 'skipped', updated_at = $2
		WHERE id = $1 AND status IN ('due', 'sent')
	`
	return r.conditionalUpdate(ctx, query, id, at)
}

// MarkSnoozed flips due/sent -> snoozed.
func (r *RecordRepository) MarkSnoozed(ctx context.Context, id string, at time.Time) (bool, error) {
	query := `
		UPDATE adherence_records
		SET status = 'snoozed', updated_at = $2
		WHERE id = $1 AND status IN ('due', 'sent')
	`
	return r.conditionalUpdate(ctx, query, id, at)
}

func (r *RecordRepository) conditionalUpdate(ctx context.Context, query string, args ...any) (bool, error) {
	result, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("update failed: %w", err)
	}
	return result.RowsAffected() > 0, nil
}

// SweepMissed flips sent records with DueAt before dueBefore to missed.
func (r *RecordRepository) SweepMissed(ctx context.Context, dueBefore, at time.Time) (int64, error) {
	query := `
		UPDATE adherence_records
		SET status = 'missed', updated_at = $2
		WHERE status = 'sent' AND due_at < $1
	`

	result, err := r.pool.Exec(ctx, query, dueBefore, at)
	if err != nil {
		return 0, fmt.Errorf("sweep failed: %w", err)
	}
	return result.RowsAffected(), nil
}

// PurgeTerminal deletes terminal records last updated before olderThan.
func (r *RecordRepository) PurgeTerminal(ctx context.Context, olderThan time.Time) (int64, error) {
	query := `
		DELETE FROM adherence_records
		WHERE status IN ('taken', 'missed', 'skipped')
		  AND updated_at < $1
	`

	result, err := r.pool.Exec(ctx, query, olderThan)
	if err != nil {
		return 0, fmt.Errorf("purge failed: %w", err)
	}
	return result.RowsAffected(), nil
}

// DeleteFuture removes the medication's due records with DueAt after the
// given instant. Called on medication deletion.
func (r *RecordRepository) DeleteFuture(ctx context.Context, medicationID string, after time.Time) (int64, error) {
	query := `
		DELETE FROM adherence_records
		WHERE medication_id = $1
		  AND status = 'due'
		  AND due_at > $2
	`

	result, err := r.pool.Exec(ctx, query, medicationID, after)
	if err != nil {
		return 0, fmt.Errorf("delete failed: %w", err)
	}
	return result.RowsAffected(), nil
}

func scanRecord(row rowScanner) (*adherence.Record, error) {
	rec := &adherence.Record{}
	var status string

	err := row.Scan(
		&rec.ID, &rec.MedicationID, &rec.DueAt, &status,
		&rec.TakenAt, &rec.Channels, &rec.CreatedAt, &rec.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	rec.Status = adherence.Status(status)
	return rec, nil
}

func collectRecords(rows pgx.Rows) ([]*adherence.Record, error) {
	var recs []*adherence.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan failed: %w", err)
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}
