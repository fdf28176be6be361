// Package postgres implements the persistence ports on PostgreSQL via pgx.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/medtrack/go-adherence/internal/domain/medication"
)

// MedicationRepository persists medications and their schedules.
type MedicationRepository struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// NewMedicationRepository creates a new repository.
func NewMedicationRepository(pool *pgxpool.Pool, logger *zap.Logger) *MedicationRepository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MedicationRepository{pool: pool, logger: logger}
}

const medicationColumns = `
	id, owner_id, name, form, strength, notes, start_at, end_at, timezone,
	schedule_rule, schedule_times, interval_hrs, max_per_day,
	quiet_start, quiet_end, created_at, updated_at
`

// Create inserts the medication and its schedule as one row.
func (r *MedicationRepository) Create(ctx context.Context, m *medication.Medication) error {
	query := `
		INSERT INTO medications
		(id, owner_id, name, form, strength, notes, start_at, end_at, timezone,
		 schedule_rule, schedule_times, interval_hrs, max_per_day, quiet_start, quiet_end)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		RETURNING created_at, updated_at
	`

	var quietStart, quietEnd *string
	if q := m.Schedule.QuietHours; q != nil {
		quietStart, quietEnd = &q.Start, &q.End
	}

	err := r.pool.QueryRow(ctx, query,
		m.ID, m.OwnerID, m.Name, m.Form, m.Strength, m.Notes,
		m.StartAt, m.EndAt, m.Timezone,
		string(m.Schedule.Rule), m.Schedule.Times,
		m.Schedule.IntervalHrs, m.Schedule.MaxPerDay,
		quietStart, quietEnd,
	).Scan(&m.CreatedAt, &m.UpdatedAt)

	if err != nil {
		return fmt.Errorf("failed to insert medication: %w", err)
	}
	return nil
}

// GetByID retrieves a medication by ID.
func (r *MedicationRepository) GetByID(ctx context.Context, id string) (*medication.Medication, error) {
	query := `SELECT ` + medicationColumns + ` FROM medications WHERE id = $1`

	m, err := scanMedication(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, medication.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get medication: %w", err)
	}
	return m, nil
}

// ListOverlapping returns medications whose active span overlaps the window.
func (r *MedicationRepository) ListOverlapping(ctx context.Context, windowStart, windowEnd time.Time) ([]*medication.Medication, error) {
	query := `
		SELECT ` + medicationColumns + `
		FROM medications
		WHERE start_at <= $2
		  AND (end_at IS NULL OR end_at >= $1)
		ORDER BY created_at ASC
	`

	rows, err := r.pool.Query(ctx, query, windowStart, windowEnd)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	return collectMedications(rows)
}

// ListActiveByOwner returns the owner's medications active at the instant.
func (r *MedicationRepository) ListActiveByOwner(ctx context.Context, ownerID string, at time.Time) ([]*medication.Medication, error) {
	query := `
		SELECT ` + medicationColumns + `
		FROM medications
		WHERE owner_id = $1
		  AND start_at <= $2
		  AND (end_at IS NULL OR end_at >= $2)
		ORDER BY created_at ASC
	`

	rows, err := r.pool.Query(ctx, query, ownerID, at)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	return collectMedications(rows)
}

// Delete removes the medication row.
func (r *MedicationRepository) Delete(ctx context.Context, id string) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM medications WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete medication: %w", err)
	}
	if result.RowsAffected() == 0 {
		return medication.ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMedication(row rowScanner) (*medication.Medication, error) {
	m := &medication.Medication{}
	var rule string
	var quietStart, quietEnd *string

	err := row.Scan(
		&m.ID, &m.OwnerID, &m.Name, &m.Form, &m.Strength, &m.Notes,
		&m.StartAt, &m.EndAt, &m.Timezone,
		&rule, &m.Schedule.Times, &m.Schedule.IntervalHrs, &m.Schedule.MaxPerDay,
		&quietStart, &quietEnd,
		&m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	m.Schedule.MedicationID = m.ID
	m.Schedule.Rule = medication.Rule(rule)
	if quietStart != nil && quietEnd != nil {
		m.Schedule.QuietHours = &medication.QuietHours{Start: *quietStart, End: *quietEnd}
	}
	return m, nil
}

func collectMedications(rows pgx.Rows) ([]*medication.Medication, error) {
	var meds []*medication.Medication
	for rows.Next() {
		m, err := scanMedication(rows)
		if err != nil {
			return nil, fmt.Errorf("scan failed: %w", err)
		}
		meds = append(meds, m)
	}
	return meds, rows.Err()
}
