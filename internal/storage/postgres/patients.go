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
	"github.com/medtrack/go-adherence/pkg/clock"
)

// PatientRepository provides the patient facts the safety validator
// cross-references. Active medications come from the medications table;
// conditions, allergies and date of birth from the patient profile tables.
type PatientRepository struct {
	pool        *pgxpool.Pool
	medications medication.Repository
	clock       clock.Clock
	logger      *zap.Logger
}

// NewPatientRepository creates a new repository.
func NewPatientRepository(pool *pgxpool.Pool, medications medication.Repository, clk clock.Clock, logger *zap.Logger) *PatientRepository {
	if clk == nil {
		clk = clock.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PatientRepository{pool: pool, medications: medications, clock: clk, logger: logger}
}

// ActiveMedications returns names of the patient's currently active medications.
func (r *PatientRepository) ActiveMedications(ctx context.Context, patientID string) ([]string, error) {
	meds, err := r.medications.ListActiveByOwner(ctx, patientID, r.clock.Now())
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(meds))
	for _, m := range meds {
		names = append(names, m.Name)
	}
	return names, nil
}

// ActiveConditions returns the patient's recorded conditions.
func (r *PatientRepository) ActiveConditions(ctx context.Context, patientID string) ([]string, error) {
	return r.listStrings(ctx,
		`SELECT condition FROM patient_conditions WHERE patient_id = $1 ORDER BY condition`,
		patientID)
}

// Allergies returns the patient's recorded allergies.
func (r *PatientRepository) Allergies(ctx context.Context, patientID string) ([]string, error) {
	return r.listStrings(ctx,
		`SELECT allergen FROM patient_allergies WHERE patient_id = $1 ORDER BY allergen`,
		patientID)
}

// DateOfBirth returns the patient's date of birth. A patient without a
// profile row has no recorded date of birth; that is a zero time, not an
// error, and age checks are skipped.
func (r *PatientRepository) DateOfBirth(ctx context.Context, patientID string) (time.Time, error) {
	var dob time.Time
	err := r.pool.QueryRow(ctx,
		`SELECT date_of_birth FROM patients WHERE id = $1`, patientID).Scan(&dob)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return time.Time{}, nil
		}
		return time.Time{}, fmt.Errorf("failed to get date of birth: %w", err)
	}
	return dob, nil
}

func (r *PatientRepository) listStrings(ctx context.Context, query, patientID string) ([]string, error) {
	rows, err := r.pool.Query(ctx, query, patientID)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, fmt.Errorf("scan failed: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
