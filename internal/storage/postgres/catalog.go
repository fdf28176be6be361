package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/medtrack/go-adherence/internal/safety"
)

// CatalogRepository serves drug safety profiles. The catalog is small and
// read-mostly, so fuzzy matching loads all rows and matches in memory rather
// than encoding the bidirectional substring rule in SQL.
type CatalogRepository struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// NewCatalogRepository creates a new repository.
func NewCatalogRepository(pool *pgxpool.Pool, logger *zap.Logger) *CatalogRepository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CatalogRepository{pool: pool, logger: logger}
}

// FindDrugProfile resolves a drug by case-insensitive substring match over
// the display, english and generic names in either direction.
func (r *CatalogRepository) FindDrugProfile(ctx context.Context, nameQuery string) (*safety.DrugProfile, error) {
	query := `
		SELECT id, display_name, english_name, generic_name,
		       max_doses_per_day, min_dosing_interval_hours, max_daily_dose_mg,
		       min_age_months, max_age_years, contraindications, interactions
		FROM drug_profiles
	`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	needle := strings.TrimSpace(nameQuery)
	for rows.Next() {
		p := &safety.DrugProfile{}
		err := rows.Scan(
			&p.ID, &p.DisplayName, &p.EnglishName, &p.GenericName,
			&p.MaxDosesPerDay, &p.MinDosingIntervalHours, &p.MaxDailyDoseMG,
			&p.MinAgeMonths, &p.MaxAgeYears, &p.Contraindications, &p.Interactions,
		)
		if err != nil {
			return nil, fmt.Errorf("scan failed: %w", err)
		}

		for _, name := range p.Names() {
			if name == "" {
				continue
			}
			if containsFold(name, needle) || containsFold(needle, name) {
				return p, nil
			}
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return nil, safety.ErrProfileNotFound
}

func containsFold(haystack, needle string) bool {
	return strings.Contains(strings.ToLower(haystack), strings.ToLower(needle))
}
