package memory

import (
	"context"
	"strings"
	"sync"

	"github.com/medtrack/go-adherence/internal/safety"
)

// Catalog is an in-memory safety.Catalog.
type Catalog struct {
	mu       sync.RWMutex
	profiles []*safety.DrugProfile
}

// NewCatalog creates a catalog with the given profiles.
func NewCatalog(profiles ...*safety.DrugProfile) *Catalog {
	return &Catalog{profiles: profiles}
}

// Add appends a profile.
func (c *Catalog) Add(p *safety.DrugProfile) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.profiles = append(c.profiles, p)
}

// FindDrugProfile resolves a drug by case-insensitive substring match over
// the name variants in either direction.
func (c *Catalog) FindDrugProfile(_ context.Context, nameQuery string) (*safety.DrugProfile, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	needle := strings.TrimSpace(nameQuery)
	for _, p := range c.profiles {
		for _, name := range p.Names() {
			if name == "" {
				continue
			}
			if containsFold(name, needle) || containsFold(needle, name) {
				return p, nil
			}
		}
	}
	return nil, safety.ErrProfileNotFound
}

func containsFold(haystack, needle string) bool {
	return strings.Contains(strings.ToLower(haystack), strings.ToLower(needle))
}

// SeedCatalog returns a catalog preloaded with a few common OTC drug
// profiles, for development and tests.
func SeedCatalog() *Catalog {
	return NewCatalog(
		&safety.DrugProfile{
			ID:                     "ibuprofen",
			DisplayName:            "Ibuprofen",
			EnglishName:            "ibuprofen",
			GenericName:            "ibuprofen",
			MaxDosesPerDay:         3,
			MinDosingIntervalHours: 6,
			MaxDailyDoseMG:         1200,
			MinAgeMonths:           6,
			Contraindications:      []string{"peptic ulcer", "kidney disease", "asthma"},
			Interactions:           []string{"aspirin", "warfarin", "naproxen"},
		},
		&safety.DrugProfile{
			ID:                     "paracetamol",
			DisplayName:            "Paracetamol",
			EnglishName:            "acetaminophen",
			GenericName:            "paracetamol",
			MaxDosesPerDay:         4,
			MinDosingIntervalHours: 4,
			MaxDailyDoseMG:         4000,
			Contraindications:      []string{"liver disease"},
			Interactions:           []string{"warfarin"},
		},
		&safety.DrugProfile{
			ID:                     "aspirin",
			DisplayName:            "Aspirin",
			EnglishName:            "aspirin",
			GenericName:            "acetylsalicylic acid",
			MaxDosesPerDay:         4,
			MinDosingIntervalHours: 4,
			MaxDailyDoseMG:         4000,
			MinAgeMonths:           192, // Reye's syndrome risk under 16
			Contraindications:      []string{"peptic ulcer", "hemophilia"},
			Interactions:           []string{"ibuprofen", "warfarin"},
		},
		&safety.DrugProfile{
			ID:                     "loratadine",
			DisplayName:            "Loratadine",
			EnglishName:            "loratadine",
			GenericName:            "loratadine",
			MaxDosesPerDay:         1,
			MinDosingIntervalHours: 24,
			MaxDailyDoseMG:         10,
			MinAgeMonths:           24,
		},
	)
}
