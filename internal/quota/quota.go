package quota

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/greetforge/greetforge/internal/models"
	"github.com/greetforge/greetforge/internal/store"
)

// DefaultLimit is the per-company generation ceiling used when a company
// has no configured limit.
const DefaultLimit = 10

// LimitsFunc returns the current per-company limit table. Keys are
// lowercase company identifiers. The function is called on every
// admission so hot-reloaded limits take effect immediately.
type LimitsFunc func() map[string]int

// Admission is the outcome of a reservation attempt.
type Admission struct {
	Allowed bool  // Whether the request was admitted.
	Used    int64 // Counter value after the attempt.
	Limit   int   // Ceiling applied to the attempt.
}

// Store enforces per-company generation quotas against a counter table.
// Reservations are a single conditional UPDATE so two concurrent requests
// at the last slot cannot both be admitted.
type Store struct {
	db     *gorm.DB
	limits LimitsFunc
}

// New creates a quota store. limits may be nil, in which case every
// company gets DefaultLimit.
func New(db *gorm.DB, limits LimitsFunc) *Store {
	return &Store{db: db, limits: limits}
}

// Limit returns the generation ceiling for a company.
func (s *Store) Limit(company string) int {
	company = store.NormalizeCompany(company)
	if s.limits != nil {
		if limit, ok := s.limits()[company]; ok && limit > 0 {
			return limit
		}
	}
	return DefaultLimit
}

// ConfiguredCompanies returns the companies that have an explicit
// limit, sorted.
func (s *Store) ConfiguredCompanies() []string {
	if s.limits == nil {
		return nil
	}
	table := s.limits()
	companies := make([]string, 0, len(table))
	for company := range table {
		companies = append(companies, company)
	}
	sort.Strings(companies)
	return companies
}

// Used returns the current admission counter for a company.
func (s *Store) Used(ctx context.Context, company string) (int64, error) {
	var usage models.CompanyUsage
	errFind := s.db.WithContext(ctx).
		Where("company = ?", store.NormalizeCompany(company)).
		First(&usage).Error
	if errors.Is(errFind, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if errFind != nil {
		return 0, fmt.Errorf("quota: read usage: %w", errFind)
	}
	return usage.Used, nil
}

// Remaining returns how many generations a company has left. Never
// negative.
func (s *Store) Remaining(ctx context.Context, company string) (int64, error) {
	used, err := s.Used(ctx, company)
	if err != nil {
		return 0, err
	}
	remaining := int64(s.Limit(company)) - used
	if remaining < 0 {
		remaining = 0
	}
	return remaining, nil
}

// CanGenerate reports whether a company is below its ceiling. This is a
// pure read; admission itself goes through Reserve.
func (s *Store) CanGenerate(ctx context.Context, company string) (bool, error) {
	remaining, err := s.Remaining(ctx, company)
	if err != nil {
		return false, err
	}
	return remaining > 0, nil
}

// Reserve atomically claims one generation slot for a company. The
// increment only lands when the counter is below the ceiling, so the
// counter can never exceed the limit regardless of concurrency.
func (s *Store) Reserve(ctx context.Context, company string) (Admission, error) {
	company = store.NormalizeCompany(company)
	limit := s.Limit(company)

	var admitted bool
	errTx := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if errSeed := tx.Clauses(clause.OnConflict{DoNothing: true}).
			Create(&models.CompanyUsage{Company: company}).Error; errSeed != nil {
			return fmt.Errorf("quota: seed usage row: %w", errSeed)
		}
		result := tx.Model(&models.CompanyUsage{}).
			Where("company = ? AND used < ?", company, limit).
			Update("used", gorm.Expr("used + 1"))
		if result.Error != nil {
			return fmt.Errorf("quota: reserve: %w", result.Error)
		}
		admitted = result.RowsAffected == 1
		return nil
	})
	if errTx != nil {
		return Admission{}, errTx
	}

	used, errUsed := s.Used(ctx, company)
	if errUsed != nil {
		return Admission{}, errUsed
	}
	return Admission{Allowed: admitted, Used: used, Limit: limit}, nil
}

// Release returns a previously reserved slot, used when a generation
// fails before it is recorded. The counter never goes below zero.
func (s *Store) Release(ctx context.Context, company string) error {
	result := s.db.WithContext(ctx).
		Model(&models.CompanyUsage{}).
		Where("company = ? AND used > 0", store.NormalizeCompany(company)).
		Update("used", gorm.Expr("used - 1"))
	if result.Error != nil {
		return fmt.Errorf("quota: release: %w", result.Error)
	}
	return nil
}
