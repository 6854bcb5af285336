package db

import (
	"fmt"

	"github.com/greetforge/greetforge/internal/models"
	"gorm.io/gorm"
)

// Migrate runs database migrations and resyncs the admission counters.
func Migrate(conn *gorm.DB) error {
	if conn == nil {
		return fmt.Errorf("db: nil connection")
	}
	if errAutoMigrate := conn.AutoMigrate(
		&models.User{},
		&models.Generation{},
		&models.CompanyUsage{},
		&models.PromptTemplate{},
	); errAutoMigrate != nil {
		return fmt.Errorf("db: migrate: %w", errAutoMigrate)
	}
	return ResyncUsage(conn)
}

// ResyncUsage rebuilds the per-company admission counters from the
// generations table so the counter and the history cannot drift.
func ResyncUsage(conn *gorm.DB) error {
	// countRow mirrors the aggregate row for per-company generation counts.
	type countRow struct {
		Company string `gorm:"column:company"`
		Total   int64  `gorm:"column:total"`
	}

	var rows []countRow
	if errCount := conn.Model(&models.Generation{}).
		Select("company, COUNT(*) AS total").
		Group("company").
		Scan(&rows).Error; errCount != nil {
		return fmt.Errorf("db: count generations: %w", errCount)
	}

	return conn.Transaction(func(tx *gorm.DB) error {
		if errReset := tx.Model(&models.CompanyUsage{}).
			Where("1 = 1").
			Update("used", 0).Error; errReset != nil {
			return fmt.Errorf("db: reset usage counters: %w", errReset)
		}
		for _, row := range rows {
			usage := models.CompanyUsage{Company: row.Company, Used: row.Total}
			if errSave := tx.Save(&usage).Error; errSave != nil {
				return fmt.Errorf("db: resync usage for %s: %w", row.Company, errSave)
			}
		}
		return nil
	})
}
