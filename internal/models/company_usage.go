package models

import "time"

// CompanyUsage holds the admission counter for one company.
//
// The counter is advanced with an increment-if-below-limit UPDATE so two
// concurrent requests cannot both slip past the ceiling, and is resynced
// from the generations table at startup.
type CompanyUsage struct {
	Company   string    `gorm:"type:text;primaryKey"`    // Company slug, lowercase.
	Used      int64     `gorm:"not null;default:0"`      // Reserved generation count.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last counter change (UTC).
}
