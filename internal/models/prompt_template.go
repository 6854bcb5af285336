package models

import "time"

// PromptTemplate is a per-client override spliced into prompt construction.
// Keyed by the lowercase client name; at most one row per client and the
// latest write wins.
type PromptTemplate struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	ClientKey  string `gorm:"type:text;not null;uniqueIndex"` // Lowercase client name.
	ClientName string `gorm:"type:text;not null"`             // Client name as entered.
	Template   string `gorm:"type:text;not null"`             // Override prompt text.
	IsActive   bool   `gorm:"not null;default:true"`          // Whether the override applies.
	CreatedBy  string `gorm:"type:text"`                      // Admin username that last wrote it.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last modification timestamp.
}
