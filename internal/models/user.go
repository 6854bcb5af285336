package models

import "time"

// User represents a card requester tracked per company.
//
// Identity is (email, company): creating the same pair again returns the
// existing row instead of duplicating it.
type User struct {
	ID string `gorm:"type:text;primaryKey"` // UUID primary key.

	Name    string `gorm:"type:text;not null"`                          // Display name.
	Email   string `gorm:"type:text;not null;uniqueIndex:idx_user_key"` // Email address.
	Company string `gorm:"type:text;not null;uniqueIndex:idx_user_key"` // Company slug, stored lowercase.

	CreatedAt time.Time `gorm:"not null"` // Creation timestamp (UTC).
}
