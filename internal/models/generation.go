package models

import (
	"time"

	"gorm.io/datatypes"
)

// Generation modes accepted by the pipeline.
const (
	// ModeStaff renders a predefined staff member on the card.
	ModeStaff = "staff"
	// ModeUpload personalizes the card from a description or uploaded photo.
	ModeUpload = "upload"
)

// Generation is one completed image synthesis, recorded append-only.
// Rows are never updated or deleted.
type Generation struct {
	ID string `gorm:"type:text;primaryKey"` // UUID primary key.

	UserID  string `gorm:"type:text;not null;index"` // Owning user ID.
	Company string `gorm:"type:text;not null;index"` // Company slug, stored lowercase.
	Mode    string `gorm:"type:text;not null"`       // staff or upload.

	ImageURL string `gorm:"type:text;not null"` // Public path of the stored artifact.
	Prompt   string `gorm:"type:text;not null"` // Final enhanced prompt sent upstream.

	UserDetails datatypes.JSON `gorm:"type:text"` // Snapshot of the request's user fields.

	CreatedAt time.Time `gorm:"not null;index"` // Creation timestamp (UTC).
}

// UserDetails is the snapshot embedded in a Generation record.
type UserDetails struct {
	Name            string `json:"name"`
	Email           string `json:"email"`
	SelectedHoliday string `json:"selectedHoliday,omitempty"`
	EmailOptIn      bool   `json:"emailOptIn"`
	GreetingText    string `json:"greetingText,omitempty"`
}
