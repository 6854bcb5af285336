// Package prompt assembles greeting card image prompts from request
// parameters. Assembly is pure string work with no I/O so the exact
// prompt for a given input is fully deterministic.
package prompt

import (
	"fmt"
	"strings"

	"github.com/greetforge/greetforge/internal/models"
)

// DefaultHoliday is used when the request does not name a holiday.
const DefaultHoliday = "Christmas"

// ValidationError marks a request rejected during field validation.
type ValidationError string

// Error implements the error interface.
func (e ValidationError) Error() string { return string(e) }

// Validation failures surfaced to callers verbatim.
const (
	ErrInvalidMode          = ValidationError("Invalid mode")
	ErrMissingStaff         = ValidationError("Missing staff or card style")
	ErrMissingCustomization = ValidationError("Missing customization parameters")
)

// Request holds everything the builder needs to assemble a prompt.
type Request struct {
	Mode              string // "staff" or "upload"
	Client            string
	Staff             string // staff mode: who the card features
	CardStyle         string
	PersonDescription string // upload mode: description of the person
	Accessory         string
	Pose              string
	Background        string
	MagicalEffect     string
	ImagePath         string // upload mode: stored reference photo, if any
	SelectedHoliday   string
	GreetingText      string
}

// Holiday returns the holiday the card celebrates, defaulting to
// DefaultHoliday.
func (r Request) Holiday() string {
	if holiday := strings.TrimSpace(r.SelectedHoliday); holiday != "" {
		return holiday
	}
	return DefaultHoliday
}

// Validate checks the mode-specific required fields.
func (r Request) Validate() error {
	switch r.Mode {
	case models.ModeStaff:
		if strings.TrimSpace(r.Staff) == "" || strings.TrimSpace(r.CardStyle) == "" {
			return ErrMissingStaff
		}
	case models.ModeUpload:
		hasSubject := strings.TrimSpace(r.PersonDescription) != "" || strings.TrimSpace(r.ImagePath) != ""
		if !hasSubject ||
			strings.TrimSpace(r.CardStyle) == "" ||
			strings.TrimSpace(r.Accessory) == "" ||
			strings.TrimSpace(r.Pose) == "" ||
			strings.TrimSpace(r.Background) == "" ||
			strings.TrimSpace(r.MagicalEffect) == "" {
			return ErrMissingCustomization
		}
	default:
		return ErrInvalidMode
	}
	return nil
}

// Build assembles the image prompt for a request. customTemplate, when
// non-empty, is a client-specific template that prefixes the structural
// prompt instead of the stock opening. The optional greeting text is
// always appended last.
func Build(r Request, customTemplate string) (string, error) {
	if err := r.Validate(); err != nil {
		return "", err
	}

	holiday := r.Holiday()
	customTemplate = strings.TrimSpace(customTemplate)

	var b strings.Builder
	switch r.Mode {
	case models.ModeStaff:
		if customTemplate != "" {
			fmt.Fprintf(&b,
				"%s The greeting card should be in %s style and feature %s celebrating %s. Create a greeting card layout that is warm, inviting, and suitable for sharing with colleagues and friends. Include elegant %s themes, festive colors, and high-quality artistic details.",
				customTemplate, r.CardStyle, r.Staff, holiday, holiday)
		} else {
			fmt.Fprintf(&b,
				"A beautiful %s greeting card in %s style, professionally designed for %s. The card should feature %s with elegant %s themes, festive colors, and high-quality artistic details. Create a greeting card layout that is warm, inviting, and suitable for sharing with colleagues and friends.",
				holiday, r.CardStyle, r.Client, r.Staff, holiday)
		}
	case models.ModeUpload:
		switch {
		case customTemplate != "":
			fmt.Fprintf(&b,
				"%s The greeting card should be in %s style featuring: %s. The person is wearing %s and is %s. The scene is set in %s with %s around them celebrating %s. Make it warm, joyful, and celebratory with %s spirit. Make it perfect for sharing with peers.",
				customTemplate, r.CardStyle, r.PersonDescription, r.Accessory, r.Pose, r.Background, r.MagicalEffect, holiday, holiday)
		case strings.TrimSpace(r.ImagePath) != "":
			fmt.Fprintf(&b,
				"Create a beautiful %s greeting card in %s style inspired by the person in this reference photo. The card scene should show them wearing %s and %s, set in %s with %s around them celebrating %s. Transform the person from the reference image into a greeting card design that is warm, inviting, and suitable for sharing. Use elegant %s themes, festive colors, and professional quality. Make it magical and joyful with %s spirit.",
				holiday, r.CardStyle, r.Accessory, r.Pose, r.Background, r.MagicalEffect, holiday, holiday, holiday)
		default:
			fmt.Fprintf(&b,
				"A beautiful %s greeting card in %s style featuring: %s. The person is wearing %s and is %s. The scene is set in %s with %s around them celebrating %s. The card should have elegant %s themes, festive colors, vibrant details, and professional quality suitable for sharing. Make it warm, joyful, and celebratory with %s spirit.",
				holiday, r.CardStyle, r.PersonDescription, r.Accessory, r.Pose, r.Background, r.MagicalEffect, holiday, holiday, holiday)
		}
	}

	if greeting := strings.TrimSpace(r.GreetingText); greeting != "" {
		escaped := strings.ReplaceAll(greeting, `"`, `\"`)
		fmt.Fprintf(&b, " Include the text \"%s\" on the card.", escaped)
	}
	return b.String(), nil
}
