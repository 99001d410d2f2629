package profiles

import (
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
)

// Sentinel errors surfaced by profile operations. Callers match with
// errors.Is; wrapped messages carry the family and id context.
var (
	ErrNotFound    = errors.New("not found")
	ErrDuplicateID = errors.New("id already exists")
	ErrInvalidID   = errors.New("invalid id")
)

var profileIDPattern = regexp.MustCompile(`^[A-Za-z0-9._-]{1,64}$`)

// Profile is one named settings bundle for an external tool. Settings holds
// the raw JSON payload ({"auth": {...}, "config": "<toml text>"}); it is
// split and merged only on apply. Timestamps are RFC3339 strings.
type Profile struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Category       string `json:"category,omitempty"`
	Settings       string `json:"settings_config"`
	SourcePresetID string `json:"source_preset_id,omitempty"`
	WebsiteURL     string `json:"website_url,omitempty"`
	Notes          string `json:"notes,omitempty"`
	Icon           string `json:"icon,omitempty"`
	IconColor      string `json:"icon_color,omitempty"`
	SortIndex      int    `json:"sort_index"`
	Applied        bool   `json:"is_applied"`
	CreatedAt      string `json:"created_at"`
	UpdatedAt      string `json:"updated_at"`
}

// CreateInput carries the caller-controlled fields for a new profile. The
// applied flag is not among them; new profiles always start unapplied.
type CreateInput struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Category       string `json:"category"`
	Settings       string `json:"settings_config"`
	SourcePresetID string `json:"source_preset_id"`
	WebsiteURL     string `json:"website_url"`
	Notes          string `json:"notes"`
	Icon           string `json:"icon"`
	IconColor      string `json:"icon_color"`
	SortIndex      int    `json:"sort_index"`
}

func validateProfileID(id string) error {
	if id == "" || id == "." || id == ".." {
		return fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	if filepath.Base(id) != id {
		return fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	if !profileIDPattern.MatchString(id) {
		return fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	return nil
}
