package profiles

import (
	"encoding/json"
	"fmt"
)

// decodeProfile normalizes one stored record into a Profile. Records
// written by older versions used camelCase keys; every field probes the
// current snake_case key first, then the legacy key, so both generations
// keep deserializing. Normalization happens here once, never at use sites.
func decodeProfile(body []byte) (Profile, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return Profile{}, fmt.Errorf("decode profile record: %w", err)
	}

	profile := Profile{
		ID:             stringField(raw, "id", "id"),
		Name:           stringField(raw, "name", "name"),
		Category:       stringField(raw, "category", "category"),
		Settings:       stringField(raw, "settings_config", "settingsConfig"),
		SourcePresetID: stringField(raw, "source_preset_id", "sourcePresetId"),
		WebsiteURL:     stringField(raw, "website_url", "websiteUrl"),
		Notes:          stringField(raw, "notes", "notes"),
		Icon:           stringField(raw, "icon", "icon"),
		IconColor:      stringField(raw, "icon_color", "iconColor"),
		SortIndex:      intField(raw, "sort_index", "sortIndex"),
		Applied:        boolField(raw, "is_applied", "isApplied"),
		CreatedAt:      stringField(raw, "created_at", "createdAt"),
		UpdatedAt:      stringField(raw, "updated_at", "updatedAt"),
	}
	if profile.ID == "" {
		return Profile{}, fmt.Errorf("decode profile record: missing id")
	}
	return profile, nil
}

// encodeProfile serializes a Profile under the current schema keys.
func encodeProfile(profile Profile) ([]byte, error) {
	body, err := json.Marshal(profile)
	if err != nil {
		return nil, fmt.Errorf("encode profile record %s: %w", profile.ID, err)
	}
	return body, nil
}

func stringField(raw map[string]json.RawMessage, current, legacy string) string {
	for _, key := range []string{current, legacy} {
		data, ok := raw[key]
		if !ok {
			continue
		}
		var value string
		if err := json.Unmarshal(data, &value); err == nil {
			return value
		}
	}
	return ""
}

func intField(raw map[string]json.RawMessage, current, legacy string) int {
	for _, key := range []string{current, legacy} {
		data, ok := raw[key]
		if !ok {
			continue
		}
		var value int
		if err := json.Unmarshal(data, &value); err == nil {
			return value
		}
	}
	return 0
}

func boolField(raw map[string]json.RawMessage, current, legacy string) bool {
	for _, key := range []string{current, legacy} {
		data, ok := raw[key]
		if !ok {
			continue
		}
		var value bool
		if err := json.Unmarshal(data, &value); err == nil {
			return value
		}
	}
	return false
}
