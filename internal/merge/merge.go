// Package merge implements the layered config merging used by the apply
// path: deep JSON-style map merging for auth payloads and top-level TOML
// table override for config text.
package merge

import (
	"fmt"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

// ParseError reports a malformed config layer, identifying which layer
// failed to parse.
type ParseError struct {
	Layer string // "common" or "profile"
	Err   error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s config layer: %v", e.Layer, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// DeepMerge merges overlay into base recursively. Where both sides hold a
// mapping at a key the mappings merge; any other collision is resolved by
// the overlay value replacing the base value outright. Arrays are never
// concatenated. Neither input is mutated.
func DeepMerge(base, overlay map[string]any) map[string]any {
	result := make(map[string]any, len(base)+len(overlay))
	for key, value := range base {
		result[key] = value
	}
	for key, value := range overlay {
		if overlayMap, ok := value.(map[string]any); ok {
			if baseMap, ok := result[key].(map[string]any); ok {
				result[key] = DeepMerge(baseMap, overlayMap)
				continue
			}
		}
		result[key] = value
	}
	return result
}

// PruneEmpty returns a copy of m with entries dropped whose value is nil or
// an empty mapping, recursing into nested mappings first. Sequences are
// kept even when empty.
func PruneEmpty(m map[string]any) map[string]any {
	result := make(map[string]any, len(m))
	for key, value := range m {
		switch typed := value.(type) {
		case nil:
			continue
		case map[string]any:
			pruned := PruneEmpty(typed)
			if len(pruned) == 0 {
				continue
			}
			result[key] = pruned
		default:
			result[key] = value
		}
	}
	return result
}

// ValidateTOML reports a ParseError when non-blank text fails to parse as
// TOML. Blank text is a valid empty layer.
func ValidateTOML(layer, text string) error {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	var doc map[string]any
	if err := toml.Unmarshal([]byte(text), &doc); err != nil {
		return &ParseError{Layer: layer, Err: err}
	}
	return nil
}

// MergeTOML layers profile config text over common config text. A blank
// layer yields the other layer verbatim. Otherwise both parse as TOML and
// each top-level key present in the profile layer replaces the common
// layer's value wholesale, with no recursive table merging.
func MergeTOML(common, profile string) (string, error) {
	if strings.TrimSpace(common) == "" {
		return profile, nil
	}
	if strings.TrimSpace(profile) == "" {
		return common, nil
	}

	var commonDoc map[string]any
	if err := toml.Unmarshal([]byte(common), &commonDoc); err != nil {
		return "", &ParseError{Layer: "common", Err: err}
	}
	var profileDoc map[string]any
	if err := toml.Unmarshal([]byte(profile), &profileDoc); err != nil {
		return "", &ParseError{Layer: "profile", Err: err}
	}

	for key, value := range profileDoc {
		commonDoc[key] = value
	}

	out, err := toml.Marshal(commonDoc)
	if err != nil {
		return "", fmt.Errorf("encode merged config: %w", err)
	}
	return string(out), nil
}
