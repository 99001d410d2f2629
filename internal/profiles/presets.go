package profiles

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/switchyard-project/switchyard/internal/merge"
)

// Preset is a built-in template for creating a profile wired to a known
// provider. Its settings template sits under any caller overrides.
type Preset struct {
	ID         string         `json:"id"`
	Family     string         `json:"family"`
	Name       string         `json:"name"`
	WebsiteURL string         `json:"website_url"`
	Settings   map[string]any `json:"settings"`
}

// Presets returns the built-in provider presets.
func Presets() []Preset {
	return []Preset{
		{
			ID:         "codex-openai",
			Family:     "codex",
			Name:       "OpenAI",
			WebsiteURL: "https://platform.openai.com",
			Settings: map[string]any{
				"auth":   map[string]any{"OPENAI_API_KEY": ""},
				"config": "model_provider = \"openai\"\n",
			},
		},
		{
			ID:         "codex-azure",
			Family:     "codex",
			Name:       "Azure OpenAI",
			WebsiteURL: "https://portal.azure.com",
			Settings: map[string]any{
				"auth":   map[string]any{"AZURE_OPENAI_API_KEY": ""},
				"config": "model_provider = \"azure\"\n",
			},
		},
		{
			ID:         "claude-anthropic",
			Family:     "claude",
			Name:       "Anthropic",
			WebsiteURL: "https://console.anthropic.com",
			Settings: map[string]any{
				"auth":   map[string]any{"ANTHROPIC_API_KEY": ""},
				"config": "",
			},
		},
		{
			ID:         "claude-bedrock",
			Family:     "claude",
			Name:       "AWS Bedrock",
			WebsiteURL: "https://aws.amazon.com/bedrock/",
			Settings: map[string]any{
				"auth":   map[string]any{"CLAUDE_CODE_USE_BEDROCK": "1"},
				"config": "",
			},
		},
	}
}

// PresetByID resolves a preset.
func PresetByID(id string) (Preset, bool) {
	for _, preset := range Presets() {
		if preset.ID == id {
			return preset, true
		}
	}
	return Preset{}, false
}

// CreateFromPreset creates a profile seeded from a preset: caller settings
// overlay the template, empty values are pruned, and the preset id is
// recorded on the new profile.
func (m *Manager) CreateFromPreset(ctx context.Context, family Family, presetID string, input CreateInput, origin string) (Profile, error) {
	preset, ok := PresetByID(presetID)
	if !ok || preset.Family != family.Name {
		return Profile{}, fmt.Errorf("preset %s/%s: %w", family.Name, presetID, ErrNotFound)
	}

	overrides := map[string]any{}
	if strings.TrimSpace(input.Settings) != "" {
		if err := json.Unmarshal([]byte(input.Settings), &overrides); err != nil {
			return Profile{}, &merge.ParseError{Layer: "settings", Err: err}
		}
	}

	settings := merge.PruneEmpty(merge.DeepMerge(preset.Settings, overrides))
	encoded, err := json.Marshal(settings)
	if err != nil {
		return Profile{}, fmt.Errorf("encode preset settings %s: %w", preset.ID, err)
	}

	input.Settings = string(encoded)
	input.SourcePresetID = preset.ID
	if input.Name == "" {
		input.Name = preset.Name
	}
	if input.WebsiteURL == "" {
		input.WebsiteURL = preset.WebsiteURL
	}
	return m.Create(ctx, family, input, origin)
}
