// Package skills manages the central skill repository: the singleton
// settings record holding its path, and translation between stored
// (relative or legacy absolute) skill paths and local absolute ones.
package skills

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/rs/zerolog/log"

	"github.com/switchyard-project/switchyard/internal/events"
	"github.com/switchyard-project/switchyard/internal/metrics"
	"github.com/switchyard-project/switchyard/internal/paths"
	"github.com/switchyard-project/switchyard/internal/store"
)

const (
	// SettingsCollection holds the singleton settings document.
	SettingsCollection = "skill_settings"

	settingsDocID  = "skills"
	centralDirName = "skills"
)

// Settings is the stored shape of the skill repository configuration. An
// empty path means the application-managed default directory.
type Settings struct {
	CentralRepoPath string `json:"central_repo_path"`
}

// Skill is one entry of the central repository: a directory directly under
// the repository root.
type Skill struct {
	Name string `json:"name"`
	Path string `json:"path"`
}

// Manager reads and writes the repository settings through the shared store
// and resolves skill paths against the configured repository directory.
type Manager struct {
	db       *store.Store
	notifier *events.Notifier

	dataDirFn func() (string, error)
}

// NewManager wires a Manager over the shared store and notifier.
func NewManager(db *store.Store, notifier *events.Notifier) *Manager {
	return &Manager{
		db:        db,
		notifier:  notifier,
		dataDirFn: paths.DataDir,
	}
}

// Settings returns the stored settings record. An absent document yields the
// zero value; a blank path means "use the default".
func (m *Manager) Settings(ctx context.Context) (Settings, error) {
	var settings Settings
	err := m.db.Do(ctx, func(sess *store.Session) error {
		body, ok, err := sess.Get(SettingsCollection, settingsDocID)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		decoded, err := decodeSettings(body)
		if err != nil {
			return fmt.Errorf("decode skill settings: %w", err)
		}
		settings = decoded
		return nil
	})
	return settings, err
}

// CentralDir returns the current central repository directory: the stored
// path when one is configured, otherwise the application default. Store and
// decode failures degrade to the default with a logged diagnostic.
func (m *Manager) CentralDir(ctx context.Context) string {
	settings, err := m.Settings(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("Loading skill settings failed; using default repository path")
		return m.defaultDir()
	}
	if settings.CentralRepoPath != "" {
		return settings.CentralRepoPath
	}
	return m.defaultDir()
}

// SetCentralDir stores a new repository path. The input may use "~"
// shorthand; it is expanded, the directory is created if missing, and the
// absolute result is persisted and returned.
func (m *Manager) SetCentralDir(ctx context.Context, raw string, origin string) (string, error) {
	expanded, err := paths.ExpandHome(raw)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(expanded, 0700); err != nil {
		return "", fmt.Errorf("create skill repository %s: %w", expanded, err)
	}

	err = m.db.Do(ctx, func(sess *store.Session) error {
		body, err := json.Marshal(Settings{CentralRepoPath: expanded})
		if err != nil {
			return fmt.Errorf("encode skill settings: %w", err)
		}
		return sess.Put(SettingsCollection, settingsDocID, body)
	})
	if err != nil {
		return "", err
	}

	metrics.RecordMutation("skills", "set_path")
	m.notifier.Broadcast("", origin)
	return expanded, nil
}

// RestoreSettings writes the settings record wholesale without touching the
// filesystem. A restored path is resolved, like any stored path, when the
// repository is next read.
func (m *Manager) RestoreSettings(ctx context.Context, settings Settings) error {
	return m.db.Do(ctx, func(sess *store.Session) error {
		body, err := json.Marshal(settings)
		if err != nil {
			return fmt.Errorf("encode skill settings: %w", err)
		}
		return sess.Put(SettingsCollection, settingsDocID, body)
	})
}

// Resolve maps a stored skill path (relative, or legacy absolute from any
// platform) to a local absolute path under the current repository.
func (m *Manager) Resolve(ctx context.Context, stored string) string {
	return paths.ResolveStored(stored, m.CentralDir(ctx))
}

// Relativize converts a local absolute skill path to its stored form.
func (m *Manager) Relativize(ctx context.Context, absolute string) string {
	return paths.ToRelative(absolute, m.CentralDir(ctx))
}

// List returns the repository's skills, one per directory directly under the
// repository root, sorted by name. A repository directory that does not
// exist yet yields an empty list.
func (m *Manager) List(ctx context.Context) ([]Skill, error) {
	dir := m.CentralDir(ctx)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return []Skill{}, nil
		}
		return nil, fmt.Errorf("read skill repository %s: %w", dir, err)
	}

	skills := make([]Skill, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		skills = append(skills, Skill{
			Name: entry.Name(),
			Path: filepath.Join(dir, entry.Name()),
		})
	}
	sort.Slice(skills, func(i, j int) bool { return skills[i].Name < skills[j].Name })
	return skills, nil
}

func (m *Manager) defaultDir() string {
	base, err := m.dataDirFn()
	if err != nil {
		log.Warn().Err(err).Msg("Resolving data directory failed; using relative skill repository path")
		return centralDirName
	}
	return filepath.Join(base, centralDirName)
}

// decodeSettings tolerates the older camelCase key so settings written by a
// previous schema version keep loading.
func decodeSettings(body []byte) (Settings, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return Settings{}, err
	}

	var settings Settings
	for _, key := range []string{"central_repo_path", "centralRepoPath"} {
		raw, ok := fields[key]
		if !ok {
			continue
		}
		var value string
		if err := json.Unmarshal(raw, &value); err != nil {
			return Settings{}, fmt.Errorf("field %s: %w", key, err)
		}
		settings.CentralRepoPath = value
		break
	}
	return settings, nil
}
