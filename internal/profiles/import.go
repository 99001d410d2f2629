package profiles

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/switchyard-project/switchyard/internal/store"
)

const (
	importedProfileID   = "default-config"
	importedProfileName = "Default configuration"
	importedProfileNote = "Imported from existing config files"
)

// ImportLegacy runs the first-run import for every family: when a family's
// profile collection is empty and the tool's auth file already exists on
// disk, one synthetic profile is created from the on-disk files, applied.
// The guard is only "collection nonempty"; deleting every profile makes the
// next startup import again.
func (m *Manager) ImportLegacy(ctx context.Context) {
	for _, family := range Families() {
		imported, err := m.importFamily(ctx, family)
		if err != nil {
			log.Warn().Err(err).Str("family", family.Name).Msg("First-run import failed")
			continue
		}
		if imported {
			log.Info().
				Str("family", family.Name).
				Str("profile", importedProfileID).
				Msg("Imported existing config files into a profile")
		}
	}
}

func (m *Manager) importFamily(ctx context.Context, family Family) (bool, error) {
	imported := false
	err := m.db.Do(ctx, func(sess *store.Session) error {
		count, err := sess.Count(family.ProfilesCollection())
		if err != nil {
			return err
		}
		if count > 0 {
			return nil
		}

		dir, err := m.configDirFn(family.DirName)
		if err != nil {
			return err
		}
		authPath := filepath.Join(dir, AuthFileName)
		authData, err := os.ReadFile(authPath)
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return fmt.Errorf("read legacy %s: %w", authPath, err)
		}
		var auth map[string]any
		if err := json.Unmarshal(authData, &auth); err != nil {
			return fmt.Errorf("parse legacy %s: %w", authPath, err)
		}

		configText := ""
		if data, err := os.ReadFile(filepath.Join(dir, ConfigFileName)); err == nil {
			configText = string(data)
		}

		settings, err := json.Marshal(map[string]any{"auth": auth, "config": configText})
		if err != nil {
			return fmt.Errorf("encode imported settings %s: %w", family.Name, err)
		}

		now := m.nowFn().UTC().Format(time.RFC3339)
		profile := Profile{
			ID:        importedProfileID,
			Name:      importedProfileName,
			Notes:     importedProfileNote,
			Settings:  string(settings),
			SortIndex: 0,
			Applied:   true,
			CreatedAt: now,
			UpdatedAt: now,
		}
		body, err := encodeProfile(profile)
		if err != nil {
			return err
		}
		if err := sess.Put(family.ProfilesCollection(), profile.ID, body); err != nil {
			return err
		}
		imported = true
		return nil
	})
	return imported, err
}
