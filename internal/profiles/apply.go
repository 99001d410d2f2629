package profiles

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/switchyard-project/switchyard/internal/merge"
	"github.com/switchyard-project/switchyard/internal/metrics"
	"github.com/switchyard-project/switchyard/internal/store"
)

// Destination file names under a family's config directory.
const (
	AuthFileName   = "auth.json"
	ConfigFileName = "config.toml"
)

// Apply makes a profile the family's applied one: its settings payload is
// split, its config text is merged over the common layer, both destination
// files are written, and only then do the applied flags flip. A file-write
// failure surfaces to the caller with no flag transition. The whole
// sequence runs under the store lock.
func (m *Manager) Apply(ctx context.Context, family Family, id string, origin string) error {
	err := m.db.Do(ctx, func(sess *store.Session) error {
		profile, err := m.getLocked(sess, family, id)
		if err != nil {
			return err
		}
		if err := m.writeDestinationFiles(sess, family, profile); err != nil {
			return err
		}
		return m.flipAppliedLocked(sess, family, id)
	})
	if err != nil {
		return err
	}

	metrics.RecordApply(family.Name, origin)
	m.notifier.Broadcast(family.Name, origin)
	return nil
}

// Select marks a profile applied without regenerating destination files:
// the flag transition alone.
func (m *Manager) Select(ctx context.Context, family Family, id string, origin string) error {
	err := m.db.Do(ctx, func(sess *store.Session) error {
		return m.flipAppliedLocked(sess, family, id)
	})
	if err != nil {
		return err
	}

	metrics.RecordMutation(family.Name, "select")
	m.notifier.Broadcast(family.Name, origin)
	return nil
}

// flipAppliedLocked performs the two-step applied transition: clear every
// applied flag, then set the target's. The steps are separate persistence
// calls, not a transaction; the held store lock keeps other mutators out,
// but a crash between the steps leaves the family with zero applied
// profiles until the next explicit apply or select.
func (m *Manager) flipAppliedLocked(sess *store.Session, family Family, id string) error {
	collection := family.ProfilesCollection()

	targetBody, exists, err := sess.Get(collection, id)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("profile %s/%s: %w", family.Name, id, ErrNotFound)
	}
	target, err := decodeProfile(targetBody)
	if err != nil {
		return fmt.Errorf("profile %s/%s: %w", family.Name, id, err)
	}

	docs, err := sess.All(collection)
	if err != nil {
		return err
	}
	for _, doc := range docs {
		profile, err := decodeProfile(doc.Body)
		if err != nil {
			log.Warn().Err(err).Str("family", family.Name).Str("id", doc.ID).Msg("Skipping undecodable profile record during applied transition")
			continue
		}
		if !profile.Applied {
			continue
		}
		profile.Applied = false
		encoded, err := encodeProfile(profile)
		if err != nil {
			return err
		}
		if err := sess.Put(collection, doc.ID, encoded); err != nil {
			return err
		}
	}

	target.Applied = true
	encoded, err := encodeProfile(target)
	if err != nil {
		return err
	}
	return sess.Put(collection, id, encoded)
}

// writeDestinationFiles renders a profile into the family's config
// directory: auth.json from the pruned auth section, config.toml from the
// profile text merged over the common layer. The directory is created on
// first write. Only apply-side paths call this; a blank common layer alone
// never creates files.
func (m *Manager) writeDestinationFiles(sess *store.Session, family Family, profile Profile) error {
	auth, configText, err := splitSettings(profile.Settings)
	if err != nil {
		return err
	}

	common, err := m.commonLocked(sess, family)
	if err != nil {
		log.Warn().Err(err).Str("family", family.Name).Msg("Loading common config failed; using empty layer")
		common = ""
	}
	merged, err := merge.MergeTOML(common, configText)
	if err != nil {
		return err
	}

	dir, err := m.configDirFn(family.DirName)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("create config directory %s: %w", dir, err)
	}

	authJSON, err := json.MarshalIndent(merge.PruneEmpty(auth), "", "  ")
	if err != nil {
		return fmt.Errorf("encode auth section %s/%s: %w", family.Name, profile.ID, err)
	}
	authPath := filepath.Join(dir, AuthFileName)
	if err := os.WriteFile(authPath, append(authJSON, '\n'), 0600); err != nil {
		return fmt.Errorf("write %s: %w", authPath, err)
	}

	configPath := filepath.Join(dir, ConfigFileName)
	if err := os.WriteFile(configPath, []byte(merged), 0600); err != nil {
		return fmt.Errorf("write %s: %w", configPath, err)
	}
	return nil
}

// splitSettings parses a profile's settings payload into its auth object
// and config-text sections. A blank payload is an empty pair.
func splitSettings(settings string) (map[string]any, string, error) {
	if strings.TrimSpace(settings) == "" {
		return map[string]any{}, "", nil
	}

	var payload struct {
		Auth   map[string]any `json:"auth"`
		Config string         `json:"config"`
	}
	if err := json.Unmarshal([]byte(settings), &payload); err != nil {
		return nil, "", &merge.ParseError{Layer: "settings", Err: err}
	}
	if payload.Auth == nil {
		payload.Auth = map[string]any{}
	}
	return payload.Auth, payload.Config, nil
}
