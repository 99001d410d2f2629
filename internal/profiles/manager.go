// Package profiles implements profile lifecycle and the applied-state
// machine for every tool family: CRUD over the shared document store,
// layered config generation into each tool's destination files, and change
// broadcasting toward the rendering surfaces.
package profiles

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/switchyard-project/switchyard/internal/events"
	"github.com/switchyard-project/switchyard/internal/merge"
	"github.com/switchyard-project/switchyard/internal/metrics"
	"github.com/switchyard-project/switchyard/internal/paths"
	"github.com/switchyard-project/switchyard/internal/store"
)

const commonDocID = "common"

// commonDoc is the stored shape of a family's shared config layer.
type commonDoc struct {
	Config string `json:"config"`
}

// Manager owns every profile operation. All store access runs inside
// store.Do, so each operation, including its file side-effects, holds the
// store lock for its full duration.
type Manager struct {
	db       *store.Store
	notifier *events.Notifier

	configDirFn func(dirName string) (string, error)
	nowFn       func() time.Time
}

// NewManager wires a Manager over the shared store and notifier.
func NewManager(db *store.Store, notifier *events.Notifier) *Manager {
	return &Manager{
		db:          db,
		notifier:    notifier,
		configDirFn: paths.FamilyConfigDir,
		nowFn:       time.Now,
	}
}

// Snapshot returns the family's profiles ordered by sort index, propagating
// store and decode failures. Backup export reads through it; UI paths use
// List, which adds the degrade-to-empty contract.
func (m *Manager) Snapshot(ctx context.Context, family Family) ([]Profile, error) {
	var profiles []Profile
	err := m.db.Do(ctx, func(sess *store.Session) error {
		docs, err := sess.All(family.ProfilesCollection())
		if err != nil {
			return err
		}
		decoded := make([]Profile, 0, len(docs))
		for _, doc := range docs {
			profile, err := decodeProfile(doc.Body)
			if err != nil {
				return fmt.Errorf("profile %s/%s: %w", family.Name, doc.ID, err)
			}
			decoded = append(decoded, profile)
		}
		profiles = decoded
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.SliceStable(profiles, func(i, j int) bool {
		return profiles[i].SortIndex < profiles[j].SortIndex
	})
	return profiles, nil
}

// List returns the family's profiles ordered by sort index. Store or decode
// failures degrade to an empty list with a logged diagnostic; a read path
// feeding UI never hard-fails.
func (m *Manager) List(ctx context.Context, family Family) []Profile {
	profiles, err := m.Snapshot(ctx, family)
	if err != nil {
		log.Warn().Err(err).Str("family", family.Name).Msg("Listing profiles failed; returning empty list")
		return []Profile{}
	}
	return profiles
}

// Get fetches one profile.
func (m *Manager) Get(ctx context.Context, family Family, id string) (Profile, error) {
	var profile Profile
	err := m.db.Do(ctx, func(sess *store.Session) error {
		found, err := m.getLocked(sess, family, id)
		if err != nil {
			return err
		}
		profile = found
		return nil
	})
	return profile, err
}

func (m *Manager) getLocked(sess *store.Session, family Family, id string) (Profile, error) {
	body, ok, err := sess.Get(family.ProfilesCollection(), id)
	if err != nil {
		return Profile{}, err
	}
	if !ok {
		return Profile{}, fmt.Errorf("profile %s/%s: %w", family.Name, id, ErrNotFound)
	}
	profile, err := decodeProfile(body)
	if err != nil {
		return Profile{}, fmt.Errorf("profile %s/%s: %w", family.Name, id, err)
	}
	return profile, nil
}

// Create stores a new profile. The applied flag is forced off regardless of
// input; only an apply or select transition can set it.
func (m *Manager) Create(ctx context.Context, family Family, input CreateInput, origin string) (Profile, error) {
	if err := validateProfileID(input.ID); err != nil {
		return Profile{}, err
	}

	now := m.nowFn().UTC().Format(time.RFC3339)
	profile := Profile{
		ID:             input.ID,
		Name:           input.Name,
		Category:       input.Category,
		Settings:       input.Settings,
		SourcePresetID: input.SourcePresetID,
		WebsiteURL:     input.WebsiteURL,
		Notes:          input.Notes,
		Icon:           input.Icon,
		IconColor:      input.IconColor,
		SortIndex:      input.SortIndex,
		Applied:        false,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if profile.Name == "" {
		profile.Name = profile.ID
	}

	err := m.db.Do(ctx, func(sess *store.Session) error {
		collection := family.ProfilesCollection()
		_, exists, err := sess.Get(collection, profile.ID)
		if err != nil {
			return err
		}
		if exists {
			return fmt.Errorf("profile %s/%s: %w", family.Name, profile.ID, ErrDuplicateID)
		}
		body, err := encodeProfile(profile)
		if err != nil {
			return err
		}
		return sess.Put(collection, profile.ID, body)
	})
	if err != nil {
		return Profile{}, err
	}

	metrics.RecordMutation(family.Name, "create")
	m.notifier.Broadcast(family.Name, origin)
	return profile, nil
}

// Update replaces a profile record wholesale under its existing id,
// preserving the original created_at (refetched when the caller sends it
// blank). When the updated record is the applied one, destination files are
// regenerated in the same locked scope; that side-effect's failure is
// logged, never propagated, because the record write already succeeded.
func (m *Manager) Update(ctx context.Context, family Family, updated Profile, origin string) (Profile, error) {
	if err := validateProfileID(updated.ID); err != nil {
		return Profile{}, err
	}

	err := m.db.Do(ctx, func(sess *store.Session) error {
		collection := family.ProfilesCollection()
		body, exists, err := sess.Get(collection, updated.ID)
		if err != nil {
			return err
		}
		if !exists {
			return fmt.Errorf("profile %s/%s: %w", family.Name, updated.ID, ErrNotFound)
		}
		if updated.CreatedAt == "" {
			if existing, err := decodeProfile(body); err == nil {
				updated.CreatedAt = existing.CreatedAt
			}
		}
		updated.UpdatedAt = m.nowFn().UTC().Format(time.RFC3339)

		// Full-record replace: delete then recreate under the same id.
		if err := sess.Delete(collection, updated.ID); err != nil {
			return err
		}
		encoded, err := encodeProfile(updated)
		if err != nil {
			return err
		}
		if err := sess.Put(collection, updated.ID, encoded); err != nil {
			return err
		}

		if updated.Applied {
			if err := m.writeDestinationFiles(sess, family, updated); err != nil {
				log.Warn().Err(err).
					Str("family", family.Name).
					Str("profile", updated.ID).
					Msg("Regenerating destination files after profile update failed")
			}
		}
		return nil
	})
	if err != nil {
		return Profile{}, err
	}

	metrics.RecordMutation(family.Name, "update")
	m.notifier.Broadcast(family.Name, origin)
	return updated, nil
}

// Delete removes a profile unconditionally. Deleting an absent id is not a
// distinguishable no-op. Destination files written by an earlier apply are
// left in place.
func (m *Manager) Delete(ctx context.Context, family Family, id string, origin string) error {
	err := m.db.Do(ctx, func(sess *store.Session) error {
		return sess.Delete(family.ProfilesCollection(), id)
	})
	if err != nil {
		return err
	}

	metrics.RecordMutation(family.Name, "delete")
	m.notifier.Broadcast(family.Name, origin)
	return nil
}

// Reorder assigns sort index = position for each id in order, touching
// updated_at. Ids without a record are skipped, matching an UPDATE whose
// WHERE clause matches nothing. The first hard failure aborts the remaining
// batch; already-written indices are not rolled back.
func (m *Manager) Reorder(ctx context.Context, family Family, idsInOrder []string, origin string) error {
	err := m.db.Do(ctx, func(sess *store.Session) error {
		collection := family.ProfilesCollection()
		now := m.nowFn().UTC().Format(time.RFC3339)
		for position, id := range idsInOrder {
			body, exists, err := sess.Get(collection, id)
			if err != nil {
				return err
			}
			if !exists {
				continue
			}
			profile, err := decodeProfile(body)
			if err != nil {
				return fmt.Errorf("profile %s/%s: %w", family.Name, id, err)
			}
			profile.SortIndex = position
			profile.UpdatedAt = now
			encoded, err := encodeProfile(profile)
			if err != nil {
				return err
			}
			if err := sess.Put(collection, id, encoded); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	metrics.RecordMutation(family.Name, "reorder")
	m.notifier.Broadcast(family.Name, origin)
	return nil
}

// CommonConfig returns the family's shared config layer. Absence, store
// failure and decode failure all degrade to the empty layer; failures are
// logged.
func (m *Manager) CommonConfig(ctx context.Context, family Family) string {
	var text string
	err := m.db.Do(ctx, func(sess *store.Session) error {
		loaded, err := m.commonLocked(sess, family)
		if err != nil {
			return err
		}
		text = loaded
		return nil
	})
	if err != nil {
		log.Warn().Err(err).Str("family", family.Name).Msg("Loading common config failed; using empty layer")
		return ""
	}
	return text
}

func (m *Manager) commonLocked(sess *store.Session, family Family) (string, error) {
	body, ok, err := sess.Get(family.CommonCollection(), commonDocID)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", nil
	}
	var doc commonDoc
	if err := json.Unmarshal(body, &doc); err != nil {
		return "", fmt.Errorf("decode common config %s: %w", family.Name, err)
	}
	return doc.Config, nil
}

// SaveCommonConfig replaces the family's shared layer wholesale, then
// regenerates the applied profile's destination files so they pick up the
// new layer. The regeneration failure is logged, never propagated.
func (m *Manager) SaveCommonConfig(ctx context.Context, family Family, text string, origin string) error {
	if err := merge.ValidateTOML("common", text); err != nil {
		return err
	}

	err := m.db.Do(ctx, func(sess *store.Session) error {
		body, err := json.Marshal(commonDoc{Config: text})
		if err != nil {
			return fmt.Errorf("encode common config %s: %w", family.Name, err)
		}
		if err := sess.Put(family.CommonCollection(), commonDocID, body); err != nil {
			return err
		}

		applied, ok, err := m.appliedLocked(sess, family)
		if err != nil {
			log.Warn().Err(err).Str("family", family.Name).Msg("Locating applied profile after common config save failed")
			return nil
		}
		if !ok {
			return nil
		}
		if err := m.writeDestinationFiles(sess, family, applied); err != nil {
			log.Warn().Err(err).
				Str("family", family.Name).
				Str("profile", applied.ID).
				Msg("Regenerating destination files after common config save failed")
		}
		return nil
	})
	if err != nil {
		return err
	}

	metrics.RecordMutation(family.Name, "common")
	m.notifier.Broadcast(family.Name, origin)
	return nil
}

// Restore writes a profile record wholesale, replacing any existing record
// under the same id. Blank timestamps are stamped; destination files are not
// touched and no event is broadcast. The applied flag lands as given; backup
// import caps it at one per family and broadcasts once per family after
// restoring.
func (m *Manager) Restore(ctx context.Context, family Family, profile Profile) error {
	if err := validateProfileID(profile.ID); err != nil {
		return err
	}
	now := m.nowFn().UTC().Format(time.RFC3339)
	if profile.CreatedAt == "" {
		profile.CreatedAt = now
	}
	if profile.UpdatedAt == "" {
		profile.UpdatedAt = now
	}

	return m.db.Do(ctx, func(sess *store.Session) error {
		body, err := encodeProfile(profile)
		if err != nil {
			return err
		}
		return sess.Put(family.ProfilesCollection(), profile.ID, body)
	})
}

// RestoreCommon writes the family's shared layer wholesale without
// revalidating it or regenerating destination files.
func (m *Manager) RestoreCommon(ctx context.Context, family Family, text string) error {
	return m.db.Do(ctx, func(sess *store.Session) error {
		body, err := json.Marshal(commonDoc{Config: text})
		if err != nil {
			return fmt.Errorf("encode common config %s: %w", family.Name, err)
		}
		return sess.Put(family.CommonCollection(), commonDocID, body)
	})
}

// appliedLocked finds the family's applied profile, if any. Undecodable
// records are skipped.
func (m *Manager) appliedLocked(sess *store.Session, family Family) (Profile, bool, error) {
	docs, err := sess.All(family.ProfilesCollection())
	if err != nil {
		return Profile{}, false, err
	}
	for _, doc := range docs {
		profile, err := decodeProfile(doc.Body)
		if err != nil {
			log.Warn().Err(err).Str("family", family.Name).Str("id", doc.ID).Msg("Skipping undecodable profile record")
			continue
		}
		if profile.Applied {
			return profile, true, nil
		}
	}
	return Profile{}, false, nil
}
