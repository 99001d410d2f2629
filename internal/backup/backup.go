// Package backup exports and imports all profile data as one
// passphrase-encrypted bundle: every family's profiles and shared layer,
// plus the skill repository settings.
package backup

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/IGLOU-EU/go-wildcard/v2"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/pbkdf2"

	"github.com/switchyard-project/switchyard/internal/events"
	"github.com/switchyard-project/switchyard/internal/metrics"
	"github.com/switchyard-project/switchyard/internal/profiles"
	"github.com/switchyard-project/switchyard/internal/skills"
)

const bundleVersion = "1.0"

const (
	saltLength       = 32
	pbkdf2Iterations = 100000
	keyLength        = 32
)

// Bundle is the decrypted payload of an export.
type Bundle struct {
	Version       string                  `json:"version"`
	ExportedAt    time.Time               `json:"exported_at"`
	Families      map[string]FamilyBundle `json:"families"`
	SkillSettings skills.Settings         `json:"skill_settings"`
}

// FamilyBundle carries one tool family's profiles and shared config layer.
type FamilyBundle struct {
	Profiles []profiles.Profile `json:"profiles"`
	Common   string             `json:"common"`
}

// Service performs export and import over the profile and skill managers.
type Service struct {
	profiles *profiles.Manager
	skills   *skills.Manager
	notifier *events.Notifier
}

// NewService wires a backup service.
func NewService(profileManager *profiles.Manager, skillManager *skills.Manager, notifier *events.Notifier) *Service {
	return &Service{
		profiles: profileManager,
		skills:   skillManager,
		notifier: notifier,
	}
}

// Export collects every family's data into a bundle, optionally filtered by
// wildcard id patterns (an empty filter keeps everything), and returns it
// encrypted with the passphrase and base64 encoded.
func (s *Service) Export(ctx context.Context, passphrase string, include []string) (string, error) {
	if passphrase == "" {
		return "", fmt.Errorf("passphrase is required for export")
	}

	bundle := Bundle{
		Version:    bundleVersion,
		ExportedAt: time.Now().UTC(),
		Families:   make(map[string]FamilyBundle),
	}

	for _, family := range profiles.Families() {
		all, err := s.profiles.Snapshot(ctx, family)
		if err != nil {
			return "", fmt.Errorf("failed to export %s profiles: %w", family.Name, err)
		}
		kept := make([]profiles.Profile, 0, len(all))
		for _, profile := range all {
			if includesID(include, profile.ID) {
				kept = append(kept, profile)
			}
		}
		bundle.Families[family.Name] = FamilyBundle{
			Profiles: kept,
			Common:   s.profiles.CommonConfig(ctx, family),
		}
	}

	settings, err := s.skills.Settings(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to export skill settings: %w", err)
	}
	bundle.SkillSettings = settings

	jsonData, err := json.Marshal(bundle)
	if err != nil {
		return "", fmt.Errorf("failed to marshal export data: %w", err)
	}

	encrypted, err := encryptWithPassphrase(jsonData, passphrase)
	if err != nil {
		return "", fmt.Errorf("failed to encrypt export data: %w", err)
	}
	return base64.StdEncoding.EncodeToString(encrypted), nil
}

// Import decrypts a bundle and restores it: create-or-replace per profile,
// wholesale common layer, skill settings when the bundle carries a path.
// Applied flags are restored as exported, capped at one per family. One
// change event is broadcast per restored family.
func (s *Service) Import(ctx context.Context, encoded, passphrase, origin string) error {
	if passphrase == "" {
		return fmt.Errorf("passphrase is required for import")
	}

	encrypted, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return fmt.Errorf("failed to decode import data: %w", err)
	}
	decrypted, err := decryptWithPassphrase(encrypted, passphrase)
	if err != nil {
		return fmt.Errorf("failed to decrypt import data: %w", err)
	}

	var bundle Bundle
	if err := json.Unmarshal(decrypted, &bundle); err != nil {
		return fmt.Errorf("failed to unmarshal import data: %w", err)
	}
	if bundle.Version != bundleVersion {
		log.Warn().
			Str("bundleVersion", bundle.Version).
			Str("currentVersion", bundleVersion).
			Msg("Importing bundle from a different version")
	}

	for name, familyBundle := range bundle.Families {
		family, ok := profiles.FamilyByName(name)
		if !ok {
			log.Warn().Str("family", name).Msg("Skipping unknown family in import bundle")
			continue
		}

		appliedSeen := false
		for _, profile := range familyBundle.Profiles {
			if profile.Applied {
				if appliedSeen {
					profile.Applied = false
				}
				appliedSeen = true
			}
			if err := s.profiles.Restore(ctx, family, profile); err != nil {
				return fmt.Errorf("failed to import profile %s/%s: %w", family.Name, profile.ID, err)
			}
		}
		if err := s.profiles.RestoreCommon(ctx, family, familyBundle.Common); err != nil {
			return fmt.Errorf("failed to import %s common config: %w", family.Name, err)
		}

		metrics.RecordMutation(family.Name, "import")
		s.notifier.Broadcast(family.Name, origin)
	}

	if bundle.SkillSettings.CentralRepoPath != "" {
		if err := s.skills.RestoreSettings(ctx, bundle.SkillSettings); err != nil {
			return fmt.Errorf("failed to import skill settings: %w", err)
		}
		s.notifier.Broadcast("", origin)
	}
	return nil
}

// includesID reports whether id passes the include filter. An empty filter
// admits every id.
func includesID(include []string, id string) bool {
	if len(include) == 0 {
		return true
	}
	for _, pattern := range include {
		if wildcard.Match(pattern, id) {
			return true
		}
	}
	return false
}

// encryptWithPassphrase encrypts data using a passphrase-derived key. The
// returned blob is salt followed by the GCM nonce and ciphertext.
func encryptWithPassphrase(plaintext []byte, passphrase string) ([]byte, error) {
	salt := make([]byte, saltLength)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, err
	}

	key := pbkdf2.Key([]byte(passphrase), salt, pbkdf2Iterations, keyLength, sha256.New)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}

	ciphertext := gcm.Seal(nonce, nonce, plaintext, nil)

	result := make([]byte, len(salt)+len(ciphertext))
	copy(result, salt)
	copy(result[len(salt):], ciphertext)
	return result, nil
}

// decryptWithPassphrase decrypts data produced by encryptWithPassphrase.
func decryptWithPassphrase(ciphertext []byte, passphrase string) ([]byte, error) {
	if len(ciphertext) < saltLength {
		return nil, fmt.Errorf("ciphertext too short")
	}

	salt := ciphertext[:saltLength]
	ciphertext = ciphertext[saltLength:]

	key := pbkdf2.Key([]byte(passphrase), salt, pbkdf2Iterations, keyLength, sha256.New)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	if len(ciphertext) < gcm.NonceSize() {
		return nil, fmt.Errorf("ciphertext too short")
	}

	nonce := ciphertext[:gcm.NonceSize()]
	return gcm.Open(nil, nonce, ciphertext[gcm.NonceSize():], nil)
}
