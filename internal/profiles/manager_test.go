package profiles

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/switchyard-project/switchyard/internal/events"
	"github.com/switchyard-project/switchyard/internal/store"
)

// newTestManager builds a Manager over a temp store with destination
// directories redirected under a temp home.
func newTestManager(t *testing.T) (*Manager, string) {
	t.Helper()

	root := t.TempDir()
	db, err := store.Open(filepath.Join(root, "data", store.FileName))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Errorf("close store: %v", err)
		}
	})

	notifier := events.NewNotifier()
	t.Cleanup(notifier.Close)

	m := NewManager(db, notifier)
	home := filepath.Join(root, "home")
	m.configDirFn = func(dirName string) (string, error) {
		return filepath.Join(home, dirName), nil
	}
	return m, home
}

func codexFamily(t *testing.T) Family {
	t.Helper()
	family, ok := FamilyByName("codex")
	if !ok {
		t.Fatal("codex family not registered")
	}
	return family
}

func mustCreate(t *testing.T, m *Manager, family Family, input CreateInput) Profile {
	t.Helper()
	profile, err := m.Create(context.Background(), family, input, events.OriginWindow)
	if err != nil {
		t.Fatalf("create %s: %v", input.ID, err)
	}
	return profile
}

func TestCreateAndList(t *testing.T) {
	m, _ := newTestManager(t)
	family := codexFamily(t)
	ctx := context.Background()

	mustCreate(t, m, family, CreateInput{ID: "beta", Name: "Beta", SortIndex: 1})
	mustCreate(t, m, family, CreateInput{ID: "alpha", Name: "Alpha", SortIndex: 0})

	got := m.List(ctx, family)
	if len(got) != 2 {
		t.Fatalf("len(List) = %d, want 2", len(got))
	}
	if got[0].ID != "alpha" || got[1].ID != "beta" {
		t.Errorf("list order = [%s %s], want [alpha beta]", got[0].ID, got[1].ID)
	}
	if got[0].CreatedAt == "" || got[0].UpdatedAt == "" {
		t.Error("timestamps not stamped on create")
	}
}

func TestCreateForcesUnapplied(t *testing.T) {
	m, _ := newTestManager(t)
	family := codexFamily(t)

	profile := mustCreate(t, m, family, CreateInput{ID: "sneaky", Name: "Sneaky"})
	if profile.Applied {
		t.Error("created profile is applied; applied must start false")
	}

	stored, err := m.Get(context.Background(), family, "sneaky")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if stored.Applied {
		t.Error("stored profile is applied; applied must start false")
	}
}

func TestCreateDuplicateID(t *testing.T) {
	m, _ := newTestManager(t)
	family := codexFamily(t)

	mustCreate(t, m, family, CreateInput{ID: "dup", Name: "First"})
	_, err := m.Create(context.Background(), family, CreateInput{ID: "dup", Name: "Second"}, events.OriginWindow)
	if !errors.Is(err, ErrDuplicateID) {
		t.Fatalf("expected ErrDuplicateID, got %v", err)
	}
}

func TestCreateRejectsBadIDs(t *testing.T) {
	m, _ := newTestManager(t)
	family := codexFamily(t)
	ctx := context.Background()

	for _, id := range []string{"", ".", "..", "has space", "slash/id", strings.Repeat("x", 65)} {
		if _, err := m.Create(ctx, family, CreateInput{ID: id}, events.OriginWindow); !errors.Is(err, ErrInvalidID) {
			t.Errorf("Create(%q) error = %v, want ErrInvalidID", id, err)
		}
	}
}

func TestCreateDefaultsNameToID(t *testing.T) {
	m, _ := newTestManager(t)
	family := codexFamily(t)

	profile := mustCreate(t, m, family, CreateInput{ID: "unnamed"})
	if profile.Name != "unnamed" {
		t.Errorf("Name = %q, want id fallback", profile.Name)
	}
}

func TestUpdatePreservesCreatedAt(t *testing.T) {
	m, _ := newTestManager(t)
	family := codexFamily(t)
	ctx := context.Background()

	m.nowFn = func() time.Time { return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC) }
	created := mustCreate(t, m, family, CreateInput{ID: "keep", Name: "Keep"})

	m.nowFn = func() time.Time { return time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC) }
	created.Name = "Renamed"
	created.CreatedAt = "" // callers may omit it; the stored value wins
	updated, err := m.Update(ctx, family, created, events.OriginWindow)
	if err != nil {
		t.Fatalf("update: %v", err)
	}

	if updated.CreatedAt != "2024-01-01T00:00:00Z" {
		t.Errorf("CreatedAt = %q, want original", updated.CreatedAt)
	}
	if updated.UpdatedAt != "2024-06-01T00:00:00Z" {
		t.Errorf("UpdatedAt = %q, want refreshed", updated.UpdatedAt)
	}

	stored, err := m.Get(ctx, family, "keep")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if stored.Name != "Renamed" || stored.CreatedAt != "2024-01-01T00:00:00Z" {
		t.Errorf("stored = %+v", stored)
	}
}

func TestUpdateMissingProfile(t *testing.T) {
	m, _ := newTestManager(t)
	family := codexFamily(t)

	_, err := m.Update(context.Background(), family, Profile{ID: "ghost"}, events.OriginWindow)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestUpdateAppliedProfileRegeneratesFiles(t *testing.T) {
	m, home := newTestManager(t)
	family := codexFamily(t)
	ctx := context.Background()

	mustCreate(t, m, family, CreateInput{
		ID:       "active",
		Name:     "Active",
		Settings: `{"auth":{"key":"v1"},"config":"model = \"one\""}`,
	})
	if err := m.Apply(ctx, family, "active", events.OriginWindow); err != nil {
		t.Fatalf("apply: %v", err)
	}

	updated, err := m.Get(ctx, family, "active")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	updated.Settings = `{"auth":{"key":"v2"},"config":"model = \"two\""}`
	if _, err := m.Update(ctx, family, updated, events.OriginWindow); err != nil {
		t.Fatalf("update: %v", err)
	}

	config, err := os.ReadFile(filepath.Join(home, family.DirName, ConfigFileName))
	if err != nil {
		t.Fatalf("read config.toml: %v", err)
	}
	if string(config) != "model = \"two\"" {
		t.Errorf("config.toml = %q, want regenerated content", config)
	}
}

func TestDeleteRemovesProfile(t *testing.T) {
	m, _ := newTestManager(t)
	family := codexFamily(t)
	ctx := context.Background()

	mustCreate(t, m, family, CreateInput{ID: "doomed"})
	if err := m.Delete(ctx, family, "doomed", events.OriginWindow); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := m.Get(ctx, family, "doomed"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}

	// Absent ids delete without error.
	if err := m.Delete(ctx, family, "doomed", events.OriginWindow); err != nil {
		t.Fatalf("second delete: %v", err)
	}
}

func TestReorderAssignsPositionIndices(t *testing.T) {
	m, _ := newTestManager(t)
	family := codexFamily(t)
	ctx := context.Background()

	mustCreate(t, m, family, CreateInput{ID: "a", SortIndex: 0})
	mustCreate(t, m, family, CreateInput{ID: "b", SortIndex: 1})
	mustCreate(t, m, family, CreateInput{ID: "c", SortIndex: 2})

	if err := m.Reorder(ctx, family, []string{"b", "a", "c"}, events.OriginWindow); err != nil {
		t.Fatalf("reorder: %v", err)
	}

	got := m.List(ctx, family)
	wantOrder := []string{"b", "a", "c"}
	for i, profile := range got {
		if profile.ID != wantOrder[i] {
			t.Errorf("list[%d] = %s, want %s", i, profile.ID, wantOrder[i])
		}
		if profile.SortIndex != i {
			t.Errorf("%s SortIndex = %d, want %d", profile.ID, profile.SortIndex, i)
		}
	}
}

func TestReorderSkipsUnknownIDs(t *testing.T) {
	m, _ := newTestManager(t)
	family := codexFamily(t)
	ctx := context.Background()

	mustCreate(t, m, family, CreateInput{ID: "only", SortIndex: 5})

	if err := m.Reorder(ctx, family, []string{"missing", "only"}, events.OriginWindow); err != nil {
		t.Fatalf("reorder with unknown id: %v", err)
	}

	got := m.List(ctx, family)
	if len(got) != 1 || got[0].SortIndex != 1 {
		t.Fatalf("list = %+v, want [only] at index 1", got)
	}
}

func TestListDegradesToEmptyOnBadRecord(t *testing.T) {
	m, _ := newTestManager(t)
	family := codexFamily(t)
	ctx := context.Background()

	mustCreate(t, m, family, CreateInput{ID: "good"})

	// Plant a record the decoder rejects alongside the good one.
	err := m.db.Do(ctx, func(sess *store.Session) error {
		return sess.Put(family.ProfilesCollection(), "bad", []byte(`{"name": "no id"}`))
	})
	if err != nil {
		t.Fatalf("plant bad record: %v", err)
	}

	if got := m.List(ctx, family); len(got) != 0 {
		t.Errorf("List = %+v, want empty list when the batch fails to decode", got)
	}
}

func TestCommonConfigRoundTrip(t *testing.T) {
	m, _ := newTestManager(t)
	family := codexFamily(t)
	ctx := context.Background()

	if got := m.CommonConfig(ctx, family); got != "" {
		t.Errorf("CommonConfig before save = %q, want empty", got)
	}

	if err := m.SaveCommonConfig(ctx, family, "region = \"us\"\n", events.OriginWindow); err != nil {
		t.Fatalf("save common config: %v", err)
	}
	if got := m.CommonConfig(ctx, family); got != "region = \"us\"\n" {
		t.Errorf("CommonConfig = %q", got)
	}

	// Wholesale replace, not patch.
	if err := m.SaveCommonConfig(ctx, family, "timeout = 5\n", events.OriginWindow); err != nil {
		t.Fatalf("replace common config: %v", err)
	}
	if got := m.CommonConfig(ctx, family); got != "timeout = 5\n" {
		t.Errorf("CommonConfig after replace = %q", got)
	}
}

func TestSaveCommonConfigRejectsMalformedTOML(t *testing.T) {
	m, _ := newTestManager(t)
	family := codexFamily(t)

	err := m.SaveCommonConfig(context.Background(), family, "not toml ===", events.OriginWindow)
	if err == nil {
		t.Fatal("expected parse error for malformed common config")
	}
}

func TestSaveCommonConfigRegeneratesAppliedFiles(t *testing.T) {
	m, home := newTestManager(t)
	family := codexFamily(t)
	ctx := context.Background()

	mustCreate(t, m, family, CreateInput{
		ID:       "active",
		Settings: `{"auth":{"key":"abc"},"config":"model = \"x\""}`,
	})
	if err := m.Apply(ctx, family, "active", events.OriginWindow); err != nil {
		t.Fatalf("apply: %v", err)
	}

	if err := m.SaveCommonConfig(ctx, family, "region = \"eu\"\n", events.OriginWindow); err != nil {
		t.Fatalf("save common config: %v", err)
	}

	config, err := os.ReadFile(filepath.Join(home, family.DirName, ConfigFileName))
	if err != nil {
		t.Fatalf("read config.toml: %v", err)
	}
	var doc map[string]any
	if err := toml.Unmarshal(config, &doc); err != nil {
		t.Fatalf("parse merged config.toml: %v", err)
	}
	if doc["region"] != "eu" {
		t.Errorf("merged region = %v, want eu", doc["region"])
	}
	if doc["model"] != "x" {
		t.Errorf("merged model = %v, want x", doc["model"])
	}
}
