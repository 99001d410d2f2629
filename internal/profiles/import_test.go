package profiles

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func seedLegacyFiles(t *testing.T, home string, family Family, auth, config string) {
	t.Helper()
	dir := filepath.Join(home, family.DirName)
	if err := os.MkdirAll(dir, 0700); err != nil {
		t.Fatalf("mkdir %s: %v", dir, err)
	}
	if err := os.WriteFile(filepath.Join(dir, AuthFileName), []byte(auth), 0600); err != nil {
		t.Fatalf("write legacy auth: %v", err)
	}
	if config != "" {
		if err := os.WriteFile(filepath.Join(dir, ConfigFileName), []byte(config), 0600); err != nil {
			t.Fatalf("write legacy config: %v", err)
		}
	}
}

func TestImportLegacyCreatesSyntheticProfile(t *testing.T) {
	m, home := newTestManager(t)
	family := codexFamily(t)
	ctx := context.Background()

	seedLegacyFiles(t, home, family, `{"key":"from-disk"}`, "model = \"legacy\"\n")

	m.ImportLegacy(ctx)

	got := m.List(ctx, family)
	if len(got) != 1 {
		t.Fatalf("len(List) = %d, want exactly one imported profile", len(got))
	}
	profile := got[0]
	if profile.ID != importedProfileID {
		t.Errorf("ID = %q, want %q", profile.ID, importedProfileID)
	}
	if !profile.Applied {
		t.Error("imported profile must be applied")
	}
	if profile.SortIndex != 0 {
		t.Errorf("SortIndex = %d, want 0", profile.SortIndex)
	}

	var settings struct {
		Auth   map[string]any `json:"auth"`
		Config string         `json:"config"`
	}
	if err := json.Unmarshal([]byte(profile.Settings), &settings); err != nil {
		t.Fatalf("parse imported settings: %v", err)
	}
	if settings.Auth["key"] != "from-disk" {
		t.Errorf("imported auth = %v", settings.Auth)
	}
	if settings.Config != "model = \"legacy\"\n" {
		t.Errorf("imported config = %q", settings.Config)
	}
}

func TestImportLegacySecondRunIsNoOp(t *testing.T) {
	m, home := newTestManager(t)
	family := codexFamily(t)
	ctx := context.Background()

	seedLegacyFiles(t, home, family, `{"key":"abc"}`, "")

	m.ImportLegacy(ctx)
	first := m.List(ctx, family)

	m.ImportLegacy(ctx)
	second := m.List(ctx, family)

	if len(first) != 1 || len(second) != 1 {
		t.Fatalf("profile counts = %d then %d, want 1 and 1", len(first), len(second))
	}
	if first[0].CreatedAt != second[0].CreatedAt {
		t.Error("second import touched the existing profile")
	}
}

func TestImportLegacySkipsWhenNoFilesExist(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	m.ImportLegacy(ctx)

	for _, family := range Families() {
		if got := m.List(ctx, family); len(got) != 0 {
			t.Errorf("family %s imported %d profiles with no legacy files", family.Name, len(got))
		}
	}
}

func TestImportLegacySkipsNonEmptyCollections(t *testing.T) {
	m, home := newTestManager(t)
	family := codexFamily(t)
	ctx := context.Background()

	mustCreate(t, m, family, CreateInput{ID: "already-here"})
	seedLegacyFiles(t, home, family, `{"key":"abc"}`, "")

	m.ImportLegacy(ctx)

	got := m.List(ctx, family)
	if len(got) != 1 || got[0].ID != "already-here" {
		t.Errorf("list = %+v, want only the pre-existing profile", got)
	}
}

func TestImportLegacyDeletingAllProfilesRetriggersImport(t *testing.T) {
	m, home := newTestManager(t)
	family := codexFamily(t)
	ctx := context.Background()

	seedLegacyFiles(t, home, family, `{"key":"abc"}`, "")
	m.ImportLegacy(ctx)

	if err := m.Delete(ctx, family, importedProfileID, "window"); err != nil {
		t.Fatalf("delete: %v", err)
	}

	m.ImportLegacy(ctx)
	got := m.List(ctx, family)
	if len(got) != 1 || got[0].ID != importedProfileID {
		t.Errorf("list after re-import = %+v", got)
	}
}
