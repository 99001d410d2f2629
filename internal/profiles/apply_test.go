package profiles

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/switchyard-project/switchyard/internal/events"
	"github.com/switchyard-project/switchyard/internal/merge"
)

func appliedIDs(profiles []Profile) []string {
	var ids []string
	for _, p := range profiles {
		if p.Applied {
			ids = append(ids, p.ID)
		}
	}
	return ids
}

func TestApplyWritesFilesThenFlipsFlag(t *testing.T) {
	m, home := newTestManager(t)
	family := codexFamily(t)
	ctx := context.Background()

	mustCreate(t, m, family, CreateInput{
		ID:       "anthropic-default",
		Name:     "Anthropic Default",
		Settings: `{"auth":{"key":"abc"},"config":"model=\"x\""}`,
	})

	if err := m.Apply(ctx, family, "anthropic-default", events.OriginWindow); err != nil {
		t.Fatalf("apply: %v", err)
	}

	authData, err := os.ReadFile(filepath.Join(home, family.DirName, AuthFileName))
	if err != nil {
		t.Fatalf("read auth.json: %v", err)
	}
	var auth map[string]any
	if err := json.Unmarshal(authData, &auth); err != nil {
		t.Fatalf("parse auth.json: %v", err)
	}
	if !reflect.DeepEqual(auth, map[string]any{"key": "abc"}) {
		t.Errorf("auth.json = %v, want {key: abc}", auth)
	}

	configData, err := os.ReadFile(filepath.Join(home, family.DirName, ConfigFileName))
	if err != nil {
		t.Fatalf("read config.toml: %v", err)
	}
	if string(configData) != `model="x"` {
		t.Errorf("config.toml = %q, want profile text verbatim for an empty common layer", configData)
	}

	got := m.List(ctx, family)
	if ids := appliedIDs(got); len(ids) != 1 || ids[0] != "anthropic-default" {
		t.Errorf("applied ids = %v, want [anthropic-default]", ids)
	}
}

func TestApplyKeepsAtMostOneApplied(t *testing.T) {
	m, _ := newTestManager(t)
	family := codexFamily(t)
	ctx := context.Background()

	for _, id := range []string{"a", "b", "c"} {
		mustCreate(t, m, family, CreateInput{ID: id})
	}

	for _, id := range []string{"a", "b", "c", "a"} {
		if err := m.Apply(ctx, family, id, events.OriginWindow); err != nil {
			t.Fatalf("apply %s: %v", id, err)
		}
		ids := appliedIDs(m.List(ctx, family))
		if len(ids) != 1 || ids[0] != id {
			t.Fatalf("after apply %s applied ids = %v", id, ids)
		}
	}
}

func TestSelectFlipsFlagWithoutFiles(t *testing.T) {
	m, home := newTestManager(t)
	family := codexFamily(t)
	ctx := context.Background()

	mustCreate(t, m, family, CreateInput{
		ID:       "pick-me",
		Settings: `{"auth":{"key":"abc"},"config":""}`,
	})

	if err := m.Select(ctx, family, "pick-me", events.OriginWindow); err != nil {
		t.Fatalf("select: %v", err)
	}

	if ids := appliedIDs(m.List(ctx, family)); len(ids) != 1 || ids[0] != "pick-me" {
		t.Errorf("applied ids = %v, want [pick-me]", ids)
	}
	if _, err := os.Stat(filepath.Join(home, family.DirName, AuthFileName)); !os.IsNotExist(err) {
		t.Errorf("select must not write destination files, stat err = %v", err)
	}
}

func TestSelectMissingProfile(t *testing.T) {
	m, _ := newTestManager(t)
	family := codexFamily(t)
	ctx := context.Background()

	mustCreate(t, m, family, CreateInput{ID: "existing"})
	if err := m.Apply(ctx, family, "existing", events.OriginWindow); err != nil {
		t.Fatalf("apply: %v", err)
	}

	if err := m.Select(ctx, family, "ghost", events.OriginWindow); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	// A failed select must not have cleared the applied flag.
	if ids := appliedIDs(m.List(ctx, family)); len(ids) != 1 || ids[0] != "existing" {
		t.Errorf("applied ids after failed select = %v, want [existing]", ids)
	}
}

func TestApplyMissingProfile(t *testing.T) {
	m, _ := newTestManager(t)
	family := codexFamily(t)

	err := m.Apply(context.Background(), family, "ghost", events.OriginWindow)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestApplyFileFailureDoesNotFlip(t *testing.T) {
	m, _ := newTestManager(t)
	family := codexFamily(t)
	ctx := context.Background()

	mustCreate(t, m, family, CreateInput{ID: "stable"})
	mustCreate(t, m, family, CreateInput{ID: "doomed"})
	if err := m.Apply(ctx, family, "stable", events.OriginWindow); err != nil {
		t.Fatalf("apply stable: %v", err)
	}

	// Redirect the config dir under a regular file so directory creation fails.
	blocker := filepath.Join(t.TempDir(), "blocker")
	if err := os.WriteFile(blocker, []byte("x"), 0600); err != nil {
		t.Fatalf("write blocker: %v", err)
	}
	m.configDirFn = func(dirName string) (string, error) {
		return filepath.Join(blocker, dirName), nil
	}

	if err := m.Apply(ctx, family, "doomed", events.OriginWindow); err == nil {
		t.Fatal("expected apply to fail on file write")
	}

	if ids := appliedIDs(m.List(ctx, family)); len(ids) != 1 || ids[0] != "stable" {
		t.Errorf("applied ids = %v, want [stable]; flags must not flip when the write fails", ids)
	}
}

func TestApplyLayersCommonUnderProfile(t *testing.T) {
	m, home := newTestManager(t)
	family := codexFamily(t)
	ctx := context.Background()

	if err := m.SaveCommonConfig(ctx, family, "region = \"us\"\n", events.OriginWindow); err != nil {
		t.Fatalf("save common: %v", err)
	}
	mustCreate(t, m, family, CreateInput{
		ID:       "eu-profile",
		Settings: `{"auth":{},"config":"region = \"eu\"\nmodel = \"y\""}`,
	})

	if err := m.Apply(ctx, family, "eu-profile", events.OriginWindow); err != nil {
		t.Fatalf("apply: %v", err)
	}

	configData, err := os.ReadFile(filepath.Join(home, family.DirName, ConfigFileName))
	if err != nil {
		t.Fatalf("read config.toml: %v", err)
	}
	var doc map[string]any
	if err := toml.Unmarshal(configData, &doc); err != nil {
		t.Fatalf("parse config.toml: %v", err)
	}
	if doc["region"] != "eu" {
		t.Errorf("region = %v, want profile override eu", doc["region"])
	}
	if doc["model"] != "y" {
		t.Errorf("model = %v, want y", doc["model"])
	}
}

func TestApplyMalformedSettingsPayload(t *testing.T) {
	m, _ := newTestManager(t)
	family := codexFamily(t)
	ctx := context.Background()

	mustCreate(t, m, family, CreateInput{ID: "broken", Settings: `{"auth": not-json`})

	err := m.Apply(ctx, family, "broken", events.OriginWindow)
	var parseErr *merge.ParseError
	if !errors.As(err, &parseErr) {
		t.Fatalf("expected ParseError, got %v", err)
	}
	if ids := appliedIDs(m.List(ctx, family)); len(ids) != 0 {
		t.Errorf("applied ids = %v, want none after failed apply", ids)
	}
}

func TestApplyPrunesEmptyAuthValues(t *testing.T) {
	m, home := newTestManager(t)
	family := codexFamily(t)
	ctx := context.Background()

	mustCreate(t, m, family, CreateInput{
		ID:       "pruned",
		Settings: `{"auth":{"key":"abc","empty":{},"dropped":null,"nested":{"inner":{}}},"config":""}`,
	})
	if err := m.Apply(ctx, family, "pruned", events.OriginWindow); err != nil {
		t.Fatalf("apply: %v", err)
	}

	authData, err := os.ReadFile(filepath.Join(home, family.DirName, AuthFileName))
	if err != nil {
		t.Fatalf("read auth.json: %v", err)
	}
	var auth map[string]any
	if err := json.Unmarshal(authData, &auth); err != nil {
		t.Fatalf("parse auth.json: %v", err)
	}
	if !reflect.DeepEqual(auth, map[string]any{"key": "abc"}) {
		t.Errorf("auth.json = %v, want empty values pruned", auth)
	}
}

func TestFamiliesApplyIndependently(t *testing.T) {
	m, _ := newTestManager(t)
	codex := codexFamily(t)
	claude, ok := FamilyByName("claude")
	if !ok {
		t.Fatal("claude family not registered")
	}
	ctx := context.Background()

	mustCreate(t, m, codex, CreateInput{ID: "shared-id"})
	mustCreate(t, m, claude, CreateInput{ID: "shared-id"})

	if err := m.Apply(ctx, codex, "shared-id", events.OriginWindow); err != nil {
		t.Fatalf("apply codex: %v", err)
	}

	if ids := appliedIDs(m.List(ctx, claude)); len(ids) != 0 {
		t.Errorf("claude applied ids = %v, want none; families are independent", ids)
	}
}

func TestApplyBroadcastsOriginTaggedEvent(t *testing.T) {
	m, _ := newTestManager(t)
	family := codexFamily(t)
	ctx := context.Background()

	mustCreate(t, m, family, CreateInput{ID: "observed"})

	sub := m.notifier.Subscribe()
	defer sub.Unsubscribe()

	if err := m.Apply(ctx, family, "observed", events.OriginTray); err != nil {
		t.Fatalf("apply: %v", err)
	}

	select {
	case event := <-sub.C:
		if event.Family != family.Name || event.Origin != events.OriginTray {
			t.Errorf("event = %+v, want family %s origin tray", event, family.Name)
		}
	case <-time.After(time.Second):
		t.Fatal("no event broadcast after apply")
	}

	select {
	case event := <-sub.C:
		t.Fatalf("unexpected second event %+v; one mutation broadcasts one event", event)
	default:
	}
}

func TestApplyBlankSettingsWritesEmptyFiles(t *testing.T) {
	m, home := newTestManager(t)
	family := codexFamily(t)
	ctx := context.Background()

	mustCreate(t, m, family, CreateInput{ID: "blank"})
	if err := m.Apply(ctx, family, "blank", events.OriginWindow); err != nil {
		t.Fatalf("apply: %v", err)
	}

	authData, err := os.ReadFile(filepath.Join(home, family.DirName, AuthFileName))
	if err != nil {
		t.Fatalf("read auth.json: %v", err)
	}
	if string(authData) != "{}\n" {
		t.Errorf("auth.json = %q, want empty object", authData)
	}
	configData, err := os.ReadFile(filepath.Join(home, family.DirName, ConfigFileName))
	if err != nil {
		t.Fatalf("read config.toml: %v", err)
	}
	if string(configData) != "" {
		t.Errorf("config.toml = %q, want empty", configData)
	}
}
