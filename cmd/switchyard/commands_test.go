package main

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/switchyard-project/switchyard/internal/events"
	"github.com/switchyard-project/switchyard/internal/profiles"
	"github.com/switchyard-project/switchyard/internal/store"
)

func captureOutput(f func()) string {
	oldStdout := os.Stdout
	oldStderr := os.Stderr
	r, w, _ := os.Pipe()
	os.Stdout = w
	os.Stderr = w

	f()

	w.Close()
	os.Stdout = oldStdout
	os.Stderr = oldStderr

	var buf bytes.Buffer
	io.Copy(&buf, r)
	return buf.String()
}

func resetFlags() {
	exportFile = ""
	importFile = ""
	passphraseFlag = ""
	includePatterns = nil
	forceImport = false
}

// seedProfile writes one profile directly into the store file the commands
// will open.
func seedProfile(t *testing.T, dataDir, family, id string) {
	t.Helper()

	db, err := store.Open(filepath.Join(dataDir, store.FileName))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer db.Close()

	notifier := events.NewNotifier()
	defer notifier.Close()
	manager := profiles.NewManager(db, notifier)

	fam, ok := profiles.FamilyByName(family)
	if !ok {
		t.Fatalf("unknown family %q", family)
	}
	if _, err := manager.Create(context.Background(), fam, profiles.CreateInput{ID: id, Name: "Seed " + id}, events.OriginCLI); err != nil {
		t.Fatalf("seed profile: %v", err)
	}
}

func TestVersionCmd(t *testing.T) {
	oldVersion := Version
	oldBuildTime := BuildTime
	oldGitCommit := GitCommit
	defer func() {
		Version = oldVersion
		BuildTime = oldBuildTime
		GitCommit = oldGitCommit
	}()

	Version = "1.2.3"
	BuildTime = "2026-01-01"
	GitCommit = "abcdef"

	output := captureOutput(func() {
		rootCmd.SetArgs([]string{"version"})
		rootCmd.Execute()
	})

	assert.Contains(t, output, "Switchyard 1.2.3")
	assert.Contains(t, output, "Built: 2026-01-01")
	assert.Contains(t, output, "Commit: abcdef")

	BuildTime = "unknown"
	GitCommit = "unknown"
	output = captureOutput(func() {
		rootCmd.SetArgs([]string{"version"})
		rootCmd.Execute()
	})
	assert.Contains(t, output, "Switchyard 1.2.3")
	assert.NotContains(t, output, "Built:")
	assert.NotContains(t, output, "Commit:")
}

func TestListCmd(t *testing.T) {
	tempDir := t.TempDir()
	t.Setenv("SWITCHYARD_DATA_DIR", tempDir)
	seedProfile(t, tempDir, "codex", "work-laptop")

	output := captureOutput(func() {
		rootCmd.SetArgs([]string{"list"})
		rootCmd.Execute()
	})

	assert.Contains(t, output, "Codex")
	assert.Contains(t, output, "work-laptop")
	assert.Contains(t, output, "Claude Code")
	assert.Contains(t, output, "no profiles")
}

func TestApplyCmdUnknownFamily(t *testing.T) {
	t.Setenv("SWITCHYARD_DATA_DIR", t.TempDir())

	rootCmd.SetArgs([]string{"apply", "gemini", "work"})
	err := rootCmd.Execute()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "unknown family")
}

func TestApplyCmdMissingProfile(t *testing.T) {
	t.Setenv("SWITCHYARD_DATA_DIR", t.TempDir())

	rootCmd.SetArgs([]string{"apply", "codex", "ghost"})
	err := rootCmd.Execute()
	assert.Error(t, err)
}

func TestExportImportCmds(t *testing.T) {
	resetFlags()

	tempDir := t.TempDir()
	t.Setenv("SWITCHYARD_DATA_DIR", tempDir)
	t.Setenv("SWITCHYARD_PASSPHRASE", "testpass")
	seedProfile(t, tempDir, "codex", "work")

	outputFile := filepath.Join(tempDir, "backup.enc")
	rootCmd.SetArgs([]string{"export", "-o", outputFile})
	err := rootCmd.Execute()
	assert.NoError(t, err)

	info, err := os.Stat(outputFile)
	assert.NoError(t, err)
	assert.NotZero(t, info.Size())

	// Import the bundle into a fresh data directory.
	resetFlags()
	freshDir := t.TempDir()
	t.Setenv("SWITCHYARD_DATA_DIR", freshDir)

	rootCmd.SetArgs([]string{"import", "-i", outputFile, "--force"})
	err = rootCmd.Execute()
	assert.NoError(t, err)

	output := captureOutput(func() {
		rootCmd.SetArgs([]string{"list"})
		rootCmd.Execute()
	})
	assert.Contains(t, output, "work")
}

func TestImportCmdRequiresInputFile(t *testing.T) {
	resetFlags()
	t.Setenv("SWITCHYARD_DATA_DIR", t.TempDir())
	t.Setenv("SWITCHYARD_PASSPHRASE", "testpass")

	rootCmd.SetArgs([]string{"import", "--force"})
	err := rootCmd.Execute()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "import file is required")
}

func TestReadBoundedRegularFile(t *testing.T) {
	dir := t.TempDir()

	path := filepath.Join(dir, "small.txt")
	if err := os.WriteFile(path, []byte("payload"), 0o600); err != nil {
		t.Fatalf("write file: %v", err)
	}

	data, err := readBoundedRegularFile(path, 1024)
	assert.NoError(t, err)
	assert.Equal(t, "payload", string(data))

	_, err = readBoundedRegularFile(path, 3)
	assert.Error(t, err)

	_, err = readBoundedRegularFile(filepath.Join(dir, "missing"), 1024)
	assert.Error(t, err)

	_, err = readBoundedRegularFile(dir, 1024)
	assert.Error(t, err)
}

func TestGetPassphrasePrefersEnvThenFlag(t *testing.T) {
	resetFlags()

	t.Setenv("SWITCHYARD_PASSPHRASE", "from-env")
	passphraseFlag = "from-flag"
	assert.Equal(t, "from-env", getPassphrase("prompt: ", false))

	t.Setenv("SWITCHYARD_PASSPHRASE", "")
	os.Unsetenv("SWITCHYARD_PASSPHRASE")
	assert.Equal(t, "from-flag", getPassphrase("prompt: ", false))
}

func TestGetPassphraseInteractive(t *testing.T) {
	resetFlags()
	os.Unsetenv("SWITCHYARD_PASSPHRASE")

	oldReadPassword := readPassword
	defer func() { readPassword = oldReadPassword }()

	answers := []string{"secret", "secret"}
	readPassword = func(fd int) ([]byte, error) {
		next := answers[0]
		answers = answers[1:]
		return []byte(next), nil
	}

	output := captureOutput(func() {
		got := getPassphrase("Enter passphrase: ", true)
		assert.Equal(t, "secret", got)
	})
	assert.Contains(t, output, "Enter passphrase:")
	assert.Contains(t, output, "Confirm passphrase:")

	answers = []string{"one", "two"}
	got := captureOutput(func() {
		assert.Equal(t, "", getPassphrase("Enter passphrase: ", true))
	})
	assert.Contains(t, got, "Passphrases do not match")
}
