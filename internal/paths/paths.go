// Package paths resolves home-relative, application, and skill-repository
// paths. Stored skill paths may originate from a different OS than the one
// resolving them, so classification accepts any platform's absolute shape.
package paths

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrInvalidPath is returned when a path that must be non-empty is blank.
var ErrInvalidPath = errors.New("path is empty")

const dataDirEnv = "SWITCHYARD_DATA_DIR"

var (
	userHomeDirFn = os.UserHomeDir
	statFn        = os.Stat
)

// ExpandHome resolves a bare "~" or a "~/" prefix against the current user's
// home directory. Any other input passes through unchanged.
func ExpandHome(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", ErrInvalidPath
	}
	if path == "~" {
		home, err := userHomeDirFn()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		return home, nil
	}
	if strings.HasPrefix(path, "~/") {
		home, err := userHomeDirFn()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		return filepath.Join(home, path[2:]), nil
	}
	return path, nil
}

// ToRelative converts an absolute path under centralDir into a relative,
// forward-slash form suitable for storage. Paths outside centralDir (for
// example imported from another machine) collapse to their final component.
func ToRelative(absolute, centralDir string) string {
	rel, err := filepath.Rel(filepath.Clean(centralDir), filepath.Clean(absolute))
	if err == nil && rel != "." && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return filepath.ToSlash(rel)
	}
	return lastSegment(absolute)
}

// ResolveStored maps a stored skill path back to a local absolute path.
// A native absolute path that exists locally is used as-is. Anything else
// shaped like an absolute path (any platform) is legacy data from a foreign
// machine; only its final segment is re-anchored under centralDir. Relative
// paths join under centralDir.
func ResolveStored(stored, centralDir string) string {
	if filepath.IsAbs(stored) {
		if _, err := statFn(stored); err == nil {
			return stored
		}
	}
	if isAnyPlatformAbsolute(stored) {
		return filepath.Join(centralDir, lastSegment(stored))
	}
	return filepath.Join(centralDir, filepath.FromSlash(stored))
}

// DataDir returns the application data directory: the SWITCHYARD_DATA_DIR
// environment override if set, otherwise the platform user config directory
// plus "switchyard".
func DataDir() (string, error) {
	if dir := strings.TrimSpace(os.Getenv(dataDirEnv)); dir != "" {
		return filepath.Clean(dir), nil
	}
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("resolve user config directory: %w", err)
	}
	return filepath.Join(base, "switchyard"), nil
}

// FamilyConfigDir returns the destination config directory for a tool
// family's dot-directory name, e.g. ".codex" under the home directory.
// The directory is not created; the apply path creates it on first write.
func FamilyConfigDir(dirName string) (string, error) {
	home, err := userHomeDirFn()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return filepath.Join(home, dirName), nil
}

// isAnyPlatformAbsolute reports whether path matches the absolute-path shape
// of any supported platform: a leading "/" or a Windows drive prefix.
func isAnyPlatformAbsolute(path string) bool {
	if strings.HasPrefix(path, "/") {
		return true
	}
	if len(path) >= 3 {
		drive := path[0]
		isLetter := (drive >= 'a' && drive <= 'z') || (drive >= 'A' && drive <= 'Z')
		if isLetter && path[1] == ':' && (path[2] == '\\' || path[2] == '/') {
			return true
		}
	}
	return false
}

// lastSegment returns the final path component, splitting on either
// separator so foreign-platform paths decompose correctly.
func lastSegment(path string) string {
	trimmed := strings.TrimRight(path, `/\`)
	if idx := strings.LastIndexAny(trimmed, `/\`); idx >= 0 {
		return trimmed[idx+1:]
	}
	return trimmed
}
