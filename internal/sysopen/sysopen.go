// Package sysopen launches platform helpers for opening URLs and revealing
// directories in the desktop environment.
package sysopen

import (
	"fmt"
	"os"
	"os/exec"
	"runtime"
)

// startFn launches the helper without waiting for it; swapped in tests.
var startFn = func(name string, args ...string) error {
	cmd := exec.Command(name, args...)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start %s: %w", name, err)
	}
	return nil
}

// OpenURL opens the URL in the default browser. Supports Linux, macOS, and
// Windows.
func OpenURL(url string) error {
	argv, err := openArgs(runtime.GOOS, url)
	if err != nil {
		return err
	}
	return startFn(argv[0], argv[1:]...)
}

// RevealDir opens the directory in the platform file manager. The directory
// must exist.
func RevealDir(dir string) error {
	if _, err := os.Stat(dir); err != nil {
		return fmt.Errorf("reveal %s: %w", dir, err)
	}
	argv, err := revealArgs(runtime.GOOS, dir)
	if err != nil {
		return err
	}
	return startFn(argv[0], argv[1:]...)
}

func openArgs(goos, url string) ([]string, error) {
	switch goos {
	case "linux":
		return []string{"xdg-open", url}, nil
	case "darwin":
		return []string{"open", url}, nil
	case "windows":
		return []string{"cmd", "/c", "start", url}, nil
	default:
		return nil, fmt.Errorf("unsupported platform: %s", goos)
	}
}

func revealArgs(goos, dir string) ([]string, error) {
	switch goos {
	case "linux":
		return []string{"xdg-open", dir}, nil
	case "darwin":
		return []string{"open", dir}, nil
	case "windows":
		return []string{"explorer", dir}, nil
	default:
		return nil, fmt.Errorf("unsupported platform: %s", goos)
	}
}
