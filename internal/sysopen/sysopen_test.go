package sysopen

import (
	"path/filepath"
	"reflect"
	"runtime"
	"testing"
)

func TestOpenArgsPerPlatform(t *testing.T) {
	tests := []struct {
		goos string
		want []string
	}{
		{"linux", []string{"xdg-open", "http://localhost:7617"}},
		{"darwin", []string{"open", "http://localhost:7617"}},
		{"windows", []string{"cmd", "/c", "start", "http://localhost:7617"}},
	}
	for _, tc := range tests {
		got, err := openArgs(tc.goos, "http://localhost:7617")
		if err != nil {
			t.Errorf("openArgs(%s): %v", tc.goos, err)
			continue
		}
		if !reflect.DeepEqual(got, tc.want) {
			t.Errorf("openArgs(%s) = %v, want %v", tc.goos, got, tc.want)
		}
	}

	if _, err := openArgs("plan9", "http://x"); err == nil {
		t.Error("openArgs(plan9) succeeded, want unsupported platform error")
	}
}

func TestRevealArgsPerPlatform(t *testing.T) {
	if got, err := revealArgs("windows", `C:\data`); err != nil || got[0] != "explorer" {
		t.Errorf("revealArgs(windows) = %v, %v", got, err)
	}
	if got, err := revealArgs("linux", "/data"); err != nil || got[0] != "xdg-open" {
		t.Errorf("revealArgs(linux) = %v, %v", got, err)
	}
	if _, err := revealArgs("plan9", "/data"); err == nil {
		t.Error("revealArgs(plan9) succeeded, want unsupported platform error")
	}
}

func TestRevealDirRequiresExistingDirectory(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "absent")
	if err := RevealDir(missing); err == nil {
		t.Error("RevealDir on a missing directory succeeded")
	}
}

func TestOpenURLLaunchesHelper(t *testing.T) {
	if runtime.GOOS != "linux" && runtime.GOOS != "darwin" && runtime.GOOS != "windows" {
		t.Skipf("unsupported platform %s", runtime.GOOS)
	}

	var gotName string
	var gotArgs []string
	origStart := startFn
	startFn = func(name string, args ...string) error {
		gotName = name
		gotArgs = args
		return nil
	}
	t.Cleanup(func() { startFn = origStart })

	if err := OpenURL("http://localhost:7617"); err != nil {
		t.Fatalf("OpenURL: %v", err)
	}
	if gotName == "" {
		t.Fatal("helper not launched")
	}
	if len(gotArgs) == 0 || gotArgs[len(gotArgs)-1] != "http://localhost:7617" {
		t.Errorf("helper args = %v, want URL as final argument", gotArgs)
	}
}
