package platform

import (
	"errors"
	"testing"
)

func TestOpenFolderCommandsForOS(t *testing.T) {
	linux, err := openFolderCommandsForOS("linux", "/tmp/flash")
	if err != nil {
		t.Fatalf("unexpected linux commands error: %v", err)
	}
	if len(linux) != 2 || linux[0].name != "xdg-open" || linux[0].args[0] != "/tmp/flash" {
		t.Fatalf("unexpected linux commands: %+v", linux)
	}

	windows, err := openFolderCommandsForOS("windows", `C:\flash`)
	if err != nil {
		t.Fatalf("unexpected windows commands error: %v", err)
	}
	if windows[0].name != "explorer" {
		t.Fatalf("unexpected windows command: %q", windows[0].name)
	}
}

func TestOpenFolderCommandsRejectUnsupported(t *testing.T) {
	if _, err := openFolderCommandsForOS("plan9", "/tmp"); err == nil {
		t.Fatalf("expected unsupported os error")
	}
	if _, err := openFolderCommandsForOS("linux", " "); err == nil {
		t.Fatalf("expected empty path error")
	}
}

func TestOpenFolderFallsBack(t *testing.T) {
	var attempts []string
	start := func(name string, args ...string) error {
		attempts = append(attempts, name)
		if len(attempts) == 1 {
			return errors.New("xdg-open missing")
		}

		return nil
	}

	if err := openFolderForOS("linux", "/tmp/flash", start); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(attempts) != 2 || attempts[1] != "gio" {
		t.Fatalf("expected fallback to gio, got %v", attempts)
	}
}

func TestOpenFolderAllFail(t *testing.T) {
	a := systemActions{goos: "darwin", start: func(string, ...string) error { return errors.New("fail") }}
	if err := a.OpenFolder("/tmp"); err == nil {
		t.Fatalf("expected aggregate error")
	}
}
