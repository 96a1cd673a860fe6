package app

import (
	"os"
	"path/filepath"
	"testing"
)

func TestResolvePaths_ResolvesConfigAndDataDirectories(t *testing.T) {
	configHome := filepath.Join(t.TempDir(), "cfg")
	cacheHome := filepath.Join(t.TempDir(), "cache")
	t.Setenv("XDG_CONFIG_HOME", configHome)
	t.Setenv("XDG_CACHE_HOME", cacheHome)

	paths, err := ResolvePaths()
	if err != nil {
		t.Fatalf("resolve paths: %v", err)
	}

	if paths.RootDir != filepath.Join(configHome, Name) {
		t.Fatalf("unexpected root dir: %q", paths.RootDir)
	}
	if paths.DataDir != filepath.Join(cacheHome, Name) {
		t.Fatalf("unexpected data dir: %q", paths.DataDir)
	}
	if paths.DBFile != filepath.Join(cacheHome, Name, DBFilename) {
		t.Fatalf("unexpected db file: %q", paths.DBFile)
	}
	for _, dir := range []string{paths.FlashDir, paths.DumpsDir} {
		if _, err := os.Stat(dir); err != nil {
			t.Fatalf("expected %s to exist: %v", dir, err)
		}
	}
}

func TestPathsStorageRoot(t *testing.T) {
	p := Paths{FlashDir: "/data/flash"}
	if got := p.StorageRoot(""); got != "/data/flash" {
		t.Fatalf("default storage root: got %q", got)
	}
	if got := p.StorageRoot("/mnt/sd"); got != "/mnt/sd" {
		t.Fatalf("configured storage root: got %q", got)
	}
}
