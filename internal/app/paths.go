package app

import (
	"fmt"
	"os"
	"path/filepath"
)

// Paths stores resolved runtime file locations. The emulated flash partition
// and received dumps live under the data dir so they survive config resets.
type Paths struct {
	RootDir    string
	ConfigFile string
	DBFile     string
	LogFile    string
	DataDir    string
	FlashDir   string
	DumpsDir   string
}

func ResolvePaths() (Paths, error) {
	cfgRoot, err := os.UserConfigDir()
	if err != nil {
		return Paths{}, fmt.Errorf("resolve config dir: %w", err)
	}
	dataRoot, err := os.UserCacheDir()
	if err != nil {
		return Paths{}, fmt.Errorf("resolve data dir: %w", err)
	}

	root := filepath.Join(cfgRoot, Name)
	if err := os.MkdirAll(root, 0o750); err != nil {
		return Paths{}, fmt.Errorf("create app config dir: %w", err)
	}
	data := filepath.Join(dataRoot, Name)
	flash := filepath.Join(data, FlashDir)
	dumps := filepath.Join(data, DumpsDir)
	for _, dir := range []string{flash, dumps} {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return Paths{}, fmt.Errorf("create data dir %s: %w", dir, err)
		}
	}

	return Paths{
		RootDir:    root,
		ConfigFile: filepath.Join(root, ConfigFilename),
		DBFile:     filepath.Join(data, DBFilename),
		LogFile:    filepath.Join(root, LogFilename),
		DataDir:    data,
		FlashDir:   flash,
		DumpsDir:   dumps,
	}, nil
}

// StorageRoot is the directory backing the emulated flash. An explicit config
// root wins over the default under the data dir.
func (p Paths) StorageRoot(configured string) string {
	if configured != "" {
		return configured
	}

	return p.FlashDir
}
