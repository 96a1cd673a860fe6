package platform

import (
	"errors"
	"path/filepath"
	"strings"
)

// ErrFlashInUse indicates another device process already owns the emulated partition.
var ErrFlashInUse = errors.New("flash partition in use by another process")

// ErrLockUnsupported indicates the current platform has no lock backend implementation.
var ErrLockUnsupported = errors.New("flash lock unsupported")

// Lock represents an acquired partition lock.
type Lock interface {
	Path() string
	Release() error
}

// AcquireFlashLock takes an exclusive lock next to flashDir so two emulators
// never write the same partition. The lock file sits beside the directory,
// not in it, to keep it out of the partition listing.
func AcquireFlashLock(flashDir string) (Lock, error) {
	return acquireFileLock(lockPathFor(flashDir))
}

func lockPathFor(flashDir string) string {
	clean := filepath.Clean(strings.TrimSpace(flashDir))
	if clean == "." || clean == string(filepath.Separator) {
		clean = filepath.Join(clean, "flash")
	}

	return clean + ".lock"
}
