//go:build unix

package platform

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"syscall"
)

type unixFileLock struct {
	path string
	file *os.File
}

func acquireFileLock(lockPath string) (Lock, error) {
	if err := os.MkdirAll(filepath.Dir(lockPath), 0o750); err != nil {
		return nil, fmt.Errorf("create lock dir: %w", err)
	}

	// #nosec G304 -- lockPath is derived from the configured flash directory.
	file, err := os.OpenFile(lockPath, os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open flash lock file: %w", err)
	}

	if err := syscall.Flock(int(file.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		_ = file.Close()
		if isUnixLockContention(err) {
			return nil, ErrFlashInUse
		}

		return nil, fmt.Errorf("acquire flash file lock: %w", err)
	}

	return &unixFileLock{path: lockPath, file: file}, nil
}

func (l *unixFileLock) Path() string {
	return l.path
}

func (l *unixFileLock) Release() error {
	if l == nil || l.file == nil {
		return nil
	}

	fd := int(l.file.Fd())
	unlockErr := syscall.Flock(fd, syscall.LOCK_UN)
	closeErr := l.file.Close()
	l.file = nil

	if unlockErr != nil && !errors.Is(unlockErr, syscall.EBADF) {
		return fmt.Errorf("unlock flash file lock: %w", unlockErr)
	}
	if closeErr != nil {
		return fmt.Errorf("close flash lock file: %w", closeErr)
	}

	return nil
}

func isUnixLockContention(err error) bool {
	return errors.Is(err, syscall.EWOULDBLOCK) || errors.Is(err, syscall.EAGAIN)
}
