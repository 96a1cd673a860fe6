//go:build !unix

package platform

import (
	"fmt"
	"runtime"
)

func acquireFileLock(_ string) (Lock, error) {
	return nil, fmt.Errorf("%w on %s", ErrLockUnsupported, runtime.GOOS)
}
