package airgap

import (
	"fmt"
	"path/filepath"

	"github.com/gofrs/flock"
)

// LockFileName is created in the work directory by a live pull.
const LockFileName = ".airgap.lock"

// WorkspaceLock is an exclusive advisory lock on a work directory.
type WorkspaceLock struct {
	fl *flock.Flock
}

// LockWorkspace takes the lock without waiting. A directory already locked
// by another run yields ErrWorkspaceLocked.
func LockWorkspace(dir string) (*WorkspaceLock, error) {
	path := filepath.Join(dir, LockFileName)
	fl := flock.New(path)
	locked, err := fl.TryLock()
	if err != nil {
		return nil, wrapWithSentinelAndContext(ErrArchiveFailed, err,
			fmt.Sprintf("failed to lock %s: %v", path, err),
			map[string]any{"path": path})
	}
	if !locked {
		return nil, newWithSentinel(ErrWorkspaceLocked,
			fmt.Sprintf("%s is in use by another pull", dir)).
			WithContext("path", path)
	}
	return &WorkspaceLock{fl: fl}, nil
}

// Unlock releases the lock. The lock file is left in place.
func (l *WorkspaceLock) Unlock() error {
	return l.fl.Unlock()
}
