package ingest

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// FileLock provides cross-process locking so two ingest runs never
// write the same indexes concurrently. Works on Unix and Windows.
type FileLock struct {
	path   string
	flock  *flock.Flock
	locked bool
}

// NewFileLock creates a lock file at <dir>/.ingest.lock.
func NewFileLock(dir string) *FileLock {
	lockPath := filepath.Join(dir, ".ingest.lock")
	return &FileLock{
		path:  lockPath,
		flock: flock.New(lockPath),
	}
}

// TryLock attempts to acquire the lock without blocking.
// Returns false if another process holds it.
func (l *FileLock) TryLock() (bool, error) {
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return false, fmt.Errorf("failed to create lock directory: %w", err)
	}

	ok, err := l.flock.TryLock()
	if err != nil {
		return false, fmt.Errorf("failed to acquire ingest lock: %w", err)
	}
	l.locked = ok
	return ok, nil
}

// Unlock releases the lock. Safe to call when not held.
func (l *FileLock) Unlock() error {
	if !l.locked {
		return nil
	}
	l.locked = false
	return l.flock.Unlock()
}
