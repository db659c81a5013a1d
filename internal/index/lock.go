package index

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// Lock is the cross-process indexing lock for one workspace. Two
// processes indexing the same store concurrently would interleave
// wholesale file replacements; the lock serializes them at the OS
// level on every platform.
type Lock struct {
	path   string
	flock  *flock.Flock
	locked bool
}

// NewLock creates the lock for a workspace using its layout path.
func NewLock(layout workspaceLayout, workspaceID string) *Lock {
	path := layout.LockPath(workspaceID)
	return &Lock{path: path, flock: flock.New(path)}
}

// workspaceLayout is the slice of workspace.Layout the lock needs.
type workspaceLayout interface {
	LockPath(workspaceID string) string
}

// TryAcquire attempts the lock without blocking. Returns false when
// another process holds it.
func (l *Lock) TryAcquire() (bool, error) {
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return false, fmt.Errorf("create lock directory: %w", err)
	}
	acquired, err := l.flock.TryLock()
	if err != nil {
		return false, fmt.Errorf("acquire index lock: %w", err)
	}
	l.locked = acquired
	return acquired, nil
}

// Acquire blocks until the lock is held.
func (l *Lock) Acquire() error {
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return fmt.Errorf("create lock directory: %w", err)
	}
	if err := l.flock.Lock(); err != nil {
		return fmt.Errorf("acquire index lock: %w", err)
	}
	l.locked = true
	return nil
}

// Release frees the lock. Safe to call when not held.
func (l *Lock) Release() error {
	if !l.locked {
		return nil
	}
	l.locked = false
	if err := l.flock.Unlock(); err != nil {
		return fmt.Errorf("release index lock: %w", err)
	}
	return nil
}

// Path returns the lock file location.
func (l *Lock) Path() string {
	return l.path
}
