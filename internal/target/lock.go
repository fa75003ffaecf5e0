package target

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
)

// PoolLock serializes batches over the shared device pool across processes,
// so two CLI batches, or a CLI batch and a server batch, never interleave.
// Dispatches within one process are serialized by the orchestrator.
type PoolLock struct {
	path string
	fl   *flock.Flock
}

// NewPoolLock returns a lock backed by the file at path. An empty path
// yields a no-op lock.
func NewPoolLock(path string) *PoolLock {
	if path == "" {
		return &PoolLock{}
	}
	return &PoolLock{path: path, fl: flock.New(path)}
}

// Acquire blocks until the lock is held or ctx is done. A nil lock is a
// no-op.
func (l *PoolLock) Acquire(ctx context.Context) error {
	if l == nil || l.fl == nil {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(l.path), 0755); err != nil {
		return fmt.Errorf("create lock dir: %w", err)
	}
	ok, err := l.fl.TryLockContext(ctx, 250*time.Millisecond)
	if err != nil {
		return fmt.Errorf("acquire device pool lock %s: %w", l.path, err)
	}
	if !ok {
		return fmt.Errorf("acquire device pool lock %s: not acquired", l.path)
	}
	return nil
}

// Release drops the lock.
func (l *PoolLock) Release() error {
	if l == nil || l.fl == nil {
		return nil
	}
	return l.fl.Unlock()
}
