package fileutil

import (
	"context"
	"fmt"
	"time"

	"github.com/gofrs/flock"
)

const lockRetryDelay = 100 * time.Millisecond

// Lock holds an advisory lock on <path>.lock.
type Lock struct {
	fl *flock.Flock
}

// LockPath returns the lock file guarding path.
func LockPath(path string) string {
	return path + ".lock"
}

// AcquireLock blocks until the lock guarding path is held or ctx ends.
func AcquireLock(ctx context.Context, path string) (*Lock, error) {
	fl := flock.New(LockPath(path))
	ok, err := fl.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		return nil, fmt.Errorf("acquire lock %s: %w", fl.Path(), err)
	}
	if !ok {
		return nil, fmt.Errorf("acquire lock %s: not acquired", fl.Path())
	}
	return &Lock{fl: fl}, nil
}

// Release unlocks. The lock file stays on disk for the next holder.
func (l *Lock) Release() error {
	if l == nil || l.fl == nil {
		return nil
	}
	if err := l.fl.Unlock(); err != nil {
		return fmt.Errorf("release lock %s: %w", l.fl.Path(), err)
	}
	return nil
}
