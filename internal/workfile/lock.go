package workfile

import (
	"errors"
	"fmt"
	"os"

	"github.com/gofrs/flock"
)

var ErrLocked = errors.New("another wisher run holds the lock")

// RunLock keeps two controllers from driving the same browser profile.
type RunLock struct {
	lock *flock.Flock
	path string
}

func NewRunLock(path string) *RunLock {
	return &RunLock{
		lock: flock.New(path),
		path: path,
	}
}

// TryLock fails fast with ErrLocked instead of waiting, since a second
// run queued behind the first would resend nothing useful.
func (l *RunLock) TryLock() error {
	locked, err := l.lock.TryLock()
	if err != nil {
		return fmt.Errorf("failed to acquire lock on %s: %w", l.path, err)
	}
	if !locked {
		return fmt.Errorf("%w: %s", ErrLocked, l.path)
	}
	return nil
}

func (l *RunLock) Unlock() error {
	if err := l.lock.Unlock(); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to release lock on %s: %w", l.path, err)
	}
	return nil
}
