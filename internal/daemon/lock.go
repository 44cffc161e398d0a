package daemon

import (
	"errors"
	"fmt"

	"github.com/gofrs/flock"

	"bobbin/internal/config"
)

// ErrLocked is returned when another bobbin process holds the run lock.
var ErrLocked = errors.New("another bobbin run or daemon is already active")

// AcquireLock takes the single-instance lock used by both the daemon and a
// foreground run. The caller must Unlock the returned lock.
func AcquireLock(cfg *config.Config) (*flock.Flock, error) {
	lock := flock.New(cfg.LockPath())
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire lock %s: %w", cfg.LockPath(), err)
	}
	if !ok {
		return nil, fmt.Errorf("%w (lock %s)", ErrLocked, cfg.LockPath())
	}
	return lock, nil
}

// LockHeld reports whether some process currently holds the run lock.
func LockHeld(cfg *config.Config) (bool, error) {
	lock, err := AcquireLock(cfg)
	if errors.Is(err, ErrLocked) {
		return true, nil
	}
	if err != nil {
		return false, err
	}
	return false, lock.Unlock()
}
