package store

import (
	"fmt"
	"os"
	"path/filepath"
	"syscall"
	"time"

	"github.com/harun/guardian/internal/observability"
)

// Mode controls how the locked file is opened.
type Mode int

const (
	// ModeRead opens read-only and fails with ErrNotFound if the file is missing.
	ModeRead Mode = iota
	// ModeReadWrite opens for read-modify-write without truncation.
	ModeReadWrite
	// ModeWrite opens for writing, truncating existing content.
	ModeWrite
	// ModeAppend opens for appending.
	ModeAppend
)

func (m Mode) String() string {
	switch m {
	case ModeRead:
		return "read"
	case ModeReadWrite:
		return "readwrite"
	case ModeWrite:
		return "write"
	case ModeAppend:
		return "append"
	default:
		return "unknown"
	}
}

func (m Mode) openFlags() int {
	switch m {
	case ModeRead:
		return os.O_RDONLY
	case ModeReadWrite:
		return os.O_RDWR
	case ModeWrite:
		return os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	case ModeAppend:
		return os.O_WRONLY | os.O_CREATE | os.O_APPEND
	default:
		return os.O_RDONLY
	}
}

// lockPollInterval is how long a waiter sleeps between acquisition attempts.
const lockPollInterval = 100 * time.Millisecond

// WithLock opens path in the given mode, acquires an exclusive advisory lock
// on it, and calls fn with the open handle. The lock is released and the
// handle closed on every exit path, including errors from fn.
//
// Parent directories are created if missing. Read-intent modes (ModeRead,
// ModeReadWrite) fail immediately with ErrNotFound when the file does not
// exist; write-intent modes create it. Acquisition polls a non-blocking
// flock until it succeeds or timeout elapses, in which case ErrLockTimeout
// is returned. There is no fairness among waiters.
func WithLock(path string, mode Mode, timeout time.Duration, fn func(f *os.File) error) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create parent directory: %w", err)
	}

	f, err := os.OpenFile(path, mode.openFlags(), 0o644)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return fmt.Errorf("failed to open %s: %w", path, err)
	}

	start := time.Now()
	acquired := false
	defer func() {
		// Best-effort cleanup: release and close failures never mask the
		// original error.
		if acquired {
			_ = syscall.Flock(int(f.Fd()), syscall.LOCK_UN)
		}
		_ = f.Close()
	}()

	for {
		err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX|syscall.LOCK_NB)
		if err == nil {
			acquired = true
			break
		}
		if err != syscall.EWOULDBLOCK && err != syscall.EAGAIN {
			return fmt.Errorf("failed to lock %s: %w", path, err)
		}
		if time.Since(start) > timeout {
			observability.RecordLockWait(time.Since(start), false)
			observability.RecordLockTimeout(mode.String())
			return fmt.Errorf("%w: %s (after %s)", ErrLockTimeout, path, timeout)
		}
		time.Sleep(lockPollInterval)
	}
	observability.RecordLockWait(time.Since(start), true)

	return fn(f)
}
