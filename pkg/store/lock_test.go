package store

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithLock_ReadMissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing.json")

	err := WithLock(path, ModeRead, time.Second, func(f *os.File) error {
		t.Fatal("fn should not be called for a missing read-intent file")
		return nil
	})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestWithLock_WriteCreatesFileAndParents(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "data.json")

	err := WithLock(path, ModeWrite, time.Second, func(f *os.File) error {
		_, err := f.WriteString(`{"ok":true}`)
		return err
	})
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, `{"ok":true}`, string(data))
}

func TestWithLock_ReleasedOnError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.json")

	err := WithLock(path, ModeWrite, time.Second, func(f *os.File) error {
		return assert.AnError
	})
	assert.ErrorIs(t, err, assert.AnError)

	// The lock must have been released despite the error.
	err = WithLock(path, ModeWrite, time.Second, func(f *os.File) error {
		return nil
	})
	assert.NoError(t, err)
}

func TestWithLock_MutualExclusion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.json")

	holding := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error, 1)

	go func() {
		done <- WithLock(path, ModeWrite, 5*time.Second, func(f *os.File) error {
			close(holding)
			<-release
			return nil
		})
	}()

	<-holding

	// A second waiter must time out while the first scope is still open.
	err := WithLock(path, ModeWrite, 300*time.Millisecond, func(f *os.File) error {
		t.Error("second scope must not run while the lock is held")
		return nil
	})
	assert.ErrorIs(t, err, ErrLockTimeout)

	close(release)
	require.NoError(t, <-done)

	// After release, acquisition succeeds.
	acquired := false
	err = WithLock(path, ModeWrite, time.Second, func(f *os.File) error {
		acquired = true
		return nil
	})
	assert.NoError(t, err)
	assert.True(t, acquired)
}

func TestWithLock_WaiterAcquiresAfterRelease(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.json")

	holding := make(chan struct{})
	done := make(chan error, 1)

	go func() {
		done <- WithLock(path, ModeWrite, 5*time.Second, func(f *os.File) error {
			close(holding)
			time.Sleep(250 * time.Millisecond)
			return nil
		})
	}()

	<-holding

	// Timeout comfortably exceeds the holder's critical section, so the
	// waiter should win after polling.
	err := WithLock(path, ModeWrite, 3*time.Second, func(f *os.File) error {
		return nil
	})
	assert.NoError(t, err)
	require.NoError(t, <-done)
}
