package store

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/harun/guardian/internal/observability"
)

const (
	// DefaultReadTimeout bounds lock waits for read-oriented operations.
	DefaultReadTimeout = 5 * time.Second
	// DefaultWriteTimeout bounds lock waits for write-oriented operations.
	DefaultWriteTimeout = 5 * time.Second
	// DefaultUpdateTimeout bounds lock waits for read-modify-write operations.
	DefaultUpdateTimeout = 10 * time.Second
)

// Store provides lock-protected, atomic access to JSON record files.
//
// All operations fail open: reads fall back to caller-supplied defaults and
// writes report success as a boolean, so callers are never forced to handle
// lock contention or corrupt content as control flow. Every swallowed
// failure is logged.
type Store struct {
	logger zerolog.Logger
	oplog  *OperationLog
}

// NewStore creates a store. oplog may be nil to disable operation logging.
func NewStore(logger zerolog.Logger, oplog *OperationLog) *Store {
	observability.EnsureRegistered()
	return &Store{
		logger: logger.With().Str("component", "store").Logger(),
		oplog:  oplog,
	}
}

// SafeRead reads and parses the JSON document at path under an exclusive
// lock. It returns def on a missing file, lock timeout, or malformed
// content — it never fails to the caller.
func (s *Store) SafeRead(path string, def any) any {
	start := time.Now()
	var doc any

	err := WithLock(path, ModeRead, DefaultReadTimeout, func(f *os.File) error {
		data, err := io.ReadAll(f)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", path, err)
		}
		return json.Unmarshal(data, &doc)
	})
	if err != nil {
		s.logger.Debug().Err(err).Str("path", path).Msg("Safe read fell back to default")
		observability.RecordSafeOp("read", time.Since(start), false)
		return def
	}

	observability.RecordSafeOp("read", time.Since(start), true)
	return doc
}

// SafeWrite serializes data and writes it to path under an exclusive lock,
// replacing previous content. It returns false on lock timeout or I/O
// failure, logging the cause.
func (s *Store) SafeWrite(path string, data any) bool {
	start := time.Now()

	_, statErr := os.Stat(path)
	existed := statErr == nil

	payload, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		s.logger.Error().Err(err).Str("path", path).Msg("Failed to serialize record")
		observability.RecordSafeOp("write", time.Since(start), false)
		return false
	}

	err = WithLock(path, ModeWrite, DefaultWriteTimeout, func(f *os.File) error {
		if _, err := f.Write(payload); err != nil {
			return fmt.Errorf("failed to write %s: %w", path, err)
		}
		return nil
	})
	if err != nil {
		s.logger.Error().Err(err).Str("path", path).Msg("Failed to write record")
		observability.RecordSafeOp("write", time.Since(start), false)
		return false
	}

	op := OpUpdate
	if !existed {
		op = OpCreate
	}
	s.appendOplog(op, path, nil)

	observability.RecordSafeOp("write", time.Since(start), true)
	return true
}

// SafeUpdate applies a read-modify-write to the JSON document at path,
// atomically with respect to other lock users of the same path. A missing
// file is first materialized with def. Under a single lock scope the current
// content is parsed (falling back to def when corrupt), updateFn is applied,
// and the file is truncated and rewritten. Returns false on lock timeout or
// I/O failure.
func (s *Store) SafeUpdate(path string, updateFn func(current any) any, def any, timeout time.Duration) bool {
	start := time.Now()
	if timeout <= 0 {
		timeout = DefaultUpdateTimeout
	}

	op := OpUpdate
	if _, err := os.Stat(path); os.IsNotExist(err) {
		if !s.materialize(path, def) {
			observability.RecordSafeOp("update", time.Since(start), false)
			return false
		}
		op = OpCreate
	}

	err := WithLock(path, ModeReadWrite, timeout, func(f *os.File) error {
		raw, err := io.ReadAll(f)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", path, err)
		}

		var current any
		if err := json.Unmarshal(raw, &current); err != nil {
			// Corrupt content is discarded in favor of the default. Flagged
			// loudly because it can hide data loss from an incompatible writer.
			s.logger.Warn().Err(err).Str("path", path).
				Msg("Discarding malformed record content, updating from default")
			observability.RecordCorruptFallback()
			current = def
		}

		updated := updateFn(current)

		payload, err := json.MarshalIndent(updated, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to serialize update for %s: %w", path, err)
		}

		if _, err := f.Seek(0, io.SeekStart); err != nil {
			return fmt.Errorf("failed to seek %s: %w", path, err)
		}
		if _, err := f.Write(payload); err != nil {
			return fmt.Errorf("failed to write %s: %w", path, err)
		}
		if err := f.Truncate(int64(len(payload))); err != nil {
			return fmt.Errorf("failed to truncate %s: %w", path, err)
		}
		return nil
	})
	if err != nil {
		s.logger.Error().Err(err).Str("path", path).Msg("Failed to update record")
		observability.RecordSafeOp("update", time.Since(start), false)
		return false
	}

	s.appendOplog(op, path, nil)

	observability.RecordSafeOp("update", time.Since(start), true)
	return true
}

// materialize writes the default document to a missing path so that a
// subsequent ModeReadWrite open succeeds. It opens in append mode and only
// writes while the file is still empty, so a concurrent updater that won the
// race is never clobbered.
func (s *Store) materialize(path string, def any) bool {
	if def == nil {
		def = map[string]any{}
	}
	payload, err := json.MarshalIndent(def, "", "  ")
	if err != nil {
		s.logger.Error().Err(err).Str("path", path).Msg("Failed to serialize default record")
		return false
	}

	err = WithLock(path, ModeAppend, DefaultWriteTimeout, func(f *os.File) error {
		info, err := f.Stat()
		if err != nil {
			return err
		}
		if info.Size() > 0 {
			return nil
		}
		_, err = f.Write(payload)
		return err
	})
	if err != nil {
		s.logger.Error().Err(err).Str("path", path).Msg("Failed to materialize record")
		return false
	}
	return true
}

// appendOplog records a completed operation. Log failures never block the
// primary operation.
func (s *Store) appendOplog(op Operation, path string, data map[string]any) {
	if s.oplog == nil {
		return
	}
	s.oplog.Append(op, path, data)
}
