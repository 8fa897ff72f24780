package store

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/harun/guardian/internal/observability"
)

// Operation is the kind of record mutation an oplog entry describes.
type Operation string

const (
	OpCreate Operation = "create"
	OpUpdate Operation = "update"
	OpDelete Operation = "delete"
)

// OplogEntry is one line of the operation log.
type OplogEntry struct {
	Timestamp time.Time      `json:"timestamp"`
	Operation Operation      `json:"operation"`
	FilePath  string         `json:"file_path"`
	Data      map[string]any `json:"data,omitempty"`
}

// OperationLog is a best-effort, append-only trail of record operations,
// kept purely for post-hoc diagnosis. It holds its own lock, independent of
// the lock protecting any record file, so entry order relative to mutations
// of the same record is not guaranteed under contention.
type OperationLog struct {
	path   string
	logger zerolog.Logger
}

// NewOperationLog creates an operation log writing to path.
func NewOperationLog(path string, logger zerolog.Logger) *OperationLog {
	return &OperationLog{
		path:   path,
		logger: logger.With().Str("component", "oplog").Logger(),
	}
}

// Append records one completed operation. Failures are logged and swallowed
// so they never block the primary operation.
func (l *OperationLog) Append(op Operation, filePath string, data map[string]any) {
	entry := OplogEntry{
		Timestamp: time.Now(),
		Operation: op,
		FilePath:  filePath,
		Data:      data,
	}

	line, err := json.Marshal(entry)
	if err != nil {
		l.logger.Warn().Err(err).Msg("Failed to serialize oplog entry")
		observability.RecordOplogAppend(false)
		return
	}

	err = WithLock(l.path, ModeAppend, DefaultWriteTimeout, func(f *os.File) error {
		if _, err := f.Write(append(line, '\n')); err != nil {
			return fmt.Errorf("failed to append to %s: %w", l.path, err)
		}
		return nil
	})
	if err != nil {
		l.logger.Warn().Err(err).Str("path", l.path).Msg("Failed to append oplog entry")
		observability.RecordOplogAppend(false)
		return
	}

	observability.RecordOplogAppend(true)
}

// Recent returns the last count entries, oldest first. Any failure yields an
// empty slice; malformed lines are skipped.
func (l *OperationLog) Recent(count int) []OplogEntry {
	if _, err := os.Stat(l.path); os.IsNotExist(err) {
		return []OplogEntry{}
	}

	var entries []OplogEntry
	err := WithLock(l.path, ModeRead, DefaultReadTimeout, func(f *os.File) error {
		scanner := bufio.NewScanner(f)
		for scanner.Scan() {
			line := scanner.Bytes()
			if len(line) == 0 {
				continue
			}
			var entry OplogEntry
			if err := json.Unmarshal(line, &entry); err != nil {
				l.logger.Warn().Err(err).Msg("Skipping malformed oplog line")
				continue
			}
			entries = append(entries, entry)
		}
		return scanner.Err()
	})
	if err != nil {
		l.logger.Warn().Err(err).Str("path", l.path).Msg("Failed to read oplog")
		return []OplogEntry{}
	}

	if len(entries) > count {
		entries = entries[len(entries)-count:]
	}
	return entries
}
