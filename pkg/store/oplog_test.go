package store

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOperationLog_AppendAndRecent(t *testing.T) {
	dir := t.TempDir()
	l := NewOperationLog(filepath.Join(dir, "operations.log"), zerolog.Nop())

	l.Append(OpCreate, "/kb/core/profile.json", nil)
	l.Append(OpUpdate, "/kb/core/profile.json", map[string]any{"field": "last_updated"})
	l.Append(OpDelete, "/kb/indexed/stale.json", nil)

	entries := l.Recent(10)
	require.Len(t, entries, 3)
	assert.Equal(t, OpCreate, entries[0].Operation)
	assert.Equal(t, OpUpdate, entries[1].Operation)
	assert.Equal(t, OpDelete, entries[2].Operation)
	assert.Equal(t, "last_updated", entries[1].Data["field"])
	assert.False(t, entries[0].Timestamp.IsZero())
}

func TestOperationLog_RecentLimitsToLastN(t *testing.T) {
	dir := t.TempDir()
	l := NewOperationLog(filepath.Join(dir, "operations.log"), zerolog.Nop())

	for i := 0; i < 5; i++ {
		l.Append(OpUpdate, "/kb/record.json", nil)
	}
	l.Append(OpDelete, "/kb/last.json", nil)

	entries := l.Recent(2)
	require.Len(t, entries, 2)
	assert.Equal(t, OpUpdate, entries[0].Operation)
	assert.Equal(t, OpDelete, entries[1].Operation)
}

func TestOperationLog_RecentMissingFile(t *testing.T) {
	dir := t.TempDir()
	l := NewOperationLog(filepath.Join(dir, "operations.log"), zerolog.Nop())

	entries := l.Recent(10)
	assert.Empty(t, entries)
}

func TestOperationLog_RecentSkipsMalformedLines(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "operations.log")
	l := NewOperationLog(path, zerolog.Nop())

	l.Append(OpCreate, "/kb/a.json", nil)

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	_, err = f.WriteString("this is not json\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	l.Append(OpUpdate, "/kb/b.json", nil)

	entries := l.Recent(10)
	require.Len(t, entries, 2)
	assert.Equal(t, "/kb/a.json", entries[0].FilePath)
	assert.Equal(t, "/kb/b.json", entries[1].FilePath)
}
