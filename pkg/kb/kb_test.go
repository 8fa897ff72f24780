package kb

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestKB(t *testing.T) *KB {
	t.Helper()

	kb, err := Create(t.TempDir(), Options{}, zerolog.Nop())
	require.NoError(t, err)
	return kb
}

func writeCoreRecords(t *testing.T, kb *KB) {
	t.Helper()

	docs := map[string]map[string]any{
		"profile.json":     {"name": "demo", "type": "service"},
		"tech-stack.json":  {"stack": map[string]any{"languages": []any{"Go"}}},
		"conventions.json": {"conventions": map[string]any{}},
	}
	for name, doc := range docs {
		require.True(t, kb.Store().SafeWrite(kb.CorePath(name), doc))
	}
}

func TestOpen_FailsWhenNotInitialized(t *testing.T) {
	_, err := Open(t.TempDir(), Options{}, zerolog.Nop())
	assert.ErrorIs(t, err, ErrNotInitialized)
}

func TestCreate_BuildsLayout(t *testing.T) {
	kb := newTestKB(t)

	for _, dir := range []string{
		kb.CorePath(""),
		kb.IndexedPath(""),
		kb.HistoryDir("bugs"),
		kb.HistoryDir("requirements"),
		kb.HistoryDir("decisions"),
	} {
		info, err := os.Stat(dir)
		require.NoError(t, err, dir)
		assert.True(t, info.IsDir())
	}
}

func TestOpen_SucceedsAfterCreate(t *testing.T) {
	project := t.TempDir()
	_, err := Create(project, Options{}, zerolog.Nop())
	require.NoError(t, err)

	kb, err := Open(project, Options{}, zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(project, DefaultKBDir), kb.Root())
}

func TestOptions_Defaults(t *testing.T) {
	opts := Options{}
	opts.applyDefaults()

	assert.Equal(t, DefaultKBDir, opts.KBDir)
	assert.Equal(t, DefaultOplogFile, opts.OplogFile)
	assert.Greater(t, opts.UpdateTimeout, time.Duration(0))
}

func TestNewRecordID_Shape(t *testing.T) {
	now := time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)
	id := newRecordID("BUG", now)

	assert.Regexp(t, `^BUG-20260314092653-[0-9a-f]{4}$`, id)
}
