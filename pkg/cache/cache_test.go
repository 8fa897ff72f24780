package cache

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T, maxSize int) (*Cache, string) {
	t.Helper()
	dir := t.TempDir()
	c := New(Config{KBPath: dir, MaxSize: maxSize}, zerolog.Nop())
	return c, dir
}

func writeRecord(t *testing.T, dir, name string, doc any) string {
	t.Helper()
	data, err := json.Marshal(doc)
	require.NoError(t, err)
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func TestCache_HitStability(t *testing.T) {
	c, dir := newTestCache(t, 10)
	path := writeRecord(t, dir, "core/profile.json", map[string]any{"name": "guardian"})

	doc := map[string]any{"name": "guardian"}
	c.Set(path, doc, CategoryCore)

	got, ok := c.Get(path, CategoryCore)
	require.True(t, ok)
	assert.Equal(t, doc, got)

	stats := c.Stats()
	assert.Equal(t, 1, stats.Hits)
	assert.Equal(t, 0, stats.Misses)
}

func TestCache_MissOnUnknownKey(t *testing.T) {
	c, _ := newTestCache(t, 10)

	_, ok := c.Get("/nowhere.json", CategoryCore)
	assert.False(t, ok)
	assert.Equal(t, 1, c.Stats().Misses)
}

func TestCache_InvalidatesWhenFileDeleted(t *testing.T) {
	c, dir := newTestCache(t, 10)
	path := writeRecord(t, dir, "core/profile.json", map[string]any{"v": 1})

	c.Set(path, map[string]any{"v": 1}, CategoryCore)
	require.NoError(t, os.Remove(path))

	_, ok := c.Get(path, CategoryCore)
	assert.False(t, ok)

	stats := c.Stats()
	assert.Equal(t, 1, stats.Invalidations)
	assert.Equal(t, 1, stats.Misses)
	assert.Equal(t, 0, c.Len())
}

func TestCache_InvalidatesOnContentChange(t *testing.T) {
	c, dir := newTestCache(t, 10)
	path := writeRecord(t, dir, "core/profile.json", map[string]any{"v": 1})

	c.Set(path, map[string]any{"v": 1}, CategoryCore)

	// External modification, well before any TTL could expire.
	require.NoError(t, os.WriteFile(path, []byte(`{"v":2}`), 0o644))

	_, ok := c.Get(path, CategoryCore)
	assert.False(t, ok)
	assert.Equal(t, 1, c.Stats().Invalidations)
	assert.Equal(t, 0, c.Len())
}

func TestCache_LRUBound(t *testing.T) {
	c, dir := newTestCache(t, 2)
	a := writeRecord(t, dir, "core/a.json", map[string]any{"k": "a"})
	b := writeRecord(t, dir, "core/b.json", map[string]any{"k": "b"})
	d := writeRecord(t, dir, "core/c.json", map[string]any{"k": "c"})

	c.Set(a, map[string]any{"k": "a"}, CategoryCore)
	c.Set(b, map[string]any{"k": "b"}, CategoryCore)
	c.Set(d, map[string]any{"k": "c"}, CategoryCore)

	assert.Equal(t, 2, c.Len())
	assert.Equal(t, 1, c.Stats().Evictions)

	// A was least recently used and must be gone.
	_, ok := c.Get(a, CategoryCore)
	assert.False(t, ok)

	_, ok = c.Get(b, CategoryCore)
	assert.True(t, ok)
	_, ok = c.Get(d, CategoryCore)
	assert.True(t, ok)
}

func TestCache_GetRefreshesRecency(t *testing.T) {
	c, dir := newTestCache(t, 2)
	a := writeRecord(t, dir, "core/a.json", map[string]any{"k": "a"})
	b := writeRecord(t, dir, "core/b.json", map[string]any{"k": "b"})
	d := writeRecord(t, dir, "core/c.json", map[string]any{"k": "c"})

	c.Set(a, map[string]any{"k": "a"}, CategoryCore)
	c.Set(b, map[string]any{"k": "b"}, CategoryCore)

	// Touching A makes B the eviction victim.
	_, ok := c.Get(a, CategoryCore)
	require.True(t, ok)

	c.Set(d, map[string]any{"k": "c"}, CategoryCore)

	_, ok = c.Get(a, CategoryCore)
	assert.True(t, ok)
	_, ok = c.Get(b, CategoryCore)
	assert.False(t, ok)
}

func TestCache_TTLExpiry(t *testing.T) {
	c, dir := newTestCache(t, 10)
	path := writeRecord(t, dir, "core/profile.json", map[string]any{"v": 1})

	c.Set(path, map[string]any{"v": 1}, CategoryCore)

	// Advance past the core base TTL.
	c.now = func() time.Time { return time.Now().Add(2 * time.Hour) }

	_, ok := c.Get(path, CategoryCore)
	assert.False(t, ok)
	assert.Equal(t, 1, c.Stats().Invalidations)
}

func TestCache_InvalidatePattern(t *testing.T) {
	c, dir := newTestCache(t, 10)
	a := writeRecord(t, dir, "core/profile.json", map[string]any{})
	b := writeRecord(t, dir, "indexed/modules.json", map[string]any{})

	c.Set(a, map[string]any{}, CategoryCore)
	c.Set(b, map[string]any{}, CategoryIndexed)

	removed := c.Invalidate("indexed")
	assert.Equal(t, 1, removed)
	assert.Equal(t, 1, c.Len())

	removed = c.Invalidate("*")
	assert.Equal(t, 1, removed)
	assert.Equal(t, 0, c.Len())
	assert.Equal(t, 2, c.Stats().Invalidations)
}

func TestCache_AdaptiveTTL(t *testing.T) {
	c, _ := newTestCache(t, 10)

	base := time.Unix(1_700_000_000, 0)
	c.now = func() time.Time { return base }

	// No change history: base TTL unchanged.
	assert.Equal(t, time.Hour, c.adaptiveTTL("/kb/core/profile.json", CategoryCore))

	// Two changes 10 minutes apart: TTL = half the mean interval.
	c.changeHistory["/kb/core/profile.json"] = []time.Time{
		base,
		base.Add(10 * time.Minute),
	}
	assert.Equal(t, 5*time.Minute, c.adaptiveTTL("/kb/core/profile.json", CategoryCore))

	// Rapid churn is floored at one minute.
	c.changeHistory["/kb/core/profile.json"] = []time.Time{
		base,
		base.Add(10 * time.Second),
	}
	assert.Equal(t, minAdaptiveTTL, c.adaptiveTTL("/kb/core/profile.json", CategoryCore))

	// Huge intervals are capped at the base TTL.
	c.changeHistory["/kb/core/profile.json"] = []time.Time{
		base,
		base.Add(100 * time.Hour),
	}
	assert.Equal(t, time.Hour, c.adaptiveTTL("/kb/core/profile.json", CategoryCore))

	// Zero-TTL categories never cache.
	assert.Equal(t, time.Duration(0), c.adaptiveTTL("/kb/history/bugs.json", CategoryHistory))
}

func TestCache_ChangeHistoryBounded(t *testing.T) {
	c, _ := newTestCache(t, 10)

	for i := 0; i < 25; i++ {
		c.recordChange("/kb/core/profile.json")
	}
	assert.Len(t, c.changeHistory["/kb/core/profile.json"], maxChangeHistory)
}

func TestCache_AccessCountIncrements(t *testing.T) {
	c, dir := newTestCache(t, 10)
	path := writeRecord(t, dir, "core/profile.json", map[string]any{"v": 1})

	c.Set(path, map[string]any{"v": 1}, CategoryCore)
	for i := 0; i < 3; i++ {
		_, ok := c.Get(path, CategoryCore)
		require.True(t, ok)
	}

	elem := c.index[path]
	require.NotNil(t, elem)
	assert.Equal(t, 4, elem.Value.(*entry).accessCount)
}
