package kb

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harun/guardian/pkg/cache"
)

func newTestLoader(t *testing.T, kb *KB) *ContextLoader {
	t.Helper()

	c := cache.New(cache.Config{KBPath: kb.Root()}, zerolog.Nop())
	return NewContextLoader(kb, c)
}

func TestIdentifyModule(t *testing.T) {
	cases := []struct {
		path   string
		module string
	}{
		{"internal/auth/login.go", "auth"},
		{"src/api/routes/users.ts", "api"},
		{"db/migrations/001.sql", "database"},
		{"components/Button.tsx", "ui"},
		{"pkg/utils/format.go", "utils"},
		{"config/settings.yaml", "config"},
		{"tests/conftest.py", "tests"},
		{"docs/overview.md", ""},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.module, identifyModule(tc.path), tc.path)
	}
}

func TestExtractKeywords(t *testing.T) {
	keywords := extractKeywords("Why is the login token expiring early?")
	assert.ElementsMatch(t, []string{"login", "token", "expiring", "early"}, keywords)
}

func TestExtractKeywords_DropsShortAndStopWords(t *testing.T) {
	assert.Empty(t, extractKeywords("is it on"))
}

func TestLoadMinimal_ReturnsCoreRecords(t *testing.T) {
	kb := newTestKB(t)
	writeCoreRecords(t, kb)

	ctx := newTestLoader(t, kb).LoadMinimal()

	profile, ok := ctx.Profile.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "demo", profile["name"])
	assert.NotNil(t, ctx.TechStack)
	assert.NotNil(t, ctx.Conventions)
	assert.Empty(t, ctx.Module)
}

func TestLoadForFile_IncludesModuleInfoAndBugs(t *testing.T) {
	kb := newTestKB(t)
	writeCoreRecords(t, kb)

	u := NewUpdater(kb)
	require.True(t, u.UpdateModuleInfo("auth", map[string]any{"owner": "core team"}))
	_, err := u.RecordBug(Bug{
		Title: "login token refresh loops forever",
		Tags:  []string{"auth"},
	})
	require.NoError(t, err)
	_, err = u.RecordBug(Bug{
		Title: "chart legend overlaps axis",
		Tags:  []string{"ui"},
	})
	require.NoError(t, err)

	ctx := newTestLoader(t, kb).LoadForFile("internal/auth/login.go")

	assert.Equal(t, "auth", ctx.Module)
	require.NotNil(t, ctx.ModuleInfo)
	assert.Equal(t, "core team", ctx.ModuleInfo["owner"])
	require.Len(t, ctx.Bugs, 1)
	assert.Equal(t, "login token refresh loops forever", ctx.Bugs[0].Title)
}

func TestLoadForQuery_ScoresBugsByKeywordOverlap(t *testing.T) {
	kb := newTestKB(t)
	writeCoreRecords(t, kb)

	u := NewUpdater(kb)
	_, err := u.RecordBug(Bug{
		Title:       "database query timeout on large joins",
		Description: "slow query plan, missing index",
		Tags:        []string{"database"},
	})
	require.NoError(t, err)
	_, err = u.RecordBug(Bug{Title: "tooltip flickers on hover"})
	require.NoError(t, err)
	_, err = u.RecordRequirement(Requirement{
		Title:       "add query plan inspection",
		Description: "expose slow query diagnostics",
	})
	require.NoError(t, err)

	ctx := newTestLoader(t, kb).LoadForQuery("why is this database query slow")

	assert.Equal(t, "database", ctx.Module)
	require.Len(t, ctx.Bugs, 1)
	assert.Equal(t, "database query timeout on large joins", ctx.Bugs[0].Title)
	require.Len(t, ctx.Requirements, 1)
	assert.Equal(t, "add query plan inspection", ctx.Requirements[0]["title"])
}

func TestLoadForQuery_NoKeywordsYieldsMinimal(t *testing.T) {
	kb := newTestKB(t)
	writeCoreRecords(t, kb)

	ctx := newTestLoader(t, kb).LoadForQuery("is it on")
	assert.Empty(t, ctx.Module)
	assert.Empty(t, ctx.Bugs)
}

func TestLoadForFile_HistoryNeverCached(t *testing.T) {
	kb := newTestKB(t)
	writeCoreRecords(t, kb)

	loader := newTestLoader(t, kb)
	u := NewUpdater(kb)

	_, err := u.RecordBug(Bug{Title: "login form drops password field", Tags: []string{"auth"}})
	require.NoError(t, err)
	ctx := loader.LoadForFile("internal/auth/login.go")
	require.Len(t, ctx.Bugs, 1)

	// A bug recorded after the first load shows up immediately.
	_, err = u.RecordBug(Bug{Title: "session token missing expiry", Tags: []string{"auth"}})
	require.NoError(t, err)
	ctx = loader.LoadForFile("internal/auth/login.go")
	assert.Len(t, ctx.Bugs, 2)
}
