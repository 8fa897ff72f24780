package kb

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordBug_PersistsRecordAndIndex(t *testing.T) {
	kb := newTestKB(t)
	u := NewUpdater(kb)

	id, err := u.RecordBug(Bug{
		Title:    "cache returns stale module info",
		Solution: "invalidate on write",
		Tags:     []string{"cache", "staleness"},
		Severity: SeverityHigh,
	})
	require.NoError(t, err)
	assert.Regexp(t, `^BUG-\d{14}-[0-9a-f]{4}$`, id)

	doc := kb.Store().SafeRead(kb.HistoryPath("bugs", id+".json"), nil)
	record, ok := doc.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "cache returns stale module info", record["title"])
	assert.Equal(t, SeverityHigh, record["severity"])
	assert.Equal(t, BugStatusResolved, record["status"], "status defaults to resolved")

	index, ok := kb.Store().SafeRead(kb.HistoryPath("bugs", "_index.json"), nil).(map[string]any)
	require.True(t, ok)
	bugs, _ := index["bugs"].([]any)
	assert.Contains(t, bugs, id)
	tags, _ := index["tags"].(map[string]any)
	assert.Contains(t, tags["cache"], id)
	assert.Contains(t, tags["staleness"], id)
}

func TestRecordBug_DefaultsSeverity(t *testing.T) {
	kb := newTestKB(t)

	id, err := NewUpdater(kb).RecordBug(Bug{Title: "off by one in pagination"})
	require.NoError(t, err)

	record := kb.Store().SafeRead(kb.HistoryPath("bugs", id+".json"), nil).(map[string]any)
	assert.Equal(t, SeverityMedium, record["severity"])
}

func TestRecordBug_RejectsInvalid(t *testing.T) {
	kb := newTestKB(t)

	_, err := NewUpdater(kb).RecordBug(Bug{Title: strings.Repeat("x", 201)})
	assert.ErrorIs(t, err, ErrInvalidRecord)
}

func TestRecordRequirement_Defaults(t *testing.T) {
	kb := newTestKB(t)

	id, err := NewUpdater(kb).RecordRequirement(Requirement{Title: "add CSV export"})
	require.NoError(t, err)
	assert.Regexp(t, `^REQ-\d{14}-[0-9a-f]{4}$`, id)

	record := kb.Store().SafeRead(kb.HistoryPath("requirements", id+".json"), nil).(map[string]any)
	assert.Equal(t, SeverityMedium, record["priority"])
	assert.Equal(t, ReqStatusPlanned, record["status"])
}

func TestRecordDecision_DefaultsToProposed(t *testing.T) {
	kb := newTestKB(t)

	id, err := NewUpdater(kb).RecordDecision(Decision{
		Title:    "adopt structured logging",
		Decision: "zerolog everywhere",
	})
	require.NoError(t, err)

	record := kb.Store().SafeRead(kb.HistoryPath("decisions", id+".json"), nil).(map[string]any)
	assert.Equal(t, DecisionStatusProposed, record["status"])
}

func TestUpdateModuleInfo_MergesUnderModuleKey(t *testing.T) {
	kb := newTestKB(t)
	u := NewUpdater(kb)

	require.True(t, u.UpdateModuleInfo("auth", map[string]any{"owner": "core team"}))
	require.True(t, u.UpdateModuleInfo("auth", map[string]any{"entrypoint": "auth/login.go"}))

	modules := kb.Store().SafeRead(kb.IndexedPath("modules.json"), nil).(map[string]any)
	info, ok := modules["auth"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "core team", info["owner"])
	assert.Equal(t, "auth/login.go", info["entrypoint"])
	assert.NotEmpty(t, info["updated_at"])
}

func TestUpdateArchitecture_MergesTopLevel(t *testing.T) {
	kb := newTestKB(t)
	u := NewUpdater(kb)

	require.True(t, u.UpdateArchitecture(map[string]any{"style": "modular monolith"}))
	require.True(t, u.UpdateArchitecture(map[string]any{"transport": "http"}))

	doc := kb.Store().SafeRead(kb.CorePath("architecture.json"), nil).(map[string]any)
	assert.Equal(t, "modular monolith", doc["style"])
	assert.Equal(t, "http", doc["transport"])
}
