package kb

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHealthStatus_Thresholds(t *testing.T) {
	cases := []struct {
		score  int
		status string
	}{
		{100, "excellent"},
		{90, "excellent"},
		{89, "good"},
		{75, "good"},
		{74, "fair"},
		{60, "fair"},
		{59, "poor"},
		{0, "poor"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.status, healthStatus(tc.score), "score %d", tc.score)
	}
}

func TestCheck_HealthyKnowledgeBase(t *testing.T) {
	kb := newTestKB(t)
	writeCoreRecords(t, kb)
	require.True(t, kb.Store().SafeWrite(kb.IndexedPath("modules.json"), map[string]any{}))

	_, err := NewUpdater(kb).RecordBug(Bug{
		Title:     "watcher misses renames",
		RootCause: "rename arrives as separate create and remove events",
		Solution:  "treat create of a watched name as a change",
		Tags:      []string{"watcher"},
	})
	require.NoError(t, err)

	report := NewHealthChecker(kb).Check()

	assert.Equal(t, 100, report.OverallScore)
	assert.Equal(t, "excellent", report.Status)
	assert.Empty(t, report.Recommendations)
	assert.Regexp(t, `^HLT-`, report.ID)
	assert.Len(t, report.Checks, 5)
}

func TestCheck_EmptyKnowledgeBase(t *testing.T) {
	kb := newTestKB(t)

	report := NewHealthChecker(kb).Check()

	assert.Less(t, report.OverallScore, healthFair)
	assert.Equal(t, "poor", report.Status)
	assert.NotEmpty(t, report.Recommendations)
	assert.Contains(t, report.Recommendations, "re-run the project scan to rebuild core records")
}

func TestCheckBugQuality_PenalizesIncompleteRecords(t *testing.T) {
	kb := newTestKB(t)
	u := NewUpdater(kb)

	_, err := u.RecordBug(Bug{
		Title:     "complete record",
		RootCause: "known",
		Solution:  "fixed",
		Tags:      []string{"known"},
	})
	require.NoError(t, err)
	_, err = u.RecordBug(Bug{Title: "bare record"})
	require.NoError(t, err)

	result := NewHealthChecker(kb).checkBugQuality()

	// Half the records miss each field: 25 + 20 + 10 off.
	assert.Equal(t, 45, result.Score)
	assert.Len(t, result.Issues, 3)
}

func TestCheckBugQuality_NoBugsIsClean(t *testing.T) {
	kb := newTestKB(t)

	result := NewHealthChecker(kb).checkBugQuality()
	assert.Equal(t, 100, result.Score)
	assert.Empty(t, result.Issues)
}

func TestCheckSize_FlagsEmptyHistory(t *testing.T) {
	kb := newTestKB(t)

	result := NewHealthChecker(kb).checkSize()
	assert.Equal(t, 90, result.Score)
}

func TestCheckUsage_ScoresRecentActivity(t *testing.T) {
	kb := newTestKB(t)

	result := NewHealthChecker(kb).checkUsage()
	assert.Equal(t, 40, result.Score, "no oplog entries yet")

	writeCoreRecords(t, kb)
	result = NewHealthChecker(kb).checkUsage()
	assert.Equal(t, 80, result.Score, "a few entries")
}
