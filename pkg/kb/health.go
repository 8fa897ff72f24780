package kb

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/harun/guardian/internal/observability"
)

// Health status thresholds over the overall score.
const (
	healthExcellent = 90
	healthGood      = 75
	healthFair      = 60
)

// staleAfter is how long a core record may go without updates before the
// freshness check flags it.
const staleAfter = 30 * 24 * time.Hour

// usageWindow is the activity window inspected by the usage check.
const usageWindow = 30 * 24 * time.Hour

// HealthChecker scores the knowledge base across freshness, completeness,
// bug quality, size, and usage. It reads records directly through the
// store so scores always reflect what is on disk, never a cached copy.
type HealthChecker struct {
	kb     *KB
	logger zerolog.Logger
	now    func() time.Time
}

// NewHealthChecker returns a HealthChecker over an open knowledge base.
func NewHealthChecker(kb *KB) *HealthChecker {
	return &HealthChecker{
		kb:     kb,
		logger: kb.logger.With().Str("component", "health").Logger(),
		now:    time.Now,
	}
}

// Check runs every health check and assembles a report. The overall score
// is the mean of the individual check scores.
func (h *HealthChecker) Check() HealthReport {
	checks := map[string]CheckResult{
		"freshness":    h.checkFreshness(),
		"completeness": h.checkCompleteness(),
		"bug_quality":  h.checkBugQuality(),
		"size":         h.checkSize(),
		"usage":        h.checkUsage(),
	}

	total := 0
	var issues []string
	for name, result := range checks {
		total += result.Score
		issues = append(issues, result.Issues...)
		observability.SetHealthScore(name, result.Score)
	}
	overall := total / len(checks)
	observability.SetHealthScore("overall", overall)

	report := HealthReport{
		ID:              "HLT-" + uuid.NewString(),
		GeneratedAt:     h.now().UTC(),
		OverallScore:    overall,
		Status:          healthStatus(overall),
		Checks:          checks,
		Recommendations: recommendations(issues),
	}

	h.logger.Info().
		Int("score", overall).
		Str("status", report.Status).
		Msg("health check complete")
	return report
}

func healthStatus(score int) string {
	switch {
	case score >= healthExcellent:
		return "excellent"
	case score >= healthGood:
		return "good"
	case score >= healthFair:
		return "fair"
	default:
		return "poor"
	}
}

// checkFreshness penalizes core records that are missing or have not been
// touched within the staleness window.
func (h *HealthChecker) checkFreshness() CheckResult {
	result := CheckResult{Score: 100}
	cutoff := h.now().Add(-staleAfter)

	for _, name := range []string{"profile.json", "tech-stack.json", "conventions.json"} {
		path := h.kb.CorePath(name)
		info, err := os.Stat(path)
		if err != nil {
			result.Score -= 20
			result.Issues = append(result.Issues, "core record missing: "+name)
			continue
		}
		if info.ModTime().Before(cutoff) {
			result.Score -= 10
			result.Issues = append(result.Issues, "core record stale: "+name)
		}
	}

	if result.Score < 0 {
		result.Score = 0
	}
	return result
}

// checkCompleteness verifies the expected records exist and hold content.
func (h *HealthChecker) checkCompleteness() CheckResult {
	result := CheckResult{Score: 100}

	core := []string{"profile.json", "tech-stack.json", "conventions.json"}
	for _, name := range core {
		doc := h.kb.store.SafeRead(h.kb.CorePath(name), nil)
		if doc == nil {
			result.Score -= 25
			result.Issues = append(result.Issues, "missing core record: "+name)
			continue
		}
		if m, ok := doc.(map[string]any); ok && len(m) == 0 {
			result.Score -= 10
			result.Issues = append(result.Issues, "empty core record: "+name)
		}
	}

	if h.kb.store.SafeRead(h.kb.IndexedPath("modules.json"), nil) == nil {
		result.Score -= 10
		result.Issues = append(result.Issues, "missing indexed record: modules.json")
	}

	if result.Score < 0 {
		result.Score = 0
	}
	return result
}

// checkBugQuality measures how completely bug records are filled in.
// Penalties scale with the share of bugs missing each field, capped so a
// single weak field cannot zero the score on its own.
func (h *HealthChecker) checkBugQuality() CheckResult {
	result := CheckResult{Score: 100}

	bugs := h.loadBugs()
	if len(bugs) == 0 {
		return result
	}

	var noSolution, noRootCause, noTags int
	for _, bug := range bugs {
		if strings.TrimSpace(bug.Solution) == "" {
			noSolution++
		}
		if strings.TrimSpace(bug.RootCause) == "" {
			noRootCause++
		}
		if len(bug.Tags) == 0 {
			noTags++
		}
	}

	n := float64(len(bugs))
	if noSolution > 0 {
		ratio := float64(noSolution) / n
		result.Score -= minInt(30, int(ratio*50))
		result.Issues = append(result.Issues, "bugs without solutions recorded")
	}
	if noRootCause > 0 {
		ratio := float64(noRootCause) / n
		result.Score -= minInt(20, int(ratio*40))
		result.Issues = append(result.Issues, "bugs without root cause analysis")
	}
	if noTags > 0 {
		ratio := float64(noTags) / n
		result.Score -= minInt(10, int(ratio*20))
		result.Issues = append(result.Issues, "bugs without tags")
	}

	if result.Score < 0 {
		result.Score = 0
	}
	return result
}

// checkSize flags a bug history that has grown past the archival point,
// or one that is empty.
func (h *HealthChecker) checkSize() CheckResult {
	result := CheckResult{Score: 100}

	count := h.countBugFiles()
	switch {
	case count > 500:
		result.Score -= 20
		result.Issues = append(result.Issues, "bug history oversized")
	case count == 0:
		result.Score -= 10
		result.Issues = append(result.Issues, "no bugs recorded")
	}
	return result
}

// checkUsage inspects recent operation log activity.
func (h *HealthChecker) checkUsage() CheckResult {
	result := CheckResult{Score: 100}
	cutoff := h.now().Add(-usageWindow)

	recent := 0
	for _, entry := range h.kb.oplog.Recent(1000) {
		if entry.Timestamp.After(cutoff) {
			recent++
		}
	}

	switch {
	case recent == 0:
		result.Score = 40
		result.Issues = append(result.Issues, "no recent activity")
	case recent < 5:
		result.Score = 80
		result.Issues = append(result.Issues, "low recent activity")
	}
	return result
}

// loadBugs reads every bug record directly from disk, skipping the index
// file and anything unreadable.
func (h *HealthChecker) loadBugs() []Bug {
	dir := h.kb.HistoryDir("bugs")
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}

	var bugs []Bug
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".json") || strings.HasPrefix(name, "_") {
			continue
		}
		doc := h.kb.store.SafeRead(filepath.Join(dir, name), nil)
		m, ok := doc.(map[string]any)
		if !ok {
			continue
		}
		bugs = append(bugs, bugFromDocument(m))
	}
	return bugs
}

func (h *HealthChecker) countBugFiles() int {
	entries, err := os.ReadDir(h.kb.HistoryDir("bugs"))
	if err != nil {
		return 0
	}
	count := 0
	for _, entry := range entries {
		name := entry.Name()
		if !entry.IsDir() && strings.HasSuffix(name, ".json") && !strings.HasPrefix(name, "_") {
			count++
		}
	}
	return count
}

// recommendations maps known issue patterns to actionable advice,
// deduplicated in issue order.
func recommendations(issues []string) []string {
	advice := []struct{ match, text string }{
		{"without solutions", "fill in solutions for recorded bugs"},
		{"without root cause", "add root cause analysis to recorded bugs"},
		{"without tags", "tag bugs so the context loader can find them"},
		{"stale", "run an update to refresh core records"},
		{"missing core record", "re-run the project scan to rebuild core records"},
		{"missing indexed record", "run an update to rebuild indexed records"},
		{"oversized", "archive old bug records"},
		{"no recent activity", "record bugs and decisions as you work"},
	}

	var out []string
	seen := map[string]bool{}
	for _, issue := range issues {
		for _, a := range advice {
			if strings.Contains(issue, a.match) && !seen[a.text] {
				seen[a.text] = true
				out = append(out, a.text)
			}
		}
	}
	return out
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
