package kb

import (
	"encoding/json"
	"fmt"
	"time"
)

// Severity levels for bug records.
const (
	SeverityLow      = "low"
	SeverityMedium   = "medium"
	SeverityHigh     = "high"
	SeverityCritical = "critical"
)

// Bug statuses.
const (
	BugStatusOpen       = "open"
	BugStatusInProgress = "in-progress"
	BugStatusResolved   = "resolved"
	BugStatusClosed     = "closed"
)

// Requirement statuses.
const (
	ReqStatusPlanned    = "planned"
	ReqStatusInProgress = "in-progress"
	ReqStatusCompleted  = "completed"
	ReqStatusCancelled  = "cancelled"
)

// Decision statuses.
const (
	DecisionStatusProposed   = "proposed"
	DecisionStatusAccepted   = "accepted"
	DecisionStatusRejected   = "rejected"
	DecisionStatusDeprecated = "deprecated"
)

// Bug is a recorded defect with its diagnosis and fix.
type Bug struct {
	ID           string    `json:"id"`
	RecordedAt   time.Time `json:"recorded_at"`
	Title        string    `json:"title"`
	Description  string    `json:"description,omitempty"`
	RootCause    string    `json:"root_cause,omitempty"`
	Solution     string    `json:"solution,omitempty"`
	FilesChanged []string  `json:"files_changed,omitempty"`
	Tags         []string  `json:"tags,omitempty"`
	Severity     string    `json:"severity"`
	Status       string    `json:"status"`
}

// Requirement is a recorded feature or constraint.
type Requirement struct {
	ID          string    `json:"id"`
	RecordedAt  time.Time `json:"recorded_at"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Priority    string    `json:"priority"`
	Status      string    `json:"status"`
	Tags        []string  `json:"tags,omitempty"`
}

// Decision is a recorded architectural decision.
type Decision struct {
	ID           string    `json:"id"`
	RecordedAt   time.Time `json:"recorded_at"`
	Title        string    `json:"title"`
	Context      string    `json:"context,omitempty"`
	Decision     string    `json:"decision,omitempty"`
	Consequences string    `json:"consequences,omitempty"`
	Status       string    `json:"status"`
	Tags         []string  `json:"tags,omitempty"`
}

// ChangeSet lists project files that changed since the previous checksum
// snapshot, relative to the project root.
type ChangeSet struct {
	Added    []string `json:"added"`
	Modified []string `json:"modified"`
	Deleted  []string `json:"deleted"`
}

// Empty reports whether no changes were detected.
func (c ChangeSet) Empty() bool {
	return len(c.Added) == 0 && len(c.Modified) == 0 && len(c.Deleted) == 0
}

// Total returns the number of changed files.
func (c ChangeSet) Total() int {
	return len(c.Added) + len(c.Modified) + len(c.Deleted)
}

// CheckResult is the outcome of a single health check.
type CheckResult struct {
	Score  int      `json:"score"`
	Issues []string `json:"issues,omitempty"`
}

// HealthReport aggregates all health checks over the knowledge base.
type HealthReport struct {
	ID              string                 `json:"id"`
	GeneratedAt     time.Time              `json:"generated_at"`
	OverallScore    int                    `json:"overall_score"`
	Status          string                 `json:"status"`
	Checks          map[string]CheckResult `json:"checks"`
	Recommendations []string               `json:"recommendations,omitempty"`
}

// ScanResult describes a project as discovered by the scanner.
type ScanResult struct {
	ProjectName string              `json:"project_name"`
	ProjectType string              `json:"project_type"`
	TechStack   map[string][]string `json:"tech_stack"`
	Tools       map[string][]string `json:"tools"`
	Conventions map[string]any      `json:"conventions"`
	Structure   map[string]any      `json:"structure"`
	ScannedAt   time.Time           `json:"scanned_at"`
}

// bugFromDocument decodes a generic stored document back into a Bug.
// Fields that fail to decode are left zero.
func bugFromDocument(m map[string]any) Bug {
	data, err := json.Marshal(m)
	if err != nil {
		return Bug{}
	}
	var bug Bug
	_ = json.Unmarshal(data, &bug)
	return bug
}

// toDocument round-trips a typed record through JSON so it can be stored
// as the generic document shape the store operates on.
func toDocument(v any) (any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode record: %w", err)
	}
	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode record: %w", err)
	}
	return doc, nil
}
