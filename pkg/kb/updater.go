package kb

import (
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// ErrInvalidRecord indicates a record failed schema validation.
var ErrInvalidRecord = errors.New("invalid record")

// ErrWriteFailed indicates the store could not persist a record.
var ErrWriteFailed = errors.New("failed to write record")

// Updater appends history records and merges indexed metadata. All writes
// go through the lock-protected store.
type Updater struct {
	kb     *KB
	logger zerolog.Logger
	now    func() time.Time
}

// NewUpdater returns an Updater over an open knowledge base.
func NewUpdater(kb *KB) *Updater {
	return &Updater{
		kb:     kb,
		logger: kb.logger.With().Str("component", "updater").Logger(),
		now:    time.Now,
	}
}

// RecordBug persists a bug record and maintains the bug index. Missing
// severity defaults to medium and missing status to resolved, since bugs
// are normally recorded after the fix. Returns the assigned ID.
func (u *Updater) RecordBug(bug Bug) (string, error) {
	if bug.Severity == "" {
		bug.Severity = SeverityMedium
	}
	if bug.Status == "" {
		bug.Status = BugStatusResolved
	}
	bug.ID = newRecordID("BUG", u.now())
	bug.RecordedAt = u.now().UTC()

	if ok, msg := ValidateBug(bug); !ok {
		return "", fmt.Errorf("%w: %s", ErrInvalidRecord, msg)
	}
	if err := u.writeRecord(u.kb.HistoryPath("bugs", bug.ID+".json"), bug); err != nil {
		return "", err
	}
	u.updateBugIndex(bug)

	u.logger.Info().Str("id", bug.ID).Str("severity", bug.Severity).Msg("bug recorded")
	return bug.ID, nil
}

// RecordRequirement persists a requirement record. Missing priority
// defaults to medium and missing status to planned.
func (u *Updater) RecordRequirement(req Requirement) (string, error) {
	if req.Priority == "" {
		req.Priority = SeverityMedium
	}
	if req.Status == "" {
		req.Status = ReqStatusPlanned
	}
	req.ID = newRecordID("REQ", u.now())
	req.RecordedAt = u.now().UTC()

	if ok, msg := ValidateRequirement(req); !ok {
		return "", fmt.Errorf("%w: %s", ErrInvalidRecord, msg)
	}
	if err := u.writeRecord(u.kb.HistoryPath("requirements", req.ID+".json"), req); err != nil {
		return "", err
	}

	u.logger.Info().Str("id", req.ID).Msg("requirement recorded")
	return req.ID, nil
}

// RecordDecision persists an architectural decision record. Missing status
// defaults to proposed.
func (u *Updater) RecordDecision(dec Decision) (string, error) {
	if dec.Status == "" {
		dec.Status = DecisionStatusProposed
	}
	dec.ID = newRecordID("DEC", u.now())
	dec.RecordedAt = u.now().UTC()

	if ok, msg := ValidateDecision(dec); !ok {
		return "", fmt.Errorf("%w: %s", ErrInvalidRecord, msg)
	}
	if err := u.writeRecord(u.kb.HistoryPath("decisions", dec.ID+".json"), dec); err != nil {
		return "", err
	}

	u.logger.Info().Str("id", dec.ID).Msg("decision recorded")
	return dec.ID, nil
}

// UpdateModuleInfo merges module metadata into the indexed modules record
// under the given module name.
func (u *Updater) UpdateModuleInfo(module string, info map[string]any) bool {
	path := u.kb.IndexedPath("modules.json")
	return u.kb.store.SafeUpdate(path, func(current any) any {
		doc, ok := current.(map[string]any)
		if !ok {
			doc = map[string]any{}
		}
		existing, _ := doc[module].(map[string]any)
		if existing == nil {
			existing = map[string]any{}
		}
		for k, v := range info {
			existing[k] = v
		}
		existing["updated_at"] = u.now().UTC().Format(time.RFC3339)
		doc[module] = existing
		return doc
	}, map[string]any{}, u.kb.updateTimeout)
}

// UpdateArchitecture merges top-level keys into the core architecture
// record.
func (u *Updater) UpdateArchitecture(updates map[string]any) bool {
	path := u.kb.CorePath("architecture.json")
	return u.kb.store.SafeUpdate(path, func(current any) any {
		doc, ok := current.(map[string]any)
		if !ok {
			doc = map[string]any{}
		}
		for k, v := range updates {
			doc[k] = v
		}
		doc["updated_at"] = u.now().UTC().Format(time.RFC3339)
		return doc
	}, map[string]any{}, u.kb.updateTimeout)
}

func (u *Updater) writeRecord(path string, record any) error {
	doc, err := toDocument(record)
	if err != nil {
		return err
	}
	if !u.kb.store.SafeWrite(path, doc) {
		return fmt.Errorf("%w: %s", ErrWriteFailed, path)
	}
	return nil
}

// updateBugIndex maintains history/bugs/_index.json: the ordered list of
// bug IDs plus a tag to IDs mapping. Best effort, a failed index update
// never fails the recording.
func (u *Updater) updateBugIndex(bug Bug) {
	path := u.kb.HistoryPath("bugs", "_index.json")
	def := map[string]any{"bugs": []any{}, "tags": map[string]any{}}

	ok := u.kb.store.SafeUpdate(path, func(current any) any {
		doc, isMap := current.(map[string]any)
		if !isMap {
			doc = map[string]any{"bugs": []any{}, "tags": map[string]any{}}
		}

		bugs, _ := doc["bugs"].([]any)
		doc["bugs"] = append(bugs, bug.ID)

		tags, _ := doc["tags"].(map[string]any)
		if tags == nil {
			tags = map[string]any{}
		}
		for _, tag := range bug.Tags {
			ids, _ := tags[tag].([]any)
			tags[tag] = append(ids, bug.ID)
		}
		doc["tags"] = tags
		return doc
	}, def, u.kb.updateTimeout)

	if !ok {
		u.logger.Warn().Str("id", bug.ID).Msg("bug index update failed")
	}
}
