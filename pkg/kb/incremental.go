package kb

import (
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/harun/guardian/internal/observability"
	"github.com/harun/guardian/pkg/cache"
)

const checksumFile = "_checksums.json"

// skipDirs are directory names never scanned for changes.
var skipDirs = map[string]bool{
	"node_modules": true,
	"vendor":       true,
	"dist":         true,
	"build":        true,
	"target":       true,
	"__pycache__":  true,
}

// trackedExtensions are the file types the checksum map covers.
var trackedExtensions = map[string]bool{
	".go":   true,
	".py":   true,
	".js":   true,
	".jsx":  true,
	".ts":   true,
	".tsx":  true,
	".rs":   true,
	".java": true,
	".rb":   true,
	".json": true,
	".yaml": true,
	".yml":  true,
	".toml": true,
	".mod":  true,
	".sum":  true,
}

// manifestFiles are dependency manifests whose change triggers a
// tech-stack refresh.
var manifestFiles = map[string]bool{
	"package.json":     true,
	"go.mod":           true,
	"Cargo.toml":       true,
	"requirements.txt": true,
	"pyproject.toml":   true,
	"pom.xml":          true,
	"build.gradle":     true,
	"Gemfile":          true,
}

// IncrementalUpdater keeps the knowledge base in sync with the project by
// comparing per-file fingerprints against the stored checksum map.
type IncrementalUpdater struct {
	kb      *KB
	scanner *Scanner
	logger  zerolog.Logger
	now     func() time.Time
}

// NewIncrementalUpdater returns an IncrementalUpdater over an open
// knowledge base.
func NewIncrementalUpdater(kb *KB) *IncrementalUpdater {
	return &IncrementalUpdater{
		kb:      kb,
		scanner: NewScanner(kb.projectPath, kb.logger),
		logger:  kb.logger.With().Str("component", "incremental").Logger(),
		now:     time.Now,
	}
}

// DetectChanges walks the project, fingerprints tracked files, and diffs
// the result against the stored checksum map. The map itself is not
// updated; call Run to persist.
func (iu *IncrementalUpdater) DetectChanges() (ChangeSet, map[string]string) {
	previous := iu.loadChecksums()
	current := iu.computeChecksums()

	var changes ChangeSet
	for path, sum := range current {
		old, seen := previous[path]
		switch {
		case !seen:
			changes.Added = append(changes.Added, path)
		case old != sum:
			changes.Modified = append(changes.Modified, path)
		}
	}
	for path := range previous {
		if _, ok := current[path]; !ok {
			changes.Deleted = append(changes.Deleted, path)
		}
	}

	sort.Strings(changes.Added)
	sort.Strings(changes.Modified)
	sort.Strings(changes.Deleted)
	return changes, current
}

// Run detects changes and refreshes the affected records: tech-stack when
// a dependency manifest changed, structure when files were added or
// removed, and the profile timestamp whenever anything changed. The new
// checksum map is persisted last so a partial run is retried next time.
func (iu *IncrementalUpdater) Run() ChangeSet {
	start := iu.now()
	changes, current := iu.DetectChanges()
	if changes.Empty() {
		iu.logger.Debug().Msg("no changes detected")
		return changes
	}

	if iu.manifestChanged(changes) {
		iu.refreshTechStack()
	}
	if len(changes.Added) > 0 || len(changes.Deleted) > 0 {
		iu.refreshStructure()
	}
	iu.touchProfile(changes)
	iu.saveChecksums(current)

	observability.RecordUpdateRun(iu.now().Sub(start), true)
	iu.logger.Info().
		Int("added", len(changes.Added)).
		Int("modified", len(changes.Modified)).
		Int("deleted", len(changes.Deleted)).
		Msg("incremental update complete")
	return changes
}

func (iu *IncrementalUpdater) manifestChanged(changes ChangeSet) bool {
	for _, group := range [][]string{changes.Added, changes.Modified, changes.Deleted} {
		for _, path := range group {
			if manifestFiles[filepath.Base(path)] {
				return true
			}
		}
	}
	return false
}

func (iu *IncrementalUpdater) refreshTechStack() {
	stack := iu.scanner.detectTechStack()
	doc := map[string]any{
		"stack":      stack,
		"updated_at": iu.now().UTC().Format(time.RFC3339),
	}
	if !iu.kb.store.SafeWrite(iu.kb.CorePath("tech-stack.json"), doc) {
		iu.logger.Warn().Msg("tech-stack refresh failed")
	}
}

func (iu *IncrementalUpdater) refreshStructure() {
	doc := map[string]any{
		"layout":     iu.scanner.detectStructure(),
		"updated_at": iu.now().UTC().Format(time.RFC3339),
	}
	if !iu.kb.store.SafeWrite(iu.kb.IndexedPath("structure.json"), doc) {
		iu.logger.Warn().Msg("structure refresh failed")
	}
}

func (iu *IncrementalUpdater) touchProfile(changes ChangeSet) {
	iu.kb.store.SafeUpdate(iu.kb.CorePath("profile.json"), func(current any) any {
		doc, ok := current.(map[string]any)
		if !ok {
			doc = map[string]any{}
		}
		doc["updated_at"] = iu.now().UTC().Format(time.RFC3339)
		doc["last_change_count"] = changes.Total()
		return doc
	}, map[string]any{}, iu.kb.updateTimeout)
}

func (iu *IncrementalUpdater) loadChecksums() map[string]string {
	doc := iu.kb.store.SafeRead(iu.kb.IndexedPath(checksumFile), map[string]any{})
	m, ok := doc.(map[string]any)
	if !ok {
		return map[string]string{}
	}
	out := make(map[string]string, len(m))
	for path, v := range m {
		if sum, ok := v.(string); ok {
			out[path] = sum
		}
	}
	return out
}

func (iu *IncrementalUpdater) saveChecksums(sums map[string]string) {
	doc := make(map[string]any, len(sums))
	for path, sum := range sums {
		doc[path] = sum
	}
	if !iu.kb.store.SafeWrite(iu.kb.IndexedPath(checksumFile), doc) {
		iu.logger.Warn().Msg("checksum map save failed")
	}
}

// computeChecksums fingerprints every tracked file, keyed by path relative
// to the project root. Unreadable files are skipped.
func (iu *IncrementalUpdater) computeChecksums() map[string]string {
	sums := map[string]string{}
	root := iu.kb.projectPath

	_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		name := d.Name()
		if d.IsDir() {
			if path == root {
				return nil
			}
			if strings.HasPrefix(name, ".") || skipDirs[name] {
				return filepath.SkipDir
			}
			return nil
		}
		if !trackedExtensions[filepath.Ext(name)] {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return nil
		}
		if sum := cache.Fingerprint(path); sum != "" {
			sums[rel] = sum
		}
		return nil
	})
	return sums
}
