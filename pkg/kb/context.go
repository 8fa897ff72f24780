package kb

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"github.com/harun/guardian/pkg/cache"
)

const (
	maxRelatedBugs         = 5
	maxRelatedRequirements = 3
)

// modulePattern maps a logical module to the path fragments and keywords
// that identify it.
type modulePattern struct {
	name     string
	paths    []string
	keywords []string
}

var modulePatterns = []modulePattern{
	{"auth", []string{"auth", "login", "session"}, []string{"auth", "login", "password", "token", "session"}},
	{"api", []string{"api", "routes", "handlers", "endpoints"}, []string{"api", "endpoint", "route", "handler", "request"}},
	{"database", []string{"db", "database", "models", "store", "repository"}, []string{"database", "query", "model", "migration", "schema"}},
	{"ui", []string{"components", "pages", "views", "ui"}, []string{"component", "render", "style", "layout", "page"}},
	{"utils", []string{"utils", "helpers", "lib", "common"}, []string{"util", "helper", "format", "parse"}},
	{"config", []string{"config", "settings"}, []string{"config", "setting", "environment", "env"}},
	{"tests", []string{"test", "tests", "spec"}, []string{"test", "mock", "fixture", "assert"}},
}

var stopWords = map[string]bool{
	"a": true, "an": true, "and": true, "are": true, "as": true, "at": true,
	"be": true, "by": true, "for": true, "from": true, "how": true,
	"i": true, "in": true, "is": true, "it": true, "my": true, "of": true,
	"on": true, "or": true, "that": true, "the": true, "this": true,
	"to": true, "was": true, "what": true, "when": true, "where": true,
	"which": true, "why": true, "with": true,
}

// Context is an assembled slice of the knowledge base, scoped to a file,
// a query, or the minimal core set.
type Context struct {
	Module       string           `json:"module,omitempty"`
	Profile      any              `json:"profile,omitempty"`
	TechStack    any              `json:"tech_stack,omitempty"`
	Conventions  any              `json:"conventions,omitempty"`
	ModuleInfo   map[string]any   `json:"module_info,omitempty"`
	Bugs         []Bug            `json:"bugs,omitempty"`
	Requirements []map[string]any `json:"requirements,omitempty"`
}

// ContextLoader assembles scoped context from the knowledge base. Core
// and indexed records are served through the cache; history records are
// always read fresh.
//
// The loader shares the cache's concurrency contract: all calls must come
// from the goroutine that owns the cache.
type ContextLoader struct {
	kb     *KB
	cache  *cache.Cache
	logger zerolog.Logger
}

// NewContextLoader returns a ContextLoader backed by the given cache.
func NewContextLoader(kb *KB, c *cache.Cache) *ContextLoader {
	return &ContextLoader{
		kb:     kb,
		cache:  c,
		logger: kb.logger.With().Str("component", "context").Logger(),
	}
}

// LoadMinimal returns just the core records.
func (cl *ContextLoader) LoadMinimal() Context {
	return Context{
		Profile:     cl.core("profile.json"),
		TechStack:   cl.core("tech-stack.json"),
		Conventions: cl.core("conventions.json"),
	}
}

// LoadForFile returns the context relevant to a file: the core records,
// the owning module's info, and the bugs most related to that module.
func (cl *ContextLoader) LoadForFile(filePath string) Context {
	ctx := cl.LoadMinimal()
	ctx.Module = identifyModule(filePath)
	if ctx.Module == "" {
		return ctx
	}

	if modules, ok := cl.indexed("modules.json").(map[string]any); ok {
		if info, ok := modules[ctx.Module].(map[string]any); ok {
			ctx.ModuleInfo = info
		}
	}

	keywords := moduleKeywords(ctx.Module)
	ctx.Bugs = cl.relatedBugs(keywords, maxRelatedBugs)
	return ctx
}

// LoadForQuery returns the context relevant to a free-form query: the
// core records plus bugs and requirements scored by keyword overlap.
func (cl *ContextLoader) LoadForQuery(query string) Context {
	ctx := cl.LoadMinimal()

	keywords := extractKeywords(query)
	if len(keywords) == 0 {
		return ctx
	}

	for _, kw := range keywords {
		for _, p := range modulePatterns {
			for _, mk := range p.keywords {
				if kw == mk {
					ctx.Module = p.name
					break
				}
			}
			if ctx.Module != "" {
				break
			}
		}
		if ctx.Module != "" {
			break
		}
	}

	ctx.Bugs = cl.relatedBugs(keywords, maxRelatedBugs)
	ctx.Requirements = cl.relatedRequirements(keywords, maxRelatedRequirements)
	return ctx
}

// Warm pre-loads the core records into the cache.
func (cl *ContextLoader) Warm() int {
	return cl.cache.Warm()
}

func (cl *ContextLoader) core(name string) any {
	return cl.cache.LoadWithCache(cl.kb.CorePath(name), cache.CategoryCore)
}

func (cl *ContextLoader) indexed(name string) any {
	return cl.cache.LoadWithCache(cl.kb.IndexedPath(name), cache.CategoryIndexed)
}

// relatedBugs scores every bug record by keyword occurrences in its
// title, description, and tags, returning the top n scorers.
func (cl *ContextLoader) relatedBugs(keywords []string, n int) []Bug {
	type scored struct {
		bug   Bug
		score int
	}

	var candidates []scored
	for _, bug := range cl.loadHistory("bugs") {
		haystack := strings.ToLower(bug.Title + " " + bug.Description + " " + strings.Join(bug.Tags, " "))
		score := 0
		for _, kw := range keywords {
			score += strings.Count(haystack, kw)
		}
		if score > 0 {
			candidates = append(candidates, scored{bug, score})
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].score > candidates[j].score
	})
	if len(candidates) > n {
		candidates = candidates[:n]
	}

	bugs := make([]Bug, len(candidates))
	for i, c := range candidates {
		bugs[i] = c.bug
	}
	return bugs
}

// relatedRequirements scores requirement records the same way bugs are
// scored.
func (cl *ContextLoader) relatedRequirements(keywords []string, n int) []map[string]any {
	type scored struct {
		doc   map[string]any
		score int
	}

	var candidates []scored
	for _, doc := range cl.loadHistoryDocs("requirements") {
		title, _ := doc["title"].(string)
		desc, _ := doc["description"].(string)
		haystack := strings.ToLower(title + " " + desc)
		score := 0
		for _, kw := range keywords {
			score += strings.Count(haystack, kw)
		}
		if score > 0 {
			candidates = append(candidates, scored{doc, score})
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].score > candidates[j].score
	})
	if len(candidates) > n {
		candidates = candidates[:n]
	}

	docs := make([]map[string]any, len(candidates))
	for i, c := range candidates {
		docs[i] = c.doc
	}
	return docs
}

func (cl *ContextLoader) loadHistory(kind string) []Bug {
	var bugs []Bug
	for _, doc := range cl.loadHistoryDocs(kind) {
		bugs = append(bugs, bugFromDocument(doc))
	}
	return bugs
}

// loadHistoryDocs reads history records straight from disk. History is
// never cached; a stale bug list is worse than the extra reads.
func (cl *ContextLoader) loadHistoryDocs(kind string) []map[string]any {
	dir := cl.kb.HistoryDir(kind)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}

	var docs []map[string]any
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".json") || strings.HasPrefix(name, "_") {
			continue
		}
		doc := cl.kb.store.SafeRead(filepath.Join(dir, name), nil)
		if m, ok := doc.(map[string]any); ok {
			docs = append(docs, m)
		}
	}
	return docs
}

// identifyModule matches a file path against the module patterns.
func identifyModule(filePath string) string {
	lower := strings.ToLower(filepath.ToSlash(filePath))
	for _, p := range modulePatterns {
		for _, fragment := range p.paths {
			if strings.Contains(lower, "/"+fragment+"/") ||
				strings.HasPrefix(lower, fragment+"/") ||
				strings.Contains(lower, fragment+".") {
				return p.name
			}
		}
	}
	return ""
}

func moduleKeywords(module string) []string {
	for _, p := range modulePatterns {
		if p.name == module {
			return p.keywords
		}
	}
	return nil
}

// extractKeywords lowercases, strips punctuation, and drops stop words
// and short tokens.
func extractKeywords(query string) []string {
	fields := strings.FieldsFunc(strings.ToLower(query), func(r rune) bool {
		return !('a' <= r && r <= 'z') && !('0' <= r && r <= '9')
	})

	var keywords []string
	for _, f := range fields {
		if len(f) < 3 || stopWords[f] {
			continue
		}
		keywords = appendUnique(keywords, f)
	}
	return keywords
}
