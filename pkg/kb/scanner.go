package kb

import (
	"bufio"
	"encoding/json"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// languageByExtension maps source file extensions to language names.
var languageByExtension = map[string]string{
	".go":   "Go",
	".py":   "Python",
	".js":   "JavaScript",
	".jsx":  "JavaScript",
	".ts":   "TypeScript",
	".tsx":  "TypeScript",
	".rs":   "Rust",
	".java": "Java",
	".rb":   "Ruby",
}

// Scanner discovers a project's shape: languages, dependencies, tooling,
// conventions, and layout. Its output seeds the knowledge base.
type Scanner struct {
	projectPath string
	logger      zerolog.Logger
	now         func() time.Time
}

// NewScanner returns a Scanner rooted at the given project path.
func NewScanner(projectPath string, logger zerolog.Logger) *Scanner {
	return &Scanner{
		projectPath: projectPath,
		logger:      logger.With().Str("component", "scanner").Logger(),
		now:         time.Now,
	}
}

// Scan inspects the project and returns what it found.
func (s *Scanner) Scan() ScanResult {
	stack := s.detectTechStack()
	result := ScanResult{
		ProjectName: filepath.Base(s.projectPath),
		ProjectType: s.detectProjectType(stack),
		TechStack:   stack,
		Tools:       s.detectTools(),
		Conventions: s.detectConventions(),
		Structure:   s.detectStructure(),
		ScannedAt:   s.now().UTC(),
	}

	s.logger.Info().
		Str("project", result.ProjectName).
		Str("type", result.ProjectType).
		Msg("project scanned")
	return result
}

// Initialize creates the knowledge base layout, writes the scan result
// into core and indexed records, and seeds the checksum map so the first
// incremental run starts from a clean baseline.
func (s *Scanner) Initialize(opts Options) (*KB, error) {
	result := s.Scan()

	kb, err := Create(s.projectPath, opts, s.logger)
	if err != nil {
		return nil, err
	}

	ts := result.ScannedAt.Format(time.RFC3339)
	records := []struct {
		path string
		doc  map[string]any
	}{
		{kb.CorePath("profile.json"), map[string]any{
			"name":       result.ProjectName,
			"type":       result.ProjectType,
			"scanned_at": ts,
			"updated_at": ts,
		}},
		{kb.CorePath("tech-stack.json"), map[string]any{
			"stack":      result.TechStack,
			"updated_at": ts,
		}},
		{kb.CorePath("conventions.json"), map[string]any{
			"conventions": result.Conventions,
			"updated_at":  ts,
		}},
		{kb.IndexedPath("structure.json"), map[string]any{
			"layout":     result.Structure,
			"updated_at": ts,
		}},
		{kb.IndexedPath("tools.json"), map[string]any{
			"tools":      result.Tools,
			"updated_at": ts,
		}},
		{kb.IndexedPath("modules.json"), map[string]any{}},
	}
	for _, r := range records {
		if !kb.store.SafeWrite(r.path, r.doc) {
			s.logger.Warn().Str("path", r.path).Msg("record seed failed")
		}
	}

	iu := NewIncrementalUpdater(kb)
	iu.saveChecksums(iu.computeChecksums())

	s.writeReadme(kb, result)
	return kb, nil
}

func (s *Scanner) writeReadme(kb *KB, result ScanResult) {
	var b strings.Builder
	b.WriteString("# Project Knowledge Base\n\n")
	b.WriteString("Generated for " + result.ProjectName + " (" + result.ProjectType + ").\n\n")
	b.WriteString("- core/ holds the project profile, tech stack, and conventions\n")
	b.WriteString("- indexed/ holds per-module info, structure, tools, and checksums\n")
	b.WriteString("- history/ holds bug, requirement, and decision records\n")

	path := filepath.Join(kb.Root(), "README.md")
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		s.logger.Warn().Err(err).Msg("readme write failed")
	}
}

// detectTechStack gathers languages by extension count and dependencies
// from whichever manifests the project carries.
func (s *Scanner) detectTechStack() map[string][]string {
	stack := map[string][]string{}

	if langs := s.detectLanguages(); len(langs) > 0 {
		stack["languages"] = langs
	}
	if deps := s.readPackageJSON(); len(deps) > 0 {
		stack["node"] = deps
	}
	if deps := s.readGoMod(); len(deps) > 0 {
		stack["go"] = deps
	}
	if deps := s.readRequirements(); len(deps) > 0 {
		stack["python"] = deps
	}
	if deps := s.readCargoToml(); len(deps) > 0 {
		stack["rust"] = deps
	}
	return stack
}

func (s *Scanner) detectLanguages() []string {
	counts := map[string]int{}
	_ = filepath.WalkDir(s.projectPath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		name := d.Name()
		if d.IsDir() {
			if path != s.projectPath && (strings.HasPrefix(name, ".") || skipDirs[name]) {
				return filepath.SkipDir
			}
			return nil
		}
		if lang, ok := languageByExtension[filepath.Ext(name)]; ok {
			counts[lang]++
		}
		return nil
	})

	langs := make([]string, 0, len(counts))
	for lang := range counts {
		langs = append(langs, lang)
	}
	sort.Slice(langs, func(i, j int) bool {
		if counts[langs[i]] != counts[langs[j]] {
			return counts[langs[i]] > counts[langs[j]]
		}
		return langs[i] < langs[j]
	})
	return langs
}

func (s *Scanner) readPackageJSON() []string {
	data, err := os.ReadFile(filepath.Join(s.projectPath, "package.json"))
	if err != nil {
		return nil
	}
	var manifest struct {
		Dependencies    map[string]string `json:"dependencies"`
		DevDependencies map[string]string `json:"devDependencies"`
	}
	if err := json.Unmarshal(data, &manifest); err != nil {
		return nil
	}

	var deps []string
	for name := range manifest.Dependencies {
		deps = append(deps, name)
	}
	for name := range manifest.DevDependencies {
		deps = append(deps, name)
	}
	sort.Strings(deps)
	return deps
}

func (s *Scanner) readGoMod() []string {
	f, err := os.Open(filepath.Join(s.projectPath, "go.mod"))
	if err != nil {
		return nil
	}
	defer f.Close()

	var deps []string
	inBlock := false
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch {
		case strings.HasPrefix(line, "require ("):
			inBlock = true
		case inBlock && line == ")":
			inBlock = false
		case inBlock || strings.HasPrefix(line, "require "):
			line = strings.TrimPrefix(line, "require ")
			fields := strings.Fields(line)
			if len(fields) >= 1 && !strings.HasPrefix(fields[0], "//") && strings.Contains(fields[0], "/") {
				deps = append(deps, fields[0])
			}
		}
	}
	sort.Strings(deps)
	return deps
}

func (s *Scanner) readRequirements() []string {
	data, err := os.ReadFile(filepath.Join(s.projectPath, "requirements.txt"))
	if err != nil {
		return nil
	}

	var deps []string
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "-") {
			continue
		}
		name := line
		for _, sep := range []string{"==", ">=", "<=", "~=", ">", "<", "["} {
			if idx := strings.Index(name, sep); idx >= 0 {
				name = name[:idx]
			}
		}
		if name = strings.TrimSpace(name); name != "" {
			deps = append(deps, name)
		}
	}
	sort.Strings(deps)
	return deps
}

func (s *Scanner) readCargoToml() []string {
	f, err := os.Open(filepath.Join(s.projectPath, "Cargo.toml"))
	if err != nil {
		return nil
	}
	defer f.Close()

	var deps []string
	inDeps := false
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if strings.HasPrefix(line, "[") {
			inDeps = line == "[dependencies]" || line == "[dev-dependencies]"
			continue
		}
		if !inDeps || line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if idx := strings.Index(line, "="); idx > 0 {
			deps = append(deps, strings.TrimSpace(line[:idx]))
		}
	}
	sort.Strings(deps)
	return deps
}

// detectProjectType classifies the project from its manifests and
// dependency names.
func (s *Scanner) detectProjectType(stack map[string][]string) string {
	node := stack["node"]
	for _, dep := range node {
		switch dep {
		case "react", "next", "vue", "svelte":
			return "web-frontend"
		case "express", "fastify", "koa", "@nestjs/core":
			return "web-backend"
		}
	}

	if deps := stack["go"]; len(deps) > 0 {
		for _, dep := range deps {
			if strings.Contains(dep, "cobra") || strings.Contains(dep, "urfave/cli") {
				return "cli-tool"
			}
		}
		return "service"
	}
	if s.fileExists("go.mod") {
		return "go-library"
	}
	if len(stack["python"]) > 0 || s.fileExists("pyproject.toml") {
		return "python-project"
	}
	if len(stack["rust"]) > 0 || s.fileExists("Cargo.toml") {
		return "rust-project"
	}
	if len(node) > 0 {
		return "node-project"
	}
	return "unknown"
}

func (s *Scanner) detectTools() map[string][]string {
	tools := map[string][]string{}

	markers := []struct {
		category string
		tool     string
		paths    []string
	}{
		{"lint", "golangci-lint", []string{".golangci.yml", ".golangci.yaml"}},
		{"lint", "eslint", []string{".eslintrc", ".eslintrc.js", ".eslintrc.json", "eslint.config.js"}},
		{"format", "prettier", []string{".prettierrc", ".prettierrc.json", "prettier.config.js"}},
		{"build", "make", []string{"Makefile"}},
		{"build", "docker", []string{"Dockerfile", "docker-compose.yml"}},
		{"ci", "github-actions", []string{".github/workflows"}},
		{"ci", "gitlab-ci", []string{".gitlab-ci.yml"}},
	}
	for _, m := range markers {
		for _, p := range m.paths {
			if s.fileExists(p) {
				tools[m.category] = append(tools[m.category], m.tool)
				break
			}
		}
	}
	return tools
}

func (s *Scanner) detectConventions() map[string]any {
	conventions := map[string]any{}

	var testPatterns []string
	_ = filepath.WalkDir(s.projectPath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if path != s.projectPath && (strings.HasPrefix(d.Name(), ".") || skipDirs[d.Name()]) {
				return filepath.SkipDir
			}
			return nil
		}
		name := d.Name()
		switch {
		case strings.HasSuffix(name, "_test.go"):
			testPatterns = appendUnique(testPatterns, "*_test.go")
		case strings.HasPrefix(name, "test_") && strings.HasSuffix(name, ".py"):
			testPatterns = appendUnique(testPatterns, "test_*.py")
		case strings.HasSuffix(name, ".spec.ts") || strings.HasSuffix(name, ".spec.js"):
			testPatterns = appendUnique(testPatterns, "*.spec.*")
		case strings.HasSuffix(name, ".test.ts") || strings.HasSuffix(name, ".test.js"):
			testPatterns = appendUnique(testPatterns, "*.test.*")
		}
		return nil
	})
	if len(testPatterns) > 0 {
		sort.Strings(testPatterns)
		conventions["test_patterns"] = testPatterns
	}
	if s.fileExists(".editorconfig") {
		conventions["editorconfig"] = true
	}
	return conventions
}

// detectStructure lists top-level directories with their tracked file
// counts.
func (s *Scanner) detectStructure() map[string]any {
	structure := map[string]any{}

	entries, err := os.ReadDir(s.projectPath)
	if err != nil {
		return structure
	}
	for _, entry := range entries {
		name := entry.Name()
		if !entry.IsDir() || strings.HasPrefix(name, ".") || skipDirs[name] {
			continue
		}
		count := 0
		_ = filepath.WalkDir(filepath.Join(s.projectPath, name), func(_ string, d fs.DirEntry, err error) error {
			if err != nil {
				return nil
			}
			if d.IsDir() && (strings.HasPrefix(d.Name(), ".") || skipDirs[d.Name()]) {
				return filepath.SkipDir
			}
			if !d.IsDir() && trackedExtensions[filepath.Ext(d.Name())] {
				count++
			}
			return nil
		})
		structure[name] = map[string]any{"files": count}
	}
	return structure
}

func (s *Scanner) fileExists(rel string) bool {
	_, err := os.Stat(filepath.Join(s.projectPath, rel))
	return err == nil
}

func appendUnique(list []string, v string) []string {
	for _, item := range list {
		if item == v {
			return list
		}
	}
	return append(list, v)
}
