// Package kb implements the project knowledge base: typed records (bugs,
// requirements, decisions) persisted as JSON files through the lock-protected
// store, plus the scanner, updaters, health checker, and context loader that
// maintain them.
package kb

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/harun/guardian/pkg/store"
)

// ErrNotInitialized indicates the knowledge base directory does not exist yet.
var ErrNotInitialized = errors.New("knowledge base not initialized")

// Default layout names inside the knowledge base directory.
const (
	DefaultKBDir     = ".guardian"
	DefaultOplogFile = "operations.log"

	coreDir    = "core"
	indexedDir = "indexed"
	historyDir = "history"
)

// Options configures how a knowledge base is opened.
type Options struct {
	// KBDir is the knowledge base directory name inside the project.
	// Defaults to DefaultKBDir.
	KBDir string
	// OplogFile is the operation log filename inside the KB directory.
	// Defaults to DefaultOplogFile.
	OplogFile string
	// UpdateTimeout bounds lock waits for read-modify-write updates.
	UpdateTimeout time.Duration
}

func (o *Options) applyDefaults() {
	if o.KBDir == "" {
		o.KBDir = DefaultKBDir
	}
	if o.OplogFile == "" {
		o.OplogFile = DefaultOplogFile
	}
	if o.UpdateTimeout <= 0 {
		o.UpdateTimeout = store.DefaultUpdateTimeout
	}
}

// KB is an open knowledge base rooted at <project>/<kb-dir>.
type KB struct {
	projectPath   string
	root          string
	store         *store.Store
	oplog         *store.OperationLog
	updateTimeout time.Duration
	logger        zerolog.Logger
}

// Open opens an existing knowledge base. It fails with ErrNotInitialized
// when the directory is missing; run a scan first to create it.
func Open(projectPath string, opts Options, logger zerolog.Logger) (*KB, error) {
	opts.applyDefaults()

	abs, err := filepath.Abs(projectPath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve project path: %w", err)
	}

	root := filepath.Join(abs, opts.KBDir)
	if _, err := os.Stat(root); os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: %s", ErrNotInitialized, root)
	}

	return newKB(abs, root, opts, logger), nil
}

// Create opens a knowledge base, creating its directory layout if missing.
// Used by the scanner for initial population.
func Create(projectPath string, opts Options, logger zerolog.Logger) (*KB, error) {
	opts.applyDefaults()

	abs, err := filepath.Abs(projectPath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve project path: %w", err)
	}

	root := filepath.Join(abs, opts.KBDir)
	dirs := []string{
		filepath.Join(root, coreDir),
		filepath.Join(root, indexedDir),
		filepath.Join(root, historyDir, "bugs"),
		filepath.Join(root, historyDir, "requirements"),
		filepath.Join(root, historyDir, "decisions"),
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}

	return newKB(abs, root, opts, logger), nil
}

func newKB(projectPath, root string, opts Options, logger zerolog.Logger) *KB {
	oplog := store.NewOperationLog(filepath.Join(root, opts.OplogFile), logger)
	return &KB{
		projectPath:   projectPath,
		root:          root,
		store:         store.NewStore(logger, oplog),
		oplog:         oplog,
		updateTimeout: opts.UpdateTimeout,
		logger:        logger.With().Str("component", "kb").Logger(),
	}
}

// ProjectPath returns the project root the knowledge base belongs to.
func (k *KB) ProjectPath() string {
	return k.projectPath
}

// Root returns the knowledge base directory.
func (k *KB) Root() string {
	return k.root
}

// Store returns the underlying record store.
func (k *KB) Store() *store.Store {
	return k.store
}

// Oplog returns the operation log.
func (k *KB) Oplog() *store.OperationLog {
	return k.oplog
}

// CorePath returns the path of a core record.
func (k *KB) CorePath(name string) string {
	return filepath.Join(k.root, coreDir, name)
}

// IndexedPath returns the path of an indexed record.
func (k *KB) IndexedPath(name string) string {
	return filepath.Join(k.root, indexedDir, name)
}

// HistoryPath returns the path of a history record of the given kind
// (bugs, requirements, decisions).
func (k *KB) HistoryPath(kind, name string) string {
	return filepath.Join(k.root, historyDir, kind, name)
}

// HistoryDir returns the directory of a history kind.
func (k *KB) HistoryDir(kind string) string {
	return filepath.Join(k.root, historyDir, kind)
}
