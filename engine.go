package pake

import (
	"context"
	"log/slog"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/pakebuild/pake/internal/journal"
	"github.com/pakebuild/pake/internal/log"
	"github.com/pakebuild/pake/internal/statefile"
)

// RebuildMode controls how much of the staleness check is bypassed.
type RebuildMode int

const (
	// RebuildNone rebuilds only targets whose inputs or outputs changed.
	RebuildNone RebuildMode = iota
	// RebuildListed forces the explicitly requested targets to rebuild;
	// their dependencies still follow the normal staleness check.
	RebuildListed
	// RebuildAll forces every target reached during the run to rebuild.
	RebuildAll
)

// DefaultStateFile is the state file path used when none is configured,
// relative to the engine root.
const DefaultStateFile = ".pake-state"

// Engine holds the rule registry and build configuration. Create one with
// New, register rules, then call Build. The first Build freezes the
// registry.
type Engine struct {
	root        string
	statePath   string
	journalPath string
	rebuild     RebuildMode
	logger      *slog.Logger

	exact    map[string]*rule
	virtuals map[string]*rule
	patterns []*rule
	fallback *rule
	frozen   bool

	uniqueToken string
}

// Option configures an Engine.
type Option func(*Engine)

// WithStateFile sets the state file path. Relative paths resolve against
// the engine root.
func WithStateFile(path string) Option {
	return func(e *Engine) { e.statePath = path }
}

// WithJournal enables run history in a SQLite database at path. Journal
// failures are logged and never fail a build.
func WithJournal(path string) Option {
	return func(e *Engine) { e.journalPath = path }
}

// WithRebuild overrides the staleness check.
func WithRebuild(mode RebuildMode) Option {
	return func(e *Engine) { e.rebuild = mode }
}

// WithLogger replaces the engine's logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// New creates an engine rooted at root ("." if empty). All file targets are
// interpreted relative to the root and must stay inside it.
func New(root string, opts ...Option) *Engine {
	if root == "" {
		root = "."
	}
	e := &Engine{
		root:        root,
		statePath:   DefaultStateFile,
		logger:      log.WithComponent("engine"),
		exact:       make(map[string]*rule),
		virtuals:    make(map[string]*rule),
		fallback:    &rule{kind: kindFallback},
		uniqueToken: "unique:" + uuid.NewString(),
	}
	e.virtuals[AlwaysName] = &rule{kind: kindAlways, name: AlwaysName}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Root returns the engine root directory.
func (e *Engine) Root() string { return e.root }

// Path maps a target name to the filesystem path the engine would read or
// write for it. Useful inside recipes that shell out.
func (e *Engine) Path(target string) (string, error) {
	canonical, err := normalizePath(e.root, target)
	if err != nil {
		return "", err
	}
	return targetPath(e.root, canonical), nil
}

// Build resolves the given targets (or "default" when none are given)
// depth-first, rebuilding whatever is stale, and returns the number of rule
// recipes that ran. State recorded before a failure is saved; the first
// error stops the walk.
func (e *Engine) Build(ctx context.Context, targets []string) (int, error) {
	e.frozen = true

	if len(targets) == 0 {
		if _, ok := e.virtuals[DefaultName]; !ok {
			return 0, &Error{Kind: ErrNoRule, Target: DefaultName}
		}
		targets = []string{DefaultName}
	}

	statePath := e.statePath
	if !filepath.IsAbs(statePath) {
		statePath = filepath.Join(e.root, statePath)
	}
	store, err := statefile.Open(statePath)
	if err != nil {
		return 0, err
	}
	defer store.Close()

	r := &run{
		e:        e,
		store:    store,
		memo:     make(map[string]Result),
		inStack:  make(map[string]bool),
		listed:   make(map[string]bool),
		tainted:  make(map[string]bool),
		runToken: uuid.NewString(),
	}
	if e.rebuild == RebuildListed {
		for _, t := range targets {
			if _, _, canonical, err := e.match(t); err == nil {
				r.listed[canonical] = true
			}
		}
	}

	var jrnl *journal.Journal
	if e.journalPath != "" {
		path := e.journalPath
		if !filepath.IsAbs(path) {
			path = filepath.Join(e.root, path)
		}
		j, err := journal.Open(ctx, path)
		if err != nil {
			e.logger.Warn("journal unavailable", "path", path, "error", err)
		} else {
			jrnl = j
			defer jrnl.Close()
			if id, err := jrnl.BeginRun(ctx, targets); err != nil {
				e.logger.Warn("journal begin failed", "error", err)
			} else {
				r.jrnl = jrnl
				r.runID = id
				log.WithRun(id).Debug("run recorded in journal", "path", path)
			}
		}
	}

	var buildErr error
	for _, t := range targets {
		if ctx.Err() != nil {
			buildErr = &Error{Kind: ErrInterrupted, Cause: ctx.Err()}
			break
		}
		if _, err := r.resolve(ctx, t); err != nil {
			buildErr = err
			break
		}
	}

	if err := store.Save(); err != nil {
		e.logger.Error("saving state failed", "path", statePath, "error", err)
		if buildErr == nil {
			buildErr = err
		}
	}

	if r.jrnl != nil {
		status := journal.StatusSucceeded
		msg := ""
		if buildErr != nil {
			status = journal.StatusFailed
			if ExitCode(buildErr) == ExitInterrupted {
				status = journal.StatusInterrupted
			}
			msg = buildErr.Error()
		}
		if err := r.jrnl.FinishRun(ctx, r.runID, r.rebuilt, status, msg); err != nil {
			e.logger.Warn("journal finish failed", "error", err)
		}
	}

	return r.rebuilt, buildErr
}

// DepNode is one target in the dependency tree reported by DepTree.
type DepNode struct {
	Name string
	Kind string
	Deps []*DepNode
}

// DepTree returns the static dependency tree of the given targets without
// building anything. Back-edges (cycles) are cut at the repeated target.
func (e *Engine) DepTree(targets []string) ([]*DepNode, error) {
	if len(targets) == 0 {
		if _, ok := e.virtuals[DefaultName]; !ok {
			return nil, &Error{Kind: ErrNoRule, Target: DefaultName}
		}
		targets = []string{DefaultName}
	}
	out := make([]*DepNode, 0, len(targets))
	for _, t := range targets {
		n, err := e.depNode(t, nil)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, nil
}

func (e *Engine) depNode(raw string, path []string) (*DepNode, error) {
	r, m, canonical, err := e.match(raw)
	if err != nil {
		return nil, err
	}
	node := &DepNode{Name: canonical, Kind: string(r.kind)}
	for _, p := range path {
		if p == canonical {
			return node, nil
		}
	}
	for _, dep := range r.depNames(m) {
		child, err := e.depNode(dep, append(path, canonical))
		if err != nil {
			return nil, err
		}
		node.Deps = append(node.Deps, child)
	}
	return node, nil
}
