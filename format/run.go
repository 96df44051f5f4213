package format

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"slices"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/go-git/go-billy/v5"
	"mvdan.cc/sh/v3/expand"

	"github.com/codefmt/codefmt/cache"
	"github.com/codefmt/codefmt/config"
	"github.com/codefmt/codefmt/conventions"
	"github.com/codefmt/codefmt/stats"
	"github.com/codefmt/codefmt/workspace"
)

// Status tracks the coordinator through its linear run sequence. There is no branching
// back; Failed is terminal and reachable only from WorkspaceOpening and Persisting.
type Status int

const (
	StatusIdle Status = iota
	StatusWorkspaceOpening
	StatusSelecting
	StatusFormatting
	StatusDiffing
	StatusPersisting
	StatusDone
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusWorkspaceOpening:
		return "workspace-opening"
	case StatusSelecting:
		return "selecting"
	case StatusFormatting:
		return "formatting"
	case StatusDiffing:
		return "diffing"
	case StatusPersisting:
		return "persisting"
	case StatusDone:
		return "done"
	case StatusFailed:
		return "failed"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// DiagnosticCap limits how many diagnostics of one kind are logged before the remainder
// are suppressed for the rest of the run. --log-all disables the throttle.
const DiagnosticCap = 5

// ErrPersist indicates the final snapshot could not be written back to disk.
var ErrPersist = errors.New("failed to persist formatted changes")

// Result summarises a run. Changed counts files whose content actually differs between
// the original and final snapshot, which is authoritative over the eligible count.
type Result struct {
	ExitStatus int
	Eligible   int
	Changed    int
}

// Runner is the top level coordinator: open workspace, select files, run the pass chain,
// diff, optionally persist, and assemble the result.
type Runner struct {
	cfg      *config.Config
	fs       billy.Filesystem
	provider *workspace.Provider
	chain    *Chain // built from config when nil
	stats    *stats.Stats
	log      *log.Logger

	status Status
}

// NewRunner creates a Runner. A nil chain means the pass chain is assembled from the
// config once the workspace root is known.
func NewRunner(
	cfg *config.Config,
	fsys billy.Filesystem,
	provider *workspace.Provider,
	chain *Chain,
	statz *stats.Stats,
) *Runner {
	return &Runner{
		cfg:      cfg,
		fs:       fsys,
		provider: provider,
		chain:    chain,
		stats:    statz,
		log:      log.WithPrefix("run"),
		status:   StatusIdle,
	}
}

func (r *Runner) Status() Status {
	return r.status
}

func (r *Runner) transition(next Status) {
	r.log.Debugf("%s -> %s", r.status, next)
	r.status = next
}

// Run executes a single formatting run against target. Cancellation is a distinct outcome,
// not an error: the run exits cleanly with whatever statistics were gathered, and nothing
// is persisted.
func (r *Runner) Run(ctx context.Context, target string, allowPaths []string) (Result, error) {
	excludes, err := CompileGlobs(r.cfg.Excludes)
	if err != nil {
		r.transition(StatusFailed)

		return Result{ExitStatus: 1}, fmt.Errorf("failed to compile global excludes: %w", err)
	}

	// the diagnostic subscription is scoped to this run; it is detached on every exit path
	r.transition(StatusWorkspaceOpening)

	unsubscribe := r.provider.Subscribe(r.diagnosticSink())
	defer unsubscribe()

	var handle *workspace.Handle

	if r.cfg.Solution {
		handle, err = r.provider.OpenSolution(ctx, target)
	} else {
		handle, err = r.provider.OpenProject(ctx, target)
	}

	if err != nil {
		if cancelled(err) {
			return r.cancel()
		}

		r.transition(StatusFailed)

		return Result{ExitStatus: 1}, err
	}

	root := handle.Root()

	chain := r.chain
	if chain == nil {
		chain, err = NewChainFromConfig(r.cfg, root)
		if err != nil {
			r.transition(StatusFailed)

			return Result{ExitStatus: 1}, err
		}
	}

	var evalCache *cache.Cache

	if !r.cfg.NoCache {
		evalCache, err = cache.Open(root, r.cfg.ClearCache)
		if err != nil {
			// if we can't open the cache, we log a warning and fallback to no cache
			r.log.Warnf("failed to open cache: %v", err)
		} else {
			defer func() {
				if err := evalCache.Close(); err != nil {
					r.log.Errorf("failed to close cache: %v", err)
				}
			}()
		}
	}

	r.transition(StatusSelecting)

	resolver := NewResolver(conventions.NewProvider(r.fs, root), r.cfg.Options)
	selector := NewSelector(resolver, evalCache, excludes, r.stats)

	entries, err := selector.Select(ctx, handle.Snapshot(), r.cfg.Project, allowPaths)
	if err != nil {
		if cancelled(err) {
			return r.cancel()
		}

		r.transition(StatusFailed)

		return Result{ExitStatus: 1}, err
	}

	r.transition(StatusFormatting)

	original := handle.Snapshot()

	final, err := chain.Apply(ctx, original, entries)
	if err != nil {
		if cancelled(err) {
			return r.cancel()
		}

		r.transition(StatusFailed)

		return Result{ExitStatus: 1, Eligible: len(entries)}, err
	}

	r.transition(StatusDiffing)

	changed := workspace.Diff(original, final)
	r.stats.Add(stats.Changed, int64(len(changed)))

	result := Result{
		Eligible: len(entries),
		Changed:  len(changed),
	}

	if r.cfg.Write && len(changed) > 0 {
		r.transition(StatusPersisting)

		if !handle.TryApplyChanges(final) {
			r.transition(StatusFailed)

			// the change statistics were computed before the failed save and are still reported
			result.ExitStatus = 1

			return result, ErrPersist
		}

		if evalCache != nil {
			r.updateCache(evalCache, entries)
		}
	}

	r.transition(StatusDone)

	return result, nil
}

// cancel records a clean early exit with the statistics gathered so far.
func (r *Runner) cancel() (Result, error) {
	r.log.Info("run cancelled")
	r.transition(StatusDone)

	return Result{
		Eligible: int(r.stats.Value(stats.Matched)),
		Changed:  int(r.stats.Value(stats.Changed)),
	}, nil
}

// updateCache records the post-persist stat of every selected file so unchanged files can
// be skipped next run.
func (r *Runner) updateCache(evalCache *cache.Cache, entries []*Entry) {
	infos := make(map[string]fs.FileInfo, len(entries))

	for _, entry := range entries {
		info, err := r.fs.Stat(entry.Doc.Path)
		if err != nil {
			continue
		}

		infos[entry.Doc.Path] = info
	}

	if err := evalCache.Update(infos); err != nil {
		r.log.Warnf("failed to update cache: %v", err)
	}
}

// diagnosticSink returns the subscription handler for workspace diagnostics, throttling
// repeated non-fatal kinds at DiagnosticCap unless --log-all was requested.
func (r *Runner) diagnosticSink() func(workspace.Diagnostic) {
	var mu sync.Mutex

	counts := make(map[string]int)

	return func(d workspace.Diagnostic) {
		if d.Severity == workspace.SeverityError {
			r.log.Error(d.Message)

			return
		}

		mu.Lock()
		counts[d.Kind]++
		seen := counts[d.Kind]
		mu.Unlock()

		if !r.cfg.LogAll {
			if seen == DiagnosticCap+1 {
				r.log.Warnf("suppressing further '%s' diagnostics for this run", d.Kind)

				return
			}

			if seen > DiagnosticCap {
				return
			}
		}

		if d.Severity == workspace.SeverityWarning {
			r.log.Warn(d.Message)
		} else {
			r.log.Info(d.Message)
		}
	}
}

// NewChainFromConfig assembles the pass chain: the built-in whitespace pass first, then
// any configured command passes ordered by priority and name.
func NewChainFromConfig(cfg *config.Config, treeRoot string) (*Chain, error) {
	chain := NewChain(NewWhitespacePass())

	env := expand.ListEnviron(os.Environ()...)

	passes := make([]*CommandPass, 0, len(cfg.PassConfigs))

	for name, passCfg := range cfg.PassConfigs {
		pass, err := NewCommandPass(name, treeRoot, env, passCfg)

		if errors.Is(err, ErrCommandNotFound) && cfg.AllowMissingPass {
			log.Debugf("pass command not found: %v", name)

			continue
		} else if err != nil {
			return nil, fmt.Errorf("%w: failed to initialise pass: %v", err, name)
		}

		passes = append(passes, pass)
	}

	slices.SortFunc(passes, func(a, b *CommandPass) int {
		result := a.Priority() - b.Priority()
		if result == 0 {
			// passes with the same priority are sorted lexicographically to ensure a deterministic outcome
			result = cmp.Compare(a.Name(), b.Name())
		}

		return result
	})

	for _, pass := range passes {
		chain.Register(pass)
	}

	return chain, nil
}

func cancelled(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
