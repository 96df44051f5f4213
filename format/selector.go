package format

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"

	"github.com/charmbracelet/log"
	"github.com/gobwas/glob"
	"golang.org/x/sync/errgroup"

	"github.com/codefmt/codefmt/cache"
	"github.com/codefmt/codefmt/config"
	"github.com/codefmt/codefmt/stats"
	"github.com/codefmt/codefmt/workspace"
)

// Entry pairs a document with its resolved options. Overridden records whether any
// hierarchical convention value applied, which drives the all-or-nothing policy.
type Entry struct {
	Doc        *workspace.Document
	Options    config.Options
	Overridden bool
}

// Selector enumerates candidate files across projects and produces the final formattable
// set with resolved options.
type Selector struct {
	resolver *Resolver
	cache    *cache.Cache // may be nil
	excludes []glob.Glob
	stats    *stats.Stats
	log      *log.Logger
}

func NewSelector(resolver *Resolver, evalCache *cache.Cache, excludes []glob.Glob, statz *stats.Stats) *Selector {
	return &Selector{
		resolver: resolver,
		cache:    evalCache,
		excludes: excludes,
		stats:    statz,
		log:      log.WithPrefix("selector"),
	}
}

// Select walks every project in the snapshot, resolves each candidate concurrently, then
// applies the all-or-nothing policy and deduplicates by path. The traversed count in stats
// reflects files considered, not files selected.
func (s *Selector) Select(
	ctx context.Context,
	snapshot *workspace.Snapshot,
	project string,
	allowList []string,
) ([]*Entry, error) {
	allow := newAllowList(snapshot.Root(), allowList)

	// enumerate candidates in project order
	var candidates []*workspace.Document

	for _, proj := range snapshot.Projects() {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		if !proj.Language.Supported() {
			s.log.Warnf("skipping project %s: unsupported language '%s'", proj.Name, proj.Language)

			continue
		}

		if project != "" && proj.Name != project {
			s.log.Debugf("skipping project %s: restricted to %s", proj.Name, project)

			continue
		}

		for _, relPath := range proj.Files {
			s.stats.Add(stats.Traversed, 1)

			if doc := snapshot.Document(relPath); doc != nil {
				candidates = append(candidates, doc)
			}
		}
	}

	// fan out, one resolution per candidate, bounded only by the scheduler
	results := make([]*Entry, len(candidates))

	eg, egCtx := errgroup.WithContext(ctx)

	for idx, doc := range candidates {
		idx, doc := idx, doc
		eg.Go(func() error {
			select {
			case <-egCtx.Done():
				return egCtx.Err()
			default:
			}

			results[idx] = s.resolve(doc, allow)

			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		return nil, fmt.Errorf("failed to resolve candidates: %w", err)
	}

	// all-or-nothing: once hierarchical configuration is in play anywhere in the run,
	// files without resolvable configuration are assumed unintentionally included and
	// are silently dropped rather than formatted with stale defaults
	anyOverride := false

	for _, entry := range results {
		if entry != nil && entry.Overridden {
			anyOverride = true

			break
		}
	}

	seen := make(map[string]bool)

	var entries []*Entry

	for _, entry := range results {
		if entry == nil {
			continue
		}

		if anyOverride && !entry.Overridden {
			s.log.Debugf("dropping %s: no convention context found", entry.Doc.RelPath)

			continue
		}

		// a file reachable from two project references must not be formatted twice
		if seen[entry.Doc.RelPath] {
			continue
		}

		seen[entry.Doc.RelPath] = true

		entries = append(entries, entry)
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Doc.RelPath < entries[j].Doc.RelPath
	})

	s.stats.Add(stats.Matched, int64(len(entries)))

	return entries, nil
}

// resolve runs the per-candidate resolution routine, returning nil when the candidate is
// excluded. Exclusions are filtering decisions, not errors; they are only logged at debug.
func (s *Selector) resolve(doc *workspace.Document, allow allowList) *Entry {
	if !allow.permits(doc) {
		s.log.Debugf("skipping %s: not in the explicit file list", doc.RelPath)

		return nil
	}

	if pathMatches(doc.RelPath, s.excludes) {
		s.log.Debugf("skipping %s: matched global excludes", doc.RelPath)

		return nil
	}

	if s.cache != nil && s.cache.Unchanged(doc.Path, doc.Info) {
		s.log.Debugf("skipping %s: unchanged since last run", doc.RelPath)

		return nil
	}

	if !doc.SupportsFormatting() {
		s.log.Debugf("skipping %s: content does not support formatting", doc.RelPath)

		return nil
	}

	if IsGenerated(doc.Path, doc.LeadingComments) {
		s.log.Debugf("skipping %s: detected as generated", doc.RelPath)

		return nil
	}

	opts, overridden, err := s.resolver.Resolve(doc)
	if err != nil {
		s.log.Debugf("skipping %s: %v", doc.RelPath, err)

		return nil
	}

	return &Entry{
		Doc:        doc,
		Options:    opts,
		Overridden: overridden,
	}
}

// allowList is the set of explicitly requested file paths. An empty list permits everything.
type allowList map[string]bool

func newAllowList(root string, paths []string) allowList {
	if len(paths) == 0 {
		return nil
	}

	allow := make(allowList, len(paths))

	for _, path := range paths {
		allow[filepath.Clean(path)] = true

		if !filepath.IsAbs(path) {
			allow[filepath.Join(root, path)] = true
		}
	}

	return allow
}

func (a allowList) permits(doc *workspace.Document) bool {
	if a == nil {
		return true
	}

	return a[doc.Path] || a[doc.RelPath]
}

// CompileGlobs prepares the glob patterns used for global excludes and pass includes.
func CompileGlobs(patterns []string) ([]glob.Glob, error) {
	globs := make([]glob.Glob, len(patterns))

	for i, pattern := range patterns {
		g, err := glob.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("failed to compile pattern '%v': %w", pattern, err)
		}

		globs[i] = g
	}

	return globs, nil
}

func pathMatches(path string, globs []glob.Glob) bool {
	for idx := range globs {
		if globs[idx].Match(path) {
			return true
		}
	}

	return false
}
