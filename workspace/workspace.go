package workspace

import (
	"errors"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"
)

// ErrLoad indicates the target path could not be resolved to a supported project or solution.
var ErrLoad = errors.New("failed to load workspace")

// Provider opens solution and project manifests into workspace handles. It carries a
// diagnostic-event subscription which interested parties attach before opening; the
// subscription is scoped to the caller, never process-wide.
type Provider struct {
	fs  billy.Filesystem
	log *log.Logger

	mu      sync.Mutex
	subs    map[int]func(Diagnostic)
	nextSub int
}

func NewProvider(fs billy.Filesystem) *Provider {
	return &Provider{
		fs:   fs,
		log:  log.WithPrefix("workspace"),
		subs: make(map[int]func(Diagnostic)),
	}
}

// Subscribe registers fn to receive diagnostics emitted during subsequent loads.
// The returned cancel func removes the subscription and is safe to call more than once.
func (p *Provider) Subscribe(fn func(Diagnostic)) func() {
	p.mu.Lock()
	defer p.mu.Unlock()

	id := p.nextSub
	p.nextSub++
	p.subs[id] = fn

	return func() {
		p.mu.Lock()
		defer p.mu.Unlock()

		delete(p.subs, id)
	}
}

func (p *Provider) notify(d Diagnostic) {
	p.mu.Lock()
	subs := make([]func(Diagnostic), 0, len(p.subs))

	for _, fn := range p.subs {
		subs = append(subs, fn)
	}
	p.mu.Unlock()

	for _, fn := range subs {
		fn(d)
	}
}

// Handle is an open workspace. It owns the current snapshot for the duration of a run.
type Handle struct {
	provider *Provider
	fs       billy.Filesystem
	root     string
	snapshot *Snapshot
}

// Root is the workspace root directory, absolute. Hierarchical configuration discovery
// never walks above it.
func (h *Handle) Root() string {
	return h.root
}

// Snapshot returns the current workspace snapshot.
func (h *Handle) Snapshot() *Snapshot {
	return h.snapshot
}

// TryApplyChanges writes every document whose content differs between the current snapshot
// and final back to the underlying filesystem, then adopts final as the current snapshot.
// Returns false if any write failed.
func (h *Handle) TryApplyChanges(final *Snapshot) bool {
	for _, relPath := range Diff(h.snapshot, final) {
		doc := final.Document(relPath)

		mode := doc.Info.Mode()

		if err := util.WriteFile(h.fs, doc.Path, doc.Text(), mode); err != nil {
			h.provider.log.Errorf("failed to write %s: %v", relPath, err)

			return false
		}
	}

	h.snapshot = final

	return true
}
