package format

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"

	"github.com/codefmt/codefmt/workspace"
)

// Pass is a single formatting capability. Implementations take a snapshot and the
// formattable entries and return a new snapshot reflecting their edits. The input
// snapshot must never be mutated; this is what makes passes composable and a no-op
// pass a true identity function.
type Pass interface {
	Name() string
	Apply(ctx context.Context, snapshot *workspace.Snapshot, entries []*Entry) (*workspace.Snapshot, error)
}

// Chain runs an ordered sequence of passes, threading the snapshot returned by each pass
// into the next. Entries are resolved once and shared by every pass unmodified.
type Chain struct {
	passes []Pass
	log    *log.Logger
}

func NewChain(passes ...Pass) *Chain {
	return &Chain{
		passes: passes,
		log:    log.WithPrefix("chain"),
	}
}

// Register appends a pass to the end of the chain.
func (c *Chain) Register(pass Pass) {
	c.passes = append(c.passes, pass)
}

// Passes returns the registered passes in execution order.
func (c *Chain) Passes() []Pass {
	return c.passes
}

// Apply runs every registered pass in order. An empty chain returns the input snapshot.
func (c *Chain) Apply(ctx context.Context, snapshot *workspace.Snapshot, entries []*Entry) (*workspace.Snapshot, error) {
	for _, pass := range c.passes {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		start := time.Now()

		next, err := pass.Apply(ctx, snapshot, entries)
		if err != nil {
			return nil, fmt.Errorf("pass '%s' failed: %w", pass.Name(), err)
		}

		if next == nil {
			return nil, fmt.Errorf("pass '%s' returned no snapshot", pass.Name())
		}

		c.log.Debugf("pass '%s' completed in %v", pass.Name(), time.Since(start))

		snapshot = next
	}

	return snapshot, nil
}
