package format

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gobwas/glob"
	"mvdan.cc/sh/v3/expand"
	"mvdan.cc/sh/v3/interp"

	"github.com/codefmt/codefmt/config"
	"github.com/codefmt/codefmt/workspace"
)

var (
	ErrInvalidName = errors.New("pass name must only contain alphanumeric characters, `_` or `-`")
	// ErrCommandNotFound is returned when the Command for a pass is not available.
	ErrCommandNotFound = errors.New("pass command not found in PATH")

	nameRegex = regexp.MustCompile("^[a-zA-Z0-9_-]+$")
)

// CommandPass runs an external formatter command as a formatting pass. The matching
// entries are materialized into a temporary tree, the command is executed against them,
// and the results are read back into a new snapshot, leaving the input snapshot intact.
type CommandPass struct {
	name string
	cfg  *config.Pass

	log        *log.Logger
	executable string // path to the executable described by Command

	includes []glob.Glob
	excludes []glob.Glob
}

func (p *CommandPass) Name() string {
	return p.name
}

func (p *CommandPass) Priority() int {
	return p.cfg.Priority
}

// Executable returns the path to the executable defined by Command.
func (p *CommandPass) Executable() string {
	return p.executable
}

// NewCommandPass creates a CommandPass from config, verifying that the command can be
// found from treeRoot with the given environment.
func NewCommandPass(name string, treeRoot string, env expand.Environ, cfg *config.Pass) (*CommandPass, error) {
	if !nameRegex.MatchString(name) {
		return nil, ErrInvalidName
	}

	executable, err := interp.LookPathDir(treeRoot, env, cfg.Command)
	if err != nil {
		return nil, ErrCommandNotFound
	}

	pass := &CommandPass{
		name:       name,
		cfg:        cfg,
		log:        log.WithPrefix("pass | " + name),
		executable: executable,
	}

	pass.includes, err = CompileGlobs(cfg.Includes)
	if err != nil {
		return nil, fmt.Errorf("failed to compile pass '%v' includes: %w", name, err)
	}

	pass.excludes, err = CompileGlobs(cfg.Excludes)
	if err != nil {
		return nil, fmt.Errorf("failed to compile pass '%v' excludes: %w", name, err)
	}

	return pass, nil
}

// wants determines whether this pass applies to an entry based on its configured
// includes and excludes. An empty include list matches everything.
func (p *CommandPass) wants(entry *Entry) bool {
	if pathMatches(entry.Doc.RelPath, p.excludes) {
		return false
	}

	return len(p.includes) == 0 || pathMatches(entry.Doc.RelPath, p.includes)
}

func (p *CommandPass) Apply(
	ctx context.Context,
	snapshot *workspace.Snapshot,
	entries []*Entry,
) (*workspace.Snapshot, error) {
	start := time.Now()

	var selected []*Entry

	for _, entry := range entries {
		if p.wants(entry) {
			selected = append(selected, entry)
		}
	}

	// exit early if nothing to process
	if len(selected) == 0 {
		return snapshot, nil
	}

	tempDir, err := os.MkdirTemp("", "codefmt-"+p.name+"-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create a temporary tree: %w", err)
	}

	defer func() {
		if err := os.RemoveAll(tempDir); err != nil {
			p.log.Errorf("failed to remove temporary tree: %v", err)
		}
	}()

	// materialize the current content of each selected document
	for _, entry := range selected {
		doc := snapshot.Document(entry.Doc.RelPath)
		if doc == nil {
			continue
		}

		path := filepath.Join(tempDir, doc.RelPath)

		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create temporary directory: %w", err)
		}

		if err := os.WriteFile(path, doc.Text(), 0o644); err != nil {
			return nil, fmt.Errorf("failed to write %s: %w", path, err)
		}
	}

	// construct args, starting with config
	args := p.cfg.Options

	for _, entry := range selected {
		args = append(args, entry.Doc.RelPath)
	}

	cmd := exec.CommandContext(ctx, p.executable, args...) //nolint:gosec
	// replace the default Cancel handler installed by CommandContext because it sends SIGKILL (-9).
	cmd.Cancel = func() error {
		return cmd.Process.Signal(os.Interrupt)
	}
	cmd.Dir = tempDir

	p.log.Debugf("executing: %s", cmd.String())

	if out, err := cmd.CombinedOutput(); err != nil {
		p.log.Errorf("failed to apply with options '%v': %s", p.cfg.Options, err)

		if len(out) > 0 {
			_, _ = fmt.Fprintf(os.Stderr, "\n%s\n", out)
		}

		return nil, fmt.Errorf("pass '%s' with options '%v' failed to apply: %w", p.cfg.Command, p.cfg.Options, err)
	}

	// read the results back into a new snapshot
	for _, entry := range selected {
		doc := snapshot.Document(entry.Doc.RelPath)
		if doc == nil {
			continue
		}

		formatted, err := os.ReadFile(filepath.Join(tempDir, doc.RelPath))
		if err != nil {
			return nil, fmt.Errorf("failed to read back %s: %w", doc.RelPath, err)
		}

		if !bytes.Equal(doc.Text(), formatted) {
			snapshot = snapshot.WithText(doc.RelPath, formatted)
		}
	}

	p.log.Infof("%v file(s) processed in %v", len(selected), time.Since(start))

	return snapshot, nil
}
