// Package conventions discovers hierarchical per-directory formatting overrides.
//
// A directory may carry a `.conventions.toml` file whose values override the workspace
// baseline for every file at or below that directory. Files nearer a document win over
// files further up the tree.
package conventions

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"dario.cat/mergo"
	"github.com/BurntSushi/toml"
	"github.com/charmbracelet/log"
	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"
)

// FileName is the well-known name of a per-directory override file.
const FileName = ".conventions.toml"

// ErrMalformed indicates an override file could not be parsed. The resolver treats this
// as a hard error for the file being resolved, not for the run.
var ErrMalformed = errors.New("malformed convention file")

// Values holds the recognized override keys. Every field is a pointer so that "not set"
// is distinguishable from an explicit zero value such as trim_trailing_whitespace = false.
type Values struct {
	IndentStyle            *string `toml:"indent_style"`
	IndentSize             *int    `toml:"indent_size"`
	TabWidth               *int    `toml:"tab_width"`
	EndOfLine              *string `toml:"end_of_line"`
	TrimTrailingWhitespace *bool   `toml:"trim_trailing_whitespace"`
	InsertFinalNewline     *bool   `toml:"insert_final_newline"`
	MaxBlankLines          *int    `toml:"max_blank_lines"`
}

func (v *Values) empty() bool {
	return v == nil ||
		(v.IndentStyle == nil &&
			v.IndentSize == nil &&
			v.TabWidth == nil &&
			v.EndOfLine == nil &&
			v.TrimTrailingWhitespace == nil &&
			v.InsertFinalNewline == nil &&
			v.MaxBlankLines == nil)
}

// Context is the merged override configuration applicable to one directory. Top level
// values apply to every language; the named sections apply only to files of that language.
type Context struct {
	Values

	CSharp      *Values `toml:"csharp"`
	VisualBasic *Values `toml:"visualbasic"`
}

// Empty reports whether the context carries no recognized keys at all. An override file
// which exists but sets nothing does not count as an active convention set.
func (c *Context) Empty() bool {
	return c == nil || (c.Values.empty() && c.CSharp.empty() && c.VisualBasic.empty())
}

// ForLanguage returns the language-scoped section for the given tag, or nil.
func (c *Context) ForLanguage(language string) *Values {
	switch strings.ToLower(language) {
	case "csharp":
		return c.CSharp
	case "visualbasic":
		return c.VisualBasic
	default:
		return nil
	}
}

func (v *Values) clone() *Values {
	if v == nil {
		return nil
	}

	out := *v

	return &out
}

func (c *Context) clone() *Context {
	out := &Context{Values: c.Values}
	out.CSharp = c.CSharp.clone()
	out.VisualBasic = c.VisualBasic.clone()

	return out
}

// Provider discovers and merges convention files. Safe for concurrent use; per-directory
// parse results are cached for the provider's lifetime.
type Provider struct {
	fs   billy.Filesystem
	root string
	log  *log.Logger

	mu   sync.RWMutex
	dirs map[string]*Context
}

// NewProvider creates a Provider rooted at root. Discovery never walks above root.
func NewProvider(fs billy.Filesystem, root string) *Provider {
	return &Provider{
		fs:   fs,
		root: filepath.Clean(root),
		log:  log.WithPrefix("conventions"),
		dirs: make(map[string]*Context),
	}
}

// ContextFor walks upward from the file's directory to the provider root, merging every
// override file found along the way with nearer values taking precedence. It returns nil
// when no override file applies.
func (p *Provider) ContextFor(path string) (*Context, error) {
	merged := &Context{}
	found := false

	dir := filepath.Dir(filepath.Clean(path))

	// files outside the root have no overrides by definition
	if dir != p.root && !strings.HasPrefix(dir, p.root+string(filepath.Separator)) {
		return nil, nil
	}

	for {
		layer, err := p.layer(dir)
		if err != nil {
			return nil, err
		}

		if layer != nil {
			// nearer layers were merged first, so this only fills still-unset keys.
			// the layer is cloned so the merge never aliases the cached copy.
			if err := mergo.Merge(merged, layer.clone()); err != nil {
				return nil, fmt.Errorf("failed to merge convention layers: %w", err)
			}

			found = true
		}

		if dir == p.root {
			break
		}

		dir = filepath.Dir(dir)
	}

	if !found || merged.Empty() {
		return nil, nil
	}

	return merged, nil
}

// layer parses the override file in dir, caching the result (including absence).
func (p *Provider) layer(dir string) (*Context, error) {
	p.mu.RLock()
	cached, ok := p.dirs[dir]
	p.mu.RUnlock()

	if ok {
		return cached, nil
	}

	var ctx *Context

	path := filepath.Join(dir, FileName)

	data, err := util.ReadFile(p.fs, path)
	if err == nil {
		ctx = &Context{}
		if err := toml.Unmarshal(data, ctx); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrMalformed, path, err)
		}

		p.log.Debugf("loaded convention file %s", path)
	}

	p.mu.Lock()
	p.dirs[dir] = ctx
	p.mu.Unlock()

	return ctx, nil
}
