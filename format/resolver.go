package format

import (
	"fmt"

	"github.com/codefmt/codefmt/config"
	"github.com/codefmt/codefmt/conventions"
	"github.com/codefmt/codefmt/workspace"
)

// Resolver produces the effective options for a single file by overlaying hierarchical
// convention values onto the baseline. Safe for concurrent use.
type Resolver struct {
	conventions *conventions.Provider
	baseline    config.Options
}

func NewResolver(provider *conventions.Provider, baseline config.Options) *Resolver {
	return &Resolver{
		conventions: provider,
		baseline:    baseline,
	}
}

// Resolve returns the options to use for doc and whether any hierarchical override was
// found. When no convention context applies, the baseline is returned unchanged. A hard
// provider error excludes just this file from the run; the caller treats it as a skip.
func (r *Resolver) Resolve(doc *workspace.Document) (config.Options, bool, error) {
	ctx, err := r.conventions.ContextFor(doc.Path)
	if err != nil {
		return config.Options{}, false, fmt.Errorf("failed to resolve conventions for %s: %w", doc.RelPath, err)
	}

	if ctx.Empty() {
		return r.baseline, false, nil
	}

	opts := r.baseline

	// option keys are language scoped: the global values apply first, then the section
	// matching the document's language
	applyValues(&opts, &ctx.Values)
	applyValues(&opts, ctx.ForLanguage(string(doc.Language)))

	// overlaid values are user input and get the same validation as the baseline; a zero
	// tab_width is clamped, a negative width or unknown enum fails the file
	if err := opts.Validate(); err != nil {
		return config.Options{}, false, fmt.Errorf("invalid convention values for %s: %w", doc.RelPath, err)
	}

	return opts, true, nil
}

// applyValues overlays the recognized keys of v onto opts. Keys v does not set retain
// their current values.
func applyValues(opts *config.Options, v *conventions.Values) {
	if v == nil {
		return
	}

	if v.IndentStyle != nil {
		opts.IndentStyle = *v.IndentStyle
	}

	if v.IndentSize != nil {
		opts.IndentSize = *v.IndentSize
	}

	if v.TabWidth != nil {
		opts.TabWidth = *v.TabWidth
	}

	if v.EndOfLine != nil {
		opts.EndOfLine = *v.EndOfLine
	}

	if v.TrimTrailingWhitespace != nil {
		opts.TrimTrailingWhitespace = *v.TrimTrailingWhitespace
	}

	if v.InsertFinalNewline != nil {
		opts.InsertFinalNewline = *v.InsertFinalNewline
	}

	if v.MaxBlankLines != nil {
		opts.MaxBlankLines = *v.MaxBlankLines
	}
}
