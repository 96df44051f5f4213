package format

import (
	"bytes"
	"context"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/codefmt/codefmt/config"
	"github.com/codefmt/codefmt/workspace"
)

// WhitespacePass normalizes indentation characters, trailing whitespace, blank line runs,
// line endings and the final newline of every entry, honouring each entry's own resolved
// options.
type WhitespacePass struct {
	log *log.Logger
}

func NewWhitespacePass() *WhitespacePass {
	return &WhitespacePass{
		log: log.WithPrefix("pass | whitespace"),
	}
}

func (p *WhitespacePass) Name() string {
	return "whitespace"
}

func (p *WhitespacePass) Apply(
	ctx context.Context,
	snapshot *workspace.Snapshot,
	entries []*Entry,
) (*workspace.Snapshot, error) {
	for _, entry := range entries {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		doc := snapshot.Document(entry.Doc.RelPath)
		if doc == nil {
			continue
		}

		formatted := normalize(doc.Text(), entry.Options)

		if !bytes.Equal(doc.Text(), formatted) {
			p.log.Debugf("normalized %s", doc.RelPath)

			snapshot = snapshot.WithText(doc.RelPath, formatted)
		}
	}

	return snapshot, nil
}

// normalize rewrites text according to opts. Empty inputs are returned untouched.
func normalize(text []byte, opts config.Options) []byte {
	if len(text) == 0 {
		return text
	}

	lines := strings.Split(string(text), "\n")

	// a trailing newline produces one empty trailing element, remember and drop it
	hadFinalNewline := len(lines) > 1 && lines[len(lines)-1] == ""
	if hadFinalNewline {
		lines = lines[:len(lines)-1]
	}

	out := make([]string, 0, len(lines))
	blanks := 0

	for _, line := range lines {
		line = strings.TrimSuffix(line, "\r")

		if opts.TrimTrailingWhitespace {
			line = strings.TrimRight(line, " \t")
		}

		if strings.TrimSpace(line) == "" {
			blanks++

			if opts.MaxBlankLines > 0 && blanks > opts.MaxBlankLines {
				continue
			}

			out = append(out, line)

			continue
		}

		blanks = 0

		out = append(out, reindent(line, opts))
	}

	eol := "\n"
	if opts.EndOfLine == "crlf" {
		eol = "\r\n"
	}

	result := strings.Join(out, eol)

	if hadFinalNewline || opts.InsertFinalNewline {
		result += eol
	}

	return []byte(result)
}

// reindent rewrites the leading whitespace of line in the configured indent style,
// preserving the column it indents to. Tabs are measured against opts.TabWidth.
func reindent(line string, opts config.Options) string {
	width := 0
	rest := 0

	for i, r := range line {
		if r == ' ' {
			width++
		} else if r == '\t' {
			width += opts.TabWidth - width%opts.TabWidth
		} else {
			rest = i

			break
		}
	}

	if rest == 0 {
		// line carries no leading whitespace
		return line
	}

	var indent string

	if opts.IndentStyle == "tab" {
		indent = strings.Repeat("\t", width/opts.TabWidth) + strings.Repeat(" ", width%opts.TabWidth)
	} else {
		indent = strings.Repeat(" ", width)
	}

	return indent + line[rest:]
}
