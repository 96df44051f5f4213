package workspace

import (
	"bytes"
	"io/fs"
	"unicode/utf8"
)

// Document is a single source file within a project. Immutable once created; WithText on the
// owning snapshot produces a fresh Document rather than mutating one in place.
type Document struct {
	// Path is absolute.
	Path string
	// RelPath is relative to the workspace root.
	RelPath string
	// Project is the name of the owning project.
	Project string

	Language Language
	Info     fs.FileInfo

	text []byte
}

func (d *Document) Text() []byte {
	return d.text
}

func (d *Document) String() string {
	return d.RelPath
}

// SupportsFormatting reports whether the document's content model is text we can rewrite.
// Binary entries which found their way into a manifest are filtered out here.
func (d *Document) SupportsFormatting() bool {
	if !d.Language.Supported() {
		return false
	}

	// git-style binary sniff on the leading content
	probe := d.text
	if len(probe) > 8000 {
		probe = probe[:8000]
	}

	if bytes.IndexByte(probe, 0x00) != -1 {
		return false
	}

	return utf8.Valid(probe)
}

// LeadingComments parses the comments preceding the first line of content, using the comment
// syntax of the document's language. Unknown languages yield no comments.
func (d *Document) LeadingComments() []Comment {
	syntax, ok := syntaxFor(d.Language)
	if !ok {
		return nil
	}

	return scanLeadingComments(d.text, syntax)
}
