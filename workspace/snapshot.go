package workspace

import (
	"bytes"
	"sort"
)

// Project groups a set of documents under a name and a language tag.
type Project struct {
	Name     string
	Language Language
	// Dir is the project directory, absolute.
	Dir string
	// Files are the project's document paths, relative to the workspace root, in enumeration order.
	Files []string
}

// Snapshot is an immutable view of all project content at a point in time. Formatting passes
// take one snapshot and return a new one; nothing ever mutates a snapshot in place.
type Snapshot struct {
	root     string
	projects []*Project
	docs     map[string]*Document
}

func (s *Snapshot) Root() string {
	return s.root
}

func (s *Snapshot) Projects() []*Project {
	return s.projects
}

// Document looks up a document by its root-relative path, returning nil if absent.
func (s *Snapshot) Document(relPath string) *Document {
	return s.docs[relPath]
}

// Documents returns all document relative paths in sorted order.
func (s *Snapshot) Documents() []string {
	paths := make([]string, 0, len(s.docs))
	for path := range s.docs {
		paths = append(paths, path)
	}

	sort.Strings(paths)

	return paths
}

// WithText returns a new snapshot in which relPath carries text. The receiver is unchanged.
// An unknown relPath returns the receiver untouched.
func (s *Snapshot) WithText(relPath string, text []byte) *Snapshot {
	prev, ok := s.docs[relPath]
	if !ok {
		return s
	}

	docs := make(map[string]*Document, len(s.docs))
	for path, doc := range s.docs {
		docs[path] = doc
	}

	next := *prev
	next.text = text
	docs[relPath] = &next

	return &Snapshot{
		root:     s.root,
		projects: s.projects,
		docs:     docs,
	}
}

// Diff returns the relative paths of documents whose content differs between a and b,
// in sorted order. Documents present in only one snapshot are ignored.
func Diff(a *Snapshot, b *Snapshot) []string {
	var changed []string

	for relPath, doc := range a.docs {
		other, ok := b.docs[relPath]
		if !ok {
			continue
		}

		if !bytes.Equal(doc.text, other.text) {
			changed = append(changed, relPath)
		}
	}

	sort.Strings(changed)

	return changed
}
