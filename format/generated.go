package format

import (
	"path/filepath"
	"strings"

	"github.com/codefmt/codefmt/workspace"
)

// Well known markers of machine-generated sources. Files matching these are never formatted.
const generatedFilePrefix = "TemporaryGeneratedFile_"

var (
	generatedStemSuffixes = []string{".designer", ".generated", ".g", ".g.i"}

	generatedCommentMarkers = []string{"<autogenerated", "<auto-generated"}
)

// IsGenerated decides whether a file is machine-generated. The path check runs first and
// is cheap; only when it is negative are the leading comments requested from the provided
// func, so detection never needs the full file body.
func IsGenerated(path string, leadingComments func() []workspace.Comment) bool {
	if isGeneratedPath(path) {
		return true
	}

	if leadingComments == nil {
		return false
	}

	for _, comment := range leadingComments() {
		lower := strings.ToLower(comment.Text)

		for _, marker := range generatedCommentMarkers {
			if strings.Contains(lower, marker) {
				return true
			}
		}
	}

	return false
}

func isGeneratedPath(path string) bool {
	name := filepath.Base(path)

	if strings.HasPrefix(name, generatedFilePrefix) {
		return true
	}

	// strip the extension and check the stem, catching names like Foo.Designer.cs and Bar.g.i.cs
	stem := strings.ToLower(strings.TrimSuffix(name, filepath.Ext(name)))

	for _, suffix := range generatedStemSuffixes {
		if strings.HasSuffix(stem, suffix) {
			return true
		}
	}

	return false
}
