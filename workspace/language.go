package workspace

import "strings"

// Language tags a project's source dialect.
// Option keys and comment syntax are scoped by language.
type Language string

const (
	CSharp      Language = "csharp"
	VisualBasic Language = "visualbasic"
)

// Supported returns true if this Language is one we know how to format.
func (l Language) Supported() bool {
	switch l {
	case CSharp, VisualBasic:
		return true
	default:
		return false
	}
}

// Extensions returns the source file extensions associated with l, used when a project
// declares include patterns instead of an explicit file list.
func (l Language) Extensions() []string {
	switch l {
	case CSharp:
		return []string{".cs"}
	case VisualBasic:
		return []string{".vb"}
	default:
		return nil
	}
}

// HasExtension returns true if path carries one of the language's source extensions.
func (l Language) HasExtension(path string) bool {
	lower := strings.ToLower(path)
	for _, ext := range l.Extensions() {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}

	return false
}
