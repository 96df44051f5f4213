package workspace

import "fmt"

type Severity int

const (
	SeverityInfo Severity = iota
	SeverityWarning
	// SeverityError indicates a fatal load problem. The loader emits the diagnostic and then
	// fails the open with ErrLoad.
	SeverityError
)

func (s Severity) String() string {
	switch s {
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	default:
		return fmt.Sprintf("severity(%d)", int(s))
	}
}

// Diagnostic is an event reported by the workspace provider while loading.
// Kind groups repeated diagnostics of the same shape so consumers can throttle them.
type Diagnostic struct {
	Severity Severity
	Kind     string
	Message  string
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("[%s] %s: %s", d.Severity, d.Kind, d.Message)
}

const (
	// DiagMissingFile is emitted when a manifest references a file which does not exist.
	DiagMissingFile = "missing-file"
	// DiagUnreadableFile is emitted when a referenced file exists but could not be read.
	DiagUnreadableFile = "unreadable-file"
	// DiagUnsupportedLanguage is emitted when a solution contains a project with an unknown language tag.
	DiagUnsupportedLanguage = "unsupported-language"
	// DiagMalformedManifest is emitted just before a load fails due to a manifest parse error.
	DiagMalformedManifest = "malformed-manifest"
)
