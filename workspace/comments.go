package workspace

import (
	"bufio"
	"bytes"
	"strings"
)

// Comment is a single leading comment lifted from the top of a document.
type Comment struct {
	Text string
}

// commentSyntax describes how a language spells its comments. There is a small closed set of
// these, selected once per document by language tag.
type commentSyntax struct {
	line       []string
	blockOpen  string
	blockClose string
}

var (
	csharpComments = commentSyntax{
		line:       []string{"//"},
		blockOpen:  "/*",
		blockClose: "*/",
	}

	visualBasicComments = commentSyntax{
		line: []string{"'", "REM "},
	}
)

func syntaxFor(lang Language) (commentSyntax, bool) {
	switch lang {
	case CSharp:
		return csharpComments, true
	case VisualBasic:
		return visualBasicComments, true
	default:
		return commentSyntax{}, false
	}
}

// scanLeadingComments collects the comments which precede the first non-comment, non-blank
// line of text. It never looks past that point; generated-file detection only needs the
// leading trivia. Malformed comments simply end the scan.
func scanLeadingComments(text []byte, syntax commentSyntax) []Comment {
	var comments []Comment

	scanner := bufio.NewScanner(bytes.NewReader(text))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	inBlock := false

	var block strings.Builder

LINES:
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		if inBlock {
			if idx := strings.Index(line, syntax.blockClose); idx != -1 {
				block.WriteString(line[:idx])
				comments = append(comments, Comment{Text: block.String()})
				block.Reset()

				inBlock = false

				continue
			}

			block.WriteString(line)
			block.WriteString("\n")

			continue
		}

		if line == "" {
			continue
		}

		for _, marker := range syntax.line {
			if strings.HasPrefix(line, marker) {
				comments = append(comments, Comment{Text: strings.TrimPrefix(line, marker)})

				continue LINES
			}
		}

		if syntax.blockOpen != "" && strings.HasPrefix(line, syntax.blockOpen) {
			rest := strings.TrimPrefix(line, syntax.blockOpen)

			if idx := strings.Index(rest, syntax.blockClose); idx != -1 {
				comments = append(comments, Comment{Text: rest[:idx]})
			} else {
				block.WriteString(rest)
				block.WriteString("\n")

				inBlock = true
			}

			continue
		}

		// first line of actual content, we are done
		break
	}

	return comments
}
