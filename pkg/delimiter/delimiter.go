// Package delimiter implements statement terminator definitions: the
// standard semicolon, single-line markers like the Oracle slash or the
// SQL Server GO keyword, and arbitrary alternate delimiters.
package delimiter

import (
	"strings"

	"github.com/sqlrun/sqlrun/pkg/sqltext"
)

// Delimiter is a statement terminator. The zero value is not valid; use
// Standard or Parse. Delimiters are comparable values: two delimiters are
// equal only when both text and single-line mode match.
type Delimiter struct {
	text       string
	singleLine bool
}

// Standard is the semicolon terminator.
var Standard = Delimiter{text: ";"}

// New returns a delimiter with the given text. A single-line delimiter only
// terminates a statement when it appears alone on a line.
func New(text string, singleLine bool) Delimiter {
	text = strings.TrimSpace(text)
	if text == "" {
		return Standard
	}
	return Delimiter{text: text, singleLine: singleLine}
}

// Parse recognizes known delimiter aliases: ";" (standard), "/" (single-line
// slash), "GO" (single-line batch marker). Anything else becomes a literal
// end-of-text delimiter.
func Parse(text string) Delimiter {
	text = strings.TrimSpace(text)
	switch {
	case text == "" || text == ";":
		return Standard
	case text == "/":
		return Delimiter{text: "/", singleLine: true}
	case strings.EqualFold(text, "go"):
		return Delimiter{text: "GO", singleLine: true}
	default:
		return Delimiter{text: text}
	}
}

// Text returns the delimiter text.
func (d Delimiter) Text() string { return d.text }

// IsSingleLine reports whether the delimiter only matches alone on a line.
func (d Delimiter) IsSingleLine() bool { return d.singleLine }

// IsStandard reports whether this is the plain semicolon terminator.
func (d Delimiter) IsStandard() bool { return d.text == ";" && !d.singleLine }

// Terminates reports whether the statement text ends with this delimiter.
// Single-line delimiters are matched against the last non-blank line,
// ignoring surrounding whitespace and a trailing line comment. Other
// delimiters use a suffix comparison after trailing whitespace and line
// comments are stripped.
func (d Delimiter) Terminates(sql string) bool {
	if d.singleLine {
		line, _ := lastContentLine(sql)
		return strings.EqualFold(line, d.text)
	}
	trimmed := trimTrailingNoise(sql)
	if len(trimmed) < len(d.text) {
		return false
	}
	return strings.EqualFold(trimmed[len(trimmed)-len(d.text):], d.text)
}

// Strip removes the trailing delimiter from the statement text, returning
// the statement body. Text not terminated by this delimiter is returned
// unchanged.
func (d Delimiter) Strip(sql string) string {
	if !d.Terminates(sql) {
		return sql
	}
	if d.singleLine {
		// Cut at the matched line, not the last one: comment-only lines may
		// trail the delimiter.
		_, idx := lastContentLine(sql)
		lines := strings.Split(sql, "\n")
		return strings.TrimRight(strings.Join(lines[:idx], "\n"), " \t\r\n")
	}
	trimmed := trimTrailingNoise(sql)
	return strings.TrimRight(trimmed[:len(trimmed)-len(d.text)], " \t\r\n")
}

// String implements fmt.Stringer.
func (d Delimiter) String() string { return d.text }

// lastContentLine returns the last non-blank line, trimmed of whitespace and
// trailing line comments, along with its line index. The index is -1 when
// every line is blank.
func lastContentLine(sql string) (string, int) {
	lines := strings.Split(sql, "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		line := strings.TrimSpace(sqltext.TrimTrailingComment(lines[i]))
		if line != "" {
			return line, i
		}
	}
	return "", -1
}

// trimTrailingNoise drops trailing whitespace and trailing comment-only
// lines so the delimiter can be matched by suffix.
func trimTrailingNoise(sql string) string {
	lines := strings.Split(sql, "\n")
	end := len(lines)
	for end > 0 {
		line := strings.TrimSpace(sqltext.TrimTrailingComment(lines[end-1]))
		if line != "" {
			lines[end-1] = strings.TrimRight(sqltext.TrimTrailingComment(lines[end-1]), " \t\r")
			break
		}
		end--
	}
	return strings.TrimRight(strings.Join(lines[:end], "\n"), " \t\r\n")
}
