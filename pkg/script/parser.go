// Package script splits a SQL script into individual statements, honoring
// the active delimiter, quoted regions and comments.
package script

import (
	"strings"

	"github.com/sqlrun/sqlrun/pkg/delimiter"
)

// Parser splits scripts on a configured delimiter.
type Parser struct {
	delim delimiter.Delimiter
}

// NewParser returns a parser using the given delimiter.
func NewParser(d delimiter.Delimiter) *Parser {
	return &Parser{delim: d}
}

// Delimiter returns the active delimiter.
func (p *Parser) Delimiter() delimiter.Delimiter { return p.delim }

// SetDelimiter switches the active delimiter.
func (p *Parser) SetDelimiter(d delimiter.Delimiter) { p.delim = d }

// Split breaks the script into statements with the delimiter removed. Empty
// statements are dropped. Quoted strings, line comments and block comments
// never terminate a statement.
func (p *Parser) Split(script string) []string {
	if p.delim.IsSingleLine() {
		return p.splitLines(script)
	}
	return p.splitScan(script)
}

// splitLines handles single-line delimiters: a statement ends when a line
// holds nothing but the delimiter.
func (p *Parser) splitLines(script string) []string {
	var statements []string
	var current strings.Builder
	for _, line := range strings.Split(script, "\n") {
		if strings.EqualFold(strings.TrimSpace(line), p.delim.Text()) {
			if stmt := strings.TrimSpace(current.String()); stmt != "" {
				statements = append(statements, stmt)
			}
			current.Reset()
			continue
		}
		current.WriteString(line)
		current.WriteByte('\n')
	}
	if stmt := strings.TrimSpace(current.String()); stmt != "" {
		statements = append(statements, stmt)
	}
	return statements
}

// splitScan handles suffix delimiters with a character scan.
func (p *Parser) splitScan(script string) []string {
	var statements []string
	var current strings.Builder
	delim := p.delim.Text()

	i := 0
	n := len(script)
	for i < n {
		ch := script[i]

		// Line comment.
		if ch == '-' && i+1 < n && script[i+1] == '-' {
			for i < n && script[i] != '\n' {
				current.WriteByte(script[i])
				i++
			}
			continue
		}

		// Block comment.
		if ch == '/' && i+1 < n && script[i+1] == '*' {
			current.WriteString("/*")
			i += 2
			for i < n {
				if script[i] == '*' && i+1 < n && script[i+1] == '/' {
					current.WriteString("*/")
					i += 2
					break
				}
				current.WriteByte(script[i])
				i++
			}
			continue
		}

		// Quoted strings and identifiers.
		if ch == '\'' || ch == '"' {
			quote := ch
			current.WriteByte(ch)
			i++
			for i < n {
				current.WriteByte(script[i])
				if script[i] == quote {
					i++
					// Doubled quote is an escape, keep scanning.
					if i < n && script[i] == quote {
						current.WriteByte(script[i])
						i++
						continue
					}
					break
				}
				i++
			}
			continue
		}

		// Delimiter match.
		if matchesFold(script[i:], delim) {
			if stmt := strings.TrimSpace(current.String()); stmt != "" {
				statements = append(statements, stmt)
			}
			current.Reset()
			i += len(delim)
			continue
		}

		current.WriteByte(ch)
		i++
	}
	if stmt := strings.TrimSpace(current.String()); stmt != "" {
		statements = append(statements, stmt)
	}
	return statements
}

func matchesFold(s, prefix string) bool {
	return len(s) >= len(prefix) && strings.EqualFold(s[:len(prefix)], prefix)
}
