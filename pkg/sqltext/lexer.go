// Package sqltext provides lightweight lexical analysis of SQL statement
// text: verb extraction, comment handling, and DDL object detection. It works
// on raw text and tolerates vendor syntax the full parser cannot handle.
package sqltext

import (
	"strings"
	"unicode"
)

// Verb returns the leading keyword of a statement in upper case, skipping
// leading whitespace, line comments and block comments. An empty string means
// the text contains no statement.
func Verb(sql string) string {
	rest := SkipLeadingComments(sql)
	if rest == "" {
		return ""
	}
	if rest[0] == '(' {
		// Parenthesized query, e.g. "(SELECT ...) UNION ...".
		return Verb(rest[1:])
	}
	end := 0
	for end < len(rest) {
		ch := rest[end]
		if ch == ' ' || ch == '\t' || ch == '\n' || ch == '\r' || ch == '(' || ch == ';' {
			break
		}
		end++
	}
	return strings.ToUpper(rest[:end])
}

// SkipLeadingComments returns the text with leading whitespace, line comments
// and block comments removed.
func SkipLeadingComments(sql string) string {
	i := 0
	n := len(sql)
	for i < n {
		switch {
		case unicode.IsSpace(rune(sql[i])):
			i++
		case sql[i] == '-' && i+1 < n && sql[i+1] == '-':
			for i < n && sql[i] != '\n' {
				i++
			}
		case sql[i] == '/' && i+1 < n && sql[i+1] == '*':
			i += 2
			for i < n {
				if sql[i] == '*' && i+1 < n && sql[i+1] == '/' {
					i += 2
					break
				}
				i++
			}
		default:
			return sql[i:]
		}
	}
	return ""
}

// TrimTrailingComment removes a trailing line comment from a single line of
// text, honoring single- and double-quoted regions.
func TrimTrailingComment(line string) string {
	inSingle, inDouble := false, false
	for i := 0; i < len(line); i++ {
		switch line[i] {
		case '\'':
			if !inDouble {
				inSingle = !inSingle
			}
		case '"':
			if !inSingle {
				inDouble = !inDouble
			}
		case '-':
			if !inSingle && !inDouble && i+1 < len(line) && line[i+1] == '-' {
				return line[:i]
			}
		}
	}
	return line
}

// LeadingComments returns the text of all comments before the first
// statement token, with comment markers removed. This is where statement
// annotations live.
func LeadingComments(sql string) []string {
	var comments []string
	i := 0
	n := len(sql)
	for i < n {
		switch {
		case unicode.IsSpace(rune(sql[i])):
			i++
		case sql[i] == '-' && i+1 < n && sql[i+1] == '-':
			start := i + 2
			for i < n && sql[i] != '\n' {
				i++
			}
			comments = append(comments, strings.TrimSpace(sql[start:i]))
		case sql[i] == '/' && i+1 < n && sql[i+1] == '*':
			start := i + 2
			i += 2
			for i < n {
				if sql[i] == '*' && i+1 < n && sql[i+1] == '/' {
					comments = append(comments, strings.TrimSpace(sql[start:i]))
					i += 2
					break
				}
				i++
			}
		default:
			return comments
		}
	}
	return comments
}

// ObjectInfo describes the schema object a DDL statement operates on.
type ObjectInfo struct {
	Type string // TABLE, INDEX, VIEW, ...
	Name string
}

var ddlObjectTypes = []string{
	"TABLE", "INDEX", "VIEW", "SEQUENCE", "SCHEMA", "DATABASE",
	"FUNCTION", "PROCEDURE", "TRIGGER", "ROLE", "TYPE",
}

// DDLObject extracts the object type and name from a DDL statement
// (CREATE/DROP/ALTER/ANALYZE/TRUNCATE and friends). The second return value
// is false when the statement cannot be classified.
func DDLObject(sql string) (ObjectInfo, bool) {
	fields := tokenize(SkipLeadingComments(sql), 8)
	if len(fields) < 2 {
		return ObjectInfo{}, false
	}
	// Skip the verb plus common modifiers.
	idx := 1
	for idx < len(fields) {
		switch strings.ToUpper(fields[idx]) {
		case "OR", "REPLACE", "UNIQUE", "TEMP", "TEMPORARY", "MATERIALIZED", "IF", "NOT", "EXISTS":
			idx++
		default:
			goto scan
		}
	}
scan:
	if idx >= len(fields) {
		return ObjectInfo{}, false
	}
	objType := strings.ToUpper(fields[idx])
	for _, t := range ddlObjectTypes {
		if objType == t {
			// The name may be prefixed by IF [NOT] EXISTS.
			nameIdx := idx + 1
			for nameIdx < len(fields) {
				switch strings.ToUpper(fields[nameIdx]) {
				case "IF", "NOT", "EXISTS":
					nameIdx++
				default:
					name := strings.TrimRight(fields[nameIdx], ";(")
					if name == "" {
						return ObjectInfo{}, false
					}
					return ObjectInfo{Type: t, Name: name}, true
				}
			}
			return ObjectInfo{}, false
		}
	}
	return ObjectInfo{}, false
}

// tokenize splits the first max whitespace- or paren-delimited tokens.
func tokenize(s string, max int) []string {
	var out []string
	i := 0
	for i < len(s) && len(out) < max {
		for i < len(s) && unicode.IsSpace(rune(s[i])) {
			i++
		}
		start := i
		for i < len(s) && !unicode.IsSpace(rune(s[i])) && s[i] != '(' {
			i++
		}
		if i > start {
			out = append(out, s[start:i])
		}
		if i < len(s) && s[i] == '(' {
			i++
		}
	}
	return out
}
