package sqltext

import (
	"strings"
	"unicode"

	"github.com/blastrain/vitess-sqlparser/sqlparser"
)

// VerbAfterWith returns the verb of the main statement reachable through a
// WITH head, e.g. "WITH cte AS (...) DELETE FROM t" yields DELETE. For
// statements without a WITH head it returns Verb(sql).
func VerbAfterWith(sql string) string {
	verb := Verb(sql)
	if verb != "WITH" {
		return verb
	}
	rest := SkipLeadingComments(sql)
	depth := 0
	inSingle, inDouble := false, false
	i := 0
	for i < len(rest) {
		ch := rest[i]
		switch {
		case inSingle:
			if ch == '\'' {
				inSingle = false
			}
		case inDouble:
			if ch == '"' {
				inDouble = false
			}
		case ch == '\'':
			inSingle = true
		case ch == '"':
			inDouble = true
		case ch == '-' && i+1 < len(rest) && rest[i+1] == '-':
			for i < len(rest) && rest[i] != '\n' {
				i++
			}
		case ch == '/' && i+1 < len(rest) && rest[i+1] == '*':
			i += 2
			for i < len(rest) && !(rest[i] == '*' && i+1 < len(rest) && rest[i+1] == '/') {
				i++
			}
			i++
		case ch == '(':
			depth++
		case ch == ')':
			depth--
		case depth == 0 && isIdentStart(ch):
			start := i
			for i < len(rest) && isIdentPart(rest[i]) {
				i++
			}
			word := strings.ToUpper(rest[start:i])
			switch word {
			case "SELECT", "INSERT", "UPDATE", "DELETE", "MERGE":
				return word
			}
			continue
		}
		i++
	}
	return verb
}

// IsWhereLessDML reports whether the statement is an UPDATE or DELETE with no
// WHERE clause. The check prefers a real parse and falls back to a token scan
// for statements the parser cannot handle.
func IsWhereLessDML(sql string) bool {
	verb := VerbAfterWith(sql)
	if verb != "UPDATE" && verb != "DELETE" {
		return false
	}
	stmt, err := sqlparser.Parse(sql)
	if err == nil {
		switch s := stmt.(type) {
		case *sqlparser.Update:
			return s.Where == nil
		case *sqlparser.Delete:
			return s.Where == nil
		}
	}
	return !containsTopLevelWord(sql, "WHERE")
}

// containsTopLevelWord scans for a keyword outside quotes, comments and
// parenthesized subexpressions.
func containsTopLevelWord(sql, word string) bool {
	rest := SkipLeadingComments(sql)
	depth := 0
	inSingle, inDouble := false, false
	i := 0
	for i < len(rest) {
		ch := rest[i]
		switch {
		case inSingle:
			if ch == '\'' {
				inSingle = false
			}
		case inDouble:
			if ch == '"' {
				inDouble = false
			}
		case ch == '\'':
			inSingle = true
		case ch == '"':
			inDouble = true
		case ch == '-' && i+1 < len(rest) && rest[i+1] == '-':
			for i < len(rest) && rest[i] != '\n' {
				i++
			}
		case ch == '/' && i+1 < len(rest) && rest[i+1] == '*':
			i += 2
			for i < len(rest) && !(rest[i] == '*' && i+1 < len(rest) && rest[i+1] == '/') {
				i++
			}
			i++
		case ch == '(':
			depth++
		case ch == ')':
			depth--
		case depth == 0 && isIdentStart(ch):
			start := i
			for i < len(rest) && isIdentPart(rest[i]) {
				i++
			}
			if strings.EqualFold(rest[start:i], word) {
				return true
			}
			continue
		}
		i++
	}
	return false
}

func isIdentStart(ch byte) bool {
	return ch == '_' || unicode.IsLetter(rune(ch))
}

func isIdentPart(ch byte) bool {
	return ch == '_' || unicode.IsLetter(rune(ch)) || unicode.IsDigit(rune(ch))
}
