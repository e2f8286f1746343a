package dialect

import (
	"errors"
	"regexp"
	"strconv"
	"strings"

	"github.com/lib/pq"
	"github.com/snowflakedb/gosnowflake"
)

var (
	pgSelectInto = regexp.MustCompile(`(?is)^\s*SELECT\b.*\bINTO\s+(TEMP(ORARY)?\s+)?(TABLE\s+)?[^\s,(]+`)

	// Snowflake reports positions inside the message text, e.g.
	// "syntax error line 1 at position 8 unexpected 'FROM'".
	sfPosition = regexp.MustCompile(`line\s+(\d+)\s+at\s+position\s+(\d+)`)
)

// ForVendor returns the capability preset for a known vendor. Unknown names
// get a conservative generic profile.
func ForVendor(vendor string) *Capabilities {
	switch strings.ToLower(vendor) {
	case "postgres", "postgresql":
		return &Capabilities{
			Vendor:                  "postgres",
			SupportsSavepoints:      true,
			SupportsMultipleResults: true,
			QueryStartsTransaction:  true,
			TransactionStartVerbs:   []string{"BEGIN", "START"},
			CallVerbs:               []string{"CALL", "DO"},
			IgnoredVerbs:            []string{"VACUUM"},
			SelectIntoPattern:       pgSelectInto,
			ErrorPosition:           postgresErrorPosition,
		}
	case "duckdb":
		return &Capabilities{
			Vendor:                "duckdb",
			TransactionStartVerbs: []string{"BEGIN", "START"},
			CallVerbs:             []string{"CALL"},
			SelectIntoPattern:     nil,
		}
	case "snowflake":
		return &Capabilities{
			Vendor:                  "snowflake",
			SupportsMultipleResults: true,
			TransactionStartVerbs:   []string{"BEGIN", "START"},
			CallVerbs:               []string{"CALL"},
			IgnoredVerbs:            []string{"WHENEVER"},
			ErrorPosition:           snowflakeErrorPosition,
		}
	default:
		return &Capabilities{Vendor: "generic"}
	}
}

// postgresErrorPosition converts the character offset reported by the server
// into a line and column in the statement text.
func postgresErrorPosition(err error, sql string) (int, int, bool) {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) || pqErr.Position == "" {
		return 0, 0, false
	}
	offset, convErr := strconv.Atoi(pqErr.Position)
	if convErr != nil || offset < 1 || offset > len(sql) {
		return 0, 0, false
	}
	line, column := 1, 1
	for _, r := range sql[:offset-1] {
		if r == '\n' {
			line++
			column = 1
			continue
		}
		column++
	}
	return line, column, true
}

func snowflakeErrorPosition(err error, _ string) (int, int, bool) {
	var sfErr *gosnowflake.SnowflakeError
	if !errors.As(err, &sfErr) {
		return 0, 0, false
	}
	m := sfPosition.FindStringSubmatch(sfErr.Message)
	if m == nil {
		return 0, 0, false
	}
	line, _ := strconv.Atoi(m[1])
	column, _ := strconv.Atoi(m[2])
	// Snowflake positions are zero-based.
	return line, column + 1, true
}
