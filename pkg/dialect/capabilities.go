// Package dialect describes what a database backend can do, as a set of
// declarative capability flags. The execution core never branches on a vendor
// name; it only consults the Capabilities bound to the current connection.
package dialect

import (
	"regexp"
	"strings"
)

// DefaultMaxResultIterations bounds the result-draining loop for drivers that
// keep reporting additional result sets.
const DefaultMaxResultIterations = 50

// Capabilities declares the backend-specific behavior of one connection.
// A zero value is usable and describes a conservative generic backend;
// use ForVendor to get a tuned preset.
type Capabilities struct {
	// Vendor is informational only (log output, error messages).
	Vendor string

	// SupportsSavepoints reports whether SAVEPOINT / RELEASE / ROLLBACK TO
	// are available for isolating single-statement failures.
	SupportsSavepoints bool

	// SupportsMultipleResults reports whether one execution may yield more
	// than one result set.
	SupportsMultipleResults bool

	// QueryStartsTransaction reports whether a plain query implicitly opens
	// a transaction that must eventually be ended.
	QueryStartsTransaction bool

	// MaxResultIterations caps the result-draining loop. Zero means
	// DefaultMaxResultIterations.
	MaxResultIterations int

	// TransactionStartVerbs are vendor verbs that open an explicit
	// transaction (BEGIN, START, BEGIN WORK aliases and the like).
	TransactionStartVerbs []string

	// IgnoredVerbs are verbs the backend declares as no-ops; they resolve to
	// a command that succeeds without touching the connection.
	IgnoredVerbs []string

	// PassthroughVerbs are verbs that bypass normal dispatch and go straight
	// to the generic command.
	PassthroughVerbs []string

	// CallVerbs are vendor aliases for procedure invocation; they are bound
	// to the generic command on backend bind.
	CallVerbs []string

	// UpdatingVerbs classify a statement as data- or schema-modifying.
	// Empty means the built-in default set.
	UpdatingVerbs []string

	// MaxRowsVerbs are the verbs the configured row cap applies to. Empty
	// means all row-returning statements.
	MaxRowsVerbs []string

	// SelectIntoPattern detects a query that materializes into a new table
	// (SELECT ... INTO newtable). Such statements produce an update count,
	// not a row stream. Nil disables the detection.
	SelectIntoPattern *regexp.Regexp

	// ErrorPosition extracts a best-effort source position from a backend
	// error. Nil if the backend cannot report one.
	ErrorPosition func(err error, sql string) (line, column int, ok bool)

	// OutputEnableSQL and OutputFetchSQL configure the session-output hook:
	// the first is run before a statement, the second collects server-side
	// print output afterwards. Empty disables the hook.
	OutputEnableSQL string
	OutputFetchSQL  string
}

var defaultUpdatingVerbs = []string{
	"INSERT", "UPDATE", "DELETE", "MERGE", "TRUNCATE", "UPSERT",
	"CREATE", "DROP", "ALTER", "GRANT", "REVOKE", "RENAME", "COMMENT",
}

// IsUpdatingVerb reports whether the verb is classified as data- or
// schema-modifying for this backend.
func (c *Capabilities) IsUpdatingVerb(verb string) bool {
	verbs := c.UpdatingVerbs
	if len(verbs) == 0 {
		verbs = defaultUpdatingVerbs
	}
	return containsFold(verbs, verb)
}

// IsTransactionStart reports whether the verb opens an explicit transaction.
func (c *Capabilities) IsTransactionStart(verb string) bool {
	return containsFold(c.TransactionStartVerbs, verb)
}

// IsIgnoredVerb reports whether the backend declares the verb as a no-op.
func (c *Capabilities) IsIgnoredVerb(verb string) bool {
	return containsFold(c.IgnoredVerbs, verb)
}

// UsesMaxRows reports whether the configured row cap applies to the verb.
func (c *Capabilities) UsesMaxRows(verb string) bool {
	if len(c.MaxRowsVerbs) == 0 {
		return true
	}
	return containsFold(c.MaxRowsVerbs, verb)
}

// IsSelectIntoNewTable reports whether the statement is a query that
// materializes its result into a new table.
func (c *Capabilities) IsSelectIntoNewTable(sql string) bool {
	if c.SelectIntoPattern == nil {
		return false
	}
	return c.SelectIntoPattern.MatchString(sql)
}

// ResultIterationLimit returns the effective cap on result-set iterations.
func (c *Capabilities) ResultIterationLimit() int {
	if c.MaxResultIterations > 0 {
		return c.MaxResultIterations
	}
	return DefaultMaxResultIterations
}

func containsFold(list []string, s string) bool {
	for _, v := range list {
		if strings.EqualFold(v, s) {
			return true
		}
	}
	return false
}
