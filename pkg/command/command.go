// Package command implements the statement execution contract: the Command
// interface, the generic SQL command that runs opaque statement text, the
// verb-to-command mapper, and result draining.
package command

import (
	"context"
	"errors"

	"github.com/sqlrun/sqlrun/pkg/connection"
)

// WildcardVerb is the synthetic verb the fallback command is registered
// under; anything unresolved dispatches to it.
const WildcardVerb = "*"

// ErrNoConnection is returned when a command that requires a connection is
// executed without one bound. It is the only dispatch-time failure that
// surfaces as an error rather than a Result.
var ErrNoConnection = errors.New("no database connection available")

// RunMode distinguishes the environments a command may run in.
type RunMode int

// Run modes.
const (
	ModeInteractive RunMode = iota
	ModeBatch
)

// String implements fmt.Stringer.
func (m RunMode) String() string {
	switch m {
	case ModeInteractive:
		return "interactive"
	case ModeBatch:
		return "batch"
	default:
		return "unknown"
	}
}

// Command is the unit of execution for one statement kind. One instance per
// verb is shared across many runs, so all per-run state is established at
// the start of Execute and cleared by Done.
type Command interface {
	// Verbs returns every verb this command handles.
	Verbs() []string

	// IsToolCommand reports whether this is a tool verb (eligible for
	// abbreviation matching) rather than backend SQL.
	IsToolCommand() bool

	// SupportsMode reports whether the command may run in the given mode.
	SupportsMode(mode RunMode) bool

	// RequiresConnection reports whether Execute needs a bound connection.
	RequiresConnection() bool

	// SetConnection binds (or clears) the connection used by Execute.
	SetConnection(conn *connection.Connection)

	// IsUpdatingCommand reports whether the statement modifies data or
	// schema under the bound backend's classification.
	IsUpdatingCommand(sqlText string) bool

	// NeedsConfirmation reports whether the statement must be confirmed
	// before execution.
	NeedsConfirmation(sqlText string) bool

	// Execute runs the statement. Statement-level failures are reported in
	// the Result; the error return is reserved for unrecoverable setup
	// problems such as a missing connection.
	Execute(ctx context.Context, sqlText string) (*Result, error)

	// Cancel aborts an in-flight Execute. Safe from another goroutine.
	Cancel()

	// Done releases per-run state. Idempotent; called exactly once per
	// Execute regardless of outcome.
	Done()
}

// base provides the no-op parts of the Command contract for commands that
// do not touch the database.
type base struct {
	verbs []string
	tool  bool
	conn  *connection.Connection
}

func (b *base) Verbs() []string                        { return b.verbs }
func (b *base) IsToolCommand() bool                    { return b.tool }
func (b *base) SupportsMode(RunMode) bool              { return true }
func (b *base) RequiresConnection() bool               { return false }
func (b *base) SetConnection(c *connection.Connection) { b.conn = c }
func (b *base) IsUpdatingCommand(string) bool          { return false }
func (b *base) NeedsConfirmation(string) bool          { return false }
func (b *base) Cancel()                                {}
func (b *base) Done()                                  {}
