package command

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/sqlrun/sqlrun/pkg/connection"
	"github.com/sqlrun/sqlrun/pkg/dialect"
	"github.com/sqlrun/sqlrun/pkg/sqltext"
)

// execMode selects how the statement reaches the driver.
type execMode int

const (
	// modeAuto classifies the verb per backend configuration and routes to
	// the query or exec path accordingly.
	modeAuto execMode = iota
	// modeQuery always streams rows.
	modeQuery
	// modeExec always takes the update-count path.
	modeExec
)

// SQLCommand executes opaque SQL text against the bound connection and
// drains whatever results the driver yields. It backs the wildcard verb,
// the row-returning query verbs, and the plain DML verbs; instances differ
// only in their verb list and routing mode.
type SQLCommand struct {
	verbs []string
	mode  execMode

	mu        sync.Mutex
	conn      *connection.Connection
	stmt      *connection.Statement
	consumer  RowConsumer
	savepoint bool
	cancelled atomic.Bool
}

// NewSQLCommand returns the generic command for the given verbs. The first
// verb should be WildcardVerb for the fallback instance.
func NewSQLCommand(verbs ...string) *SQLCommand {
	return &SQLCommand{verbs: verbs, mode: modeAuto}
}

// NewQueryCommand returns the row-streaming command for query verbs.
func NewQueryCommand(verbs ...string) *SQLCommand {
	return &SQLCommand{verbs: verbs, mode: modeQuery}
}

// NewDMLCommand returns the update-count command for plain DML verbs.
func NewDMLCommand(verbs ...string) *SQLCommand {
	return &SQLCommand{verbs: verbs, mode: modeExec}
}

// Verbs implements Command.
func (c *SQLCommand) Verbs() []string { return c.verbs }

// IsToolCommand implements Command; SQL commands are never tool commands.
func (c *SQLCommand) IsToolCommand() bool { return false }

// SupportsMode implements Command; plain SQL runs everywhere.
func (c *SQLCommand) SupportsMode(RunMode) bool { return true }

// RequiresConnection implements Command.
func (c *SQLCommand) RequiresConnection() bool { return true }

// SetConnection implements Command.
func (c *SQLCommand) SetConnection(conn *connection.Connection) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn = conn
}

// SetConsumer registers an external result consumer for the next run only;
// Done clears it.
func (c *SQLCommand) SetConsumer(consumer RowConsumer) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.consumer = consumer
}

// SetUseSavepoint tells the next run to guard execution with a savepoint.
// The orchestrator sets this per its savepoint policy; it only takes effect
// when the backend declares savepoint support.
func (c *SQLCommand) SetUseSavepoint(v bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.savepoint = v
}

// IsUpdatingCommand implements Command. Compound statements are classified
// by the verb reachable through their WITH head; a query materializing into
// a new table counts as updating.
func (c *SQLCommand) IsUpdatingCommand(sqlText string) bool {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return false
	}
	caps := conn.Capabilities()
	if caps.IsSelectIntoNewTable(sqlText) {
		return true
	}
	return caps.IsUpdatingVerb(sqltext.VerbAfterWith(sqlText))
}

// NeedsConfirmation implements Command.
func (c *SQLCommand) NeedsConfirmation(sqlText string) bool {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return false
	}
	if conn.ConfirmUpdates() && c.IsUpdatingCommand(sqlText) {
		return true
	}
	return conn.ConfirmUnrestrictedDML() && sqltext.IsWhereLessDML(sqlText)
}

// Execute implements Command. The run is bracketed: per-run state is
// established here and torn down by Done.
func (c *SQLCommand) Execute(ctx context.Context, sqlText string) (*Result, error) {
	c.mu.Lock()
	conn := c.conn
	if conn == nil {
		c.mu.Unlock()
		return nil, ErrNoConnection
	}
	c.cancelled.Store(false)
	stmt := conn.Statement()
	c.stmt = stmt
	consumer := c.consumer
	useSavepoint := c.savepoint
	c.mu.Unlock()

	res := NewResult()
	caps := conn.Capabilities()

	var sp *connection.Savepoint
	if useSavepoint && caps.SupportsSavepoints {
		var err error
		sp, err = conn.SetSavepoint(ctx)
		if err != nil {
			c.attachError(res, err, sqlText)
			return res, nil
		}
	}

	verb := sqltext.Verb(sqlText)
	if c.runsQuery(caps, verb, sqlText) {
		c.runQuery(ctx, conn, stmt, sqlText, verb, consumer, res)
	} else {
		c.runExec(ctx, stmt, sqlText, verb, res)
	}

	if res.Err != nil {
		if err := conn.RollbackSavepoint(ctx, sp); err != nil {
			res.AddWarning("savepoint rollback failed: %v", err)
		}
		return res, nil
	}
	if err := conn.ReleaseSavepoint(ctx, sp); err != nil {
		res.AddWarning("savepoint release failed: %v", err)
	}
	res.Success = true
	return res, nil
}

// runsQuery decides the driver path for this run.
func (c *SQLCommand) runsQuery(caps *dialect.Capabilities, verb, sqlText string) bool {
	switch c.mode {
	case modeQuery:
		return true
	case modeExec:
		return false
	default:
		if caps.IsSelectIntoNewTable(sqlText) {
			// No rows come back; the server reports an update count as a
			// DDL-like run would.
			return false
		}
		return isQueryVerb(verb)
	}
}

func (c *SQLCommand) runQuery(ctx context.Context, conn *connection.Connection, stmt *connection.Statement, sqlText, verb string, consumer RowConsumer, res *Result) {
	rows, err := stmt.Query(ctx, sqlText)
	if err != nil {
		c.attachErrorCancelled(res, err, sqlText)
		return
	}
	caps := conn.Capabilities()
	maxRows := 0
	if caps.UsesMaxRows(verb) {
		maxRows = conn.MaxRows()
	}
	proc := &ResultProcessor{
		MaxRows:         maxRows,
		MaxIterations:   caps.ResultIterationLimit(),
		Consumer:        consumer,
		Cancelled:       &c.cancelled,
		MultipleResults: caps.SupportsMultipleResults,
	}
	if err := proc.Drain(rows, res); err != nil {
		c.attachErrorCancelled(res, err, sqlText)
		return
	}
	for _, ds := range res.DataSets {
		res.AddMessage("%d row(s) returned", ds.RowCount())
	}
}

func (c *SQLCommand) runExec(ctx context.Context, stmt *connection.Statement, sqlText, verb string, res *Result) {
	result, err := stmt.Exec(ctx, sqlText)
	if err != nil {
		c.attachErrorCancelled(res, err, sqlText)
		return
	}
	count, err := result.RowsAffected()
	if err != nil {
		// Not every statement kind reports a count.
		count = -1
	}
	if count >= 0 {
		res.AddUpdateCount(count)
	}
	res.AddMessage("%s", successMessage(sqlText, verb))
}

// attachErrorCancelled records the failure, downgrading it to a cancelled
// run when our own cancellation caused it.
func (c *SQLCommand) attachErrorCancelled(res *Result, err error, sqlText string) {
	if c.cancelled.Load() || errors.Is(err, context.Canceled) {
		res.Cancelled = true
		res.AddWarning("statement cancelled")
		return
	}
	c.attachError(res, err, sqlText)
}

func (c *SQLCommand) attachError(res *Result, err error, sqlText string) {
	line, column := 0, 0
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn != nil && conn.Capabilities().ErrorPosition != nil {
		if l, col, ok := conn.Capabilities().ErrorPosition(err, sqlText); ok {
			line, column = l, col
		}
	}
	res.SetError(err.Error(), line, column)
}

// Cancel implements Command; callable from a different goroutine than the
// one inside Execute.
func (c *SQLCommand) Cancel() {
	c.cancelled.Store(true)
	c.mu.Lock()
	stmt := c.stmt
	c.mu.Unlock()
	if stmt != nil {
		stmt.Cancel()
	}
}

// Done implements Command: releases the statement handle and clears per-run
// state. Idempotent.
func (c *SQLCommand) Done() {
	c.mu.Lock()
	stmt := c.stmt
	c.stmt = nil
	c.consumer = nil
	c.savepoint = false
	c.mu.Unlock()
	c.cancelled.Store(false)
	if stmt != nil {
		stmt.Close()
	}
}

// queryVerbs are the row-returning verbs across supported backends.
var queryVerbs = []string{
	"SELECT", "WITH", "VALUES", "TABLE", "SHOW", "DESCRIBE", "DESC",
	"EXPLAIN", "PRAGMA",
}

func isQueryVerb(verb string) bool {
	for _, v := range queryVerbs {
		if strings.EqualFold(v, verb) {
			return true
		}
	}
	return false
}

// QueryVerbs returns the default row-returning verb set.
func QueryVerbs() []string {
	out := make([]string, len(queryVerbs))
	copy(out, queryVerbs)
	return out
}

// successMessage builds the human-readable completion message, typed by DDL
// object when the statement can be classified.
func successMessage(sqlText, verb string) string {
	if obj, ok := sqltext.DDLObject(sqlText); ok {
		switch strings.ToUpper(verb) {
		case "CREATE":
			return fmt.Sprintf("%s %s created", titleCase(obj.Type), obj.Name)
		case "DROP":
			return fmt.Sprintf("%s %s dropped", titleCase(obj.Type), obj.Name)
		case "ALTER":
			return fmt.Sprintf("%s %s altered", titleCase(obj.Type), obj.Name)
		case "ANALYZE":
			return fmt.Sprintf("%s %s analyzed", titleCase(obj.Type), obj.Name)
		case "TRUNCATE":
			return fmt.Sprintf("%s %s truncated", titleCase(obj.Type), obj.Name)
		}
	}
	if verb != "" {
		return fmt.Sprintf("%s executed", strings.ToUpper(verb))
	}
	return "Statement executed"
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + strings.ToLower(s[1:])
}
