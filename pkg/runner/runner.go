// Package runner implements the statement orchestrator: the per-statement
// pipeline from variable substitution and permission gating through command
// execution, result post-processing and logging.
package runner

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"sync"
	"time"

	"github.com/sqlrun/sqlrun/pkg/command"
	"github.com/sqlrun/sqlrun/pkg/connection"
	"github.com/sqlrun/sqlrun/pkg/history"
	"github.com/sqlrun/sqlrun/pkg/sqltext"
	"github.com/sqlrun/sqlrun/pkg/variables"
)

// SavepointPolicy controls when a statement run is guarded by a savepoint.
type SavepointPolicy int

// Savepoint policies.
const (
	// SavepointNever disables statement-level savepoints.
	SavepointNever SavepointPolicy = iota
	// SavepointForDML guards data- and schema-modifying statements so one
	// failure does not poison a surrounding script transaction.
	SavepointForDML
)

// Controller supplies the interactive decisions the pipeline may need. A
// nil controller means confirmations are granted and prompting is skipped.
type Controller interface {
	// ConfirmExecution asks whether a statement should run. Returning
	// false cancels the statement without failing the script.
	ConfirmExecution(prompt string) bool

	// PromptVariable asks for a variable value before execution. Returning
	// false aborts the statement with a prompting-cancelled result.
	PromptVariable(name, current string) (string, bool)
}

// ResultConsumer receives every finished result, distinct from the
// cursor-level consumer a command may hand rows to.
type ResultConsumer interface {
	ConsumeResult(res *command.Result)
}

// promptVar matches ${?name} prompt placeholders.
var promptVar = regexp.MustCompile(`\$\{\?([A-Za-z_][A-Za-z0-9_]*)\}`)

// Runner executes statements one at a time against a bound connection.
// A Runner is not safe for concurrent Run calls; Cancel is the only method
// safe to invoke from another goroutine.
type Runner struct {
	mapper *command.Mapper
	pool   *variables.Pool
	hist   *history.History
	logger *slog.Logger

	conn       *connection.Connection
	hook       Hook
	controller Controller
	consumer   command.RowConsumer
	results    ResultConsumer

	mode            command.RunMode
	savepointPolicy SavepointPolicy
	promptVariables bool
	verbose         bool
	execLog         io.Writer

	mu      sync.Mutex
	current command.Command

	batch      *command.Batch
	wasQuery   bool
	hasHistory bool
}

// New returns a runner using the given registry, variable pool and history.
func New(logger *slog.Logger, mapper *command.Mapper, pool *variables.Pool, hist *history.History) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		mapper:          mapper,
		pool:            pool,
		hist:            hist,
		logger:          logger,
		mode:            command.ModeBatch,
		savepointPolicy: SavepointForDML,
		hasHistory:      hist != nil,
	}
}

// SetConnection binds a connection: the registry re-binds its
// backend-specific verbs, every command gets the connection, and the
// backend's hook is selected.
func (r *Runner) SetConnection(conn *connection.Connection) {
	r.conn = conn
	if conn != nil {
		r.mapper.BindBackend(conn.Capabilities())
		r.hook = HookFor(conn.Capabilities())
	} else {
		r.mapper.BindBackend(nil)
		r.hook = nil
	}
	r.mapper.SetConnection(conn)
	r.batch = nil
}

// Connection returns the bound connection, nil when none is bound.
func (r *Runner) Connection() *connection.Connection { return r.conn }

// SetMode sets the run mode used for command mode checks.
func (r *Runner) SetMode(mode command.RunMode) { r.mode = mode }

// SetController installs the interactive decision callback.
func (r *Runner) SetController(c Controller) { r.controller = c }

// SetRowConsumer registers a cursor-level consumer applied to each run.
func (r *Runner) SetRowConsumer(c command.RowConsumer) { r.consumer = c }

// SetResultConsumer registers a consumer for finished results.
func (r *Runner) SetResultConsumer(c ResultConsumer) { r.results = c }

// SetSavepointPolicy selects the statement savepoint strategy.
func (r *Runner) SetSavepointPolicy(p SavepointPolicy) { r.savepointPolicy = p }

// EnableVariablePrompting turns on interactive ${?name} prompting.
func (r *Runner) EnableVariablePrompting(v bool) { r.promptVariables = v }

// SetVerboseLogging enables the execution log. Lines are written to w in
// the fixed format "Executed: (<connection-id>)\n<sql>\n(<duration>ms)".
func (r *Runner) SetVerboseLogging(w io.Writer) {
	r.verbose = w != nil
	r.execLog = w
}

// Run executes one statement through the full pipeline. Statement-level
// failures come back inside the Result; only setup problems (notably a
// missing connection) are returned as errors.
func (r *Runner) Run(ctx context.Context, sqlText string) (*command.Result, error) {
	started := time.Now()

	// Parameter prompting happens before anything else so a cancelled
	// prompt never reaches the backend.
	text, ok, err := r.promptParameters(sqlText)
	if err != nil {
		return failedResult(err), nil
	}
	if !ok {
		res := command.NewResult()
		res.Success = true
		res.Cancelled = true
		res.AddMessage("parameter prompting cancelled")
		return res, nil
	}

	cmd, verb := r.mapper.Resolve(text)

	if !cmd.SupportsMode(r.mode) {
		res := command.NewResult()
		res.Success = true
		res.AddWarning("%s is not supported in %s mode", verb, r.mode)
		return res, nil
	}

	if cmd.RequiresConnection() && r.conn == nil {
		return nil, fmt.Errorf("cannot execute %s: %w", verb, command.ErrNoConnection)
	}

	text, err = r.substitute(text)
	if err != nil {
		return failedResult(err), nil
	}

	if r.conn != nil && r.conn.IsReadOnly() && cmd.IsUpdatingCommand(text) {
		res := command.NewResult()
		res.Success = true
		res.AddWarning("session is read-only, %s statement not executed", verb)
		return res, nil
	}

	if r.controller != nil && cmd.NeedsConfirmation(text) {
		if !r.controller.ConfirmExecution(fmt.Sprintf("Execute %s statement?", verb)) {
			res := command.NewResult()
			res.Success = true
			res.Cancelled = true
			res.AddMessage("execution cancelled by user")
			return res, nil
		}
	}

	if r.hook != nil {
		rewritten, err := r.hook.PreExecute(ctx, r.conn, text)
		if err != nil {
			return failedResult(err), nil
		}
		if rewritten == "" {
			res := command.NewResult()
			res.Success = true
			res.AddMessage("statement skipped")
			return res, nil
		}
		text = rewritten
	}

	res, err := r.execute(ctx, cmd, verb, text)
	if err != nil {
		return nil, err
	}

	ParseAnnotations(sqlText).Apply(res)

	if r.results != nil && !res.Consumed {
		r.results.ConsumeResult(res)
	}

	if r.hook != nil {
		r.hook.PostExecute(ctx, r.conn, res)
	}

	res.Duration = time.Since(started)
	if r.hasHistory {
		r.hist.Add(sqlText)
	}
	r.logExecution(text, res.Duration)
	return res, nil
}

// execute dispatches to the command, handling batch chaining, savepoint
// policy and transaction tracking around the call.
func (r *Runner) execute(ctx context.Context, cmd command.Command, verb, text string) (*command.Result, error) {
	// A pending batch swallows every statement until its ENDBATCH.
	if r.batch != nil {
		if _, ok := cmd.(*command.EndBatchCommand); ok {
			batch := r.batch
			r.batch = nil
			return batch.Run(ctx)
		}
		if _, ok := cmd.(*command.StartBatchCommand); ok {
			res := command.NewResult()
			res.SetError("STARTBATCH while a batch is already pending", 0, 0)
			return res, nil
		}
		r.batch.Add(text)
		res := command.NewResult()
		res.Success = true
		res.AddMessage("statement added to batch (%d pending)", r.batch.Size())
		return res, nil
	}

	sqlCmd, isSQL := cmd.(*command.SQLCommand)
	isQuery := isQueryStatement(verb)
	if isSQL {
		sqlCmd.SetConsumer(r.consumer)
		// The statement type changed: end the implicitly opened read
		// transaction before the new statement runs.
		if r.conn != nil && !isQuery && r.wasQuery &&
			r.conn.TransactionOpen() && !r.conn.InManualTransaction() {
			if err := r.conn.EndTransaction(ctx, true); err != nil {
				r.logger.Warn("failed to end read transaction", "error", err)
			}
		}
		// Queries on these backends run inside a transaction; the pinned
		// session autocommits until one is opened explicitly.
		if r.conn != nil && isQuery && r.conn.Capabilities().QueryStartsTransaction &&
			!r.conn.TransactionOpen() {
			if err := r.conn.BeginTransaction(ctx); err != nil {
				r.logger.Warn("failed to begin read transaction", "error", err)
			}
		}
		// Savepoints only work inside an open transaction.
		if r.savepointPolicy == SavepointForDML && cmd.IsUpdatingCommand(text) &&
			r.conn != nil && r.conn.TransactionOpen() {
			sqlCmd.SetUseSavepoint(true)
		}
	}

	r.mu.Lock()
	r.current = cmd
	r.mu.Unlock()
	defer func() {
		r.mu.Lock()
		r.current = nil
		r.mu.Unlock()
		cmd.Done()
	}()

	res, err := cmd.Execute(ctx, text)
	if err != nil {
		return nil, err
	}

	if start, ok := cmd.(*command.StartBatchCommand); ok && res.Success {
		r.batch = start.NewBatch()
	}

	// An explicit transaction start switches the session to manual control.
	if isSQL && r.conn != nil && res.Success {
		if r.conn.Capabilities().IsTransactionStart(verb) {
			r.conn.MarkTransactionOpen()
			r.conn.SetManualTransaction(true)
		}
		r.wasQuery = isQuery
	}
	return res, nil
}

// Finish ends an implicitly opened read transaction at end of script.
func (r *Runner) Finish(ctx context.Context) error {
	r.batch = nil
	if r.conn == nil || r.conn.InManualTransaction() {
		return nil
	}
	return r.conn.EndTransaction(ctx, true)
}

// Cancel aborts the statement currently inside Run. Safe from another
// goroutine.
func (r *Runner) Cancel() {
	r.mu.Lock()
	cmd := r.current
	r.mu.Unlock()
	if cmd != nil {
		cmd.Cancel()
	}
}

// promptParameters resolves ${?name} placeholders through the controller.
// The second return value is false when the user cancelled prompting.
func (r *Runner) promptParameters(sqlText string) (string, bool, error) {
	if !r.promptVariables || r.controller == nil {
		return sqlText, true, nil
	}
	matches := promptVar.FindAllStringSubmatch(sqlText, -1)
	if matches == nil {
		return sqlText, true, nil
	}
	for _, m := range matches {
		name := m[1]
		current, _ := r.pool.Get(name)
		value, ok := r.controller.PromptVariable(name, current)
		if !ok {
			return "", false, nil
		}
		r.pool.Set(name, value)
	}
	return promptVar.ReplaceAllString(sqlText, "${$1}"), true, nil
}

// substitute applies variable substitution, logging before/after only when
// the text actually changed.
func (r *Runner) substitute(sqlText string) (string, error) {
	if r.pool == nil {
		return sqlText, nil
	}
	replaced, err := r.pool.Substitute(sqlText)
	if err != nil {
		return "", fmt.Errorf("variable substitution failed: %w", err)
	}
	if replaced != sqlText {
		r.logger.Debug("variable substitution applied",
			"before", sqlText,
			"after", replaced)
	}
	return replaced, nil
}

// logExecution appends the statement to the execution log when verbose
// logging is on.
func (r *Runner) logExecution(sqlText string, duration time.Duration) {
	if !r.verbose || r.execLog == nil {
		return
	}
	id := ""
	if r.conn != nil {
		id = r.conn.ID()
	}
	fmt.Fprintf(r.execLog, "Executed: (%s)\n%s\n(%dms)\n", id, sqlText, duration.Milliseconds())
}

func isQueryStatement(verb string) bool {
	for _, v := range command.QueryVerbs() {
		if v == verb {
			return true
		}
	}
	return false
}

func failedResult(err error) *command.Result {
	res := command.NewResult()
	res.SetError(err.Error(), 0, 0)
	return res
}

// Verb re-exports verb extraction for callers that only need dispatch
// inspection.
func Verb(sqlText string) string { return sqltext.Verb(sqlText) }
