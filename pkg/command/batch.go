package command

import (
	"context"

	"github.com/sqlrun/sqlrun/pkg/connection"
)

// Batch collects statements between a STARTBATCH and an ENDBATCH and runs
// them as one unit, summing update counts. The first failing statement
// aborts the batch.
type Batch struct {
	conn       *connection.Connection
	statements []string
}

// Add appends a statement to the pending batch.
func (b *Batch) Add(sqlText string) {
	b.statements = append(b.statements, sqlText)
}

// Size returns the number of collected statements.
func (b *Batch) Size() int { return len(b.statements) }

// Run executes the collected statements in order.
func (b *Batch) Run(ctx context.Context) (*Result, error) {
	res := NewResult()
	if b.conn == nil {
		return nil, ErrNoConnection
	}
	var total int64
	for i, sqlText := range b.statements {
		result, err := b.conn.Raw().ExecContext(ctx, sqlText)
		if err != nil {
			res.SetError(err.Error(), 0, 0)
			res.AddWarning("batch aborted at statement %d of %d", i+1, len(b.statements))
			return res, nil
		}
		if n, err := result.RowsAffected(); err == nil {
			total += n
		}
	}
	res.Success = true
	res.UpdateCounts = append(res.UpdateCounts, total)
	res.AddMessage("batch of %d statement(s) executed, %d row(s) affected", len(b.statements), total)
	return res, nil
}

// StartBatchCommand begins collecting statements into a batch. The
// orchestrator stashes the batch and routes subsequent statements into it
// until the matching ENDBATCH.
type StartBatchCommand struct {
	base
}

// NewStartBatchCommand returns the STARTBATCH handler.
func NewStartBatchCommand() *StartBatchCommand {
	return &StartBatchCommand{base: base{verbs: []string{"STARTBATCH"}, tool: true}}
}

// RequiresConnection implements Command.
func (c *StartBatchCommand) RequiresConnection() bool { return true }

// Execute implements Command.
func (c *StartBatchCommand) Execute(_ context.Context, _ string) (*Result, error) {
	res := NewResult()
	res.Success = true
	res.AddMessage("batch started")
	return res, nil
}

// NewBatch returns the batch this command collects into.
func (c *StartBatchCommand) NewBatch() *Batch {
	return &Batch{conn: c.conn}
}

// EndBatchCommand triggers execution of the stashed batch. The orchestrator
// intercepts it; executing it without a pending batch is an error.
type EndBatchCommand struct {
	base
}

// NewEndBatchCommand returns the ENDBATCH handler.
func NewEndBatchCommand() *EndBatchCommand {
	return &EndBatchCommand{base: base{verbs: []string{"ENDBATCH"}, tool: true}}
}

// Execute implements Command.
func (c *EndBatchCommand) Execute(_ context.Context, _ string) (*Result, error) {
	res := NewResult()
	res.SetError("ENDBATCH without a pending STARTBATCH", 0, 0)
	return res, nil
}

var (
	_ Command = (*StartBatchCommand)(nil)
	_ Command = (*EndBatchCommand)(nil)
)
