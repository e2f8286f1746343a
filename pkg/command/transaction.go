package command

import (
	"context"
	"strings"
)

// TransactionCommand handles COMMIT and ROLLBACK: it runs the verb against
// the backend and clears the connection's tracked transaction state.
type TransactionCommand struct {
	base
	commit bool
}

// NewCommitCommand returns the COMMIT handler.
func NewCommitCommand() *TransactionCommand {
	return &TransactionCommand{base: base{verbs: []string{"COMMIT"}}, commit: true}
}

// NewRollbackCommand returns the ROLLBACK handler.
func NewRollbackCommand() *TransactionCommand {
	return &TransactionCommand{base: base{verbs: []string{"ROLLBACK"}}}
}

// RequiresConnection implements Command.
func (c *TransactionCommand) RequiresConnection() bool { return true }

// Execute implements Command.
func (c *TransactionCommand) Execute(ctx context.Context, sqlText string) (*Result, error) {
	if c.conn == nil {
		return nil, ErrNoConnection
	}
	res := NewResult()
	verb := "ROLLBACK"
	if c.commit {
		verb = "COMMIT"
	}
	if c.conn.TransactionOpen() {
		if err := c.conn.EndTransaction(ctx, c.commit); err != nil {
			res.SetError(err.Error(), 0, 0)
			return res, nil
		}
	} else if _, err := c.conn.Raw().ExecContext(ctx, sqlText); err != nil {
		// No tracked transaction; pass the statement through so backends
		// that care still see it.
		if !isNoTransactionError(err) {
			res.SetError(err.Error(), 0, 0)
			return res, nil
		}
		res.AddWarning("no transaction in progress")
	}
	res.Success = true
	res.AddMessage("%s complete", verb)
	return res, nil
}

// isNoTransactionError matches the backend complaints about ending a
// transaction that was never started.
func isNoTransactionError(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "no transaction")
}

var _ Command = (*TransactionCommand)(nil)
