package runner

import (
	"context"
	"fmt"

	"github.com/sqlrun/sqlrun/pkg/command"
	"github.com/sqlrun/sqlrun/pkg/connection"
	"github.com/sqlrun/sqlrun/pkg/dialect"
)

// Hook is a backend-specific pre/post-execution plugin, selected when a
// connection is bound. PreExecute may rewrite the statement text; returning
// an empty string requests the statement be skipped entirely.
type Hook interface {
	PreExecute(ctx context.Context, conn *connection.Connection, sqlText string) (string, error)
	PostExecute(ctx context.Context, conn *connection.Connection, res *command.Result)
}

// HookFor returns the hook appropriate for the backend, or nil when the
// backend declares none.
func HookFor(caps *dialect.Capabilities) Hook {
	if caps == nil || caps.OutputFetchSQL == "" {
		return nil
	}
	return &outputHook{enableSQL: caps.OutputEnableSQL, fetchSQL: caps.OutputFetchSQL}
}

// outputHook captures server-side print/output streams: an enable statement
// runs once before the first execution, and the fetch query collects
// pending output lines after each statement.
type outputHook struct {
	enableSQL string
	fetchSQL  string
	enabled   bool
}

func (h *outputHook) PreExecute(ctx context.Context, conn *connection.Connection, sqlText string) (string, error) {
	if h.enableSQL != "" && !h.enabled {
		if _, err := conn.Raw().ExecContext(ctx, h.enableSQL); err != nil {
			return sqlText, fmt.Errorf("failed to enable session output: %w", err)
		}
		h.enabled = true
	}
	return sqlText, nil
}

func (h *outputHook) PostExecute(ctx context.Context, conn *connection.Connection, res *command.Result) {
	rows, err := conn.Raw().QueryContext(ctx, h.fetchSQL)
	if err != nil {
		res.AddWarning("failed to fetch session output: %v", err)
		return
	}
	defer rows.Close()
	for rows.Next() {
		var line string
		if err := rows.Scan(&line); err != nil {
			res.AddWarning("failed to read session output: %v", err)
			return
		}
		if line != "" {
			res.AddMessage("%s", line)
		}
	}
	if err := rows.Err(); err != nil {
		res.AddWarning("failed to read session output: %v", err)
	}
}
