package connection

import (
	"context"
	"database/sql"
	"sync"
)

// Statement is a bounded-lifetime execution handle. It carries the context
// cancellation for the in-flight call so a cancel from another goroutine
// reaches the driver.
type Statement struct {
	conn *Connection

	mu     sync.Mutex
	cancel context.CancelFunc
	rows   *sql.Rows
	closed bool
}

// Statement returns a fresh execution handle on this connection.
func (c *Connection) Statement() *Statement {
	return &Statement{conn: c}
}

// prepareContext applies the configured query timeout and stores the cancel
// function so Cancel can reach the driver.
func (s *Statement) prepareContext(ctx context.Context) (context.Context, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, context.Canceled
	}
	if timeout := s.conn.QueryTimeout(); timeout > 0 {
		ctx, s.cancel = context.WithTimeout(ctx, timeout)
	} else {
		ctx, s.cancel = context.WithCancel(ctx)
	}
	return ctx, nil
}

// Query runs a row-returning statement. The returned rows are owned by the
// handle and closed on Close.
func (s *Statement) Query(ctx context.Context, sqlText string) (*sql.Rows, error) {
	qctx, err := s.prepareContext(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := s.conn.conn.QueryContext(qctx, sqlText)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.rows = rows
	s.mu.Unlock()
	return rows, nil
}

// Exec runs a non-row-returning statement.
func (s *Statement) Exec(ctx context.Context, sqlText string) (sql.Result, error) {
	ectx, err := s.prepareContext(ctx)
	if err != nil {
		return nil, err
	}
	return s.conn.conn.ExecContext(ectx, sqlText)
}

// Cancel aborts the in-flight call, if any. Safe to call from another
// goroutine.
func (s *Statement) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
	}
}

// Close releases the handle: pending rows are closed and the context
// cancellation is released. Idempotent.
func (s *Statement) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	var err error
	if s.rows != nil {
		err = s.rows.Close()
		s.rows = nil
	}
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	return err
}
