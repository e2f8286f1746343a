// Package connection wraps a database/sql connection with the session state
// the execution core needs: backend capabilities, read-only and confirmation
// flags, query limits, savepoints and per-run statement handles.
//
// A Connection pins a single *sql.Conn so savepoints and script-scoped
// transactions observe one stable backend session rather than whatever the
// pool hands out.
package connection

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/sqlrun/sqlrun/pkg/dialect"
)

// Connection is one logical database session. One orchestrator uses a
// Connection at a time; only the session flags are safe for concurrent reads.
type Connection struct {
	id   string
	db   *sql.DB
	conn *sql.Conn
	caps *dialect.Capabilities

	mu                sync.RWMutex
	readOnly          bool
	confirmUpdates    bool
	confirmDML        bool // confirm UPDATE/DELETE without WHERE
	manualTransaction bool
	queryTimeout      time.Duration
	maxRows           int

	spMu      sync.Mutex
	savepoint *Savepoint
	txOpen    bool
}

// New pins a session from db and returns the wrapped connection. The id is
// used in log output and execution records.
func New(ctx context.Context, db *sql.DB, id string, caps *dialect.Capabilities) (*Connection, error) {
	if caps == nil {
		caps = dialect.ForVendor("")
	}
	conn, err := db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire connection: %w", err)
	}
	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return &Connection{id: id, db: db, conn: conn, caps: caps}, nil
}

// ID returns the connection identifier.
func (c *Connection) ID() string { return c.id }

// Capabilities returns the backend capability profile bound to this
// connection.
func (c *Connection) Capabilities() *dialect.Capabilities { return c.caps }

// Close releases the pinned session. The owning *sql.DB stays open.
func (c *Connection) Close() error {
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	if err != nil {
		return fmt.Errorf("failed to release connection: %w", err)
	}
	return nil
}

// SetReadOnly toggles the session read-only flag.
func (c *Connection) SetReadOnly(v bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.readOnly = v
}

// IsReadOnly reports whether the session rejects modifying statements.
func (c *Connection) IsReadOnly() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.readOnly
}

// SetConfirmUpdates makes every modifying statement require confirmation.
func (c *Connection) SetConfirmUpdates(v bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.confirmUpdates = v
}

// ConfirmUpdates reports whether modifying statements require confirmation.
func (c *Connection) ConfirmUpdates() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.confirmUpdates
}

// SetConfirmUnrestrictedDML makes UPDATE/DELETE statements without a WHERE
// clause require confirmation.
func (c *Connection) SetConfirmUnrestrictedDML(v bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.confirmDML = v
}

// ConfirmUnrestrictedDML reports whether WHERE-less DML requires
// confirmation.
func (c *Connection) ConfirmUnrestrictedDML() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.confirmDML
}

// SetManualTransaction marks the session as under manual transaction
// control; implicitly opened transactions are then never auto-ended.
func (c *Connection) SetManualTransaction(v bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.manualTransaction = v
}

// InManualTransaction reports whether manual transaction control is active.
func (c *Connection) InManualTransaction() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.manualTransaction
}

// SetQueryTimeout sets the per-statement timeout. Zero disables it.
func (c *Connection) SetQueryTimeout(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.queryTimeout = d
}

// QueryTimeout returns the per-statement timeout.
func (c *Connection) QueryTimeout() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.queryTimeout
}

// SetMaxRows caps the number of rows materialized per result set. Zero
// means unlimited.
func (c *Connection) SetMaxRows(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.maxRows = n
}

// MaxRows returns the configured row cap.
func (c *Connection) MaxRows() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.maxRows
}

// MarkTransactionOpen records that a transaction is in progress on this
// session (explicitly started, or implicitly by a query on backends that do
// that).
func (c *Connection) MarkTransactionOpen() {
	c.spMu.Lock()
	defer c.spMu.Unlock()
	c.txOpen = true
}

// BeginTransaction opens a transaction on the pinned session and tracks it.
// A no-op when one is already in progress.
func (c *Connection) BeginTransaction(ctx context.Context) error {
	c.spMu.Lock()
	defer c.spMu.Unlock()
	if c.txOpen {
		return nil
	}
	if _, err := c.conn.ExecContext(ctx, "BEGIN"); err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	c.txOpen = true
	return nil
}

// TransactionOpen reports whether a transaction is tracked as in progress.
func (c *Connection) TransactionOpen() bool {
	c.spMu.Lock()
	defer c.spMu.Unlock()
	return c.txOpen
}

// EndTransaction commits (or rolls back) the tracked transaction and clears
// the transaction flags, manual control included. A no-op when no transaction
// is tracked.
func (c *Connection) EndTransaction(ctx context.Context, commit bool) error {
	c.spMu.Lock()
	defer c.spMu.Unlock()
	if !c.txOpen {
		return nil
	}
	stmt := "ROLLBACK"
	if commit {
		stmt = "COMMIT"
	}
	if _, err := c.conn.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("failed to end transaction: %w", err)
	}
	c.txOpen = false
	c.SetManualTransaction(false)
	return nil
}

// Raw exposes the pinned session for callers that need direct access.
func (c *Connection) Raw() *sql.Conn { return c.conn }
