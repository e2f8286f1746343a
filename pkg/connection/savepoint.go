package connection

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Savepoint is an opaque intra-transaction rollback marker. At most one
// savepoint is active per connection at a time.
type Savepoint struct {
	name string
}

// Name returns the server-side savepoint identifier.
func (sp *Savepoint) Name() string { return sp.name }

// SetSavepoint creates a savepoint on the pinned session. It fails when the
// backend does not declare savepoint support or another savepoint is still
// active.
func (c *Connection) SetSavepoint(ctx context.Context) (*Savepoint, error) {
	if !c.caps.SupportsSavepoints {
		return nil, fmt.Errorf("backend %s does not support savepoints", c.caps.Vendor)
	}
	c.spMu.Lock()
	defer c.spMu.Unlock()
	if c.savepoint != nil {
		return nil, fmt.Errorf("savepoint %s still active", c.savepoint.name)
	}
	name := "sp_" + strings.ReplaceAll(uuid.New().String(), "-", "")
	if _, err := c.conn.ExecContext(ctx, "SAVEPOINT "+name); err != nil {
		return nil, fmt.Errorf("failed to create savepoint: %w", err)
	}
	sp := &Savepoint{name: name}
	c.savepoint = sp
	return sp, nil
}

// ReleaseSavepoint discards the savepoint, keeping the statement's effects.
func (c *Connection) ReleaseSavepoint(ctx context.Context, sp *Savepoint) error {
	if sp == nil {
		return nil
	}
	c.spMu.Lock()
	defer c.spMu.Unlock()
	if c.savepoint != sp {
		return fmt.Errorf("savepoint %s is not active", sp.name)
	}
	c.savepoint = nil
	if _, err := c.conn.ExecContext(ctx, "RELEASE SAVEPOINT "+sp.name); err != nil {
		return fmt.Errorf("failed to release savepoint: %w", err)
	}
	return nil
}

// RollbackSavepoint undoes everything since the savepoint was created.
func (c *Connection) RollbackSavepoint(ctx context.Context, sp *Savepoint) error {
	if sp == nil {
		return nil
	}
	c.spMu.Lock()
	defer c.spMu.Unlock()
	if c.savepoint != sp {
		return fmt.Errorf("savepoint %s is not active", sp.name)
	}
	c.savepoint = nil
	if _, err := c.conn.ExecContext(ctx, "ROLLBACK TO SAVEPOINT "+sp.name); err != nil {
		return fmt.Errorf("failed to roll back savepoint: %w", err)
	}
	return nil
}
