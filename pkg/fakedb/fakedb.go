// Package fakedb provides a scriptable database/sql driver for tests.
// Statements are matched case-insensitively against registered script
// patterns; everything executed is recorded so tests can assert on the
// exact statement stream a component produced.
package fakedb

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"io"
	"strings"
	"sync"
)

// ResultSet is one scripted result set.
type ResultSet struct {
	Columns []string
	Rows    [][]driver.Value
}

type script struct {
	pattern string
	sets    []ResultSet
	err     error
	block   bool
	rows    int64
}

// DB is the scriptable backend shared by every connection the driver opens.
type DB struct {
	mu      sync.Mutex
	scripts []script
	log     []string
}

// New returns an empty scriptable backend.
func New() *DB {
	return &DB{}
}

// Open returns a database/sql handle backed by this scripted backend.
func (d *DB) Open() *sql.DB {
	return sql.OpenDB(connector{db: d})
}

// RowsFor scripts one or more result sets for statements matching the
// pattern. Later registrations win over earlier ones when both match.
func (d *DB) RowsFor(pattern string, sets ...ResultSet) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.scripts = append(d.scripts, script{pattern: strings.ToUpper(pattern), sets: sets})
}

// FailOn makes statements matching the pattern fail with err.
func (d *DB) FailOn(pattern string, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.scripts = append(d.scripts, script{pattern: strings.ToUpper(pattern), err: err})
}

// BlockOn makes statements matching the pattern block until their context
// is cancelled. Used to exercise cancellation paths.
func (d *DB) BlockOn(pattern string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.scripts = append(d.scripts, script{pattern: strings.ToUpper(pattern), block: true})
}

// AffectOn scripts the rows-affected count for statements matching the
// pattern.
func (d *DB) AffectOn(pattern string, rows int64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.scripts = append(d.scripts, script{pattern: strings.ToUpper(pattern), rows: rows})
}

// Log returns a copy of every statement executed so far, in order.
func (d *DB) Log() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]string, len(d.log))
	copy(out, d.log)
	return out
}

// Reset clears the statement log but keeps the scripts.
func (d *DB) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.log = nil
}

func (d *DB) record(stmt string) *script {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.log = append(d.log, stmt)
	upper := strings.ToUpper(strings.TrimSpace(stmt))
	for i := len(d.scripts) - 1; i >= 0; i-- {
		if strings.Contains(upper, d.scripts[i].pattern) {
			return &d.scripts[i]
		}
	}
	return nil
}

type connector struct {
	db *DB
}

func (c connector) Connect(context.Context) (driver.Conn, error) {
	return &conn{db: c.db}, nil
}

func (c connector) Driver() driver.Driver { return fakeDriver{db: c.db} }

type fakeDriver struct {
	db *DB
}

func (d fakeDriver) Open(string) (driver.Conn, error) {
	return &conn{db: d.db}, nil
}

type conn struct {
	db *DB
}

var (
	_ driver.QueryerContext = (*conn)(nil)
	_ driver.ExecerContext  = (*conn)(nil)
	_ driver.Pinger         = (*conn)(nil)
)

func (c *conn) Prepare(query string) (driver.Stmt, error) {
	return &stmt{conn: c, query: query}, nil
}

func (c *conn) Close() error { return nil }

func (c *conn) Begin() (driver.Tx, error) {
	return tx{conn: c}, nil
}

func (c *conn) Ping(context.Context) error { return nil }

func (c *conn) QueryContext(ctx context.Context, query string, _ []driver.NamedValue) (driver.Rows, error) {
	s := c.db.record(query)
	if s == nil {
		return &rows{}, nil
	}
	if err := c.dispose(ctx, s); err != nil {
		return nil, err
	}
	return &rows{sets: s.sets}, nil
}

func (c *conn) ExecContext(ctx context.Context, query string, _ []driver.NamedValue) (driver.Result, error) {
	s := c.db.record(query)
	if s == nil {
		return result{}, nil
	}
	if err := c.dispose(ctx, s); err != nil {
		return nil, err
	}
	return result{rows: s.rows}, nil
}

func (c *conn) dispose(ctx context.Context, s *script) error {
	if s.block {
		<-ctx.Done()
		return ctx.Err()
	}
	return s.err
}

type stmt struct {
	conn  *conn
	query string
}

func (s *stmt) Close() error  { return nil }
func (s *stmt) NumInput() int { return -1 }

func (s *stmt) Exec([]driver.Value) (driver.Result, error) {
	return s.conn.ExecContext(context.Background(), s.query, nil)
}

func (s *stmt) Query([]driver.Value) (driver.Rows, error) {
	return s.conn.QueryContext(context.Background(), s.query, nil)
}

type tx struct {
	conn *conn
}

func (t tx) Commit() error {
	t.conn.db.record("COMMIT")
	return nil
}

func (t tx) Rollback() error {
	t.conn.db.record("ROLLBACK")
	return nil
}

type result struct {
	rows int64
}

func (r result) LastInsertId() (int64, error) { return 0, nil }
func (r result) RowsAffected() (int64, error) { return r.rows, nil }

type rows struct {
	sets []ResultSet
	set  int
	pos  int
}

var _ driver.RowsNextResultSet = (*rows)(nil)

func (r *rows) Columns() []string {
	if r.set >= len(r.sets) {
		return nil
	}
	return r.sets[r.set].Columns
}

func (r *rows) Close() error { return nil }

func (r *rows) Next(dest []driver.Value) error {
	if r.set >= len(r.sets) || r.pos >= len(r.sets[r.set].Rows) {
		return io.EOF
	}
	copy(dest, r.sets[r.set].Rows[r.pos])
	r.pos++
	return nil
}

func (r *rows) HasNextResultSet() bool {
	return r.set+1 < len(r.sets)
}

func (r *rows) NextResultSet() error {
	if !r.HasNextResultSet() {
		return io.EOF
	}
	r.set++
	r.pos = 0
	return nil
}
