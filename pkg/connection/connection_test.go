package connection

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/sqlrun/sqlrun/pkg/dialect"
	"github.com/sqlrun/sqlrun/pkg/fakedb"
)

func newTestConnection(t *testing.T, db *fakedb.DB, caps *dialect.Capabilities) *Connection {
	t.Helper()
	conn, err := New(context.Background(), db.Open(), "test-conn", caps)
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	t.Cleanup(db.Reset)
	return conn
}

func TestConnection_SessionFlags(t *testing.T) {
	conn := newTestConnection(t, fakedb.New(), dialect.ForVendor("duckdb"))

	if conn.ID() != "test-conn" {
		t.Errorf("ID() = %s", conn.ID())
	}
	if conn.Capabilities().Vendor != "duckdb" {
		t.Errorf("Vendor = %s", conn.Capabilities().Vendor)
	}

	conn.SetReadOnly(true)
	if !conn.IsReadOnly() {
		t.Error("read-only flag not set")
	}
	conn.SetMaxRows(50)
	if conn.MaxRows() != 50 {
		t.Errorf("MaxRows() = %d", conn.MaxRows())
	}
	conn.SetQueryTimeout(time.Second)
	if conn.QueryTimeout() != time.Second {
		t.Errorf("QueryTimeout() = %v", conn.QueryTimeout())
	}
	conn.SetManualTransaction(true)
	if !conn.InManualTransaction() {
		t.Error("manual transaction flag not set")
	}
}

func TestConnection_SavepointLifecycle(t *testing.T) {
	db := fakedb.New()
	conn := newTestConnection(t, db, dialect.ForVendor("postgres"))
	ctx := context.Background()

	sp, err := conn.SetSavepoint(ctx)
	if err != nil {
		t.Fatalf("SetSavepoint() failed: %v", err)
	}
	if sp.Name() == "" {
		t.Error("savepoint has no name")
	}

	// Only one savepoint may be active.
	if _, err := conn.SetSavepoint(ctx); err == nil {
		t.Error("second savepoint should fail while one is active")
	}

	if err := conn.ReleaseSavepoint(ctx, sp); err != nil {
		t.Fatalf("ReleaseSavepoint() failed: %v", err)
	}
	// Releasing again is rejected, releasing nil is a no-op.
	if err := conn.ReleaseSavepoint(ctx, sp); err == nil {
		t.Error("releasing an inactive savepoint should fail")
	}
	if err := conn.ReleaseSavepoint(ctx, nil); err != nil {
		t.Errorf("releasing nil savepoint: %v", err)
	}

	want := []string{
		"SAVEPOINT " + sp.Name(),
		"RELEASE SAVEPOINT " + sp.Name(),
	}
	if diff := cmp.Diff(want, db.Log()); diff != "" {
		t.Errorf("statement log mismatch (-want +got):\n%s", diff)
	}
}

func TestConnection_SavepointRollback(t *testing.T) {
	db := fakedb.New()
	conn := newTestConnection(t, db, dialect.ForVendor("postgres"))
	ctx := context.Background()

	sp, err := conn.SetSavepoint(ctx)
	if err != nil {
		t.Fatalf("SetSavepoint() failed: %v", err)
	}
	if err := conn.RollbackSavepoint(ctx, sp); err != nil {
		t.Fatalf("RollbackSavepoint() failed: %v", err)
	}

	log := db.Log()
	if len(log) != 2 || !strings.HasPrefix(log[1], "ROLLBACK TO SAVEPOINT ") {
		t.Errorf("statement log = %v", log)
	}

	// A new savepoint can be created after the rollback.
	if _, err := conn.SetSavepoint(ctx); err != nil {
		t.Errorf("savepoint after rollback: %v", err)
	}
}

func TestConnection_SavepointUnsupported(t *testing.T) {
	conn := newTestConnection(t, fakedb.New(), dialect.ForVendor("duckdb"))

	if _, err := conn.SetSavepoint(context.Background()); err == nil {
		t.Error("savepoint on a backend without support should fail")
	}
}

func TestConnection_EndTransaction(t *testing.T) {
	db := fakedb.New()
	conn := newTestConnection(t, db, dialect.ForVendor("postgres"))
	ctx := context.Background()

	// No tracked transaction: nothing issued.
	if err := conn.EndTransaction(ctx, true); err != nil {
		t.Fatalf("EndTransaction() failed: %v", err)
	}
	if len(db.Log()) != 0 {
		t.Errorf("statement log = %v, want empty", db.Log())
	}

	conn.MarkTransactionOpen()
	if !conn.TransactionOpen() {
		t.Fatal("transaction not tracked")
	}
	if err := conn.EndTransaction(ctx, true); err != nil {
		t.Fatalf("EndTransaction() failed: %v", err)
	}
	if conn.TransactionOpen() {
		t.Error("transaction still tracked after commit")
	}

	conn.MarkTransactionOpen()
	if err := conn.EndTransaction(ctx, false); err != nil {
		t.Fatalf("EndTransaction() failed: %v", err)
	}

	want := []string{"COMMIT", "ROLLBACK"}
	if diff := cmp.Diff(want, db.Log()); diff != "" {
		t.Errorf("statement log mismatch (-want +got):\n%s", diff)
	}
}

func TestConnection_BeginTransaction(t *testing.T) {
	db := fakedb.New()
	conn := newTestConnection(t, db, dialect.ForVendor("postgres"))
	ctx := context.Background()

	if err := conn.BeginTransaction(ctx); err != nil {
		t.Fatalf("BeginTransaction() failed: %v", err)
	}
	if !conn.TransactionOpen() {
		t.Fatal("transaction not tracked after begin")
	}
	// Already open: nothing further issued.
	if err := conn.BeginTransaction(ctx); err != nil {
		t.Fatalf("BeginTransaction() failed: %v", err)
	}

	conn.SetManualTransaction(true)
	if err := conn.EndTransaction(ctx, true); err != nil {
		t.Fatalf("EndTransaction() failed: %v", err)
	}
	if conn.InManualTransaction() {
		t.Error("manual control still active after commit")
	}

	want := []string{"BEGIN", "COMMIT"}
	if diff := cmp.Diff(want, db.Log()); diff != "" {
		t.Errorf("statement log mismatch (-want +got):\n%s", diff)
	}
}

func TestStatement_QueryAndClose(t *testing.T) {
	db := fakedb.New()
	db.RowsFor("SELECT", fakedb.ResultSet{Columns: []string{"N"}})
	conn := newTestConnection(t, db, dialect.ForVendor("duckdb"))

	stmt := conn.Statement()
	rows, err := stmt.Query(context.Background(), "select 1")
	if err != nil {
		t.Fatalf("Query() failed: %v", err)
	}
	if rows == nil {
		t.Fatal("Query() returned no rows")
	}
	if err := stmt.Close(); err != nil {
		t.Fatalf("Close() failed: %v", err)
	}
	// Idempotent, and a closed handle rejects new calls.
	if err := stmt.Close(); err != nil {
		t.Errorf("second Close() failed: %v", err)
	}
	if _, err := stmt.Query(context.Background(), "select 1"); err == nil {
		t.Error("query on a closed handle should fail")
	}
}

func TestStatement_CancelInterruptsQuery(t *testing.T) {
	db := fakedb.New()
	db.BlockOn("SELECT")
	conn := newTestConnection(t, db, dialect.ForVendor("duckdb"))

	stmt := conn.Statement()
	defer stmt.Close()

	done := make(chan error, 1)
	go func() {
		_, err := stmt.Query(context.Background(), "select * from slow")
		done <- err
	}()

	time.Sleep(50 * time.Millisecond)
	stmt.Cancel()

	select {
	case err := <-done:
		if err == nil {
			t.Error("cancelled query should fail")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("cancel did not interrupt the query")
	}
}
