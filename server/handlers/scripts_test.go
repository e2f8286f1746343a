package handlers

import (
	"bytes"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/sqlrun/sqlrun/pkg/dialect"
	"github.com/sqlrun/sqlrun/pkg/fakedb"
	"github.com/sqlrun/sqlrun/server/apierror"
	"github.com/sqlrun/sqlrun/server/runs"
	"github.com/sqlrun/sqlrun/server/types"
)

func newTestServer(t *testing.T) (*chi.Mux, *fakedb.DB) {
	t.Helper()
	db := fakedb.New()
	t.Cleanup(db.Reset)

	h := NewScriptHandler(db.Open(), dialect.ForVendor("duckdb"), runs.NewManager(time.Hour), slog.Default())

	r := chi.NewRouter()
	r.Post("/v1/scripts", h.SubmitScript)
	r.Get("/v1/runs", h.ListRuns)
	r.Get("/v1/runs/{id}", h.GetRun)
	r.Post("/v1/runs/{id}/cancel", h.CancelRun)
	return r, db
}

func submitScript(t *testing.T, r *chi.Mux, req *types.ScriptRequest) string {
	t.Helper()
	body, err := json.Marshal(req)
	if err != nil {
		t.Fatalf("failed to marshal request: %v", err)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/v1/scripts", bytes.NewReader(body)))
	if w.Code != http.StatusAccepted {
		t.Fatalf("submit status = %d, body = %s", w.Code, w.Body.String())
	}
	var resp types.SubmitResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.RunID == "" {
		t.Fatal("submit returned no run id")
	}
	return resp.RunID
}

func getRun(t *testing.T, r *chi.Mux, id string) *types.RunResponse {
	t.Helper()
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/runs/"+id, nil))
	if w.Code != http.StatusOK {
		t.Fatalf("get run status = %d, body = %s", w.Code, w.Body.String())
	}
	var resp types.RunResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	return &resp
}

// waitForRun polls until the run leaves the pending/running states.
func waitForRun(t *testing.T, r *chi.Mux, id string) *types.RunResponse {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		resp := getRun(t, r, id)
		if resp.Status != string(runs.StatusPending) && resp.Status != string(runs.StatusRunning) {
			return resp
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("run %s did not finish", id)
	return nil
}

func TestSubmitScript_Success(t *testing.T) {
	r, db := newTestServer(t)
	db.RowsFor("SELECT * FROM PERSON", fakedb.ResultSet{
		Columns: []string{"ID", "NAME"},
		Rows:    [][]driver.Value{{int64(1), "Arthur"}, {int64(2), "Ford"}},
	})

	id := submitScript(t, r, &types.ScriptRequest{Script: "select * from person;"})
	resp := waitForRun(t, r, id)

	if resp.Status != string(runs.StatusSuccess) {
		t.Fatalf("status = %s, error = %+v", resp.Status, resp.Error)
	}
	if len(resp.Statements) != 1 {
		t.Fatalf("statements = %d, want 1", len(resp.Statements))
	}
	stmt := resp.Statements[0]
	if !stmt.Success {
		t.Errorf("statement failed: %+v", stmt.Error)
	}
	if len(stmt.DataSets) != 1 {
		t.Fatalf("datasets = %d, want 1", len(stmt.DataSets))
	}
	ds := stmt.DataSets[0]
	if len(ds.Columns) != 2 || ds.Columns[0] != "ID" {
		t.Errorf("columns = %v", ds.Columns)
	}
	if len(ds.Rows) != 2 {
		t.Errorf("rows = %d, want 2", len(ds.Rows))
	}
	if resp.CompletedOn == "" {
		t.Error("completed timestamp not set")
	}
}

func TestSubmitScript_Validation(t *testing.T) {
	tests := []struct {
		name string
		body string
		code string
	}{
		{
			name: "invalid JSON",
			body: "{not json",
			code: apierror.CodeInvalidParameter,
		},
		{
			name: "empty script",
			body: `{"script": ""}`,
			code: apierror.CodeInvalidParameter,
		},
		{
			name: "no statements",
			body: `{"script": " ; ; "}`,
			code: apierror.CodeInvalidScript,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, _ := newTestServer(t)
			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/v1/scripts", strings.NewReader(tt.body)))
			if w.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", w.Code)
			}
			var resp apierror.ErrorResponse
			if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
				t.Fatalf("failed to decode response: %v", err)
			}
			if resp.Success || resp.Code != tt.code {
				t.Errorf("error = %+v, want code %s", resp, tt.code)
			}
		})
	}
}

func TestGetRun_NotFound(t *testing.T) {
	r, _ := newTestServer(t)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/runs/nope", nil))
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func TestSubmitScript_StopOnError(t *testing.T) {
	r, db := newTestServer(t)
	db.FailOn("INSERT", errors.New("constraint violation"))
	db.RowsFor("SELECT 1", fakedb.ResultSet{Columns: []string{"1"}, Rows: [][]driver.Value{{int64(1)}}})

	id := submitScript(t, r, &types.ScriptRequest{
		Script:      "insert into t values (1); select 1;",
		StopOnError: true,
	})
	resp := waitForRun(t, r, id)

	if resp.Status != string(runs.StatusFailed) {
		t.Fatalf("status = %s, want failed", resp.Status)
	}
	if len(resp.Statements) != 1 {
		t.Fatalf("statements = %d, want 1", len(resp.Statements))
	}
	if resp.Statements[0].Error == nil {
		t.Error("failed statement carries no error")
	}
	if resp.Error == nil || resp.Error.Code != apierror.CodeScriptFailed {
		t.Errorf("run error = %+v", resp.Error)
	}
}

func TestSubmitScript_ContinueOnError(t *testing.T) {
	r, db := newTestServer(t)
	db.FailOn("INSERT", errors.New("constraint violation"))
	db.RowsFor("SELECT 1", fakedb.ResultSet{Columns: []string{"1"}, Rows: [][]driver.Value{{int64(1)}}})

	id := submitScript(t, r, &types.ScriptRequest{
		Script: "insert into t values (1); select 1;",
	})
	resp := waitForRun(t, r, id)

	if resp.Status != string(runs.StatusFailed) {
		t.Fatalf("status = %s, want failed", resp.Status)
	}
	if len(resp.Statements) != 2 {
		t.Fatalf("statements = %d, want 2", len(resp.Statements))
	}
	if resp.Statements[0].Success {
		t.Error("first statement should have failed")
	}
	if !resp.Statements[1].Success {
		t.Errorf("second statement should have run: %+v", resp.Statements[1].Error)
	}
}

func TestSubmitScript_Variables(t *testing.T) {
	r, db := newTestServer(t)
	db.RowsFor("WHERE ID = 42", fakedb.ResultSet{
		Columns: []string{"ID"},
		Rows:    [][]driver.Value{{int64(42)}},
	})

	id := submitScript(t, r, &types.ScriptRequest{
		Script:    "select * from t where id = ${id};",
		Variables: map[string]string{"id": "42"},
	})
	resp := waitForRun(t, r, id)

	if resp.Status != string(runs.StatusSuccess) {
		t.Fatalf("status = %s, error = %+v", resp.Status, resp.Error)
	}
	if len(resp.Statements[0].DataSets) != 1 {
		t.Fatal("substituted query did not hit the scripted result")
	}
}

func TestSubmitScript_ReadOnly(t *testing.T) {
	r, db := newTestServer(t)

	id := submitScript(t, r, &types.ScriptRequest{
		Script:   "delete from person;",
		ReadOnly: true,
	})
	resp := waitForRun(t, r, id)

	if resp.Status != string(runs.StatusSuccess) {
		t.Fatalf("status = %s, error = %+v", resp.Status, resp.Error)
	}
	if len(resp.Statements[0].Warnings) == 0 {
		t.Error("suppressed statement carries no warning")
	}
	for _, stmt := range db.Log() {
		if strings.Contains(strings.ToUpper(stmt), "DELETE") {
			t.Errorf("delete reached the backend: %s", stmt)
		}
	}
}

func TestSubmitScript_MaxRows(t *testing.T) {
	r, db := newTestServer(t)
	set := fakedb.ResultSet{Columns: []string{"N"}}
	for i := 0; i < 10; i++ {
		set.Rows = append(set.Rows, []driver.Value{int64(i)})
	}
	db.RowsFor("SELECT", set)

	id := submitScript(t, r, &types.ScriptRequest{
		Script:  "select * from numbers;",
		MaxRows: 3,
	})
	resp := waitForRun(t, r, id)

	ds := resp.Statements[0].DataSets[0]
	if len(ds.Rows) != 3 {
		t.Errorf("rows = %d, want 3", len(ds.Rows))
	}
	if !ds.Truncated {
		t.Error("truncation not reported")
	}
}

func TestCancelRun(t *testing.T) {
	r, db := newTestServer(t)
	db.BlockOn("SELECT")

	id := submitScript(t, r, &types.ScriptRequest{Script: "select * from slow;"})

	// Wait until the statement is actually executing.
	deadline := time.Now().Add(5 * time.Second)
	for getRun(t, r, id).Status != string(runs.StatusRunning) {
		if time.Now().After(deadline) {
			t.Fatal("run never started")
		}
		time.Sleep(5 * time.Millisecond)
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, fmt.Sprintf("/v1/runs/%s/cancel", id), nil))
	if w.Code != http.StatusOK {
		t.Fatalf("cancel status = %d, body = %s", w.Code, w.Body.String())
	}

	resp := waitForRun(t, r, id)
	if resp.Status != string(runs.StatusCanceled) {
		t.Errorf("status = %s, want canceled", resp.Status)
	}
}

func TestCancelRun_Conflicts(t *testing.T) {
	r, db := newTestServer(t)
	db.RowsFor("SELECT", fakedb.ResultSet{Columns: []string{"1"}, Rows: [][]driver.Value{{int64(1)}}})

	id := submitScript(t, r, &types.ScriptRequest{Script: "select 1;"})
	waitForRun(t, r, id)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, fmt.Sprintf("/v1/runs/%s/cancel", id), nil))
	if w.Code != http.StatusConflict {
		t.Errorf("cancelling a finished run: status = %d, want 409", w.Code)
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/v1/runs/nope/cancel", nil))
	if w.Code != http.StatusNotFound {
		t.Errorf("cancelling an unknown run: status = %d, want 404", w.Code)
	}
}

func TestListRuns(t *testing.T) {
	r, db := newTestServer(t)
	db.RowsFor("SELECT", fakedb.ResultSet{Columns: []string{"1"}, Rows: [][]driver.Value{{int64(1)}}})

	first := submitScript(t, r, &types.ScriptRequest{Script: "select 1;"})
	waitForRun(t, r, first)
	second := submitScript(t, r, &types.ScriptRequest{Script: "select 2;"})
	waitForRun(t, r, second)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/runs", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("list status = %d", w.Code)
	}
	var resp types.ListRunsResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(resp.Runs) != 2 {
		t.Fatalf("runs = %d, want 2", len(resp.Runs))
	}
	if resp.Runs[0].RunID != second {
		t.Error("runs not ordered newest first")
	}
}
