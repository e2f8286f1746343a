// Package handlers provides the HTTP handlers of the script execution API.
package handlers

import (
	"context"
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/sqlrun/sqlrun/pkg/command"
	"github.com/sqlrun/sqlrun/pkg/connection"
	"github.com/sqlrun/sqlrun/pkg/delimiter"
	"github.com/sqlrun/sqlrun/pkg/dialect"
	"github.com/sqlrun/sqlrun/pkg/history"
	"github.com/sqlrun/sqlrun/pkg/runner"
	"github.com/sqlrun/sqlrun/pkg/script"
	"github.com/sqlrun/sqlrun/pkg/variables"
	"github.com/sqlrun/sqlrun/server/apierror"
	"github.com/sqlrun/sqlrun/server/runs"
	"github.com/sqlrun/sqlrun/server/types"
)

// ScriptHandler executes submitted scripts against the configured database.
type ScriptHandler struct {
	db     *sql.DB
	caps   *dialect.Capabilities
	runMgr *runs.Manager
	logger *slog.Logger
}

// NewScriptHandler creates a script handler.
func NewScriptHandler(db *sql.DB, caps *dialect.Capabilities, runMgr *runs.Manager, logger *slog.Logger) *ScriptHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ScriptHandler{
		db:     db,
		caps:   caps,
		runMgr: runMgr,
		logger: logger,
	}
}

// SubmitScript accepts a script and starts executing it asynchronously.
func (h *ScriptHandler) SubmitScript(w http.ResponseWriter, r *http.Request) {
	var req types.ScriptRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sendError(w, http.StatusBadRequest, apierror.NewInvalidParameterError("body", "invalid JSON"))
		return
	}
	if req.Script == "" {
		sendError(w, http.StatusBadRequest, apierror.NewInvalidParameterError("script", "script is required"))
		return
	}

	statements := script.NewParser(delimiter.Parse(req.Delimiter)).Split(req.Script)
	if len(statements) == 0 {
		sendError(w, http.StatusBadRequest, apierror.New(apierror.CodeInvalidScript, "script contains no statements"))
		return
	}

	run := h.runMgr.Create(req.Script)
	go h.executeRun(run.ID, statements, &req)

	sendJSON(w, http.StatusAccepted, &types.SubmitResponse{
		Success: true,
		RunID:   run.ID,
		Status:  string(runs.StatusPending),
	})
}

// executeRun drives one run to completion on its own pinned connection.
func (h *ScriptHandler) executeRun(runID string, statements []string, req *types.ScriptRequest) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	conn, err := connection.New(ctx, h.db, runID, h.caps)
	if err != nil {
		h.logger.Error("failed to open run connection", "run", runID, "error", err)
		h.runMgr.Complete(runID, runs.StatusFailed,
			apierror.Wrap(apierror.CodeConnectionFailed, "failed to open connection", err))
		return
	}
	defer conn.Close()
	conn.SetMaxRows(req.MaxRows)
	conn.SetReadOnly(req.ReadOnly)

	pool := variables.GetPool(runID)
	defer variables.RemovePool(runID)
	for name, value := range req.Variables {
		pool.Set(name, value)
	}

	hist := history.New(len(statements))
	mapper, err := command.DefaultMapper(pool, hist)
	if err != nil {
		h.runMgr.Complete(runID, runs.StatusFailed, apierror.FromError(err))
		return
	}

	exec := runner.New(h.logger, mapper, pool, hist)
	exec.SetConnection(conn)
	exec.SetMode(command.ModeBatch)

	h.runMgr.Start(runID, func() {
		exec.Cancel()
		cancel()
	})

	status := runs.StatusSuccess
	var runErr *apierror.APIError
	for _, stmt := range statements {
		res, err := exec.Run(ctx, stmt)
		if err != nil {
			status = runs.StatusFailed
			runErr = apierror.FromError(err)
			break
		}
		h.runMgr.AppendResult(runID, convertResult(stmt, res))
		if res.Cancelled {
			status = runs.StatusCanceled
			break
		}
		if res.Err != nil {
			if req.StopOnError {
				status = runs.StatusFailed
				runErr = apierror.New(apierror.CodeScriptFailed, res.Err.Message)
				break
			}
			status = runs.StatusFailed
			runErr = apierror.New(apierror.CodeScriptFailed, res.Err.Message)
		}
	}

	if err := exec.Finish(ctx); err != nil {
		h.logger.Warn("failed to finish run", "run", runID, "error", err)
	}
	h.runMgr.Complete(runID, status, runErr)
}

// GetRun reports the state and results of a run.
func (h *ScriptHandler) GetRun(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	run, ok := h.runMgr.Get(id)
	if !ok {
		sendError(w, http.StatusNotFound, apierror.NewRunNotFoundError(id))
		return
	}

	resp := &types.RunResponse{
		Success:    true,
		RunID:      run.ID,
		Status:     string(run.Status),
		CreatedOn:  run.CreatedOn.Format(time.RFC3339),
		Statements: run.Statements,
	}
	if run.CompletedOn != nil {
		resp.CompletedOn = run.CompletedOn.Format(time.RFC3339)
	}
	if run.Error != nil {
		resp.Error = run.Error.ToResponse()
	}
	sendJSON(w, http.StatusOK, resp)
}

// CancelRun aborts a pending or running run.
func (h *ScriptHandler) CancelRun(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, ok := h.runMgr.Get(id); !ok {
		sendError(w, http.StatusNotFound, apierror.NewRunNotFoundError(id))
		return
	}
	if err := h.runMgr.Cancel(id); err != nil {
		sendError(w, http.StatusConflict, apierror.Wrap(apierror.CodeRunNotRunning, "cannot cancel run", err))
		return
	}
	sendJSON(w, http.StatusOK, &types.CancelResponse{
		Success: true,
		RunID:   id,
		Status:  string(runs.StatusCanceled),
	})
}

// ListRuns lists known runs, newest first.
func (h *ScriptHandler) ListRuns(w http.ResponseWriter, _ *http.Request) {
	all := h.runMgr.List()
	resp := &types.ListRunsResponse{Success: true, Runs: make([]*types.RunInfo, 0, len(all))}
	for _, run := range all {
		resp.Runs = append(resp.Runs, &types.RunInfo{
			RunID:     run.ID,
			Status:    string(run.Status),
			CreatedOn: run.CreatedOn.Format(time.RFC3339),
		})
	}
	sendJSON(w, http.StatusOK, resp)
}

// convertResult maps an execution result to its JSON shape.
func convertResult(sqlText string, res *command.Result) *types.StatementResult {
	out := &types.StatementResult{
		SQL:          sqlText,
		Success:      res.Success,
		Cancelled:    res.Cancelled,
		Messages:     res.Messages,
		Warnings:     res.Warnings,
		UpdateCounts: res.UpdateCounts,
		DurationMS:   res.Duration.Milliseconds(),
	}
	for _, ds := range res.DataSets {
		out.DataSets = append(out.DataSets, &types.DataSet{
			Columns:   ds.Columns,
			Rows:      ds.Rows,
			Truncated: ds.Truncated,
		})
	}
	if res.Err != nil {
		out.Error = &types.StatementError{
			Message: res.Err.Message,
			Line:    res.Err.Line,
			Column:  res.Err.Column,
		}
	}
	return out
}

// sendJSON writes a JSON response body.
func sendJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// sendError writes a structured error response.
func sendError(w http.ResponseWriter, status int, apiErr *apierror.APIError) {
	sendJSON(w, status, apiErr.ToResponse())
}
