// Package types holds the request and response bodies of the HTTP API.
package types

import "github.com/sqlrun/sqlrun/server/apierror"

// ScriptRequest submits a script for execution.
type ScriptRequest struct {
	// Script is the statement text, possibly several statements separated
	// by the delimiter.
	Script string `json:"script"`

	// Delimiter overrides the statement terminator; empty means ";".
	// "/" and "GO" select the single-line variants.
	Delimiter string `json:"delimiter,omitempty"`

	// Variables seeds the run's variable pool before execution.
	Variables map[string]string `json:"variables,omitempty"`

	// MaxRows caps materialized rows per result set; zero means unlimited.
	MaxRows int `json:"maxRows,omitempty"`

	// ReadOnly blocks data- and schema-modifying statements for this run.
	ReadOnly bool `json:"readOnly,omitempty"`

	// StopOnError aborts the run at the first failing statement instead of
	// continuing with the rest of the script.
	StopOnError bool `json:"stopOnError,omitempty"`
}

// SubmitResponse acknowledges a submitted script.
type SubmitResponse struct {
	Success bool   `json:"success"`
	RunID   string `json:"runId"`
	Status  string `json:"status"`
}

// RunResponse reports the state of a run.
type RunResponse struct {
	Success     bool                    `json:"success"`
	RunID       string                  `json:"runId"`
	Status      string                  `json:"status"`
	CreatedOn   string                  `json:"createdOn"`
	CompletedOn string                  `json:"completedOn,omitempty"`
	Statements  []*StatementResult      `json:"statements,omitempty"`
	Error       *apierror.ErrorResponse `json:"error,omitempty"`
}

// StatementResult is the outcome of one statement in a run.
type StatementResult struct {
	SQL          string          `json:"sql"`
	Success      bool            `json:"success"`
	Cancelled    bool            `json:"cancelled,omitempty"`
	Messages     []string        `json:"messages,omitempty"`
	Warnings     []string        `json:"warnings,omitempty"`
	DataSets     []*DataSet      `json:"dataSets,omitempty"`
	UpdateCounts []int64         `json:"updateCounts,omitempty"`
	Error        *StatementError `json:"error,omitempty"`
	DurationMS   int64           `json:"durationMs"`
}

// DataSet is one tabular result in the JSON shape.
type DataSet struct {
	Columns   []string `json:"columns"`
	Rows      [][]any  `json:"rows"`
	Truncated bool     `json:"truncated,omitempty"`
}

// StatementError carries a failure with its best-effort source position.
type StatementError struct {
	Message string `json:"message"`
	Line    int    `json:"line,omitempty"`
	Column  int    `json:"column,omitempty"`
}

// CancelResponse acknowledges a cancel request.
type CancelResponse struct {
	Success bool   `json:"success"`
	RunID   string `json:"runId"`
	Status  string `json:"status"`
}

// ListRunsResponse lists known runs, newest first.
type ListRunsResponse struct {
	Success bool       `json:"success"`
	Runs    []*RunInfo `json:"runs"`
}

// RunInfo is the list-view summary of a run.
type RunInfo struct {
	RunID     string `json:"runId"`
	Status    string `json:"status"`
	CreatedOn string `json:"createdOn"`
}
