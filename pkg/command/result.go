package command

import (
	"fmt"
	"time"
)

// DataSet is one materialized tabular result.
type DataSet struct {
	Columns   []string
	Types     []string
	Rows      [][]any
	Truncated bool // row cap reached before the cursor was exhausted
}

// RowCount returns the number of materialized rows.
func (d *DataSet) RowCount() int { return len(d.Rows) }

// Empty reports whether the result holds no rows.
func (d *DataSet) Empty() bool { return len(d.Rows) == 0 }

// StatementError is a structured execution failure: the backend message plus
// a best-effort source position when the backend can report one.
type StatementError struct {
	Message string
	Line    int
	Column  int
}

// Error implements the error interface.
func (e *StatementError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s (line %d, column %d)", e.Message, e.Line, e.Column)
	}
	return e.Message
}

// Result is the outcome of one statement run. A Result is created fresh per
// run and discarded after the caller reads it.
type Result struct {
	Success   bool
	Cancelled bool

	// Consumed is set when an external consumer already handled the result
	// cursor; DataSets is then empty for those cursors.
	Consumed bool

	Messages     []string
	Warnings     []string
	DataSets     []*DataSet
	UpdateCounts []int64

	Err *StatementError

	Duration time.Duration
}

// NewResult returns an empty, unsuccessful result.
func NewResult() *Result {
	return &Result{}
}

// AddMessage appends a human-readable message.
func (r *Result) AddMessage(format string, args ...any) {
	r.Messages = append(r.Messages, fmt.Sprintf(format, args...))
}

// AddWarning appends a warning. Warnings never fail the run.
func (r *Result) AddWarning(format string, args ...any) {
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
}

// AddDataSet appends a materialized result set.
func (r *Result) AddDataSet(ds *DataSet) {
	r.DataSets = append(r.DataSets, ds)
}

// AddUpdateCount records a processed-rows count with its message.
func (r *Result) AddUpdateCount(n int64) {
	r.UpdateCounts = append(r.UpdateCounts, n)
	if n >= 0 {
		r.AddMessage("%d row(s) affected", n)
	}
}

// SetError marks the run failed with a structured error.
func (r *Result) SetError(msg string, line, column int) {
	r.Success = false
	r.Err = &StatementError{Message: msg, Line: line, Column: column}
}

// TotalUpdateCount sums all recorded update counts.
func (r *Result) TotalUpdateCount() int64 {
	var total int64
	for _, n := range r.UpdateCounts {
		if n > 0 {
			total += n
		}
	}
	return total
}

// HasData reports whether any result set holds rows.
func (r *Result) HasData() bool {
	for _, ds := range r.DataSets {
		if !ds.Empty() {
			return true
		}
	}
	return false
}

// ClearData drops all materialized result sets, keeping messages and counts.
func (r *Result) ClearData() {
	r.DataSets = nil
}
