package command

import (
	"database/sql"
	"sync/atomic"
)

// Rows is the slice of *sql.Rows the drainer needs. Declaring it as an
// interface lets tests simulate driver misbehavior such as an endless
// sequence of result sets.
type Rows interface {
	Columns() ([]string, error)
	Next() bool
	Scan(dest ...any) error
	Err() error
	Close() error
	NextResultSet() bool
}

var _ Rows = (*sql.Rows)(nil)

// RowConsumer receives a cursor instead of having it materialized. Rows
// handed to a consumer are not added to the Result.
type RowConsumer interface {
	ConsumeRows(columns []string, rows Rows) error
}

// ResultProcessor drains the sequence of result sets one execution yields,
// bounded by a maximum iteration count to guard against drivers that report
// more results indefinitely.
type ResultProcessor struct {
	// MaxRows caps rows materialized per result set; zero means unlimited.
	MaxRows int

	// MaxIterations caps the number of result sets drained.
	MaxIterations int

	// Consumer, when set, receives each cursor instead of materialization.
	Consumer RowConsumer

	// Cancelled is polled between fetches; a set flag stops the drain with
	// a warning rather than an error.
	Cancelled *atomic.Bool

	// MultipleResults gates the cross-result-set loop; when the backend
	// does not declare multi-result support only the first set is read.
	MultipleResults bool
}

// Drain reads all result sets from rows into res. Cursor errors mid-drain
// are recorded on the result; Drain itself only fails on Scan plumbing.
func (p *ResultProcessor) Drain(rows Rows, res *Result) error {
	defer rows.Close()

	limit := p.MaxIterations
	if limit <= 0 {
		limit = 1
	}

	// Some drivers report no cursor on the first call even though one is
	// pending; probe the next result set once before giving up.
	cols, err := rows.Columns()
	if err != nil || len(cols) == 0 {
		if !rows.NextResultSet() {
			return nil
		}
	}

	iterations := 0
	for {
		if err := p.drainOne(rows, res); err != nil {
			return err
		}
		iterations++
		if res.Cancelled {
			return nil
		}
		if iterations >= limit {
			if rows.NextResultSet() {
				res.AddWarning("result limit of %d result sets reached, remaining results skipped", limit)
			}
			return nil
		}
		if !p.MultipleResults || !rows.NextResultSet() {
			return nil
		}
	}
}

// drainOne materializes (or hands off) the current result set.
func (p *ResultProcessor) drainOne(rows Rows, res *Result) error {
	cols, err := rows.Columns()
	if err != nil {
		res.AddWarning("failed to read result columns: %v", err)
		return nil
	}

	if p.Consumer != nil {
		if err := p.Consumer.ConsumeRows(cols, rows); err != nil {
			res.AddWarning("result consumer failed: %v", err)
			return nil
		}
		res.Consumed = true
		return nil
	}

	ds := &DataSet{Columns: cols}
	values := make([]any, len(cols))
	pointers := make([]any, len(cols))
	for i := range values {
		pointers[i] = &values[i]
	}

	for rows.Next() {
		if p.Cancelled != nil && p.Cancelled.Load() {
			res.AddWarning("statement cancelled, result truncated after %d row(s)", len(ds.Rows))
			res.Cancelled = true
			break
		}
		if p.MaxRows > 0 && len(ds.Rows) >= p.MaxRows {
			ds.Truncated = true
			res.AddWarning("row limit of %d reached, result truncated", p.MaxRows)
			break
		}
		if err := rows.Scan(pointers...); err != nil {
			return err
		}
		row := make([]any, len(cols))
		for i, v := range values {
			row[i] = convertValue(v)
		}
		ds.Rows = append(ds.Rows, row)
	}

	if err := rows.Err(); err != nil {
		if p.Cancelled != nil && p.Cancelled.Load() {
			// Cancellation during fetch is a warning, not a failure.
			res.AddWarning("statement cancelled, result truncated after %d row(s)", len(ds.Rows))
			res.Cancelled = true
		} else {
			res.AddWarning("error reading rows: %v", err)
		}
	}

	res.AddDataSet(ds)
	return nil
}

// convertValue normalizes driver values for materialized rows.
func convertValue(val any) any {
	switch v := val.(type) {
	case []byte:
		return string(v)
	default:
		return v
	}
}
