package runner

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/sqlrun/sqlrun/pkg/command"
	"github.com/sqlrun/sqlrun/pkg/sqltext"
)

// Annotations are statement-level directives parsed from the comments
// preceding a statement. They control result post-processing only; the
// statement text sent to the backend is unchanged.
type Annotations struct {
	// RemoveEmpty drops result sets with no rows from the output.
	RemoveEmpty bool

	// DiscardResult strips all result data after row counts are logged.
	DiscardResult bool

	// Crosstab pivots tabular results using LabelColumn's values as the
	// new column labels.
	Crosstab    bool
	LabelColumn string
}

var annotationPattern = regexp.MustCompile(`@(\w+)(?:\s*\(\s*([^)]*)\s*\))?`)

// ParseAnnotations scans the leading comments of a statement for
// directives: @removeempty, @discardresult, @crosstab(column).
func ParseAnnotations(sqlText string) Annotations {
	var ann Annotations
	for _, comment := range sqltext.LeadingComments(sqlText) {
		for _, m := range annotationPattern.FindAllStringSubmatch(comment, -1) {
			switch strings.ToLower(m[1]) {
			case "removeempty":
				ann.RemoveEmpty = true
			case "discardresult":
				ann.DiscardResult = true
			case "crosstab":
				ann.Crosstab = true
				ann.LabelColumn = strings.TrimSpace(m[2])
			}
		}
	}
	return ann
}

// Apply post-processes the result per the parsed directives.
func (ann Annotations) Apply(res *command.Result) {
	if ann.RemoveEmpty {
		kept := res.DataSets[:0]
		for _, ds := range res.DataSets {
			if !ds.Empty() {
				kept = append(kept, ds)
			}
		}
		res.DataSets = kept
	}
	if ann.Crosstab {
		for i, ds := range res.DataSets {
			res.DataSets[i] = crosstab(ds, ann.LabelColumn)
		}
	}
	if ann.DiscardResult {
		for _, ds := range res.DataSets {
			res.AddMessage("%d row(s) discarded", ds.RowCount())
		}
		res.ClearData()
	}
}

// crosstab transposes a result set: the label column's values become the
// column headers and each remaining original column becomes one row.
func crosstab(ds *command.DataSet, label string) *command.DataSet {
	if len(ds.Columns) < 2 || len(ds.Rows) == 0 {
		return ds
	}
	labelIdx := 0
	if label != "" {
		labelIdx = -1
		for i, col := range ds.Columns {
			if strings.EqualFold(col, label) {
				labelIdx = i
				break
			}
		}
		if labelIdx < 0 {
			return ds
		}
	}

	out := &command.DataSet{Truncated: ds.Truncated}
	out.Columns = append(out.Columns, ds.Columns[labelIdx])
	for _, row := range ds.Rows {
		out.Columns = append(out.Columns, fmt.Sprintf("%v", row[labelIdx]))
	}
	for i, col := range ds.Columns {
		if i == labelIdx {
			continue
		}
		row := make([]any, 0, len(ds.Rows)+1)
		row = append(row, col)
		for _, orig := range ds.Rows {
			row = append(row, orig[i])
		}
		out.Rows = append(out.Rows, row)
	}
	return out
}
