package command

import (
	"context"
	"fmt"
	"strings"

	"github.com/sqlrun/sqlrun/pkg/history"
	"github.com/sqlrun/sqlrun/pkg/sqltext"
	"github.com/sqlrun/sqlrun/pkg/variables"
)

// DefineCommand implements the DEFINE tool verb: "DEFINE name=value" stores
// a variable in the pool, a bare "DEFINE" lists all variables.
type DefineCommand struct {
	base
	pool *variables.Pool
}

// NewDefineCommand returns the DEFINE handler bound to a variable pool.
func NewDefineCommand(pool *variables.Pool) *DefineCommand {
	return &DefineCommand{base: base{verbs: []string{"DEFINE"}, tool: true}, pool: pool}
}

// Execute implements Command.
func (c *DefineCommand) Execute(_ context.Context, sqlText string) (*Result, error) {
	res := NewResult()
	arg := strings.TrimSpace(trimVerb(sqlText))
	if arg == "" {
		res.AddDataSet(variableDataSet(c.pool))
		res.Success = true
		return res, nil
	}
	name, value, ok := strings.Cut(arg, "=")
	if !ok {
		res.SetError(fmt.Sprintf("invalid DEFINE syntax: %q", arg), 0, 0)
		return res, nil
	}
	name = strings.TrimSpace(name)
	if name == "" {
		res.SetError("variable name may not be empty", 0, 0)
		return res, nil
	}
	c.pool.Set(name, strings.TrimSpace(value))
	res.Success = true
	res.AddMessage("variable %s defined", name)
	return res, nil
}

// UndefineCommand implements the UNDEFINE tool verb.
type UndefineCommand struct {
	base
	pool *variables.Pool
}

// NewUndefineCommand returns the UNDEFINE handler bound to a variable pool.
func NewUndefineCommand(pool *variables.Pool) *UndefineCommand {
	return &UndefineCommand{base: base{verbs: []string{"UNDEFINE"}, tool: true}, pool: pool}
}

// Execute implements Command.
func (c *UndefineCommand) Execute(_ context.Context, sqlText string) (*Result, error) {
	res := NewResult()
	name := strings.TrimSpace(trimVerb(sqlText))
	if name == "" {
		res.SetError("UNDEFINE requires a variable name", 0, 0)
		return res, nil
	}
	c.pool.Remove(name)
	res.Success = true
	res.AddMessage("variable %s removed", name)
	return res, nil
}

// VarListCommand implements the VARLIST tool verb, returning the defined
// variables as a tabular result.
type VarListCommand struct {
	base
	pool *variables.Pool
}

// NewVarListCommand returns the VARLIST handler bound to a variable pool.
func NewVarListCommand(pool *variables.Pool) *VarListCommand {
	return &VarListCommand{base: base{verbs: []string{"VARLIST"}, tool: true}, pool: pool}
}

// Execute implements Command.
func (c *VarListCommand) Execute(_ context.Context, _ string) (*Result, error) {
	res := NewResult()
	res.AddDataSet(variableDataSet(c.pool))
	res.Success = true
	return res, nil
}

// HistoryCommand implements the HISTORY tool verb. It only makes sense in
// an interactive session.
type HistoryCommand struct {
	base
	log *history.History
}

// NewHistoryCommand returns the HISTORY handler bound to a statement log.
func NewHistoryCommand(log *history.History) *HistoryCommand {
	return &HistoryCommand{base: base{verbs: []string{"HISTORY"}, tool: true}, log: log}
}

// SupportsMode implements Command; history listing is interactive-only.
func (c *HistoryCommand) SupportsMode(mode RunMode) bool {
	return mode == ModeInteractive
}

// Execute implements Command.
func (c *HistoryCommand) Execute(_ context.Context, _ string) (*Result, error) {
	res := NewResult()
	ds := &DataSet{Columns: []string{"NR", "STATEMENT"}}
	for i, entry := range c.log.Entries() {
		ds.Rows = append(ds.Rows, []any{i + 1, entry})
	}
	res.AddDataSet(ds)
	res.Success = true
	return res, nil
}

func variableDataSet(pool *variables.Pool) *DataSet {
	ds := &DataSet{Columns: []string{"VARIABLE", "VALUE"}}
	for _, name := range pool.Names() {
		value, _ := pool.Get(name)
		ds.Rows = append(ds.Rows, []any{name, value})
	}
	return ds
}

// trimVerb drops the leading verb token from the statement text.
func trimVerb(sqlText string) string {
	rest := sqltext.SkipLeadingComments(sqlText)
	for i := 0; i < len(rest); i++ {
		if rest[i] == ' ' || rest[i] == '\t' || rest[i] == '\n' {
			return strings.TrimSuffix(strings.TrimSpace(rest[i:]), ";")
		}
	}
	return ""
}

var (
	_ Command = (*DefineCommand)(nil)
	_ Command = (*UndefineCommand)(nil)
	_ Command = (*VarListCommand)(nil)
	_ Command = (*HistoryCommand)(nil)
)
