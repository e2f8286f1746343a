package command

import (
	"github.com/sqlrun/sqlrun/pkg/history"
	"github.com/sqlrun/sqlrun/pkg/variables"
)

// DefaultMapper builds a registry with the full built-in command set: the
// wildcard, the query verbs, plain DML, transaction control, and the tool
// commands bound to the given variable pool and history.
func DefaultMapper(pool *variables.Pool, log *history.History) (*Mapper, error) {
	m := NewMapper()
	cmds := []Command{
		NewQueryCommand(QueryVerbs()...),
		NewDMLCommand("INSERT", "UPDATE", "DELETE", "MERGE", "TRUNCATE"),
		NewCommitCommand(),
		NewRollbackCommand(),
		NewDefineCommand(pool),
		NewUndefineCommand(pool),
		NewVarListCommand(pool),
		NewHistoryCommand(log),
		NewStartBatchCommand(),
		NewEndBatchCommand(),
	}
	for _, cmd := range cmds {
		if err := m.Register(cmd); err != nil {
			return nil, err
		}
	}
	m.EnableAbbreviations(true)
	return m, nil
}
