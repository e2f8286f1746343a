package command

import "context"

// IgnoredCommand handles verbs the backend declares as no-ops. Execution
// succeeds without touching the connection.
type IgnoredCommand struct {
	base
}

// NewIgnoredCommand returns the no-op handler for a backend-ignored verb.
func NewIgnoredCommand(verb string) *IgnoredCommand {
	return &IgnoredCommand{base: base{verbs: []string{verb}}}
}

// Execute implements Command.
func (c *IgnoredCommand) Execute(_ context.Context, _ string) (*Result, error) {
	res := NewResult()
	res.Success = true
	res.AddMessage("%s ignored", c.verbs[0])
	return res, nil
}

var _ Command = (*IgnoredCommand)(nil)
