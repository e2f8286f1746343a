package command

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/sqlrun/sqlrun/pkg/connection"
	"github.com/sqlrun/sqlrun/pkg/dialect"
	"github.com/sqlrun/sqlrun/pkg/sqltext"
)

// Mapper is the verb-to-command registry. Registration happens once at
// startup; BindBackend re-binds the backend-specific entries whenever the
// connection changes. Resolution never fails: anything unresolved lands on
// the wildcard command.
type Mapper struct {
	mu            sync.RWMutex
	commands      map[string]Command
	backendVerbs  []string
	passthrough   map[string]struct{}
	abbreviations bool
	caps          *dialect.Capabilities
}

// NewMapper returns an empty registry with a pre-registered wildcard
// command.
func NewMapper() *Mapper {
	m := &Mapper{
		commands:    make(map[string]Command),
		passthrough: make(map[string]struct{}),
	}
	m.commands[WildcardVerb] = NewSQLCommand(WildcardVerb)
	return m
}

// Register adds the command under every verb it declares. The last
// registration for a verb wins. Verbs are validated: empty verbs or verbs
// containing whitespace are registration errors.
func (m *Mapper) Register(cmd Command) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, verb := range cmd.Verbs() {
		if verb == "" || strings.ContainsAny(verb, " \t\n") {
			return fmt.Errorf("invalid verb %q for command registration", verb)
		}
		m.commands[strings.ToUpper(verb)] = cmd
	}
	return nil
}

// EnableAbbreviations turns on unique-prefix matching for tool verbs.
func (m *Mapper) EnableAbbreviations(v bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.abbreviations = v
}

// Wildcard returns the fallback command.
func (m *Mapper) Wildcard() Command {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.commands[WildcardVerb]
}

// BindBackend clears any previously bound backend-specific verbs and
// re-adds the entries the new backend declares: call-procedure aliases,
// transaction-start verbs, ignored verbs and pass-through verbs. Safe to
// call repeatedly as connections change.
func (m *Mapper) BindBackend(caps *dialect.Capabilities) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, verb := range m.backendVerbs {
		delete(m.commands, verb)
	}
	m.backendVerbs = m.backendVerbs[:0]
	m.passthrough = make(map[string]struct{})
	m.caps = caps
	if caps == nil {
		return
	}

	wildcard := m.commands[WildcardVerb]
	bind := func(verb string, cmd Command) {
		verb = strings.ToUpper(verb)
		if _, exists := m.commands[verb]; exists {
			return
		}
		m.commands[verb] = cmd
		m.backendVerbs = append(m.backendVerbs, verb)
	}

	for _, verb := range caps.CallVerbs {
		bind(verb, wildcard)
	}
	for _, verb := range caps.TransactionStartVerbs {
		bind(verb, wildcard)
	}
	for _, verb := range caps.IgnoredVerbs {
		bind(verb, NewIgnoredCommand(verb))
	}
	for _, verb := range caps.PassthroughVerbs {
		m.passthrough[strings.ToUpper(verb)] = struct{}{}
	}
}

// Resolve extracts the verb from the statement text and returns the
// responsible command. A query detected as materializing into a new table
// is forced onto the wildcard command: its execution yields an update count,
// not a row stream.
func (m *Mapper) Resolve(sqlText string) (Command, string) {
	verb := sqltext.Verb(sqlText)

	m.mu.RLock()
	caps := m.caps
	m.mu.RUnlock()
	if caps != nil && caps.IsSelectIntoNewTable(sqlText) {
		return m.Wildcard(), verb
	}
	return m.ResolveVerb(verb), verb
}

// ResolveVerb returns the command registered for the verb: pass-through
// verbs go to the wildcard, then an exact match, then a unique-prefix match
// among tool verbs when abbreviation matching is on. Everything else falls
// back to the wildcard.
func (m *Mapper) ResolveVerb(verb string) Command {
	verb = strings.ToUpper(verb)
	m.mu.RLock()
	defer m.mu.RUnlock()

	if _, ok := m.passthrough[verb]; ok {
		return m.commands[WildcardVerb]
	}
	if cmd, ok := m.commands[verb]; ok {
		return cmd
	}
	if m.abbreviations && verb != "" {
		if cmd := m.abbreviationMatch(verb); cmd != nil {
			return cmd
		}
	}
	return m.commands[WildcardVerb]
}

// abbreviationMatch returns the tool command whose verb the given prefix
// uniquely identifies, or nil on zero or ambiguous matches.
func (m *Mapper) abbreviationMatch(prefix string) Command {
	var match Command
	matches := 0
	for verb, cmd := range m.commands {
		if !cmd.IsToolCommand() {
			continue
		}
		if strings.HasPrefix(verb, prefix) {
			matches++
			if matches > 1 {
				return nil
			}
			match = cmd
		}
	}
	if matches == 1 {
		return match
	}
	return nil
}

// Verbs returns all registered verbs, sorted.
func (m *Mapper) Verbs() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	verbs := make([]string, 0, len(m.commands))
	for verb := range m.commands {
		verbs = append(verbs, verb)
	}
	sort.Strings(verbs)
	return verbs
}

// SetConnection propagates the connection to every registered command.
func (m *Mapper) SetConnection(conn *connection.Connection) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	seen := make(map[Command]struct{})
	for _, cmd := range m.commands {
		if _, ok := seen[cmd]; ok {
			continue
		}
		seen[cmd] = struct{}{}
		cmd.SetConnection(conn)
	}
}
