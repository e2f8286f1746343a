// Package variables implements named-variable substitution for statement
// text. Pools are scoped by an identifier so independent script contexts do
// not see each other's values.
package variables

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"
)

// placeholder matches ${name} and $name forms.
var placeholder = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}|\$([A-Za-z_][A-Za-z0-9_]*)`)

// Pool is a named-value table used for statement substitution.
type Pool struct {
	mu     sync.RWMutex
	values map[string]string
	strict bool
}

// NewPool returns an empty pool.
func NewPool() *Pool {
	return &Pool{values: make(map[string]string)}
}

// SetStrict makes substitution fail on unresolved placeholders instead of
// passing them through.
func (p *Pool) SetStrict(strict bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.strict = strict
}

// Set stores a variable value.
func (p *Pool) Set(name, value string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.values[name] = value
}

// Get returns the value of a variable.
func (p *Pool) Get(name string) (string, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	v, ok := p.values[name]
	return v, ok
}

// Remove deletes a variable.
func (p *Pool) Remove(name string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.values, name)
}

// Names returns all defined variable names, sorted.
func (p *Pool) Names() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	names := make([]string, 0, len(p.values))
	for name := range p.values {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of defined variables.
func (p *Pool) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.values)
}

// Substitute replaces ${name} and $name placeholders with pool values.
// Unresolved placeholders pass through unchanged unless strict mode is set.
// Text without matching variables is returned as-is.
func (p *Pool) Substitute(text string) (string, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if len(p.values) == 0 && !p.strict {
		return text, nil
	}
	var missing []string
	changed := false
	out := placeholder.ReplaceAllStringFunc(text, func(match string) string {
		name := match[1:]
		if strings.HasPrefix(match, "${") {
			name = match[2 : len(match)-1]
		}
		if v, ok := p.values[name]; ok {
			changed = true
			return v
		}
		missing = append(missing, name)
		return match
	})
	if p.strict && len(missing) > 0 {
		return text, fmt.Errorf("undefined variable(s): %s", strings.Join(missing, ", "))
	}
	if !changed {
		return text, nil
	}
	return out, nil
}

var pools = struct {
	mu   sync.Mutex
	byID map[string]*Pool
}{byID: make(map[string]*Pool)}

// GetPool returns the pool for the given scope identifier, creating it on
// first use. The empty identifier names the default pool.
func GetPool(id string) *Pool {
	pools.mu.Lock()
	defer pools.mu.Unlock()
	p, ok := pools.byID[id]
	if !ok {
		p = NewPool()
		pools.byID[id] = p
	}
	return p
}

// RemovePool discards the pool for the given scope identifier.
func RemovePool(id string) {
	pools.mu.Lock()
	defer pools.mu.Unlock()
	delete(pools.byID, id)
}
