// Package history keeps a bounded log of executed statement texts.
package history

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"sync"
)

// DefaultCapacity is used when New is given a non-positive capacity.
const DefaultCapacity = 500

// History is a fixed-capacity, append-only statement log. The oldest entry
// is evicted at capacity; adjacent duplicates are suppressed.
type History struct {
	mu       sync.Mutex
	entries  []string
	capacity int
}

// New returns an empty history with the given capacity.
func New(capacity int) *History {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &History{capacity: capacity}
}

// Add appends a statement. Blank statements and immediate repeats of the
// previous entry are ignored.
func (h *History) Add(stmt string) {
	stmt = strings.TrimSpace(stmt)
	if stmt == "" {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if n := len(h.entries); n > 0 && h.entries[n-1] == stmt {
		return
	}
	h.entries = append(h.entries, stmt)
	if len(h.entries) > h.capacity {
		h.entries = h.entries[1:]
	}
}

// Entries returns a copy of the log, oldest first.
func (h *History) Entries() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]string, len(h.entries))
	copy(out, h.entries)
	return out
}

// Len returns the number of stored entries.
func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.entries)
}

// Clear discards all entries.
func (h *History) Clear() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.entries = nil
}

// Save writes the history one statement per line with control characters
// escaped. Adjacent duplicates are suppressed again on write, so a merged
// history never stores repeats.
func (h *History) Save(w io.Writer) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	prev := ""
	for _, entry := range h.entries {
		if entry == prev {
			continue
		}
		prev = entry
		if _, err := fmt.Fprintln(w, escape(entry)); err != nil {
			return fmt.Errorf("failed to write history entry: %w", err)
		}
	}
	return nil
}

// Load replaces the history with entries read from r, newest last. Entries
// beyond capacity are evicted oldest-first.
func (h *History) Load(r io.Reader) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	var entries []string
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		entries = append(entries, unescape(line))
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read history: %w", err)
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(entries) > h.capacity {
		entries = entries[len(entries)-h.capacity:]
	}
	h.entries = entries
	return nil
}

var escaper = strings.NewReplacer(
	"\\", "\\\\",
	"\n", "\\n",
	"\r", "\\r",
	"\t", "\\t",
)

func escape(s string) string {
	return escaper.Replace(s)
}

func unescape(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if s[i] != '\\' || i+1 >= len(s) {
			b.WriteByte(s[i])
			continue
		}
		i++
		switch s[i] {
		case 'n':
			b.WriteByte('\n')
		case 'r':
			b.WriteByte('\r')
		case 't':
			b.WriteByte('\t')
		case '\\':
			b.WriteByte('\\')
		default:
			b.WriteByte('\\')
			b.WriteByte(s[i])
		}
	}
	return b.String()
}
