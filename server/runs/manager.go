// Package runs tracks submitted script runs: their status, their results,
// and the cancel hook for runs still executing.
package runs

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sqlrun/sqlrun/server/apierror"
	"github.com/sqlrun/sqlrun/server/types"
)

// Status is the lifecycle state of a run.
type Status string

// Run states.
const (
	StatusPending  Status = "pending"
	StatusRunning  Status = "running"
	StatusSuccess  Status = "success"
	StatusFailed   Status = "failed"
	StatusCanceled Status = "canceled"
)

// Run is one submitted script with its accumulated results.
type Run struct {
	ID          string
	Status      Status
	Script      string
	CreatedOn   time.Time
	CompletedOn *time.Time
	Statements  []*types.StatementResult
	Error       *apierror.APIError
	cancel      func()
}

// Manager tracks runs with thread safety. Completed runs are evicted after
// the configured TTL.
type Manager struct {
	mu   sync.RWMutex
	runs map[string]*Run
	ttl  time.Duration
}

// NewManager creates a run manager that evicts completed runs after ttl.
func NewManager(ttl time.Duration) *Manager {
	m := &Manager{
		runs: make(map[string]*Run),
		ttl:  ttl,
	}
	go m.cleanupLoop()
	return m
}

// Create registers a new pending run for the script and returns it.
func (m *Manager) Create(script string) *Run {
	m.mu.Lock()
	defer m.mu.Unlock()

	run := &Run{
		ID:        generateRunID(),
		Status:    StatusPending,
		Script:    script,
		CreatedOn: time.Now(),
	}
	m.runs[run.ID] = run
	return run
}

// Get retrieves a snapshot of a run by id.
func (m *Manager) Get(id string) (*Run, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	run, ok := m.runs[id]
	if !ok {
		return nil, false
	}
	return run.snapshot(), true
}

// List returns snapshots of all known runs, newest first.
func (m *Manager) List() []*Run {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Run, 0, len(m.runs))
	for _, run := range m.runs {
		out = append(out, run.snapshot())
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedOn.After(out[j].CreatedOn)
	})
	return out
}

// snapshot copies the run so callers can read it after the manager lock is
// released while the executing goroutine keeps mutating the original.
// Callers must hold the manager lock.
func (r *Run) snapshot() *Run {
	out := *r
	out.cancel = nil
	out.Statements = make([]*types.StatementResult, len(r.Statements))
	copy(out.Statements, r.Statements)
	if r.CompletedOn != nil {
		completed := *r.CompletedOn
		out.CompletedOn = &completed
	}
	return &out
}

// Start marks the run as executing and stores its cancel hook.
func (m *Manager) Start(id string, cancel func()) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	run, ok := m.runs[id]
	if !ok {
		return false
	}
	run.Status = StatusRunning
	run.cancel = cancel
	return true
}

// AppendResult records one finished statement on the run.
func (m *Manager) AppendResult(id string, result *types.StatementResult) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	run, ok := m.runs[id]
	if !ok {
		return false
	}
	run.Statements = append(run.Statements, result)
	return true
}

// Complete finishes the run with a terminal status.
func (m *Manager) Complete(id string, status Status, apiErr *apierror.APIError) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	run, ok := m.runs[id]
	if !ok {
		return false
	}
	// A cancel that raced completion keeps the canceled status.
	if run.Status != StatusCanceled {
		run.Status = status
	}
	run.Error = apiErr
	run.cancel = nil
	now := time.Now()
	run.CompletedOn = &now
	return true
}

// Cancel aborts a pending or running run.
func (m *Manager) Cancel(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	run, ok := m.runs[id]
	if !ok {
		return fmt.Errorf("run not found: %s", id)
	}
	if run.Status != StatusRunning && run.Status != StatusPending {
		return fmt.Errorf("run %s is not running (status: %s)", id, run.Status)
	}
	if run.cancel != nil {
		run.cancel()
	}
	run.Status = StatusCanceled
	now := time.Now()
	run.CompletedOn = &now
	return nil
}

// Delete removes a run from the manager.
func (m *Manager) Delete(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.runs, id)
}

// cleanupLoop periodically evicts expired runs.
func (m *Manager) cleanupLoop() {
	ticker := time.NewTicker(m.ttl / 2)
	defer ticker.Stop()

	for range ticker.C {
		m.cleanup()
	}
}

// cleanup removes runs completed longer than TTL ago.
func (m *Manager) cleanup() {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	for id, run := range m.runs {
		if run.CompletedOn != nil && now.Sub(*run.CompletedOn) > m.ttl {
			delete(m.runs, id)
		}
	}
}

func generateRunID() string {
	return strings.ReplaceAll(uuid.New().String(), "-", "")
}
