// Package testutil provides deterministic stand-ins for the engine's
// collaborators: a manually fired batch timer, an in-memory store with
// injectable failures, a recording publisher, and recording fakes for
// the scheduler, launcher, waiter, drainer, and journal.
package testutil

import (
	"sync"
	"time"
)

// ManualTimer replaces the engine's batch-window timer so tests decide
// exactly when a window closes.
//
// Thread-safety: all methods are safe for concurrent use.
type ManualTimer struct {
	mu      sync.Mutex
	submit  func(func())
	pending []func()
	armed   int
}

// NewManualTimer creates a timer whose fired callbacks are delivered
// through submit, normally the reactor's Submit method.
func NewManualTimer(submit func(func())) *ManualTimer {
	return &ManualTimer{submit: submit}
}

// Timer satisfies the engine's timer hook. The duration is recorded
// nowhere: only an explicit Fire call runs the callback.
func (m *ManualTimer) Timer(_ time.Duration, fn func()) func() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pending = append(m.pending, fn)
	m.armed++
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		m.armed--
	}
}

// Fire delivers every callback registered since the last Fire and clears
// the list. Callbacks whose stop function was called are delivered too;
// stop only lowers the Armed count.
func (m *ManualTimer) Fire() {
	m.mu.Lock()
	fns := m.pending
	m.pending = nil
	m.mu.Unlock()
	for _, fn := range fns {
		m.submit(fn)
	}
}

// Armed returns the number of timers armed and not yet stopped.
func (m *ManualTimer) Armed() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.armed
}
