// SPDX-License-Identifier: MIT

// Package fsm is a small, strict phase machine for the recording session:
// unknown transitions are errors, observers see every transition.
package fsm

import (
	"fmt"
	"sync"

	"github.com/reelcast/reelcast/internal/recorder/model"
)

// Observer is invoked on every phase transition, after the new phase is
// visible. Observers must not block; they run synchronously on the
// transitioning goroutine.
type Observer func(from, to model.Phase)

// Machine guards the session phase against illegal transitions.
type Machine struct {
	mu        sync.Mutex
	phase     model.Phase
	allowed   map[model.Phase][]model.Phase
	observers []Observer
}

// New builds a machine in the initial phase with the given transition table.
func New(initial model.Phase, allowed map[model.Phase][]model.Phase) *Machine {
	return &Machine{phase: initial, allowed: allowed}
}

// Phase returns the current phase.
func (m *Machine) Phase() model.Phase {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.phase
}

// Observe registers an observer for all future transitions.
func (m *Machine) Observe(fn Observer) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.observers = append(m.observers, fn)
}

// To transitions to next if the table allows it from the current phase.
func (m *Machine) To(next model.Phase) error {
	m.mu.Lock()
	from := m.phase
	if !m.allowedLocked(from, next) {
		m.mu.Unlock()
		return fmt.Errorf("invalid transition: %s -> %s", from, next)
	}
	m.phase = next
	observers := append([]Observer(nil), m.observers...)
	m.mu.Unlock()

	for _, fn := range observers {
		fn(from, next)
	}
	return nil
}

// ForceIdle resets the machine to idle from any phase (explicit reset path).
// Observers are notified unless the machine already was idle.
func (m *Machine) ForceIdle() {
	m.mu.Lock()
	from := m.phase
	if from == model.PhaseIdle {
		m.mu.Unlock()
		return
	}
	m.phase = model.PhaseIdle
	observers := append([]Observer(nil), m.observers...)
	m.mu.Unlock()

	for _, fn := range observers {
		fn(from, model.PhaseIdle)
	}
}

func (m *Machine) allowedLocked(from, to model.Phase) bool {
	for _, next := range m.allowed[from] {
		if next == to {
			return true
		}
	}
	return false
}
