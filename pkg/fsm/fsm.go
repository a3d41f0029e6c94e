package fsm

import (
	"errors"
	"fmt"
	"slices"
	"sync"
)

// ErrInvalidTransition is returned (wrapped) when no edge exists between two states.
var ErrInvalidTransition = errors.New("invalid transition")

// Hook runs after the current state has been updated.
type Hook[T comparable] func(from, to T)

// Machine is a small thread-safe finite state machine over comparable states.
// Edges are declared up front with Allow; states with no outgoing edges are terminal.
type Machine[T comparable] struct {
	mu sync.RWMutex

	current T
	edges   map[T][]T
	hooks   []Hook[T]
}

// New creates a machine positioned at initial.
func New[T comparable](initial T) *Machine[T] {
	return &Machine[T]{current: initial, edges: make(map[T][]T)}
}

// Allow registers an edge from `from` to each of `to`.
func (m *Machine[T]) Allow(from T, to ...T) *Machine[T] {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range to {
		if !slices.Contains(m.edges[from], t) {
			m.edges[from] = append(m.edges[from], t)
		}
	}
	return m
}

// OnTransition registers a hook called after every successful transition.
func (m *Machine[T]) OnTransition(h Hook[T]) *Machine[T] {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hooks = append(m.hooks, h)
	return m
}

// Terminal reports whether s has no outgoing edges.
func (m *Machine[T]) Terminal(s T) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.edges[s]) == 0
}

// Current returns the current state.
func (m *Machine[T]) Current() T {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// Transition moves from the current state to `to` if the edge exists.
func (m *Machine[T]) Transition(to T) error {
	m.mu.Lock()
	from := m.current
	if !slices.Contains(m.edges[from], to) {
		m.mu.Unlock()
		return fmt.Errorf("%w: %v -> %v", ErrInvalidTransition, from, to)
	}
	m.current = to
	hooks := slices.Clone(m.hooks)
	m.mu.Unlock()

	for _, h := range hooks {
		h(from, to)
	}
	return nil
}
