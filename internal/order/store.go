package order

import "sync"

// Store wraps a reducer state with a dispatcher. One store exists per
// open ticket or draft quote; invocations run to completion one at a
// time, so a plain mutex is enough.
type Store struct {
	mu    sync.Mutex
	state Order
}

// NewStore creates a store holding the given initial state.
func NewStore(initial Order) *Store {
	return &Store{state: initial}
}

// Dispatch applies an action and returns the resulting state.
func (s *Store) Dispatch(a Action) Order {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = Reduce(s.state, a)
	return s.state
}

// State returns the current state.
func (s *Store) State() Order {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}
