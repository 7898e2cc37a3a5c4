package store

import (
	"context"
	"sync"
)

// Memory is the in-process storage collaborator. Update applies mutations to
// a deep copy and swaps it in only when the mutation succeeds, which gives
// every operation atomic, all-or-nothing semantics.
type Memory struct {
	mu    sync.RWMutex
	state *State
}

// NewMemory creates a store holding an empty registry.
func NewMemory(onboardingSize uint32) *Memory {
	return &Memory{state: NewState(onboardingSize)}
}

// Update runs fn against a private copy of the state. If fn returns an error
// the copy is discarded and the visible state is untouched.
func (m *Memory) Update(ctx context.Context, fn func(*State) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	next := m.state.Clone()
	if err := fn(next); err != nil {
		return err
	}
	m.state = next
	return nil
}

// View runs fn against the current state under a read lock. fn must not
// mutate the state or retain references past the call; copy out what you
// need.
func (m *Memory) View(ctx context.Context, fn func(*State) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return fn(m.state)
}
