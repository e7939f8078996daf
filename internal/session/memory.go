package session

import (
	"context"
	"strings"
	"sync"
)

// MemoryStore lives for the lifetime of the process; nothing is evicted.
type MemoryStore struct {
	mu     sync.RWMutex
	states map[string]State
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{states: make(map[string]State)}
}

var _ Store = (*MemoryStore)(nil)

func (s *MemoryStore) Get(_ context.Context, id string) (State, bool, error) {
	if strings.TrimSpace(id) == "" {
		return State{}, false, ErrMissingID
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	state, ok := s.states[id]
	if !ok {
		return State{}, false, nil
	}
	return state.Clone(), true, nil
}

func (s *MemoryStore) CreateIfAbsent(_ context.Context, id string) (State, error) {
	if strings.TrimSpace(id) == "" {
		return State{}, ErrMissingID
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	state, ok := s.states[id]
	if !ok {
		state = State{}
		s.states[id] = state
	}
	return state.Clone(), nil
}

func (s *MemoryStore) Update(_ context.Context, id string, state State) error {
	if strings.TrimSpace(id) == "" {
		return ErrMissingID
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states[id] = state.Clone()
	return nil
}

func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.states)
}
