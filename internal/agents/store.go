package agents

import (
	"context"
	"errors"
	"sync"
)

var ErrNotFound = errors.New("agents: not found")

// Store is the persistence contract for agent definitions.
// Call processing only reads; CRUD is owned by the management plane.
type Store interface {
	Get(ctx context.Context, id string) (Agent, error)
}

// MemoryStore is a simple in-memory store useful for tests and local runs.
// It is not intended for production use.
type MemoryStore struct {
	mu     sync.RWMutex
	agents map[string]Agent
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{agents: make(map[string]Agent)}
}

func (s *MemoryStore) Get(ctx context.Context, id string) (Agent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.agents[id]
	if !ok {
		return Agent{}, ErrNotFound
	}
	return a, nil
}

func (s *MemoryStore) Put(a Agent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.agents[a.ID] = a
}

func (s *MemoryStore) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.agents, id)
}
