package calls

import (
	"context"
	"sort"
	"sync"
)

// MemoryStore is an in-memory Store useful for tests and local runs.
// It is not intended for production use.
type MemoryStore struct {
	mu     sync.Mutex
	byRoom map[string]Call
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{byRoom: make(map[string]Call)}
}

func (s *MemoryStore) GetByRoom(ctx context.Context, roomName string) (Call, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.byRoom[roomName]
	if !ok {
		return Call{}, ErrNotFound
	}
	return c, nil
}

func (s *MemoryStore) CreateIfAbsent(ctx context.Context, c Call) (Call, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.byRoom[c.RoomName]; ok {
		return existing, false, nil
	}
	s.byRoom[c.RoomName] = c
	return c, true, nil
}

func (s *MemoryStore) UpdateMutable(ctx context.Context, c Call) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.byRoom[c.RoomName]
	if !ok {
		return ErrNotFound
	}
	existing.Status = c.Status
	existing.AgentDispatched = c.AgentDispatched
	existing.Raw = c.Raw
	existing.UpdatedAt = c.UpdatedAt
	s.byRoom[c.RoomName] = existing
	return nil
}

func (s *MemoryStore) ListRecent(ctx context.Context, limit int) ([]Call, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Call, 0, len(s.byRoom))
	for _, c := range s.byRoom {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// MemoryDedupSet is an unbounded in-memory DedupSet for tests.
type MemoryDedupSet struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

func NewMemoryDedupSet() *MemoryDedupSet {
	return &MemoryDedupSet{seen: make(map[string]struct{})}
}

func (d *MemoryDedupSet) FirstSeen(ctx context.Context, eventID string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.seen[eventID]; ok {
		return false, nil
	}
	d.seen[eventID] = struct{}{}
	return true, nil
}
