package numbers

import (
	"context"
	"sync"
)

// MemoryBindingRepo is an in-memory BindingStore useful for tests and local
// runs. It is not intended for production use.
type MemoryBindingRepo struct {
	mu     sync.RWMutex
	byID   map[string]Binding
	byE164 map[string]string // e164 -> id
}

func NewMemoryBindingRepo() *MemoryBindingRepo {
	return &MemoryBindingRepo{
		byID:   make(map[string]Binding),
		byE164: make(map[string]string),
	}
}

func (r *MemoryBindingRepo) Create(ctx context.Context, b Binding) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byE164[b.E164]; ok {
		return ErrConflict
	}
	r.byID[b.ID] = b
	r.byE164[b.E164] = b.ID
	return nil
}

func (r *MemoryBindingRepo) Update(ctx context.Context, b Binding) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	old, ok := r.byID[b.ID]
	if !ok {
		return ErrNotFound
	}
	if old.E164 != b.E164 {
		if _, taken := r.byE164[b.E164]; taken {
			return ErrConflict
		}
		delete(r.byE164, old.E164)
		r.byE164[b.E164] = b.ID
	}
	r.byID[b.ID] = b
	return nil
}

func (r *MemoryBindingRepo) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.byID[id]
	if !ok {
		return ErrNotFound
	}
	delete(r.byID, id)
	delete(r.byE164, b.E164)
	return nil
}

func (r *MemoryBindingRepo) GetByID(ctx context.Context, id string) (Binding, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.byID[id]
	if !ok {
		return Binding{}, ErrNotFound
	}
	return b, nil
}

func (r *MemoryBindingRepo) GetByE164(ctx context.Context, e164 string) (Binding, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byE164[e164]
	if !ok {
		return Binding{}, ErrNotFound
	}
	return r.byID[id], nil
}

func (r *MemoryBindingRepo) List(ctx context.Context) ([]Binding, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Binding, 0, len(r.byID))
	for _, b := range r.byID {
		out = append(out, b)
	}
	return out, nil
}
