package sipinfra

import (
	"context"
	"fmt"
	"slices"
	"sync"
)

// MemoryAPI is an in-memory ManagementAPI useful for tests and local runs.
// It counts mutating writes so tests can assert reconciliation convergence.
type MemoryAPI struct {
	mu     sync.Mutex
	nextID int

	trunks []InboundTrunk
	rules  []DispatchRule

	writes int
}

func NewMemoryAPI() *MemoryAPI { return &MemoryAPI{} }

// Writes returns the number of mutating calls applied so far.
func (a *MemoryAPI) Writes() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.writes
}

func (a *MemoryAPI) newID(kind string) string {
	a.nextID++
	return fmt.Sprintf("%s_%d", kind, a.nextID)
}

func (a *MemoryAPI) ListInboundTrunks(ctx context.Context) ([]InboundTrunk, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return slices.Clone(a.trunks), nil
}

func (a *MemoryAPI) CreateInboundTrunk(ctx context.Context, t InboundTrunk) (InboundTrunk, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.writes++
	t.ID = a.newID("trunk")
	a.trunks = append(a.trunks, t)
	return t, nil
}

func (a *MemoryAPI) UpdateInboundTrunk(ctx context.Context, id string, upd TrunkUpdate) (InboundTrunk, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.writes++
	for i := range a.trunks {
		if a.trunks[i].ID != id {
			continue
		}
		for _, n := range upd.AddNumbers {
			if !slices.Contains(a.trunks[i].Numbers, n) {
				a.trunks[i].Numbers = append(a.trunks[i].Numbers, n)
			}
		}
		a.trunks[i].Numbers = slices.DeleteFunc(a.trunks[i].Numbers, func(n string) bool {
			return slices.Contains(upd.RemoveNumbers, n)
		})
		return a.trunks[i], nil
	}
	return InboundTrunk{}, ErrResourceNotFound
}

func (a *MemoryAPI) DeleteInboundTrunk(ctx context.Context, id string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.writes++
	before := len(a.trunks)
	a.trunks = slices.DeleteFunc(a.trunks, func(t InboundTrunk) bool { return t.ID == id })
	if len(a.trunks) == before {
		return ErrResourceNotFound
	}
	return nil
}

func (a *MemoryAPI) ListDispatchRules(ctx context.Context) ([]DispatchRule, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return slices.Clone(a.rules), nil
}

func (a *MemoryAPI) CreateDispatchRule(ctx context.Context, r DispatchRule) (DispatchRule, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.writes++
	r.ID = a.newID("rule")
	a.rules = append(a.rules, r)
	return r, nil
}

func (a *MemoryAPI) UpdateDispatchRule(ctx context.Context, id string, upd RuleUpdate) (DispatchRule, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.writes++
	for i := range a.rules {
		if a.rules[i].ID != id {
			continue
		}
		for _, t := range upd.AddTrunkIDs {
			if !slices.Contains(a.rules[i].TrunkIDs, t) {
				a.rules[i].TrunkIDs = append(a.rules[i].TrunkIDs, t)
			}
		}
		a.rules[i].TrunkIDs = slices.DeleteFunc(a.rules[i].TrunkIDs, func(t string) bool {
			return slices.Contains(upd.RemoveTrunkIDs, t)
		})
		return a.rules[i], nil
	}
	return DispatchRule{}, ErrResourceNotFound
}

func (a *MemoryAPI) DeleteDispatchRule(ctx context.Context, id string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.writes++
	before := len(a.rules)
	a.rules = slices.DeleteFunc(a.rules, func(r DispatchRule) bool { return r.ID == id })
	if len(a.rules) == before {
		return ErrResourceNotFound
	}
	return nil
}
