package sipinfra

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"dialplane/pkg/logger"
	"dialplane/pkg/phone"
)

// Config names the well-known shared resources the reconciler maintains.
type Config struct {
	TrunkName        string
	DispatchRuleName string
	RoomPrefix       string
}

// EnsureResult reports the resources a DID is now wired through.
type EnsureResult struct {
	NormalizedDid  string `json:"normalized_did"`
	InboundTrunkID string `json:"inbound_trunk_id"`
	DispatchRuleID string `json:"dispatch_rule_id"`
}

// RemoveResult reports what the removal actually did, so the caller can tell
// a no-op from a teardown.
type RemoveResult struct {
	NormalizedDid  string `json:"normalized_did"`
	InboundTrunkID string `json:"inbound_trunk_id,omitempty"`

	TrunkDeleted        bool `json:"trunk_deleted"`
	DispatchRuleUpdated bool `json:"dispatch_rule_updated"`
	DispatchRuleDeleted bool `json:"dispatch_rule_deleted"`
}

// Reconciler keeps the shared inbound trunk and dispatch rule consistent with
// the set of provisioned DIDs.
//
// Invariants it enforces (the platform does not):
//   - the well-known trunk holds all provisioned numbers, and a trunk with
//     zero numbers never persists;
//   - the well-known dispatch rule scopes exactly the trunks that currently
//     exist, and never references a deleted trunk.
//
// Both resources are looked up by name on every call; ids are never cached.
// All management-API errors propagate to the caller, which owns the decision
// to retry or page an operator.
type Reconciler struct {
	api    ManagementAPI
	locker Locker
	cfg    Config
}

func NewReconciler(api ManagementAPI, locker Locker, cfg Config) (*Reconciler, error) {
	if api == nil {
		return nil, errors.New("sipinfra: management api is required")
	}
	if cfg.TrunkName == "" || cfg.DispatchRuleName == "" {
		return nil, errors.New("sipinfra: trunk and dispatch rule names are required")
	}
	if locker == nil {
		locker = NoopLocker{}
	}
	return &Reconciler{api: api, locker: locker, cfg: cfg}, nil
}

// EnsureInboundSetup makes the platform accept inbound calls for rawNumber:
// the DID ends up in the well-known trunk, and the well-known dispatch rule
// ends up scoped to that trunk. Idempotent: a second call for the same number
// performs no mutating writes.
func (r *Reconciler) EnsureInboundSetup(ctx context.Context, rawNumber string) (EnsureResult, error) {
	did, err := phone.NormalizeE164(rawNumber)
	if err != nil {
		return EnsureResult{}, fmt.Errorf("sipinfra: %w", err)
	}
	log := logger.From(ctx).With("did", did)

	release, err := r.locker.Acquire(ctx, r.cfg.TrunkName)
	if err != nil {
		return EnsureResult{}, fmt.Errorf("sipinfra: acquire lock: %w", err)
	}
	defer release()

	trunk, err := r.ensureTrunkHasNumber(ctx, did)
	if err != nil {
		return EnsureResult{}, err
	}

	rule, err := r.ensureRuleScopesTrunk(ctx, trunk.ID)
	if err != nil {
		return EnsureResult{}, err
	}

	log.Info("inbound setup ensured", "trunk_id", trunk.ID, "rule_id", rule.ID)
	return EnsureResult{NormalizedDid: did, InboundTrunkID: trunk.ID, DispatchRuleID: rule.ID}, nil
}

func (r *Reconciler) ensureTrunkHasNumber(ctx context.Context, did string) (InboundTrunk, error) {
	trunk, ok, err := r.findTrunk(ctx)
	if err != nil {
		return InboundTrunk{}, err
	}

	if !ok {
		created, err := r.api.CreateInboundTrunk(ctx, InboundTrunk{
			Name:    r.cfg.TrunkName,
			Numbers: []string{did},
		})
		if err != nil {
			return InboundTrunk{}, fmt.Errorf("sipinfra: create trunk: %w", err)
		}
		return created, nil
	}

	if slices.Contains(trunk.Numbers, did) {
		return trunk, nil
	}

	// Additive update rather than full replacement, so numbers added by
	// concurrent reconciliations are not clobbered.
	updated, err := r.api.UpdateInboundTrunk(ctx, trunk.ID, TrunkUpdate{AddNumbers: []string{did}})
	if err != nil {
		return InboundTrunk{}, fmt.Errorf("sipinfra: add number to trunk: %w", err)
	}
	return updated, nil
}

func (r *Reconciler) ensureRuleScopesTrunk(ctx context.Context, trunkID string) (DispatchRule, error) {
	rule, ok, err := r.findRule(ctx)
	if err != nil {
		return DispatchRule{}, err
	}

	if !ok {
		created, err := r.api.CreateDispatchRule(ctx, DispatchRule{
			Name:       r.cfg.DispatchRuleName,
			TrunkIDs:   []string{trunkID},
			RoomPrefix: r.cfg.RoomPrefix,
		})
		if err != nil {
			return DispatchRule{}, fmt.Errorf("sipinfra: create dispatch rule: %w", err)
		}
		return created, nil
	}

	if slices.Contains(rule.TrunkIDs, trunkID) {
		return rule, nil
	}

	updated, err := r.api.UpdateDispatchRule(ctx, rule.ID, RuleUpdate{AddTrunkIDs: []string{trunkID}})
	if err != nil {
		return DispatchRule{}, fmt.Errorf("sipinfra: add trunk to dispatch rule: %w", err)
	}
	return updated, nil
}

// RemoveInboundSetup stops accepting inbound calls for rawNumber. When the
// number was the trunk's last, the trunk is deleted and the dispatch rule
// either loses the trunk reference or is deleted with it.
func (r *Reconciler) RemoveInboundSetup(ctx context.Context, rawNumber string) (RemoveResult, error) {
	did, err := phone.NormalizeE164(rawNumber)
	if err != nil {
		return RemoveResult{}, fmt.Errorf("sipinfra: %w", err)
	}
	log := logger.From(ctx).With("did", did)

	release, err := r.locker.Acquire(ctx, r.cfg.TrunkName)
	if err != nil {
		return RemoveResult{}, fmt.Errorf("sipinfra: acquire lock: %w", err)
	}
	defer release()

	out := RemoveResult{NormalizedDid: did}

	trunk, ok, err := r.findTrunk(ctx)
	if err != nil {
		return RemoveResult{}, err
	}
	if !ok {
		// Nothing provisioned; nothing to tear down.
		return out, nil
	}
	out.InboundTrunkID = trunk.ID

	remaining := slices.DeleteFunc(slices.Clone(trunk.Numbers), func(n string) bool { return n == did })

	if len(remaining) > 0 {
		if len(remaining) < len(trunk.Numbers) {
			if _, err := r.api.UpdateInboundTrunk(ctx, trunk.ID, TrunkUpdate{RemoveNumbers: []string{did}}); err != nil {
				return RemoveResult{}, fmt.Errorf("sipinfra: remove number from trunk: %w", err)
			}
		}
		return out, nil
	}

	// Last number on the trunk: the trunk goes away, and the dispatch rule
	// must not keep pointing at it.
	if err := r.api.DeleteInboundTrunk(ctx, trunk.ID); err != nil {
		return RemoveResult{}, fmt.Errorf("sipinfra: delete trunk: %w", err)
	}
	out.TrunkDeleted = true

	rule, ok, err := r.findRule(ctx)
	if err != nil {
		return RemoveResult{}, err
	}
	if !ok || !slices.Contains(rule.TrunkIDs, trunk.ID) {
		return out, nil
	}

	if len(rule.TrunkIDs) == 1 {
		if err := r.api.DeleteDispatchRule(ctx, rule.ID); err != nil {
			return RemoveResult{}, fmt.Errorf("sipinfra: delete dispatch rule: %w", err)
		}
		out.DispatchRuleDeleted = true
	} else {
		if _, err := r.api.UpdateDispatchRule(ctx, rule.ID, RuleUpdate{RemoveTrunkIDs: []string{trunk.ID}}); err != nil {
			return RemoveResult{}, fmt.Errorf("sipinfra: remove trunk from dispatch rule: %w", err)
		}
		out.DispatchRuleUpdated = true
	}

	log.Info("inbound setup removed",
		"trunk_deleted", out.TrunkDeleted,
		"rule_updated", out.DispatchRuleUpdated,
		"rule_deleted", out.DispatchRuleDeleted,
	)
	return out, nil
}

func (r *Reconciler) findTrunk(ctx context.Context) (InboundTrunk, bool, error) {
	trunks, err := r.api.ListInboundTrunks(ctx)
	if err != nil {
		return InboundTrunk{}, false, fmt.Errorf("sipinfra: list trunks: %w", err)
	}
	for _, t := range trunks {
		if t.Name == r.cfg.TrunkName {
			return t, true, nil
		}
	}
	return InboundTrunk{}, false, nil
}

func (r *Reconciler) findRule(ctx context.Context) (DispatchRule, bool, error) {
	rules, err := r.api.ListDispatchRules(ctx)
	if err != nil {
		return DispatchRule{}, false, fmt.Errorf("sipinfra: list dispatch rules: %w", err)
	}
	for _, rl := range rules {
		if rl.Name == r.cfg.DispatchRuleName {
			return rl, true, nil
		}
	}
	return DispatchRule{}, false, nil
}
