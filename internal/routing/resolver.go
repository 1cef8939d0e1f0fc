package routing

import (
	"context"
	"errors"

	"dialplane/internal/agents"
	"dialplane/internal/event"
	"dialplane/internal/numbers"
	"dialplane/pkg/logger"
	"dialplane/pkg/phone"
)

// RouteContext carries what is known about an inbound call when an agent
// must be chosen for it.
type RouteContext struct {
	RoomName string
	From     string
	To       string

	Participant *event.Participant
}

// Resolution is the routing output: a dispatchable agent configuration.
// Fallback reports that the default policy was used; Reason says why, for
// logs and metrics only.
type Resolution struct {
	Config   agents.AgentConfig
	Fallback bool
	Reason   string
}

// Resolver maps an inbound destination number to an agent configuration.
//
// Resolution never fails: every error path inside an implementation must
// degrade to the default telephony policy. A caller holding a live phone call
// has nothing useful to do with a resolution error.
type Resolver interface {
	Resolve(ctx context.Context, rc RouteContext) Resolution
}

// BindingResolver resolves routing through the number-binding store.
//
// Priority:
//  1. No destination number: default policy.
//  2. Binding lookup by normalized destination.
//  3. Binding must be enabled and reference an agent.
//  4. Agent config resolution (overrides merged, tools normalized, RAG derived).
//
// No side effects: no writes, no provider calls.
type BindingResolver struct {
	Bindings numbers.BindingStore
	Agents   agents.Store
}

func NewBindingResolver(bindings numbers.BindingStore, agentStore agents.Store) *BindingResolver {
	return &BindingResolver{Bindings: bindings, Agents: agentStore}
}

func (r *BindingResolver) Resolve(ctx context.Context, rc RouteContext) Resolution {
	log := logger.From(ctx)

	if rc.To == "" {
		return fallback("no_destination")
	}

	did, err := phone.NormalizeE164(rc.To)
	if err != nil {
		log.Warn("routing: destination not E.164", "to", rc.To, "err", err)
		return fallback("unparseable_destination")
	}

	if r.Bindings == nil {
		return fallback("bindings_not_configured")
	}
	binding, err := r.Bindings.GetByE164(ctx, did)
	if errors.Is(err, numbers.ErrNotFound) {
		return fallback("no_binding")
	}
	if err != nil {
		log.Error("routing: binding lookup failed", "did", did, "err", err)
		return fallback("binding_lookup_failed")
	}

	if !binding.Enabled {
		return fallback("binding_disabled")
	}
	if binding.AgentID == "" {
		return fallback("no_agent_bound")
	}
	if r.Agents == nil {
		return fallback("agents_not_configured")
	}

	agent, err := r.Agents.Get(ctx, binding.AgentID)
	if err != nil {
		// Bound agent deleted or store unavailable. The call still gets
		// answered, just by the default policy.
		log.Error("routing: agent resolution failed", "agent_id", binding.AgentID, "did", did, "err", err)
		return fallback("agent_resolution_failed")
	}

	cfg := agent.ResolvedConfig()
	applyOverrides(&cfg, binding.Overrides)
	return Resolution{Config: cfg, Reason: "bound_agent"}
}

func applyOverrides(cfg *agents.AgentConfig, o numbers.BindingOverrides) {
	if o.Greeting != "" {
		cfg.Greeting = o.Greeting
	}
	if o.Instructions != "" {
		cfg.Instructions = o.Instructions
	}
	if o.Voice != "" {
		cfg.Voice = o.Voice
	}
}

func fallback(reason string) Resolution {
	return Resolution{Config: DefaultPolicy(), Fallback: true, Reason: reason}
}
