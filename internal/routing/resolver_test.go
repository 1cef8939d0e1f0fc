package routing

import (
	"context"
	"errors"
	"testing"
	"time"

	"dialplane/internal/agents"
	"dialplane/internal/numbers"
)

func seedBinding(t *testing.T, repo *numbers.MemoryBindingRepo, b numbers.Binding) {
	t.Helper()
	if b.ID == "" {
		b.ID = "bind-" + b.E164
	}
	b.CreatedAt = time.Now().UTC()
	b.UpdatedAt = b.CreatedAt
	if err := repo.Create(context.Background(), b); err != nil {
		t.Fatalf("seed binding: %v", err)
	}
}

func TestResolve_NoDestinationFallsBack(t *testing.T) {
	r := NewBindingResolver(numbers.NewMemoryBindingRepo(), agents.NewMemoryStore())

	res := r.Resolve(context.Background(), RouteContext{RoomName: "call-1"})
	if !res.Fallback {
		t.Fatalf("expected fallback")
	}
	if res.Config.NoiseCancellation != NoiseCancellationTelephony {
		t.Fatalf("expected telephony noise cancellation, got %q", res.Config.NoiseCancellation)
	}
	if res.Config.Greeting == "" {
		t.Fatalf("expected AI-initiated greeting in default policy")
	}
}

func TestResolve_BoundAgent(t *testing.T) {
	bindings := numbers.NewMemoryBindingRepo()
	agentStore := agents.NewMemoryStore()
	agentStore.Put(agents.Agent{
		ID:              "agent-1",
		KnowledgeBaseID: "kb-1",
		Config:          agents.AgentConfig{Instructions: "be formal", Voice: "alloy"},
	})
	seedBinding(t, bindings, numbers.Binding{E164: "+15551234567", AgentID: "agent-1", Enabled: true})

	r := NewBindingResolver(bindings, agentStore)
	res := r.Resolve(context.Background(), RouteContext{RoomName: "call-1", To: "+15551234567"})

	if res.Fallback {
		t.Fatalf("expected bound agent, got fallback (%s)", res.Reason)
	}
	if res.Config.AgentID != "agent-1" {
		t.Fatalf("expected agent tag, got %q", res.Config.AgentID)
	}
	if res.Config.RAG == nil || res.Config.RAG.KnowledgeBaseID != "kb-1" {
		t.Fatalf("expected RAG derived from knowledge base")
	}
}

func TestResolve_NormalizesDestination(t *testing.T) {
	bindings := numbers.NewMemoryBindingRepo()
	agentStore := agents.NewMemoryStore()
	agentStore.Put(agents.Agent{ID: "agent-1"})
	seedBinding(t, bindings, numbers.Binding{E164: "+15551234567", AgentID: "agent-1", Enabled: true})

	r := NewBindingResolver(bindings, agentStore)
	res := r.Resolve(context.Background(), RouteContext{To: "(555) 123-4567"})
	if res.Fallback {
		t.Fatalf("expected bound agent for formatted destination, got fallback (%s)", res.Reason)
	}
}

func TestResolve_DisabledBindingFallsBack(t *testing.T) {
	bindings := numbers.NewMemoryBindingRepo()
	seedBinding(t, bindings, numbers.Binding{E164: "+15551234567", AgentID: "agent-1", Enabled: false})

	r := NewBindingResolver(bindings, agents.NewMemoryStore())
	res := r.Resolve(context.Background(), RouteContext{To: "+15551234567"})
	if !res.Fallback || res.Reason != "binding_disabled" {
		t.Fatalf("expected binding_disabled fallback, got %+v", res)
	}
}

func TestResolve_DeletedAgentFallsBack(t *testing.T) {
	bindings := numbers.NewMemoryBindingRepo()
	seedBinding(t, bindings, numbers.Binding{E164: "+15551234567", AgentID: "gone", Enabled: true})

	r := NewBindingResolver(bindings, agents.NewMemoryStore())
	res := r.Resolve(context.Background(), RouteContext{To: "+15551234567"})
	if !res.Fallback || res.Reason != "agent_resolution_failed" {
		t.Fatalf("expected agent_resolution_failed fallback, got %+v", res)
	}
}

func TestResolve_AppliesBindingOverrides(t *testing.T) {
	bindings := numbers.NewMemoryBindingRepo()
	agentStore := agents.NewMemoryStore()
	agentStore.Put(agents.Agent{ID: "agent-1", Config: agents.AgentConfig{Greeting: "hi", Voice: "alloy"}})
	seedBinding(t, bindings, numbers.Binding{
		E164:      "+15551234567",
		AgentID:   "agent-1",
		Enabled:   true,
		Overrides: numbers.BindingOverrides{Greeting: "Welcome to support."},
	})

	r := NewBindingResolver(bindings, agentStore)
	res := r.Resolve(context.Background(), RouteContext{To: "+15551234567"})
	if res.Config.Greeting != "Welcome to support." {
		t.Fatalf("expected override greeting, got %q", res.Config.Greeting)
	}
	if res.Config.Voice != "alloy" {
		t.Fatalf("expected agent voice preserved, got %q", res.Config.Voice)
	}
}

type failingBindings struct{ numbers.BindingStore }

func (failingBindings) GetByE164(ctx context.Context, e164 string) (numbers.Binding, error) {
	return numbers.Binding{}, errors.New("store down")
}

func TestResolve_StoreFailureFallsBack(t *testing.T) {
	r := NewBindingResolver(failingBindings{}, agents.NewMemoryStore())
	res := r.Resolve(context.Background(), RouteContext{To: "+15551234567"})
	if !res.Fallback || res.Reason != "binding_lookup_failed" {
		t.Fatalf("expected binding_lookup_failed fallback, got %+v", res)
	}
}
