package agents

import (
	"encoding/json"
	"testing"
)

func TestNormalizeTools_DropsUnnamedAndDefaultsParameters(t *testing.T) {
	tools := NormalizeTools([]Tool{
		{Name: "  lookup_order  ", Description: " find an order "},
		{Name: ""},
		{Name: "   "},
		{Name: "transfer_call", Parameters: json.RawMessage(`{"type":"object"}`)},
	})

	if len(tools) != 2 {
		t.Fatalf("expected 2 tools, got %d", len(tools))
	}
	if tools[0].Name != "lookup_order" {
		t.Fatalf("expected trimmed name, got %q", tools[0].Name)
	}
	if string(tools[0].Parameters) != `{}` {
		t.Fatalf("expected default parameters, got %s", tools[0].Parameters)
	}
	if string(tools[1].Parameters) != `{"type":"object"}` {
		t.Fatalf("expected parameters preserved")
	}
}

func TestNormalizeTools_AllUnusableYieldsNil(t *testing.T) {
	if got := NormalizeTools([]Tool{{Name: " "}}); got != nil {
		t.Fatalf("expected nil, got %v", got)
	}
}

func TestResolvedConfig_TagsAgentAndDerivesRAG(t *testing.T) {
	a := Agent{
		ID:              "agent-1",
		KnowledgeBaseID: "kb-9",
		Config: AgentConfig{
			Instructions: "help callers",
			Tools:        []Tool{{Name: "lookup"}},
		},
	}

	cfg := a.ResolvedConfig()
	if cfg.AgentID != "agent-1" {
		t.Fatalf("expected agent id tag, got %q", cfg.AgentID)
	}
	if cfg.RAG == nil || !cfg.RAG.Enabled || cfg.RAG.KnowledgeBaseID != "kb-9" {
		t.Fatalf("expected RAG derived from knowledge base, got %+v", cfg.RAG)
	}
	if cfg.RAG.TopK <= 0 {
		t.Fatalf("expected top_k default")
	}
}

func TestResolvedConfig_NoKnowledgeBaseMeansNoRAG(t *testing.T) {
	cfg := Agent{ID: "agent-2"}.ResolvedConfig()
	if cfg.RAG != nil {
		t.Fatalf("expected nil RAG, got %+v", cfg.RAG)
	}
}
