package agents

import (
	"encoding/json"
	"strings"
	"time"
)

// Agent is a stored conversational-agent definition owned by the management
// plane. The routing resolver reads it; nothing in call processing writes it.
type Agent struct {
	ID   string `json:"id" db:"id"`
	Name string `json:"name" db:"name"`

	Config AgentConfig `json:"config" db:"config"`

	// KnowledgeBaseID, when set, enables retrieval-augmented generation for
	// this agent. RAG settings are derived at resolution time.
	KnowledgeBaseID string `json:"knowledge_base_id,omitempty" db:"knowledge_base_id"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// AgentConfig is the resolved configuration handed to the dispatcher when an
// agent is placed into a room.
type AgentConfig struct {
	// AgentID tags the resolution with the stored agent it came from.
	// Empty for the default telephony policy.
	AgentID string `json:"agent_id,omitempty"`

	Instructions string `json:"instructions,omitempty"`
	Greeting     string `json:"greeting,omitempty"`
	Voice        string `json:"voice,omitempty"`

	// NoiseCancellation selects the platform audio filter mode.
	NoiseCancellation string `json:"noise_cancellation,omitempty"`

	Tools []Tool       `json:"tools,omitempty"`
	RAG   *RAGSettings `json:"rag,omitempty"`

	Metadata map[string]string `json:"metadata,omitempty"`
}

// Tool is a tool declaration exposed to the agent runtime.
type Tool struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Parameters  json.RawMessage `json:"parameters,omitempty"`
}

// RAGSettings are derived from the agent's knowledge-base reference.
type RAGSettings struct {
	Enabled         bool   `json:"enabled"`
	KnowledgeBaseID string `json:"knowledge_base_id"`
	TopK            int    `json:"top_k"`
}

const defaultRAGTopK = 5

// ResolvedConfig builds the dispatchable configuration for this agent:
// tools normalized, RAG derived from the knowledge-base reference, and the
// result tagged with the agent id.
func (a Agent) ResolvedConfig() AgentConfig {
	cfg := a.Config
	cfg.AgentID = a.ID
	cfg.Tools = NormalizeTools(cfg.Tools)
	if a.KnowledgeBaseID != "" {
		cfg.RAG = &RAGSettings{
			Enabled:         true,
			KnowledgeBaseID: a.KnowledgeBaseID,
			TopK:            defaultRAGTopK,
		}
	}
	return cfg
}

// NormalizeTools drops unusable declarations and fills schema defaults.
// Tool names are trimmed; a tool without a name cannot be invoked and is
// removed rather than passed through to fail at the runtime.
func NormalizeTools(tools []Tool) []Tool {
	if len(tools) == 0 {
		return nil
	}
	out := make([]Tool, 0, len(tools))
	for _, t := range tools {
		t.Name = strings.TrimSpace(t.Name)
		if t.Name == "" {
			continue
		}
		t.Description = strings.TrimSpace(t.Description)
		if len(t.Parameters) == 0 {
			t.Parameters = json.RawMessage(`{}`)
		}
		out = append(out, t)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
