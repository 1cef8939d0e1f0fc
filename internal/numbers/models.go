package numbers

import "time"

// Binding associates a provisioned DID with the agent that answers it.
//
// Owned by the management plane; the routing resolver only reads it.
// E164 is unique across bindings.
type Binding struct {
	ID            string `json:"id" db:"id"`
	IntegrationID string `json:"integration_id" db:"integration_id"`

	// Provider identifies the carrier the number was purchased from, and
	// ProviderNumberID the carrier's handle for releasing it.
	Provider         string `json:"provider" db:"provider"`
	ProviderNumberID string `json:"provider_number_id" db:"provider_number_id"`

	E164 string `json:"e164" db:"e164"`

	// AgentID is empty when no agent is bound; calls to this number then fall
	// back to the default routing policy.
	AgentID string `json:"agent_id,omitempty" db:"agent_id"`
	Enabled bool   `json:"enabled" db:"enabled"`

	// Overrides adjust the bound agent's config for this number only.
	Overrides BindingOverrides `json:"overrides" db:"overrides"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// BindingOverrides are the per-number knobs that may differ from the agent's
// stored config. Empty fields mean "use the agent's value".
type BindingOverrides struct {
	Greeting     string `json:"greeting,omitempty"`
	Instructions string `json:"instructions,omitempty"`
	Voice        string `json:"voice,omitempty"`
}

func (o BindingOverrides) IsZero() bool {
	return o == BindingOverrides{}
}
