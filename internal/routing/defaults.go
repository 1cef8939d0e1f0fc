package routing

import "dialplane/internal/agents"

// Telephony-appropriate defaults used whenever no binding resolves.
// All other agent fields stay at their system defaults.
const (
	// NoiseCancellationTelephony is the platform's phone-optimized audio
	// filter mode.
	NoiseCancellationTelephony = "telephony"

	defaultInstructions = "You are a helpful voice assistant answering a phone call. " +
		"Keep responses short, one or two sentences, and speak naturally. " +
		"Ask one question at a time and wait for the caller to answer."

	defaultGreeting = "Hello! Thanks for calling. How can I help you today?"
)

// DefaultPolicy returns the agent configuration used when no binding matches,
// the binding is disabled, or resolution fails. The AI greets first: on a
// phone call silence reads as a dead line.
func DefaultPolicy() agents.AgentConfig {
	return agents.AgentConfig{
		Instructions:      defaultInstructions,
		Greeting:          defaultGreeting,
		NoiseCancellation: NoiseCancellationTelephony,
	}
}
