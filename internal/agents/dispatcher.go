package agents

import (
	"context"
)

// DispatchRequest asks the platform to place an agent into a room.
type DispatchRequest struct {
	RoomName string      `json:"room_name"`
	Config   AgentConfig `json:"config"`

	// Metadata is passed through to the agent session (caller numbers etc).
	Metadata map[string]string `json:"metadata,omitempty"`
}

type DispatchResult struct {
	DispatchID string `json:"dispatch_id"`
}

// Dispatcher places a resolved agent into a room.
//
// Rules:
// - Callers treat dispatch as at-most-once per call; retries are their decision.
// - Implementations must carry their own timeout; a hung dispatch must not
//   block webhook processing.
type Dispatcher interface {
	Dispatch(ctx context.Context, req DispatchRequest) (DispatchResult, error)
}
