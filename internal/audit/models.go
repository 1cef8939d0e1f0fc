package audit

import "time"

// Event is one append-only audit record for a management-plane or call-plane
// action. Records are internal-only and never exposed to callers by default.
type Event struct {
	ID   string    `json:"id" db:"id"`
	Type EventType `json:"type" db:"type"`

	// Context fields; each type fills what it has.
	RoomName string `json:"room_name,omitempty" db:"room_name"`
	CallID   string `json:"call_id,omitempty" db:"call_id"`
	Did      string `json:"did,omitempty" db:"did"`

	Message  string `json:"message,omitempty" db:"message"`
	Metadata string `json:"metadata,omitempty" db:"metadata"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

type EventType string

const (
	EventTypeNumberProvisioned EventType = "number_provisioned"
	EventTypeNumberReleased    EventType = "number_released"
	EventTypeDispatchFailure   EventType = "dispatch_failure"
)
