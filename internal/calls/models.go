package calls

import (
	"encoding/json"
	"time"
)

// Call is the single lifecycle record for one telephone call, keyed by room.
//
// Immutability invariant: CallID, RoomName, SIPParticipant, From and To are
// populated exactly once, on the first SIP participant_joined for the room,
// and never overwritten by later events. Later events may only touch Status,
// AgentDispatched, Raw and UpdatedAt.
//
// Raw is a diagnostic snapshot of the last event applied; concurrent events
// for the same room may leave a stale snapshot there, which is acceptable.
type Call struct {
	CallID   string `json:"call_id" db:"call_id"`
	RoomName string `json:"room_name" db:"room_name"`

	Status CallStatus `json:"status" db:"status"`

	// SIPParticipant identifies the originating SIP leg (participant id, or
	// identity when the platform omitted the id). Leave events end the call
	// only when they match it.
	SIPParticipant string `json:"sip_participant,omitempty" db:"sip_participant"`

	// From and To are E.164 where the SIP attributes allowed normalization.
	From string `json:"from,omitempty" db:"from_number"`
	To   string `json:"to,omitempty" db:"to_number"`

	AgentDispatched bool `json:"agent_dispatched" db:"agent_dispatched"`

	Raw json.RawMessage `json:"raw,omitempty" db:"raw"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

type CallStatus string

const (
	CallStatusPending              CallStatus = "pending"
	CallStatusSIPParticipantJoined CallStatus = "sip_participant_joined"
	CallStatusEnded                CallStatus = "ended"
	CallStatusFailed               CallStatus = "failed"
)

// Terminal reports whether the call has finished. Terminal calls are never
// transitioned again; repeated leave events for them are no-ops.
func (s CallStatus) Terminal() bool {
	return s == CallStatusEnded || s == CallStatusFailed
}
