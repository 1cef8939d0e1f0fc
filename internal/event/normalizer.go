package event

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Recognized event types. Anything else flows through as-is and is reported
// by the state machine as unsupported.
const (
	TypeParticipantJoined = "participant_joined"
	TypeParticipantLeft   = "participant_left"
)

const (
	derivedIDPrefix = "evt_sha_"
	randomIDPrefix  = "evt_rnd_"

	// Content-hash ids are truncated; 32 hex chars of sha-256 is plenty for
	// dedup keys and keeps redis keys short.
	derivedIDHexLen = 32
)

// Participant is the subset of participant fields the control plane reads.
type Participant struct {
	ID         string            `json:"id,omitempty"`
	Identity   string            `json:"identity,omitempty"`
	Kind       string            `json:"kind,omitempty"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

// Event is the canonical record derived once per webhook delivery.
//
// Immutable after Normalize. ID is the platform-provided id when present;
// otherwise it is derived from the body (IDDerived=true), in which case dedup
// across redeliveries only works if the platform redelivers byte-identical
// bodies. The random fallback cannot dedup at all, it only keeps downstream
// code from handling empty ids.
type Event struct {
	ID          string          `json:"id"`
	IDDerived   bool            `json:"id_derived"`
	Type        string          `json:"type"`
	CreatedAt   time.Time       `json:"created_at"`
	RoomName    string          `json:"room_name,omitempty"`
	Participant *Participant    `json:"participant,omitempty"`
	Raw         json.RawMessage `json:"raw,omitempty"`
}

// wirePayload mirrors the platform webhook body. Unknown fields are ignored.
type wirePayload struct {
	ID        string `json:"id"`
	Event     string `json:"event"`
	CreatedAt int64  `json:"createdAt"`
	Room      *struct {
		Name string `json:"name"`
	} `json:"room"`
	Participant *struct {
		SID        string            `json:"sid"`
		Identity   string            `json:"identity"`
		Kind       string            `json:"kind"`
		Attributes map[string]string `json:"attributes"`
	} `json:"participant"`
}

// Normalize converts a raw webhook body into a canonical Event.
//
// It never fails: webhook payloads are uncontrolled input, so malformed or
// missing fields degrade to zero values instead of errors. Callers decide what
// an event missing a room or participant means.
func Normalize(raw []byte) Event {
	e := Event{Raw: raw}

	var p wirePayload
	if err := json.Unmarshal(raw, &p); err == nil {
		e.Type = strings.TrimSpace(p.Event)
		e.ID = strings.TrimSpace(p.ID)
		if p.CreatedAt > 0 {
			e.CreatedAt = time.Unix(p.CreatedAt, 0).UTC()
		}
		if p.Room != nil {
			e.RoomName = strings.TrimSpace(p.Room.Name)
		}
		if p.Participant != nil {
			e.Participant = &Participant{
				ID:         strings.TrimSpace(p.Participant.SID),
				Identity:   strings.TrimSpace(p.Participant.Identity),
				Kind:       strings.TrimSpace(p.Participant.Kind),
				Attributes: p.Participant.Attributes,
			}
		}
	}

	if e.ID == "" {
		e.ID, e.IDDerived = deriveID(raw)
	}
	return e
}

// deriveID builds a stable id from the body so redelivery of the identical
// payload dedupes. An empty body falls back to a random id (best-effort only).
func deriveID(raw []byte) (string, bool) {
	if len(raw) > 0 {
		sum := sha256.Sum256(raw)
		return derivedIDPrefix + hex.EncodeToString(sum[:])[:derivedIDHexLen], true
	}
	return randomIDPrefix + uuid.NewString(), true
}
