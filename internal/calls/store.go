package calls

import (
	"context"
	"errors"
)

var ErrNotFound = errors.New("calls: not found")

// Store is the persistence contract for call records.
//
// The contract is shaped so the state machine's room upsert stays safe under
// concurrent, out-of-order event delivery: creation is first-writer-wins on
// the immutable facts, and everything after creation goes through
// UpdateMutable, which must never touch them.
type Store interface {
	GetByRoom(ctx context.Context, roomName string) (Call, error)

	// CreateIfAbsent inserts c keyed by RoomName. If a record for the room
	// already exists, the existing record is returned unchanged with
	// created=false; the immutable facts of c are discarded.
	CreateIfAbsent(ctx context.Context, c Call) (Call, bool, error)

	// UpdateMutable persists Status, AgentDispatched, Raw and UpdatedAt for
	// the room. Implementations must leave all other columns alone.
	UpdateMutable(ctx context.Context, c Call) error

	// ListRecent returns up to limit calls, most recently updated first.
	ListRecent(ctx context.Context, limit int) ([]Call, error)
}

// DedupSet is the processed-event-id set backing the idempotency gate.
//
// FirstSeen must atomically record id and report whether it was new: two
// concurrent calls with the same id must yield exactly one true.
// Entries must outlive the platform's webhook redelivery window.
type DedupSet interface {
	FirstSeen(ctx context.Context, eventID string) (bool, error)
}
