package calls

import (
	"context"
	"database/sql"
	"errors"
)

// PostgresStore persists call records in the telephony_calls table.
//
// Assumed schema:
//
//	telephony_calls (
//	  call_id TEXT NOT NULL,
//	  room_name TEXT PRIMARY KEY,
//	  status TEXT NOT NULL,
//	  sip_participant TEXT NOT NULL DEFAULT '',
//	  from_number TEXT NOT NULL DEFAULT '',
//	  to_number TEXT NOT NULL DEFAULT '',
//	  agent_dispatched BOOLEAN NOT NULL DEFAULT FALSE,
//	  raw JSONB,
//	  created_at TIMESTAMPTZ NOT NULL,
//	  updated_at TIMESTAMPTZ NOT NULL
//	)
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const callColumns = `call_id, room_name, status, sip_participant, from_number, to_number, agent_dispatched, raw, created_at, updated_at`

func (s *PostgresStore) GetByRoom(ctx context.Context, roomName string) (Call, error) {
	const q = `
SELECT ` + callColumns + `
FROM telephony_calls
WHERE room_name = $1
`
	return scanCall(s.db.QueryRowContext(ctx, q, roomName))
}

// CreateIfAbsent is first-writer-wins on the room key: ON CONFLICT DO NOTHING
// keeps the immutable facts set by whichever event arrived first, and the
// RETURNING-less round trip re-reads the surviving row.
func (s *PostgresStore) CreateIfAbsent(ctx context.Context, c Call) (Call, bool, error) {
	const q = `
INSERT INTO telephony_calls (` + callColumns + `)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
ON CONFLICT (room_name) DO NOTHING
`
	res, err := s.db.ExecContext(ctx, q,
		c.CallID, c.RoomName, c.Status, c.SIPParticipant, c.From, c.To,
		c.AgentDispatched, []byte(c.Raw), c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		return Call{}, false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return Call{}, false, err
	}
	if n == 1 {
		return c, true, nil
	}
	existing, err := s.GetByRoom(ctx, c.RoomName)
	if err != nil {
		return Call{}, false, err
	}
	return existing, false, nil
}

func (s *PostgresStore) UpdateMutable(ctx context.Context, c Call) error {
	const q = `
UPDATE telephony_calls
SET status = $2, agent_dispatched = $3, raw = $4, updated_at = $5
WHERE room_name = $1
`
	res, err := s.db.ExecContext(ctx, q, c.RoomName, c.Status, c.AgentDispatched, []byte(c.Raw), c.UpdatedAt)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) ListRecent(ctx context.Context, limit int) ([]Call, error) {
	const q = `
SELECT ` + callColumns + `
FROM telephony_calls
ORDER BY updated_at DESC
LIMIT $1
`
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, q, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Call
	for rows.Next() {
		c, err := scanCall(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCall(row rowScanner) (Call, error) {
	var c Call
	var raw []byte
	err := row.Scan(
		&c.CallID,
		&c.RoomName,
		&c.Status,
		&c.SIPParticipant,
		&c.From,
		&c.To,
		&c.AgentDispatched,
		&raw,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return Call{}, ErrNotFound
	}
	if err != nil {
		return Call{}, err
	}
	c.Raw = raw
	return c, nil
}
