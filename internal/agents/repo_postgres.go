package agents

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
)

// PostgresStore reads agent definitions from the agents table.
//
// Assumed schema:
//
//	agents (
//	  id TEXT PRIMARY KEY,
//	  name TEXT NOT NULL,
//	  config JSONB NOT NULL DEFAULT '{}',
//	  knowledge_base_id TEXT NOT NULL DEFAULT '',
//	  created_at TIMESTAMPTZ NOT NULL,
//	  updated_at TIMESTAMPTZ NOT NULL
//	)
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Get(ctx context.Context, id string) (Agent, error) {
	const q = `
SELECT id, name, config, knowledge_base_id, created_at, updated_at
FROM agents
WHERE id = $1
`
	var (
		a       Agent
		rawConf []byte
	)
	err := s.db.QueryRowContext(ctx, q, id).Scan(
		&a.ID, &a.Name, &rawConf, &a.KnowledgeBaseID, &a.CreatedAt, &a.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return Agent{}, ErrNotFound
	}
	if err != nil {
		return Agent{}, err
	}
	if len(rawConf) > 0 {
		if err := json.Unmarshal(rawConf, &a.Config); err != nil {
			return Agent{}, fmt.Errorf("agents: decode config for %s: %w", id, err)
		}
	}
	return a, nil
}
