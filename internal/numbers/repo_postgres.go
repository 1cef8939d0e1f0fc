package numbers

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

// PostgresBindingRepo persists bindings in the number_bindings table.
//
// Assumed schema:
//
//	number_bindings (
//	  id TEXT PRIMARY KEY,
//	  integration_id TEXT NOT NULL,
//	  provider TEXT NOT NULL,
//	  provider_number_id TEXT NOT NULL DEFAULT '',
//	  e164 TEXT NOT NULL UNIQUE,
//	  agent_id TEXT NOT NULL DEFAULT '',
//	  enabled BOOLEAN NOT NULL,
//	  overrides JSONB NOT NULL DEFAULT '{}',
//	  created_at TIMESTAMPTZ NOT NULL,
//	  updated_at TIMESTAMPTZ NOT NULL
//	)
type PostgresBindingRepo struct {
	db *sql.DB
}

func NewPostgresBindingRepo(db *sql.DB) *PostgresBindingRepo {
	return &PostgresBindingRepo{db: db}
}

const pgUniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}

func (r *PostgresBindingRepo) Create(ctx context.Context, b Binding) error {
	overrides, err := json.Marshal(b.Overrides)
	if err != nil {
		return err
	}
	const q = `
INSERT INTO number_bindings (id, integration_id, provider, provider_number_id, e164, agent_id, enabled, overrides, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
`
	_, err = r.db.ExecContext(ctx, q,
		b.ID, b.IntegrationID, b.Provider, b.ProviderNumberID, b.E164,
		b.AgentID, b.Enabled, overrides, b.CreatedAt, b.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return ErrConflict
	}
	return err
}

func (r *PostgresBindingRepo) Update(ctx context.Context, b Binding) error {
	overrides, err := json.Marshal(b.Overrides)
	if err != nil {
		return err
	}
	const q = `
UPDATE number_bindings
SET integration_id = $2, provider = $3, provider_number_id = $4, e164 = $5,
    agent_id = $6, enabled = $7, overrides = $8, updated_at = $9
WHERE id = $1
`
	res, err := r.db.ExecContext(ctx, q,
		b.ID, b.IntegrationID, b.Provider, b.ProviderNumberID, b.E164,
		b.AgentID, b.Enabled, overrides, b.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return ErrConflict
	}
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

func (r *PostgresBindingRepo) Delete(ctx context.Context, id string) error {
	const q = `DELETE FROM number_bindings WHERE id = $1`
	res, err := r.db.ExecContext(ctx, q, id)
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

func (r *PostgresBindingRepo) GetByID(ctx context.Context, id string) (Binding, error) {
	const q = `
SELECT id, integration_id, provider, provider_number_id, e164, agent_id, enabled, overrides, created_at, updated_at
FROM number_bindings
WHERE id = $1
`
	return r.scanOne(r.db.QueryRowContext(ctx, q, id))
}

func (r *PostgresBindingRepo) GetByE164(ctx context.Context, e164 string) (Binding, error) {
	const q = `
SELECT id, integration_id, provider, provider_number_id, e164, agent_id, enabled, overrides, created_at, updated_at
FROM number_bindings
WHERE e164 = $1
`
	return r.scanOne(r.db.QueryRowContext(ctx, q, e164))
}

func (r *PostgresBindingRepo) List(ctx context.Context) ([]Binding, error) {
	const q = `
SELECT id, integration_id, provider, provider_number_id, e164, agent_id, enabled, overrides, created_at, updated_at
FROM number_bindings
ORDER BY created_at
`
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Binding
	for rows.Next() {
		b, err := r.scanOne(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *PostgresBindingRepo) scanOne(row rowScanner) (Binding, error) {
	var b Binding
	var overrides []byte
	err := row.Scan(
		&b.ID,
		&b.IntegrationID,
		&b.Provider,
		&b.ProviderNumberID,
		&b.E164,
		&b.AgentID,
		&b.Enabled,
		&overrides,
		&b.CreatedAt,
		&b.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return Binding{}, ErrNotFound
	}
	if err != nil {
		return Binding{}, err
	}
	if len(overrides) > 0 {
		if err := json.Unmarshal(overrides, &b.Overrides); err != nil {
			return Binding{}, err
		}
	}
	return b, nil
}
