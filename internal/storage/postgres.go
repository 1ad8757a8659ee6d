package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wholesale-pos/wholesale-pos/internal/platform/db"
)

const schemaSQL = `CREATE TABLE IF NOT EXISTS pos_kv (
	namespace  TEXT NOT NULL,
	key        TEXT NOT NULL,
	value      JSONB NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (namespace, key)
)`

const upsertSQL = `INSERT INTO pos_kv (namespace, key, value, updated_at)
VALUES ($1, $2, $3, now())
ON CONFLICT (namespace, key) DO UPDATE SET value = EXCLUDED.value, updated_at = now()`

// PostgresKV stores documents as JSONB rows in pos_kv.
type PostgresKV struct {
	pool      *pgxpool.Pool
	namespace string
}

// NewPostgresKV builds a PostgresKV.
func NewPostgresKV(pool *pgxpool.Pool, namespace string) *PostgresKV {
	return &PostgresKV{pool: pool, namespace: namespace}
}

// EnsureSchema creates the backing table when missing.
func (p *PostgresKV) EnsureSchema(ctx context.Context) error {
	if _, err := p.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("storage/postgres: ensure schema: %w", err)
	}
	return nil
}

// Get loads a document.
func (p *PostgresKV) Get(ctx context.Context, key string) ([]byte, error) {
	var raw []byte
	err := p.pool.QueryRow(ctx, `SELECT value FROM pos_kv WHERE namespace = $1 AND key = $2`, p.namespace, key).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("storage/postgres: get %s: %w", key, err)
	}
	return raw, nil
}

// SetMany upserts every entry in one transaction.
func (p *PostgresKV) SetMany(ctx context.Context, entries map[string][]byte) error {
	return db.WithTx(ctx, p.pool, func(tx pgx.Tx) error {
		for k, v := range entries {
			if _, err := tx.Exec(ctx, upsertSQL, p.namespace, k, string(v)); err != nil {
				return fmt.Errorf("storage/postgres: upsert %s: %w", k, err)
			}
		}
		return nil
	})
}
