package storage

import (
	"context"
	"database/sql"
	"errors"

	_ "github.com/lib/pq"
)

const createSlotsTable = `CREATE TABLE IF NOT EXISTS kv_slots (
	key        TEXT PRIMARY KEY,
	value      TEXT NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// PostgresSlot keeps values in a single kv_slots table.
type PostgresSlot struct {
	db *sql.DB
}

func NewPostgresSlot(ctx context.Context, dsn string) (*PostgresSlot, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	if _, err := db.ExecContext(ctx, createSlotsTable); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &PostgresSlot{db: db}, nil
}

func (p *PostgresSlot) Get(ctx context.Context, key string) ([]byte, error) {
	var v string
	err := p.db.QueryRowContext(ctx, `SELECT value FROM kv_slots WHERE key = $1`, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrEmptySlot
	}
	if err != nil {
		return nil, err
	}
	return []byte(v), nil
}

func (p *PostgresSlot) Set(ctx context.Context, key string, value []byte) error {
	_, err := p.db.ExecContext(ctx,
		`INSERT INTO kv_slots(key, value, updated_at) VALUES($1, $2, now())
		 ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = now()`,
		key, string(value))
	return err
}

func (p *PostgresSlot) Close() error { return p.db.Close() }
