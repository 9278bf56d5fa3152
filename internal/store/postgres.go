package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dense-analysis/coinfolio/internal/model"
	_ "github.com/jackc/pgx/v4/stdlib"
)

const postgresSchema = `create table if not exists portfolio_blob (
	key text primary key,
	value text not null,
	updated_at timestamptz not null default now()
)`

// PostgresBackend keeps the portfolio in one row of portfolio_blob.
type PostgresBackend struct {
	db  *sql.DB
	key string
}

// OpenPostgresBackend connects through the pgx driver and creates the table
// when it is missing.
func OpenPostgresBackend(ctx context.Context, url string, key string) (*PostgresBackend, error) {
	db, err := sql.Open("pgx", url)

	if err != nil {
		return nil, err
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()

		return nil, fmt.Errorf("postgres ping: %w", err)
	}

	backend := NewPostgresBackend(db, key)

	if err := backend.EnsureSchema(ctx); err != nil {
		db.Close()

		return nil, err
	}

	return backend, nil
}

func NewPostgresBackend(db *sql.DB, key string) *PostgresBackend {
	return &PostgresBackend{db: db, key: key}
}

func (backend *PostgresBackend) EnsureSchema(ctx context.Context) error {
	if _, err := backend.db.ExecContext(ctx, postgresSchema); err != nil {
		return fmt.Errorf("create portfolio_blob: %w", err)
	}

	return nil
}

func (backend *PostgresBackend) Load(ctx context.Context) ([]model.Holding, error) {
	var value string

	err := backend.db.QueryRowContext(
		ctx,
		"select value from portfolio_blob where key = $1",
		backend.key,
	).Scan(&value)

	if errors.Is(err, sql.ErrNoRows) {
		return []model.Holding{}, nil
	}

	if err != nil {
		return nil, err
	}

	return decode([]byte(value))
}

func (backend *PostgresBackend) Save(ctx context.Context, items []model.Holding) error {
	data, err := encode(items)

	if err != nil {
		return err
	}

	_, err = backend.db.ExecContext(
		ctx,
		`insert into portfolio_blob (key, value, updated_at)
		values ($1, $2, now())
		on conflict (key) do update set value = excluded.value, updated_at = excluded.updated_at`,
		backend.key,
		string(data),
	)

	return err
}

func (backend *PostgresBackend) Close() error {
	return backend.db.Close()
}
