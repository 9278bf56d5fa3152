package store

import (
	"context"
	"fmt"

	"github.com/dense-analysis/coinfolio/internal/database"
	"github.com/dense-analysis/coinfolio/internal/model"
)

const clickHouseSchema = `create table if not exists portfolio_blob (
	key String,
	value String,
	updated_at DateTime64(9)
) engine = ReplacingMergeTree(updated_at)
order by key`

// ClickHouseBackend appends a row per save and reads back the newest one.
type ClickHouseBackend struct {
	conn   database.Queryable
	key    string
	closer func() error
}

func NewClickHouseBackend(conn database.Queryable, key string) *ClickHouseBackend {
	return &ClickHouseBackend{conn: conn, key: key}
}

func (backend *ClickHouseBackend) EnsureSchema(ctx context.Context) error {
	if err := backend.conn.Exec(ctx, clickHouseSchema); err != nil {
		return fmt.Errorf("create portfolio_blob: %w", err)
	}

	return nil
}

func (backend *ClickHouseBackend) Load(ctx context.Context) ([]model.Holding, error) {
	var values []string

	err := model.LoadList(
		ctx,
		backend.conn,
		&values,
		1,
		func(row database.Row, value *string) error {
			return row.Scan(value)
		},
		`select value
		from portfolio_blob
		where key = ?
		order by updated_at desc
		limit 1`,
		backend.key,
	)

	if err != nil {
		return nil, err
	}

	if len(values) == 0 {
		return []model.Holding{}, nil
	}

	return decode([]byte(values[0]))
}

func (backend *ClickHouseBackend) Save(ctx context.Context, items []model.Holding) error {
	data, err := encode(items)

	if err != nil {
		return err
	}

	return backend.conn.Exec(
		ctx,
		`insert into portfolio_blob (key, value, updated_at)
		values (?, ?, now64(9))`,
		backend.key,
		string(data),
	)
}

func (backend *ClickHouseBackend) Close() error {
	if backend.closer == nil {
		return nil
	}

	return backend.closer()
}
