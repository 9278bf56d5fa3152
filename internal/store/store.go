// Package store persists the portfolio as one serialized list under one key.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dense-analysis/coinfolio/internal/config"
	"github.com/dense-analysis/coinfolio/internal/database"
	"github.com/dense-analysis/coinfolio/internal/model"
	"github.com/go-redis/redis/v8"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const DefaultKey = "crypto_portfolio"

var ErrUnknownBackend = errors.New("unknown store backend")

// Backend loads and saves the flat list of holdings.
type Backend interface {
	Load(ctx context.Context) ([]model.Holding, error)
	Save(ctx context.Context, items []model.Holding) error
	Close() error
}

// Open connects to the backend named in the configuration.
func Open(ctx context.Context, configuration config.ApplicationConfiguration, logger *zap.Logger) (Backend, error) {
	key := configuration.StoreKey

	if key == "" {
		key = DefaultKey
	}

	logger.Info("opening store",
		zap.String("backend", configuration.StoreBackend),
		zap.String("key", key),
	)

	switch configuration.StoreBackend {
	case "", "file":
		return NewFileBackend(configuration.StoreDir, key), nil
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     configuration.RedisAddress,
			Password: configuration.RedisPassword,
			DB:       configuration.RedisDatabase,
		})

		if err := client.Ping(ctx).Err(); err != nil {
			client.Close()

			return nil, fmt.Errorf("redis ping %s: %w", configuration.RedisAddress, err)
		}

		return NewRedisBackend(client, key), nil
	case "postgres":
		return OpenPostgresBackend(ctx, configuration.PostgresURL, key)
	case "clickhouse":
		conn, err := database.Connect(ctx, database.Options{
			Host:     configuration.ClickHouseHost,
			Port:     configuration.ClickHousePort,
			Database: configuration.ClickHouseDatabase,
			Username: configuration.ClickHouseUsername,
			Password: configuration.ClickHousePassword,
		})

		if err != nil {
			return nil, err
		}

		backend := NewClickHouseBackend(conn, key)
		backend.closer = conn.Close

		if err := backend.EnsureSchema(ctx); err != nil {
			conn.Close()

			return nil, err
		}

		return backend, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, configuration.StoreBackend)
	}
}

// storedHolding is the saved form of a holding. Decimals are written as
// JSON numbers, as in lists saved by the browser version of the tracker.
type storedHolding struct {
	ID            string       `json:"id"`
	Symbol        string       `json:"symbol"`
	Name          string       `json:"name"`
	Image         string       `json:"image"`
	Amount        json.Number  `json:"amount"`
	PurchasePrice json.Number  `json:"purchasePrice"`
	PurchaseDate  time.Time    `json:"purchaseDate"`
	CurrentPrice  *json.Number `json:"currentPrice,omitempty"`
}

func number(value decimal.Decimal) json.Number {
	return json.Number(value.String())
}

func encode(items []model.Holding) ([]byte, error) {
	stored := make([]storedHolding, 0, len(items))

	for _, item := range items {
		record := storedHolding{
			ID:            item.ID,
			Symbol:        item.Symbol,
			Name:          item.Name,
			Image:         item.Image,
			Amount:        number(item.Amount),
			PurchasePrice: number(item.PurchasePrice),
			PurchaseDate:  item.PurchaseDate,
		}

		if item.CurrentPrice != nil {
			price := number(*item.CurrentPrice)
			record.CurrentPrice = &price
		}

		stored = append(stored, record)
	}

	return json.Marshal(stored)
}

// decode reads a stored list. Empty data is an empty portfolio.
func decode(data []byte) ([]model.Holding, error) {
	items := []model.Holding{}

	if len(data) == 0 {
		return items, nil
	}

	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("decode stored portfolio: %w", err)
	}

	if items == nil {
		items = []model.Holding{}
	}

	return items, nil
}
