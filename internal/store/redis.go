package store

import (
	"context"
	"errors"

	"github.com/dense-analysis/coinfolio/internal/model"
	"github.com/go-redis/redis/v8"
)

// RedisBackend keeps the portfolio as a JSON string under one redis key.
type RedisBackend struct {
	client *redis.Client
	key    string
}

func NewRedisBackend(client *redis.Client, key string) *RedisBackend {
	return &RedisBackend{client: client, key: key}
}

func (backend *RedisBackend) Load(ctx context.Context) ([]model.Holding, error) {
	data, err := backend.client.Get(ctx, backend.key).Bytes()

	if errors.Is(err, redis.Nil) {
		return []model.Holding{}, nil
	}

	if err != nil {
		return nil, err
	}

	return decode(data)
}

func (backend *RedisBackend) Save(ctx context.Context, items []model.Holding) error {
	data, err := encode(items)

	if err != nil {
		return err
	}

	return backend.client.Set(ctx, backend.key, data, 0).Err()
}

func (backend *RedisBackend) Close() error {
	return backend.client.Close()
}
