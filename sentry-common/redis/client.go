package redis

import (
	"context"

	"github.com/anb2473/Archeology-Sentry/sentry-common/config"

	"github.com/go-redis/redis/v8"
)

// Client aliases the go-redis client so callers need a single import.
type Client = redis.Client

// NewRedisClient builds a client from cfg. It does not dial.
func NewRedisClient(cfg *config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
}

func Ping(ctx context.Context, client *redis.Client) error {
	return client.Ping(ctx).Err()
}

func Close(client *redis.Client) error {
	if client == nil {
		return nil
	}
	return client.Close()
}
