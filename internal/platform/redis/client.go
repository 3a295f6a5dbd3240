package redis

import (
	"context"

	"github.com/go-redis/redis/v8"
)

// Client is the go-redis client type.
type Client = redis.Client

// NewClient creates a Redis client. It does not dial until first use.
func NewClient(addr, password string, db int) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
}

// Ping tests the Redis connection.
func Ping(ctx context.Context, client *redis.Client) error {
	return client.Ping(ctx).Err()
}
