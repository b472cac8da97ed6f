package redis

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/skillsync/session-relay/config"
)

// Store owns the Redis connection used for session metadata, presence sets
// and the display-name cache. It is constructed once at startup and handed
// to whoever needs it.
type Store struct {
	client *redis.Client
	ctx    context.Context
}

// Connect initializes the Redis client and verifies the connection
func Connect(cfg config.RedisConfig) (*Store, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%s", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &Store{client: client, ctx: ctx}, nil
}

// Close closes the Redis connection
func (s *Store) Close() error {
	if s == nil || s.client == nil {
		return nil
	}
	return s.client.Close()
}

// Client returns the underlying Redis client
func (s *Store) Client() *redis.Client {
	return s.client
}

// Context returns the context for Redis operations
func (s *Store) Context() context.Context {
	return s.ctx
}
