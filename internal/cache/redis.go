package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/tectoniq/seismograph/internal/domain/classifier"
)

// Redis is a shared cache backed by a Redis instance, for deployments where
// several processes serve the same universe.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedis connects a Redis-backed cache.
func NewRedis(addr string, db int, ttl time.Duration) *Redis {
	return &Redis{
		client: redis.NewClient(&redis.Options{Addr: addr, DB: db}),
		ttl:    ttl,
	}
}

// Get fetches and decodes a cached state. A missing key is a miss, not an
// error.
func (r *Redis) Get(ctx context.Context, key string) (classifier.MarketState, bool, error) {
	raw, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return classifier.MarketState{}, false, nil
	}
	if err != nil {
		return classifier.MarketState{}, false, fmt.Errorf("redis get %s: %w", key, err)
	}
	var state classifier.MarketState
	if err := json.Unmarshal(raw, &state); err != nil {
		return classifier.MarketState{}, false, fmt.Errorf("redis decode %s: %w", key, err)
	}
	return state, true, nil
}

// Set encodes and stores a state with the configured TTL.
func (r *Redis) Set(ctx context.Context, key string, state classifier.MarketState) error {
	raw, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("redis encode %s: %w", key, err)
	}
	if err := r.client.Set(ctx, key, raw, r.ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

// Close releases the underlying client.
func (r *Redis) Close() error {
	return r.client.Close()
}
