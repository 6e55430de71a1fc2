package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "teamsgate:membership:"

type redisStore struct {
	client *redis.Client
	now    func() time.Time
}

func NewRedisClient(ctx context.Context, url string, poolSize int) (*redis.Client, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}

	if poolSize > 0 {
		opt.PoolSize = poolSize
	}

	client := redis.NewClient(opt)

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	return client, nil
}

// NewRedisStore shares entries across replicas. Expiry is enforced by Redis
// from the entry's ExpiresAt.
func NewRedisStore(client *redis.Client) Store {
	return &redisStore{client: client, now: time.Now}
}

func (r *redisStore) Get(ctx context.Context, key Key) (*Entry, error) {
	val, err := r.client.Get(ctx, redisKeyPrefix+key.String()).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get from redis: %w", err)
	}

	var entry Entry
	if err := json.Unmarshal(val, &entry); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cached membership: %w", err)
	}

	return &entry, nil
}

func (r *redisStore) Set(ctx context.Context, key Key, entry *Entry) error {
	ttl := entry.ExpiresAt.Sub(r.now())
	if ttl <= 0 {
		return nil
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal cached membership: %w", err)
	}

	if err := r.client.Set(ctx, redisKeyPrefix+key.String(), data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to set redis cache: %w", err)
	}

	return nil
}
