package flowstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

// NewRedisClient dials addr and pings it once.
func NewRedisClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", addr, err)
	}
	return client, nil
}

func (s *RedisStore) Load(ctx context.Context, flowID string) ([]byte, error) {
	data, err := s.client.Get(ctx, snapshotKey(flowID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load flow %s: %w", flowID, err)
	}
	return data, nil
}

func (s *RedisStore) Save(ctx context.Context, flowID string, data []byte, ttl time.Duration) error {
	if err := s.client.Set(ctx, snapshotKey(flowID), data, ttl).Err(); err != nil {
		return fmt.Errorf("save flow %s: %w", flowID, err)
	}
	return nil
}

func (s *RedisStore) MarkOnce(ctx context.Context, flowID, marker string, ttl time.Duration) (bool, error) {
	ok, err := s.client.SetNX(ctx, markerKey(flowID, marker), 1, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("mark flow %s: %w", flowID, err)
	}
	return ok, nil
}
