package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/jengzang/locator-backend-go/internal/reconciler"
)

const keyPrefix = "locator:sessions:"

// RedisStore persists reconciler snapshots as JSON under one key per watcher
type RedisStore struct {
	rdb *redis.Client
	key string
	ttl time.Duration
}

// NewRedisStore connects to addr and pings it. ttl of zero keeps snapshots forever.
func NewRedisStore(ctx context.Context, addr string, db int, name string, ttl time.Duration) (*RedisStore, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   db,
	})
	if _, err := rdb.Ping(ctx).Result(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return &RedisStore{rdb: rdb, key: Key(name), ttl: ttl}, nil
}

// Key returns the redis key holding the snapshot of a watcher
func Key(name string) string {
	if name == "" {
		name = "default"
	}
	return keyPrefix + name
}

func (s *RedisStore) Save(ctx context.Context, snap reconciler.Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}
	if err := s.rdb.Set(ctx, s.key, data, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis SET %s: %w", s.key, err)
	}
	return nil
}

func (s *RedisStore) Load(ctx context.Context) (reconciler.Snapshot, bool, error) {
	data, err := s.rdb.Get(ctx, s.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return reconciler.Snapshot{}, false, nil
	}
	if err != nil {
		return reconciler.Snapshot{}, false, fmt.Errorf("redis GET %s: %w", s.key, err)
	}

	var snap reconciler.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return reconciler.Snapshot{}, false, fmt.Errorf("failed to decode snapshot: %w", err)
	}
	return snap, true, nil
}

// Close releases the redis connection pool
func (s *RedisStore) Close() error {
	return s.rdb.Close()
}
