package routing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "provider_status:"

// RedisConfig holds Redis connection configuration.
type RedisConfig struct {
	Addr     string // host:port
	Password string
	DB       int
}

// RedisSnapshotStore shares capacity snapshots between router replicas.
type RedisSnapshotStore struct {
	client redis.UniversalClient
}

// NewRedisSnapshotStore connects to Redis and verifies the connection.
func NewRedisSnapshotStore(ctx context.Context, cfg RedisConfig) (*RedisSnapshotStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}
	return NewRedisSnapshotStoreWithClient(client), nil
}

// NewRedisSnapshotStoreWithClient wraps an existing client.
func NewRedisSnapshotStoreWithClient(client redis.UniversalClient) *RedisSnapshotStore {
	return &RedisSnapshotStore{client: client}
}

func keyProviderStatus(id ProviderID) string {
	return redisKeyPrefix + string(id)
}

// Load implements SnapshotStore.Load.
func (s *RedisSnapshotStore) Load(ctx context.Context, id ProviderID) (CapacitySnapshot, bool, error) {
	data, err := s.client.Get(ctx, keyProviderStatus(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return CapacitySnapshot{}, false, nil
	}
	if err != nil {
		return CapacitySnapshot{}, false, fmt.Errorf("redis get %s: %w", id, err)
	}

	var snap CapacitySnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return CapacitySnapshot{}, false, fmt.Errorf("decode snapshot %s: %w", id, err)
	}
	return snap, true, nil
}

// Save implements SnapshotStore.Save. The Redis TTL matches the cache TTL so
// abandoned keys expire on their own.
func (s *RedisSnapshotStore) Save(ctx context.Context, snap CapacitySnapshot, ttl time.Duration) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encode snapshot %s: %w", snap.ProviderID, err)
	}
	if err := s.client.Set(ctx, keyProviderStatus(snap.ProviderID), data, ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", snap.ProviderID, err)
	}
	return nil
}

// Close closes the Redis connection.
func (s *RedisSnapshotStore) Close() error {
	return s.client.Close()
}
