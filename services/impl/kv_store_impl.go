package impl

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/lexrag-backend/config"
	"github.com/lexrag-backend/models"
	"github.com/lexrag-backend/services"
)

type redisKVStore struct {
	client *redis.Client
}

// NewKVStore connects a Redis-backed KVStore with a bounded connection pool.
func NewKVStore(cfg *config.RedisConfig) (services.KVStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.MaxConnections,
		ReadTimeout:  time.Duration(cfg.SocketTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.SocketTimeout) * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &redisKVStore{client: client}, nil
}

// NewKVStoreWithClient wraps an existing Redis client. Used by tests with
// miniredis.
func NewKVStoreWithClient(client *redis.Client) services.KVStore {
	return &redisKVStore{client: client}
}

func (s *redisKVStore) SetEx(ctx context.Context, key string, ttl time.Duration, value []byte) error {
	if err := s.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("kv set %s: %w", key, err)
	}
	return nil
}

func (s *redisKVStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	data, err := s.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("kv get %s: %w", key, err)
	}
	return data, true, nil
}

func (s *redisKVStore) Del(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if err := s.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("kv del: %w", err)
	}
	return nil
}

// Keys resolves a glob pattern via SCAN so large keyspaces never block the
// server the way KEYS would.
func (s *redisKVStore) Keys(ctx context.Context, pattern string) ([]string, error) {
	var keys []string
	var cursor uint64
	for {
		batch, next, err := s.client.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			return nil, fmt.Errorf("kv scan %s: %w", pattern, err)
		}
		keys = append(keys, batch...)
		cursor = next
		if cursor == 0 {
			break
		}
	}
	return keys, nil
}

func (s *redisKVStore) DeleteMany(ctx context.Context, keys []string) (int, error) {
	if len(keys) == 0 {
		return 0, nil
	}
	n, err := s.client.Del(ctx, keys...).Result()
	if err != nil {
		return 0, fmt.Errorf("kv delete many: %w", err)
	}
	return int(n), nil
}

func (s *redisKVStore) PoolStats() models.KVPoolStats {
	stats := s.client.PoolStats()
	return models.KVPoolStats{
		Hits:       stats.Hits,
		Misses:     stats.Misses,
		Timeouts:   stats.Timeouts,
		TotalConns: stats.TotalConns,
		IdleConns:  stats.IdleConns,
	}
}

func (s *redisKVStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
