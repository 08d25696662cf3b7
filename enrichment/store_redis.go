package enrichment

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisClient is the subset of go-redis client methods used by RedisStore.
type RedisClient interface {
	Ping(ctx context.Context) *redis.StatusCmd
	RPush(ctx context.Context, key string, values ...any) *redis.IntCmd
	LRange(ctx context.Context, key string, start, stop int64) *redis.StringSliceCmd
	Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd
	Close() error
}

// RedisStoreConfig configures a RedisStore.
type RedisStoreConfig struct {
	Address  string
	Password string
	DB       int
	// Prefix is prepended to every alert key.
	Prefix string
	// TTL expires an alert's record after its last write. Zero keeps it forever.
	TTL time.Duration
}

// RedisStore keeps each alert's enrichments as a Redis list of JSON documents.
type RedisStore struct {
	cfg RedisStoreConfig

	mu     sync.RWMutex
	client RedisClient
}

// NewRedisStore connects to Redis and verifies the connection with PING.
func NewRedisStore(ctx context.Context, cfg RedisStoreConfig) (*RedisStore, error) {
	opts := &redis.Options{
		Addr: cfg.Address,
		DB:   cfg.DB,
	}
	if cfg.Password != "" {
		opts.Password = cfg.Password
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("enrichment redis store %s: ping failed: %w", cfg.Address, err)
	}
	return &RedisStore{cfg: cfg, client: client}, nil
}

// NewRedisStoreWithClient creates a RedisStore backed by a pre-built client.
func NewRedisStoreWithClient(cfg RedisStoreConfig, client RedisClient) *RedisStore {
	return &RedisStore{cfg: cfg, client: client}
}

func (s *RedisStore) key(alertKey string) string {
	prefix := s.cfg.Prefix
	if prefix == "" {
		prefix = "enrichments:"
	}
	return prefix + alertKey
}

// Add implements Store.
func (s *RedisStore) Add(ctx context.Context, e Enrichment) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.client == nil {
		return ErrStoreClosed
	}
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal enrichment %s: %w", e.ID, err)
	}
	k := s.key(e.AlertKey)
	if err := s.client.RPush(ctx, k, data).Err(); err != nil {
		return fmt.Errorf("store enrichment %s: %w", e.ID, err)
	}
	if s.cfg.TTL > 0 {
		if err := s.client.Expire(ctx, k, s.cfg.TTL).Err(); err != nil {
			return fmt.Errorf("expire %s: %w", k, err)
		}
	}
	return nil
}

// List implements Store.
func (s *RedisStore) List(ctx context.Context, alertKey string) ([]Enrichment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.client == nil {
		return nil, ErrStoreClosed
	}
	raw, err := s.client.LRange(ctx, s.key(alertKey), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("list enrichments for %s: %w", alertKey, err)
	}
	out := make([]Enrichment, 0, len(raw))
	for i, r := range raw {
		var e Enrichment
		if err := json.Unmarshal([]byte(r), &e); err != nil {
			return nil, fmt.Errorf("decode enrichment %d for %s: %w", i, alertKey, err)
		}
		out = append(out, e)
	}
	return out, nil
}

// Close implements Store. It waits for in-flight calls and closes the client.
func (s *RedisStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.client == nil {
		return nil
	}
	err := s.client.Close()
	s.client = nil
	return err
}
