package state

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// #region redis-store
// RedisStore keeps the serialized run under a single key. SET replaces the
// value atomically, so readers never observe a partial snapshot.
type RedisStore struct {
	rdb       *goredis.Client
	key       string
	legacyKey string
}

// RedisOptions configures a RedisStore.
type RedisOptions struct {
	Addr      string
	Key       string // current snapshot key
	LegacyKey string // read-only pre-versioned key; empty disables legacy reads
}

// NewRedisStore connects to Redis and verifies the connection.
func NewRedisStore(ctx context.Context, opts RedisOptions) (*RedisStore, error) {
	if opts.Addr == "" {
		return nil, errors.New("redis addr required")
	}
	if opts.Key == "" {
		return nil, errors.New("redis key required")
	}
	rdb := goredis.NewClient(&goredis.Options{
		Addr:        opts.Addr,
		DialTimeout: 5 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return NewRedisStoreWithClient(rdb, opts.Key, opts.LegacyKey), nil
}

// NewRedisStoreWithClient wraps an existing client.
func NewRedisStoreWithClient(rdb *goredis.Client, key, legacyKey string) *RedisStore {
	return &RedisStore{rdb: rdb, key: key, legacyKey: legacyKey}
}

// Load reads the current snapshot.
func (r *RedisStore) Load(ctx context.Context) ([]byte, error) {
	return r.get(ctx, r.key)
}

// LoadLegacy reads the pre-versioned snapshot.
func (r *RedisStore) LoadLegacy(ctx context.Context) ([]byte, error) {
	if r.legacyKey == "" {
		return nil, nil
	}
	return r.get(ctx, r.legacyKey)
}

// Save replaces the current snapshot.
func (r *RedisStore) Save(ctx context.Context, data []byte) error {
	if err := r.rdb.Set(ctx, r.key, data, 0).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", r.key, err)
	}
	return nil
}

// Close closes the client.
func (r *RedisStore) Close() error {
	return r.rdb.Close()
}

func (r *RedisStore) get(ctx context.Context, key string) ([]byte, error) {
	b, err := r.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis get %s: %w", key, err)
	}
	return b, nil
}

// #endregion redis-store
