package state

import (
	"context"
	"os"
	"testing"

	goredis "github.com/redis/go-redis/v9"
)

// TestRedisStore runs against a real server when LANEQUIZ_TEST_REDIS_ADDR is set.
func TestRedisStore(t *testing.T) {
	addr := os.Getenv("LANEQUIZ_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("LANEQUIZ_TEST_REDIS_ADDR not set")
	}
	ctx := context.Background()
	key := "lanequiz:test:" + t.Name()
	legacyKey := key + ":legacy"

	rdb := goredis.NewClient(&goredis.Options{Addr: addr})
	t.Cleanup(func() {
		rdb.Del(ctx, key, legacyKey)
		rdb.Close()
	})

	s, err := NewRedisStore(ctx, RedisOptions{Addr: addr, Key: key, LegacyKey: legacyKey})
	if err != nil {
		t.Fatalf("NewRedisStore: %v", err)
	}
	defer s.Close()

	data, err := s.Load(ctx)
	if err != nil || data != nil {
		t.Fatalf("expected empty load, got %q, %v", data, err)
	}

	if err := rdb.Set(ctx, legacyKey, `{"round":2}`, 0).Err(); err != nil {
		t.Fatalf("seed legacy: %v", err)
	}
	legacy, err := s.LoadLegacy(ctx)
	if err != nil || string(legacy) != `{"round":2}` {
		t.Fatalf("unexpected legacy load %q, %v", legacy, err)
	}

	if err := s.Save(ctx, []byte(`{"round":5}`)); err != nil {
		t.Fatalf("Save: %v", err)
	}
	data, err = s.Load(ctx)
	if err != nil || string(data) != `{"round":5}` {
		t.Fatalf("unexpected load %q, %v", data, err)
	}
}

func TestNewRedisStoreRequiresOptions(t *testing.T) {
	ctx := context.Background()
	if _, err := NewRedisStore(ctx, RedisOptions{Key: "k"}); err == nil {
		t.Error("expected error without addr")
	}
	if _, err := NewRedisStore(ctx, RedisOptions{Addr: "localhost:6379"}); err == nil {
		t.Error("expected error without key")
	}
}
