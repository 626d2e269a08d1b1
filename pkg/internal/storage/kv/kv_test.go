package kv_test

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yeisme/papervault/pkg/configs"
	"github.com/yeisme/papervault/pkg/internal/storage/kv"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func TestNewDefaultsToMemory(t *testing.T) {
	client, err := kv.New(context.Background(), &configs.KVConfig{Type: "memory"})
	require.NoError(t, err)
	assert.Equal(t, kv.KVTypeMemory, client.Type())

	client, err = kv.New(context.Background(), &configs.KVConfig{})
	require.NoError(t, err)
	assert.Equal(t, kv.KVTypeMemory, client.Type())

	_, err = kv.New(context.Background(), &configs.KVConfig{Type: "etcd"})
	require.Error(t, err)

	_, err = kv.Open(context.Background(), kv.KVTypeRedis, nil)
	require.Error(t, err)

	assert.Equal(t, []kv.KVType{kv.KVTypeMemory, kv.KVTypeRedis}, kv.GetRegisteredKVTypes())
}

func TestMemoryKVGetSetDelete(t *testing.T) {
	ctx := context.Background()
	store := kv.NewMemoryKVWithClock(time.Now)

	_, err := store.Get(ctx, "missing")
	require.ErrorIs(t, err, kv.ErrKeyNotFound)

	val := []byte("hello")
	require.NoError(t, store.Set(ctx, "a", val, 0))
	val[0] = 'j'

	got, err := store.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "hello", string(got))

	ok, err := store.Exists(ctx, "a")
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, store.Delete(ctx, "a"))
	ok, err = store.Exists(ctx, "a")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryKVExpiry(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{now: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	store := kv.NewMemoryKVWithClock(clock.Now)

	require.NoError(t, store.Set(ctx, "search:1", []byte("page"), 30*time.Second))

	clock.Advance(29 * time.Second)
	got, err := store.Get(ctx, "search:1")
	require.NoError(t, err)
	assert.Equal(t, "page", string(got))

	clock.Advance(time.Second)
	_, err = store.Get(ctx, "search:1")
	require.ErrorIs(t, err, kv.ErrKeyNotFound)

	keys, err := store.Keys(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestMemoryKVIncr(t *testing.T) {
	ctx := context.Background()
	store := kv.NewMemoryKVWithClock(time.Now)

	var wg sync.WaitGroup
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = store.Incr(ctx, "gen")
		}()
	}
	wg.Wait()

	n, err := store.Incr(ctx, "gen")
	require.NoError(t, err)
	assert.EqualValues(t, 51, n)

	require.NoError(t, store.Set(ctx, "text", []byte("x"), 0))
	_, err = store.Incr(ctx, "text")
	require.Error(t, err)
}

func TestMemoryKVKeysPattern(t *testing.T) {
	ctx := context.Background()
	store := kv.NewMemoryKVWithClock(time.Now)

	for _, k := range []string{"pv:search:b", "pv:search:a", "pv:gen"} {
		require.NoError(t, store.Set(ctx, k, []byte("1"), 0))
	}

	keys, err := store.Keys(ctx, "pv:search:*")
	require.NoError(t, err)
	assert.Equal(t, []string{"pv:search:a", "pv:search:b"}, keys)

	keys, err = store.Keys(ctx, "*")
	require.NoError(t, err)
	assert.Len(t, keys, 3)
}

func TestMemoryKVIncrKeepsExpiry(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{now: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	store := kv.NewMemoryKVWithClock(clock.Now)

	require.NoError(t, store.Set(ctx, "gen", []byte("41"), time.Minute))

	n, err := store.Incr(ctx, "gen")
	require.NoError(t, err)
	assert.EqualValues(t, 42, n)

	clock.Advance(time.Minute)

	ok, err := store.Exists(ctx, "gen")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = store.Keys(ctx, "pv:[")
	require.Error(t, err)
}

func BenchmarkMemoryKV(b *testing.B) {
	store, err := kv.Open(context.Background(), kv.KVTypeMemory, nil)
	if err != nil {
		b.Fatalf("create memory kv: %v", err)
	}

	benchKV(b, "memory", store)
	_ = store.Close()
}

// 设置 ENABLE_REDIS_BENCH=1 与 REDIS_ADDR（默认 127.0.0.1:6379）后启用.
func BenchmarkRedisKV(b *testing.B) {
	if os.Getenv("ENABLE_REDIS_BENCH") == "" {
		b.Skip("set ENABLE_REDIS_BENCH=1 to enable")
	}

	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		addr = "127.0.0.1:6379"
	}

	store, err := kv.Open(context.Background(), kv.KVTypeRedis, &configs.KVConfig{Redis: configs.RedisKVConfig{Addr: addr}})
	if err != nil {
		b.Skipf("redis not available: %v", err)
		return
	}

	benchKV(b, "redis", store)
	_ = store.Close()
}

// benchKV 执行基本的 Set/Get/Delete 基准测试.
func benchKV(b *testing.B, name string, store kv.KVStore) {
	ctx := context.Background()

	for _, ttl := range []time.Duration{0, 30 * time.Second} {
		payload := make([]byte, 4096)

		b.Run(fmt.Sprintf("%s/ttl=%s", name, ttl), func(b *testing.B) {
			b.ReportAllocs()

			for i := 0; b.Loop(); i++ {
				key := fmt.Sprintf("bench-%s-%d", name, i)
				if err := store.Set(ctx, key, payload, ttl); err != nil {
					b.Fatalf("set failed: %v", err)
				}

				if _, err := store.Get(ctx, key); err != nil {
					b.Fatalf("get failed: %v", err)
				}

				if err := store.Delete(ctx, key); err != nil {
					b.Fatalf("delete failed: %v", err)
				}
			}
		})
	}
}
