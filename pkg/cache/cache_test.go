package cache_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/yeisme/papervault/pkg/cache"
	"github.com/yeisme/papervault/pkg/internal/storage/kv"
)

// page 测试用的缓存值.
type page struct {
	IDs   []string `json:"ids"`
	Total int64    `json:"total"`
}

func newCache(t *testing.T) (*cache.Cache, *kv.MemoryKV) {
	t.Helper()

	store := kv.NewMemoryKVWithClock(time.Now)

	return cache.New(store, "pv:"), store
}

// TestSetGet 测试带前缀的读写.
func TestSetGet(t *testing.T) {
	c, store := newCache(t)
	ctx := context.Background()

	if _, err := cache.Get[page](ctx, c, "missing"); !errors.Is(err, kv.ErrKeyNotFound) {
		t.Fatalf("expected ErrKeyNotFound, got %v", err)
	}

	want := page{IDs: []string{"a", "b"}, Total: 2}
	if err := cache.Set(ctx, c, "p1", want, time.Minute); err != nil {
		t.Fatalf("set: %v", err)
	}

	if ok, _ := store.Exists(ctx, "pv:p1"); !ok {
		t.Fatal("value not stored under prefixed key")
	}

	got, err := cache.Get[page](ctx, c, "p1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}

	if got.Total != 2 || len(got.IDs) != 2 || got.IDs[1] != "b" {
		t.Errorf("got %+v, want %+v", got, want)
	}

	if err := c.Delete(ctx, "p1"); err != nil {
		t.Fatalf("delete: %v", err)
	}

	if ok, _ := c.Exists(ctx, "p1"); ok {
		t.Error("key should be gone after delete")
	}
}

// TestGetOrLoad 测试命中与未命中路径.
func TestGetOrLoad(t *testing.T) {
	c, _ := newCache(t)
	ctx := context.Background()

	calls := 0
	load := func(context.Context) (page, error) {
		calls++
		return page{Total: 7}, nil
	}

	v, hit, err := cache.GetOrLoad(ctx, c, "k", time.Minute, load)
	if err != nil || hit || v.Total != 7 {
		t.Fatalf("first call: v=%+v hit=%v err=%v", v, hit, err)
	}

	v, hit, err = cache.GetOrLoad(ctx, c, "k", time.Minute, load)
	if err != nil || !hit || v.Total != 7 {
		t.Fatalf("second call: v=%+v hit=%v err=%v", v, hit, err)
	}

	if calls != 1 {
		t.Errorf("expected loader to run once, ran %d times", calls)
	}
}

// TestGetOrLoadError 加载失败时不回填.
func TestGetOrLoadError(t *testing.T) {
	c, _ := newCache(t)
	ctx := context.Background()

	boom := errors.New("db down")

	_, _, err := cache.GetOrLoad(ctx, c, "k", time.Minute, func(context.Context) (page, error) {
		return page{}, boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected loader error, got %v", err)
	}

	if ok, _ := c.Exists(ctx, "k"); ok {
		t.Error("failed load must not be cached")
	}
}

// TestGetOrLoadCollapsesConcurrentMisses 并发未命中只加载一次.
func TestGetOrLoadCollapsesConcurrentMisses(t *testing.T) {
	c, _ := newCache(t)
	ctx := context.Background()

	var calls atomic.Int32

	started := make(chan struct{})
	release := make(chan struct{})

	load := func(context.Context) (page, error) {
		if calls.Add(1) == 1 {
			close(started)
		}
		<-release

		return page{Total: 1}, nil
	}

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)

		go func() {
			defer wg.Done()

			if v, _, err := cache.GetOrLoad(ctx, c, "hot", time.Minute, load); err != nil || v.Total != 1 {
				t.Errorf("v=%+v err=%v", v, err)
			}
		}()
	}

	<-started
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	if n := calls.Load(); n != 1 {
		t.Errorf("expected 1 load, got %d", n)
	}
}

// TestGeneration 代数从 0 开始，Bump 后改变缓存键.
func TestGeneration(t *testing.T) {
	c, _ := newCache(t)
	ctx := context.Background()

	gen, err := c.Generation(ctx, "search")
	if err != nil || gen != 0 {
		t.Fatalf("gen=%d err=%v", gen, err)
	}

	params := map[string]any{"q": "graph", "page": 1}

	k1, err := cache.Key("search", gen, params)
	if err != nil {
		t.Fatal(err)
	}

	k1again, _ := cache.Key("search", gen, map[string]any{"page": 1, "q": "graph"})
	if k1 != k1again {
		t.Errorf("key must not depend on map order: %s vs %s", k1, k1again)
	}

	if n, err := c.Bump(ctx, "search"); err != nil || n != 1 {
		t.Fatalf("bump: n=%d err=%v", n, err)
	}

	gen, _ = c.Generation(ctx, "search")

	k2, _ := cache.Key("search", gen, params)
	if k1 == k2 {
		t.Error("bump must change the key")
	}
}

// TestClear 只删除前缀下的键.
func TestClear(t *testing.T) {
	c, store := newCache(t)
	ctx := context.Background()

	for _, k := range []string{"a", "b", "c"} {
		if err := cache.Set(ctx, c, k, k, 0); err != nil {
			t.Fatal(err)
		}
	}

	if err := store.Set(ctx, "other:x", []byte("1"), 0); err != nil {
		t.Fatal(err)
	}

	if err := c.Clear(ctx); err != nil {
		t.Fatalf("clear: %v", err)
	}

	keys, _ := store.Keys(ctx, "")
	if len(keys) != 1 || keys[0] != "other:x" {
		t.Errorf("unexpected keys after clear: %v", keys)
	}
}
