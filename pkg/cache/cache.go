// Package cache 提供基于键值存储的泛型缓存.
//
// 值使用 sonic 序列化，键统一加前缀. 失效采用代数计数器：写入方调用 Bump 使旧代数下的
// 所有键不再被读取，旧值随 TTL 自然过期，不需要遍历删除.
// 同一个键上并发的未命中由 singleflight 合并为一次加载.
//
// 基本用法:
//
//	c := cache.New(kvStore, "pv:")
//
//	gen, _ := c.Generation(ctx, "search")
//	key := cache.Key("search", gen, spec)
//	page, hit, err := cache.GetOrLoad(ctx, c, key, 30*time.Second, func(ctx context.Context) (Page, error) {
//		return loadPage(ctx, spec)
//	})
//
//	// 数据变化后
//	_, _ = c.Bump(ctx, "search")
package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/bytedance/sonic"
	"github.com/cespare/xxhash/v2"
	"golang.org/x/sync/singleflight"

	"github.com/yeisme/papervault/pkg/internal/storage/kv"
)

// Cache 基于KV存储的缓存实现.
type Cache struct {
	kvStore kv.KVStore
	prefix  string
	group   singleflight.Group
}

// New 创建缓存实例，prefix 会加在所有键之前.
func New(kvStore kv.KVStore, prefix string) *Cache {
	return &Cache{kvStore: kvStore, prefix: prefix}
}

func (c *Cache) key(k string) string { return c.prefix + k }

// Get 泛型获取缓存值，未命中时返回 kv.ErrKeyNotFound.
func Get[T any](ctx context.Context, c *Cache, key string) (T, error) {
	var zero T

	data, err := c.kvStore.Get(ctx, c.key(key))
	if err != nil {
		return zero, err
	}

	var value T
	if err := sonic.Unmarshal(data, &value); err != nil {
		return zero, fmt.Errorf("failed to unmarshal cache value: %w", err)
	}

	return value, nil
}

// Set 泛型设置缓存值.
func Set[T any](ctx context.Context, c *Cache, key string, value T, ttl time.Duration) error {
	data, err := sonic.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal cache value: %w", err)
	}

	return c.kvStore.Set(ctx, c.key(key), data, ttl)
}

// Delete 删除缓存键.
func (c *Cache) Delete(ctx context.Context, key string) error {
	return c.kvStore.Delete(ctx, c.key(key))
}

// Exists 检查缓存键是否存在.
func (c *Cache) Exists(ctx context.Context, key string) (bool, error) {
	return c.kvStore.Exists(ctx, c.key(key))
}

// GetOrLoad 命中时直接返回；未命中时经 singleflight 调用 load 并回填.
// 回填失败不影响返回值. 第二个返回值表示是否命中缓存.
func GetOrLoad[T any](ctx context.Context, c *Cache, key string, ttl time.Duration, load func(context.Context) (T, error)) (T, bool, error) {
	if value, err := Get[T](ctx, c, key); err == nil {
		return value, true, nil
	}

	v, err, _ := c.group.Do(key, func() (any, error) {
		value, err := load(ctx)
		if err != nil {
			return value, err
		}

		_ = Set(ctx, c, key, value, ttl)

		return value, nil
	})
	if err != nil {
		var zero T
		return zero, false, err
	}

	return v.(T), false, nil
}

// Generation 返回命名空间当前的代数，从未 Bump 过时为 0.
func (c *Cache) Generation(ctx context.Context, ns string) (int64, error) {
	data, err := c.kvStore.Get(ctx, c.key("gen:"+ns))
	if errors.Is(err, kv.ErrKeyNotFound) {
		return 0, nil
	}

	if err != nil {
		return 0, err
	}

	n, err := strconv.ParseInt(string(data), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("bad generation for %s: %w", ns, err)
	}

	return n, nil
}

// Bump 使命名空间代数加一，旧代数下的键随之失效.
func (c *Cache) Bump(ctx context.Context, ns string) (int64, error) {
	return c.kvStore.Incr(ctx, c.key("gen:"+ns))
}

// Key 由命名空间、代数与任意可序列化的参数生成缓存键，参数经 sonic 序列化后取 xxhash.
func Key(ns string, gen int64, params any) (string, error) {
	data, err := sonic.ConfigStd.Marshal(params)
	if err != nil {
		return "", fmt.Errorf("failed to marshal cache key params: %w", err)
	}

	return fmt.Sprintf("%s:%d:%016x", ns, gen, xxhash.Sum64(data)), nil
}

// Clear 删除前缀下的全部键.
func (c *Cache) Clear(ctx context.Context) error {
	keys, err := c.kvStore.Keys(ctx, c.prefix+"*")
	if err != nil {
		return err
	}

	for _, key := range keys {
		if delErr := c.kvStore.Delete(ctx, key); delErr != nil {
			return delErr
		}
	}

	return nil
}
