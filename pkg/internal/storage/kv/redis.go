//go:build !no_redis

package kv

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/yeisme/papervault/pkg/configs"
)

// scanBatch 每次 SCAN 建议返回的键数.
const scanBatch = 256

// RedisKV 基于 Redis 的 KV 实现，多个服务实例可共享同一份搜索缓存.
type RedisKV struct {
	client *redis.Client
}

// NewRedisKV 连接 Redis 并确认可用.
func NewRedisKV(ctx context.Context, kvCfg *configs.KVConfig) (KVStore, error) {
	cfg := kvCfg.Redis
	if cfg.Addr == "" {
		return nil, errors.New("redis kv: addr is required")
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:        cfg.Addr,
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: cfg.DialTimeout,
	})

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("connect redis %s: %w", cfg.Addr, err)
	}

	return &RedisKV{client: rdb}, nil
}

func (r *RedisKV) Get(ctx context.Context, key string) ([]byte, error) {
	b, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w: %s", ErrKeyNotFound, key)
	}

	return b, wrap("get", err)
}

func (r *RedisKV) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return wrap("set", r.client.Set(ctx, key, value, ttl).Err())
}

func (r *RedisKV) Delete(ctx context.Context, key string) error {
	return wrap("del", r.client.Del(ctx, key).Err())
}

func (r *RedisKV) Exists(ctx context.Context, key string) (bool, error) {
	n, err := r.client.Exists(ctx, key).Result()
	return n > 0, wrap("exists", err)
}

// Incr 使用 INCR，键不存在时 Redis 视为 0.
func (r *RedisKV) Incr(ctx context.Context, key string) (int64, error) {
	n, err := r.client.Incr(ctx, key).Result()
	return n, wrap("incr", err)
}

// Keys 用 SCAN 遍历匹配的键，避免 KEYS 阻塞服务端.
func (r *RedisKV) Keys(ctx context.Context, pattern string) ([]string, error) {
	if pattern == "" {
		pattern = "*"
	}

	var keys []string

	iter := r.client.Scan(ctx, 0, pattern, scanBatch).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}

	return keys, wrap("scan", iter.Err())
}

func (r *RedisKV) Close() error {
	return r.client.Close()
}

func wrap(op string, err error) error {
	if err == nil {
		return nil
	}

	return fmt.Errorf("redis %s: %w", op, err)
}

func init() {
	Register(KVTypeRedis, NewRedisKV)
}
