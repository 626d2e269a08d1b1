// Package kv 提供键值存储的接口和实现，搜索缓存与缓存代数计数器都建立在它之上.
package kv

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/yeisme/papervault/pkg/configs"
)

// ErrKeyNotFound 键不存在或已过期.
var ErrKeyNotFound = errors.New("kv: key not found")

// Client 包装具体的 KVStore 实现.
type Client struct {
	KVStore
	kind KVType
}

// KVStore 定义键值存储接口.
type KVStore interface {
	// Get 获取键的值，键不存在时返回 ErrKeyNotFound.
	Get(ctx context.Context, key string) ([]byte, error)
	// Set 设置键的值，ttl 为 0 表示不过期.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// Delete 删除键.
	Delete(ctx context.Context, key string) error
	// Exists 检查键是否存在.
	Exists(ctx context.Context, key string) (bool, error)
	// Incr 原子地将整数键加一并返回新值，键不存在时从 0 开始.
	Incr(ctx context.Context, key string) (int64, error)
	// Keys 获取匹配 glob 模式的键，空模式表示全部.
	Keys(ctx context.Context, pattern string) ([]string, error)
	// Close 关闭存储连接.
	Close() error
}

// KVType 键值存储类型.
type KVType string

const (
	KVTypeMemory KVType = "memory"
	KVTypeRedis  KVType = "redis"
)

// Opener 按配置打开一种 KV 后端.
type Opener func(ctx context.Context, cfg *configs.KVConfig) (KVStore, error)

var openers = make(map[KVType]Opener)

// Register 登记后端，后端文件在 init 中调用.
func Register(kind KVType, open Opener) {
	openers[kind] = open
}

// GetRegisteredKVTypes 返回已编入的后端类型，按名称排序.
func GetRegisteredKVTypes() []KVType {
	types := make([]KVType, 0, len(openers))
	for kind := range openers {
		types = append(types, kind)
	}

	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })

	return types
}

// Open 打开指定类型的后端，cfg 为 nil 时使用零值配置.
func Open(ctx context.Context, kind KVType, cfg *configs.KVConfig) (KVStore, error) {
	open, ok := openers[kind]
	if !ok {
		return nil, fmt.Errorf("unsupported kv type %q (registered: %v)", kind, GetRegisteredKVTypes())
	}

	if cfg == nil {
		cfg = &configs.KVConfig{}
	}

	return open(ctx, cfg)
}

// New 按配置创建 KV 客户端，未配置类型时使用内存实现.
func New(ctx context.Context, cfg *configs.KVConfig) (*Client, error) {
	kind := KVType(cfg.GetKVType())
	if kind == "" {
		kind = KVTypeMemory
	}

	store, err := Open(ctx, kind, cfg)
	if err != nil {
		return nil, err
	}

	return &Client{KVStore: store, kind: kind}, nil
}

// Type 返回客户端的存储类型.
func (c *Client) Type() KVType {
	return c.kind
}
