package kv

import (
	"context"
	"fmt"
	"path"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/yeisme/papervault/pkg/configs"
)

type memEntry struct {
	value   []byte
	expires time.Time // 零值表示不过期
}

func (e memEntry) expired(now time.Time) bool {
	return !e.expires.IsZero() && !now.Before(e.expires)
}

// MemoryKV 进程内 KV 实现，过期项在访问时惰性清除.
type MemoryKV struct {
	mu   sync.Mutex
	data map[string]memEntry
	now  func() time.Time
}

// NewMemoryKV 创建内存 KV 实例.
func NewMemoryKV(context.Context, *configs.KVConfig) (KVStore, error) {
	return NewMemoryKVWithClock(time.Now), nil
}

// NewMemoryKVWithClock 使用给定时钟创建内存 KV.
func NewMemoryKVWithClock(now func() time.Time) *MemoryKV {
	return &MemoryKV{data: make(map[string]memEntry), now: now}
}

// live 返回未过期的条目，调用方需持有锁.
func (m *MemoryKV) live(key string) (memEntry, bool) {
	e, ok := m.data[key]
	if !ok {
		return memEntry{}, false
	}

	if e.expired(m.now()) {
		delete(m.data, key)
		return memEntry{}, false
	}

	return e, true
}

func (m *MemoryKV) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.live(key)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrKeyNotFound, key)
	}

	return append([]byte(nil), e.value...), nil
}

func (m *MemoryKV) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	e := memEntry{value: append([]byte(nil), value...)}
	if ttl > 0 {
		e.expires = m.now().Add(ttl)
	}

	m.mu.Lock()
	m.data[key] = e
	m.mu.Unlock()

	return nil
}

func (m *MemoryKV) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	delete(m.data, key)
	m.mu.Unlock()

	return nil
}

func (m *MemoryKV) Exists(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	_, ok := m.live(key)

	return ok, nil
}

// Incr 与 redis INCR 一致，保留已有的过期时间.
func (m *MemoryKV) Incr(_ context.Context, key string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.live(key)

	var n int64
	if ok {
		var err error
		if n, err = strconv.ParseInt(string(e.value), 10, 64); err != nil {
			return 0, fmt.Errorf("value of %s is not an integer: %w", key, err)
		}
	}

	n++
	e.value = []byte(strconv.FormatInt(n, 10))
	m.data[key] = e

	return n, nil
}

func (m *MemoryKV) Keys(_ context.Context, pattern string) ([]string, error) {
	if pattern == "*" {
		pattern = ""
	}

	if pattern != "" {
		if _, err := path.Match(pattern, ""); err != nil {
			return nil, fmt.Errorf("bad pattern %q: %w", pattern, err)
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	keys := make([]string, 0, len(m.data))

	for k := range m.data {
		if _, ok := m.live(k); !ok {
			continue
		}

		if pattern != "" {
			if matched, _ := path.Match(pattern, k); !matched {
				continue
			}
		}

		keys = append(keys, k)
	}

	sort.Strings(keys)

	return keys, nil
}

// Close 内存实现无需操作.
func (m *MemoryKV) Close() error {
	return nil
}

func init() {
	Register(KVTypeMemory, NewMemoryKV)
}
