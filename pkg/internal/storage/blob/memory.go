package blob

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/yeisme/papervault/pkg/internal/errs"
)

type memoryObject struct {
	data        []byte
	contentType string
	etag        string
	modified    time.Time
}

// MemoryStore 进程内对象存储.
type MemoryStore struct {
	mu      sync.RWMutex
	objects map[string]memoryObject
	baseURL string
	prefix  string
	now     func() time.Time
}

// MemoryOption 配置 MemoryStore.
type MemoryOption func(*MemoryStore)

// WithMemoryClock 替换对象修改时间的来源.
func WithMemoryClock(now func() time.Time) MemoryOption {
	return func(m *MemoryStore) { m.now = now }
}

// WithMemoryPrefix 设置键前缀.
func WithMemoryPrefix(prefix string) MemoryOption {
	return func(m *MemoryStore) { m.prefix = normalizePrefix(prefix) }
}

// NewMemoryStore 创建内存对象存储，baseURL 用于拼接公开地址.
func NewMemoryStore(baseURL string, opts ...MemoryOption) *MemoryStore {
	m := &MemoryStore{
		objects: make(map[string]memoryObject),
		baseURL: strings.TrimRight(baseURL, "/"),
		prefix:  "papers/",
		now:     time.Now,
	}

	for _, opt := range opts {
		opt(m)
	}

	return m
}

func (m *MemoryStore) Upload(_ context.Context, data []byte, proposedName, mimeType string) (*ObjectRef, error) {
	key := NewKey(m.prefix, proposedName)
	sum := md5.Sum(data)

	obj := memoryObject{
		data:        append([]byte(nil), data...),
		contentType: mimeType,
		etag:        hex.EncodeToString(sum[:]),
		modified:    m.now(),
	}

	m.mu.Lock()
	m.objects[key] = obj
	m.mu.Unlock()

	return &ObjectRef{
		Key:         key,
		URL:         m.baseURL + "/" + key,
		Size:        int64(len(obj.data)),
		ContentType: obj.contentType,
		ETag:        obj.etag,
	}, nil
}

func (m *MemoryStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	delete(m.objects, key)
	m.mu.Unlock()

	return nil
}

func (m *MemoryStore) FetchMetadata(_ context.Context, key string) (*ObjectMetadata, error) {
	m.mu.RLock()
	obj, ok := m.objects[key]
	m.mu.RUnlock()

	if !ok {
		return nil, errs.NotFound("blob.fetch_metadata", fmt.Errorf("object %s: %w", key, errs.ErrNotFound))
	}

	return &ObjectMetadata{
		Key:          key,
		Size:         int64(len(obj.data)),
		ContentType:  obj.contentType,
		ETag:         obj.etag,
		LastModified: obj.modified,
	}, nil
}

func (m *MemoryStore) List(_ context.Context, prefix string) ([]ObjectMetadata, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]ObjectMetadata, 0, len(m.objects))
	for key, obj := range m.objects {
		if !strings.HasPrefix(key, prefix) {
			continue
		}

		out = append(out, ObjectMetadata{
			Key:          key,
			Size:         int64(len(obj.data)),
			ContentType:  obj.contentType,
			ETag:         obj.etag,
			LastModified: obj.modified,
		})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })

	return out, nil
}

func (m *MemoryStore) Prefix() string { return m.prefix }

func (m *MemoryStore) HealthCheck(context.Context) error { return nil }

// Len 当前对象数量.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return len(m.objects)
}

// Data 返回对象内容副本，不存在时为 nil.
func (m *MemoryStore) Data(key string) []byte {
	m.mu.RLock()
	defer m.mu.RUnlock()

	obj, ok := m.objects[key]
	if !ok {
		return nil
	}

	return append([]byte(nil), obj.data...)
}
