// Package repository 持久化论文元数据.
//
// 两个实现语义一致：GORM（PostgreSQL、MySQL、SQLite）与进程内存.
// 记录 ID 是单调 ULID，排序相同时按 ID 升序即按插入顺序.
package repository

import (
	"context"
	"crypto/rand"
	"io"
	"sync"
	"time"

	"github.com/oklog/ulid"

	"github.com/yeisme/papervault/pkg/internal/model"
)

// Repository 论文元数据存储.
type Repository interface {
	// Create 分配 ID 与时间戳后写入记录及其作者、关键词.
	Create(ctx context.Context, p *model.Paper) error
	// FindByID 读取记录，不存在时返回 NOT_FOUND.
	FindByID(ctx context.Context, id string) (*model.Paper, error)
	// FindMany 按过滤、排序与分页读取记录.
	FindMany(ctx context.Context, q model.Query) ([]model.Paper, error)
	// Count 统计满足过滤的记录数.
	Count(ctx context.Context, f model.Filter) (int64, error)
	// Delete 删除记录，不存在时返回 NOT_FOUND. 不删除对象存储中的文件.
	Delete(ctx context.Context, id string) error
	// Snapshot 在同一个一致性视图中执行 fn.
	Snapshot(ctx context.Context, fn func(Repository) error) error
	// ObjectKeys 报告给定对象键中哪些仍被记录引用.
	ObjectKeys(ctx context.Context, keys []string) (map[string]bool, error)
}

// Option 配置仓储.
type Option func(*options)

type options struct {
	now func() time.Time
}

// WithClock 替换创建时间的来源.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

func buildOptions(opts []Option) options {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}

	return o
}

// idGenerator 生成单调递增的 ULID，MonotonicEntropy 本身不是并发安全的.
type idGenerator struct {
	mu      sync.Mutex
	entropy io.Reader
}

func newIDGenerator() *idGenerator {
	return &idGenerator{entropy: ulid.Monotonic(rand.Reader, 0)}
}

func (g *idGenerator) New(t time.Time) string {
	g.mu.Lock()
	defer g.mu.Unlock()

	return ulid.MustNew(ulid.Timestamp(t), g.entropy).String()
}

// stamp 为新记录分配 ID 与时间戳，时间截断到微秒以适配各数据库的精度.
func stamp(p *model.Paper, ids *idGenerator, now time.Time) {
	now = now.UTC().Truncate(time.Microsecond)

	p.ID = ids.New(now)
	p.CreatedAt = now
	p.UpdatedAt = now

	if p.Authors == nil {
		p.Authors = []string{}
	}

	if p.Keywords == nil {
		p.Keywords = []string{}
	}
}
