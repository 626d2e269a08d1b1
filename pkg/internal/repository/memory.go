package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/yeisme/papervault/pkg/internal/errs"
	"github.com/yeisme/papervault/pkg/internal/model"
)

// MemoryRepository 进程内仓储，读写都返回副本.
type MemoryRepository struct {
	mu     sync.RWMutex
	papers map[string]*model.Paper
	ids    *idGenerator
	opts   options
	frozen bool
}

// NewMemory 创建内存仓储.
func NewMemory(opts ...Option) *MemoryRepository {
	return &MemoryRepository{
		papers: make(map[string]*model.Paper),
		ids:    newIDGenerator(),
		opts:   buildOptions(opts),
	}
}

func (m *MemoryRepository) Create(_ context.Context, p *model.Paper) error {
	if m.frozen {
		return errs.Database("repository.create", fmt.Errorf("snapshot is read-only"))
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	stamp(p, m.ids, m.opts.now())

	for _, existing := range m.papers {
		if p.FileKey != "" && existing.FileKey == p.FileKey {
			return errs.Database("repository.create", fmt.Errorf("duplicate file key %s", p.FileKey))
		}
	}

	m.papers[p.ID] = p.Clone()

	return nil
}

func (m *MemoryRepository) FindByID(_ context.Context, id string) (*model.Paper, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.papers[id]
	if !ok {
		return nil, errs.NotFound("repository.find", fmt.Errorf("paper %s: %w", id, errs.ErrNotFound))
	}

	return p.Clone(), nil
}

// matching 返回满足过滤的记录，调用方需持有读锁.
func (m *MemoryRepository) matching(f model.Filter) []*model.Paper {
	out := make([]*model.Paper, 0, len(m.papers))
	for _, p := range m.papers {
		if f.Match(p) {
			out = append(out, p)
		}
	}

	return out
}

func (m *MemoryRepository) FindMany(_ context.Context, q model.Query) ([]model.Paper, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	hits := m.matching(q.Filter)
	sort.SliceStable(hits, func(i, j int) bool { return q.Less(hits[i], hits[j]) })

	start := min(max(q.Offset, 0), len(hits))

	end := len(hits)
	if q.Limit > 0 {
		end = min(start+q.Limit, len(hits))
	}

	out := make([]model.Paper, 0, end-start)
	for _, p := range hits[start:end] {
		out = append(out, *p.Clone())
	}

	return out, nil
}

func (m *MemoryRepository) Count(_ context.Context, f model.Filter) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return int64(len(m.matching(f))), nil
}

func (m *MemoryRepository) Delete(_ context.Context, id string) error {
	if m.frozen {
		return errs.Database("repository.delete", fmt.Errorf("snapshot is read-only"))
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.papers[id]; !ok {
		return errs.NotFound("repository.delete", fmt.Errorf("paper %s: %w", id, errs.ErrNotFound))
	}

	delete(m.papers, id)

	return nil
}

// Snapshot 在读锁下复制当前记录集，fn 看到的是只读副本.
func (m *MemoryRepository) Snapshot(_ context.Context, fn func(Repository) error) error {
	if m.frozen {
		return fn(m)
	}

	m.mu.RLock()
	snap := &MemoryRepository{
		papers: make(map[string]*model.Paper, len(m.papers)),
		ids:    m.ids,
		opts:   m.opts,
		frozen: true,
	}

	for id, p := range m.papers {
		snap.papers[id] = p
	}
	m.mu.RUnlock()

	return fn(snap)
}

func (m *MemoryRepository) ObjectKeys(_ context.Context, keys []string) (map[string]bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	want := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		want[k] = struct{}{}
	}

	found := make(map[string]bool, len(keys))
	for _, p := range m.papers {
		if _, ok := want[p.FileKey]; ok {
			found[p.FileKey] = true
		}
	}

	return found, nil
}

// Len 当前记录数.
func (m *MemoryRepository) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return len(m.papers)
}
