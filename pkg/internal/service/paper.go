// Package service 编排论文入库、读取、删除与检索.
//
// 入库严格按 校验文件 → 校验字段 → 上传对象 → 写入元数据 的顺序执行，
// 元数据写入失败时不回删对象，遗留的孤儿对象由 Reconcile 清理.
// 事件发布与缓存失效在记录持久化之后进行，失败只记录日志.
package service

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/yeisme/papervault/pkg/cache"
	"github.com/yeisme/papervault/pkg/configs"
	"github.com/yeisme/papervault/pkg/internal/errs"
	"github.com/yeisme/papervault/pkg/internal/model"
	"github.com/yeisme/papervault/pkg/internal/repository"
	"github.com/yeisme/papervault/pkg/internal/storage/blob"
	"github.com/yeisme/papervault/pkg/internal/types"
	"github.com/yeisme/papervault/pkg/internal/validate"
	nlog "github.com/yeisme/papervault/pkg/log"
	"github.com/yeisme/papervault/pkg/metrics"
	"github.com/yeisme/papervault/pkg/queue"
	"github.com/yeisme/papervault/pkg/tracing"
)

// SearchCacheNamespace 检索缓存的代数命名空间.
const SearchCacheNamespace = "search"

// Deps 论文服务的依赖. Repo 与 Blob 必填，其余可为空.
type Deps struct {
	Repo      repository.Repository
	Blob      blob.Store
	Validator *validate.Validator
	Cache     *cache.Cache
	Events    *queue.Emitter
	Config    configs.PaperConfig
	Now       func() time.Time
}

// PaperService 论文业务服务.
type PaperService struct {
	repo      repository.Repository
	blob      blob.Store
	validator *validate.Validator
	cache     *cache.Cache
	events    *queue.Emitter
	cfg       configs.PaperConfig
	now       func() time.Time
	log       zerolog.Logger
}

// NewPaperService 创建论文服务.
func NewPaperService(d Deps) *PaperService {
	s := &PaperService{
		repo:      d.Repo,
		blob:      d.Blob,
		validator: d.Validator,
		cache:     d.Cache,
		events:    d.Events,
		cfg:       d.Config,
		now:       d.Now,
		log:       nlog.Component("paper"),
	}

	if s.validator == nil {
		s.validator = validate.New(d.Config)
	}

	if s.now == nil {
		s.now = time.Now
	}

	return s
}

// Validator 返回服务使用的校验器.
func (s *PaperService) Validator() *validate.Validator { return s.validator }

// Ingest 校验并保存一篇论文，返回持久化后的记录.
func (s *PaperService) Ingest(ctx context.Context, fields validate.PaperFields, file *validate.File) (p *model.Paper, err error) {
	ctx, span := tracing.StartSpan(ctx, "paper.ingest")
	defer func() {
		tracing.EndSpan(span, err)
		observeIngest(p, err)
	}()

	if fe := s.validator.ValidateFile(file); len(fe) > 0 {
		return nil, &errs.ValidationError{Fields: fe}
	}

	draft, err := s.validator.ValidatePaper(fields, file)
	if err != nil {
		return nil, err
	}

	span.SetAttributes(
		attribute.String("paper.file_name", draft.File.Name),
		attribute.Int64("paper.file_size", draft.File.Size),
	)

	ref, err := s.blob.Upload(ctx, draft.File.Data, draft.File.Name, draft.File.ContentType)
	if err != nil {
		return nil, asCategory(err, errs.CategoryStorage, "paper.upload")
	}

	p = &model.Paper{
		Title:    draft.Title,
		Authors:  draft.Authors,
		Abstract: draft.Abstract,
		Keywords: draft.Keywords,
		Year:     draft.Year,
		FileName: draft.File.Name,
		FileURL:  ref.URL,
		FileKey:  ref.Key,
		FileSize: ref.Size,
		MimeType: ref.ContentType,
	}

	if p.MimeType == "" {
		p.MimeType = draft.File.ContentType
	}

	if err := s.repo.Create(ctx, p); err != nil {
		s.log.Warn().Err(err).Str("object_key", ref.Key).Msg("metadata write failed, object left for reconciler")
		return nil, asCategory(err, errs.CategoryDatabase, "paper.create")
	}

	span.SetAttributes(attribute.String("paper.id", p.ID))

	s.invalidate(ctx)

	if err := s.events.PaperCreated(ctx, queue.PaperCreatedPayload{
		PaperID:  p.ID,
		Title:    p.Title,
		Authors:  p.Authors,
		Year:     p.Year,
		Object:   objectRef(p),
		Created:  p.CreatedAt,
		FileName: p.FileName,
	}, traceOpts(span)...); err != nil {
		s.log.Warn().Err(err).Str("paper_id", p.ID).Msg("publish paper created failed")
	}

	s.log.Info().Str("paper_id", p.ID).Str("object_key", p.FileKey).Int64("size", p.FileSize).Msg("paper ingested")

	return p, nil
}

// Get 按 ID 读取论文.
func (s *PaperService) Get(ctx context.Context, rawID string) (*model.Paper, error) {
	id, err := s.validator.ValidatePaperID(rawID)
	if err != nil {
		return nil, err
	}

	return s.repo.FindByID(ctx, id)
}

// Delete 删除论文元数据，对象存储中的文件交由 Reconcile 清理.
func (s *PaperService) Delete(ctx context.Context, rawID string) (err error) {
	ctx, span := tracing.StartSpan(ctx, "paper.delete")
	defer func() { tracing.EndSpan(span, err) }()

	id, err := s.validator.ValidatePaperID(rawID)
	if err != nil {
		return err
	}

	p, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return err
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}

	s.invalidate(ctx)

	if err := s.events.PaperDeleted(ctx, queue.PaperDeletedPayload{
		PaperID: p.ID,
		Object:  objectRef(p),
	}, traceOpts(span)...); err != nil {
		s.log.Warn().Err(err).Str("paper_id", p.ID).Msg("publish paper deleted failed")
	}

	s.log.Info().Str("paper_id", p.ID).Msg("paper deleted")

	return nil
}

// List 列表接口：search 作用于全部字段，可指定排序.
func (s *PaperService) List(ctx context.Context, in validate.SearchParams) (*types.SearchResult, error) {
	in.Field = nil

	spec, err := s.validator.ValidateSearch(in)
	if err != nil {
		return nil, err
	}

	return s.query(ctx, *spec)
}

// Search 检索接口：按 field 限定作用字段，固定按创建时间倒序.
// 空查询直接返回空页.
func (s *PaperService) Search(ctx context.Context, in validate.SearchParams) (res *types.SearchResult, err error) {
	ctx, span := tracing.StartSpan(ctx, "paper.search")
	defer func() { tracing.EndSpan(span, err) }()

	in.SortBy, in.SortOrder = nil, nil

	spec, err := s.validator.ValidateSearch(in)
	if err != nil {
		return nil, err
	}

	span.SetAttributes(
		attribute.String("search.field", string(spec.Scope)),
		attribute.Int("search.page", spec.Page),
	)

	if spec.Query == "" {
		return &types.SearchResult{
			Papers:     []model.Paper{},
			Pagination: types.NewPagination(spec.Page, spec.Limit, 0),
		}, nil
	}

	res, err = s.query(ctx, *spec)
	if err != nil {
		return nil, err
	}

	res.SearchInfo = &types.SearchInfo{
		Query:       spec.Query,
		Field:       spec.Scope,
		ResultCount: res.Pagination.TotalCount,
	}

	return res, nil
}

// query 在同一个快照中统计总数并读取当前页，结果按代数缓存.
func (s *PaperService) query(ctx context.Context, spec validate.SearchSpec) (*types.SearchResult, error) {
	load := func(ctx context.Context) (types.SearchResult, error) {
		return s.load(ctx, spec)
	}

	if s.cache == nil {
		res, err := load(ctx)
		return &res, err
	}

	gen, err := s.cache.Generation(ctx, SearchCacheNamespace)
	if err != nil {
		s.log.Warn().Err(err).Msg("read search cache generation failed, bypassing cache")

		res, err := load(ctx)

		return &res, err
	}

	key, err := cache.Key(SearchCacheNamespace, gen, spec)
	if err != nil {
		return nil, err
	}

	res, hit, err := cache.GetOrLoad(ctx, s.cache, key, s.cfg.SearchCacheTTL, load)
	if err != nil {
		return nil, err
	}

	if hit {
		metrics.PaperSearchTotal.WithLabelValues("hit").Inc()
	} else {
		metrics.PaperSearchTotal.WithLabelValues("miss").Inc()
	}

	return &res, nil
}

func (s *PaperService) load(ctx context.Context, spec validate.SearchSpec) (types.SearchResult, error) {
	q := model.Query{
		Filter: model.Filter{Text: spec.Query, Scope: spec.Scope},
		SortBy: spec.SortBy,
		Order:  spec.SortOrder,
		Offset: spec.Offset(),
		Limit:  spec.Limit,
	}

	var (
		total  int64
		papers []model.Paper
	)

	err := s.repo.Snapshot(ctx, func(r repository.Repository) error {
		var err error
		if total, err = r.Count(ctx, q.Filter); err != nil {
			return err
		}

		papers, err = r.FindMany(ctx, q)

		return err
	})
	if err != nil {
		return types.SearchResult{}, asCategory(err, errs.CategoryDatabase, "paper.search")
	}

	if papers == nil {
		papers = []model.Paper{}
	}

	return types.SearchResult{
		Papers:     papers,
		Pagination: types.NewPagination(spec.Page, spec.Limit, total),
	}, nil
}

func (s *PaperService) invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}

	if _, err := s.cache.Bump(ctx, SearchCacheNamespace); err != nil {
		s.log.Warn().Err(err).Msg("invalidate search cache failed")
	}
}

func observeIngest(p *model.Paper, err error) {
	if err != nil {
		metrics.PaperIngestTotal.WithLabelValues(string(errs.CategoryOf(err))).Inc()
		return
	}

	metrics.PaperIngestTotal.WithLabelValues("ok").Inc()
	metrics.PaperIngestBytes.Add(float64(p.FileSize))
}

// asCategory 保留已分类的错误，否则按 c 包装.
func asCategory(err error, c errs.Category, op string) error {
	if errs.CategoryOf(err) != errs.CategoryInternal {
		return err
	}

	return &errs.Error{Category: c, Op: op, Err: err}
}

func objectRef(p *model.Paper) queue.ObjectRef {
	return queue.ObjectRef{
		ObjectKey:   p.FileKey,
		URL:         p.FileURL,
		Size:        p.FileSize,
		ContentType: p.MimeType,
	}
}

func traceOpts(span trace.Span) []queue.HeaderOption {
	sc := span.SpanContext()
	if !sc.HasTraceID() {
		return nil
	}

	return []queue.HeaderOption{queue.WithTraceID(sc.TraceID().String())}
}
