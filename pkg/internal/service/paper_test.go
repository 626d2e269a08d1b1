package service_test

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yeisme/papervault/pkg/cache"
	"github.com/yeisme/papervault/pkg/configs"
	"github.com/yeisme/papervault/pkg/internal/errs"
	"github.com/yeisme/papervault/pkg/internal/model"
	"github.com/yeisme/papervault/pkg/internal/repository"
	"github.com/yeisme/papervault/pkg/internal/service"
	"github.com/yeisme/papervault/pkg/internal/storage/blob"
	"github.com/yeisme/papervault/pkg/internal/storage/kv"
	"github.com/yeisme/papervault/pkg/internal/validate"
	"github.com/yeisme/papervault/pkg/queue"
)

var epoch = time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// tick 每次调用前进一秒.
func (c *clock) Tick() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.now = c.now.Add(time.Second)

	return c.now
}

// countingStore 记录上传次数.
type countingStore struct {
	blob.Store
	uploads atomic.Int32
}

func (s *countingStore) Upload(ctx context.Context, data []byte, name, mimeType string) (*blob.ObjectRef, error) {
	s.uploads.Add(1)
	return s.Store.Upload(ctx, data, name, mimeType)
}

// failingStore 上传总是失败.
type failingStore struct{ blob.Store }

func (failingStore) Upload(context.Context, []byte, string, string) (*blob.ObjectRef, error) {
	return nil, errors.New("connection reset")
}

// failingRepo 写入总是失败.
type failingRepo struct {
	repository.Repository
	creates atomic.Int32
}

func (r *failingRepo) Create(context.Context, *model.Paper) error {
	r.creates.Add(1)
	return errs.Database("repository.create", errors.New("disk full"))
}

// countingRepo 记录快照读取次数.
type countingRepo struct {
	repository.Repository
	snapshots atomic.Int32
	creates   atomic.Int32
}

func (r *countingRepo) Create(ctx context.Context, p *model.Paper) error {
	r.creates.Add(1)
	return r.Repository.Create(ctx, p)
}

func (r *countingRepo) Snapshot(ctx context.Context, fn func(repository.Repository) error) error {
	r.snapshots.Add(1)
	return r.Repository.Snapshot(ctx, fn)
}

type recorder struct {
	mu     sync.Mutex
	topics []string
}

func (r *recorder) Publish(_ context.Context, topic string, _ ...*message.Message) error {
	r.mu.Lock()
	r.topics = append(r.topics, topic)
	r.mu.Unlock()

	return nil
}

func (r *recorder) Topics() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]string(nil), r.topics...)
}

type fixture struct {
	svc    *service.PaperService
	repo   *countingRepo
	store  *blob.MemoryStore
	blob   *countingStore
	events *recorder
	clock  *clock
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	clk := &clock{now: epoch}
	repoClock := &clock{now: epoch}

	store := blob.NewMemoryStore("http://cdn.local/papervault", blob.WithMemoryClock(clk.Now))
	f := &fixture{
		repo:   &countingRepo{Repository: repository.NewMemory(repository.WithClock(repoClock.Tick))},
		store:  store,
		blob:   &countingStore{Store: store},
		events: &recorder{},
		clock:  clk,
	}

	cfg := configs.PaperConfig{SearchCacheTTL: time.Minute, ReconcileGrace: 24 * time.Hour}
	events := configs.EventsConfig{Enabled: true, Paper: configs.PaperEventsConfig{Created: true, Deleted: true, OrphanRemoved: true}}

	f.svc = service.NewPaperService(service.Deps{
		Repo:      f.repo,
		Blob:      f.blob,
		Validator: validate.New(cfg, validate.WithClock(clk.Now)),
		Cache:     cache.New(kv.NewMemoryKVWithClock(clk.Now), "pv:"),
		Events:    queue.NewEmitter(f.events, events),
		Config:    cfg,
		Now:       clk.Now,
	})

	return f
}

func str(s string) *string { return &s }

func pdf(size int) *validate.File {
	data := make([]byte, size)
	for i := range data {
		data[i] = byte(i % 251)
	}

	return &validate.File{Name: "paper.pdf", ContentType: model.MimeTypePDF, Size: int64(size), Data: data}
}

func fields(title, authors string) validate.PaperFields {
	return validate.PaperFields{Title: str(title), Authors: str(authors)}
}

func TestIngestEndToEnd(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	p, err := f.svc.Ingest(ctx, validate.PaperFields{
		Title:    str("Attention Is All You Need"),
		Authors:  str("Vaswani, Shazeer"),
		Abstract: str("The dominant sequence transduction models"),
		Keywords: str("nlp, attention"),
		Year:     str("2017"),
	}, pdf(5120))
	require.NoError(t, err)

	assert.NotEmpty(t, p.ID)
	assert.Equal(t, []string{"Vaswani", "Shazeer"}, p.Authors)
	assert.Equal(t, []string{"nlp", "attention"}, p.Keywords)
	assert.EqualValues(t, 5120, p.FileSize)
	assert.Equal(t, model.MimeTypePDF, p.MimeType)
	assert.Equal(t, "paper.pdf", p.FileName)
	assert.Regexp(t, `^papers/[0-9a-f-]{36}\.pdf$`, p.FileKey)
	assert.Equal(t, "http://cdn.local/papervault/"+p.FileKey, p.FileURL)
	assert.Len(t, f.store.Data(p.FileKey), 5120)

	got, err := f.svc.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, p.Title, got.Title)
	require.NotNil(t, got.Year)
	assert.Equal(t, 2017, *got.Year)

	res, err := f.svc.Search(ctx, validate.SearchParams{Query: str("Vaswani"), Field: str("authors")})
	require.NoError(t, err)
	require.Len(t, res.Papers, 1)
	assert.Equal(t, p.ID, res.Papers[0].ID)
	require.NotNil(t, res.SearchInfo)
	assert.EqualValues(t, 1, res.SearchInfo.ResultCount)
	assert.Equal(t, model.ScopeAuthors, res.SearchInfo.Field)

	require.NoError(t, f.svc.Delete(ctx, p.ID))

	_, err = f.svc.Get(ctx, p.ID)
	assert.True(t, errs.Is(err, errs.CategoryNotFound))

	// 删除只移除记录，对象留给清理任务
	assert.NotNil(t, f.store.Data(p.FileKey))

	assert.Equal(t, []string{queue.TopicPaperCreated, queue.TopicPaperDeleted}, f.events.Topics())
}

func TestIngestRejectsBeforeAnyCollaboratorCall(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Ingest(context.Background(), validate.PaperFields{Title: str("No authors"), Authors: str(" , ")}, pdf(1024))

	var ve *errs.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "authors", ve.Fields[0].Field)
	assert.Zero(t, f.blob.uploads.Load())
	assert.Zero(t, f.repo.creates.Load())
	assert.Empty(t, f.events.Topics())
}

func TestIngestFileErrorsComeFirst(t *testing.T) {
	f := newFixture(t)

	file := &validate.File{Name: "big.txt", ContentType: "text/plain", Size: 11 * 1024 * 1024}
	_, err := f.svc.Ingest(context.Background(), validate.PaperFields{}, file)

	var ve *errs.ValidationError
	require.ErrorAs(t, err, &ve)
	require.Len(t, ve.Fields, 2)

	for _, fe := range ve.Fields {
		assert.Equal(t, "file", fe.Field)
	}

	assert.Zero(t, f.blob.uploads.Load())
}

func TestIngestStorageFailureWritesNoRecord(t *testing.T) {
	repo := repository.NewMemory()
	svc := service.NewPaperService(service.Deps{
		Repo: repo,
		Blob: failingStore{Store: blob.NewMemoryStore("")},
	})

	_, err := svc.Ingest(context.Background(), fields("Title", "Ada"), pdf(100))
	assert.True(t, errs.Is(err, errs.CategoryStorage))
	assert.Zero(t, repo.Len())
}

func TestIngestDatabaseFailureLeavesOrphanNotDangling(t *testing.T) {
	store := blob.NewMemoryStore("")
	repo := &failingRepo{Repository: repository.NewMemory()}
	svc := service.NewPaperService(service.Deps{Repo: repo, Blob: store})

	_, err := svc.Ingest(context.Background(), fields("Title", "Ada"), pdf(100))
	assert.True(t, errs.Is(err, errs.CategoryDatabase))
	assert.EqualValues(t, 1, repo.creates.Load())

	// 对象已写入但没有记录引用，是孤儿而不是悬空记录
	assert.Equal(t, 1, store.Len())

	res, err := svc.List(context.Background(), validate.SearchParams{})
	require.NoError(t, err)
	assert.Empty(t, res.Papers)
}

func TestGetAndDeleteValidateID(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Get(ctx, "bad id!")
	assert.True(t, errs.Is(err, errs.CategoryValidation))

	err = f.svc.Delete(ctx, "")
	assert.True(t, errs.Is(err, errs.CategoryValidation))

	_, err = f.svc.Get(ctx, "01J0000000000000000000000")
	assert.True(t, errs.Is(err, errs.CategoryNotFound))
}

func TestDeleteTwiceReturnsNotFound(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	p, err := f.svc.Ingest(ctx, fields("Title", "Ada"), pdf(10))
	require.NoError(t, err)

	require.NoError(t, f.svc.Delete(ctx, p.ID))
	assert.True(t, errs.Is(f.svc.Delete(ctx, p.ID), errs.CategoryNotFound))
}

func TestSearchBlankQueryReturnsEmptyPage(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Ingest(ctx, fields("Title", "Ada"), pdf(10))
	require.NoError(t, err)

	res, err := f.svc.Search(ctx, validate.SearchParams{Query: str("   "), Page: str("2")})
	require.NoError(t, err)
	assert.Empty(t, res.Papers)
	assert.Nil(t, res.SearchInfo)
	assert.Equal(t, 2, res.Pagination.Page)
	assert.Zero(t, res.Pagination.TotalCount)
	assert.False(t, res.Pagination.HasNext)
	assert.True(t, res.Pagination.HasPrev)

	res, err = f.svc.List(ctx, validate.SearchParams{Query: str("   ")})
	require.NoError(t, err)
	assert.Len(t, res.Papers, 1)
}

func TestSearchScopes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	dl, err := f.svc.Ingest(ctx, validate.PaperFields{
		Title: str("Deep Learning"), Authors: str("LeCun, Bengio, Hinton"), Keywords: str("neural networks"),
	}, pdf(10))
	require.NoError(t, err)

	ada, err := f.svc.Ingest(ctx, validate.PaperFields{
		Title: str("Notes on the Analytical Engine"), Authors: str("Ada"), Abstract: str("deep learning precursor"),
	}, pdf(10))
	require.NoError(t, err)

	_, err = f.svc.Ingest(ctx, fields("Adaptive Filters", "Haykin"), pdf(10))
	require.NoError(t, err)

	ids := func(field, q string) []string {
		res, err := f.svc.Search(ctx, validate.SearchParams{Query: str(q), Field: str(field)})
		require.NoError(t, err)

		out := make([]string, 0, len(res.Papers))
		for _, p := range res.Papers {
			out = append(out, p.ID)
		}

		return out
	}

	assert.ElementsMatch(t, []string{dl.ID, ada.ID}, ids("all", "Deep Learning"))
	assert.Equal(t, []string{dl.ID}, ids("title", "deep learning"))
	assert.Equal(t, []string{ada.ID}, ids("abstract", "DEEP"))
	assert.Equal(t, []string{ada.ID}, ids("authors", "Ada"))
	assert.Empty(t, ids("authors", "ada"))
	assert.Equal(t, []string{dl.ID}, ids("keywords", "neural networks"))
	assert.Empty(t, ids("keywords", "neural"))
}

func TestSearchForcesCreatedAtDesc(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	var want []string
	for i := range 3 {
		p, err := f.svc.Ingest(ctx, fields(fmt.Sprintf("Paper %d", i), "Ada"), pdf(10))
		require.NoError(t, err)
		want = append([]string{p.ID}, want...)
	}

	res, err := f.svc.Search(ctx, validate.SearchParams{Query: str("Ada"), SortBy: str("title"), SortOrder: str("asc")})
	require.NoError(t, err)

	got := make([]string, 0, len(res.Papers))
	for _, p := range res.Papers {
		got = append(got, p.ID)
	}

	assert.Equal(t, want, got)
}

func TestListValidationIsFailFast(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.List(context.Background(), validate.SearchParams{Page: str("0"), Limit: str("500")})

	var ve *errs.ValidationError
	require.ErrorAs(t, err, &ve)
	require.Len(t, ve.Fields, 1)
	assert.Equal(t, "page", ve.Fields[0].Field)
}

func TestPaginationCoversEveryRecordOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	rng := rand.New(rand.NewPCG(7, 11))

	total := 23
	for i := range total {
		year := fmt.Sprint(1990 + rng.IntN(5))
		_, err := f.svc.Ingest(ctx, validate.PaperFields{
			Title: str(fmt.Sprintf("T%02d", rng.IntN(10))), Authors: str("Ada"), Year: &year,
		}, pdf(i+1))
		require.NoError(t, err)
	}

	for range 20 {
		limit := 1 + rng.IntN(10)
		sortBy := []string{"createdAt", "title", "year"}[rng.IntN(3)]
		order := []string{"asc", "desc"}[rng.IntN(2)]

		seen := make(map[string]bool)
		pages := (total + limit - 1) / limit

		for page := 1; page <= pages; page++ {
			res, err := f.svc.List(ctx, validate.SearchParams{
				Page: str(fmt.Sprint(page)), Limit: str(fmt.Sprint(limit)), SortBy: &sortBy, SortOrder: &order,
			})
			require.NoError(t, err)

			pg := res.Pagination
			assert.EqualValues(t, total, pg.TotalCount)
			assert.Equal(t, pages, pg.TotalPages)
			assert.Equal(t, page < pages, pg.HasNext)
			assert.Equal(t, page > 1, pg.HasPrev)

			for _, p := range res.Papers {
				assert.False(t, seen[p.ID], "duplicate %s on page %d", p.ID, page)
				seen[p.ID] = true
			}
		}

		assert.Len(t, seen, total, "limit=%d sortBy=%s order=%s", limit, sortBy, order)
	}
}

func TestSearchCacheInvalidatedOnWrite(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.svc.Ingest(ctx, fields("Graph Theory", "Euler"), pdf(10))
	require.NoError(t, err)

	params := validate.SearchParams{Query: str("graph")}

	res, err := f.svc.Search(ctx, params)
	require.NoError(t, err)
	require.Len(t, res.Papers, 1)

	loads := f.repo.snapshots.Load()

	res, err = f.svc.Search(ctx, params)
	require.NoError(t, err)
	require.Len(t, res.Papers, 1)
	assert.Equal(t, loads, f.repo.snapshots.Load(), "second search should be served from cache")

	_, err = f.svc.Ingest(ctx, fields("Random Graph", "Erdos"), pdf(10))
	require.NoError(t, err)

	res, err = f.svc.Search(ctx, params)
	require.NoError(t, err)
	assert.Len(t, res.Papers, 2)

	require.NoError(t, f.svc.Delete(ctx, first.ID))

	res, err = f.svc.Search(ctx, params)
	require.NoError(t, err)
	require.Len(t, res.Papers, 1)
	assert.NotEqual(t, first.ID, res.Papers[0].ID)
}

func TestServiceWithoutOptionalDeps(t *testing.T) {
	svc := service.NewPaperService(service.Deps{Repo: repository.NewMemory(), Blob: blob.NewMemoryStore("")})
	ctx := context.Background()

	p, err := svc.Ingest(ctx, fields("Title", "Ada"), pdf(10))
	require.NoError(t, err)

	res, err := svc.Search(ctx, validate.SearchParams{Query: str("title")})
	require.NoError(t, err)
	require.Len(t, res.Papers, 1)
	assert.Equal(t, p.ID, res.Papers[0].ID)

	require.NoError(t, svc.Delete(ctx, p.ID))
}
