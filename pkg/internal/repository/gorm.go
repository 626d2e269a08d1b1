package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/yeisme/papervault/pkg/internal/errs"
	"github.com/yeisme/papervault/pkg/internal/model"
)

// objectKeyBatch ObjectKeys 单条 IN 查询的键数量上限.
const objectKeyBatch = 500

// GormRepository 基于 GORM 的仓储.
type GormRepository struct {
	db     *gorm.DB
	ids    *idGenerator
	opts   options
	inTx   bool
	txOpts *sql.TxOptions
	member memberSQL
}

// NewGormRepository 创建 GORM 仓储，表结构需已迁移.
func NewGormRepository(db *gorm.DB, opts ...Option) *GormRepository {
	r := &GormRepository{db: db, ids: newIDGenerator(), opts: buildOptions(opts), member: exactMember}

	switch db.Dialector.Name() {
	case "postgres":
		r.txOpts = &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true}
	case "mysql":
		r.txOpts = &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true}
		r.member = binaryMember
	}

	return r
}

func (r *GormRepository) withTx(tx *gorm.DB) *GormRepository {
	c := *r
	c.db = tx
	c.inTx = true

	return &c
}

func (r *GormRepository) Create(ctx context.Context, p *model.Paper) error {
	stamp(p, r.ids, r.opts.now())
	p.SyncRows()

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Create(p).Error; err != nil {
			return err
		}

		if len(p.AuthorRows) > 0 {
			if err := tx.Create(&p.AuthorRows).Error; err != nil {
				return err
			}
		}

		if len(p.KeywordRows) > 0 {
			if err := tx.Create(&p.KeywordRows).Error; err != nil {
				return err
			}
		}

		return nil
	})
	if err != nil {
		return errs.Database("repository.create", fmt.Errorf("insert paper: %w", err))
	}

	return nil
}

func preloadLists(tx *gorm.DB) *gorm.DB {
	byPosition := func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }

	return tx.Preload("AuthorRows", byPosition).Preload("KeywordRows", byPosition)
}

func (r *GormRepository) FindByID(ctx context.Context, id string) (*model.Paper, error) {
	var p model.Paper

	err := preloadLists(r.db.WithContext(ctx)).Where("id = ?", id).Take(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errs.NotFound("repository.find", fmt.Errorf("paper %s: %w", id, errs.ErrNotFound))
	}

	if err != nil {
		return nil, errs.Database("repository.find", err)
	}

	p.SyncLists()

	return &p, nil
}

func (r *GormRepository) FindMany(ctx context.Context, q model.Query) ([]model.Paper, error) {
	tx := r.applyFilter(r.db.WithContext(ctx).Model(&model.Paper{}), q.Filter)
	tx = applyOrder(tx, q)

	if q.Offset > 0 {
		tx = tx.Offset(q.Offset)
	}

	if q.Limit > 0 {
		tx = tx.Limit(q.Limit)
	}

	papers := make([]model.Paper, 0)
	if err := preloadLists(tx).Find(&papers).Error; err != nil {
		return nil, errs.Database("repository.find_many", err)
	}

	for i := range papers {
		papers[i].SyncLists()
		papers[i].AuthorRows, papers[i].KeywordRows = nil, nil
	}

	return papers, nil
}

func (r *GormRepository) Count(ctx context.Context, f model.Filter) (int64, error) {
	var n int64
	if err := r.applyFilter(r.db.WithContext(ctx).Model(&model.Paper{}), f).Count(&n).Error; err != nil {
		return 0, errs.Database("repository.count", err)
	}

	return n, nil
}

var errNoRows = errors.New("no rows affected")

func (r *GormRepository) Delete(ctx context.Context, id string) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("paper_id = ?", id).Delete(&model.PaperAuthor{}).Error; err != nil {
			return err
		}

		if err := tx.Where("paper_id = ?", id).Delete(&model.PaperKeyword{}).Error; err != nil {
			return err
		}

		res := tx.Where("id = ?", id).Delete(&model.Paper{})
		if res.Error != nil {
			return res.Error
		}

		if res.RowsAffected == 0 {
			return errNoRows
		}

		return nil
	})

	switch {
	case errors.Is(err, errNoRows):
		return errs.NotFound("repository.delete", fmt.Errorf("paper %s: %w", id, errs.ErrNotFound))
	case err != nil:
		return errs.Database("repository.delete", err)
	}

	return nil
}

func (r *GormRepository) Snapshot(ctx context.Context, fn func(Repository) error) error {
	if r.inTx {
		return fn(r)
	}

	var opts []*sql.TxOptions
	if r.txOpts != nil {
		opts = append(opts, r.txOpts)
	}

	var inner error

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		inner = fn(r.withTx(tx))
		return inner
	}, opts...)

	if inner != nil {
		return inner
	}

	if err != nil {
		return errs.Database("repository.snapshot", err)
	}

	return nil
}

func (r *GormRepository) ObjectKeys(ctx context.Context, keys []string) (map[string]bool, error) {
	found := make(map[string]bool, len(keys))

	for start := 0; start < len(keys); start += objectKeyBatch {
		end := min(start+objectKeyBatch, len(keys))

		var hit []string
		if err := r.db.WithContext(ctx).Model(&model.Paper{}).
			Where("file_key IN ?", keys[start:end]).
			Pluck("file_key", &hit).Error; err != nil {
			return nil, errs.Database("repository.object_keys", err)
		}

		for _, k := range hit {
			found[k] = true
		}
	}

	return found, nil
}

const (
	titleLike    = "LOWER(papers.title) LIKE ? ESCAPE '!'"
	abstractLike = "LOWER(papers.abstract) LIKE ? ESCAPE '!'"
)

// memberSQL 作者与关键词的精确成员条件.
type memberSQL struct {
	author  string
	keyword string
}

var (
	exactMember = memberSQL{
		author:  "EXISTS (SELECT 1 FROM paper_authors pa WHERE pa.paper_id = papers.id AND pa.name = ?)",
		keyword: "EXISTS (SELECT 1 FROM paper_keywords pk WHERE pk.paper_id = papers.id AND pk.value = ?)",
	}
	// binaryMember MySQL 默认的 _ci/_ai 排序规则会忽略大小写与重音，按字节比较才是精确匹配.
	binaryMember = memberSQL{
		author:  "EXISTS (SELECT 1 FROM paper_authors pa WHERE pa.paper_id = papers.id AND BINARY pa.name = ?)",
		keyword: "EXISTS (SELECT 1 FROM paper_keywords pk WHERE pk.paper_id = papers.id AND BINARY pk.value = ?)",
	}
)

// applyFilter 与 model.Filter.Match 保持相同语义.
func (r *GormRepository) applyFilter(tx *gorm.DB, f model.Filter) *gorm.DB {
	hasAuthor, hasKeyword := r.member.author, r.member.keyword

	if f.Text == "" {
		return tx
	}

	like := "%" + escapeLike(strings.ToLower(f.Text)) + "%"

	switch f.Scope {
	case model.ScopeTitle:
		return tx.Where(titleLike, like)
	case model.ScopeAbstract:
		return tx.Where(abstractLike, like)
	case model.ScopeAuthors:
		return tx.Where(hasAuthor, f.Text)
	case model.ScopeKeywords:
		return tx.Where(hasKeyword, f.Text)
	default:
		return tx.Where(
			"("+titleLike+" OR "+abstractLike+" OR "+hasAuthor+" OR "+hasKeyword+")",
			like, like, f.Text, f.Text,
		)
	}
}

func escapeLike(s string) string {
	return strings.NewReplacer("!", "!!", "%", "!%", "_", "!_").Replace(s)
}

// applyOrder 单字段排序，year 为空的记录排在最后，最后按 id 升序.
func applyOrder(tx *gorm.DB, q model.Query) *gorm.DB {
	dir := "DESC"
	if q.Order == model.SortAsc {
		dir = "ASC"
	}

	switch q.SortBy {
	case model.SortTitle:
		tx = tx.Order("papers.title " + dir)
	case model.SortYear:
		tx = tx.Order("CASE WHEN papers.year IS NULL THEN 1 ELSE 0 END").Order("papers.year " + dir)
	default:
		tx = tx.Order("papers.created_at " + dir)
	}

	return tx.Order("papers.id ASC")
}
