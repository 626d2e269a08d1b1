package model

import (
	"strings"
)

// Scope 搜索作用的字段.
type Scope string

const (
	ScopeAll      Scope = "all"
	ScopeTitle    Scope = "title"
	ScopeAuthors  Scope = "authors"
	ScopeAbstract Scope = "abstract"
	ScopeKeywords Scope = "keywords"
)

// SortKey 排序字段.
type SortKey string

const (
	SortCreatedAt SortKey = "createdAt"
	SortTitle     SortKey = "title"
	SortYear      SortKey = "year"
)

// SortOrder 排序方向.
type SortOrder string

const (
	SortAsc  SortOrder = "asc"
	SortDesc SortOrder = "desc"
)

// Filter 检索谓词. Text 为空时匹配全部记录.
//
// title/abstract 做大小写不敏感的子串匹配，authors/keywords 做精确成员匹配，
// ScopeAll 为四者的或.
type Filter struct {
	Text  string
	Scope Scope
}

// Query 一次分页查询.
type Query struct {
	Filter
	SortBy SortKey
	Order  SortOrder
	Offset int
	Limit  int
}

// Match 判断记录是否满足谓词，与数据库实现的语义保持一致.
func (f Filter) Match(p *Paper) bool {
	if f.Text == "" {
		return true
	}

	needle := strings.ToLower(f.Text)

	title := func() bool { return strings.Contains(strings.ToLower(p.Title), needle) }
	abstract := func() bool {
		return p.Abstract != nil && strings.Contains(strings.ToLower(*p.Abstract), needle)
	}
	authors := func() bool { return contains(p.Authors, f.Text) }
	keywords := func() bool { return contains(p.Keywords, f.Text) }

	switch f.Scope {
	case ScopeTitle:
		return title()
	case ScopeAbstract:
		return abstract()
	case ScopeAuthors:
		return authors()
	case ScopeKeywords:
		return keywords()
	default:
		return title() || abstract() || authors() || keywords()
	}
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}

	return false
}

// Less 报告在 q 的排序下 a 是否排在 b 之前.
// 相等时按 ID 升序（即插入顺序），year 为空的记录总是排在最后.
func (q Query) Less(a, b *Paper) bool {
	c := 0

	switch q.SortBy {
	case SortTitle:
		c = strings.Compare(a.Title, b.Title)
	case SortYear:
		switch {
		case a.Year == nil && b.Year == nil:
			c = 0
		case a.Year == nil:
			return false
		case b.Year == nil:
			return true
		default:
			c = *a.Year - *b.Year
		}
	default:
		c = a.CreatedAt.Compare(b.CreatedAt)
	}

	if c != 0 {
		if q.Order == SortAsc {
			return c < 0
		}

		return c > 0
	}

	return a.ID < b.ID
}
