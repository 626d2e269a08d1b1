// Package validate 将原始表单与查询参数规整为合法的论文草稿与检索条件.
//
// 上传校验收集全部字段错误后一次返回；检索参数校验遇到第一个错误即返回.
// 长度、范围与枚举规则统一交给 pkg/rule 执行，本包负责规整输入并翻译错误信息.
package validate

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/yeisme/papervault/pkg/configs"
	"github.com/yeisme/papervault/pkg/internal/errs"
	"github.com/yeisme/papervault/pkg/internal/model"
	"github.com/yeisme/papervault/pkg/rule"
)

const (
	minYear      = 1900
	defaultPage  = 1
	defaultLimit = 10
	maxLimit     = 50
)

var paperIDPattern = regexp.MustCompile(`^[a-zA-Z0-9-]+$`)

func init() {
	_ = rule.RegisterValidation("paperid", func(fl validator.FieldLevel) bool {
		return paperIDPattern.MatchString(fl.Field().String())
	})
	rule.RegisterAlias("search_scope", "oneof=all title authors abstract keywords")
	rule.RegisterAlias("sort_key", "oneof=createdAt title year")
	rule.RegisterAlias("sort_order", "oneof=asc desc")
}

// Validator 按配置的上限校验输入.
type Validator struct {
	limits configs.PaperConfig
	now    func() time.Time
}

// Option 配置 Validator.
type Option func(*Validator)

// WithClock 替换当前时间来源，用于年份上限计算.
func WithClock(now func() time.Time) Option {
	return func(v *Validator) { v.now = now }
}

// New 创建 Validator，limits 中未设置的项使用默认值.
func New(limits configs.PaperConfig, opts ...Option) *Validator {
	if limits.MaxFileSize <= 0 {
		limits.MaxFileSize = configs.DefaultMaxFileSize
	}

	if limits.MaxTitleLength <= 0 {
		limits.MaxTitleLength = configs.DefaultMaxTitleLength
	}

	if limits.MaxAbstractLength <= 0 {
		limits.MaxAbstractLength = configs.DefaultMaxAbstractLength
	}

	if limits.MaxQueryLength <= 0 {
		limits.MaxQueryLength = configs.DefaultMaxQueryLength
	}

	v := &Validator{limits: limits, now: time.Now}
	for _, opt := range opts {
		opt(v)
	}

	return v
}

// Limits 返回补全默认值后的限制.
func (v *Validator) Limits() configs.PaperConfig { return v.limits }

// File 上传文件的描述. Data 为完整内容；Size 为声明的字节数，仅在内容超出上限未被读入时使用.
type File struct {
	Name        string
	ContentType string
	Size        int64
	Data        []byte
}

// PaperFields 原始表单字段，nil 表示未提交.
type PaperFields struct {
	Title    *string
	Authors  *string
	Abstract *string
	Keywords *string
	Year     *string
}

// Draft 通过校验的论文草稿.
type Draft struct {
	Title    string
	Authors  []string
	Abstract *string
	Keywords []string
	Year     *int
	File     File
}

// ValidateFile 校验上传文件，返回全部违规项.
func (v *Validator) ValidateFile(f *File) []errs.FieldError {
	if f == nil {
		return []errs.FieldError{{Field: "file", Message: "File is required"}}
	}

	var out []errs.FieldError

	size := v.effectiveSize(f)

	if size <= 0 {
		out = append(out, errs.FieldError{Field: "file", Message: "File cannot be empty"})
	}

	if size > v.limits.MaxFileSize {
		out = append(out, errs.FieldError{
			Field:   "file",
			Message: fmt.Sprintf("File size must be less than %s", humanSize(v.limits.MaxFileSize)),
		})
	}

	if f.ContentType != model.MimeTypePDF {
		out = append(out, errs.FieldError{Field: "file", Message: "Only PDF files are allowed"})
	}

	return out
}

// effectiveSize 以实际内容长度为准. 只有超出上限、内容未被缓存时才采信声明的 Size.
func (v *Validator) effectiveSize(f *File) int64 {
	if n := int64(len(f.Data)); n > 0 || f.Size <= v.limits.MaxFileSize {
		return n
	}

	return f.Size
}

// ValidatePaper 规整并校验全部字段与文件，任何字段失败都不会返回 Draft.
func (v *Validator) ValidatePaper(in PaperFields, f *File) (*Draft, error) {
	var (
		d    Draft
		fail []errs.FieldError
	)

	d.Title = strings.TrimSpace(deref(in.Title))

	switch {
	case d.Title == "":
		fail = append(fail, errs.FieldError{Field: "title", Message: "Title is required"})
	case rule.ValidateVar(d.Title, fmt.Sprintf("max=%d", v.limits.MaxTitleLength)) != nil:
		fail = append(fail, errs.FieldError{
			Field:   "title",
			Message: fmt.Sprintf("Title must be less than %d characters", v.limits.MaxTitleLength),
		})
	}

	d.Authors = SplitList(deref(in.Authors))
	if len(d.Authors) == 0 {
		fail = append(fail, errs.FieldError{Field: "authors", Message: "At least one author is required"})
	}

	if abstract := strings.TrimSpace(deref(in.Abstract)); abstract != "" {
		if rule.ValidateVar(abstract, fmt.Sprintf("max=%d", v.limits.MaxAbstractLength)) != nil {
			fail = append(fail, errs.FieldError{
				Field:   "abstract",
				Message: fmt.Sprintf("Abstract must be less than %d characters", v.limits.MaxAbstractLength),
			})
		} else {
			d.Abstract = &abstract
		}
	}

	d.Keywords = SplitList(deref(in.Keywords))

	if raw := strings.TrimSpace(deref(in.Year)); raw != "" {
		year, err := strconv.Atoi(raw)
		switch {
		case err != nil:
			fail = append(fail, errs.FieldError{Field: "year", Message: "Year must be a number"})
		case rule.ValidateVar(year, fmt.Sprintf("gte=%d,lte=%d", minYear, v.now().Year()+1)) != nil:
			fail = append(fail, errs.FieldError{Field: "year", Message: "Year must be between 1900 and next year"})
		default:
			d.Year = &year
		}
	}

	fail = append(fail, v.ValidateFile(f)...)

	if len(fail) > 0 {
		return nil, &errs.ValidationError{Fields: fail}
	}

	d.File = *f

	return &d, nil
}

// SearchParams 原始检索参数，nil 表示未提交.
type SearchParams struct {
	Query     *string
	Field     *string
	Page      *string
	Limit     *string
	SortBy    *string
	SortOrder *string
}

// SearchSpec 规整后的检索条件.
type SearchSpec struct {
	Query     string          `json:"query"`
	Scope     model.Scope     `json:"field"`
	Page      int             `json:"page"`
	Limit     int             `json:"limit"`
	SortBy    model.SortKey   `json:"sortBy"`
	SortOrder model.SortOrder `json:"sortOrder"`
}

// Offset 跳过的记录数.
func (s SearchSpec) Offset() int {
	return (s.Page - 1) * s.Limit
}

// ValidateSearch 依次校验 query、field、page、limit、sortBy、sortOrder，
// 返回第一个失败的字段. 默认值只在参数缺失时生效.
func (v *Validator) ValidateSearch(in SearchParams) (*SearchSpec, error) {
	spec := SearchSpec{
		Scope:     model.ScopeAll,
		Page:      defaultPage,
		Limit:     defaultLimit,
		SortBy:    model.SortCreatedAt,
		SortOrder: model.SortDesc,
	}

	if in.Query != nil {
		spec.Query = strings.TrimSpace(*in.Query)
		if rule.ValidateVar(spec.Query, fmt.Sprintf("max=%d", v.limits.MaxQueryLength)) != nil {
			return nil, errs.Invalid("query", "Search query too long")
		}
	}

	if in.Field != nil {
		if rule.ValidateVar(*in.Field, "search_scope") != nil {
			return nil, errs.Invalid("field", "Field must be one of all, title, authors, abstract, keywords")
		}

		spec.Scope = model.Scope(*in.Field)
	}

	if in.Page != nil {
		page, err := strconv.Atoi(strings.TrimSpace(*in.Page))
		if err != nil {
			return nil, errs.Invalid("page", "Page must be a number")
		}

		if rule.ValidateVar(page, "gte=1") != nil {
			return nil, errs.Invalid("page", "Page must be at least 1")
		}

		spec.Page = page
	}

	if in.Limit != nil {
		limit, err := strconv.Atoi(strings.TrimSpace(*in.Limit))
		if err != nil {
			return nil, errs.Invalid("limit", "Limit must be a number")
		}

		switch rule.FailedTag(rule.ValidateVar(limit, fmt.Sprintf("gte=1,lte=%d", maxLimit))) {
		case "gte":
			return nil, errs.Invalid("limit", "Limit must be at least 1")
		case "lte":
			return nil, errs.Invalid("limit", fmt.Sprintf("Limit must be at most %d", maxLimit))
		}

		spec.Limit = limit
	}

	if in.SortBy != nil {
		if rule.ValidateVar(*in.SortBy, "sort_key") != nil {
			return nil, errs.Invalid("sortBy", "Sort field must be one of createdAt, title, year")
		}

		spec.SortBy = model.SortKey(*in.SortBy)
	}

	if in.SortOrder != nil {
		if rule.ValidateVar(*in.SortOrder, "sort_order") != nil {
			return nil, errs.Invalid("sortOrder", "Sort order must be asc or desc")
		}

		spec.SortOrder = model.SortOrder(*in.SortOrder)
	}

	return &spec, nil
}

// ValidatePaperID 校验论文 ID.
func (v *Validator) ValidatePaperID(raw string) (string, error) {
	if raw == "" {
		return "", errs.Invalid("id", "Paper ID is required")
	}

	if rule.ValidateVar(raw, "paperid") != nil {
		return "", errs.Invalid("id", "Invalid paper ID format")
	}

	return raw, nil
}

// SplitList 按逗号切分，去除首尾空白并丢弃空项，保持原有顺序.
func SplitList(raw string) []string {
	out := make([]string, 0)

	for _, part := range strings.Split(raw, ",") {
		if s := strings.TrimSpace(part); s != "" {
			out = append(out, s)
		}
	}

	return out
}

func deref(s *string) string {
	if s == nil {
		return ""
	}

	return *s
}

func humanSize(n int64) string {
	const mib = 1024 * 1024
	if n%mib == 0 {
		return fmt.Sprintf("%dMB", n/mib)
	}

	return fmt.Sprintf("%d bytes", n)
}
