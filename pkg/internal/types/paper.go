package types

import (
	"github.com/yeisme/papervault/pkg/internal/errs"
	"github.com/yeisme/papervault/pkg/internal/model"
)

// Pagination 分页信息.
type Pagination struct {
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	TotalCount int64 `json:"totalCount"`
	TotalPages int   `json:"totalPages"`
	HasNext    bool  `json:"hasNext"`
	HasPrev    bool  `json:"hasPrev"`
}

// NewPagination 由页码、页大小与总数计算分页信息.
func NewPagination(page, limit int, total int64) Pagination {
	p := Pagination{Page: page, Limit: limit, TotalCount: total}
	if limit > 0 {
		p.TotalPages = int((total + int64(limit) - 1) / int64(limit))
	}

	p.HasNext = int64(page)*int64(limit) < total
	p.HasPrev = page > 1

	return p
}

// SearchInfo 检索接口回显的检索条件.
type SearchInfo struct {
	Query       string      `json:"query"`
	Field       model.Scope `json:"field"`
	ResultCount int64       `json:"resultCount"`
}

// SearchResult 列表与检索的响应体.
type SearchResult struct {
	Papers     []model.Paper `json:"papers"`
	Pagination Pagination    `json:"pagination"`
	SearchInfo *SearchInfo   `json:"searchInfo,omitempty"`
}

// PaperResponse 单篇论文.
type PaperResponse struct {
	Paper *model.Paper `json:"paper"`
}

// UploadPaperResponse 上传成功.
type UploadPaperResponse struct {
	Message string       `json:"message"`
	Paper   *model.Paper `json:"paper"`
}

// MessageResponse 只带提示信息的响应.
type MessageResponse struct {
	Message string `json:"message"`
}

// ErrorResponse 统一错误响应.
type ErrorResponse struct {
	Error   string            `json:"error"`
	Code    errs.Category     `json:"code"`
	Details []errs.FieldError `json:"details,omitempty"`
}

// ReconcileReport 一次孤儿对象清理的结果.
type ReconcileReport struct {
	Scanned    int      `json:"scanned"`
	Candidates int      `json:"candidates"`
	Removed    []string `json:"removed"`
	Failed     []string `json:"failed,omitempty"`
}
