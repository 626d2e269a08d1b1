// Package handle 提供 HTTP 请求处理器的实现.
package handle

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	ctxPkg "github.com/yeisme/papervault/pkg/context"
	"github.com/yeisme/papervault/pkg/internal/errs"
	"github.com/yeisme/papervault/pkg/internal/types"
	"github.com/yeisme/papervault/pkg/log"
)

// StatusFor 错误类别对应的 HTTP 状态码.
func StatusFor(c errs.Category) int {
	switch c {
	case errs.CategoryValidation:
		return http.StatusBadRequest
	case errs.CategoryNotFound:
		return http.StatusNotFound
	case errs.CategoryStorage:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// writeError 按错误类别输出统一错误体. fallback 用于存储与数据库类错误，不暴露内部细节.
func writeError(c *gin.Context, err error, fallback string) {
	category := errs.CategoryOf(err)
	body := types.ErrorResponse{Code: category, Error: fallback}

	var ve *errs.ValidationError

	switch {
	case errors.As(err, &ve):
		body.Error = "Validation failed"
		if onlyFileErrors(ve) {
			body.Error = "File validation failed"
		}

		body.Details = ve.Fields
	case category == errs.CategoryNotFound:
		body.Error = "Paper not found"
	}

	status := StatusFor(category)
	if status >= http.StatusInternalServerError {
		logger := ctxPkg.WithTraceContext(c.Request.Context(), log.Component("http"))
		logger.Error().Err(err).Str("code", string(category)).Msg(fallback)
		_ = c.Error(err)
	}

	c.AbortWithStatusJSON(status, body)
}

func onlyFileErrors(ve *errs.ValidationError) bool {
	for _, f := range ve.Fields {
		if f.Field != "file" {
			return false
		}
	}

	return len(ve.Fields) > 0
}

// optionalQuery 读取查询参数，缺失或为空时返回 nil.
func optionalQuery(c *gin.Context, key string) *string {
	v, ok := c.GetQuery(key)
	if !ok || v == "" {
		return nil
	}

	return &v
}

// optionalForm 读取表单字段，缺失时返回 nil.
func optionalForm(c *gin.Context, key string) *string {
	v, ok := c.GetPostForm(key)
	if !ok {
		return nil
	}

	return &v
}
