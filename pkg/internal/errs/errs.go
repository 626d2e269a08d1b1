// Package errs 定义论文库对外暴露的错误分类.
//
// 每个失败都归入 VALIDATION_ERROR、NOT_FOUND、STORAGE_ERROR、DATABASE_ERROR 之一，
// 调用方通过 CategoryOf 或 errors.As 判断，不解析错误文本.
package errs

import (
	"errors"
	"fmt"
	"strings"
)

// Category 错误类别.
type Category string

const (
	CategoryValidation Category = "VALIDATION_ERROR"
	CategoryNotFound   Category = "NOT_FOUND"
	CategoryStorage    Category = "STORAGE_ERROR"
	CategoryDatabase   Category = "DATABASE_ERROR"
	CategoryInternal   Category = "INTERNAL_ERROR"
)

// FieldError 单个字段的校验失败.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError 携带一个或多个字段错误.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return "validation failed"
	}

	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+": "+f.Message)
	}

	return "validation failed: " + strings.Join(parts, "; ")
}

// Message 返回第一条字段错误的描述.
func (e *ValidationError) Message() string {
	if len(e.Fields) == 0 {
		return "Validation failed"
	}

	return e.Fields[0].Message
}

// Invalid 构造单字段的 ValidationError.
func Invalid(field, message string) *ValidationError {
	return &ValidationError{Fields: []FieldError{{Field: field, Message: message}}}
}

// Error 带类别与操作名的包装错误.
type Error struct {
	Category Category
	Op       string
	Err      error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Category)
	}

	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// NotFound 资源不存在.
func NotFound(op string, err error) error {
	return &Error{Category: CategoryNotFound, Op: op, Err: err}
}

// Storage 对象存储失败.
func Storage(op string, err error) error {
	return &Error{Category: CategoryStorage, Op: op, Err: err}
}

// Database 元数据存储失败.
func Database(op string, err error) error {
	return &Error{Category: CategoryDatabase, Op: op, Err: err}
}

// ErrNotFound 哨兵错误，供底层存储标记记录或对象不存在.
var ErrNotFound = errors.New("not found")

// CategoryOf 返回错误的类别，无法识别时为 INTERNAL_ERROR.
func CategoryOf(err error) Category {
	if err == nil {
		return ""
	}

	var ve *ValidationError
	if errors.As(err, &ve) {
		return CategoryValidation
	}

	var ce *Error
	if errors.As(err, &ce) {
		return ce.Category
	}

	if errors.Is(err, ErrNotFound) {
		return CategoryNotFound
	}

	return CategoryInternal
}

// Is 判断错误是否属于指定类别.
func Is(err error, c Category) bool {
	return CategoryOf(err) == c
}
