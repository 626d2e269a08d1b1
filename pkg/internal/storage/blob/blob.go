// Package blob 封装论文 PDF 的对象存储读写.
//
// 对象键由本包生成，调用方只提供原始文件名用于推断扩展名.
// Upload 只在写入被确认且对象可公开读取后才返回引用；所有失败都归为 STORAGE_ERROR.
//
// 后端：
//   - minio: 基于 minio-go，复用 storage/s3 的客户端
//   - s3: 基于 aws-sdk-go-v2 与分段上传管理器
//   - memory: 进程内实现，用于测试与本地开发
package blob

import (
	"context"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ObjectRef 上传成功后的对象引用.
type ObjectRef struct {
	Key         string `json:"key"`
	URL         string `json:"url"`
	Size        int64  `json:"size"`
	ContentType string `json:"contentType"`
	ETag        string `json:"etag,omitempty"`
}

// ObjectMetadata 对象存储中的对象属性.
type ObjectMetadata struct {
	Key          string    `json:"key"`
	Size         int64     `json:"size"`
	ContentType  string    `json:"contentType"`
	ETag         string    `json:"etag,omitempty"`
	LastModified time.Time `json:"lastModified"`
}

// Store 对象存储适配器.
type Store interface {
	// Upload 写入对象并返回其公开引用，对象键由实现生成.
	Upload(ctx context.Context, data []byte, proposedName, mimeType string) (*ObjectRef, error)
	// Delete 删除对象，对象不存在时同样成功.
	Delete(ctx context.Context, key string) error
	// FetchMetadata 读取对象属性，对象不存在时返回 NOT_FOUND.
	FetchMetadata(ctx context.Context, key string) (*ObjectMetadata, error)
	// List 列出前缀下的全部对象.
	List(ctx context.Context, prefix string) ([]ObjectMetadata, error)
	// Prefix 论文对象所在的键前缀.
	Prefix() string
	// HealthCheck 检查后端是否可用.
	HealthCheck(ctx context.Context) error
}

const defaultExt = ".pdf"

// NewKey 生成 <prefix><uuid><ext>，ext 取自 proposedName 的小写扩展名，缺失或异常时为 .pdf.
func NewKey(prefix, proposedName string) string {
	return prefix + uuid.NewString() + extension(proposedName)
}

func extension(name string) string {
	ext := strings.ToLower(path.Ext(strings.ReplaceAll(name, "\\", "/")))
	if len(ext) < 2 || len(ext) > 10 {
		return defaultExt
	}

	for _, r := range ext[1:] {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') {
			return defaultExt
		}
	}

	return ext
}

// normalizePrefix 保证非空前缀以 / 结尾.
func normalizePrefix(p string) string {
	p = strings.TrimLeft(p, "/")
	if p != "" && !strings.HasSuffix(p, "/") {
		p += "/"
	}

	return p
}
