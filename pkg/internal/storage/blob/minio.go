package blob

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	minio "github.com/minio/minio-go/v7"

	"github.com/yeisme/papervault/pkg/configs"
	"github.com/yeisme/papervault/pkg/internal/errs"
	s3c "github.com/yeisme/papervault/pkg/internal/storage/s3"
)

// MinioStore 基于 minio-go 的对象存储.
type MinioStore struct {
	client *s3c.Client
	cfg    configs.S3Config
	prefix string
}

// NewMinioStore 使用已初始化的 minio 客户端创建 Store.
func NewMinioStore(client *s3c.Client) *MinioStore {
	cfg := client.Config()

	return &MinioStore{client: client, cfg: cfg, prefix: normalizePrefix(cfg.KeyPrefix)}
}

func (s *MinioStore) Upload(ctx context.Context, data []byte, proposedName, mimeType string) (*ObjectRef, error) {
	key := NewKey(s.prefix, proposedName)

	_, err := s.client.PutObject(ctx, s.cfg.BucketName, key, bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: mimeType})
	if err != nil {
		return nil, errs.Storage("blob.upload", fmt.Errorf("put object %s: %w", key, err))
	}

	// 以 Stat 结果为准，确认写入已持久化
	info, err := s.client.StatObject(ctx, s.cfg.BucketName, key, minio.StatObjectOptions{})
	if err != nil {
		return nil, errs.Storage("blob.upload", fmt.Errorf("confirm object %s: %w", key, err))
	}

	return &ObjectRef{
		Key:         key,
		URL:         s.cfg.PublicURL(key),
		Size:        info.Size,
		ContentType: info.ContentType,
		ETag:        strings.Trim(info.ETag, "\""),
	}, nil
}

func (s *MinioStore) Delete(ctx context.Context, key string) error {
	err := s.client.RemoveObject(ctx, s.cfg.BucketName, key, minio.RemoveObjectOptions{})
	if err != nil && !isNoSuchKey(err) {
		return errs.Storage("blob.delete", fmt.Errorf("remove object %s: %w", key, err))
	}

	return nil
}

func (s *MinioStore) FetchMetadata(ctx context.Context, key string) (*ObjectMetadata, error) {
	info, err := s.client.StatObject(ctx, s.cfg.BucketName, key, minio.StatObjectOptions{})
	if err != nil {
		if isNoSuchKey(err) {
			return nil, errs.NotFound("blob.fetch_metadata", fmt.Errorf("object %s: %w", key, errs.ErrNotFound))
		}

		return nil, errs.Storage("blob.fetch_metadata", fmt.Errorf("stat object %s: %w", key, err))
	}

	return &ObjectMetadata{
		Key:          key,
		Size:         info.Size,
		ContentType:  info.ContentType,
		ETag:         strings.Trim(info.ETag, "\""),
		LastModified: info.LastModified,
	}, nil
}

func (s *MinioStore) List(ctx context.Context, prefix string) ([]ObjectMetadata, error) {
	out := make([]ObjectMetadata, 0)

	for obj := range s.client.ListObjects(ctx, s.cfg.BucketName, minio.ListObjectsOptions{Prefix: prefix, Recursive: true}) {
		if obj.Err != nil {
			return nil, errs.Storage("blob.list", fmt.Errorf("list objects %s: %w", prefix, obj.Err))
		}

		if strings.HasSuffix(obj.Key, "/") {
			continue
		}

		out = append(out, ObjectMetadata{
			Key:          obj.Key,
			Size:         obj.Size,
			ContentType:  obj.ContentType,
			ETag:         strings.Trim(obj.ETag, "\""),
			LastModified: obj.LastModified,
		})
	}

	return out, nil
}

func (s *MinioStore) Prefix() string { return s.prefix }

func (s *MinioStore) HealthCheck(ctx context.Context) error {
	if err := s.client.HealthCheck(ctx); err != nil {
		return errs.Storage("blob.health", err)
	}

	return nil
}

func isNoSuchKey(err error) bool {
	code := minio.ToErrorResponse(err).Code
	return code == "NoSuchKey" || code == "NotFound"
}
