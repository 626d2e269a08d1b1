// Package storage 聚合论文库依赖的全部存储资源：元数据库、对象存储、KV 与消息队列.
//
// Example:
//
//	mgr, err := storage.New(ctx, configs.GetConfig())
//	if err != nil {
//		return err
//	}
//	defer mgr.Close()
//
//	papers := repository.NewGormRepository(mgr.DB)
//	blobs := mgr.Blob
package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/yeisme/papervault/pkg/configs"
	"github.com/yeisme/papervault/pkg/internal/storage/blob"
	dbc "github.com/yeisme/papervault/pkg/internal/storage/db"
	"github.com/yeisme/papervault/pkg/internal/storage/kv"
	"github.com/yeisme/papervault/pkg/internal/storage/mq"
	s3c "github.com/yeisme/papervault/pkg/internal/storage/s3"
	nlog "github.com/yeisme/papervault/pkg/log"
)

// Manager 聚合所有存储资源. MQ 仅在事件开启时初始化.
type Manager struct {
	DB   *dbc.Client
	Blob blob.Store
	KV   *kv.Client
	MQ   *mq.Client

	// S3 仅在 minio 后端下非空
	S3 *s3c.Client
}

// New 按配置初始化全部存储，任一失败都会关闭已建立的连接.
func New(ctx context.Context, cfg *configs.AppConfig) (m *Manager, err error) {
	m = &Manager{}

	defer func() {
		if err != nil {
			_ = m.Close()
			m = nil
		}
	}()

	if m.DB, err = dbc.New(ctx, &cfg.DB, cfg.Metrics.Enabled); err != nil {
		return nil, fmt.Errorf("init db: %w", err)
	}

	if m.Blob, err = m.openBlob(ctx, &cfg.Storage); err != nil {
		return nil, fmt.Errorf("init object storage: %w", err)
	}

	if m.KV, err = kv.New(ctx, &cfg.KV); err != nil {
		return nil, fmt.Errorf("init kv: %w", err)
	}

	if cfg.Events.Enabled {
		if m.MQ, err = mq.New(ctx, &cfg.MQ, cfg.Metrics.Enabled); err != nil {
			return nil, fmt.Errorf("init mq: %w", err)
		}
	}

	nlog.Logger().Info().
		Str("db", cfg.DB.GetDBType()).
		Str("storage", string(cfg.Storage.Backend)).
		Str("kv", string(m.KV.Type())).
		Bool("events", cfg.Events.Enabled).
		Msg("storage manager initialized")

	return m, nil
}

func (m *Manager) openBlob(ctx context.Context, cfg *configs.S3Config) (blob.Store, error) {
	switch cfg.Backend {
	case configs.StorageS3:
		return blob.NewS3Store(ctx, cfg)
	case configs.StorageMemory:
		return blob.NewMemoryStore(cfg.PublicURL(""), blob.WithMemoryPrefix(cfg.KeyPrefix)), nil
	case configs.StorageMinIO, "":
		cli, err := s3c.New(ctx, cfg)
		if err != nil {
			return nil, err
		}

		m.S3 = cli

		return blob.NewMinioStore(cli), nil
	default:
		return nil, fmt.Errorf("unsupported storage backend: %s", cfg.Backend)
	}
}

// Close 释放全部连接.
func (m *Manager) Close() error {
	if m == nil {
		return nil
	}

	var errList []error

	if m.MQ != nil {
		errList = append(errList, m.MQ.Close())
	}

	if m.KV != nil {
		errList = append(errList, m.KV.Close())
	}

	if m.S3 != nil {
		errList = append(errList, m.S3.Close())
	}

	if m.DB != nil {
		errList = append(errList, m.DB.Close())
	}

	return errors.Join(errList...)
}
