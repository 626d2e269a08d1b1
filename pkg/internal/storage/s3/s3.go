// Package s3 处理基于 minio-go 的 S3 客户端初始化.
package s3

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/bytedance/sonic"
	minio "github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/yeisme/papervault/pkg/configs"
	nlog "github.com/yeisme/papervault/pkg/log"
)

// Client 包装 MinIO 客户端.
type Client struct {
	*minio.Client
	cfg configs.S3Config
}

// New 初始化 MinIO 客户端，确保存储桶存在，并按配置为论文前缀开放匿名读.
func New(ctx context.Context, cfg *configs.S3Config) (*Client, error) {
	endpoint := cfg.Endpoint
	secure := cfg.UseSSL
	// 允许用户传完整 schema endpoint（http:// 或 https://）
	if u, err := url.Parse(endpoint); err == nil && u.Host != "" {
		endpoint = u.Host
		secure = u.Scheme == "https"
	}

	cli, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: secure,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	cli.SetAppInfo(configs.AppName, configs.AppVersion)

	c := &Client{Client: cli, cfg: *cfg}

	if err := c.ensureBucket(ctx); err != nil {
		return nil, err
	}

	if cfg.PublicRead {
		if err := c.ensurePublicRead(ctx); err != nil {
			return nil, err
		}
	}

	nlog.Logger().Info().Str("endpoint", cfg.Endpoint).Str("bucket", cfg.BucketName).Msg("s3 connected")

	return c, nil
}

func (c *Client) ensureBucket(ctx context.Context) error {
	bkt := c.cfg.BucketName

	exists, err := c.BucketExists(ctx, bkt)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", bkt, err)
	}

	if exists {
		return nil
	}

	if err := c.MakeBucket(ctx, bkt, minio.MakeBucketOptions{Region: c.cfg.Region}); err != nil {
		return fmt.Errorf("create bucket %s: %w", bkt, err)
	}

	nlog.Logger().Info().Str("bucket", bkt).Msg("bucket created")

	return nil
}

type policyStatement struct {
	Effect    string              `json:"Effect"`
	Principal map[string][]string `json:"Principal"`
	Action    []string            `json:"Action"`
	Resource  []string            `json:"Resource"`
}

type bucketPolicy struct {
	Version   string            `json:"Version"`
	Statement []policyStatement `json:"Statement"`
}

// PublicReadPolicy 生成允许匿名读取 bucket/prefix* 的策略文档.
func PublicReadPolicy(bucket, prefix string) (string, error) {
	p := bucketPolicy{
		Version: "2012-10-17",
		Statement: []policyStatement{{
			Effect:    "Allow",
			Principal: map[string][]string{"AWS": {"*"}},
			Action:    []string{"s3:GetObject"},
			Resource:  []string{fmt.Sprintf("arn:aws:s3:::%s/%s*", bucket, strings.TrimLeft(prefix, "/"))},
		}},
	}

	b, err := sonic.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("marshal bucket policy: %w", err)
	}

	return string(b), nil
}

func (c *Client) ensurePublicRead(ctx context.Context) error {
	policy, err := PublicReadPolicy(c.cfg.BucketName, c.cfg.KeyPrefix)
	if err != nil {
		return err
	}

	if err := c.SetBucketPolicy(ctx, c.cfg.BucketName, policy); err != nil {
		return fmt.Errorf("set public read policy on %s: %w", c.cfg.BucketName, err)
	}

	return nil
}

// HealthCheck 通过检查存储桶验证连接.
func (c *Client) HealthCheck(ctx context.Context) error {
	ok, err := c.BucketExists(ctx, c.cfg.BucketName)
	if err != nil {
		return err
	}

	if !ok {
		return fmt.Errorf("bucket %s not found", c.cfg.BucketName)
	}

	return nil
}

// Close 关闭 S3 客户端连接（无实际操作，接口兼容）.
func (c *Client) Close() error {
	return nil
}

// Config 返回客户端使用的配置.
func (c *Client) Config() configs.S3Config {
	return c.cfg
}
