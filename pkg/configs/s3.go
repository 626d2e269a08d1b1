package configs

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// StorageBackend 对象存储后端类型.
type StorageBackend string

const (
	StorageMinIO  StorageBackend = "minio"  // minio-go 客户端，兼容任意 S3 服务
	StorageS3     StorageBackend = "s3"     // aws-sdk-go-v2 客户端
	StorageMemory StorageBackend = "memory" // 进程内存，仅用于开发与测试
)

// S3Config 对象存储配置.
type S3Config struct {
	Backend         StorageBackend `mapstructure:"backend"           rule:"oneof=minio s3 memory"`
	Endpoint        string         `mapstructure:"endpoint"`
	AccessKeyID     string         `mapstructure:"access_key_id"`
	SecretAccessKey string         `mapstructure:"secret_access_key"`
	UseSSL          bool           `mapstructure:"use_ssl"`
	UsePathStyle    bool           `mapstructure:"use_path_style"`
	BucketName      string         `mapstructure:"bucket_name"       rule:"required"`
	Region          string         `mapstructure:"region"`
	KeyPrefix       string         `mapstructure:"key_prefix"`
	// PublicBaseURL 对外访问地址前缀，为空时使用 <endpoint>/<bucket>
	PublicBaseURL string `mapstructure:"public_base_url"`
	// PublicRead 是否为 KeyPrefix 下的对象设置匿名只读策略
	PublicRead bool `mapstructure:"public_read"`
}

const (
	DefaultS3Backend         = StorageMinIO     // 默认后端
	DefaultS3Endpoint        = "localhost:9000" // 默认S3端点
	DefaultS3AccessKeyID     = "minioadmin"     // 默认访问密钥ID
	DefaultS3SecretAccessKey = "minioadmin"     // 默认秘密访问密钥
	DefaultS3UseSSL          = false            // 默认是否使用SSL
	DefaultS3BucketName      = "papervault"     // 默认存储桶名称
	DefaultS3Region          = "us-east-1"      // 默认区域
	DefaultS3KeyPrefix       = "papers/"        // 论文对象的键前缀
)

// GetEndpointURL 获取完整的端点URL.
func (c *S3Config) GetEndpointURL() string {
	if strings.HasPrefix(c.Endpoint, "http://") || strings.HasPrefix(c.Endpoint, "https://") {
		return strings.TrimRight(c.Endpoint, "/")
	}

	scheme := "http"
	if c.UseSSL {
		scheme = "https"
	}

	return fmt.Sprintf("%s://%s", scheme, c.Endpoint)
}

// PublicURL 返回对象的公开访问地址.
func (c *S3Config) PublicURL(key string) string {
	if c.PublicBaseURL != "" {
		return strings.TrimRight(c.PublicBaseURL, "/") + "/" + key
	}

	return fmt.Sprintf("%s/%s/%s", c.GetEndpointURL(), c.BucketName, key)
}

// setDefaults 设置 S3 配置的默认值.
func (c *S3Config) setDefaults(v *viper.Viper) {
	v.SetDefault("storage.backend", DefaultS3Backend)
	v.SetDefault("storage.endpoint", DefaultS3Endpoint)
	v.SetDefault("storage.access_key_id", DefaultS3AccessKeyID)
	v.SetDefault("storage.secret_access_key", DefaultS3SecretAccessKey)
	v.SetDefault("storage.use_ssl", DefaultS3UseSSL)
	v.SetDefault("storage.use_path_style", true)
	v.SetDefault("storage.bucket_name", DefaultS3BucketName)
	v.SetDefault("storage.region", DefaultS3Region)
	v.SetDefault("storage.key_prefix", DefaultS3KeyPrefix)
	v.SetDefault("storage.public_base_url", "")
	v.SetDefault("storage.public_read", true)
}
