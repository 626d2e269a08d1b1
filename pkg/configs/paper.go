package configs

import (
	"time"

	"github.com/spf13/viper"
)

const (
	DefaultMaxFileSize        = 10 * 1024 * 1024 // 10 MiB
	DefaultMaxTitleLength     = 200
	DefaultMaxAbstractLength  = 2000
	DefaultMaxQueryLength     = 100
	DefaultSearchCacheTTL     = 30 * time.Second
	DefaultReconcileCron      = "17 3 * * *"
	DefaultReconcileGraceTime = 24 * time.Hour
)

// PaperConfig 论文上传、检索与对账相关配置.
type PaperConfig struct {
	MaxFileSize       int64         `mapstructure:"max_file_size"       rule:"min=1"`
	MaxTitleLength    int           `mapstructure:"max_title_length"    rule:"min=1"`
	MaxAbstractLength int           `mapstructure:"max_abstract_length" rule:"min=1"`
	MaxQueryLength    int           `mapstructure:"max_query_length"    rule:"min=1"`
	SearchCacheTTL    time.Duration `mapstructure:"search_cache_ttl"`
	// ReconcileEnabled 启用孤儿对象清理任务
	ReconcileEnabled bool          `mapstructure:"reconcile_enabled"`
	ReconcileCron    string        `mapstructure:"reconcile_cron"`
	ReconcileGrace   time.Duration `mapstructure:"reconcile_grace"`
}

func (c *PaperConfig) setDefaults(v *viper.Viper) {
	v.SetDefault("paper.max_file_size", DefaultMaxFileSize)
	v.SetDefault("paper.max_title_length", DefaultMaxTitleLength)
	v.SetDefault("paper.max_abstract_length", DefaultMaxAbstractLength)
	v.SetDefault("paper.max_query_length", DefaultMaxQueryLength)
	v.SetDefault("paper.search_cache_ttl", DefaultSearchCacheTTL)
	v.SetDefault("paper.reconcile_enabled", true)
	v.SetDefault("paper.reconcile_cron", DefaultReconcileCron)
	v.SetDefault("paper.reconcile_grace", DefaultReconcileGraceTime)
}
