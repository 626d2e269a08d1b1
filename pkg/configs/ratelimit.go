package configs

import "github.com/spf13/viper"

// RateLimitConfig 入口限流. Exempt 中的路径前缀不计入限额，默认放行健康检查与指标.
type RateLimitConfig struct {
	Enabled bool    `mapstructure:"enabled"`
	RPS     float64 `mapstructure:"rps"   rule:"gte=0"`
	Burst   int     `mapstructure:"burst" rule:"gte=0"`
	// Key 取值 global、ip 或 header:<Header-Name>
	Key    string   `mapstructure:"key"`
	Exempt []string `mapstructure:"exempt"`
}

func (c *RateLimitConfig) setDefaults(v *viper.Viper) {
	v.SetDefault("rate_limit.enabled", false)
	v.SetDefault("rate_limit.rps", 20.0)
	v.SetDefault("rate_limit.burst", 40)
	v.SetDefault("rate_limit.key", "ip")
	v.SetDefault("rate_limit.exempt", []string{"/api/v1/health/", "/metrics"})
}
