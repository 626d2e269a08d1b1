package configs

import (
	"time"

	"github.com/spf13/viper"
)

// CircuitBreakerConfig HTTP 入口熔断，5xx 响应计为失败.
type CircuitBreakerConfig struct {
	Enabled bool `mapstructure:"enabled"`
	// FailureRate 窗口内失败比例达到该值即打开
	FailureRate float64 `mapstructure:"failure_rate" rule:"gte=0,lte=1"`
	MinRequests uint32  `mapstructure:"min_requests"`
	// Interval 闭合状态下计数清零的周期
	Interval time.Duration `mapstructure:"interval"`
	// OpenTimeout 打开后转为半开前的等待时间
	OpenTimeout    time.Duration `mapstructure:"open_timeout"`
	HalfOpenProbes uint32        `mapstructure:"half_open_probes"`
}

func (c *CircuitBreakerConfig) setDefaults(v *viper.Viper) {
	v.SetDefault("circuit_breaker.enabled", false)
	v.SetDefault("circuit_breaker.failure_rate", 0.5)
	v.SetDefault("circuit_breaker.min_requests", 20)
	v.SetDefault("circuit_breaker.interval", time.Minute)
	v.SetDefault("circuit_breaker.open_timeout", 30*time.Second)
	v.SetDefault("circuit_breaker.half_open_probes", 5)
}
