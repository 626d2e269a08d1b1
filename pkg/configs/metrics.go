package configs

import (
	"github.com/spf13/viper"
)

// MetricsConfig Prometheus 指标配置. 指标挂载在主 HTTP 服务的 Path 上.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
	// RuntimeMetrics 同时导出 Go 运行时与进程指标
	RuntimeMetrics bool `mapstructure:"runtime_metrics"`
	// Pprof 在 /debug/pprof 暴露性能剖析端点，仅用于排查
	Pprof bool `mapstructure:"pprof"`
	// Labels 附加到应用自身指标上的常量标签
	Labels map[string]string `mapstructure:"labels"`
}

func (c *MetricsConfig) setDefaults(v *viper.Viper) {
	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.path", "/metrics")
	v.SetDefault("metrics.runtime_metrics", true)
	v.SetDefault("metrics.pprof", false)
	v.SetDefault("metrics.labels", map[string]string{"service": AppName})
}
