package configs

import (
	"time"

	"github.com/spf13/viper"
)

// ServerConfig HTTP 服务配置.
type ServerConfig struct {
	Port int    `mapstructure:"port" rule:"min=1,max=65535"`
	Host string `mapstructure:"host" rule:"ip"`
	// ReloadConfig 配置文件变更时热重载
	ReloadConfig bool `mapstructure:"reload_config"`
	// Debug 打开 gin 调试模式与 Swagger 文档
	Debug bool `mapstructure:"debug"`
	// Timeout 读写超时，单位秒
	Timeout int `mapstructure:"timeout" rule:"min=1,max=300"`
	// ShutdownTimeout 收到退出信号后等待在途请求的最长时间
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	Gzip            bool          `mapstructure:"gzip"`
}

// GetTimeoutDuration 返回读写超时.
func (s *ServerConfig) GetTimeoutDuration() time.Duration {
	return time.Duration(s.Timeout) * time.Second
}

func (s *ServerConfig) setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.reload_config", false)
	v.SetDefault("server.debug", false)
	// 上传 10MB PDF 需要留足写入时间
	v.SetDefault("server.timeout", 60)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)
	v.SetDefault("server.gzip", true)
}
