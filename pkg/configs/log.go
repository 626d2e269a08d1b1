package configs

import (
	"github.com/spf13/viper"
)

// 日志格式.
const (
	LogFormatConsole = "console"
	LogFormatJSON    = "json"
)

type (
	// LogConfig 日志相关配置. 文件输出始终为 JSON，Format 只影响标准错误输出.
	LogConfig struct {
		Level  string        `mapstructure:"level"  rule:"omitempty,oneof=trace debug info warn error"`
		Format string        `mapstructure:"format" rule:"omitempty,oneof=console json"`
		File   LogFileConfig `mapstructure:"file"`
	}

	// LogFileConfig 滚动日志文件，由 lumberjack 负责切分.
	LogFileConfig struct {
		Enabled    bool   `mapstructure:"enabled"`
		Path       string `mapstructure:"path"`
		MaxSizeMB  int    `mapstructure:"max_size_mb"`
		MaxBackups int    `mapstructure:"max_backups"`
		MaxAgeDays int    `mapstructure:"max_age_days"`
		Compress   bool   `mapstructure:"compress"`
	}
)

func (l *LogConfig) setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", LogFormatConsole)

	v.SetDefault("log.file.enabled", false)
	v.SetDefault("log.file.path", "logs/"+AppName+".log")
	v.SetDefault("log.file.max_size_mb", 100)
	v.SetDefault("log.file.max_backups", 7)
	v.SetDefault("log.file.max_age_days", 28)
	v.SetDefault("log.file.compress", true)
}
