package configs

import "github.com/spf13/viper"

// EventsConfig 控制事件发布的开关（全局与分主题）。
// 总开关关闭时不会建立 MQ 连接.
type EventsConfig struct {
	Enabled bool              `mapstructure:"enabled"` // 总开关
	Paper   PaperEventsConfig `mapstructure:"paper"`
}

// PaperEventsConfig 论文领域的事件开关。
type PaperEventsConfig struct {
	Created       bool `mapstructure:"created"`
	Deleted       bool `mapstructure:"deleted"`
	OrphanRemoved bool `mapstructure:"orphan_removed"`
}

func (c *EventsConfig) setDefaults(v *viper.Viper) {
	v.SetDefault("events.enabled", false)

	v.SetDefault("events.paper.created", true)
	v.SetDefault("events.paper.deleted", true)
	// 清理事件仅用于审计，默认关闭
	v.SetDefault("events.paper.orphan_removed", false)
}
