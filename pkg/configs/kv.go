package configs

import (
	"time"

	"github.com/spf13/viper"
)

// KVConfig 搜索缓存使用的键值存储.
type KVConfig struct {
	Type string `mapstructure:"type" rule:"oneof=memory redis"`
	// Prefix 缓存键与代数计数器的公共前缀，多个实例共享 redis 时需一致
	Prefix string        `mapstructure:"prefix"`
	Redis  RedisKVConfig `mapstructure:"redis"`
}

// RedisKVConfig Redis 连接参数.
type RedisKVConfig struct {
	Addr        string        `mapstructure:"addr"         rule:"hostname_port"`
	Password    string        `mapstructure:"password"`
	DB          int           `mapstructure:"db"           rule:"min=0,max=15"`
	DialTimeout time.Duration `mapstructure:"dial_timeout"`
}

// GetKVType 返回当前配置的 KV 类型.
func (c *KVConfig) GetKVType() string {
	return c.Type
}

func (c *KVConfig) setDefaults(v *viper.Viper) {
	v.SetDefault("kv.type", "memory")
	v.SetDefault("kv.prefix", "pv:")

	v.SetDefault("kv.redis.addr", "localhost:6379")
	v.SetDefault("kv.redis.password", "")
	v.SetDefault("kv.redis.db", 0)
	v.SetDefault("kv.redis.dial_timeout", 5*time.Second)
}
