package config

import (
	"fmt"
	"path/filepath"
	"reflect"
	"strconv"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// envBindings 保留原站点使用的环境变量名，部署时无需改写密钥配置。
var envBindings = map[string]string{
	"Cache.RedisURL":             "REDIS_URL",
	"Cache.EnableFile":           "ENABLE_FILE_CACHE",
	"Notion.Token":               "NOTION_TOKEN",
	"Invalidation.CacheSecret":   "CACHE_SECRET",
	"Invalidation.CronSecret":    "CRON_SECRET",
	"Invalidation.WebhookSecret": "NOTION_WEBHOOK_SECRET",
}

// DefaultRevalidatePaths 是 webhook 与 CLI 触发重新生成的固定路由。
var DefaultRevalidatePaths = []string{"/", "/archive", "/tag", "/category"}

// Load 读取并解析 TOML 配置文件，同时注入默认值、环境变量覆盖与校验逻辑。
func Load(path string) (*Config, error) {
	if path == "" {
		path = "config.toml"
	}

	v := viper.New()
	v.SetConfigFile(path)
	setDefaults(v)
	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("绑定环境变量失败: %w", err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("读取配置失败: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		durationDecodeHook(),
		mapstructure.StringToSliceHookFunc(","),
	))); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if cfg.Cache.StoragePath != "" {
		absStorage, err := filepath.Abs(cfg.Cache.StoragePath)
		if err != nil {
			return nil, fmt.Errorf("无法解析缓存目录: %w", err)
		}
		cfg.Cache.StoragePath = absStorage
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ListenPort", 5000)
	v.SetDefault("LogLevel", "info")
	v.SetDefault("LogFilePath", "")
	v.SetDefault("LogMaxSize", 100)
	v.SetDefault("LogMaxBackups", 10)
	v.SetDefault("LogCompress", true)
	v.SetDefault("MaxRetries", 3)
	v.SetDefault("InitialBackoff", "1s")
	v.SetDefault("UpstreamTimeout", "30s")

	v.SetDefault("Cache.EnableMemory", true)
	v.SetDefault("Cache.EnableFile", false)
	v.SetDefault("Cache.StoragePath", "./storage")
	v.SetDefault("Cache.RedisURL", "")
	v.SetDefault("Cache.TTL", "24h")
	v.SetDefault("Cache.Order", []string{TierMemory, TierRedis, TierFile})
	v.SetDefault("Cache.DedupeFetch", true)

	v.SetDefault("Notion.APIBase", "https://www.notion.so/api/v3")
	v.SetDefault("Notion.ChunkLimit", 100)
	v.SetDefault("Notion.BatchSize", 100)
	v.SetDefault("Notion.SignedOrigin", "https://www.notion.so")

	v.SetDefault("Invalidation.RevalidatePaths", DefaultRevalidatePaths)
}

// applyDefaults 兜底处理零值字段，测试中直接构造 Config 时同样适用。
func applyDefaults(cfg *Config) {
	g := &cfg.Global
	if g.ListenPort == 0 {
		g.ListenPort = 5000
	}
	if g.LogLevel == "" {
		g.LogLevel = "info"
	}
	if g.InitialBackoff.DurationValue() == 0 {
		g.InitialBackoff = Duration(time.Second)
	}
	if g.UpstreamTimeout.DurationValue() == 0 {
		g.UpstreamTimeout = Duration(30 * time.Second)
	}

	if cfg.Cache.TTL.DurationValue() < 0 {
		cfg.Cache.TTL = Duration(0)
	}
	if cfg.Notion.ChunkLimit <= 0 {
		cfg.Notion.ChunkLimit = 100
	}
	if cfg.Notion.BatchSize <= 0 {
		cfg.Notion.BatchSize = 100
	}
	if len(cfg.Invalidation.RevalidatePaths) == 0 {
		cfg.Invalidation.RevalidatePaths = append([]string(nil), DefaultRevalidatePaths...)
	}
}

func durationDecodeHook() mapstructure.DecodeHookFunc {
	targetType := reflect.TypeOf(Duration(0))

	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != targetType {
			return data, nil
		}

		switch v := data.(type) {
		case string:
			if v == "" {
				return Duration(0), nil
			}
			if parsed, err := time.ParseDuration(v); err == nil {
				return Duration(parsed), nil
			}
			if seconds, err := strconv.ParseFloat(v, 64); err == nil {
				return Duration(time.Duration(seconds * float64(time.Second))), nil
			}
			return nil, fmt.Errorf("无法解析 Duration 字段: %s", v)
		case int:
			return Duration(time.Duration(v) * time.Second), nil
		case int64:
			return Duration(time.Duration(v) * time.Second), nil
		case float64:
			return Duration(time.Duration(v * float64(time.Second))), nil
		case time.Duration:
			return Duration(v), nil
		case Duration:
			return v, nil
		default:
			return nil, fmt.Errorf("不支持的 Duration 类型: %T", v)
		}
	}
}
