package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Duration 提供更灵活的反序列化能力，同时兼容纯秒整数与 Go Duration 字符串。
type Duration time.Duration

// UnmarshalText 使 Viper 可以识别诸如 "30s"、"5m" 或纯数字秒值等配置写法。
func (d *Duration) UnmarshalText(text []byte) error {
	raw := strings.TrimSpace(string(text))
	if raw == "" {
		*d = Duration(0)
		return nil
	}

	if parsed, err := time.ParseDuration(raw); err == nil {
		*d = Duration(parsed)
		return nil
	}

	if intVal, err := parseInt(raw); err == nil {
		*d = Duration(time.Duration(intVal) * time.Second)
		return nil
	}

	return fmt.Errorf("invalid duration value: %s", raw)
}

// DurationValue 返回真实的 time.Duration，便于调用方计算。
func (d Duration) DurationValue() time.Duration {
	return time.Duration(d)
}

// parseInt 支持十进制或 0x 前缀的十六进制字符串解析。
func parseInt(value string) (int64, error) {
	if strings.HasPrefix(value, "0x") || strings.HasPrefix(value, "0X") {
		return strconv.ParseInt(value, 0, 64)
	}
	return strconv.ParseInt(value, 10, 64)
}

// 缓存层名称，同时用于 Cache.Order 配置与诊断输出。
const (
	TierMemory = "memory"
	TierRedis  = "redis"
	TierFile   = "file"
)

// GlobalConfig 描述进程级运行参数：监听端口、日志与上游重试。
type GlobalConfig struct {
	ListenPort      int      `mapstructure:"ListenPort"`
	LogLevel        string   `mapstructure:"LogLevel"`
	LogFilePath     string   `mapstructure:"LogFilePath"`
	LogMaxSize      int      `mapstructure:"LogMaxSize"`
	LogMaxBackups   int      `mapstructure:"LogMaxBackups"`
	LogCompress     bool     `mapstructure:"LogCompress"`
	MaxRetries      int      `mapstructure:"MaxRetries"`
	InitialBackoff  Duration `mapstructure:"InitialBackoff"`
	UpstreamTimeout Duration `mapstructure:"UpstreamTimeout"`
}

// CacheConfig 决定启用哪些缓存层以及它们的顺序，只在启动时读取一次。
type CacheConfig struct {
	EnableMemory bool     `mapstructure:"EnableMemory"`
	EnableFile   bool     `mapstructure:"EnableFile"`
	StoragePath  string   `mapstructure:"StoragePath"`
	RedisURL     string   `mapstructure:"RedisURL"`
	TTL          Duration `mapstructure:"TTL"`
	Order        []string `mapstructure:"Order"`
	DedupeFetch  bool     `mapstructure:"DedupeFetch"`
}

// NotionConfig 描述上游 Notion API 的访问方式。
type NotionConfig struct {
	APIBase      string `mapstructure:"APIBase"`
	Token        string `mapstructure:"Token"`
	ActiveUser   string `mapstructure:"ActiveUser"`
	RootPageID   string `mapstructure:"RootPageID"`
	ChunkLimit   int    `mapstructure:"ChunkLimit"`
	BatchSize    int    `mapstructure:"BatchSize"`
	SignedOrigin string `mapstructure:"SignedOrigin"`
}

// InvalidationConfig 汇总缓存清理入口的密钥、定时任务与重新生成的路由。
type InvalidationConfig struct {
	CacheSecret      string   `mapstructure:"CacheSecret"`
	CronSecret       string   `mapstructure:"CronSecret"`
	WebhookSecret    string   `mapstructure:"WebhookSecret"`
	CronSchedule     string   `mapstructure:"CronSchedule"`
	RevalidateOrigin string   `mapstructure:"RevalidateOrigin"`
	RevalidatePaths  []string `mapstructure:"RevalidatePaths"`
}

// Config 是 TOML 文件映射的整体结构。
type Config struct {
	Global       GlobalConfig       `mapstructure:",squash"`
	Cache        CacheConfig        `mapstructure:"Cache"`
	Notion       NotionConfig       `mapstructure:"Notion"`
	Invalidation InvalidationConfig `mapstructure:"Invalidation"`
}

// EnabledTiers 按 Order 返回实际启用的缓存层名称；Order 未列出的已启用层追加在末尾。
func (c CacheConfig) EnabledTiers() []string {
	enabled := map[string]bool{
		TierMemory: c.EnableMemory,
		TierRedis:  strings.TrimSpace(c.RedisURL) != "",
		TierFile:   c.EnableFile,
	}

	result := make([]string, 0, len(enabled))
	seen := make(map[string]struct{}, len(enabled))
	appendTier := func(name string) {
		name = strings.ToLower(strings.TrimSpace(name))
		if _, dup := seen[name]; dup || !enabled[name] {
			return
		}
		seen[name] = struct{}{}
		result = append(result, name)
	}

	for _, name := range c.Order {
		appendTier(name)
	}
	for _, name := range []string{TierMemory, TierRedis, TierFile} {
		appendTier(name)
	}
	return result
}

// TierEnabled 判断某个缓存层是否启用。
func (c CacheConfig) TierEnabled(name string) bool {
	for _, tier := range c.EnabledTiers() {
		if tier == name {
			return true
		}
	}
	return false
}

// Attempts 返回上游请求的总尝试次数，MaxRetries 为 0 时仍至少尝试一次。
func (g GlobalConfig) Attempts() int {
	if g.MaxRetries <= 0 {
		return 1
	}
	return g.MaxRetries
}
