package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
)

var supportedTiers = map[string]struct{}{
	TierMemory: {},
	TierRedis:  {},
	TierFile:   {},
}

const supportedTierList = "memory|redis|file"

// CronParser 与调度器共用，保证校验通过的表达式一定可以被注册。
var CronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// Validate 针对语义级别做进一步校验，防止非法配置启动服务。
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("配置为空")
	}

	g := c.Global
	if g.ListenPort <= 0 || g.ListenPort > 65535 {
		return newFieldError("Global.ListenPort", "必须在 1-65535")
	}
	if g.MaxRetries < 0 {
		return newFieldError("Global.MaxRetries", "不能为负数")
	}
	if g.InitialBackoff.DurationValue() <= 0 {
		return newFieldError("Global.InitialBackoff", "必须大于 0")
	}
	if g.UpstreamTimeout.DurationValue() <= 0 {
		return newFieldError("Global.UpstreamTimeout", "必须大于 0")
	}

	if err := c.Cache.validate(); err != nil {
		return err
	}

	if err := validateUpstream(c.Notion.APIBase); err != nil {
		return fmt.Errorf("Notion.APIBase: %w", err)
	}
	if err := validateUpstream(c.Notion.SignedOrigin); err != nil {
		return fmt.Errorf("Notion.SignedOrigin: %w", err)
	}
	if c.Notion.BatchSize < 0 {
		return newFieldError("Notion.BatchSize", "不能为负数")
	}

	inv := c.Invalidation
	if expr := strings.TrimSpace(inv.CronSchedule); expr != "" {
		if _, err := CronParser.Parse(expr); err != nil {
			return newFieldError("Invalidation.CronSchedule", err.Error())
		}
	}
	if inv.RevalidateOrigin != "" {
		if err := validateUpstream(inv.RevalidateOrigin); err != nil {
			return fmt.Errorf("Invalidation.RevalidateOrigin: %w", err)
		}
	}
	for _, p := range inv.RevalidatePaths {
		if !strings.HasPrefix(p, "/") {
			return newFieldError("Invalidation.RevalidatePaths", fmt.Sprintf("路径必须以 / 开头: %s", p))
		}
	}

	return nil
}

func (c CacheConfig) validate() error {
	for _, name := range c.Order {
		normalized := strings.ToLower(strings.TrimSpace(name))
		if _, ok := supportedTiers[normalized]; !ok {
			return newFieldError("Cache.Order", "仅支持 "+supportedTierList)
		}
	}
	if c.EnableFile && strings.TrimSpace(c.StoragePath) == "" {
		return newFieldError("Cache.StoragePath", "启用文件缓存时不能为空")
	}
	if c.RedisURL != "" {
		if _, err := redis.ParseURL(c.RedisURL); err != nil {
			return newFieldError("Cache.RedisURL", err.Error())
		}
	}
	if len(c.EnabledTiers()) == 0 {
		return newFieldError("Cache", "至少需要启用一个缓存层")
	}
	return nil
}

func validateUpstream(raw string) error {
	if raw == "" {
		return errors.New("缺少地址")
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("仅支持 http/https: %s", raw)
	}
	if parsed.Host == "" {
		return fmt.Errorf("缺少 Host: %s", raw)
	}
	return nil
}
