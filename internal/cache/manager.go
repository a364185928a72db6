package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/sirupsen/logrus"
	"go.uber.org/multierr"

	"github.com/notionnext/pagecache/internal/config"
	"github.com/notionnext/pagecache/internal/logging"
)

// Manager 按配置顺序组合多个缓存层。构建后只读，可被多个 goroutine 共享。
type Manager struct {
	tiers   []Tier
	logger  *logrus.Logger
	metrics *Metrics
}

// Option 调整 Manager 的构建过程。
type Option func(*managerOptions)

type managerOptions struct {
	tiers   []Tier
	metrics *Metrics
}

// WithTiers 直接指定缓存层，跳过按配置构建。
func WithTiers(tiers ...Tier) Option {
	return func(o *managerOptions) {
		o.tiers = append(o.tiers, tiers...)
	}
}

// WithMetrics 注入缓存指标。
func WithMetrics(metrics *Metrics) Option {
	return func(o *managerOptions) {
		o.metrics = metrics
	}
}

// PatternReport 描述一次模式删除在各缓存层的结果。
type PatternReport struct {
	Deleted map[string]int
	// Skipped 列出不支持模式删除的缓存层，它们没有被修改。
	Skipped []string
}

// NewManager 根据 CacheConfig 构建启用的缓存层。
func NewManager(cfg config.CacheConfig, logger *logrus.Logger, opts ...Option) (*Manager, error) {
	var o managerOptions
	for _, opt := range opts {
		opt(&o)
	}

	m := &Manager{
		logger:  logging.OrDiscard(logger),
		metrics: o.metrics,
	}
	if len(o.tiers) > 0 {
		m.tiers = o.tiers
		return m, nil
	}

	ttl := cfg.TTL.DurationValue()
	for _, name := range cfg.EnabledTiers() {
		tier, err := buildTier(name, cfg)
		if err != nil {
			m.Close()
			return nil, fmt.Errorf("初始化缓存层 %s 失败: %w", name, err)
		}
		m.tiers = append(m.tiers, tier)
	}
	if len(m.tiers) == 0 {
		return nil, errors.New("至少需要启用一个缓存层")
	}
	m.logger.WithFields(logrus.Fields{
		"action": "cache_init",
		"tiers":  m.Tiers(),
		"ttl":    ttl.String(),
	}).Info("缓存层已就绪")
	return m, nil
}

func buildTier(name string, cfg config.CacheConfig) (Tier, error) {
	switch name {
	case config.TierMemory:
		return NewMemoryTier(cfg.TTL.DurationValue()), nil
	case config.TierRedis:
		return NewRedisTier(cfg.RedisURL, cfg.TTL.DurationValue())
	case config.TierFile:
		return NewFileTier(cfg.StoragePath)
	default:
		return nil, fmt.Errorf("unknown tier %q", name)
	}
}

// Tiers 返回按顺序排列的缓存层名称。
func (m *Manager) Tiers() []string {
	names := make([]string, 0, len(m.tiers))
	for _, tier := range m.tiers {
		names = append(names, tier.Name())
	}
	return names
}

// Get 返回第一个命中的缓存层中的值；全部未命中时返回 ErrNotFound。
// 单层读取失败只记录日志并继续尝试下一层。
func (m *Manager) Get(ctx context.Context, key string) ([]byte, error) {
	for _, tier := range m.tiers {
		data, err := tier.Get(ctx, key)
		switch {
		case err == nil:
			m.metrics.observe(tier.Name(), "get", "hit")
			return data, nil
		case errors.Is(err, ErrNotFound):
			m.metrics.observe(tier.Name(), "get", "miss")
		default:
			m.metrics.observe(tier.Name(), "get", "error")
			m.logger.WithFields(logging.CacheFields(tier.Name(), key)).WithError(err).Warn("读取缓存失败")
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
		}
	}
	return nil, ErrNotFound
}

// Set 写入所有缓存层，失败的层不影响其它层，错误合并返回。
func (m *Manager) Set(ctx context.Context, key string, value []byte) error {
	var errs error
	for _, tier := range m.tiers {
		if err := tier.Set(ctx, key, value); err != nil {
			m.metrics.observe(tier.Name(), "set", "error")
			m.logger.WithFields(logging.CacheFields(tier.Name(), key)).WithError(err).Warn("写入缓存失败")
			errs = multierr.Append(errs, fmt.Errorf("%s: %w", tier.Name(), err))
			continue
		}
		m.metrics.observe(tier.Name(), "set", "ok")
	}
	return errs
}

// Delete 从所有缓存层删除键。
func (m *Manager) Delete(ctx context.Context, key string) error {
	var errs error
	for _, tier := range m.tiers {
		if err := tier.Delete(ctx, key); err != nil {
			m.metrics.observe(tier.Name(), "delete", "error")
			m.logger.WithFields(logging.CacheFields(tier.Name(), key)).WithError(err).Warn("删除缓存失败")
			errs = multierr.Append(errs, fmt.Errorf("%s: %w", tier.Name(), err))
			continue
		}
		m.metrics.observe(tier.Name(), "delete", "ok")
	}
	return errs
}

// DeletePattern 在支持模式删除的缓存层上删除匹配的键，其余层记入 Skipped。
func (m *Manager) DeletePattern(ctx context.Context, pattern string) (PatternReport, error) {
	report := PatternReport{Deleted: make(map[string]int)}
	var errs error
	for _, tier := range m.tiers {
		deleter, ok := tier.(PatternDeleter)
		if !ok {
			m.metrics.observe(tier.Name(), "delete_pattern", "skipped")
			report.Skipped = append(report.Skipped, tier.Name())
			continue
		}
		n, err := deleter.DeletePattern(ctx, pattern)
		report.Deleted[tier.Name()] = n
		if err != nil {
			m.metrics.observe(tier.Name(), "delete_pattern", "error")
			m.logger.WithFields(logging.CacheFields(tier.Name(), pattern)).WithError(err).Warn("按模式删除缓存失败")
			errs = multierr.Append(errs, fmt.Errorf("%s: %w", tier.Name(), err))
			continue
		}
		m.metrics.observe(tier.Name(), "delete_pattern", "ok")
	}
	return report, errs
}

// ClearTier 清空指定名称的缓存层；未启用时返回 false。
func (m *Manager) ClearTier(ctx context.Context, name string) (bool, error) {
	for _, tier := range m.tiers {
		if tier.Name() != name {
			continue
		}
		if err := tier.Clear(ctx); err != nil {
			m.metrics.observe(tier.Name(), "clear", "error")
			return true, fmt.Errorf("%s: %w", tier.Name(), err)
		}
		m.metrics.observe(tier.Name(), "clear", "ok")
		return true, nil
	}
	return false, nil
}

// ClearAll 依次清空每个缓存层。某层失败不会中断其余层，所有错误合并返回。
func (m *Manager) ClearAll(ctx context.Context) error {
	var errs error
	for _, tier := range m.tiers {
		if err := tier.Clear(ctx); err != nil {
			m.metrics.observe(tier.Name(), "clear", "error")
			m.logger.WithFields(logrus.Fields{"action": "cache_clear", "tier": tier.Name()}).WithError(err).Warn("清空缓存层失败")
			errs = multierr.Append(errs, fmt.Errorf("%s: %w", tier.Name(), err))
			continue
		}
		m.metrics.observe(tier.Name(), "clear", "ok")
	}
	return errs
}

// GetJSON 读取并解码 JSON 值。
func (m *Manager) GetJSON(ctx context.Context, key string, dst interface{}) error {
	data, err := m.Get(ctx, key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("decode cache entry %s: %w", key, err)
	}
	return nil
}

// SetJSON 编码并写入 JSON 值。
func (m *Manager) SetJSON(ctx context.Context, key string, value interface{}) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode cache entry %s: %w", key, err)
	}
	return m.Set(ctx, key, data)
}

// Close 释放持有外部连接的缓存层。
func (m *Manager) Close() error {
	var errs error
	for _, tier := range m.tiers {
		if closer, ok := tier.(io.Closer); ok {
			errs = multierr.Append(errs, closer.Close())
		}
	}
	return errs
}

// GetOrCompute 命中时直接解码返回；未命中时调用 compute 一次，结果非 nil 时写入所有缓存层，
// 并返回从写入字节解码出的值，保证调用方拿到的与之后命中读到的一致。
// 并发的相同键未命中会各自调用 compute。
func GetOrCompute[T any](ctx context.Context, m *Manager, key string, compute func(context.Context) (*T, error)) (*T, error) {
	data, err := m.Get(ctx, key)
	if err == nil {
		var cached T
		decodeErr := json.Unmarshal(data, &cached)
		if decodeErr == nil {
			return &cached, nil
		}
		m.logger.WithFields(logging.CacheFields("", key)).WithError(decodeErr).Warn("缓存内容无法解码，重新计算")
	} else if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	value, err := compute(ctx)
	if err != nil {
		return nil, err
	}
	if value == nil {
		return nil, nil
	}

	encoded, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("encode cache entry %s: %w", key, err)
	}
	if err := m.Set(ctx, key, encoded); err != nil {
		m.logger.WithFields(logging.CacheFields("", key)).WithError(err).Warn("部分缓存层写入失败")
	}

	var stored T
	if err := json.Unmarshal(encoded, &stored); err != nil {
		return nil, fmt.Errorf("decode cache entry %s: %w", key, err)
	}
	return &stored, nil
}
