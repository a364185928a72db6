// Package invalidate implements the cache invalidation operations shared by
// the HTTP endpoints, the scheduled job and the webhook: clearing one key,
// every tier, or the key families behind a glob pattern, and asking the
// renderer to regenerate routes.
package invalidate

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"
	"go.uber.org/multierr"

	"github.com/notionnext/pagecache/internal/cache"
	"github.com/notionnext/pagecache/internal/logging"
)

// ErrInvalidPath 表示重新生成的路由不是以 / 开头的站内路径。
var ErrInvalidPath = errors.New("path must start with /")

// PatternResult 汇总一次模式清理：按层统计删除数量，并列出因不支持模式删除而被整体清空的层。
type PatternResult struct {
	Deleted      map[string]int
	FullyCleared []string
}

// RevalidateResult 记录每个路由的重新生成结果，失败不会中断其余路由。
type RevalidateResult struct {
	Succeeded []string
	Failed    map[string]string
}

// Service 组合缓存管理器与重新生成器。
type Service struct {
	cache       *cache.Manager
	revalidator Revalidator
	logger      *logrus.Logger
}

// NewService 构建失效服务；revalidator 为 nil 时使用 NopRevalidator。
func NewService(manager *cache.Manager, revalidator Revalidator, logger *logrus.Logger) *Service {
	logger = logging.OrDiscard(logger)
	if revalidator == nil {
		revalidator = NopRevalidator{Logger: logger}
	}
	return &Service{cache: manager, revalidator: revalidator, logger: logger}
}

// Tiers 返回当前启用的缓存层名称。
func (s *Service) Tiers() []string {
	return s.cache.Tiers()
}

// ClearKey 从所有缓存层删除单个键。
func (s *Service) ClearKey(ctx context.Context, key string) error {
	if strings.TrimSpace(key) == "" {
		return errors.New("cache key required")
	}
	err := s.cache.Delete(ctx, key)
	logResult(s.logger.WithFields(logrus.Fields{"action": "clear_key", "key": key}), err, "清理缓存键")
	return err
}

// ClearAll 清空全部缓存层，单层失败不影响其它层。
func (s *Service) ClearAll(ctx context.Context) error {
	err := s.cache.ClearAll(ctx)
	logResult(s.logger.WithFields(logrus.Fields{"action": "clear_all", "tiers": s.cache.Tiers()}), err, "清空全部缓存")
	return err
}

// ClearPatterns 在支持模式删除的层上按模式删除；不支持的层整体清空一次，避免残留旧数据。
func (s *Service) ClearPatterns(ctx context.Context, patterns []string) (PatternResult, error) {
	result := PatternResult{Deleted: make(map[string]int)}
	skipped := make(map[string]struct{})
	var errs error

	for _, pattern := range patterns {
		report, err := s.cache.DeletePattern(ctx, pattern)
		errs = multierr.Append(errs, err)
		for tier, n := range report.Deleted {
			result.Deleted[tier] += n
		}
		for _, tier := range report.Skipped {
			skipped[tier] = struct{}{}
		}
		s.logger.WithFields(logrus.Fields{
			"action":  "clear_pattern",
			"pattern": pattern,
			"deleted": report.Deleted,
		}).Debug("按模式清理缓存")
	}

	names := make([]string, 0, len(skipped))
	for tier := range skipped {
		names = append(names, tier)
	}
	sort.Strings(names)
	for _, tier := range names {
		if _, err := s.cache.ClearTier(ctx, tier); err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		result.FullyCleared = append(result.FullyCleared, tier)
	}

	logResult(s.logger.WithFields(logrus.Fields{
		"action":        "clear_patterns",
		"patterns":      patterns,
		"deleted":       result.Deleted,
		"fully_cleared": result.FullyCleared,
	}), errs, "模式清理完成")
	return result, errs
}

// Revalidate 触发单个路由重新生成。
func (s *Service) Revalidate(ctx context.Context, path string) error {
	if !strings.HasPrefix(path, "/") {
		return fmt.Errorf("%w: %q", ErrInvalidPath, path)
	}
	if err := s.revalidator.Revalidate(ctx, path); err != nil {
		s.logger.WithFields(logrus.Fields{"action": "revalidate", "path": path}).WithError(err).Warn("重新生成失败")
		return err
	}
	s.logger.WithFields(logrus.Fields{"action": "revalidate", "path": path}).Info("重新生成完成")
	return nil
}

// RevalidateAll 依次重新生成所有路由，收集每个路由的错误。
func (s *Service) RevalidateAll(ctx context.Context, paths []string) (RevalidateResult, error) {
	result := RevalidateResult{Failed: make(map[string]string)}
	var errs error
	for _, path := range paths {
		if err := s.Revalidate(ctx, path); err != nil {
			result.Failed[path] = err.Error()
			errs = multierr.Append(errs, fmt.Errorf("%s: %w", path, err))
			continue
		}
		result.Succeeded = append(result.Succeeded, path)
	}
	return result, errs
}

func logResult(entry *logrus.Entry, err error, msg string) {
	if err != nil {
		entry.WithError(err).Warn(msg)
		return
	}
	entry.Info(msg)
}

// ScheduledClear 清理定时任务负责的键族（站点数据、页面内容与页面快照）。
func (s *Service) ScheduledClear(ctx context.Context) (PatternResult, error) {
	return s.ClearPatterns(ctx, cache.CronPatterns())
}

// WebhookClear 在内容更新时清理全部 Notion 相关键族，并重新生成 paths。
// 返回的错误只反映清理失败；清理失败时不再重新生成，重新生成失败记录在 RevalidateResult.Failed。
func (s *Service) WebhookClear(ctx context.Context, paths []string) (PatternResult, RevalidateResult, error) {
	cleared, err := s.ClearPatterns(ctx, cache.WebhookPatterns())
	if err != nil {
		return cleared, RevalidateResult{Failed: map[string]string{}}, err
	}
	revalidated, _ := s.RevalidateAll(ctx, paths)
	return cleared, revalidated, nil
}
