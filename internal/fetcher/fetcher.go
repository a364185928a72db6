// Package fetcher wraps the upstream page source with a bounded retry loop
// and a stale-on-error fallback to the last raw snapshot in the cache.
package fetcher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/notionnext/pagecache/internal/blocks"
	"github.com/notionnext/pagecache/internal/cache"
	"github.com/notionnext/pagecache/internal/logging"
)

// ErrExhausted 表示所有尝试均失败且缓存中没有可用的旧快照。
var ErrExhausted = errors.New("page fetch attempts exhausted")

var errEmptyPage = errors.New("upstream returned no page")

// PageSource 是上游页面来源，notion.Client 实现了该接口。
type PageSource interface {
	GetPage(ctx context.Context, pageID string) (*blocks.RecordMap, error)
}

// Snapshots 提供旧快照读取能力，cache.Manager 实现了该接口。
type Snapshots interface {
	Get(ctx context.Context, key string) ([]byte, error)
}

// SleepFunc 等待 d，ctx 取消时提前返回错误。
type SleepFunc func(ctx context.Context, d time.Duration) error

// Options 控制重试预算与退避。
type Options struct {
	// Attempts 是总尝试次数，小于 1 时按 1 处理。
	Attempts int
	Backoff  time.Duration
	Sleep    SleepFunc
	Metrics  *Metrics
	Logger   *logrus.Logger
}

// Fetcher 以固定次数重试上游抓取，每次失败后先尝试回退到缓存中的旧快照。
type Fetcher struct {
	source    PageSource
	snapshots Snapshots
	attempts  int
	backoff   time.Duration
	sleep     SleepFunc
	metrics   *Metrics
	logger    *logrus.Logger
}

// New 构建 Fetcher；snapshots 为 nil 时不做旧快照回退。
func New(source PageSource, snapshots Snapshots, opts Options) *Fetcher {
	attempts := opts.Attempts
	if attempts < 1 {
		attempts = 1
	}
	sleep := opts.Sleep
	if sleep == nil {
		sleep = contextSleep
	}
	return &Fetcher{
		source:    source,
		snapshots: snapshots,
		attempts:  attempts,
		backoff:   opts.Backoff,
		sleep:     sleep,
		metrics:   opts.Metrics,
		logger:    logging.OrDiscard(opts.Logger),
	}
}

// FetchPage 抓取页面原始快照。from 标记调用来源，仅用于日志。
// 成功返回最新数据；失败后若缓存中存在 page_block_<id> 则直接返回该旧快照；
// 预算耗尽时返回 ErrExhausted（包装最后一次错误）。
func (f *Fetcher) FetchPage(ctx context.Context, pageID, from string) (*blocks.RecordMap, error) {
	var lastErr error
	for attempt := 1; attempt <= f.attempts; attempt++ {
		remaining := f.attempts - attempt
		fields := logging.FetchFields(pageID, from, remaining)
		fields["attempt"] = attempt

		began := time.Now()
		page, err := f.source.GetPage(ctx, pageID)
		elapsed := time.Since(began)
		f.metrics.observeAttempt(err == nil && page != nil, elapsed)
		fields["elapsed_ms"] = elapsed.Milliseconds()

		if err == nil && page != nil {
			f.logger.WithFields(fields).Info("上游响应")
			return page, nil
		}
		if err == nil {
			err = errEmptyPage
		}
		lastErr = err
		f.logger.WithFields(fields).WithError(err).Warn("上游请求失败")

		if err := f.sleep(ctx, f.backoff); err != nil {
			return nil, fmt.Errorf("fetch page %s: %w", pageID, err)
		}

		if stale, ok := f.staleSnapshot(ctx, pageID); ok {
			f.metrics.observeStale()
			f.logger.WithFields(fields).Info("使用缓存中的旧快照")
			return stale, nil
		}
	}

	f.logger.WithFields(logging.FetchFields(pageID, from, 0)).WithError(lastErr).Error("请求失败")
	return nil, fmt.Errorf("%w: page %s: %w", ErrExhausted, pageID, lastErr)
}

func (f *Fetcher) staleSnapshot(ctx context.Context, pageID string) (*blocks.RecordMap, bool) {
	if f.snapshots == nil {
		return nil, false
	}
	data, err := f.snapshots.Get(ctx, cache.PageBlockKey(pageID))
	if err != nil {
		if !errors.Is(err, cache.ErrNotFound) {
			f.logger.WithFields(logging.CacheFields("", cache.PageBlockKey(pageID))).WithError(err).Warn("读取旧快照失败")
		}
		return nil, false
	}
	var page blocks.RecordMap
	if err := json.Unmarshal(data, &page); err != nil {
		f.logger.WithFields(logging.CacheFields("", cache.PageBlockKey(pageID))).WithError(err).Warn("旧快照无法解码")
		return nil, false
	}
	return &page, true
}

func contextSleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
