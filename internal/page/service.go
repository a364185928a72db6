// Package page serves normalized page content: it reads through the
// page_content_<id>_<slice> cache entry, and on a miss normalizes the raw
// page_block_<id> snapshot, fetching and storing it first when absent.
package page

import (
	"context"
	"errors"
	"strconv"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"github.com/notionnext/pagecache/internal/blocks"
	"github.com/notionnext/pagecache/internal/cache"
	"github.com/notionnext/pagecache/internal/fetcher"
	"github.com/notionnext/pagecache/internal/logging"
	"github.com/notionnext/pagecache/internal/normalize"
)

// Fetcher 抓取原始页面快照，fetcher.Fetcher 实现了该接口。
type Fetcher interface {
	FetchPage(ctx context.Context, pageID, from string) (*blocks.RecordMap, error)
}

// Options 配置 Service。
type Options struct {
	// Dedupe 为 true 时，同一页面同一 slice 的并发未命中共享一次计算。
	Dedupe     bool
	Normalizer normalize.Normalizer
	Logger     *logrus.Logger
}

// Service 组合缓存、抓取与规范化。
type Service struct {
	cache      *cache.Manager
	fetcher    Fetcher
	normalizer normalize.Normalizer
	dedupe     bool
	group      singleflight.Group
	logger     *logrus.Logger
}

// NewService 构建页面服务。
func NewService(manager *cache.Manager, f Fetcher, opts Options) *Service {
	return &Service{
		cache:      manager,
		fetcher:    f,
		normalizer: opts.Normalizer,
		dedupe:     opts.Dedupe,
		logger:     logging.OrDiscard(opts.Logger),
	}
}

// GetPage 返回规范化后的页面内容；上游与缓存都没有数据时返回 nil, nil。
func (s *Service) GetPage(ctx context.Context, pageID, from string, slice int) (*blocks.RecordMap, error) {
	key := cache.PageContentKey(pageID, slice)
	load := func() (*blocks.RecordMap, error) {
		return cache.GetOrCompute(ctx, s.cache, key, func(ctx context.Context) (*blocks.RecordMap, error) {
			return s.compute(ctx, pageID, from, slice)
		})
	}
	if !s.dedupe {
		return load()
	}

	value, err, shared := s.group.Do(key, func() (interface{}, error) {
		return load()
	})
	if err != nil {
		return nil, err
	}
	page, _ := value.(*blocks.RecordMap)
	if shared && page != nil {
		// 共享结果需要各自的副本，调用方可能继续修改
		page = page.Clone()
	}
	return page, nil
}

func (s *Service) compute(ctx context.Context, pageID, from string, slice int) (*blocks.RecordMap, error) {
	blockKey := cache.PageBlockKey(pageID)

	var snapshot blocks.RecordMap
	err := s.cache.GetJSON(ctx, blockKey, &snapshot)
	if err == nil {
		return s.normalizer.Normalize(pageID, &snapshot, slice), nil
	}
	if !errors.Is(err, cache.ErrNotFound) {
		s.logger.WithFields(logging.CacheFields("", blockKey)).WithError(err).Warn("读取页面快照失败，重新抓取")
	}

	fetched, err := s.fetcher.FetchPage(ctx, pageID, from)
	if err != nil {
		if errors.Is(err, fetcher.ErrExhausted) {
			s.logger.WithFields(logrus.Fields{
				"action":  "get_page",
				"page_id": pageID,
				"from":    from,
				"slice":   strconv.Itoa(slice),
			}).WithError(err).Warn("页面不可用")
			return nil, nil
		}
		return nil, err
	}
	if fetched == nil {
		return nil, nil
	}

	if err := s.cache.SetJSON(ctx, blockKey, fetched); err != nil {
		s.logger.WithFields(logging.CacheFields("", blockKey)).WithError(err).Warn("写入页面快照失败")
	}
	return s.normalizer.Normalize(pageID, fetched, slice), nil
}
