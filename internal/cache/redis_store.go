package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/notionnext/pagecache/internal/config"
)

const scanBatch = 100

// RedisTier 将缓存写入 Redis，支持 TTL 与 SCAN 模式删除。
type RedisTier struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisTier 解析 redis:// URL 并构建客户端；连接在首次请求时建立。
func NewRedisTier(rawURL string, ttl time.Duration) (*RedisTier, error) {
	opts, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	return NewRedisTierWithClient(redis.NewClient(opts), ttl), nil
}

// NewRedisTierWithClient 复用已有客户端，主要用于测试。
func NewRedisTierWithClient(client *redis.Client, ttl time.Duration) *RedisTier {
	if ttl < 0 {
		ttl = 0
	}
	return &RedisTier{client: client, ttl: ttl}
}

// Name implements Tier.
func (r *RedisTier) Name() string { return config.TierRedis }

// Ping 检查连接是否可用。
func (r *RedisTier) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *RedisTier) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return data, nil
}

func (r *RedisTier) Set(ctx context.Context, key string, value []byte) error {
	return r.client.Set(ctx, key, value, r.ttl).Err()
}

func (r *RedisTier) Delete(ctx context.Context, key string) error {
	return r.client.Del(ctx, key).Err()
}

// Clear 清空当前 DB（FLUSHDB）。
func (r *RedisTier) Clear(ctx context.Context) error {
	return r.client.FlushDB(ctx).Err()
}

// DeletePattern 以 SCAN 分批遍历匹配的键并删除，不会阻塞 Redis。
func (r *RedisTier) DeletePattern(ctx context.Context, pattern string) (int, error) {
	var (
		cursor  uint64
		deleted int
	)
	for {
		keys, next, err := r.client.Scan(ctx, cursor, pattern, scanBatch).Result()
		if err != nil {
			return deleted, err
		}
		if len(keys) > 0 {
			n, err := r.client.Del(ctx, keys...).Result()
			deleted += int(n)
			if err != nil {
				return deleted, err
			}
		}
		cursor = next
		if cursor == 0 {
			return deleted, nil
		}
	}
}

// Close 释放连接池。
func (r *RedisTier) Close() error {
	return r.client.Close()
}
