package cache

import (
	"context"
	"errors"
)

// Tier 是一个物理缓存后端（进程内存、本地磁盘或 Redis）。值统一为 JSON 字节。
type Tier interface {
	// Name 返回缓存层名称，与配置中的 Cache.Order 对应。
	Name() string

	// Get 读取键对应的值；不存在或已过期时返回 ErrNotFound。
	Get(ctx context.Context, key string) ([]byte, error)

	// Set 写入或覆盖键。
	Set(ctx context.Context, key string, value []byte) error

	// Delete 删除单个键，键不存在时不报错。
	Delete(ctx context.Context, key string) error

	// Clear 清空整个缓存层。
	Clear(ctx context.Context) error
}

// PatternDeleter 是可选能力：支持按 glob 模式批量删除键的缓存层实现该接口。
type PatternDeleter interface {
	DeletePattern(ctx context.Context, pattern string) (int, error)
}

// ErrNotFound 表示缓存不存在。
var ErrNotFound = errors.New("cache entry not found")
