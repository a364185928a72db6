package cache

import (
	"context"
	"path"
	"sync"
	"time"

	"github.com/notionnext/pagecache/internal/config"
)

type memoryEntry struct {
	value     []byte
	expiresAt time.Time
}

// MemoryTier 是进程内缓存，按 TTL 惰性过期。
type MemoryTier struct {
	ttl time.Duration
	now func() time.Time

	mu      sync.RWMutex
	entries map[string]memoryEntry
}

// NewMemoryTier 构建内存缓存层；ttl <= 0 表示永不过期。
func NewMemoryTier(ttl time.Duration) *MemoryTier {
	return &MemoryTier{
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]memoryEntry),
	}
}

// Name implements Tier.
func (m *MemoryTier) Name() string { return config.TierMemory }

func (m *MemoryTier) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	entry, ok := m.entries[key]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	if !entry.expiresAt.IsZero() && !m.now().Before(entry.expiresAt) {
		m.mu.Lock()
		if current, still := m.entries[key]; still && current.expiresAt.Equal(entry.expiresAt) {
			delete(m.entries, key)
		}
		m.mu.Unlock()
		return nil, ErrNotFound
	}
	return append([]byte(nil), entry.value...), nil
}

func (m *MemoryTier) Set(ctx context.Context, key string, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	entry := memoryEntry{value: append([]byte(nil), value...)}
	if m.ttl > 0 {
		entry.expiresAt = m.now().Add(m.ttl)
	}
	m.mu.Lock()
	m.entries[key] = entry
	m.mu.Unlock()
	return nil
}

func (m *MemoryTier) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	delete(m.entries, key)
	m.mu.Unlock()
	return nil
}

func (m *MemoryTier) Clear(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	m.entries = make(map[string]memoryEntry)
	m.mu.Unlock()
	return nil
}

// DeletePattern 使用 path.Match 语义匹配键名。
func (m *MemoryTier) DeletePattern(ctx context.Context, pattern string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if _, err := path.Match(pattern, ""); err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	deleted := 0
	for key := range m.entries {
		if matched, _ := path.Match(pattern, key); matched {
			delete(m.entries, key)
			deleted++
		}
	}
	return deleted, nil
}

// Len 返回当前条目数（含尚未惰性清理的过期条目）。
func (m *MemoryTier) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}
