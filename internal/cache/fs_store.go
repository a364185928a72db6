package cache

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/notionnext/pagecache/internal/config"
)

const fileSuffix = ".json"

// NewFileTier 以 basePath 为根目录构建磁盘缓存层，每个键对应 <basePath>/<escaped key>.json。
func NewFileTier(basePath string) (*FileTier, error) {
	if basePath == "" {
		return nil, errors.New("storage path required")
	}

	abs, err := filepath.Abs(basePath)
	if err != nil {
		return nil, fmt.Errorf("resolve storage path: %w", err)
	}

	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create storage path: %w", err)
	}

	return &FileTier{
		basePath: abs,
		locks:    make(map[string]*entryLock),
	}, nil
}

// FileTier 通过 entryLock 避免同一键并发写入；不支持按模式删除。
type FileTier struct {
	basePath string

	mu    sync.Mutex
	locks map[string]*entryLock
}

type entryLock struct {
	mu   sync.Mutex
	refs int
}

// Name implements Tier.
func (s *FileTier) Name() string { return config.TierFile }

// BasePath 返回缓存根目录的绝对路径。
func (s *FileTier) BasePath() string { return s.basePath }

func (s *FileTier) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	filePath, err := s.entryPath(key)
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(filePath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if info.IsDir() {
		return nil, ErrNotFound
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return data, nil
}

// Set 通过临时文件 + rename 保证写入原子性，失败时清理临时文件。
func (s *FileTier) Set(ctx context.Context, key string, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	filePath, err := s.entryPath(key)
	if err != nil {
		return err
	}

	unlock := s.lockEntry(key)
	defer unlock()

	tempFile, err := os.CreateTemp(s.basePath, ".cache-*")
	if err != nil {
		return err
	}
	tempName := tempFile.Name()

	_, err = tempFile.Write(value)
	closeErr := tempFile.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(tempName)
		return err
	}

	if err := os.Rename(tempName, filePath); err != nil {
		os.Remove(tempName)
		return err
	}
	return nil
}

func (s *FileTier) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	filePath, err := s.entryPath(key)
	if err != nil {
		return err
	}

	unlock := s.lockEntry(key)
	defer unlock()

	if err := os.Remove(filePath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// Clear 删除根目录下所有缓存文件，保留目录本身以及非缓存文件。
func (s *FileTier) Clear(ctx context.Context) error {
	entries, err := os.ReadDir(s.basePath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return err
	}
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return err
		}
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), fileSuffix) {
			continue
		}
		if err := os.Remove(filepath.Join(s.basePath, entry.Name())); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
	}
	return nil
}

func (s *FileTier) lockEntry(key string) func() {
	s.mu.Lock()
	lock := s.locks[key]
	if lock == nil {
		lock = &entryLock{}
		s.locks[key] = lock
	}
	lock.refs++
	s.mu.Unlock()

	lock.mu.Lock()
	return func() {
		lock.mu.Unlock()
		s.mu.Lock()
		lock.refs--
		if lock.refs == 0 {
			delete(s.locks, key)
		}
		s.mu.Unlock()
	}
}

func (s *FileTier) entryPath(key string) (string, error) {
	if strings.TrimSpace(key) == "" {
		return "", errors.New("cache key required")
	}
	filePath := filepath.Join(s.basePath, url.PathEscape(key)+fileSuffix)
	if filepath.Dir(filePath) != s.basePath {
		return "", errors.New("invalid cache path")
	}
	return filePath, nil
}
