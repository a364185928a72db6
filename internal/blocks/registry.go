package blocks

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Kind 记录一种块类型的静态信息，供属性解析与诊断端使用。
type Kind struct {
	Key         string
	Description string
	// Container 表示该类型通过 Children 镜像其它块。
	Container bool
	// Media 表示该类型携带需要改写的资源地址。
	Media  bool
	Decode func(*Block) Properties
}

var globalRegistry = newRegistry()

type registry struct {
	mu    sync.RWMutex
	kinds map[string]Kind
}

func newRegistry() *registry {
	return &registry{kinds: make(map[string]Kind)}
}

// Register 将块类型加入全局注册表，重复键会返回错误。
func Register(kind Kind) error {
	return globalRegistry.register(kind)
}

// MustRegister 在注册失败时 panic，适合 init() 中调用。
func MustRegister(kind Kind) {
	if err := Register(kind); err != nil {
		panic(err)
	}
}

// Resolve 返回指定类型的元数据。
func Resolve(key string) (Kind, bool) {
	return globalRegistry.resolve(key)
}

// List 返回按键排序的块类型列表。
func List() []Kind {
	return globalRegistry.list()
}

// Keys 返回所有已注册的块类型键。
func Keys() []string {
	items := List()
	result := make([]string, len(items))
	for i, kind := range items {
		result[i] = kind.Key
	}
	return result
}

// IsMedia 判断类型是否为携带资源地址的媒体块。
func IsMedia(key string) bool {
	kind, ok := Resolve(key)
	return ok && kind.Media
}

func normalizeKey(key string) string {
	return strings.ToLower(strings.TrimSpace(key))
}

func (r *registry) register(kind Kind) error {
	key := normalizeKey(kind.Key)
	if key == "" {
		return fmt.Errorf("block kind key is required")
	}
	kind.Key = key

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.kinds[key]; exists {
		return fmt.Errorf("block kind %s already registered", key)
	}
	r.kinds[key] = kind
	return nil
}

func (r *registry) resolve(key string) (Kind, bool) {
	normalized := normalizeKey(key)
	if normalized == "" {
		return Kind{}, false
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	kind, ok := r.kinds[normalized]
	return kind, ok
}

func (r *registry) list() []Kind {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if len(r.kinds) == 0 {
		return nil
	}

	keys := make([]string, 0, len(r.kinds))
	for key := range r.kinds {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	result := make([]Kind, 0, len(keys))
	for _, key := range keys {
		result = append(result, r.kinds[key])
	}
	return result
}
