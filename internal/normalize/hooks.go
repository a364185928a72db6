package normalize

import (
	"errors"
	"strings"
	"sync"

	"github.com/notionnext/pagecache/internal/blocks"
	"github.com/notionnext/pagecache/internal/fileurl"
)

// Context 在单次 Normalize 调用中传递给各块类型钩子。
type Context struct {
	PageID   string
	Rewriter fileurl.Rewriter
}

// Hook 原地修改克隆后的块。调用方保证 block 与 block.Properties 非 nil。
type Hook func(ctx *Context, block *blocks.Block)

var registry sync.Map

// ErrDuplicateHook indicates a block type already has a hook registered.
var ErrDuplicateHook = errors.New("hook already registered")

// Register stores the hook for a block type.
func Register(blockType string, hook Hook) error {
	key := normalizeKey(blockType)
	if key == "" {
		return errors.New("block type required")
	}
	if hook == nil {
		return errors.New("hook required")
	}
	if _, loaded := registry.LoadOrStore(key, hook); loaded {
		return ErrDuplicateHook
	}
	return nil
}

// MustRegister panics on registration failure.
func MustRegister(blockType string, hook Hook) {
	if err := Register(blockType, hook); err != nil {
		panic(err)
	}
}

// Fetch retrieves the hook associated with a block type.
func Fetch(blockType string) (Hook, bool) {
	key := normalizeKey(blockType)
	if key == "" {
		return nil, false
	}
	if value, ok := registry.Load(key); ok {
		if hook, ok := value.(Hook); ok {
			return hook, true
		}
	}
	return nil, false
}

// Status returns hook registration status for a block type.
func Status(blockType string) string {
	if _, ok := Fetch(blockType); ok {
		return "registered"
	}
	return "missing"
}

// Snapshot returns status for a list of block types.
func Snapshot(keys []string) map[string]string {
	out := make(map[string]string, len(keys))
	for _, key := range keys {
		if normalized := normalizeKey(key); normalized != "" {
			out[normalized] = Status(normalized)
		}
	}
	return out
}

func normalizeKey(key string) string {
	return strings.ToLower(strings.TrimSpace(key))
}

// codeLanguages 把 Notion 的展示名映射为高亮器识别的语言标识。
var codeLanguages = map[string]string{
	"C++":      "cpp",
	"C#":       "csharp",
	"Assembly": "asm6502",
}

func init() {
	MustRegister(blocks.TypeCode, codeLanguageHook)
	for _, blockType := range []string{blocks.TypeFile, blocks.TypePDF, blocks.TypeVideo, blocks.TypeAudio} {
		MustRegister(blockType, mediaSourceHook)
	}
}

func codeLanguageHook(_ *Context, block *blocks.Block) {
	props, ok := blocks.Decode(block).(blocks.CodeProps)
	if !ok || props.Language == "" {
		return
	}
	if mapped, found := codeLanguages[props.Language]; found {
		block.SetLanguage(mapped)
	}
}

func mediaSourceHook(ctx *Context, block *blocks.Block) {
	props, ok := blocks.Decode(block).(blocks.MediaProps)
	if !ok || props.Source == "" {
		return
	}
	if rewritten := ctx.Rewriter.Rewrite(props.Source, block.ID, block.Type); rewritten != props.Source {
		block.SetSource(rewritten)
	}
}
