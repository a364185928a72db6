// Package normalize turns a raw page snapshot into the block map the site
// renders: sensitive page properties are removed, synchronized blocks are
// inlined, per-type hooks fix up code languages and file URLs, and an optional
// slice limit truncates the result.
package normalize

import (
	"fmt"

	"github.com/notionnext/pagecache/internal/blocks"
	"github.com/notionnext/pagecache/internal/fileurl"
)

// Normalizer 持有规范化过程需要的外部配置。零值可直接使用。
type Normalizer struct {
	Rewriter fileurl.Rewriter
}

// Normalize 使用默认配置规范化页面，见 Normalizer.Normalize。
func Normalize(pageID string, in *blocks.RecordMap, slice int) *blocks.RecordMap {
	return Normalizer{}.Normalize(pageID, in, slice)
}

// Normalize 返回 in 的规范化副本，不修改 in。slice > 0 时只保留前 slice 个内容块，
// 页面块本身与被展开的同步块不计数。
func (n Normalizer) Normalize(pageID string, in *blocks.RecordMap, slice int) *blocks.RecordMap {
	if in == nil {
		return nil
	}
	out := in.Clone()
	if out.Block == nil {
		out.Block = blocks.NewBlockMap()
	}
	ctx := &Context{PageID: pageID, Rewriter: n.Rewriter}

	pending := out.Block.Keys()
	retained := 0
	for i := 0; i < len(pending); i++ {
		id := pending[i]
		rec, ok := out.Block.Get(id)
		if !ok {
			continue
		}

		if slice > 0 && retained >= slice {
			out.Block.Delete(id)
			continue
		}

		var block *blocks.Block
		if rec != nil {
			block = rec.Value
		}
		if block == nil {
			retained++
			continue
		}

		if blocks.SameID(block.ID, pageID) {
			block.DropProperties()
			continue
		}

		if block.Type == blocks.TypeSyncBlock && len(block.Children) > 0 {
			children := expandSyncBlock(out.Block, id, block.Children)
			pending = append(pending[:i+1], append(children, pending[i+1:]...)...)
			continue
		}

		retained++
		if block.Properties == nil {
			continue
		}
		if hook, found := Fetch(block.Type); found {
			hook(ctx, block)
		}
	}
	return out
}

// expandSyncBlock 用 <id>_child_<i> 条目替换同步块，返回新插入的键以便继续处理。
func expandSyncBlock(m *blocks.BlockMap, id string, children []blocks.Record) []string {
	keys := make([]string, 0, len(children))
	anchor := id
	for index, child := range children {
		key := fmt.Sprintf("%s_child_%d", id, index)
		cloned := child.Clone()
		m.InsertAfter(anchor, key, &cloned)
		keys = append(keys, key)
		anchor = key
	}
	m.Delete(id)
	return keys
}
