package blocks

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// BlockMap 是按插入顺序保存的 id → Record 映射。JSON 编解码保持键顺序，
// 使切片截断与同步块展开的结果可复现。
type BlockMap struct {
	keys  []string
	items map[string]*Record
}

// NewBlockMap 创建空的 BlockMap。
func NewBlockMap() *BlockMap {
	return &BlockMap{items: make(map[string]*Record)}
}

// Len 返回条目数量。
func (m *BlockMap) Len() int {
	if m == nil {
		return 0
	}
	return len(m.keys)
}

// Keys 返回键的副本，按插入顺序排列。
func (m *BlockMap) Keys() []string {
	if m == nil {
		return nil
	}
	return append([]string(nil), m.keys...)
}

// Get 按 id 查找记录。
func (m *BlockMap) Get(id string) (*Record, bool) {
	if m == nil || m.items == nil {
		return nil, false
	}
	rec, ok := m.items[id]
	return rec, ok
}

// Set 写入记录；已有键原位替换，新键追加在末尾。
func (m *BlockMap) Set(id string, rec *Record) {
	if m.items == nil {
		m.items = make(map[string]*Record)
	}
	if _, exists := m.items[id]; !exists {
		m.keys = append(m.keys, id)
	}
	m.items[id] = rec
}

// Delete 删除记录并返回是否存在。
func (m *BlockMap) Delete(id string) bool {
	if m == nil || m.items == nil {
		return false
	}
	if _, ok := m.items[id]; !ok {
		return false
	}
	delete(m.items, id)
	for i, key := range m.keys {
		if key == id {
			m.keys = append(m.keys[:i], m.keys[i+1:]...)
			break
		}
	}
	return true
}

// InsertAfter 在 anchor 之后插入新键；anchor 不存在时追加到末尾。已存在的 id 只替换值。
func (m *BlockMap) InsertAfter(anchor, id string, rec *Record) {
	if m.items == nil {
		m.items = make(map[string]*Record)
	}
	if _, exists := m.items[id]; exists {
		m.items[id] = rec
		return
	}
	m.items[id] = rec
	pos := len(m.keys)
	for i, key := range m.keys {
		if key == anchor {
			pos = i + 1
			break
		}
	}
	m.keys = append(m.keys, "")
	copy(m.keys[pos+1:], m.keys[pos:])
	m.keys[pos] = id
}

// Range 按顺序遍历，fn 返回 false 时提前结束。
func (m *BlockMap) Range(fn func(id string, rec *Record) bool) {
	if m == nil {
		return
	}
	for _, key := range m.keys {
		if !fn(key, m.items[key]) {
			return
		}
	}
}

// Clone 深拷贝整个映射。
func (m *BlockMap) Clone() *BlockMap {
	out := NewBlockMap()
	m.Range(func(id string, rec *Record) bool {
		if rec == nil {
			out.Set(id, nil)
			return true
		}
		cloned := rec.Clone()
		out.Set(id, &cloned)
		return true
	})
	return out
}

// MarshalJSON 以插入顺序输出 JSON 对象。
func (m BlockMap) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, key := range m.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		encodedKey, err := json.Marshal(key)
		if err != nil {
			return nil, err
		}
		buf.Write(encodedKey)
		buf.WriteByte(':')
		encodedValue, err := json.Marshal(m.items[key])
		if err != nil {
			return nil, fmt.Errorf("encode block %s: %w", key, err)
		}
		buf.Write(encodedValue)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON 逐个读取对象成员以记录键顺序；重复键保留首次出现的位置。
func (m *BlockMap) UnmarshalJSON(data []byte) error {
	*m = BlockMap{items: make(map[string]*Record)}
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		return nil
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return errors.New("block map must be a JSON object")
	}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("unexpected block map key %v", keyTok)
		}
		var rec *Record
		if err := dec.Decode(&rec); err != nil {
			return fmt.Errorf("decode block %s: %w", key, err)
		}
		m.Set(key, rec)
	}
	_, err = dec.Token()
	return err
}

// RecordMap 对应一次页面抓取的 recordMap。block 之外的表（collection、notion_user 等）原样保留。
type RecordMap struct {
	Block *BlockMap

	tables map[string]json.RawMessage
}

// NewRecordMap 创建只包含空 block 表的 RecordMap。
func NewRecordMap() *RecordMap {
	return &RecordMap{Block: NewBlockMap()}
}

// UnmarshalJSON 解析 block 表并保留其它表。
func (r *RecordMap) UnmarshalJSON(data []byte) error {
	raw := map[string]json.RawMessage{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*r = RecordMap{Block: NewBlockMap()}
	if blockRaw, ok := raw["block"]; ok {
		if err := json.Unmarshal(blockRaw, r.Block); err != nil {
			return err
		}
		delete(raw, "block")
	}
	if len(raw) > 0 {
		r.tables = raw
	}
	return nil
}

// MarshalJSON 输出 {"block": {...}, ...其它表}。
func (r RecordMap) MarshalJSON() ([]byte, error) {
	out := make(map[string]interface{}, len(r.tables)+1)
	for key, value := range r.tables {
		out[key] = value
	}
	if r.Block != nil {
		out["block"] = r.Block
	} else {
		out["block"] = BlockMap{}
	}
	return json.Marshal(out)
}

// Clone 深拷贝 RecordMap。
func (r *RecordMap) Clone() *RecordMap {
	if r == nil {
		return nil
	}
	out := &RecordMap{Block: r.Block.Clone()}
	if r.tables != nil {
		out.tables = cloneRawMap(r.tables)
	}
	return out
}

// Merge 将 other 的块追加到当前映射，已存在的键保持原值。
func (r *RecordMap) Merge(other *RecordMap) {
	if other == nil {
		return
	}
	if r.Block == nil {
		r.Block = NewBlockMap()
	}
	other.Block.Range(func(id string, rec *Record) bool {
		if _, exists := r.Block.Get(id); !exists {
			r.Block.Set(id, rec)
		}
		return true
	})
	for key, value := range other.tables {
		if r.tables == nil {
			r.tables = make(map[string]json.RawMessage)
		}
		if _, exists := r.tables[key]; !exists {
			r.tables[key] = value
		}
	}
}

// Table 返回非 block 表的原始 JSON。
func (r *RecordMap) Table(name string) (json.RawMessage, bool) {
	if r == nil || r.tables == nil {
		return nil, false
	}
	value, ok := r.tables[name]
	return value, ok
}
