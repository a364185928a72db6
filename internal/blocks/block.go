package blocks

import (
	"bytes"
	"encoding/json"
)

// Record 是上游 recordMap 中每个条目的外层包装（role + value）。
type Record struct {
	Role  string
	Value *Block
}

// Block 表示一个 Notion 块。已知字段被解析为结构体成员，其余字段原样保留在 extra 中。
type Block struct {
	ID         string
	Type       string
	ParentID   string
	Content    []string
	Properties map[string]json.RawMessage
	// Children 仅出现在同步块上，保存被镜像的子块。
	Children []Record

	extra map[string]json.RawMessage
}

var blockKnownFields = []string{"id", "type", "parent_id", "content", "properties", "children"}

// UnmarshalJSON 解析已知字段并保留未知字段。
func (b *Block) UnmarshalJSON(data []byte) error {
	raw := map[string]json.RawMessage{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*b = Block{}
	decodeString(raw["id"], &b.ID)
	decodeString(raw["type"], &b.Type)
	decodeString(raw["parent_id"], &b.ParentID)
	if content, ok := raw["content"]; ok {
		var ids []string
		if err := json.Unmarshal(content, &ids); err == nil {
			b.Content = ids
		} else {
			// 内容格式异常时不丢弃，原样保留到 extra
			b.setExtra("content", content)
		}
	}
	if props, ok := raw["properties"]; ok {
		parsed := map[string]json.RawMessage{}
		if err := json.Unmarshal(props, &parsed); err == nil {
			b.Properties = parsed
		} else {
			b.setExtra("properties", props)
		}
	}
	if children, ok := raw["children"]; ok {
		var records []Record
		if err := json.Unmarshal(children, &records); err == nil {
			b.Children = records
		} else {
			b.setExtra("children", children)
		}
	}

	for _, key := range blockKnownFields {
		delete(raw, key)
	}
	for key, value := range raw {
		b.setExtra(key, value)
	}
	return nil
}

// MarshalJSON 合并已知字段与 extra，输出与上游兼容的对象。
func (b Block) MarshalJSON() ([]byte, error) {
	out := make(map[string]interface{}, len(b.extra)+len(blockKnownFields))
	for key, value := range b.extra {
		out[key] = value
	}
	if b.ID != "" {
		out["id"] = b.ID
	}
	if b.Type != "" {
		out["type"] = b.Type
	}
	if b.ParentID != "" {
		out["parent_id"] = b.ParentID
	}
	if b.Content != nil {
		out["content"] = b.Content
	}
	if b.Properties != nil {
		out["properties"] = b.Properties
	}
	if b.Children != nil {
		out["children"] = b.Children
	}
	return json.Marshal(out)
}

// Clone 深拷贝当前块，返回值与原块不共享任何可变状态。
func (b *Block) Clone() *Block {
	if b == nil {
		return nil
	}
	clone := &Block{
		ID:       b.ID,
		Type:     b.Type,
		ParentID: b.ParentID,
	}
	if b.Content != nil {
		clone.Content = append([]string(nil), b.Content...)
	}
	if b.Properties != nil {
		clone.Properties = cloneRawMap(b.Properties)
	}
	if b.Children != nil {
		clone.Children = make([]Record, len(b.Children))
		for i, child := range b.Children {
			clone.Children[i] = child.Clone()
		}
	}
	if b.extra != nil {
		clone.extra = cloneRawMap(b.extra)
	}
	return clone
}

// Extra 返回未知字段的原始 JSON。
func (b *Block) Extra(key string) (json.RawMessage, bool) {
	if b == nil || b.extra == nil {
		return nil, false
	}
	value, ok := b.extra[key]
	return value, ok
}

func (b *Block) setExtra(key string, value json.RawMessage) {
	if b.extra == nil {
		b.extra = make(map[string]json.RawMessage)
	}
	b.extra[key] = value
}

// UnmarshalJSON 兼容两种形态：标准的 {role, value} 包装，以及直接给出块本体的对象。
func (r *Record) UnmarshalJSON(data []byte) error {
	var envelope struct {
		Role  string          `json:"role"`
		Value json.RawMessage `json:"value"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return err
	}

	*r = Record{Role: envelope.Role}
	payload := envelope.Value
	if len(payload) == 0 || bytes.Equal(bytes.TrimSpace(payload), []byte("null")) {
		if envelope.Role != "" || !looksLikeBlock(data) {
			return nil
		}
		payload = data
	}

	var block Block
	if err := json.Unmarshal(payload, &block); err != nil {
		return err
	}
	r.Value = &block
	return nil
}

// MarshalJSON 始终输出 {role, value} 形态。
func (r Record) MarshalJSON() ([]byte, error) {
	out := struct {
		Role  string `json:"role,omitempty"`
		Value *Block `json:"value,omitempty"`
	}{Role: r.Role, Value: r.Value}
	return json.Marshal(out)
}

// Clone 深拷贝记录。
func (r Record) Clone() Record {
	return Record{Role: r.Role, Value: r.Value.Clone()}
}

func looksLikeBlock(data []byte) bool {
	var probe struct {
		ID   string `json:"id"`
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return false
	}
	return probe.ID != "" || probe.Type != ""
}

func decodeString(raw json.RawMessage, dst *string) {
	if len(raw) == 0 {
		return
	}
	_ = json.Unmarshal(raw, dst)
}

func cloneRawMap(src map[string]json.RawMessage) map[string]json.RawMessage {
	out := make(map[string]json.RawMessage, len(src))
	for key, value := range src {
		out[key] = append(json.RawMessage(nil), value...)
	}
	return out
}
