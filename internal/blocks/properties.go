package blocks

import "encoding/json"

// Properties 是按块类型区分的属性视图。Notion 的 properties 统一为
// "数组的数组" 形态（例如 {"language": [["C++"]]}），这里在边界处一次性转换为具体结构。
type Properties interface {
	isProperties()
}

// TextProps 适用于文本类块。
type TextProps struct {
	Title string
}

// CodeProps 适用于 code 块。
type CodeProps struct {
	Language string
	Title    string
}

// MediaProps 适用于 file/pdf/video/audio/image 等携带资源地址的块。
type MediaProps struct {
	Source  string
	Caption string
}

// RawProps 用于未注册或无需类型化的块。
type RawProps struct{}

func (TextProps) isProperties()  {}
func (CodeProps) isProperties()  {}
func (MediaProps) isProperties() {}
func (RawProps) isProperties()   {}

// 属性名
const (
	PropTitle    = "title"
	PropLanguage = "language"
	PropSource   = "source"
	PropCaption  = "caption"
)

// FirstValue 读取 properties[name][0][0] 的字符串值；缺失或格式异常时返回 false。
func (b *Block) FirstValue(name string) (string, bool) {
	if b == nil || b.Properties == nil {
		return "", false
	}
	raw, ok := b.Properties[name]
	if !ok {
		return "", false
	}
	var rows [][]json.RawMessage
	if err := json.Unmarshal(raw, &rows); err != nil || len(rows) == 0 || len(rows[0]) == 0 {
		return "", false
	}
	var value string
	if err := json.Unmarshal(rows[0][0], &value); err != nil {
		return "", false
	}
	return value, true
}

// SetFirstValue 改写 properties[name][0][0]，保留其余结构（如文本装饰）。
// 属性不存在或格式异常时不做任何修改并返回 false。
func (b *Block) SetFirstValue(name, value string) bool {
	if b == nil || b.Properties == nil {
		return false
	}
	raw, ok := b.Properties[name]
	if !ok {
		return false
	}
	var rows [][]json.RawMessage
	if err := json.Unmarshal(raw, &rows); err != nil || len(rows) == 0 || len(rows[0]) == 0 {
		return false
	}
	if _, isString := b.FirstValue(name); !isString {
		return false
	}
	encodedValue, err := json.Marshal(value)
	if err != nil {
		return false
	}
	rows[0][0] = encodedValue
	encoded, err := json.Marshal(rows)
	if err != nil {
		return false
	}
	b.Properties[name] = encoded
	return true
}

// DropProperties 删除整个 properties 字段。
func (b *Block) DropProperties() {
	if b == nil {
		return
	}
	b.Properties = nil
	delete(b.extra, "properties")
}

// Decode 根据块类型返回对应的属性视图。
func Decode(b *Block) Properties {
	if b == nil {
		return RawProps{}
	}
	kind, ok := Resolve(b.Type)
	if !ok || kind.Decode == nil {
		return RawProps{}
	}
	return kind.Decode(b)
}

func decodeText(b *Block) Properties {
	title, _ := b.FirstValue(PropTitle)
	return TextProps{Title: title}
}

func decodeCode(b *Block) Properties {
	language, _ := b.FirstValue(PropLanguage)
	title, _ := b.FirstValue(PropTitle)
	return CodeProps{Language: language, Title: title}
}

func decodeMedia(b *Block) Properties {
	source, _ := b.FirstValue(PropSource)
	caption, _ := b.FirstValue(PropCaption)
	return MediaProps{Source: source, Caption: caption}
}

// SetLanguage 回写代码块的语言标签。
func (b *Block) SetLanguage(language string) bool {
	return b.SetFirstValue(PropLanguage, language)
}

// SetSource 回写媒体块的资源地址。
func (b *Block) SetSource(source string) bool {
	return b.SetFirstValue(PropSource, source)
}
