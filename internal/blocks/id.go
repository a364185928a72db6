package blocks

import "strings"

// CanonicalID 去掉连字符并转为小写，使 32 位十六进制 id 与带连字符的 UUID 可以直接比较。
func CanonicalID(id string) string {
	return strings.ToLower(strings.ReplaceAll(strings.TrimSpace(id), "-", ""))
}

// SameID 判断两个块 id 是否指向同一个块。
func SameID(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	return CanonicalID(a) == CanonicalID(b)
}
