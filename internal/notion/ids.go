package notion

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	dashedID = regexp.MustCompile(`(?i)[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}`)
	// 要求右侧不是十六进制字符，避免与 slug 末尾的字母拼接成错误的 id
	compactID = regexp.MustCompile(`(?i)([0-9a-f]{32})(?:[^0-9a-f]|$)`)
)

// ParsePageID 从页面 id、带连字符的 UUID 或 Notion 页面链接中提取 32 位十六进制 id（小写）。
func ParsePageID(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	if idx := strings.IndexAny(s, "?#"); idx >= 0 {
		s = s[:idx]
	}
	if matches := dashedID.FindAllString(s, -1); len(matches) > 0 {
		return strings.ToLower(strings.ReplaceAll(matches[len(matches)-1], "-", "")), nil
	}
	if matches := compactID.FindAllStringSubmatch(s, -1); len(matches) > 0 {
		return strings.ToLower(matches[len(matches)-1][1]), nil
	}
	return "", fmt.Errorf("invalid notion page id %q", raw)
}

// ToUUID 将 32 位十六进制 id 转为 8-4-4-4-12 形式；无法识别时原样返回。
func ToUUID(id string) string {
	compact, err := ParsePageID(id)
	if err != nil {
		return id
	}
	return strings.Join([]string{compact[0:8], compact[8:12], compact[12:16], compact[16:20], compact[20:32]}, "-")
}
