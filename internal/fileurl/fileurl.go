// Package fileurl classifies resource URLs that point at Notion's private file
// storage and rewrites them into the signed-URL form the site can serve after
// the upstream's short-lived S3 links expire.
package fileurl

import (
	"net/url"
	"strings"
)

const (
	attachmentPrefix = "attachment"

	// 视频/音频流式播放提示参数
	cacheHintKey   = "cache"
	cacheHintValue = "v2"
	widthHintKey   = "width"
	widthHintValue = "2048"

	defaultSignedOrigin = "https://www.notion.so"
	legacySignedOrigin  = "https://notion.so"
)

// Rewriter 将 Notion 文件地址改写为签名地址。零值可直接使用。
type Rewriter struct {
	// SignedOrigin 用于 attachment: 伪协议的签名端点，默认 https://www.notion.so。
	SignedOrigin string
	// LegacyOrigin 用于 S3 / secure.notion-static.com 旧格式，默认 https://notion.so。
	LegacyOrigin string
}

var defaultRewriter = Rewriter{}

// IsManaged 判断 URL 是否属于 Notion 文件存储。只检查 host 与首段路径，
// 因此改写后的 /signed/<编码后原地址> 不会再次命中。
func IsManaged(raw string) bool {
	if raw == "" {
		return false
	}
	if strings.HasPrefix(raw, attachmentPrefix) {
		return true
	}

	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return false
	}
	host := strings.ToLower(u.Hostname())
	first := firstSegment(u)

	switch {
	case hostUnder(host, "amazonaws.com"):
		return true
	case host == "secure.notion-static.com" || first == "secure.notion-static.com":
		return true
	case strings.Contains(host, "prod-files-secure") || first == "prod-files-secure":
		return true
	case host == "file.notion.so":
		return true
	case hostUnder(host, "notion.site") && strings.HasPrefix(u.EscapedPath(), "/files/"):
		return true
	}
	return false
}

// Rewrite 使用默认配置改写地址，见 Rewriter.Rewrite。
func Rewrite(raw, blockID, blockType string) string {
	return defaultRewriter.Rewrite(raw, blockID, blockType)
}

// Rewrite 将 Notion 文件地址改写为可访问的形式。非 Notion 地址、无法解析的地址原样返回。
func (r Rewriter) Rewrite(raw, blockID, blockType string) string {
	if !IsManaged(raw) {
		return raw
	}
	streaming := isStreaming(blockType)

	if strings.HasPrefix(raw, attachmentPrefix) {
		return r.signed(r.signedOrigin(), raw, blockID, streaming)
	}

	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	host := strings.ToLower(u.Hostname())
	first := firstSegment(u)

	if host == "file.notion.so" {
		if !streaming {
			return raw
		}
		q := u.Query()
		q.Set(cacheHintKey, cacheHintValue)
		q.Set(widthHintKey, widthHintValue)
		u.RawQuery = q.Encode()
		return u.String()
	}

	if hostUnder(host, "amazonaws.com") ||
		host == "secure.notion-static.com" || first == "secure.notion-static.com" ||
		strings.Contains(host, "prod-files-secure") || first == "prod-files-secure" {
		return r.signed(r.legacyOrigin(), raw, blockID, streaming)
	}

	// notion.site/files/ 等其余格式暂不改写
	return raw
}

// DownloadURL 为地址追加 download=<filename> 参数；解析失败时原样返回。
func DownloadURL(raw, filename string) string {
	if raw == "" || filename == "" {
		return raw
	}
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" {
		return raw
	}
	q := u.Query()
	q.Set("download", filename)
	u.RawQuery = q.Encode()
	return u.String()
}

func (r Rewriter) signed(origin, raw, blockID string, streaming bool) string {
	var b strings.Builder
	b.WriteString(strings.TrimSuffix(origin, "/"))
	b.WriteString("/signed/")
	b.WriteString(EncodeURIComponent(raw))
	b.WriteString("?table=block&id=")
	b.WriteString(url.QueryEscape(blockID))
	if streaming {
		b.WriteString("&" + cacheHintKey + "=" + cacheHintValue)
		b.WriteString("&" + widthHintKey + "=" + widthHintValue)
	}
	return b.String()
}

func (r Rewriter) signedOrigin() string {
	if r.SignedOrigin != "" {
		return r.SignedOrigin
	}
	return defaultSignedOrigin
}

func (r Rewriter) legacyOrigin() string {
	if r.LegacyOrigin != "" {
		return r.LegacyOrigin
	}
	return legacySignedOrigin
}

// EncodeURIComponent 按 ECMAScript encodeURIComponent 的字符集转义：
// 保留 A-Z a-z 0-9 - _ . ! ~ * ' ( )。
func EncodeURIComponent(s string) string {
	const hex = "0123456789ABCDEF"
	var b strings.Builder
	b.Grow(len(s) * 3)
	for i := 0; i < len(s); i++ {
		c := s[i]
		if isUnreserved(c) {
			b.WriteByte(c)
			continue
		}
		b.WriteByte('%')
		b.WriteByte(hex[c>>4])
		b.WriteByte(hex[c&0x0f])
	}
	return b.String()
}

func isUnreserved(c byte) bool {
	switch {
	case 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z', '0' <= c && c <= '9':
		return true
	}
	switch c {
	case '-', '_', '.', '!', '~', '*', '\'', '(', ')':
		return true
	}
	return false
}

func isStreaming(blockType string) bool {
	return blockType == "video" || blockType == "audio"
}

func hostUnder(host, domain string) bool {
	return host == domain || strings.HasSuffix(host, "."+domain)
}

func firstSegment(u *url.URL) string {
	p := strings.TrimPrefix(u.EscapedPath(), "/")
	if idx := strings.IndexByte(p, '/'); idx >= 0 {
		p = p[:idx]
	}
	return strings.ToLower(p)
}
