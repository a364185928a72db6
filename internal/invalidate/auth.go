package invalidate

import (
	"crypto/subtle"
	"errors"
	"strings"
)

// ErrUnauthorized 表示请求未携带正确的共享密钥。
var ErrUnauthorized = errors.New("unauthorized")

// Authorize 校验共享密钥。未配置密钥时放行；任一候选值匹配即通过，比较为常数时间。
func Authorize(configured string, provided ...string) error {
	if configured == "" {
		return nil
	}
	ok := 0
	for _, candidate := range provided {
		ok |= subtle.ConstantTimeCompare([]byte(configured), []byte(candidate))
	}
	if ok == 1 {
		return nil
	}
	return ErrUnauthorized
}

// BearerToken 提取 Authorization: Bearer <token> 中的 token，格式不符时返回空串。
func BearerToken(header string) string {
	const prefix = "Bearer "
	if len(header) < len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}
