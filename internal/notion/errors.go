package notion

import (
	"errors"
	"fmt"
)

// ErrStatus 匹配所有上游非 2xx 响应，可配合 errors.Is 使用。
var ErrStatus = errors.New("notion api returned non-2xx status")

// StatusError 记录上游接口与返回的状态码。
type StatusError struct {
	Endpoint   string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("notion %s: status %d", e.Endpoint, e.StatusCode)
	}
	return fmt.Sprintf("notion %s: status %d: %s", e.Endpoint, e.StatusCode, e.Body)
}

// Is 使 errors.Is(err, ErrStatus) 对任意 StatusError 成立。
func (e *StatusError) Is(target error) bool {
	return target == ErrStatus
}

// Temporary 报告该状态是否值得重试（429 与 5xx）。
func (e *StatusError) Temporary() bool {
	return e.StatusCode == 429 || e.StatusCode >= 500
}
