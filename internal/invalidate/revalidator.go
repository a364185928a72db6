package invalidate

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/notionnext/pagecache/internal/logging"
)

// RevalidateHeader 标记由缓存服务发起的重新生成请求，渲染端可据此绕过 CDN 缓存。
const RevalidateHeader = "X-Pagecache-Revalidate"

// Revalidator 触发某个路由的页面重新生成。
type Revalidator interface {
	Revalidate(ctx context.Context, path string) error
}

// HTTPRevalidator 通过 GET <origin><path> 让渲染端重新生成页面。
type HTTPRevalidator struct {
	origin string
	client *http.Client
}

// NewHTTPRevalidator 构建基于 HTTP 的重新生成器；client 为 nil 时使用 http.DefaultClient。
func NewHTTPRevalidator(origin string, client *http.Client) *HTTPRevalidator {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPRevalidator{origin: strings.TrimSuffix(origin, "/"), client: client}
}

func (r *HTTPRevalidator) Revalidate(ctx context.Context, path string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.origin+path, nil)
	if err != nil {
		return fmt.Errorf("build revalidate request: %w", err)
	}
	req.Header.Set(RevalidateHeader, "1")
	req.Header.Set("User-Agent", "pagecache-revalidator")

	resp, err := r.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 400 {
		return fmt.Errorf("revalidate %s: status %d", path, resp.StatusCode)
	}
	return nil
}

// NopRevalidator 在未配置渲染端地址时使用，只记录日志。
type NopRevalidator struct {
	Logger *logrus.Logger
}

func (n NopRevalidator) Revalidate(_ context.Context, path string) error {
	logging.OrDiscard(n.Logger).WithFields(logrus.Fields{
		"action": "revalidate",
		"path":   path,
	}).Debug("未配置 RevalidateOrigin，跳过重新生成")
	return nil
}
