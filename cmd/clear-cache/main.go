// Command clear-cache asks a running site to drop its caches and regenerate
// the fixed routes, using the /api/cache endpoint.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/notionnext/pagecache/internal/config"
	"github.com/notionnext/pagecache/internal/version"
)

const (
	userAgent      = "NotionNext-Cache-Cleaner"
	requestTimeout = 30 * time.Second
)

var (
	stdOut io.Writer = os.Stdout
	stdErr io.Writer = os.Stderr
)

// cliOptions 汇总 CLI 标志解析后的结果。
type cliOptions struct {
	site   string
	secret string
	https  bool
	paths  []string
}

func main() {
	opts, err := parseCLIFlags(os.Args[1:], os.Getenv)
	if err != nil {
		fmt.Fprintln(stdErr, err.Error())
		os.Exit(2)
	}
	os.Exit(run(context.Background(), opts, &http.Client{Timeout: requestTimeout}))
}

// parseCLIFlags 解析参数；未显式传入的值回退到 SITE_URL / CACHE_SECRET / NODE_ENV。
func parseCLIFlags(args []string, getenv func(string) string) (cliOptions, error) {
	fs := flag.NewFlagSet("clear-cache", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	site := getenv("SITE_URL")
	if site == "" {
		site = "localhost:3000"
	}

	var opts cliOptions
	fs.StringVar(&opts.site, "site", site, "站点地址（host[:port]，可被 SITE_URL 覆盖）")
	fs.StringVar(&opts.secret, "secret", getenv("CACHE_SECRET"), "缓存清理密钥（默认读取 CACHE_SECRET）")
	fs.BoolVar(&opts.https, "https", getenv("NODE_ENV") == "production", "使用 HTTPS（NODE_ENV=production 时默认开启）")

	if err := fs.Parse(args); err != nil {
		return cliOptions{}, fmt.Errorf("解析参数失败: %w", err)
	}
	if fs.NArg() > 0 {
		return cliOptions{}, fmt.Errorf("解析参数失败: 未知参数 %v", fs.Args())
	}

	opts.site = strings.TrimRight(strings.TrimSpace(opts.site), "/")
	// 兼容带协议的 SITE_URL
	if rest, ok := strings.CutPrefix(opts.site, "https://"); ok {
		opts.site, opts.https = rest, true
	} else if rest, ok := strings.CutPrefix(opts.site, "http://"); ok {
		opts.site = rest
	}
	if opts.site == "" {
		return cliOptions{}, fmt.Errorf("解析参数失败: --site 不能为空")
	}
	opts.paths = config.DefaultRevalidatePaths
	return opts, nil
}

// run 先清空缓存再逐个重新生成路由。单步失败只打印错误，退出码始终为 0。
func run(ctx context.Context, opts cliOptions, client *http.Client) int {
	c := cleaner{opts: opts, client: client}

	fmt.Fprintf(stdOut, "🚀 %s 缓存清理工具\n", version.Full())
	fmt.Fprintln(stdOut, "================================")

	fmt.Fprintln(stdOut, "🧹 开始清理缓存...")
	if resp, err := c.call(ctx, http.MethodPost, url.Values{"action": {"clear"}}); err != nil {
		fmt.Fprintf(stdErr, "❌ 请求失败: %v\n", err)
	} else if resp.status == http.StatusOK {
		fmt.Fprintf(stdOut, "✅ 缓存清理成功: %s\n", resp.message)
	} else {
		fmt.Fprintf(stdErr, "❌ 缓存清理失败: %s\n", resp.message)
	}

	fmt.Fprintln(stdOut, "🔄 开始重新验证页面...")
	for _, path := range opts.paths {
		resp, err := c.call(ctx, http.MethodGet, url.Values{"action": {"revalidate"}, "path": {path}})
		switch {
		case err != nil:
			fmt.Fprintf(stdErr, "❌ 页面 %s 请求失败: %v\n", path, err)
		case resp.status == http.StatusOK:
			fmt.Fprintf(stdOut, "✅ 页面 %s 重新验证成功\n", path)
		default:
			fmt.Fprintf(stdErr, "❌ 页面 %s 重新验证失败: %s\n", path, resp.message)
		}
	}

	fmt.Fprintln(stdOut, "================================")
	fmt.Fprintln(stdOut, "✨ 缓存清理完成！")
	fmt.Fprintln(stdOut, "💡 提示：如果问题仍然存在，请检查CDN缓存设置")
	return 0
}

type cleaner struct {
	opts   cliOptions
	client *http.Client
}

type apiResponse struct {
	status  int
	message string
}

func (c cleaner) endpoint(query url.Values) string {
	scheme := "http"
	if c.opts.https {
		scheme = "https"
	}
	if c.opts.secret != "" {
		query.Set("secret", c.opts.secret)
	}
	u := url.URL{Scheme: scheme, Host: c.opts.site, Path: "/api/cache", RawQuery: query.Encode()}
	return u.String()
}

func (c cleaner) call(ctx context.Context, method string, query url.Values) (apiResponse, error) {
	target := c.endpoint(query)
	fmt.Fprintf(stdOut, "%s %s\n", method, redact(target, c.opts.secret))

	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, method, target, nil)
	if err != nil {
		return apiResponse{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		return apiResponse{}, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return apiResponse{}, err
	}

	result := apiResponse{status: resp.StatusCode}
	var payload struct {
		Message string `json:"message"`
	}
	// 非 JSON 响应按原文展示
	if err := json.Unmarshal(body, &payload); err == nil {
		result.message = payload.Message
	} else {
		result.message = strings.TrimSpace(string(body))
	}
	return result, nil
}

func redact(target, secret string) string {
	if secret == "" {
		return target
	}
	return strings.ReplaceAll(target, url.QueryEscape(secret), "***")
}
