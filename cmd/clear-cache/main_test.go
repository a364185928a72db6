package main

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func env(values map[string]string) func(string) string {
	return func(key string) string {
		return values[key]
	}
}

func useBuffers(t *testing.T) (*bytes.Buffer, *bytes.Buffer) {
	t.Helper()
	prevOut, prevErr := stdOut, stdErr
	out, errOut := &bytes.Buffer{}, &bytes.Buffer{}
	stdOut, stdErr = out, errOut
	t.Cleanup(func() {
		stdOut, stdErr = prevOut, prevErr
	})
	return out, errOut
}

func TestParseCLIFlagsDefaults(t *testing.T) {
	opts, err := parseCLIFlags(nil, env(nil))
	require.NoError(t, err)
	require.Equal(t, "localhost:3000", opts.site)
	require.Empty(t, opts.secret)
	require.False(t, opts.https)
	require.Equal(t, []string{"/", "/archive", "/tag", "/category"}, opts.paths)

	opts, err = parseCLIFlags(nil, env(map[string]string{
		"SITE_URL":     "blog.example.com",
		"CACHE_SECRET": "s3cret",
		"NODE_ENV":     "production",
	}))
	require.NoError(t, err)
	require.Equal(t, "blog.example.com", opts.site)
	require.Equal(t, "s3cret", opts.secret)
	require.True(t, opts.https)

	opts, err = parseCLIFlags([]string{"--site", "https://other.example.com/", "--secret", "x"}, env(map[string]string{"SITE_URL": "ignored"}))
	require.NoError(t, err)
	require.Equal(t, "other.example.com", opts.site)
	require.Equal(t, "x", opts.secret)
	require.True(t, opts.https)
}

func TestParseCLIFlagsRejectsBadInput(t *testing.T) {
	_, err := parseCLIFlags([]string{"--unknown"}, env(nil))
	require.Error(t, err)

	_, err = parseCLIFlags([]string{"--site", " "}, env(nil))
	require.Error(t, err)

	_, err = parseCLIFlags([]string{"stray"}, env(nil))
	require.Error(t, err)
}

type recordedCall struct {
	method string
	query  string
	agent  string
}

func TestRunClearsThenRevalidates(t *testing.T) {
	var (
		mu    sync.Mutex
		calls []recordedCall
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		calls = append(calls, recordedCall{method: r.Method, query: r.URL.RawQuery, agent: r.UserAgent()})
		mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		if r.URL.Query().Get("path") == "/tag" {
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte(`{"status":"error","message":"Revalidation failed"}`))
			return
		}
		_, _ = w.Write([]byte(`{"status":"success","message":"ok"}`))
	}))
	defer srv.Close()

	out, errOut := useBuffers(t)
	opts := cliOptions{
		site:   strings.TrimPrefix(srv.URL, "http://"),
		secret: "s3cret",
		paths:  []string{"/", "/tag"},
	}

	code := run(context.Background(), opts, srv.Client())
	require.Equal(t, 0, code)

	require.Len(t, calls, 3)
	require.Equal(t, http.MethodPost, calls[0].method)
	require.Equal(t, "action=clear&secret=s3cret", calls[0].query)
	require.Equal(t, http.MethodGet, calls[1].method)
	require.Equal(t, "action=revalidate&path=%2F&secret=s3cret", calls[1].query)
	require.Equal(t, userAgent, calls[2].agent)

	require.Contains(t, out.String(), "✅ 缓存清理成功: ok")
	require.Contains(t, out.String(), "✅ 页面 / 重新验证成功")
	require.Contains(t, errOut.String(), "❌ 页面 /tag 重新验证失败: Revalidation failed")
	require.NotContains(t, out.String(), "s3cret", "secret is redacted in progress output")
}

func TestRunKeepsGoingWhenSiteIsDown(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	site := strings.TrimPrefix(srv.URL, "http://")
	srv.Close()

	out, errOut := useBuffers(t)
	code := run(context.Background(), cliOptions{site: site, paths: []string{"/"}}, http.DefaultClient)

	require.Equal(t, 0, code)
	require.Contains(t, errOut.String(), "❌ 请求失败")
	require.Contains(t, errOut.String(), "❌ 页面 / 请求失败")
	require.Contains(t, out.String(), "✨ 缓存清理完成！")
}
