package routes

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v3"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/notionnext/pagecache/internal/blocks"
	"github.com/notionnext/pagecache/internal/cache"
	"github.com/notionnext/pagecache/internal/config"
	"github.com/notionnext/pagecache/internal/fetcher"
	"github.com/notionnext/pagecache/internal/invalidate"
	"github.com/notionnext/pagecache/internal/logging"
	"github.com/notionnext/pagecache/internal/page"
	"github.com/notionnext/pagecache/internal/server"
)

const testPageID = "0f1e2d3c4b5a69788796a5b4c3d2e1f0"

type fixture struct {
	app    *fiber.App
	memory *cache.MemoryTier
	pages  *stubFetcher
}

type stubFetcher struct {
	page *blocks.RecordMap
}

func (s *stubFetcher) FetchPage(_ context.Context, pageID, _ string) (*blocks.RecordMap, error) {
	if s.page == nil {
		return nil, fmt.Errorf("%w: page %s", fetcher.ErrExhausted, pageID)
	}
	return s.page.Clone(), nil
}

func newFixture(t *testing.T, settings config.InvalidationConfig) *fixture {
	t.Helper()
	logger := logging.Discard()

	memory := cache.NewMemoryTier(0)
	manager, err := cache.NewManager(config.CacheConfig{}, logger, cache.WithTiers(memory))
	require.NoError(t, err)

	app, err := server.NewApp(server.AppOptions{Logger: logger, ListenPort: 5000})
	require.NoError(t, err)

	stub := &stubFetcher{}
	registry := prometheus.NewRegistry()
	registry.MustRegister(prometheus.NewCounter(prometheus.CounterOpts{Name: "pagecache_test_total", Help: "test"}))

	Register(app, Dependencies{
		Invalidation: invalidate.NewService(manager, nil, logger),
		Pages:        page.NewService(manager, stub, page.Options{Logger: logger}),
		Settings:     settings,
		Gatherer:     registry,
		Logger:       logger,
	})
	return &fixture{app: app, memory: memory, pages: stub}
}

func (f *fixture) do(t *testing.T, req *http.Request) (int, map[string]interface{}) {
	t.Helper()
	resp, err := f.app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	payload := map[string]interface{}{}
	if strings.HasPrefix(resp.Header.Get(fiber.HeaderContentType), fiber.MIMEApplicationJSON) {
		require.NoError(t, json.Unmarshal(body, &payload), string(body))
	}
	return resp.StatusCode, payload
}

func (f *fixture) seed(t *testing.T, keys ...string) {
	t.Helper()
	for _, key := range keys {
		require.NoError(t, f.memory.Set(context.Background(), key, []byte(`{}`)))
	}
}

func (f *fixture) has(key string) bool {
	_, err := f.memory.Get(context.Background(), key)
	return err == nil
}

func TestCacheRejectsBadSecretBeforeMutation(t *testing.T) {
	f := newFixture(t, config.InvalidationConfig{CacheSecret: "s3cret"})
	f.seed(t, "sentinel")

	status, payload := f.do(t, httptest.NewRequest(http.MethodPost, "/api/cache?action=clear&secret=nope", nil))
	require.Equal(t, fiber.StatusUnauthorized, status)
	require.Equal(t, "error", payload["status"])
	require.True(t, f.has("sentinel"))

	status, payload = f.do(t, httptest.NewRequest(http.MethodPost, "/api/cache?action=clear&secret=s3cret", nil))
	require.Equal(t, fiber.StatusOK, status)
	require.Equal(t, "All caches cleared successfully!", payload["message"])
	require.NotEmpty(t, payload["timestamp"])
	require.False(t, f.has("sentinel"))
}

func TestCacheClearSingleKey(t *testing.T) {
	f := newFixture(t, config.InvalidationConfig{})
	f.seed(t, "posts_all", "tags_all")

	status, payload := f.do(t, httptest.NewRequest(http.MethodPost, "/api/cache?action=clear&key=posts_all", nil))
	require.Equal(t, fiber.StatusOK, status)
	require.Equal(t, "Cache key 'posts_all' cleared successfully!", payload["message"])
	require.False(t, f.has("posts_all"))
	require.True(t, f.has("tags_all"))
}

func TestCacheRevalidate(t *testing.T) {
	f := newFixture(t, config.InvalidationConfig{})

	status, payload := f.do(t, httptest.NewRequest(http.MethodGet, "/api/cache?action=revalidate", nil))
	require.Equal(t, fiber.StatusBadRequest, status)
	require.Equal(t, "Path parameter is required for revalidation", payload["message"])

	status, payload = f.do(t, httptest.NewRequest(http.MethodGet, "/api/cache?action=revalidate&path=/archive", nil))
	require.Equal(t, fiber.StatusOK, status)
	require.Equal(t, "Path '/archive' revalidated successfully!", payload["message"])

	status, _ = f.do(t, httptest.NewRequest(http.MethodGet, "/api/cache?action=purge", nil))
	require.Equal(t, fiber.StatusBadRequest, status)
}

func TestCronClearAcceptsBearerOrQuery(t *testing.T) {
	f := newFixture(t, config.InvalidationConfig{CronSecret: "tick"})
	f.seed(t, "site_data_main", "page_block_a", "posts_all")

	status, _ := f.do(t, httptest.NewRequest(http.MethodGet, "/api/cron/clear-cache", nil))
	require.Equal(t, fiber.StatusUnauthorized, status)
	require.True(t, f.has("site_data_main"))

	req := httptest.NewRequest(http.MethodGet, "/api/cron/clear-cache", nil)
	req.Header.Set(fiber.HeaderAuthorization, "Bearer tick")
	status, payload := f.do(t, req)
	require.Equal(t, fiber.StatusOK, status)
	require.Equal(t, "Scheduled cache clearing completed successfully", payload["message"])
	require.Equal(t, map[string]interface{}{"memory": true, "redis": false, "file": false}, payload["clearedCaches"])
	require.False(t, f.has("site_data_main"))
	require.False(t, f.has("page_block_a"))
	require.True(t, f.has("posts_all"), "cron leaves listing caches alone")

	status, _ = f.do(t, httptest.NewRequest(http.MethodGet, "/api/cron/clear-cache?secret=tick", nil))
	require.Equal(t, fiber.StatusOK, status)
}

func TestWebhookRequiresPostAndSecret(t *testing.T) {
	f := newFixture(t, config.InvalidationConfig{WebhookSecret: "hook"})
	f.seed(t, "posts_all", "tags_all", "page_content_a_undefined", "unrelated")

	status, payload := f.do(t, httptest.NewRequest(http.MethodGet, "/api/webhook/notion?secret=hook", nil))
	require.Equal(t, fiber.StatusMethodNotAllowed, status)
	require.Equal(t, "Method not allowed. Use POST.", payload["message"])

	status, _ = f.do(t, httptest.NewRequest(http.MethodPost, "/api/webhook/notion", strings.NewReader(`{}`)))
	require.Equal(t, fiber.StatusUnauthorized, status)
	require.True(t, f.has("posts_all"))

	status, payload = f.do(t, httptest.NewRequest(http.MethodPost, "/api/webhook/notion?secret=hook", strings.NewReader(`{"type":"page.updated"}`)))
	require.Equal(t, fiber.StatusOK, status)
	require.NotEmpty(t, payload["event_id"])
	require.Len(t, payload["revalidated"], len(config.DefaultRevalidatePaths))
	require.False(t, f.has("posts_all"))
	require.False(t, f.has("tags_all"))
	require.False(t, f.has("page_content_a_undefined"))
	require.True(t, f.has("unrelated"))
}

func TestPageRoute(t *testing.T) {
	f := newFixture(t, config.InvalidationConfig{})

	status, _ := f.do(t, httptest.NewRequest(http.MethodGet, "/api/page/not-an-id", nil))
	require.Equal(t, fiber.StatusBadRequest, status)

	status, _ = f.do(t, httptest.NewRequest(http.MethodGet, "/api/page/"+testPageID, nil))
	require.Equal(t, fiber.StatusNotFound, status)

	raw := fmt.Sprintf(`{"block":{
		"%[1]s":{"role":"reader","value":{"id":"%[1]s","type":"page","properties":{"title":[["Draft"]]}}},
		"f1":{"role":"reader","value":{"id":"f1","type":"file","properties":{"title":[["notes.pdf"]],"source":[["https://example.com/notes.pdf"]]}}},
		"t1":{"role":"reader","value":{"id":"t1","type":"text"}}
	}}`, testPageID)
	var snapshot blocks.RecordMap
	require.NoError(t, json.Unmarshal([]byte(raw), &snapshot))
	f.pages.page = &snapshot

	resp, err := f.app.Test(httptest.NewRequest(http.MethodGet, "/api/page/"+testPageID+"?slice=1&download=1", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var got blocks.RecordMap
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	require.Equal(t, []string{testPageID, "f1"}, got.Block.Keys())

	rec, ok := got.Block.Get("f1")
	require.True(t, ok)
	props, ok := blocks.Decode(rec.Value).(blocks.MediaProps)
	require.True(t, ok)
	require.Equal(t, "https://example.com/notes.pdf?download=notes.pdf", props.Source)

	status, _ = f.do(t, httptest.NewRequest(http.MethodGet, "/api/page/"+testPageID+"?slice=-1", nil))
	require.Equal(t, fiber.StatusBadRequest, status)
}

func TestDiagnostics(t *testing.T) {
	f := newFixture(t, config.InvalidationConfig{})

	_, payload := f.do(t, httptest.NewRequest(http.MethodGet, "/-/tiers", nil))
	require.Equal(t, []interface{}{"memory"}, payload["tiers"])

	_, payload = f.do(t, httptest.NewRequest(http.MethodGet, "/-/blocktypes/code", nil))
	require.Equal(t, "code", payload["key"])
	require.Equal(t, "registered", payload["hook_status"])

	_, payload = f.do(t, httptest.NewRequest(http.MethodGet, "/-/blocktypes/text", nil))
	require.Equal(t, "missing", payload["hook_status"])

	status, _ := f.do(t, httptest.NewRequest(http.MethodGet, "/-/blocktypes/unknown", nil))
	require.Equal(t, fiber.StatusNotFound, status)

	_, payload = f.do(t, httptest.NewRequest(http.MethodGet, "/-/blocktypes", nil))
	kinds, ok := payload["blocktypes"].([]interface{})
	require.True(t, ok)
	require.Len(t, kinds, len(blocks.Keys()))
}

func TestMetricsEndpoint(t *testing.T) {
	f := newFixture(t, config.InvalidationConfig{})

	resp, err := f.app.Test(httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Contains(t, string(body), "pagecache_test_total")
}
