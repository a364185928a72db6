// Package routes attaches the HTTP surfaces of the page cache to a Fiber app:
// the invalidation endpoints, the page API, diagnostics under /-/ and the
// Prometheus scrape endpoint.
package routes

import (
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/notionnext/pagecache/internal/config"
	"github.com/notionnext/pagecache/internal/invalidate"
	"github.com/notionnext/pagecache/internal/logging"
	"github.com/notionnext/pagecache/internal/page"
)

// Dependencies 汇总路由需要的服务；为 nil 的服务对应的路由不会注册。
type Dependencies struct {
	Invalidation *invalidate.Service
	Pages        *page.Service
	Settings     config.InvalidationConfig
	Gatherer     prometheus.Gatherer
	Logger       *logrus.Logger
}

// Register 注册全部路由。
func Register(app *fiber.App, deps Dependencies) {
	if app == nil {
		return
	}
	logger := logging.OrDiscard(deps.Logger)
	if deps.Invalidation != nil {
		RegisterCacheRoutes(app, deps.Invalidation, deps.Settings.CacheSecret, logger)
		RegisterCronRoutes(app, deps.Invalidation, deps.Settings.CronSecret, logger)
		RegisterWebhookRoutes(app, deps.Invalidation, deps.Settings, logger)
		RegisterDiagnosticRoutes(app, deps.Invalidation)
	}
	if deps.Pages != nil {
		RegisterPageRoutes(app, deps.Pages, logger)
	}
	if deps.Gatherer != nil {
		RegisterMetricsRoute(app, deps.Gatherer)
	}
}

func timestamp() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}

// respond 输出 {status, message, timestamp, ...extra} 信封。
func respond(c fiber.Ctx, code int, message string, extra fiber.Map) error {
	status := "success"
	if code >= fiber.StatusBadRequest {
		status = "error"
	}
	payload := fiber.Map{
		"status":    status,
		"message":   message,
		"timestamp": timestamp(),
	}
	for key, value := range extra {
		payload[key] = value
	}
	return c.Status(code).JSON(payload)
}

func respondError(c fiber.Ctx, code int, message string, err error) error {
	var extra fiber.Map
	if err != nil {
		extra = fiber.Map{"error": err.Error()}
	}
	return respond(c, code, message, extra)
}
