package server

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/notionnext/pagecache/internal/logging"
)

// AppOptions controls how the Fiber application should behave on a specific port.
type AppOptions struct {
	Logger     *logrus.Logger
	ListenPort int
}

const contextKeyRequestID = "_pagecache_request_id"

// NewApp builds a Fiber application with request-id middleware, panic
// recovery and JSON error rendering. Routes are attached by the routes package.
func NewApp(opts AppOptions) (*fiber.App, error) {
	if opts.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if opts.ListenPort <= 0 {
		return nil, fmt.Errorf("invalid listen port: %d", opts.ListenPort)
	}

	app := fiber.New(fiber.Config{
		CaseSensitive: true,
		ErrorHandler:  errorHandler(opts.Logger),
	})

	app.Use(recover.New())
	app.Use(requestContextMiddleware(opts))

	return app, nil
}

// requestContextMiddleware 负责生成请求 ID，并在请求结束后记录访问日志（诊断路径除外）。
func requestContextMiddleware(opts AppOptions) fiber.Handler {
	return func(c fiber.Ctx) error {
		reqID := uuid.NewString()
		c.Locals(contextKeyRequestID, reqID)
		c.Set("X-Request-ID", reqID)

		path := string(c.Request().URI().Path())
		began := time.Now()
		err := c.Next()
		if isDiagnosticsPath(path) {
			return err
		}

		fields := logging.RequestFields(c.Method(), path, reqID)
		fields["status"] = c.Response().StatusCode()
		fields["elapsed_ms"] = time.Since(began).Milliseconds()
		entry := opts.Logger.WithFields(fields)
		if err != nil {
			entry.WithError(err).Warn("request failed")
		} else {
			entry.Debug("request served")
		}
		return err
	}
}

// errorHandler 把未处理的错误统一渲染为 JSON 状态信封。
func errorHandler(logger *logrus.Logger) fiber.ErrorHandler {
	return func(c fiber.Ctx, err error) error {
		status := fiber.StatusInternalServerError
		var fiberErr *fiber.Error
		if errors.As(err, &fiberErr) {
			status = fiberErr.Code
		}
		if status >= fiber.StatusInternalServerError {
			logger.WithFields(logging.RequestFields(c.Method(), c.Path(), RequestID(c))).WithError(err).Error("unhandled error")
		}
		return c.Status(status).JSON(fiber.Map{
			"status":    "error",
			"message":   err.Error(),
			"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
		})
	}
}

// RequestID returns the request identifier stored by the router middleware.
func RequestID(c fiber.Ctx) string {
	if value := c.Locals(contextKeyRequestID); value != nil {
		if reqID, ok := value.(string); ok {
			return reqID
		}
	}
	return ""
}

func isDiagnosticsPath(path string) bool {
	return strings.HasPrefix(path, "/-/") || path == "/metrics"
}
