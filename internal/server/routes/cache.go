package routes

import (
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus"

	"github.com/notionnext/pagecache/internal/invalidate"
	"github.com/notionnext/pagecache/internal/logging"
	"github.com/notionnext/pagecache/internal/server"
)

// RegisterCacheRoutes 暴露 /api/cache：
//
//	POST /api/cache?action=clear[&key=<key>]
//	GET  /api/cache?action=revalidate&path=/
func RegisterCacheRoutes(app *fiber.App, svc *invalidate.Service, secret string, logger *logrus.Logger) {
	app.All("/api/cache", func(c fiber.Ctx) error {
		fields := logging.RequestFields(c.Method(), c.Path(), server.RequestID(c))
		if err := invalidate.Authorize(secret, c.Query("secret")); err != nil {
			logger.WithFields(fields).Warn("cache_unauthorized")
			return respondError(c, fiber.StatusUnauthorized, "Unauthorized. Please provide valid secret.", nil)
		}

		ctx := c.Context()
		switch c.Query("action") {
		case "clear":
			if key := c.Query("key"); key != "" {
				if err := svc.ClearKey(ctx, key); err != nil {
					return respondError(c, fiber.StatusInternalServerError, "Cache operation failed!", err)
				}
				return respond(c, fiber.StatusOK, fmt.Sprintf("Cache key '%s' cleared successfully!", key), nil)
			}
			if err := svc.ClearAll(ctx); err != nil {
				return respondError(c, fiber.StatusInternalServerError, "Cache operation failed!", err)
			}
			return respond(c, fiber.StatusOK, "All caches cleared successfully!", nil)

		case "revalidate":
			path := c.Query("path")
			if path == "" {
				return respondError(c, fiber.StatusBadRequest, "Path parameter is required for revalidation", nil)
			}
			if err := svc.Revalidate(ctx, path); err != nil {
				if errors.Is(err, invalidate.ErrInvalidPath) {
					return respondError(c, fiber.StatusBadRequest, "Path must start with /", err)
				}
				return respondError(c, fiber.StatusInternalServerError, "Revalidation failed", err)
			}
			return respond(c, fiber.StatusOK, fmt.Sprintf("Path '%s' revalidated successfully!", path), nil)

		default:
			return respondError(c, fiber.StatusBadRequest, `Invalid action. Use "clear" or "revalidate"`, nil)
		}
	})
}
