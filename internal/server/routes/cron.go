package routes

import (
	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus"
	"go.uber.org/multierr"

	"github.com/notionnext/pagecache/internal/config"
	"github.com/notionnext/pagecache/internal/invalidate"
	"github.com/notionnext/pagecache/internal/logging"
	"github.com/notionnext/pagecache/internal/server"
)

// RegisterCronRoutes 暴露 GET /api/cron/clear-cache，供外部定时器触发。
// 鉴权接受 Authorization: Bearer <secret> 或 ?secret=<secret>。
func RegisterCronRoutes(app *fiber.App, svc *invalidate.Service, secret string, logger *logrus.Logger) {
	app.Get("/api/cron/clear-cache", func(c fiber.Ctx) error {
		fields := logging.RequestFields(c.Method(), c.Path(), server.RequestID(c))
		bearer := invalidate.BearerToken(c.Get(fiber.HeaderAuthorization))
		if err := invalidate.Authorize(secret, bearer, c.Query("secret")); err != nil {
			logger.WithFields(fields).Warn("cron_unauthorized")
			return respondError(c, fiber.StatusUnauthorized, "Unauthorized. Invalid cron secret.", nil)
		}

		result, err := svc.ScheduledClear(c.Context())
		extra := fiber.Map{
			"clearedCaches": clearedCaches(svc.Tiers()),
			"deleted":       result.Deleted,
		}
		// 单个缓存层失败只记录，不影响整体结果
		if err != nil {
			messages := make([]string, 0)
			for _, e := range multierr.Errors(err) {
				messages = append(messages, e.Error())
			}
			extra["errors"] = messages
			logger.WithFields(fields).WithError(err).Warn("cron_clear_partial")
		}
		return respond(c, fiber.StatusOK, "Scheduled cache clearing completed successfully", extra)
	})
}

func clearedCaches(tiers []string) fiber.Map {
	out := fiber.Map{
		config.TierRedis:  false,
		config.TierFile:   false,
		config.TierMemory: false,
	}
	for _, tier := range tiers {
		out[tier] = true
	}
	return out
}
