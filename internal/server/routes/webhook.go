package routes

import (
	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/notionnext/pagecache/internal/config"
	"github.com/notionnext/pagecache/internal/invalidate"
	"github.com/notionnext/pagecache/internal/logging"
	"github.com/notionnext/pagecache/internal/server"
)

const webhookBodyLogLimit = 2048

// RegisterWebhookRoutes 暴露 POST /api/webhook/notion：清理 Notion 相关键族并重新生成固定路由。
func RegisterWebhookRoutes(app *fiber.App, svc *invalidate.Service, settings config.InvalidationConfig, logger *logrus.Logger) {
	paths := settings.RevalidatePaths
	if len(paths) == 0 {
		paths = config.DefaultRevalidatePaths
	}

	app.All("/api/webhook/notion", func(c fiber.Ctx) error {
		if c.Method() != fiber.MethodPost {
			return respondError(c, fiber.StatusMethodNotAllowed, "Method not allowed. Use POST.", nil)
		}

		fields := logging.RequestFields(c.Method(), c.Path(), server.RequestID(c))
		if err := invalidate.Authorize(settings.WebhookSecret, c.Query("secret")); err != nil {
			logger.WithFields(fields).Warn("webhook_unauthorized")
			return respondError(c, fiber.StatusUnauthorized, "Unauthorized webhook request", nil)
		}

		eventID := uuid.NewString()
		body := c.Body()
		if len(body) > webhookBodyLogLimit {
			body = body[:webhookBodyLogLimit]
		}
		logger.WithFields(fields).WithFields(logrus.Fields{
			"event_id": eventID,
			"body":     string(body),
		}).Info("notion webhook received")

		cleared, revalidated, err := svc.WebhookClear(c.Context(), paths)
		if err != nil {
			return respond(c, fiber.StatusInternalServerError, "Webhook processing failed", fiber.Map{
				"error":    err.Error(),
				"event_id": eventID,
			})
		}

		// 重新生成失败只记录，不影响响应状态
		return respond(c, fiber.StatusOK, "Notion webhook processed successfully. Caches cleared and pages revalidated.", fiber.Map{
			"event_id":    eventID,
			"deleted":     cleared.Deleted,
			"revalidated": revalidated.Succeeded,
			"failed":      revalidated.Failed,
		})
	})
}
