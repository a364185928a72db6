package routes

import (
	"strconv"

	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus"

	"github.com/notionnext/pagecache/internal/blocks"
	"github.com/notionnext/pagecache/internal/fileurl"
	"github.com/notionnext/pagecache/internal/logging"
	"github.com/notionnext/pagecache/internal/notion"
	"github.com/notionnext/pagecache/internal/page"
	"github.com/notionnext/pagecache/internal/server"
)

// RegisterPageRoutes 暴露 GET /api/page/:id?slice=&from=&download=1。
func RegisterPageRoutes(app *fiber.App, svc *page.Service, logger *logrus.Logger) {
	app.Get("/api/page/:id", func(c fiber.Ctx) error {
		pageID, err := notion.ParsePageID(c.Params("id"))
		if err != nil {
			return respondError(c, fiber.StatusBadRequest, "Invalid page id", err)
		}

		slice := 0
		if raw := c.Query("slice"); raw != "" {
			slice, err = strconv.Atoi(raw)
			if err != nil || slice < 0 {
				return respondError(c, fiber.StatusBadRequest, "slice must be a non-negative integer", nil)
			}
		}
		from := c.Query("from", "api")

		content, err := svc.GetPage(c.Context(), pageID, from, slice)
		if err != nil {
			logger.WithFields(logging.RequestFields(c.Method(), c.Path(), server.RequestID(c))).
				WithError(err).Error("page_load_failed")
			return respondError(c, fiber.StatusInternalServerError, "Page load failed", err)
		}
		if content == nil {
			return respondError(c, fiber.StatusNotFound, "Page not found", nil)
		}

		if c.Query("download") == "1" {
			attachDownloadNames(content)
		}
		return c.JSON(content)
	})
}

// attachDownloadNames 为 file/pdf 块的资源地址追加 download=<标题>。
func attachDownloadNames(content *blocks.RecordMap) {
	content.Block.Range(func(_ string, rec *blocks.Record) bool {
		if rec == nil || rec.Value == nil {
			return true
		}
		block := rec.Value
		if block.Type != blocks.TypeFile && block.Type != blocks.TypePDF {
			return true
		}
		props, ok := blocks.Decode(block).(blocks.MediaProps)
		if !ok || props.Source == "" {
			return true
		}
		title, _ := block.FirstValue(blocks.PropTitle)
		if next := fileurl.DownloadURL(props.Source, title); next != props.Source {
			block.SetSource(next)
		}
		return true
	})
}
