package routes

import (
	"sort"
	"strings"

	"github.com/gofiber/fiber/v3"

	"github.com/notionnext/pagecache/internal/blocks"
	"github.com/notionnext/pagecache/internal/invalidate"
	"github.com/notionnext/pagecache/internal/normalize"
)

// RegisterDiagnosticRoutes 暴露 /-/tiers 与 /-/blocktypes 诊断接口。
func RegisterDiagnosticRoutes(app *fiber.App, svc *invalidate.Service) {
	app.Get("/-/tiers", func(c fiber.Ctx) error {
		return c.JSON(fiber.Map{"tiers": svc.Tiers()})
	})

	app.Get("/-/blocktypes", func(c fiber.Ctx) error {
		return c.JSON(fiber.Map{"blocktypes": encodeKinds()})
	})

	app.Get("/-/blocktypes/:key", func(c fiber.Ctx) error {
		key := strings.ToLower(strings.TrimSpace(c.Params("key")))
		kind, ok := blocks.Resolve(key)
		if !ok {
			return fiber.NewError(fiber.StatusNotFound, "blocktype_not_found")
		}
		return c.JSON(encodeKind(kind, normalize.Status(kind.Key)))
	})
}

type kindPayload struct {
	Key         string `json:"key"`
	Description string `json:"description"`
	Container   bool   `json:"container"`
	Media       bool   `json:"media"`
	HookStatus  string `json:"hook_status"`
}

func encodeKinds() []kindPayload {
	kinds := blocks.List()
	status := normalize.Snapshot(blocks.Keys())
	sort.Slice(kinds, func(i, j int) bool {
		return kinds[i].Key < kinds[j].Key
	})

	result := make([]kindPayload, 0, len(kinds))
	for _, kind := range kinds {
		result = append(result, encodeKind(kind, status[kind.Key]))
	}
	return result
}

func encodeKind(kind blocks.Kind, hookStatus string) kindPayload {
	if hookStatus == "" {
		hookStatus = "missing"
	}
	return kindPayload{
		Key:         kind.Key,
		Description: kind.Description,
		Container:   kind.Container,
		Media:       kind.Media,
		HookStatus:  hookStatus,
	}
}
