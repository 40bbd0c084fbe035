package controller

import (
	"subsea-agent-be/internal/pkg/serverutils"
	"subsea-agent-be/internal/service"

	"github.com/gofiber/fiber/v2"
)

type IAdminController interface {
	RegisterRoutes(r fiber.Router)
	Stats(ctx *fiber.Ctx) error
	Logs(ctx *fiber.Ctx) error
	AppLogs(ctx *fiber.Ctx) error
	ClearCache(ctx *fiber.Ctx) error
	ClearStats(ctx *fiber.Ctx) error
	RebuildIndex(ctx *fiber.Ctx) error
}

type adminController struct {
	service service.IAdminService
}

func NewAdminController(service service.IAdminService) IAdminController {
	return &adminController{service: service}
}

func (c *adminController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/admin/v1")
	// The stats dashboard is read-only and public; everything that
	// mutates state or exposes raw logs needs the admin token.
	h.Get("/stats", c.Stats)
	h.Get("/logs", serverutils.JwtMiddleware, c.Logs)
	h.Get("/app-logs", serverutils.JwtMiddleware, c.AppLogs)
	h.Post("/clear-cache", serverutils.JwtMiddleware, c.ClearCache)
	h.Post("/clear-stats", serverutils.JwtMiddleware, c.ClearStats)
	h.Post("/rebuild-index", serverutils.JwtMiddleware, c.RebuildIndex)
}

// AppLogs reads the structured application log file.
func (c *adminController) AppLogs(ctx *fiber.Ctx) error {
	level := ctx.Query("level", "")
	limit := ctx.QueryInt("limit", 100)
	offset := ctx.QueryInt("offset", 0)

	res, err := c.service.AppLogs(level, limit, offset)
	if err != nil {
		return err
	}
	return serverutils.SuccessResponse(ctx, res)
}

func (c *adminController) Stats(ctx *fiber.Ctx) error {
	res, err := c.service.Stats(ctx.Context())
	if err != nil {
		return err
	}
	return serverutils.SuccessResponse(ctx, res)
}

func (c *adminController) Logs(ctx *fiber.Ctx) error {
	limit := ctx.QueryInt("limit", 50)
	offset := ctx.QueryInt("offset", 0)

	res, err := c.service.Logs(ctx.Context(), limit, offset)
	if err != nil {
		return err
	}
	return serverutils.SuccessResponse(ctx, res)
}

func (c *adminController) ClearCache(ctx *fiber.Ctx) error {
	c.service.ClearCache(ctx.Context())
	return serverutils.SuccessMessage(ctx, "Cache cleared")
}

func (c *adminController) ClearStats(ctx *fiber.Ctx) error {
	if err := c.service.ClearStats(ctx.Context()); err != nil {
		return err
	}
	return serverutils.SuccessMessage(ctx, "Stats cleared")
}

// RebuildIndex re-embeds every image. Slow on large image sets; the
// request blocks until the index is rebuilt.
func (c *adminController) RebuildIndex(ctx *fiber.Ctx) error {
	count, err := c.service.RebuildIndex(ctx.Context())
	if err != nil {
		return err
	}
	return serverutils.SuccessResponse(ctx, fiber.Map{"indexed_images": count})
}
