package controller

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"

	"subsea-agent-be/internal/dto"
	"subsea-agent-be/internal/pkg/logger"
	"subsea-agent-be/internal/pkg/serverutils"
	"subsea-agent-be/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/valyala/fasthttp"
)

type IChatController interface {
	RegisterRoutes(r fiber.Router)
	Stream(ctx *fiber.Ctx) error
	SearchImages(ctx *fiber.Ctx) error
	Feedback(ctx *fiber.Ctx) error
	ClearSession(ctx *fiber.Ctx) error
}

type chatController struct {
	service service.IChatService
	log     logger.ILogger
}

func NewChatController(service service.IChatService, log logger.ILogger) IChatController {
	return &chatController{service: service, log: log}
}

func (c *chatController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/chat/v1")
	h.Post("/stream", c.Stream)
	h.Post("/search-images", c.SearchImages)
	h.Post("/feedback", c.Feedback)
	h.Post("/clear", c.ClearSession)
}

// Stream answers one chat turn over SSE. Every event is one
// "data: {json}\n\n" frame; the done frame is always last.
func (c *chatController) Stream(ctx *fiber.Ctx) error {
	var req dto.ChatStreamRequest
	if err := serverutils.ValidateRequest(ctx, &req); err != nil {
		return err
	}

	ctx.Set("Content-Type", "text/event-stream")
	ctx.Set("Cache-Control", "no-cache")
	ctx.Set("Connection", "keep-alive")
	ctx.Set("X-Accel-Buffering", "no")

	// The fiber context is recycled once the handler returns; the stream
	// writer must not touch it. Detach what the turn needs up front.
	userCtx := context.Background()
	svc := c.service
	log := c.log

	ctx.Context().SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
		err := svc.StreamChat(userCtx, &req, func(ev dto.StreamEventDTO) error {
			payload, err := json.Marshal(ev)
			if err != nil {
				return err
			}
			if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
				return err
			}
			return w.Flush()
		})
		if err != nil {
			log.Warn("chat_controller", "stream aborted", map[string]interface{}{
				"error": err.Error(),
			})
		}
	}))
	return nil
}

func (c *chatController) SearchImages(ctx *fiber.Ctx) error {
	var req dto.SearchImagesRequest
	if err := serverutils.ValidateRequest(ctx, &req); err != nil {
		return err
	}

	res, err := c.service.SearchImages(ctx.Context(), &req)
	if err != nil {
		return err
	}
	return serverutils.SuccessResponse(ctx, res)
}

func (c *chatController) Feedback(ctx *fiber.Ctx) error {
	var req dto.FeedbackRequest
	if err := serverutils.ValidateRequest(ctx, &req); err != nil {
		return err
	}

	if err := c.service.SubmitFeedback(ctx.Context(), &req); err != nil {
		return err
	}
	return serverutils.SuccessMessage(ctx, "Feedback recorded")
}

func (c *chatController) ClearSession(ctx *fiber.Ctx) error {
	var req dto.ClearSessionRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	if err := c.service.ClearSession(ctx.Context(), req.SessionId); err != nil {
		return err
	}
	return serverutils.SuccessMessage(ctx, "Session cleared")
}
