package websocket

import (
	"context"

	"subsea-agent-be/internal/dto"
	"subsea-agent-be/internal/pkg/logger"
	"subsea-agent-be/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

// ChatHandler serves the same event stream as the SSE endpoint over a
// websocket. Each inbound message is one chat turn; the events of that
// turn are written back as JSON frames, ending with the done frame.
type ChatHandler struct {
	service service.IChatService
	log     logger.ILogger
}

func NewChatHandler(service service.IChatService, log logger.ILogger) *ChatHandler {
	return &ChatHandler{service: service, log: log}
}

func (h *ChatHandler) RegisterRoutes(r fiber.Router) {
	r.Use("/ws", func(ctx *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(ctx) {
			return ctx.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	r.Get("/ws/chat", websocket.New(h.serve))
}

func (h *ChatHandler) serve(conn *websocket.Conn) {
	defer conn.Close()

	for {
		var req dto.ChatStreamRequest
		if err := conn.ReadJSON(&req); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.log.Warn("websocket", "read failed", map[string]interface{}{
					"error": err.Error(),
				})
			}
			return
		}

		if req.Question == "" {
			if err := conn.WriteJSON(dto.StreamEventDTO{Type: "error", Content: "question is required"}); err != nil {
				return
			}
			continue
		}

		err := h.service.StreamChat(context.Background(), &req, func(ev dto.StreamEventDTO) error {
			return conn.WriteJSON(ev)
		})
		if err != nil {
			// Write failed, the peer is gone.
			return
		}
	}
}
