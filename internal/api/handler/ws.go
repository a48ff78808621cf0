package handler

import (
	"context"
	"net/http"

	"civicdesk/backend/internal/api/middleware"
	"civicdesk/backend/internal/apperr"
	"civicdesk/backend/internal/chathub"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ServeWebSocket оновлює HTTP-з'єднання до WebSocket. Auth middleware has
// already verified the token (header or ?token=).
func (h *Handler) ServeWebSocket(c *gin.Context) {
	claims := middleware.CurrentUser(c)

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade has already written the error response
		h.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	// The request context ends with this handler; the connection outlives it.
	ctx := context.WithoutCancel(c.Request.Context())

	// 1. Створення нового клієнта
	client := chathub.NewWebSocketClient(ctx, h.hub, conn, chathub.Identity{
		UserID: claims.UserID,
		Name:   claims.Name,
		Role:   claims.Role,
	})

	// 2. Реєстрація клієнта в Chat Hub
	h.hub.Register(client)

	// 3. Запуск клієнта
	client.Run()
}

// ChatHistory returns a room's messages in the order they were stored.
func (h *Handler) ChatHistory(c *gin.Context) {
	room := c.Param("room")
	claims := middleware.CurrentUser(c)
	if !chathub.CanJoin(chathub.Identity{UserID: claims.UserID, Name: claims.Name, Role: claims.Role}, room) {
		h.fail(c, apperr.Forbidden("room_forbidden", "not allowed to read this room"))
		return
	}
	history, err := h.hub.History(c.Request.Context(), room)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, history)
}
