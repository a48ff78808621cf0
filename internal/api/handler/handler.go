// Package handler contains the gin handlers of the HTTP API.
package handler

import (
	"net/http"
	"strconv"

	"civicdesk/backend/internal/api/middleware"
	"civicdesk/backend/internal/api/respond"
	"civicdesk/backend/internal/apperr"
	"civicdesk/backend/internal/auth"
	"civicdesk/backend/internal/chathub"
	"civicdesk/backend/internal/classifier"
	"civicdesk/backend/internal/complaint"
	"civicdesk/backend/internal/models"
	"civicdesk/backend/internal/otp"
	"civicdesk/backend/internal/storage"
	"civicdesk/backend/internal/uploads"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Deps are the services the handlers call into.
type Deps struct {
	Auth       *auth.Service
	Complaints *complaint.Service
	OTP        *otp.Service
	Hub        *chathub.ManagerService
	Store      storage.Storage
	Uploads    *uploads.Store
	Classifier classifier.Classifier
	Log        *zap.Logger
}

// Handler містить посилання на сервіси застосунку
type Handler struct {
	auth       *auth.Service
	complaints *complaint.Service
	otp        *otp.Service
	hub        *chathub.ManagerService
	store      storage.Storage
	uploads    *uploads.Store
	classifier classifier.Classifier
	log        *zap.Logger
	upgrader   websocket.Upgrader
}

func NewHandler(d Deps) *Handler {
	return &Handler{
		auth:       d.Auth,
		complaints: d.Complaints,
		otp:        d.OTP,
		hub:        d.Hub,
		store:      d.Store,
		uploads:    d.Uploads,
		classifier: d.Classifier,
		log:        d.Log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Дозволяє з'єднання з будь-якого домену. У продакшені налаштувати!
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Health is the liveness probe.
func (h *Handler) Health(c *gin.Context) {
	c.String(http.StatusOK, "CivicDesk backend running")
}

func (h *Handler) fail(c *gin.Context, err error) {
	respond.Error(c, h.log, err)
}

// uintParam parses a positive integer route parameter.
func uintParam(c *gin.Context, name string) (uint, error) {
	v, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || v == 0 {
		return 0, apperr.Validation("invalid_"+name, name+" must be a positive integer")
	}
	return uint(v), nil
}

// requireSelfOrAdmin allows admins and the user the resource belongs to.
func requireSelfOrAdmin(c *gin.Context, userID uint) error {
	claims := middleware.CurrentUser(c)
	if claims == nil {
		return apperr.Unauthorized("missing_token", "authorization token missing")
	}
	if claims.Role == models.RoleAdmin || claims.UserID == userID {
		return nil
	}
	return apperr.Forbidden("forbidden", "not allowed to access another user's data")
}
