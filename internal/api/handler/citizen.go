package handler

import (
	"net/http"

	"civicdesk/backend/internal/api/middleware"

	"github.com/gin-gonic/gin"
)

func (h *Handler) CitizenStats(c *gin.Context) {
	id, err := uintParam(c, "citizenId")
	if err != nil {
		h.fail(c, err)
		return
	}
	if err := requireSelfOrAdmin(c, id); err != nil {
		h.fail(c, err)
		return
	}
	stats, err := h.complaints.CitizenStats(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (h *Handler) CitizenActivity(c *gin.Context) {
	id, err := uintParam(c, "id")
	if err != nil {
		h.fail(c, err)
		return
	}
	if err := requireSelfOrAdmin(c, id); err != nil {
		h.fail(c, err)
		return
	}
	rows, err := h.complaints.CitizenActivity(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, rows)
}

// Notifications returns the caller's notifications: role broadcasts plus
// personal ones, newest first.
func (h *Handler) Notifications(c *gin.Context) {
	claims := middleware.CurrentUser(c)
	list, err := h.store.ListNotifications(c.Request.Context(), claims.Role, claims.UserID)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

// Announcements returns announcements addressed to the caller's role.
func (h *Handler) Announcements(c *gin.Context) {
	claims := middleware.CurrentUser(c)
	list, err := h.store.ListAnnouncements(c.Request.Context(), claims.Role)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}
