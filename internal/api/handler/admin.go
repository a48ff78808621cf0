package handler

import (
	"net/http"
	"strings"

	"civicdesk/backend/internal/api/respond"
	"civicdesk/backend/internal/apperr"
	"civicdesk/backend/internal/auth"
	"civicdesk/backend/internal/models"

	"github.com/gin-gonic/gin"
)

type workerView struct {
	ID   uint   `json:"id"`
	Name string `json:"name"`
}

// ListWorkers returns the active workers an admin can assign.
func (h *Handler) ListWorkers(c *gin.Context) {
	workers, err := h.auth.ListWorkers(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	out := make([]workerView, 0, len(workers))
	for _, w := range workers {
		out = append(out, workerView{ID: w.ID, Name: w.Name})
	}
	c.JSON(http.StatusOK, out)
}

func (h *Handler) AddWorker(c *gin.Context) {
	var req registerRequest
	if err := bindJSON(c, &req); err != nil {
		h.fail(c, err)
		return
	}
	worker, err := h.auth.AddWorker(c.Request.Context(), auth.NewAccount{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
		Address:  req.Address,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "Worker added successfully", "worker": workerView{ID: worker.ID, Name: worker.Name}})
}

// RemoveWorker деактивує працівника (м'яке видалення).
func (h *Handler) RemoveWorker(c *gin.Context) {
	id, err := uintParam(c, "id")
	if err != nil {
		h.fail(c, err)
		return
	}
	if err := h.auth.RemoveWorker(c.Request.Context(), id); err != nil {
		h.fail(c, err)
		return
	}
	respond.Message(c, http.StatusOK, "Worker removed successfully")
}

func (h *Handler) WorkerActivity(c *gin.Context) {
	rows, err := h.complaints.WorkerActivity(c.Request.Context(), c.Param("workerName"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, rows)
}

// ActiveChats lists citizen chat rooms, most recently active first.
func (h *Handler) ActiveChats(c *gin.Context) {
	rooms, err := h.hub.ActiveRooms(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, rooms)
}

type announcementRequest struct {
	Title    string   `json:"title" binding:"required"`
	Message  string   `json:"message" binding:"required"`
	Type     string   `json:"type"`
	Audience []string `json:"audience"`
}

func (h *Handler) PostAnnouncement(c *gin.Context) {
	var req announcementRequest
	if err := bindJSON(c, &req); err != nil {
		h.fail(c, err)
		return
	}
	for _, r := range req.Audience {
		if !models.Role(r).Valid() {
			h.fail(c, apperr.Validation("invalid_audience", "unknown role "+r))
			return
		}
	}

	a := &models.Announcement{
		Title:    strings.TrimSpace(req.Title),
		Message:  strings.TrimSpace(req.Message),
		Type:     models.AnnouncementType(strings.TrimSpace(req.Type)),
		Audience: models.RoleList(req.Audience),
	}
	if err := h.store.CreateAnnouncement(c.Request.Context(), a); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, a)
}
