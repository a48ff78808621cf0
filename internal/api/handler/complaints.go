package handler

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"civicdesk/backend/internal/api/middleware"
	"civicdesk/backend/internal/api/respond"
	"civicdesk/backend/internal/apperr"
	"civicdesk/backend/internal/complaint"
	"civicdesk/backend/internal/export"
	"civicdesk/backend/internal/models"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// optionalFloat parses a form value; empty means absent.
func optionalFloat(c *gin.Context, field string) (*float64, error) {
	raw := strings.TrimSpace(c.PostForm(field))
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, apperr.Validation("invalid_coordinates", field+" must be a number")
	}
	return &v, nil
}

// savePhoto stores the optional file in field. It returns nil when no file was sent.
func (h *Handler) savePhoto(c *gin.Context, field string) (*string, error) {
	fh, err := c.FormFile(field)
	if errors.Is(err, http.ErrMissingFile) {
		return nil, nil
	}
	if err != nil {
		return nil, apperr.Validation("invalid_upload", err.Error())
	}
	name, err := h.uploads.Save(fh)
	if err != nil {
		return nil, err
	}
	return &name, nil
}

func (h *Handler) discardPhoto(name *string) {
	if name == nil {
		return
	}
	if err := h.uploads.Remove(*name); err != nil {
		h.log.Warn("failed to remove orphaned upload", zap.String("file", *name), zap.Error(err))
	}
}

// SubmitComplaint files a complaint for the authenticated citizen
// (multipart form with an optional photo).
func (h *Handler) SubmitComplaint(c *gin.Context) {
	claims := middleware.CurrentUser(c)

	lat, err := optionalFloat(c, "latitude")
	if err != nil {
		h.fail(c, err)
		return
	}
	lon, err := optionalFloat(c, "longitude")
	if err != nil {
		h.fail(c, err)
		return
	}
	photo, err := h.savePhoto(c, "photo")
	if err != nil {
		h.fail(c, err)
		return
	}

	created, err := h.complaints.Submit(c.Request.Context(), complaint.SubmitInput{
		CitizenID:   claims.UserID,
		CitizenName: claims.Name,
		Title:       c.PostForm("title"),
		Description: c.PostForm("description"),
		Location:    c.PostForm("location"),
		Latitude:    lat,
		Longitude:   lon,
		Photo:       photo,
	})
	if err != nil {
		h.discardPhoto(photo)
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "Complaint submitted successfully", "complaint": created})
}

// ListComplaints is the admin view of every complaint, newest first.
func (h *Handler) ListComplaints(c *gin.Context) {
	list, err := h.complaints.ListAll(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (h *Handler) ListCitizenComplaints(c *gin.Context) {
	id, err := uintParam(c, "id")
	if err != nil {
		h.fail(c, err)
		return
	}
	if err := requireSelfOrAdmin(c, id); err != nil {
		h.fail(c, err)
		return
	}
	list, err := h.complaints.ListByCitizen(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

// ListWorkerComplaints returns the complaints currently assigned to :name.
// Workers may only read their own queue.
func (h *Handler) ListWorkerComplaints(c *gin.Context) {
	name := c.Param("name")
	claims := middleware.CurrentUser(c)
	if claims.Role == models.RoleWorker && claims.Name != name {
		h.fail(c, apperr.Forbidden("forbidden", "not allowed to read another worker's tasks"))
		return
	}
	list, err := h.complaints.ListByWorker(c.Request.Context(), name)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

type assignRequest struct {
	ComplaintID uint   `json:"complaint_id" binding:"required"`
	WorkerName  string `json:"worker_name" binding:"required"`
}

// Assign hands a submitted complaint to a worker.
func (h *Handler) Assign(c *gin.Context) {
	var req assignRequest
	if err := bindJSON(c, &req); err != nil {
		h.fail(c, err)
		return
	}
	res, err := h.complaints.Assign(c.Request.Context(), req.ComplaintID, strings.TrimSpace(req.WorkerName))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message":    "Worker assigned successfully",
		"complaint":  res.Complaint,
		"assignment": res.Assignment,
	})
}

// UpdateStatus moves a complaint forward on behalf of its current worker.
// Form fields: status, and completion_photo (file) when resolving.
func (h *Handler) UpdateStatus(c *gin.Context) {
	id, err := uintParam(c, "id")
	if err != nil {
		h.fail(c, err)
		return
	}
	status, ok := models.ParseComplaintStatus(c.PostForm("status"))
	if !ok {
		h.fail(c, apperr.Validation("invalid_status", "unknown status"))
		return
	}
	photo, err := h.savePhoto(c, "completion_photo")
	if err != nil {
		h.fail(c, err)
		return
	}

	claims := middleware.CurrentUser(c)
	if err := h.complaints.UpdateStatus(c.Request.Context(), id, claims.Name, status, photo); err != nil {
		h.discardPhoto(photo)
		h.fail(c, err)
		return
	}
	respond.Message(c, http.StatusOK, "Status updated")
}

func (h *Handler) ComplaintsMap(c *gin.Context) {
	points, err := h.complaints.MapPoints(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, points)
}

// ExportComplaints downloads every complaint as an Excel workbook.
func (h *Handler) ExportComplaints(c *gin.Context) {
	list, err := h.complaints.ListAll(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	data, err := export.Complaints(list)
	if err != nil {
		h.fail(c, apperr.Storage("export complaints", err))
		return
	}
	c.Header("Content-Disposition", "attachment; filename=complaints.xlsx")
	c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", data)
}
