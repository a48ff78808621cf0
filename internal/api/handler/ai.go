package handler

import (
	"errors"
	"net/http"

	"civicdesk/backend/internal/apperr"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// SuggestTitle runs the image classifier on an uploaded photo and returns
// the predicted label with a complaint title for it. The photo is not kept.
func (h *Handler) SuggestTitle(c *gin.Context) {
	fh, err := c.FormFile("photo")
	if errors.Is(err, http.ErrMissingFile) {
		h.fail(c, apperr.Validation("photo_required", "photo is required"))
		return
	}
	if err != nil {
		h.fail(c, apperr.Validation("invalid_upload", err.Error()))
		return
	}
	name, err := h.uploads.Save(fh)
	if err != nil {
		h.fail(c, err)
		return
	}
	defer h.discardPhoto(&name)

	pred, err := h.classifier.Classify(c.Request.Context(), h.uploads.Path(name))
	if err != nil {
		h.log.Error("classifier failed", zap.Error(err))
		h.fail(c, apperr.Storage("classify photo", err))
		return
	}
	c.JSON(http.StatusOK, pred)
}
