// Package respond writes JSON responses and maps apperr kinds to HTTP statuses.
package respond

import (
	"net/http"

	"civicdesk/backend/internal/apperr"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

var statusByKind = map[apperr.Kind]int{
	apperr.KindValidation:        http.StatusBadRequest,
	apperr.KindNotFound:          http.StatusNotFound,
	apperr.KindInvalidState:      http.StatusConflict,
	apperr.KindInvalidTransition: http.StatusConflict,
	apperr.KindInvalidWorker:     http.StatusBadRequest,
	apperr.KindRateLimited:       http.StatusTooManyRequests,
	apperr.KindStorage:           http.StatusInternalServerError,
	apperr.KindUnauthorized:      http.StatusUnauthorized,
	apperr.KindForbidden:         http.StatusForbidden,
	apperr.KindConflict:          http.StatusConflict,
	apperr.KindDelivery:          http.StatusBadGateway,
}

// StatusFor returns the HTTP status for an error kind.
func StatusFor(kind apperr.Kind) int {
	if code, ok := statusByKind[kind]; ok {
		return code
	}
	return http.StatusInternalServerError
}

// Error aborts the request with the JSON form of err. Storage errors never
// expose their cause; it goes to the log instead.
func Error(c *gin.Context, log *zap.Logger, err error) {
	e := apperr.As(err)
	status := StatusFor(e.Kind)

	if e.Kind == apperr.KindStorage {
		log.Error("request failed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Error(err))
		c.AbortWithStatusJSON(status, gin.H{"error": e.Code})
		return
	}

	if e.Kind == apperr.KindDelivery {
		log.Warn("outbound delivery failed", zap.String("path", c.FullPath()), zap.Error(err))
	}

	body := gin.H{"error": e.Code}
	if e.Message != "" {
		body["message"] = e.Message
	}
	c.AbortWithStatusJSON(status, body)
}

// Message writes {"message": msg} with status.
func Message(c *gin.Context, status int, msg string) {
	c.JSON(status, gin.H{"message": msg})
}
