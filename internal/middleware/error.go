package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "github.com/remindly/reminder-api/pkg/errors"
	"github.com/remindly/reminder-api/pkg/logger"
)

// ErrorResponse is the envelope returned for requests aborted by a
// middleware-level failure.
type ErrorResponse struct {
	Code      int    `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

// ErrorHandler turns errors attached to the gin context into a JSON
// response. Application errors map to their HTTP status; anything else
// is a 500.
func ErrorHandler(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}

		requestID := c.GetString(ContextRequestID)
		for _, e := range c.Errors {
			log.Error(e.Err, "request error",
				"request_id", requestID,
				"method", c.Request.Method,
				"path", c.Request.URL.Path,
				"client_ip", c.ClientIP())
		}

		lastErr := c.Errors.Last()
		status := http.StatusInternalServerError
		message := lastErr.Error()

		var appErr *apperrors.AppError
		if errors.As(lastErr.Err, &appErr) {
			status = statusForCode(appErr.Code)
			message = appErr.Message
		}

		c.JSON(status, ErrorResponse{
			Code:      status,
			Message:   message,
			RequestID: requestID,
		})
	}
}

func statusForCode(code apperrors.ErrorCode) int {
	switch code {
	case apperrors.ErrNotFound:
		return http.StatusNotFound
	case apperrors.ErrBadRequest:
		return http.StatusBadRequest
	case apperrors.ErrUnauthorized:
		return http.StatusUnauthorized
	case apperrors.ErrForbidden:
		return http.StatusForbidden
	case apperrors.ErrConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
