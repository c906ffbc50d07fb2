package dlq

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/remindly/reminder-api/internal/handler"
	"github.com/remindly/reminder-api/internal/middleware"
	"github.com/remindly/reminder-api/internal/service/dlq"
	apperrors "github.com/remindly/reminder-api/pkg/errors"
)

type Handler struct {
	service *dlq.Service
}

func NewHandler(service *dlq.Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	group := r.Group("/dlq")
	{
		group.GET("", h.List)
		group.POST("/:index/requeue", h.Requeue)
		group.POST("/requeue-all", h.RequeueAll)
	}
}

func (h *Handler) List(c *gin.Context) {
	tenantID, err := middleware.TenantID(c)
	if err != nil && !middleware.IsService(c) {
		c.JSON(http.StatusUnauthorized, handler.NewErrorResponse("invalid tenant ID"))
		return
	}

	limit := dlq.DefaultListLimit
	if raw := c.Query("limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil || limit <= 0 {
			c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid limit"))
			return
		}
	}

	entries, err := h.service.List(c.Request.Context(), tenantID, middleware.IsService(c), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, handler.NewErrorResponse("failed to list dlq entries"))
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(gin.H{
		"entries": entries,
		"count":   len(entries),
	}))
}

func (h *Handler) Requeue(c *gin.Context) {
	tenantID, err := middleware.TenantID(c)
	if err != nil && !middleware.IsService(c) {
		c.JSON(http.StatusUnauthorized, handler.NewErrorResponse("invalid tenant ID"))
		return
	}

	index, err := strconv.ParseInt(c.Param("index"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid index"))
		return
	}

	if err := h.service.Requeue(c.Request.Context(), tenantID, middleware.IsService(c), index); err != nil {
		status, msg := statusFor(err)
		c.JSON(status, handler.NewErrorResponse(msg))
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(gin.H{"requeued": index}))
}

func (h *Handler) RequeueAll(c *gin.Context) {
	tenantID, err := middleware.TenantID(c)
	if err != nil && !middleware.IsService(c) {
		c.JSON(http.StatusUnauthorized, handler.NewErrorResponse("invalid tenant ID"))
		return
	}

	limit := dlq.DefaultListLimit
	if raw := c.Query("limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil || limit <= 0 {
			c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid limit"))
			return
		}
	}

	result, err := h.service.RequeueAll(c.Request.Context(), tenantID, middleware.IsService(c), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, handler.NewErrorResponse("failed to requeue dlq entries"))
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(result))
}

func statusFor(err error) (int, string) {
	var appErr *apperrors.AppError
	if !errors.As(err, &appErr) {
		return http.StatusInternalServerError, "failed to requeue dlq entry"
	}
	switch appErr.Code {
	case apperrors.ErrNotFound:
		return http.StatusNotFound, appErr.Message
	case apperrors.ErrBadRequest:
		return http.StatusBadRequest, appErr.Message
	case apperrors.ErrForbidden:
		return http.StatusForbidden, appErr.Message
	default:
		return http.StatusInternalServerError, "failed to requeue dlq entry"
	}
}
