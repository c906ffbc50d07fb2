package stats

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/remindly/reminder-api/internal/handler"
	"github.com/remindly/reminder-api/internal/service/stats"
)

type Handler struct {
	service *stats.Service
}

func NewHandler(service *stats.Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/queue/stats", h.Snapshot)
}

func (h *Handler) Snapshot(c *gin.Context) {
	snapshot, err := h.service.Snapshot(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, handler.NewErrorResponse("failed to read queue stats"))
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(snapshot))
}
