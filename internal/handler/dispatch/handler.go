package dispatch

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/remindly/reminder-api/internal/handler"
	"github.com/remindly/reminder-api/internal/worker"
)

type Handler struct {
	dispatcher *worker.Dispatcher
}

func NewHandler(dispatcher *worker.Dispatcher) *Handler {
	return &Handler{dispatcher: dispatcher}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/dispatcher/run", h.Run)
}

// Run triggers one dispatch batch outside the timer, for operators and
// scheduled external callers.
func (h *Handler) Run(c *gin.Context) {
	result, err := h.dispatcher.Run(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, handler.NewErrorResponse("dispatch batch failed"))
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(result))
}
