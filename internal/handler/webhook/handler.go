// Package webhook receives inbound message events from the gateway and
// feeds confirmations to the ACK correlator. The endpoint always answers
// 200 so the gateway does not retry on application-level rejections.
package webhook

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/remindly/reminder-api/internal/repository"
	"github.com/remindly/reminder-api/internal/service/ack"

	queue "github.com/remindly/reminder-api/internal/queue/redis"
	"github.com/remindly/reminder-api/pkg/logger"
)

const eventMessageUpsert = "messages.upsert"

type payload struct {
	Event    string `json:"event"`
	Instance string `json:"instance"`
	Data     struct {
		Key struct {
			RemoteJID string `json:"remoteJid"`
			FromMe    bool   `json:"fromMe"`
			ID        string `json:"id"`
		} `json:"key"`
		PushName string `json:"pushName"`
		Message  struct {
			Conversation        string `json:"conversation"`
			ExtendedTextMessage struct {
				Text string `json:"text"`
			} `json:"extendedTextMessage"`
			ImageMessage struct {
				Caption string `json:"caption"`
			} `json:"imageMessage"`
		} `json:"message"`
	} `json:"data"`
}

func (p *payload) text() string {
	msg := p.Data.Message
	switch {
	case msg.Conversation != "":
		return msg.Conversation
	case msg.ExtendedTextMessage.Text != "":
		return msg.ExtendedTextMessage.Text
	default:
		return msg.ImageMessage.Caption
	}
}

type Handler struct {
	integrations repository.IntegrationRepository
	queue        *queue.Queue
	ack          *ack.Service
	logger       *logger.Logger
}

func NewHandler(integrations repository.IntegrationRepository, q *queue.Queue, ackSvc *ack.Service, log *logger.Logger) *Handler {
	return &Handler{
		integrations: integrations,
		queue:        q,
		ack:          ackSvc,
		logger:       log,
	}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/webhook/gateway", h.Receive)
}

func (h *Handler) Receive(c *gin.Context) {
	var p payload
	if err := c.ShouldBindJSON(&p); err != nil {
		c.JSON(http.StatusOK, gin.H{"error": "invalid payload"})
		return
	}

	ctx := c.Request.Context()

	integration, err := h.integrations.GetByInstanceName(ctx, p.Instance)
	if err != nil {
		h.logger.Error(err, "failed to resolve webhook instance", "instance", p.Instance)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "lookup failed"})
		return
	}
	if integration == nil {
		h.logger.Warn("webhook for unknown instance", "instance", p.Instance)
		c.JSON(http.StatusOK, gin.H{"error": "instance not found"})
		return
	}
	if !integration.IsEnabled {
		c.JSON(http.StatusOK, gin.H{"error": "integration disabled"})
		return
	}

	if integration.WebhookSecret != "" {
		got := c.GetHeader("apikey")
		if subtle.ConstantTimeCompare([]byte(got), []byte(integration.WebhookSecret)) != 1 {
			h.logger.Warn("webhook secret mismatch", "instance", p.Instance)
			c.JSON(http.StatusOK, gin.H{"error": "unauthorized"})
			return
		}
	}

	if msgID := p.Data.Key.ID; msgID != "" {
		fresh, err := h.queue.MarkInboundSeen(ctx, integration.Provider, msgID)
		if err != nil {
			h.logger.Error(err, "failed to dedup inbound message", "message_id", msgID)
		} else if !fresh {
			c.JSON(http.StatusOK, gin.H{"success": true, "warning": "duplicate"})
			return
		}
	}

	if p.Event != eventMessageUpsert || p.Data.Key.FromMe {
		c.JSON(http.StatusOK, gin.H{"success": true})
		return
	}

	text := p.text()
	if text == "" {
		c.JSON(http.StatusOK, gin.H{"success": true})
		return
	}

	handled, err := h.ack.HandleText(ctx, text)
	if err != nil {
		h.logger.Error(err, "failed to process inbound text", "instance", p.Instance)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "processing failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "acknowledged": handled})
}
