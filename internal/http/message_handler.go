package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"pairchat/internal/service"
)

const (
	idempotencyKeyHeader     = "Idempotency-Key"
	idempotentReplayedHeader = "Idempotent-Replayed"
)

// MessageHandler expone el alta de mensajes.
type MessageHandler struct {
	logger     *zap.Logger
	messageSvc *service.MessageService
}

func NewMessageHandler(logger *zap.Logger, messageSvc *service.MessageService) *MessageHandler {
	return &MessageHandler{
		logger:     logger,
		messageSvc: messageSvc,
	}
}

// PostMessage maneja POST /messages. Con Idempotency-Key un reintento devuelve
// el mismo mensaje sin volver a escribirlo.
func (h *MessageHandler) PostMessage(c *gin.Context) {
	var req struct {
		ChatID      string `json:"chatId"`
		SenderID    string `json:"senderId"`
		RecipientID string `json:"recipientId"`
		Text        string `json:"text"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondInvalidBody(c, h.logger, err)
		return
	}
	if !authorizeActor(c, req.SenderID) {
		return
	}

	msg, replayed, err := h.messageSvc.Append(c.Request.Context(), service.AppendInput{
		ChatID:         req.ChatID,
		SenderID:       req.SenderID,
		RecipientID:    req.RecipientID,
		Text:           req.Text,
		IdempotencyKey: c.GetHeader(idempotencyKeyHeader),
	})
	if err != nil {
		respondError(c, h.logger, "Error sending message", err)
		return
	}

	if replayed {
		c.Header(idempotentReplayedHeader, "true")
	}
	c.JSON(http.StatusCreated, gin.H{
		"messageId": msg.ID,
		"text":      msg.Text,
	})
}
