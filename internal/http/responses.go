package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"pairchat/internal/domain"
	"pairchat/internal/service"
)

type chatResponse struct {
	ID          string `json:"id"`
	UserID1     string `json:"userId1"`
	UserID2     string `json:"userId2"`
	LastMessage string `json:"lastMessage"`
	UpdatedAt   string `json:"updatedAt"`
}

type messageResponse struct {
	ID          string `json:"id"`
	ChatID      string `json:"chatId"`
	SenderID    string `json:"senderId"`
	RecipientID string `json:"recipientId"`
	Text        string `json:"text"`
	Timestamp   string `json:"timestamp"`
}

func toChatResponse(c domain.Chat) chatResponse {
	return chatResponse{
		ID:          c.ID,
		UserID1:     c.UserID1,
		UserID2:     c.UserID2,
		LastMessage: c.LastMessage,
		UpdatedAt:   domain.FormatTimestamp(c.UpdatedAt),
	}
}

func toMessageResponse(m domain.Message) messageResponse {
	return messageResponse{
		ID:          m.ID,
		ChatID:      m.ChatID,
		SenderID:    m.SenderID,
		RecipientID: m.RecipientID,
		Text:        m.Text,
		Timestamp:   domain.FormatTimestamp(m.Timestamp),
	}
}

// respondError traduce errores de servicio a status HTTP. Los errores internos
// se registran pero no se devuelven al cliente.
func respondError(c *gin.Context, logger *zap.Logger, summary string, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "message": err.Error()})
	case errors.Is(err, service.ErrNoChats):
		c.JSON(http.StatusNotFound, gin.H{"message": "No chats found for this user."})
	case errors.Is(err, service.ErrNoMessages):
		c.JSON(http.StatusNotFound, gin.H{"message": "No messages found for this chat."})
	case errors.Is(err, service.ErrChatNotFound):
		c.JSON(http.StatusNotFound, gin.H{"message": "Chat not found."})
	case errors.Is(err, service.ErrIdempotencyMismatch):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "idempotency key reused", "message": err.Error()})
	case errors.Is(err, service.ErrIdempotencyInFlight):
		c.JSON(http.StatusConflict, gin.H{"error": "idempotency key in use", "message": err.Error()})
	default:
		logger.Error(summary, zap.Error(err), zap.String("path", c.Request.URL.Path))
		c.JSON(http.StatusInternalServerError, gin.H{"error": summary, "message": "internal server error"})
	}
}

func respondInvalidBody(c *gin.Context, logger *zap.Logger, err error) {
	logger.Warn("invalid request body", zap.Error(err), zap.String("path", c.Request.URL.Path))
	c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "message": "request body must be valid JSON"})
}
