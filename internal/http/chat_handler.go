package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"pairchat/internal/service"
)

// ChatHandler expone la resolucion de chats y la lectura de mensajes.
type ChatHandler struct {
	logger     *zap.Logger
	chatSvc    *service.ChatService
	messageSvc *service.MessageService
}

func NewChatHandler(logger *zap.Logger, chatSvc *service.ChatService, messageSvc *service.MessageService) *ChatHandler {
	return &ChatHandler{
		logger:     logger,
		chatSvc:    chatSvc,
		messageSvc: messageSvc,
	}
}

// FindOrCreateChat maneja POST /chats. Siempre responde 200, tanto si el chat
// se creo como si ya existia.
func (h *ChatHandler) FindOrCreateChat(c *gin.Context) {
	var req struct {
		SenderID    string `json:"senderId"`
		RecipientID string `json:"recipientId"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondInvalidBody(c, h.logger, err)
		return
	}
	if !authorizeActor(c, req.SenderID) {
		return
	}

	chat, _, err := h.chatSvc.FindOrCreate(c.Request.Context(), req.SenderID, req.RecipientID)
	if err != nil {
		respondError(c, h.logger, "Error creating or fetching chat", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"chatId":  chat.ID,
		"message": "Chat created or fetched successfully",
	})
}

// GetChat maneja GET /chats/:chatId.
func (h *ChatHandler) GetChat(c *gin.Context) {
	chat, err := h.chatSvc.Get(c.Request.Context(), c.Param("chatId"))
	if err != nil {
		respondError(c, h.logger, "Error fetching chat", err)
		return
	}
	if !authorizeParticipant(c, chat) {
		return
	}
	c.JSON(http.StatusOK, toChatResponse(chat))
}

// ListChatMessages maneja GET /chats/:chatId/messages.
func (h *ChatHandler) ListChatMessages(c *gin.Context) {
	chatID := c.Param("chatId")
	if _, ok := GetAuthClaims(c); ok {
		chat, err := h.chatSvc.Get(c.Request.Context(), chatID)
		if err != nil {
			respondError(c, h.logger, "Error fetching messages", err)
			return
		}
		if !authorizeParticipant(c, chat) {
			return
		}
	}

	messages, err := h.messageSvc.ListForChat(c.Request.Context(), chatID)
	if err != nil {
		respondError(c, h.logger, "Error fetching messages", err)
		return
	}

	resp := make([]messageResponse, 0, len(messages))
	for _, msg := range messages {
		resp = append(resp, toMessageResponse(msg))
	}
	c.JSON(http.StatusOK, resp)
}
