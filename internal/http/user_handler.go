package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"pairchat/internal/service"
)

// UserHandler mantiene dependencias para endpoints de usuarios.
type UserHandler struct {
	logger      *zap.Logger
	identitySvc *service.IdentityService
	chatSvc     *service.ChatService
}

// NewUserHandler crea una instancia de UserHandler con dependencias necesarias.
func NewUserHandler(logger *zap.Logger, identitySvc *service.IdentityService, chatSvc *service.ChatService) *UserHandler {
	return &UserHandler{
		logger:      logger,
		identitySvc: identitySvc,
		chatSvc:     chatSvc,
	}
}

// CreateUser maneja POST /users.
func (h *UserHandler) CreateUser(c *gin.Context) {
	var req struct {
		UserID       string `json:"userId"`
		CustomUserID string `json:"customUserId"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondInvalidBody(c, h.logger, err)
		return
	}

	user, err := h.identitySvc.Register(c.Request.Context(), service.RegisterInput{
		ExternalID:   req.UserID,
		CustomUserID: req.CustomUserID,
	})
	if err != nil {
		respondError(c, h.logger, "Error creating user", err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"userId":  user.ID,
		"message": "User created successfully",
	})
}

// ListUserChats maneja GET /users/:userId/chats.
func (h *UserHandler) ListUserChats(c *gin.Context) {
	userID := c.Param("userId")
	if !authorizeActor(c, userID) {
		return
	}

	chats, err := h.chatSvc.ListForUser(c.Request.Context(), userID)
	if err != nil {
		respondError(c, h.logger, "Error fetching chats", err)
		return
	}

	resp := make([]chatResponse, 0, len(chats))
	for _, chat := range chats {
		resp = append(resp, toChatResponse(chat))
	}
	c.JSON(http.StatusOK, resp)
}
