package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/patipanbank/MFULearnAi/internal/service"
	"github.com/patipanbank/MFULearnAi/internal/service/chat"
)

// ChatHandler 会话历史处理器
type ChatHandler struct {
	svc *service.Services
}

// NewChatHandler 创建会话历史处理器
func NewChatHandler(svc *service.Services) *ChatHandler {
	return &ChatHandler{svc: svc}
}

// List 列出当前用户的会话
func (h *ChatHandler) List(c *gin.Context) {
	userID := getUserID(c)
	if userID == "" {
		errorResponse(c, http.StatusUnauthorized, "unauthorized")
		return
	}

	chats, err := h.svc.Chat.ListChats(c.Request.Context(), userID)
	if err != nil {
		errorResponse(c, http.StatusInternalServerError, err.Error())
		return
	}
	success(c, chats)
}

// Get 获取单个会话及其消息历史
func (h *ChatHandler) Get(c *gin.Context) {
	userID := getUserID(c)
	if userID == "" {
		errorResponse(c, http.StatusUnauthorized, "unauthorized")
		return
	}

	chatID := c.Param("id")
	found, err := h.svc.Chat.GetOwnedChat(c.Request.Context(), chatID, userID)
	if err != nil {
		switch {
		case errors.Is(err, chat.ErrChatNotFound):
			errorResponse(c, http.StatusNotFound, "chat not found")
		case errors.Is(err, chat.ErrNotOwner):
			errorResponse(c, http.StatusForbidden, "not the owner of this chat")
		default:
			errorResponse(c, http.StatusInternalServerError, err.Error())
		}
		return
	}
	success(c, found)
}
