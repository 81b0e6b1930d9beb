package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/patipanbank/MFULearnAi/internal/service"
)

// Handlers 处理器集合
type Handlers struct {
	WebSocket *WebSocketHandler
	Chat      *ChatHandler
}

// NewHandlers 创建所有处理器
func NewHandlers(svc *service.Services) *Handlers {
	return &Handlers{
		WebSocket: NewWebSocketHandler(svc),
		Chat:      NewChatHandler(svc),
	}
}

// Response 统一响应
type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// success 成功响应
func success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{Code: 0, Message: "success", Data: data})
}

// errorResponse 错误响应
func errorResponse(c *gin.Context, status int, message string) {
	c.JSON(status, Response{Code: -1, Message: message})
}

// getUserID 获取认证中间件注入的用户ID
func getUserID(c *gin.Context) string {
	if id, exists := c.Get("user_id"); exists {
		if userID, ok := id.(string); ok {
			return userID
		}
	}
	return ""
}
