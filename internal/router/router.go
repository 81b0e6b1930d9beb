package router

import (
	"github.com/gin-gonic/gin"

	"github.com/patipanbank/MFULearnAi/internal/handler"
	"github.com/patipanbank/MFULearnAi/internal/middleware"
	"github.com/patipanbank/MFULearnAi/internal/service"
)

// SetupRouter 设置路由
func SetupRouter(h *handler.Handlers, svc *service.Services) *gin.Engine {
	r := gin.New()

	// 中间件
	r.Use(middleware.RecoveryMiddleware())
	r.Use(middleware.LoggingMiddleware())
	r.Use(middleware.CORSMiddleware())

	// 健康检查
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	// WebSocket 接入点，凭证经 ?token= 传递并由网关校验
	r.GET("/ws", h.WebSocket.Handle)

	// API
	api := r.Group("/api", middleware.RequireAuth(svc.Verifier))
	{
		chats := api.Group("/chat")
		{
			chats.GET("/history", h.Chat.List)
			chats.GET("/history/:id", h.Chat.Get)
		}
	}

	return r
}
