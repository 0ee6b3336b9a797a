package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"building_chat/internal/api/handlers"
	"building_chat/internal/middleware"
	"building_chat/internal/service"
	"building_chat/internal/utils"
)

func SetupRoutes(r *gin.Engine, services *service.Services, tokens *utils.TokenManager, log *zap.Logger) {
	// 初始化 handlers
	authHandler := handlers.NewAuthHandler(services.User)
	roomHandler := handlers.NewChatRoomHandler(services.Room, services.Message)
	wsHandler := handlers.NewWebSocketHandler(services.Live, log.Named("ws"))

	// 處理 404 錯誤
	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{
			"error": "找不到該路徑",
		})
	})

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// API 路由群組
	api := r.Group("/api")

	// 公開路由
	{
		api.POST("/register", authHandler.Register)
		api.POST("/login", authHandler.Login)

		api.GET("/health", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{
				"status": "ok",
			})
		})
	}

	// 需要驗證的路由
	authorized := api.Group("/")
	authorized.Use(middleware.AuthMiddleware(tokens))
	{
		authorized.POST("/buildings/:buildingId/chat-room", roomHandler.GetOrCreateRoom)

		rooms := authorized.Group("/chat-rooms")
		{
			rooms.GET("", roomHandler.ListRooms)
			rooms.GET("/:id/messages", roomHandler.ListMessages)
			rooms.POST("/:id/messages", roomHandler.CreateMessage)
			rooms.GET("/:id/participants", roomHandler.Participants)
			rooms.GET("/:id/unread", roomHandler.Unread)
		}
	}

	// 即時連線
	r.GET("/chat/:buildingId", middleware.AuthMiddleware(tokens), wsHandler.HandleWebSocket)
}
