package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"building_chat/internal/middleware"
	"building_chat/internal/service"
)

// 定義 WebSocket 升級器
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// WebSocketHandler 處理 WebSocket 連接
type WebSocketHandler struct {
	live *service.LiveService
	log  *zap.Logger
}

// NewWebSocketHandler 創建一個新的 WebSocketHandler 實例
func NewWebSocketHandler(live *service.LiveService, log *zap.Logger) *WebSocketHandler {
	return &WebSocketHandler{live: live, log: log}
}

// HandleWebSocket 處理 /chat/:buildingId 的連接請求
func (h *WebSocketHandler) HandleWebSocket(c *gin.Context) {
	buildingID := c.Param("buildingId")
	who := service.Identity{
		UserID: middleware.UserID(c),
		Name:   c.GetString(middleware.ContextUserName),
		Role:   c.GetString(middleware.ContextUserRole),
	}

	// 升級 HTTP 連接為 WebSocket 連接；失敗時升級器已回覆錯誤
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", zap.String("building_id", buildingID), zap.Error(err))
		return
	}

	if err := h.live.Handle(conn, buildingID, who); err != nil {
		h.log.Error("live session failed", zap.String("building_id", buildingID), zap.Error(err))
		msg := websocket.FormatCloseMessage(websocket.CloseInternalServerErr, "room unavailable")
		_ = conn.WriteMessage(websocket.CloseMessage, msg)
		_ = conn.Close()
	}
}
