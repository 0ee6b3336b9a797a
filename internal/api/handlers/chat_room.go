package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"building_chat/internal/middleware"
	"building_chat/internal/protocol"
	"building_chat/internal/service"
)

// ChatRoomHandler 處理聊天室與訊息的請求
type ChatRoomHandler struct {
	roomService    *service.RoomService
	messageService *service.MessageService
}

func NewChatRoomHandler(roomService *service.RoomService, messageService *service.MessageService) *ChatRoomHandler {
	return &ChatRoomHandler{roomService: roomService, messageService: messageService}
}

// GetOrCreateRoom 取得大樓聊天室，不存在時建立
func (h *ChatRoomHandler) GetOrCreateRoom(c *gin.Context) {
	res, err := h.roomService.GetOrCreateForBuilding(c.Param("buildingId"), middleware.UserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// ListRooms 獲取聊天室列表
func (h *ChatRoomHandler) ListRooms(c *gin.Context) {
	rooms, err := h.roomService.ListForUser(middleware.UserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, rooms)
}

// ListMessages 分頁查詢訊息，由新到舊
func (h *ChatRoomHandler) ListMessages(c *gin.Context) {
	roomID, ok := roomIDParam(c)
	if !ok {
		return
	}
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(service.DefaultPageSize)))

	res, err := h.messageService.List(roomID, page, limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *ChatRoomHandler) Participants(c *gin.Context) {
	roomID, ok := roomIDParam(c)
	if !ok {
		return
	}
	parts, err := h.roomService.Participants(roomID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, parts)
}

func (h *ChatRoomHandler) Unread(c *gin.Context) {
	roomID, ok := roomIDParam(c)
	if !ok {
		return
	}
	summary, err := h.roomService.UnreadSummary(roomID, middleware.UserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

// CreateMessage 透過 REST 傳送訊息；重送相同 client_msg_id 時回傳 200 與既有訊息
func (h *ChatRoomHandler) CreateMessage(c *gin.Context) {
	roomID, ok := roomIDParam(c)
	if !ok {
		return
	}
	var input protocol.CreateMessageRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	msg, created, err := h.messageService.Create(roomID, middleware.UserID(c), input)
	if err != nil {
		respondError(c, err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	c.JSON(status, msg)
}

func roomIDParam(c *gin.Context) (uint, bool) {
	roomID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "無效的聊天室 ID"})
		return 0, false
	}
	return uint(roomID), true
}

// respondError 把 service 錯誤轉成對應的狀態碼
func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrRoomNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "聊天室不存在"})
	case errors.Is(err, service.ErrUserNotFound):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "使用者不存在"})
	case errors.Is(err, service.ErrInvalidMessage):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "伺服器錯誤"})
	}
}
