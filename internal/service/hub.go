package service

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"building_chat/internal/protocol"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 54 * time.Second
	maxMessageSize = 64 * 1024
	sendBuffer     = 256
)

// Client 代表一個 WebSocket 客戶端連接
type Client struct {
	Conn     *websocket.Conn
	UserID   uint
	UserName string
	Role     string
	RoomID   uint

	send      chan []byte   // 消息發送通道，用於異步傳送消息
	done      chan struct{} // 連線結束時關閉
	closeCode int           // done 關閉前寫入，writePump 送出的關閉碼
	once      sync.Once
}

func NewClient(conn *websocket.Conn, roomID, userID uint, name, role string) *Client {
	return &Client{
		Conn:     conn,
		UserID:   userID,
		UserName: name,
		Role:     role,
		RoomID:   roomID,
		send:     make(chan []byte, sendBuffer),
		done:     make(chan struct{}),
	}
}

// stop 結束連線並以 code 通知客戶端；只有第一次呼叫有效
func (c *Client) stop(code int) {
	c.once.Do(func() {
		c.closeCode = code
		close(c.done)
	})
}

// Hub 管理所有的 WebSocket 連接與聊天室廣播
type Hub struct {
	clients    map[uint]map[*Client]bool // 兩層 map: roomID -> client -> bool
	clientsMux sync.RWMutex
	log        *zap.Logger
	metrics    *HubMetrics
}

func NewHub(log *zap.Logger, metrics *HubMetrics) *Hub {
	if log == nil {
		log = zap.NewNop()
	}
	return &Hub{
		clients: make(map[uint]map[*Client]bool),
		log:     log,
		metrics: metrics,
	}
}

// Serve 註冊客戶端並處理讀寫，直到連線結束才返回。每個收到的 frame 交給 onFrame。
func (h *Hub) Serve(client *Client, onFrame func(*Client, []byte)) {
	h.addClient(client)
	defer func() {
		h.removeClient(client)
		client.stop(websocket.CloseNormalClosure)
	}()

	go h.writePump(client)
	h.readPump(client, onFrame)
}

// readPump 持續監聽並處理從客戶端接收的消息
func (h *Hub) readPump(client *Client, onFrame func(*Client, []byte)) {
	client.Conn.SetReadLimit(maxMessageSize)
	_ = client.Conn.SetReadDeadline(time.Now().Add(pongWait))
	client.Conn.SetPongHandler(func(string) error {
		return client.Conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, message, err := client.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.log.Warn("websocket unexpected close", zap.Uint("room_id", client.RoomID), zap.Uint("user_id", client.UserID), zap.Error(err))
			}
			return
		}
		onFrame(client, message)
	}
}

// writePump 處理向客戶端發送消息的邏輯
func (h *Hub) writePump(client *Client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = client.Conn.Close()
	}()

	for {
		select {
		case message := <-client.send:
			_ = client.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := client.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			// 發送心跳包
			_ = client.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := client.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-client.done:
			msg := websocket.FormatCloseMessage(client.closeCode, "")
			_ = client.Conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
			return
		}
	}
}

// BroadcastToRoom 向聊天室內除了 except 以外的所有客戶端廣播 frame
func (h *Hub) BroadcastToRoom(roomID uint, frame protocol.Inbound, except *Client) {
	data, err := protocol.EncodeInbound(frame)
	if err != nil {
		h.log.Error("encode broadcast frame", zap.Uint("room_id", roomID), zap.Error(err))
		return
	}
	h.metrics.relayed(string(frame.Kind()))

	h.clientsMux.RLock()
	targets := make([]*Client, 0, len(h.clients[roomID]))
	for client := range h.clients[roomID] {
		if client != except {
			targets = append(targets, client)
		}
	}
	h.clientsMux.RUnlock()

	for _, client := range targets {
		select {
		case client.send <- data:
		case <-client.done:
		default:
			// 客戶端消息隊列已滿，以可重試的關閉碼斷線，客戶端會重連並重新載入歷史
			h.log.Warn("send buffer full, dropping client", zap.Uint("room_id", roomID), zap.Uint("user_id", client.UserID))
			h.removeClient(client)
			client.stop(websocket.CloseTryAgainLater)
		}
	}
}

// addClient 安全地添加新的客戶端連接
func (h *Hub) addClient(client *Client) {
	h.clientsMux.Lock()
	defer h.clientsMux.Unlock()

	if h.clients[client.RoomID] == nil {
		h.clients[client.RoomID] = make(map[*Client]bool)
	}
	h.clients[client.RoomID][client] = true
	h.metrics.connected()
}

// removeClient 安全地移除客戶端連接
func (h *Hub) removeClient(client *Client) {
	h.clientsMux.Lock()
	defer h.clientsMux.Unlock()

	if clients, ok := h.clients[client.RoomID]; ok {
		if _, ok := clients[client]; !ok {
			return
		}
		delete(clients, client)
		h.metrics.disconnected()
		// 如果聊天室空了，刪除聊天室
		if len(clients) == 0 {
			delete(h.clients, client.RoomID)
		}
	}
}

// Online 獲取指定聊天室的在線客戶端數量
func (h *Hub) Online(roomID uint) int {
	h.clientsMux.RLock()
	defer h.clientsMux.RUnlock()

	return len(h.clients[roomID])
}
