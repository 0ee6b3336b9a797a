// Package protocol 定義聊天客戶端與 gateway 之間共用的資料結構與 WebSocket frame 編解碼。
package protocol

import "time"

// MessageType 是聊天訊息的種類
type MessageType string

const (
	MessageTypeText   MessageType = "text"
	MessageTypeSystem MessageType = "system"
	MessageTypeFile   MessageType = "file"
)

// Valid 回報是否為已知的訊息種類
func (t MessageType) Valid() bool {
	switch t {
	case MessageTypeText, MessageTypeSystem, MessageTypeFile:
		return true
	}
	return false
}

// ChatRoom 代表一棟大樓的聊天室，每棟大樓只有一個
type ChatRoom struct {
	ID          uint      `json:"id"`
	BuildingID  string    `json:"building_id"`
	Name        string    `json:"name"`
	UnreadCount int       `json:"unread_count"`
	CreatedAt   time.Time `json:"created_at"`
}

// ChatMessage 代表聊天室中的一則訊息
type ChatMessage struct {
	ID          uint        `json:"id"`
	RoomID      uint        `json:"room_id"`
	SenderID    uint        `json:"sender_id"`
	SenderName  string      `json:"sender_name"`
	SenderRole  string      `json:"sender_role"`
	MessageType MessageType `json:"message_type"`
	Content     string      `json:"content"`
	FileURL     string      `json:"file_url,omitempty"`
	FileName    string      `json:"file_name,omitempty"`
	FileSize    int64       `json:"file_size,omitempty"`
	IsEdited    bool        `json:"is_edited"`
	ClientMsgID string      `json:"client_msg_id,omitempty"`
	CreatedAt   time.Time   `json:"created_at"`
}

// ChatParticipant 是聊天室的成員
type ChatParticipant struct {
	UserID      uint      `json:"user_id"`
	RoomID      uint      `json:"room_id"`
	DisplayName string    `json:"display_name"`
	Role        string    `json:"role"`
	JoinedAt    time.Time `json:"joined_at"`
}

// UnreadSummary 是某聊天室對目前使用者的未讀摘要
type UnreadSummary struct {
	RoomID      uint `json:"room_id"`
	UnreadCount int  `json:"unread_count"`
}

// RoomResult 是 get-or-create 的回應；Created 表示此次呼叫建立了新聊天室
type RoomResult struct {
	Room    ChatRoom `json:"room"`
	Created bool     `json:"created"`
}

// CreateMessageRequest 是透過 request/response 傳送訊息的請求內容
type CreateMessageRequest struct {
	Content     string      `json:"content"`
	MessageType MessageType `json:"message_type"`
	FileURL     string      `json:"file_url,omitempty"`
	FileName    string      `json:"file_name,omitempty"`
	FileSize    int64       `json:"file_size,omitempty"`
	ClientMsgID string      `json:"client_msg_id,omitempty"`
}

// MessagePage 是訊息列表的分頁回應，Messages 由新到舊排序
type MessagePage struct {
	Messages []ChatMessage `json:"messages"`
	Page     int           `json:"page"`
	Limit    int           `json:"limit"`
}
