package models

import (
	"time"

	"gorm.io/gorm"

	"building_chat/internal/protocol"
)

// Message 是聊天室中的一則訊息。ClientMsgID 在同一聊天室內唯一，用於重送去重；
// 系統訊息沒有 ClientMsgID，以 NULL 儲存。
type Message struct {
	gorm.Model
	RoomID      uint    `gorm:"index;not null;uniqueIndex:idx_message_room_client"`
	SenderID    uint    `gorm:"index"`
	SenderName  string  `gorm:"type:varchar(100)"`
	SenderRole  string  `gorm:"type:varchar(20)"`
	MessageType string  `gorm:"type:varchar(20);not null"`
	Content     string  `gorm:"type:text"`
	FileURL     string
	FileName    string
	FileSize    int64
	IsEdited    bool
	ClientMsgID *string `gorm:"type:varchar(64);uniqueIndex:idx_message_room_client"`
}

// NewChatMessage 由使用者送出的內容建立訊息
func NewChatMessage(roomID uint, sender *User, req protocol.CreateMessageRequest) *Message {
	m := &Message{
		RoomID:      roomID,
		SenderID:    sender.ID,
		SenderName:  sender.Name(),
		SenderRole:  string(sender.Role),
		MessageType: string(req.MessageType),
		Content:     req.Content,
		FileURL:     req.FileURL,
		FileName:    req.FileName,
		FileSize:    req.FileSize,
	}
	if m.MessageType == "" {
		m.MessageType = string(protocol.MessageTypeText)
	}
	if req.ClientMsgID != "" {
		id := req.ClientMsgID
		m.ClientMsgID = &id
	}
	return m
}

// NewSystemMessage 創建一個新的系統消息
func NewSystemMessage(roomID uint, content string) *Message {
	return &Message{
		RoomID:      roomID,
		MessageType: string(protocol.MessageTypeSystem),
		Content:     content,
		SenderName:  "system",
		SenderRole:  "system",
	}
}

func (m *Message) ToProtocol() protocol.ChatMessage {
	out := protocol.ChatMessage{
		ID:          m.ID,
		RoomID:      m.RoomID,
		SenderID:    m.SenderID,
		SenderName:  m.SenderName,
		SenderRole:  m.SenderRole,
		MessageType: protocol.MessageType(m.MessageType),
		Content:     m.Content,
		FileURL:     m.FileURL,
		FileName:    m.FileName,
		FileSize:    m.FileSize,
		IsEdited:    m.IsEdited,
		CreatedAt:   m.CreatedAt.UTC().Truncate(time.Microsecond),
	}
	if m.ClientMsgID != nil {
		out.ClientMsgID = *m.ClientMsgID
	}
	return out
}
