package models

import (
	"time"

	"gorm.io/gorm"

	"building_chat/internal/protocol"
)

// Room 表示一棟大樓的聊天室，每棟大樓只有一個
type Room struct {
	gorm.Model
	BuildingID   string        `gorm:"uniqueIndex;not null"`
	Name         string
	Participants []Participant `gorm:"foreignKey:RoomID"`
}

func (r *Room) ToProtocol() protocol.ChatRoom {
	return protocol.ChatRoom{
		ID:         r.ID,
		BuildingID: r.BuildingID,
		Name:       r.Name,
		CreatedAt:  r.CreatedAt,
	}
}

// Participant 是聊天室成員，(room_id, user_id) 唯一
type Participant struct {
	ID       uint      `gorm:"primaryKey"`
	RoomID   uint      `gorm:"uniqueIndex:idx_participant_room_user;not null"`
	UserID   uint      `gorm:"uniqueIndex:idx_participant_room_user;not null"`
	Role     UserRole  `gorm:"not null"`
	JoinedAt time.Time `gorm:"not null"`
	User     User      `gorm:"foreignKey:UserID"`
}

func (p *Participant) ToProtocol() protocol.ChatParticipant {
	return protocol.ChatParticipant{
		UserID:      p.UserID,
		RoomID:      p.RoomID,
		DisplayName: p.User.Name(),
		Role:        string(p.Role),
		JoinedAt:    p.JoinedAt,
	}
}

// ReadState 是使用者在聊天室中的已讀位置
type ReadState struct {
	ID                uint `gorm:"primaryKey"`
	RoomID            uint `gorm:"uniqueIndex:idx_read_room_user;not null"`
	UserID            uint `gorm:"uniqueIndex:idx_read_room_user;not null"`
	LastReadMessageID uint
	UpdatedAt         time.Time
}
