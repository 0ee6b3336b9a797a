package repository

import (
	"errors"

	"gorm.io/gorm"

	"building_chat/internal/models"
	"building_chat/internal/storage"
)

type MessageRepository interface {
	BaseRepository[models.Message]
	// CreateOnce 建立訊息；同一聊天室已有相同 ClientMsgID 時回傳既有訊息與 created=false
	CreateOnce(message *models.Message) (*models.Message, bool, error)
	// FindByRoomID 由新到舊分頁查詢
	FindByRoomID(roomID uint, limit, offset int) ([]models.Message, error)
	CountAfter(roomID, afterID, excludeSenderID uint) (int64, error)
}

type messageRepository struct {
	baseRepository[models.Message]
	db *storage.DB
}

func NewMessageRepository(db *storage.DB) MessageRepository {
	return &messageRepository{baseRepository: newBaseRepository[models.Message](db), db: db}
}

func (r *messageRepository) CreateOnce(message *models.Message) (*models.Message, bool, error) {
	if message.ClientMsgID != nil {
		existing, err := r.findByClientMsgID(message.RoomID, *message.ClientMsgID)
		if err == nil {
			return existing, false, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, false, err
		}
	}

	if err := r.db.Create(message).Error; err != nil {
		if message.ClientMsgID != nil {
			// 唯一索引衝突：另一個請求剛建立了同一則訊息
			if existing, findErr := r.findByClientMsgID(message.RoomID, *message.ClientMsgID); findErr == nil {
				return existing, false, nil
			}
		}
		return nil, false, err
	}
	return message, true, nil
}

func (r *messageRepository) findByClientMsgID(roomID uint, clientMsgID string) (*models.Message, error) {
	var m models.Message
	err := r.db.Where("room_id = ? AND client_msg_id = ?", roomID, clientMsgID).First(&m).Error
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *messageRepository) FindByRoomID(roomID uint, limit, offset int) ([]models.Message, error) {
	var messages []models.Message
	err := r.db.Where("room_id = ?", roomID).
		Order("created_at DESC").Order("id DESC").
		Limit(limit).Offset(offset).
		Find(&messages).Error
	return messages, err
}

// CountAfter 計算 afterID 之後、不是 excludeSenderID 送出的訊息數
func (r *messageRepository) CountAfter(roomID, afterID, excludeSenderID uint) (int64, error) {
	var count int64
	err := r.db.Model(&models.Message{}).
		Where("room_id = ? AND id > ? AND sender_id <> ?", roomID, afterID, excludeSenderID).
		Count(&count).Error
	return count, err
}
