package repository

import (
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"building_chat/internal/models"
	"building_chat/internal/storage"
)

type ReadStateRepository interface {
	// Advance 把已讀位置往前推；messageID 小於現有位置時不變
	Advance(roomID, userID, messageID uint) error
	LastRead(roomID, userID uint) (uint, error)
}

type readStateRepository struct {
	db *storage.DB
}

func NewReadStateRepository(db *storage.DB) ReadStateRepository {
	return &readStateRepository{db: db}
}

func (r *readStateRepository) Advance(roomID, userID, messageID uint) error {
	state := models.ReadState{RoomID: roomID, UserID: userID, LastReadMessageID: messageID, UpdatedAt: time.Now()}
	return r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "room_id"}, {Name: "user_id"}},
		DoUpdates: clause.Set{
			{Column: clause.Column{Name: "last_read_message_id"}, Value: gorm.Expr(
				"CASE WHEN excluded.last_read_message_id > read_states.last_read_message_id THEN excluded.last_read_message_id ELSE read_states.last_read_message_id END")},
			{Column: clause.Column{Name: "updated_at"}, Value: gorm.Expr("excluded.updated_at")},
		},
	}).Create(&state).Error
}

func (r *readStateRepository) LastRead(roomID, userID uint) (uint, error) {
	var state models.ReadState
	err := r.db.Where("room_id = ? AND user_id = ?", roomID, userID).First(&state).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	return state.LastReadMessageID, err
}
