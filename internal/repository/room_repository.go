package repository

import (
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"building_chat/internal/models"
	"building_chat/internal/storage"
)

type RoomRepository interface {
	BaseRepository[models.Room]
	// FirstOrCreateByBuilding 回傳大樓的聊天室，不存在時建立；created 表示此次建立
	FirstOrCreateByBuilding(buildingID, name string) (room *models.Room, created bool, err error)
	FindByBuilding(buildingID string) (*models.Room, error)
	FindAll() ([]models.Room, error)
	FindByParticipant(userID uint) ([]models.Room, error)

	AddParticipant(roomID, userID uint, role models.UserRole) error
	Participants(roomID uint) ([]models.Participant, error)
	IsParticipant(roomID, userID uint) (bool, error)
}

type roomRepository struct {
	baseRepository[models.Room]
	db *storage.DB
}

func NewRoomRepository(db *storage.DB) RoomRepository {
	return &roomRepository{baseRepository: newBaseRepository[models.Room](db), db: db}
}

func (r *roomRepository) FirstOrCreateByBuilding(buildingID, name string) (*models.Room, bool, error) {
	room, err := r.FindByBuilding(buildingID)
	if err == nil {
		return room, false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, err
	}

	room = &models.Room{BuildingID: buildingID, Name: name}
	res := r.db.Clauses(clause.OnConflict{DoNothing: true}).Create(room)
	if res.Error != nil {
		return nil, false, res.Error
	}
	if res.RowsAffected == 0 {
		// 同時有其他請求建立了同一棟大樓的聊天室
		room, err = r.FindByBuilding(buildingID)
		return room, false, err
	}
	return room, true, nil
}

func (r *roomRepository) FindByBuilding(buildingID string) (*models.Room, error) {
	var room models.Room
	if err := r.db.Where("building_id = ?", buildingID).First(&room).Error; err != nil {
		return nil, err
	}
	return &room, nil
}

// FindAll 查詢所有聊天室
func (r *roomRepository) FindAll() ([]models.Room, error) {
	var rooms []models.Room
	err := r.db.Order("created_at DESC").Find(&rooms).Error
	return rooms, err
}

func (r *roomRepository) FindByParticipant(userID uint) ([]models.Room, error) {
	var rooms []models.Room
	err := r.db.
		Joins("JOIN participants ON participants.room_id = rooms.id").
		Where("participants.user_id = ?", userID).
		Order("rooms.created_at DESC").
		Find(&rooms).Error
	return rooms, err
}

// AddParticipant 加入成員；已是成員時不做任何事
func (r *roomRepository) AddParticipant(roomID, userID uint, role models.UserRole) error {
	p := models.Participant{RoomID: roomID, UserID: userID, Role: role, JoinedAt: time.Now()}
	return r.db.Omit(clause.Associations).Clauses(clause.OnConflict{DoNothing: true}).Create(&p).Error
}

func (r *roomRepository) Participants(roomID uint) ([]models.Participant, error) {
	var out []models.Participant
	err := r.db.Preload("User").Where("room_id = ?", roomID).Order("joined_at ASC").Find(&out).Error
	return out, err
}

func (r *roomRepository) IsParticipant(roomID, userID uint) (bool, error) {
	var count int64
	err := r.db.Model(&models.Participant{}).Where("room_id = ? AND user_id = ?", roomID, userID).Count(&count).Error
	return count > 0, err
}
