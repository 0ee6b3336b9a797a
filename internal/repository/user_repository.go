package repository

import (
	"building_chat/internal/models"
	"building_chat/internal/storage"
)

type UserRepository interface {
	BaseRepository[models.User]
	FindByUsername(username string) (*models.User, error)
}

type userRepository struct {
	baseRepository[models.User]
	db *storage.DB
}

func NewUserRepository(db *storage.DB) UserRepository {
	return &userRepository{baseRepository: newBaseRepository[models.User](db), db: db}
}

func (r *userRepository) FindByUsername(username string) (*models.User, error) {
	var user models.User
	err := r.db.Where("username = ?", username).First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}
