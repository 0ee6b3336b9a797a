package repository

import "building_chat/internal/storage"

// BaseRepository 提供各模型共用的 CRUD
type BaseRepository[T any] interface {
	Create(model *T) error
	FindByID(id uint) (*T, error)
	Update(model *T) error
	Delete(id uint) error
}

type baseRepository[T any] struct {
	db *storage.DB
}

func newBaseRepository[T any](db *storage.DB) baseRepository[T] {
	return baseRepository[T]{db: db}
}

func (r baseRepository[T]) Create(model *T) error {
	return r.db.Create(model).Error
}

func (r baseRepository[T]) FindByID(id uint) (*T, error) {
	var model T
	if err := r.db.First(&model, id).Error; err != nil {
		return nil, err
	}
	return &model, nil
}

func (r baseRepository[T]) Update(model *T) error {
	return r.db.Save(model).Error
}

func (r baseRepository[T]) Delete(id uint) error {
	var model T
	return r.db.Delete(&model, id).Error
}
