package repository

import "building_chat/internal/storage"

type Repositories struct {
	User      UserRepository
	Room      RoomRepository
	Message   MessageRepository
	ReadState ReadStateRepository
}

func NewRepositories(db *storage.DB) *Repositories {
	return &Repositories{
		User:      NewUserRepository(db),
		Room:      NewRoomRepository(db),
		Message:   NewMessageRepository(db),
		ReadState: NewReadStateRepository(db),
	}
}
