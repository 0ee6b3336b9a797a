package service

import (
	"errors"

	"go.uber.org/zap"

	"building_chat/internal/repository"
	"building_chat/internal/utils"
)

var (
	ErrRoomNotFound       = errors.New("chat room not found")
	ErrUserNotFound       = errors.New("user not found")
	ErrUserExists         = errors.New("username already taken")
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrInvalidMessage     = errors.New("invalid message")
)

type Services struct {
	User    *UserService
	Room    *RoomService
	Message *MessageService
	Live    *LiveService
	Hub     *Hub
}

func NewServices(repos *repository.Repositories, tokens *utils.TokenManager, log *zap.Logger, metrics *HubMetrics) *Services {
	if log == nil {
		log = zap.NewNop()
	}
	hub := NewHub(log.Named("hub"), metrics)

	userService := NewUserService(repos.User, tokens)
	roomService := NewRoomService(repos)
	messageService := NewMessageService(repos, hub)
	return &Services{
		User:    userService,
		Room:    roomService,
		Message: messageService,
		Live:    NewLiveService(hub, roomService, messageService, log.Named("live")),
		Hub:     hub,
	}
}
