package service

import (
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"building_chat/internal/models"
	"building_chat/internal/protocol"
	"building_chat/internal/repository"
)

const (
	DefaultPageSize = 50
	MaxPageSize     = 100
)

type MessageService struct {
	messageRepo repository.MessageRepository
	roomRepo    repository.RoomRepository
	userRepo    repository.UserRepository
	hub         *Hub
}

func NewMessageService(repos *repository.Repositories, hub *Hub) *MessageService {
	return &MessageService{
		messageRepo: repos.Message,
		roomRepo:    repos.Room,
		userRepo:    repos.User,
		hub:         hub,
	}
}

// List 回傳第 page 頁（從 1 開始），由新到舊
func (s *MessageService) List(roomID uint, page, limit int) (protocol.MessagePage, error) {
	if page < 1 {
		page = 1
	}
	if limit <= 0 {
		limit = DefaultPageSize
	}
	limit = min(limit, MaxPageSize)

	if _, err := s.roomRepo.FindByID(roomID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return protocol.MessagePage{}, ErrRoomNotFound
		}
		return protocol.MessagePage{}, err
	}

	msgs, err := s.messageRepo.FindByRoomID(roomID, limit, (page-1)*limit)
	if err != nil {
		return protocol.MessagePage{}, err
	}
	out := protocol.MessagePage{Messages: make([]protocol.ChatMessage, 0, len(msgs)), Page: page, Limit: limit}
	for i := range msgs {
		out.Messages = append(out.Messages, msgs[i].ToProtocol())
	}
	return out, nil
}

// Create 儲存訊息並廣播給聊天室。同一個 client_msg_id 重送時回傳既有訊息、不再廣播。
func (s *MessageService) Create(roomID, userID uint, req protocol.CreateMessageRequest) (protocol.ChatMessage, bool, error) {
	if err := validateRequest(&req); err != nil {
		return protocol.ChatMessage{}, false, err
	}

	room, err := s.roomRepo.FindByID(roomID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return protocol.ChatMessage{}, false, ErrRoomNotFound
		}
		return protocol.ChatMessage{}, false, err
	}
	user, err := s.userRepo.FindByID(userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return protocol.ChatMessage{}, false, ErrUserNotFound
		}
		return protocol.ChatMessage{}, false, err
	}
	if err := s.roomRepo.AddParticipant(room.ID, user.ID, user.Role); err != nil {
		return protocol.ChatMessage{}, false, err
	}

	stored, created, err := s.messageRepo.CreateOnce(models.NewChatMessage(room.ID, user, req))
	if err != nil {
		return protocol.ChatMessage{}, false, err
	}
	msg := stored.ToProtocol()
	if created {
		s.hub.BroadcastToRoom(room.ID, protocol.NewChatMessageFrame(msg), nil)
	}
	return msg, created, nil
}

func validateRequest(req *protocol.CreateMessageRequest) error {
	if req.MessageType == "" {
		req.MessageType = protocol.MessageTypeText
	}
	switch req.MessageType {
	case protocol.MessageTypeText:
		if strings.TrimSpace(req.Content) == "" {
			return fmt.Errorf("%w: content is required", ErrInvalidMessage)
		}
	case protocol.MessageTypeFile:
		if req.FileURL == "" {
			return fmt.Errorf("%w: file_url is required", ErrInvalidMessage)
		}
	default:
		return fmt.Errorf("%w: message_type %q", ErrInvalidMessage, req.MessageType)
	}
	if len(req.ClientMsgID) > 64 {
		return fmt.Errorf("%w: client_msg_id too long", ErrInvalidMessage)
	}
	return nil
}
