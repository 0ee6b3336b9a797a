package service

import (
	"errors"

	"gorm.io/gorm"

	"building_chat/internal/models"
	"building_chat/internal/protocol"
	"building_chat/internal/repository"
)

type RoomService struct {
	roomRepo    repository.RoomRepository
	messageRepo repository.MessageRepository
	readRepo    repository.ReadStateRepository
	userRepo    repository.UserRepository
}

func NewRoomService(repos *repository.Repositories) *RoomService {
	return &RoomService{
		roomRepo:    repos.Room,
		messageRepo: repos.Message,
		readRepo:    repos.ReadState,
		userRepo:    repos.User,
	}
}

// GetOrCreateForBuilding 取得大樓的聊天室並把使用者加入成員。
// 新建立的聊天室會先寫入一則系統訊息。
func (s *RoomService) GetOrCreateForBuilding(buildingID string, userID uint) (protocol.RoomResult, error) {
	user, err := s.userRepo.FindByID(userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return protocol.RoomResult{}, ErrUserNotFound
		}
		return protocol.RoomResult{}, err
	}

	room, created, err := s.roomRepo.FirstOrCreateByBuilding(buildingID, "Building "+buildingID)
	if err != nil {
		return protocol.RoomResult{}, err
	}
	if created {
		if err := s.messageRepo.Create(models.NewSystemMessage(room.ID, "聊天室已建立")); err != nil {
			return protocol.RoomResult{}, err
		}
	}
	if err := s.roomRepo.AddParticipant(room.ID, user.ID, user.Role); err != nil {
		return protocol.RoomResult{}, err
	}

	out, err := s.withUnread(room, userID)
	if err != nil {
		return protocol.RoomResult{}, err
	}
	return protocol.RoomResult{Room: out, Created: created}, nil
}

// ListForUser 回傳使用者參與的聊天室；尚未參與任何聊天室時回傳全部
func (s *RoomService) ListForUser(userID uint) ([]protocol.ChatRoom, error) {
	rooms, err := s.roomRepo.FindByParticipant(userID)
	if err != nil {
		return nil, err
	}
	if len(rooms) == 0 {
		if rooms, err = s.roomRepo.FindAll(); err != nil {
			return nil, err
		}
	}

	out := make([]protocol.ChatRoom, 0, len(rooms))
	for i := range rooms {
		r, err := s.withUnread(&rooms[i], userID)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

func (s *RoomService) Room(roomID uint) (*models.Room, error) {
	room, err := s.roomRepo.FindByID(roomID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrRoomNotFound
	}
	return room, err
}

func (s *RoomService) Participants(roomID uint) ([]protocol.ChatParticipant, error) {
	if _, err := s.Room(roomID); err != nil {
		return nil, err
	}
	parts, err := s.roomRepo.Participants(roomID)
	if err != nil {
		return nil, err
	}
	out := make([]protocol.ChatParticipant, 0, len(parts))
	for i := range parts {
		out = append(out, parts[i].ToProtocol())
	}
	return out, nil
}

func (s *RoomService) UnreadSummary(roomID, userID uint) (protocol.UnreadSummary, error) {
	room, err := s.Room(roomID)
	if err != nil {
		return protocol.UnreadSummary{}, err
	}
	r, err := s.withUnread(room, userID)
	if err != nil {
		return protocol.UnreadSummary{}, err
	}
	return protocol.UnreadSummary{RoomID: roomID, UnreadCount: r.UnreadCount}, nil
}

// MarkRead 推進使用者的已讀位置並回傳新的位置；messageID 為 nil 表示讀到最新一則
func (s *RoomService) MarkRead(roomID, userID uint, messageID *uint) (uint, error) {
	var target uint
	if messageID != nil {
		target = *messageID
	} else {
		latest, err := s.messageRepo.FindByRoomID(roomID, 1, 0)
		if err != nil {
			return 0, err
		}
		if len(latest) == 0 {
			return 0, nil
		}
		target = latest[0].ID
	}
	if err := s.readRepo.Advance(roomID, userID, target); err != nil {
		return 0, err
	}
	return s.readRepo.LastRead(roomID, userID)
}

func (s *RoomService) withUnread(room *models.Room, userID uint) (protocol.ChatRoom, error) {
	out := room.ToProtocol()
	last, err := s.readRepo.LastRead(room.ID, userID)
	if err != nil {
		return out, err
	}
	count, err := s.messageRepo.CountAfter(room.ID, last, userID)
	if err != nil {
		return out, err
	}
	out.UnreadCount = int(count)
	return out, nil
}
