package service

import (
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"building_chat/internal/protocol"
)

// Identity 是已驗證的連線使用者
type Identity struct {
	UserID uint
	Name   string
	Role   string
}

// LiveService 處理 /chat/:buildingId 的即時連線
type LiveService struct {
	hub      *Hub
	rooms    *RoomService
	messages *MessageService
	log      *zap.Logger
}

func NewLiveService(hub *Hub, rooms *RoomService, messages *MessageService, log *zap.Logger) *LiveService {
	return &LiveService{hub: hub, rooms: rooms, messages: messages, log: log}
}

// Handle 讓使用者加入大樓聊天室並處理連線，直到連線結束
func (s *LiveService) Handle(conn *websocket.Conn, buildingID string, who Identity) error {
	res, err := s.rooms.GetOrCreateForBuilding(buildingID, who.UserID)
	if err != nil {
		return err
	}

	client := NewClient(conn, res.Room.ID, who.UserID, who.Name, who.Role)
	log := s.log.With(zap.String("building_id", buildingID), zap.Uint("room_id", client.RoomID), zap.Uint("user_id", who.UserID))
	log.Info("live client connected")

	s.hub.BroadcastToRoom(client.RoomID, protocol.UserJoinFrame{UserID: who.UserID, UserName: who.Name}, client)
	s.hub.Serve(client, func(c *Client, data []byte) {
		s.handleFrame(log, c, data)
	})
	s.hub.BroadcastToRoom(client.RoomID, protocol.UserLeaveFrame{UserID: who.UserID, UserName: who.Name}, client)

	log.Info("live client disconnected")
	return nil
}

func (s *LiveService) handleFrame(log *zap.Logger, c *Client, data []byte) {
	frame, err := protocol.DecodeOutbound(data)
	if err != nil {
		log.Warn("dropping malformed frame", zap.Error(err))
		return
	}

	switch f := frame.(type) {
	case protocol.MessageFrame:
		_, _, err := s.messages.Create(c.RoomID, c.UserID, protocol.CreateMessageRequest{
			Content:     f.Message,
			MessageType: f.MessageType,
			FileURL:     f.FileURL,
			FileName:    f.FileName,
			FileSize:    f.FileSize,
			ClientMsgID: f.ClientMsgID,
		})
		if err != nil {
			log.Warn("live message rejected", zap.Error(err))
		}

	case protocol.TypingFrame:
		s.hub.BroadcastToRoom(c.RoomID, protocol.TypingIndicatorFrame{
			UserID:   c.UserID,
			UserName: c.UserName,
			IsTyping: f.IsTyping,
		}, c)

	case protocol.ReadFrame:
		watermark, err := s.rooms.MarkRead(c.RoomID, c.UserID, f.MessageID)
		if err != nil {
			log.Warn("mark read failed", zap.Error(err))
			return
		}
		receipt := protocol.ReadReceiptFrame{UserID: c.UserID, UserName: c.UserName}
		if watermark != 0 {
			receipt.MessageID = &watermark
		}
		s.hub.BroadcastToRoom(c.RoomID, receipt, c)

	case protocol.Unknown:
		log.Debug("ignoring unknown frame", zap.String("type", string(f.Type)))
	}
}
