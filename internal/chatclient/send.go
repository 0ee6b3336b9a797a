package chatclient

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"building_chat/internal/protocol"
)

// FileAttachment 是已上傳檔案的描述；上傳本身不在此處處理
type FileAttachment struct {
	URL     string
	Name    string
	Size    int64
	Caption string
}

// SendMessage 傳送文字訊息。已連線時走即時連線，否則或寫入失敗時改用
// request/response 建立訊息並重新載入歷史。兩條路徑都失敗時回傳 *SendFailure。
// 訊息要等伺服器回傳 chat_message 或重新載入後才會出現在列表中。
func (s *Session) SendMessage(ctx context.Context, content string) error {
	if strings.TrimSpace(content) == "" {
		return ErrEmptyMessage
	}
	return s.send(ctx, protocol.MessageFrame{
		Message:     content,
		MessageType: protocol.MessageTypeText,
	})
}

// SendFile 傳送檔案訊息
func (s *Session) SendFile(ctx context.Context, file FileAttachment) error {
	if file.URL == "" {
		return fmt.Errorf("%w: file url is required", ErrEmptyMessage)
	}
	return s.send(ctx, protocol.MessageFrame{
		Message:     file.Caption,
		MessageType: protocol.MessageTypeFile,
		FileURL:     file.URL,
		FileName:    file.Name,
		FileSize:    file.Size,
	})
}

func (s *Session) send(ctx context.Context, frame protocol.MessageFrame) error {
	frame.ClientMsgID = s.newID()
	data, err := protocol.EncodeOutbound(frame)
	if err != nil {
		return err
	}

	var (
		building   string
		activation uint64
		lc         *liveConn
	)
	err = s.call(func() error {
		if s.building == "" {
			return ErrNoBuilding
		}
		building, activation = s.building, s.activation
		if s.state == StateConnected {
			lc = s.conn
		}
		return nil
	})
	if err != nil {
		return err
	}

	liveErr := ErrNotConnected
	if lc != nil {
		liveErr = lc.send(ctx, data)
		s.metrics.send("live", liveErr)
		if liveErr == nil {
			return nil
		}
		s.log.Warn("live send failed, falling back to request/response",
			zap.String("building_id", building), zap.Error(liveErr))
	}

	fbErr := s.sendFallback(ctx, building, activation, frame)
	s.metrics.send("fallback", fbErr)
	if fbErr != nil {
		return &SendFailure{Live: liveErr, Fallback: fbErr}
	}
	return nil
}

// sendFallback 透過 request/response 建立訊息，成功後整批重新載入歷史
func (s *Session) sendFallback(ctx context.Context, building string, activation uint64, frame protocol.MessageFrame) error {
	room, err := s.loader.ResolveRoom(ctx, building)
	if err != nil {
		return fmt.Errorf("resolve room: %w", err)
	}

	_, err = s.api.CreateMessage(ctx, room.ID, protocol.CreateMessageRequest{
		Content:     frame.Message,
		MessageType: frame.MessageType,
		FileURL:     frame.FileURL,
		FileName:    frame.FileName,
		FileSize:    frame.FileSize,
		ClientMsgID: frame.ClientMsgID,
	})
	if err != nil {
		return fmt.Errorf("create message: %w", err)
	}

	b := s.loader.Load(ctx, building)
	_ = s.call(func() error {
		// 傳送期間已切換大樓就丟棄
		if s.activation == activation {
			s.applyHistory(b)
		}
		return nil
	})
	return nil
}

// SetTyping 送出自己的輸入中狀態；未連線時回傳 ErrNotConnected
func (s *Session) SetTyping(isTyping bool) error {
	data, err := protocol.EncodeOutbound(protocol.TypingFrame{IsTyping: isTyping})
	if err != nil {
		return err
	}
	return s.call(func() error {
		if s.state != StateConnected || s.conn == nil {
			return ErrNotConnected
		}
		return s.conn.trySend(data)
	})
}
