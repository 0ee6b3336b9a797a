package chatclient

import (
	"go.uber.org/zap"

	"building_chat/internal/protocol"
)

// UnreadTracker 是本地的未讀計數，僅供 badge 顯示參考
type UnreadTracker struct {
	count int
}

func (u *UnreadTracker) Increment() {
	u.count++
}

func (u *UnreadTracker) Reset() {
	u.count = 0
}

// Set 以伺服器提供的數值覆寫，負數視為 0
func (u *UnreadTracker) Set(n int) {
	if n < 0 {
		n = 0
	}
	u.count = n
}

func (u *UnreadTracker) Count() int {
	return u.count
}

// MarkAsRead 將本地未讀數歸零。已連線時送出 read frame；
// 未連線時回條延後到下一次連線成功後送出一次。messageID 為 nil 表示全部已讀。
func (s *Session) MarkAsRead(messageID *uint) error {
	return s.call(func() error {
		s.unread.Reset()
		s.emit(Event{Kind: EventUnreadChanged, Unread: 0})

		frame := protocol.ReadFrame{MessageID: messageID}
		if s.state == StateConnected && s.conn != nil {
			if err := s.sendRead(frame); err == nil {
				s.pendingRead = nil
				return nil
			}
		}
		if s.building != "" {
			s.pendingRead = &frame
		}
		return nil
	})
}

// flushPendingRead 在連線成功後送出延後的回條
func (s *Session) flushPendingRead() {
	if s.pendingRead == nil || s.conn == nil {
		return
	}
	if err := s.sendRead(*s.pendingRead); err != nil {
		s.log.Warn("deferred read receipt not sent", zap.String("building_id", s.building), zap.Error(err))
		return
	}
	s.pendingRead = nil
}

func (s *Session) sendRead(frame protocol.ReadFrame) error {
	data, err := protocol.EncodeOutbound(frame)
	if err != nil {
		return err
	}
	return s.conn.trySend(data)
}
