package chatclient

import (
	"slices"
	"sort"

	"building_chat/internal/protocol"
)

// MessageStore 保存已載入的訊息，依 CreatedAt 非遞減排序且 ID 不重複
type MessageStore struct {
	msgs []protocol.ChatMessage
	ids  map[uint]struct{}
}

func NewMessageStore() *MessageStore {
	return &MessageStore{ids: make(map[uint]struct{})}
}

// Add 依時間插入訊息；ID 已存在時回傳 false。相同時間戳的訊息保持到達順序。
func (s *MessageStore) Add(m protocol.ChatMessage) bool {
	if _, ok := s.ids[m.ID]; ok {
		return false
	}
	i := sort.Search(len(s.msgs), func(i int) bool {
		return s.msgs[i].CreatedAt.After(m.CreatedAt)
	})
	s.msgs = slices.Insert(s.msgs, i, m)
	s.ids[m.ID] = struct{}{}
	return true
}

// Reload 以 bootstrap 結果整批取代內容。
// 比 bootstrap 最新一則還新、且 bootstrap 沒有包含的即時訊息會保留下來。
func (s *MessageStore) Reload(msgs []protocol.ChatMessage) {
	old := s.msgs

	s.msgs = make([]protocol.ChatMessage, 0, len(msgs))
	s.ids = make(map[uint]struct{}, len(msgs))
	for _, m := range msgs {
		s.Add(m)
	}

	if len(s.msgs) == 0 {
		for _, m := range old {
			s.Add(m)
		}
		return
	}
	newest := s.msgs[len(s.msgs)-1].CreatedAt
	for _, m := range old {
		if m.CreatedAt.After(newest) {
			s.Add(m)
		}
	}
}

func (s *MessageStore) Reset() {
	s.msgs = nil
	s.ids = make(map[uint]struct{})
}

// Messages 回傳依時間排序的複本
func (s *MessageStore) Messages() []protocol.ChatMessage {
	return slices.Clone(s.msgs)
}

func (s *MessageStore) Len() int {
	return len(s.msgs)
}
