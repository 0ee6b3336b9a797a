package chatclient

import "time"

// DefaultTypingTTL 是輸入中狀態在沒有後續訊號時自動消失的時間
const DefaultTypingTTL = 3 * time.Second

type typingEntry struct {
	name  string
	timer Timer
	seq   uint64
}

// TypingTracker 記錄目前正在輸入的使用者。
// 不是 goroutine-safe，只能在 session 的事件迴圈中使用；
// 計時器到期時呼叫 onExpire，由呼叫端把 Expire 排回事件迴圈。
type TypingTracker struct {
	ttl      time.Duration
	clock    Clock
	onExpire func(userID uint, seq uint64)
	entries  map[uint]*typingEntry
	seq      uint64
}

func NewTypingTracker(ttl time.Duration, clock Clock, onExpire func(userID uint, seq uint64)) *TypingTracker {
	if ttl <= 0 {
		ttl = DefaultTypingTTL
	}
	if clock == nil {
		clock = realClock{}
	}
	return &TypingTracker{
		ttl:      ttl,
		clock:    clock,
		onExpire: onExpire,
		entries:  make(map[uint]*typingEntry),
	}
}

// Start 標記使用者正在輸入，並重新開始該使用者的到期計時
func (t *TypingTracker) Start(userID uint, name string) {
	if e, ok := t.entries[userID]; ok {
		e.timer.Stop()
	}

	t.seq++
	seq := t.seq
	e := &typingEntry{name: name, seq: seq}
	e.timer = t.clock.AfterFunc(t.ttl, func() {
		if t.onExpire != nil {
			t.onExpire(userID, seq)
		}
	})
	t.entries[userID] = e
}

// Stop 移除使用者並取消計時器，回報是否原本存在
func (t *TypingTracker) Stop(userID uint) bool {
	e, ok := t.entries[userID]
	if !ok {
		return false
	}
	e.timer.Stop()
	delete(t.entries, userID)
	return true
}

// Expire 處理計時器到期。seq 不符代表計時器已被取代或取消，忽略之。
func (t *TypingTracker) Expire(userID uint, seq uint64) bool {
	e, ok := t.entries[userID]
	if !ok || e.seq != seq {
		return false
	}
	delete(t.entries, userID)
	return true
}

// Reset 取消所有計時器並清空狀態
func (t *TypingTracker) Reset() {
	for id, e := range t.entries {
		e.timer.Stop()
		delete(t.entries, id)
	}
}

// Users 回傳 userID -> 顯示名稱 的複本
func (t *TypingTracker) Users() map[uint]string {
	out := make(map[uint]string, len(t.entries))
	for id, e := range t.entries {
		out[id] = e.name
	}
	return out
}

func (t *TypingTracker) Len() int {
	return len(t.entries)
}
