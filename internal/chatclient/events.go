package chatclient

import (
	"time"

	"building_chat/internal/protocol"
)

// EventKind 是 session 通知給觀察者的事件種類
type EventKind int

const (
	EventStateChanged EventKind = iota
	EventHistoryLoaded
	EventMessage
	EventTyping
	EventUserJoined
	EventUserLeft
	EventReadReceipt
	EventUnreadChanged
	EventProtocolError
)

func (k EventKind) String() string {
	switch k {
	case EventStateChanged:
		return "state_changed"
	case EventHistoryLoaded:
		return "history_loaded"
	case EventMessage:
		return "message"
	case EventTyping:
		return "typing"
	case EventUserJoined:
		return "user_joined"
	case EventUserLeft:
		return "user_left"
	case EventReadReceipt:
		return "read_receipt"
	case EventUnreadChanged:
		return "unread_changed"
	case EventProtocolError:
		return "protocol_error"
	}
	return "unknown"
}

// Event 在事件迴圈中同步傳給 Options.OnEvent；觀察者不可阻塞，也不可回頭呼叫 Session 的方法
type Event struct {
	Kind     EventKind
	State    State
	Attempt  int
	Message  *protocol.ChatMessage
	UserID   uint
	UserName string
	Typing   map[uint]string
	Unread   int
	Err      error
}

// Snapshot 是 session 某一時刻的狀態複本
type Snapshot struct {
	BuildingID   string
	State        State
	Attempt      int
	NextRetry    time.Duration
	Room         *protocol.ChatRoom
	Messages     []protocol.ChatMessage
	Participants []protocol.ChatParticipant
	Typing       map[uint]string
	Unread       int
	Err          error
}
