package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Kind 是 frame 的 "type" 欄位
type Kind string

// 伺服器送往客戶端的 frame 種類
const (
	KindChatMessage     Kind = "chat_message"
	KindUserJoin        Kind = "user_join"
	KindUserLeave       Kind = "user_leave"
	KindTypingIndicator Kind = "typing_indicator"
	KindReadReceipt     Kind = "read_receipt"
)

// 客戶端送往伺服器的 frame 種類
const (
	KindMessage Kind = "message"
	KindTyping  Kind = "typing"
	KindRead    Kind = "read"
)

// Inbound 是伺服器送往客戶端的 frame，只有本套件內的型別能實作
type Inbound interface {
	Kind() Kind
	inbound()
}

// Outbound 是客戶端送往伺服器的 frame
type Outbound interface {
	Kind() Kind
	outbound()
}

// ChatMessageFrame 是一則已被伺服器確認的訊息
type ChatMessageFrame struct {
	MessageID   uint        `json:"message_id"`
	RoomID      uint        `json:"room_id,omitempty"`
	SenderID    uint        `json:"sender_id"`
	SenderName  string      `json:"sender_name"`
	SenderRole  string      `json:"sender_role"`
	MessageType MessageType `json:"message_type"`
	Content     string      `json:"content"`
	FileURL     string      `json:"file_url,omitempty"`
	FileName    string      `json:"file_name,omitempty"`
	FileSize    int64       `json:"file_size,omitempty"`
	IsEdited    bool        `json:"is_edited,omitempty"`
	ClientMsgID string      `json:"client_msg_id,omitempty"`
	Timestamp   time.Time   `json:"timestamp"`
}

type UserJoinFrame struct {
	UserID   uint   `json:"user_id,omitempty"`
	UserName string `json:"user_name"`
}

type UserLeaveFrame struct {
	UserID   uint   `json:"user_id,omitempty"`
	UserName string `json:"user_name"`
}

type TypingIndicatorFrame struct {
	UserID   uint   `json:"user_id"`
	UserName string `json:"user_name"`
	IsTyping bool   `json:"is_typing"`
}

type ReadReceiptFrame struct {
	UserID    uint   `json:"user_id,omitempty"`
	UserName  string `json:"user_name"`
	MessageID *uint  `json:"message_id,omitempty"`
}

// Unknown 是無法辨識種類的 frame，為了向前相容直接忽略
type Unknown struct {
	Type Kind
}

// MessageFrame 要求伺服器建立一則訊息
type MessageFrame struct {
	Message     string      `json:"message"`
	MessageType MessageType `json:"message_type"`
	FileURL     string      `json:"file_url,omitempty"`
	FileName    string      `json:"file_name,omitempty"`
	FileSize    int64       `json:"file_size,omitempty"`
	ClientMsgID string      `json:"client_msg_id,omitempty"`
}

type TypingFrame struct {
	IsTyping bool `json:"is_typing"`
}

// ReadFrame 是已讀回條；MessageID 為 nil 表示全部已讀
type ReadFrame struct {
	MessageID *uint `json:"message_id,omitempty"`
}

func (ChatMessageFrame) Kind() Kind     { return KindChatMessage }
func (UserJoinFrame) Kind() Kind        { return KindUserJoin }
func (UserLeaveFrame) Kind() Kind       { return KindUserLeave }
func (TypingIndicatorFrame) Kind() Kind { return KindTypingIndicator }
func (ReadReceiptFrame) Kind() Kind     { return KindReadReceipt }
func (u Unknown) Kind() Kind            { return u.Type }
func (MessageFrame) Kind() Kind         { return KindMessage }
func (TypingFrame) Kind() Kind          { return KindTyping }
func (ReadFrame) Kind() Kind            { return KindRead }

func (ChatMessageFrame) inbound()     {}
func (UserJoinFrame) inbound()        {}
func (UserLeaveFrame) inbound()       {}
func (TypingIndicatorFrame) inbound() {}
func (ReadReceiptFrame) inbound()     {}
func (Unknown) inbound()              {}
func (Unknown) outbound()             {}
func (MessageFrame) outbound()        {}
func (TypingFrame) outbound()         {}
func (ReadFrame) outbound()           {}

// Message 把 frame 轉換成訊息
func (f ChatMessageFrame) Message() ChatMessage {
	return ChatMessage{
		ID:          f.MessageID,
		RoomID:      f.RoomID,
		SenderID:    f.SenderID,
		SenderName:  f.SenderName,
		SenderRole:  f.SenderRole,
		MessageType: f.MessageType,
		Content:     f.Content,
		FileURL:     f.FileURL,
		FileName:    f.FileName,
		FileSize:    f.FileSize,
		IsEdited:    f.IsEdited,
		ClientMsgID: f.ClientMsgID,
		CreatedAt:   f.Timestamp,
	}
}

// NewChatMessageFrame 由訊息建立 chat_message frame
func NewChatMessageFrame(m ChatMessage) ChatMessageFrame {
	return ChatMessageFrame{
		MessageID:   m.ID,
		RoomID:      m.RoomID,
		SenderID:    m.SenderID,
		SenderName:  m.SenderName,
		SenderRole:  m.SenderRole,
		MessageType: m.MessageType,
		Content:     m.Content,
		FileURL:     m.FileURL,
		FileName:    m.FileName,
		FileSize:    m.FileSize,
		IsEdited:    m.IsEdited,
		ClientMsgID: m.ClientMsgID,
		Timestamp:   m.CreatedAt,
	}
}

var (
	ErrMissingType      = errors.New("missing frame type")
	ErrMissingField     = errors.New("missing required field")
	ErrInvalidField     = errors.New("invalid field value")
	ErrUnsupportedFrame = errors.New("unsupported frame")
)

// ProtocolError 表示收到的 frame 無法解碼；不影響連線狀態
type ProtocolError struct {
	Kind Kind
	Err  error
}

func (e *ProtocolError) Error() string {
	if e.Kind == "" {
		return fmt.Sprintf("protocol: malformed frame: %v", e.Err)
	}
	return fmt.Sprintf("protocol: malformed %s frame: %v", e.Kind, e.Err)
}

func (e *ProtocolError) Unwrap() error { return e.Err }

type envelope struct {
	Type Kind `json:"type"`
}

func peekKind(data []byte) (Kind, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return "", &ProtocolError{Err: err}
	}
	if env.Type == "" {
		return "", &ProtocolError{Err: ErrMissingType}
	}
	return env.Type, nil
}

func decodeInto[T any](kind Kind, data []byte, validate func(*T) error) (T, error) {
	var f T
	if err := json.Unmarshal(data, &f); err != nil {
		return f, &ProtocolError{Kind: kind, Err: err}
	}
	if validate != nil {
		if err := validate(&f); err != nil {
			return f, &ProtocolError{Kind: kind, Err: err}
		}
	}
	return f, nil
}

// DecodeInbound 解碼伺服器送來的 frame。未知種類回傳 Unknown 與 nil error。
func DecodeInbound(data []byte) (Inbound, error) {
	kind, err := peekKind(data)
	if err != nil {
		return nil, err
	}

	var f Inbound
	switch kind {
	case KindChatMessage:
		f, err = decodeInto(kind, data, validateChatMessage)
	case KindUserJoin:
		f, err = decodeInto[UserJoinFrame](kind, data, nil)
	case KindUserLeave:
		f, err = decodeInto[UserLeaveFrame](kind, data, nil)
	case KindTypingIndicator:
		f, err = decodeInto(kind, data, func(f *TypingIndicatorFrame) error {
			if f.UserID == 0 {
				return fmt.Errorf("%w: user_id", ErrMissingField)
			}
			return nil
		})
	case KindReadReceipt:
		f, err = decodeInto[ReadReceiptFrame](kind, data, nil)
	default:
		f = Unknown{Type: kind}
	}
	if err != nil {
		return nil, err
	}
	return f, nil
}

// DecodeOutbound 解碼客戶端送來的 frame，供 gateway 使用
func DecodeOutbound(data []byte) (Outbound, error) {
	kind, err := peekKind(data)
	if err != nil {
		return nil, err
	}

	var f Outbound
	switch kind {
	case KindMessage:
		f, err = decodeInto(kind, data, validateMessage)
	case KindTyping:
		f, err = decodeInto[TypingFrame](kind, data, nil)
	case KindRead:
		f, err = decodeInto[ReadFrame](kind, data, nil)
	default:
		f = Unknown{Type: kind}
	}
	if err != nil {
		return nil, err
	}
	return f, nil
}

func validateChatMessage(f *ChatMessageFrame) error {
	switch {
	case f.MessageID == 0:
		return fmt.Errorf("%w: message_id", ErrMissingField)
	case f.SenderID == 0 && f.MessageType != MessageTypeSystem:
		return fmt.Errorf("%w: sender_id", ErrMissingField)
	case f.Timestamp.IsZero():
		return fmt.Errorf("%w: timestamp", ErrMissingField)
	case !f.MessageType.Valid():
		return fmt.Errorf("%w: message_type %q", ErrInvalidField, f.MessageType)
	case f.MessageType == MessageTypeFile && f.FileURL == "":
		return fmt.Errorf("%w: file_url", ErrMissingField)
	}
	return nil
}

func validateMessage(f *MessageFrame) error {
	if f.MessageType == "" {
		f.MessageType = MessageTypeText
	}
	switch {
	case !f.MessageType.Valid() || f.MessageType == MessageTypeSystem:
		return fmt.Errorf("%w: message_type %q", ErrInvalidField, f.MessageType)
	case f.MessageType == MessageTypeFile && f.FileURL == "":
		return fmt.Errorf("%w: file_url", ErrMissingField)
	case f.MessageType != MessageTypeFile && f.Message == "":
		return fmt.Errorf("%w: message", ErrMissingField)
	}
	return nil
}

// EncodeOutbound 編碼客戶端要送出的 frame；只接受 message、typing、read
func EncodeOutbound(f Outbound) ([]byte, error) {
	switch m := f.(type) {
	case MessageFrame:
		if err := validateMessage(&m); err != nil {
			return nil, err
		}
		f = m
	case Unknown:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFrame, f.Kind())
	}
	return encode(f.Kind(), f)
}

// EncodeInbound 編碼伺服器要送出的 frame
func EncodeInbound(f Inbound) ([]byte, error) {
	if _, ok := f.(Unknown); ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFrame, f.Kind())
	}
	return encode(f.Kind(), f)
}

// encode 把 {"type": kind} 與 payload 的欄位合併為同一個 JSON 物件
func encode(kind Kind, payload any) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	head, err := json.Marshal(envelope{Type: kind})
	if err != nil {
		return nil, err
	}

	body = bytes.TrimSpace(body)
	if len(body) < 2 || body[0] != '{' {
		return nil, fmt.Errorf("%w: %s payload is not an object", ErrUnsupportedFrame, kind)
	}
	if len(body) == 2 {
		return head, nil
	}

	out := make([]byte, 0, len(head)+len(body))
	out = append(out, head[:len(head)-1]...)
	out = append(out, ',')
	out = append(out, body[1:]...)
	return out, nil
}
