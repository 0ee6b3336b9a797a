package chatclient

import (
	"errors"
	"fmt"
)

var (
	ErrClosed        = errors.New("chat session closed")
	ErrNoBuilding    = errors.New("no active building")
	ErrNotConnected  = errors.New("live connection is not open")
	ErrRoomNotFound  = errors.New("no chat room for building")
	ErrEmptyMessage  = errors.New("message content cannot be empty")
	errConnShutdown  = errors.New("live connection shut down")
	errOutboundQueue = errors.New("outbound queue full")
)

// ConnectionError 表示即時連線無法建立或異常關閉。
// Attempts 為失敗當下已用掉的重連次數。
type ConnectionError struct {
	BuildingID string
	Attempts   int
	Code       int
	Err        error
}

func (e *ConnectionError) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("chat connection to building %s closed (code %d, attempt %d): %v", e.BuildingID, e.Code, e.Attempts, e.Err)
	}
	return fmt.Sprintf("chat connection to building %s failed (attempt %d): %v", e.BuildingID, e.Attempts, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// BootstrapFailure 是 History Loader 某個子請求的失敗；只記錄、不回傳給呼叫者
type BootstrapFailure struct {
	Step string
	Err  error
}

func (e *BootstrapFailure) Error() string {
	return fmt.Sprintf("bootstrap %s: %v", e.Step, e.Err)
}

func (e *BootstrapFailure) Unwrap() error { return e.Err }

// SendFailure 表示即時與備援兩條路徑都傳送失敗
type SendFailure struct {
	Live     error
	Fallback error
}

func (e *SendFailure) Error() string {
	return fmt.Sprintf("send failed: live: %v; fallback: %v", e.Live, e.Fallback)
}

func (e *SendFailure) Unwrap() []error {
	return []error{e.Live, e.Fallback}
}
