package chatclient

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

// Conn 是即時連線；*websocket.Conn 即符合此介面
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	WriteControl(messageType int, data []byte, deadline time.Time) error
	SetReadLimit(limit int64)
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
	SetPongHandler(h func(appData string) error)
	Close() error
}

// Dialer 對指定大樓開啟即時連線
type Dialer interface {
	Dial(ctx context.Context, buildingID string) (Conn, error)
}

// WebSocketDialer 連線到 {BaseURL}/chat/{buildingID}
type WebSocketDialer struct {
	BaseURL string
	Token   string
	Dialer  *websocket.Dialer
}

func NewWebSocketDialer(baseURL, token string) *WebSocketDialer {
	return &WebSocketDialer{
		BaseURL: baseURL,
		Token:   token,
		Dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: 10 * time.Second,
			ReadBufferSize:   1024,
			WriteBufferSize:  1024,
		},
	}
}

// URL 回傳某棟大樓的連線位址
func (d *WebSocketDialer) URL(buildingID string) (string, error) {
	u, err := url.Parse(d.BaseURL)
	if err != nil {
		return "", fmt.Errorf("invalid websocket base url: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/chat/" + url.PathEscape(buildingID)
	return u.String(), nil
}

func (d *WebSocketDialer) Dial(ctx context.Context, buildingID string) (Conn, error) {
	target, err := d.URL(buildingID)
	if err != nil {
		return nil, err
	}

	header := http.Header{}
	if d.Token != "" {
		header.Set("Authorization", "Bearer "+d.Token)
	}

	dialer := d.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	conn, resp, err := dialer.DialContext(ctx, target, header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial %s: %w (status %d)", target, err, resp.StatusCode)
		}
		return nil, fmt.Errorf("dial %s: %w", target, err)
	}
	return conn, nil
}

// closeCode 從讀取錯誤中取出關閉碼；沒有關閉 frame 時視為 1006
func closeCode(err error) int {
	var ce *websocket.CloseError
	if errors.As(err, &ce) {
		return ce.Code
	}
	return websocket.CloseAbnormalClosure
}
