// Package restclient 是聊天 gateway 的 request/response 客戶端，實作 chatclient.RoomAPI。
package restclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"building_chat/internal/protocol"
)

// DefaultTimeout 是單一請求的預設逾時
const DefaultTimeout = 10 * time.Second

// APIError 是 gateway 回傳的非 2xx 回應
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("chat api: %d %s", e.Status, http.StatusText(e.Status))
	}
	return fmt.Sprintf("chat api: %d %s", e.Status, e.Message)
}

type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// New 建立客戶端；timeout <= 0 時使用 DefaultTimeout
func New(baseURL, token string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    &http.Client{Timeout: timeout},
	}
}

// WithHTTPClient 替換底層的 http.Client
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	c.http = hc
	return c
}

// Login 以帳號密碼換取 token，並讓之後的請求帶上它
func (c *Client) Login(ctx context.Context, username, password string) (string, error) {
	var res struct {
		Token string `json:"token"`
	}
	body := map[string]string{"username": username, "password": password}
	if err := c.do(ctx, http.MethodPost, "/api/login", nil, body, &res); err != nil {
		return "", err
	}
	c.token = res.Token
	return res.Token, nil
}

// Register 建立帳號；role 為空時由 gateway 決定預設角色
func (c *Client) Register(ctx context.Context, username, password, displayName, role string) error {
	body := map[string]string{
		"username":     username,
		"password":     password,
		"display_name": displayName,
		"role":         role,
	}
	return c.do(ctx, http.MethodPost, "/api/register", nil, body, nil)
}

func (c *Client) GetOrCreateRoom(ctx context.Context, buildingID string) (protocol.RoomResult, error) {
	var res protocol.RoomResult
	err := c.do(ctx, http.MethodPost, "/api/buildings/"+url.PathEscape(buildingID)+"/chat-room", nil, nil, &res)
	return res, err
}

func (c *Client) ListRooms(ctx context.Context) ([]protocol.ChatRoom, error) {
	var rooms []protocol.ChatRoom
	err := c.do(ctx, http.MethodGet, "/api/chat-rooms", nil, nil, &rooms)
	return rooms, err
}

// ListMessages 回傳第一頁、最新的 limit 則訊息（由新到舊）
func (c *Client) ListMessages(ctx context.Context, roomID uint, limit int) ([]protocol.ChatMessage, error) {
	page, err := c.MessagePage(ctx, roomID, 1, limit)
	if err != nil {
		return nil, err
	}
	return page.Messages, nil
}

// MessagePage 取得指定頁的訊息；page 從 1 開始
func (c *Client) MessagePage(ctx context.Context, roomID uint, page, limit int) (protocol.MessagePage, error) {
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	q.Set("limit", strconv.Itoa(limit))

	var res protocol.MessagePage
	err := c.do(ctx, http.MethodGet, roomPath(roomID, "messages"), q, nil, &res)
	return res, err
}

func (c *Client) Participants(ctx context.Context, roomID uint) ([]protocol.ChatParticipant, error) {
	var out []protocol.ChatParticipant
	err := c.do(ctx, http.MethodGet, roomPath(roomID, "participants"), nil, nil, &out)
	return out, err
}

func (c *Client) UnreadSummary(ctx context.Context, roomID uint) (protocol.UnreadSummary, error) {
	var out protocol.UnreadSummary
	err := c.do(ctx, http.MethodGet, roomPath(roomID, "unread"), nil, nil, &out)
	return out, err
}

func (c *Client) CreateMessage(ctx context.Context, roomID uint, req protocol.CreateMessageRequest) (protocol.ChatMessage, error) {
	var out protocol.ChatMessage
	err := c.do(ctx, http.MethodPost, roomPath(roomID, "messages"), nil, req, &out)
	return out, err
}

func roomPath(roomID uint, sub string) string {
	return fmt.Sprintf("/api/chat-rooms/%d/%s", roomID, sub)
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}

// decodeError 讀取 gateway 的 {"error": "..."} 錯誤內容
func decodeError(resp *http.Response) error {
	var body struct {
		Error string `json:"error"`
	}
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err := json.Unmarshal(data, &body); err != nil || body.Error == "" {
		body.Error = strings.TrimSpace(string(data))
	}
	return &APIError{Status: resp.StatusCode, Message: body.Error}
}
