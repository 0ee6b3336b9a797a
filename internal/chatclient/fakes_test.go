package chatclient

import (
	"context"
	"errors"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"building_chat/internal/protocol"
)

// manualClock 只在 Advance 時觸發計時器
type manualClock struct {
	mu        sync.Mutex
	now       time.Duration
	timers    []*manualTimer
	scheduled []time.Duration
}

type manualTimer struct {
	clock   *manualClock
	at      time.Duration
	f       func()
	stopped bool
	fired   bool
}

func (c *manualClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &manualTimer{clock: c, at: c.now + d, f: f}
	c.timers = append(c.timers, t)
	c.scheduled = append(c.scheduled, d)
	return t
}

func (t *manualTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	if t.stopped || t.fired {
		return false
	}
	t.stopped = true
	return true
}

// Advance 推進時間並依序執行到期的計時器
func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now += d
	var due []*manualTimer
	for _, t := range c.timers {
		if !t.stopped && !t.fired && t.at <= c.now {
			t.fired = true
			due = append(due, t)
		}
	}
	c.mu.Unlock()

	sort.SliceStable(due, func(i, j int) bool { return due[i].at < due[j].at })
	for _, t := range due {
		t.f()
	}
}

// Active 回傳尚未觸發也未取消的計時器數量
func (c *manualClock) Active() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, t := range c.timers {
		if !t.stopped && !t.fired {
			n++
		}
	}
	return n
}

func (c *manualClock) Scheduled() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.scheduled)
}

var errConnClosed = errors.New("use of closed network connection")

// fakeConn 是記憶體中的即時連線
type fakeConn struct {
	building string
	in       chan []byte
	closed   chan struct{}

	mu        sync.Mutex
	writes    [][]byte
	closeCode int
	readErr   error
	writeErr  error
	closeOnce sync.Once
	onClose   func()
}

func newFakeConn(building string) *fakeConn {
	return &fakeConn{
		building: building,
		in:       make(chan []byte, 16),
		closed:   make(chan struct{}),
	}
}

func (c *fakeConn) ReadMessage() (int, []byte, error) {
	select {
	case data := <-c.in:
		return websocket.TextMessage, data, nil
	case <-c.closed:
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.readErr != nil {
			return 0, nil, c.readErr
		}
		return 0, nil, errConnClosed
	}
}

func (c *fakeConn) WriteMessage(messageType int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.isClosed() {
		return errConnClosed
	}
	if c.writeErr != nil {
		return c.writeErr
	}
	if messageType == websocket.TextMessage {
		c.writes = append(c.writes, slices.Clone(data))
	}
	return nil
}

func (c *fakeConn) WriteControl(messageType int, data []byte, _ time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if messageType == websocket.CloseMessage && len(data) >= 2 {
		c.closeCode = int(data[0])<<8 | int(data[1])
	}
	return nil
}

func (c *fakeConn) SetReadLimit(int64)                {}
func (c *fakeConn) SetReadDeadline(time.Time) error   { return nil }
func (c *fakeConn) SetWriteDeadline(time.Time) error  { return nil }
func (c *fakeConn) SetPongHandler(func(string) error) {}

func (c *fakeConn) Close() error {
	c.closeOnce.Do(func() {
		close(c.closed)
		if c.onClose != nil {
			c.onClose()
		}
	})
	return nil
}

func (c *fakeConn) isClosed() bool {
	select {
	case <-c.closed:
		return true
	default:
		return false
	}
}

// push 模擬伺服器送來一個 frame
func (c *fakeConn) push(f protocol.Inbound) {
	data, err := protocol.EncodeInbound(f)
	if err != nil {
		panic(err)
	}
	c.in <- data
}

func (c *fakeConn) pushRaw(data string) {
	c.in <- []byte(data)
}

// drop 模擬伺服器以指定關閉碼結束連線
func (c *fakeConn) drop(code int) {
	c.mu.Lock()
	c.readErr = &websocket.CloseError{Code: code}
	c.mu.Unlock()
	_ = c.Close()
}

func (c *fakeConn) failWrites(err error) {
	c.mu.Lock()
	c.writeErr = err
	c.mu.Unlock()
}

func (c *fakeConn) Writes() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.writes)
}

func (c *fakeConn) CloseCode() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closeCode
}

// fakeDialer 記錄每次撥號，並追蹤同時開啟的連線數
type fakeDialer struct {
	mu      sync.Mutex
	err     error
	dials   []string
	conns   []*fakeConn
	open    int
	maxOpen int
}

func (d *fakeDialer) Dial(_ context.Context, building string) (Conn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.dials = append(d.dials, building)
	if d.err != nil {
		return nil, d.err
	}
	c := newFakeConn(building)
	c.onClose = func() {
		d.mu.Lock()
		d.open--
		d.mu.Unlock()
	}
	d.conns = append(d.conns, c)
	d.open++
	d.maxOpen = max(d.maxOpen, d.open)
	return c, nil
}

func (d *fakeDialer) setErr(err error) {
	d.mu.Lock()
	d.err = err
	d.mu.Unlock()
}

func (d *fakeDialer) Dials() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return slices.Clone(d.dials)
}

func (d *fakeDialer) Conn(i int) *fakeConn {
	d.mu.Lock()
	defer d.mu.Unlock()
	if i < 0 || i >= len(d.conns) {
		return nil
	}
	return d.conns[i]
}

func (d *fakeDialer) Last() *fakeConn {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.conns) == 0 {
		return nil
	}
	return d.conns[len(d.conns)-1]
}

func (d *fakeDialer) Open() (open, maxOpen int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.open, d.maxOpen
}

// fakeAPI 是記憶體中的 RoomAPI
type fakeAPI struct {
	mu sync.Mutex

	rooms        []protocol.ChatRoom
	messages     map[uint][]protocol.ChatMessage
	participants map[uint][]protocol.ChatParticipant
	unread       map[uint]int
	nextID       uint

	getOrCreateErr error
	listRoomsErr   error
	messagesErr    error
	partsErr       error
	unreadErr      error
	createErr      error

	created []protocol.CreateMessageRequest
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{
		messages:     make(map[uint][]protocol.ChatMessage),
		participants: make(map[uint][]protocol.ChatParticipant),
		unread:       make(map[uint]int),
		nextID:       1000,
	}
}

func (a *fakeAPI) GetOrCreateRoom(_ context.Context, building string) (protocol.RoomResult, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.getOrCreateErr != nil {
		return protocol.RoomResult{}, a.getOrCreateErr
	}
	for _, r := range a.rooms {
		if r.BuildingID == building {
			return protocol.RoomResult{Room: r}, nil
		}
	}
	r := protocol.ChatRoom{ID: uint(len(a.rooms) + 1), BuildingID: building, Name: building}
	a.rooms = append(a.rooms, r)
	return protocol.RoomResult{Room: r, Created: true}, nil
}

func (a *fakeAPI) ListRooms(context.Context) ([]protocol.ChatRoom, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.listRoomsErr != nil {
		return nil, a.listRoomsErr
	}
	return slices.Clone(a.rooms), nil
}

func (a *fakeAPI) ListMessages(_ context.Context, roomID uint, limit int) ([]protocol.ChatMessage, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.messagesErr != nil {
		return nil, a.messagesErr
	}
	msgs := slices.Clone(a.messages[roomID])
	sort.SliceStable(msgs, func(i, j int) bool { return msgs[i].CreatedAt.After(msgs[j].CreatedAt) })
	if len(msgs) > limit {
		msgs = msgs[:limit]
	}
	return msgs, nil
}

func (a *fakeAPI) Participants(_ context.Context, roomID uint) ([]protocol.ChatParticipant, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.partsErr != nil {
		return nil, a.partsErr
	}
	return slices.Clone(a.participants[roomID]), nil
}

func (a *fakeAPI) UnreadSummary(_ context.Context, roomID uint) (protocol.UnreadSummary, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.unreadErr != nil {
		return protocol.UnreadSummary{}, a.unreadErr
	}
	return protocol.UnreadSummary{RoomID: roomID, UnreadCount: a.unread[roomID]}, nil
}

func (a *fakeAPI) CreateMessage(_ context.Context, roomID uint, req protocol.CreateMessageRequest) (protocol.ChatMessage, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.createErr != nil {
		return protocol.ChatMessage{}, a.createErr
	}
	a.created = append(a.created, req)
	a.nextID++
	m := protocol.ChatMessage{
		ID:          a.nextID,
		RoomID:      roomID,
		SenderID:    1,
		SenderName:  "me",
		MessageType: req.MessageType,
		Content:     req.Content,
		FileURL:     req.FileURL,
		ClientMsgID: req.ClientMsgID,
		CreatedAt:   time.Now(),
	}
	a.messages[roomID] = append(a.messages[roomID], m)
	return m, nil
}

func (a *fakeAPI) Created() []protocol.CreateMessageRequest {
	a.mu.Lock()
	defer a.mu.Unlock()
	return slices.Clone(a.created)
}

func (a *fakeAPI) set(fn func(a *fakeAPI)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	fn(a)
}

// eventLog 收集 session 發出的事件
type eventLog struct {
	mu     sync.Mutex
	events []Event
}

func (l *eventLog) record(ev Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, ev)
}

func (l *eventLog) count(kind EventKind) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, ev := range l.events {
		if ev.Kind == kind {
			n++
		}
	}
	return n
}

func (l *eventLog) states() []State {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []State
	for _, ev := range l.events {
		if ev.Kind == EventStateChanged {
			out = append(out, ev.State)
		}
	}
	return out
}
