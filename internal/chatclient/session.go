package chatclient

import (
	"context"
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"building_chat/internal/protocol"
)

const inboxSize = 256

// Options 設定一個聊天 session
type Options struct {
	Dialer       Dialer
	API          RoomAPI
	Policy       ReconnectPolicy
	TypingTTL    time.Duration
	HistoryLimit int

	PingInterval time.Duration
	PongWait     time.Duration
	WriteWait    time.Duration
	MaxFrameSize int64

	Clock   Clock
	Logger  *zap.Logger
	Metrics *Metrics
	OnEvent func(Event)

	// NewClientMsgID 產生訊息的冪等鍵，預設為 UUID
	NewClientMsgID func() string
}

// Session 是某棟大樓的即時聊天 session。
//
// 所有狀態都由單一事件迴圈 goroutine 擁有；撥號、讀寫、計時器與 bootstrap
// 在各自的 goroutine 執行，完成後把處理函式排回事件迴圈。每次連線都有遞增的
// generation，過期 generation 的事件一律丟棄。
type Session struct {
	dialer  Dialer
	api     RoomAPI
	loader  *HistoryLoader
	policy  ReconnectPolicy
	tuning  connTuning
	clock   Clock
	log     *zap.Logger
	metrics *Metrics
	onEvent func(Event)
	newID   func() string

	inbox     chan func()
	done      chan struct{}
	loopDone  chan struct{}
	closeOnce sync.Once

	// 以下欄位只在事件迴圈中存取
	building       string
	activation     uint64
	state          State
	attempt        int
	nextRetry      time.Duration
	gen            uint64
	conn           *liveConn
	dialing        chan struct{}
	prevDead       <-chan struct{}
	ioCtx          context.Context
	cancelIO       context.CancelFunc
	reconnectTimer Timer
	room           *protocol.ChatRoom
	store          *MessageStore
	participants   []protocol.ChatParticipant
	typing         *TypingTracker
	unread         UnreadTracker
	pendingRead    *protocol.ReadFrame
	lastErr        error
}

// New 建立 session 並啟動事件迴圈；使用完畢必須呼叫 Close
func New(opts Options) (*Session, error) {
	if opts.Dialer == nil {
		return nil, errors.New("chatclient: dialer is required")
	}
	if opts.API == nil {
		return nil, errors.New("chatclient: room api is required")
	}
	if opts.Policy == (ReconnectPolicy{}) {
		opts.Policy = DefaultReconnectPolicy
	}
	if opts.Clock == nil {
		opts.Clock = realClock{}
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.NewClientMsgID == nil {
		opts.NewClientMsgID = uuid.NewString
	}

	tuning := defaultConnTuning
	if opts.PingInterval > 0 {
		tuning.pingInterval = opts.PingInterval
	}
	if opts.PongWait > 0 {
		tuning.pongWait = opts.PongWait
	}
	if opts.WriteWait > 0 {
		tuning.writeWait = opts.WriteWait
	}
	if opts.MaxFrameSize > 0 {
		tuning.maxFrameSize = opts.MaxFrameSize
	}

	log := opts.Logger.Named("chat")
	s := &Session{
		dialer:   opts.Dialer,
		api:      opts.API,
		loader:   NewHistoryLoader(opts.API, opts.HistoryLimit, log.Named("history"), opts.Metrics),
		policy:   opts.Policy,
		tuning:   tuning,
		clock:    opts.Clock,
		log:      log,
		metrics:  opts.Metrics,
		onEvent:  opts.OnEvent,
		newID:    opts.NewClientMsgID,
		inbox:    make(chan func(), inboxSize),
		done:     make(chan struct{}),
		loopDone: make(chan struct{}),
		store:    NewMessageStore(),
	}
	s.typing = NewTypingTracker(opts.TypingTTL, opts.Clock, func(userID uint, seq uint64) {
		s.post(func() {
			if s.typing.Expire(userID, seq) {
				s.emitTyping()
			}
		})
	})

	go s.run()
	return s, nil
}

func (s *Session) run() {
	defer close(s.loopDone)
	for {
		select {
		case fn := <-s.inbox:
			fn()
		case <-s.done:
			s.teardown()
			return
		}
	}
}

// post 把 fn 排入事件迴圈；session 已關閉時回傳 false
func (s *Session) post(fn func()) bool {
	select {
	case s.inbox <- fn:
		return true
	case <-s.done:
		return false
	}
}

// call 在事件迴圈中執行 fn 並等待結果
func (s *Session) call(fn func() error) error {
	errc := make(chan error, 1)
	if !s.post(func() { errc <- fn() }) {
		return ErrClosed
	}
	select {
	case err := <-errc:
		return err
	case <-s.loopDone:
		select {
		case err := <-errc:
			return err
		default:
			return ErrClosed
		}
	}
}

// Close 關閉連線、取消所有計時器並停止事件迴圈
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		close(s.done)
	})
	<-s.loopDone
	return nil
}

// Activate 切換到指定大樓。既有連線以正常關閉碼中斷，不會觸發重連。
func (s *Session) Activate(buildingID string) error {
	if buildingID == "" {
		return ErrNoBuilding
	}
	return s.call(func() error {
		if s.building == buildingID {
			if s.state == StateIdle || s.state == StateFailed {
				s.attempt = 0
				s.lastErr = nil
				s.connect()
			}
			return nil
		}

		if s.building != "" {
			s.teardown()
			s.setState(StateIdle)
		}
		s.building = buildingID
		s.activation++
		s.room = nil
		s.store.Reset()
		s.participants = nil
		s.unread.Reset()
		s.pendingRead = nil
		s.attempt = 0
		s.lastErr = nil
		s.connect()
		return nil
	})
}

// Connect 對目前的大樓建立連線；也用於 Failed 之後手動重試
func (s *Session) Connect() error {
	return s.call(func() error {
		if s.building == "" {
			return ErrNoBuilding
		}
		switch s.state {
		case StateConnected, StateConnecting:
			return nil
		case StateReconnecting:
			s.stopReconnectTimer()
		}
		s.attempt = 0
		s.lastErr = nil
		s.connect()
		return nil
	})
}

// Disconnect 以正常關閉碼中斷連線，取消重連與所有輸入中計時器
func (s *Session) Disconnect() error {
	return s.call(func() error {
		s.teardown()
		s.lastErr = nil
		s.setState(StateIdle)
		return nil
	})
}

// Snapshot 回傳目前狀態的複本
func (s *Session) Snapshot() (Snapshot, error) {
	var snap Snapshot
	err := s.call(func() error {
		snap = Snapshot{
			BuildingID:   s.building,
			State:        s.state,
			Attempt:      s.attempt,
			Messages:     s.store.Messages(),
			Participants: slices.Clone(s.participants),
			Typing:       s.typing.Users(),
			Unread:       s.unread.Count(),
			Err:          s.lastErr,
		}
		if s.state == StateReconnecting {
			snap.NextRetry = s.nextRetry
		}
		if s.room != nil {
			room := *s.room
			snap.Room = &room
		}
		return nil
	})
	return snap, err
}

// teardown 停止目前 generation 的所有工作。只在事件迴圈中呼叫。
func (s *Session) teardown() {
	s.gen++
	s.stopReconnectTimer()
	if s.cancelIO != nil {
		s.cancelIO()
		s.cancelIO = nil
	}
	s.typing.Reset()
	switch {
	case s.conn != nil:
		s.conn.close(true)
		s.prevDead = s.conn.dead
		s.conn = nil
	case s.dialing != nil:
		// 撥號仍在進行：下一次撥號要等這條連線被關閉
		s.prevDead = s.dialing
	}
	s.dialing = nil
}

func (s *Session) stopReconnectTimer() {
	if s.reconnectTimer != nil {
		s.reconnectTimer.Stop()
		s.reconnectTimer = nil
	}
}

func (s *Session) connect() {
	s.gen++
	gen := s.gen
	building := s.building
	prev := s.prevDead
	s.prevDead = nil

	if s.cancelIO != nil {
		s.cancelIO()
	}
	ctx, cancel := context.WithCancel(context.Background())
	s.ioCtx, s.cancelIO = ctx, cancel

	// dialDone 在這次撥號得到的連線被關閉或交給 liveConn 之後才關閉
	dialDone := make(chan struct{})
	s.dialing = dialDone

	s.setState(StateConnecting)

	go func() {
		// 舊連線完全關閉後才撥號，同一時間最多一條連線
		if prev != nil {
			select {
			case <-prev:
			case <-ctx.Done():
				close(dialDone)
				s.post(func() { s.handleDialed(gen, nil, ctx.Err(), nil) })
				return
			}
		}
		conn, err := s.dialer.Dial(ctx, building)
		if err != nil && conn != nil {
			closeNormally(conn, s.tuning.writeWait)
			conn = nil
		}
		if conn == nil {
			close(dialDone)
			s.post(func() { s.handleDialed(gen, nil, err, nil) })
			return
		}
		if !s.post(func() { s.handleDialed(gen, conn, nil, dialDone) }) {
			closeNormally(conn, s.tuning.writeWait)
			close(dialDone)
		}
	}()
}

// handleDialed 處理撥號結果。conn 不為 nil 時由此處關閉 dialDone。
func (s *Session) handleDialed(gen uint64, conn Conn, err error, dialDone chan struct{}) {
	if conn != nil {
		defer close(dialDone)
	}
	if gen != s.gen {
		if conn != nil {
			closeNormally(conn, s.tuning.writeWait)
		}
		return
	}
	s.dialing = nil
	if err != nil {
		s.handleFailure(&ConnectionError{BuildingID: s.building, Attempts: s.attempt, Err: err})
		return
	}

	lc := newLiveConn(conn, gen, s.tuning)
	s.conn = lc
	s.attempt = 0
	s.lastErr = nil

	go lc.writePump()
	go lc.readPump(
		func(data []byte) {
			s.post(func() { s.handleFrame(gen, data) })
		},
		func(code int, err error) {
			s.post(func() { s.handleClosed(gen, code, err) })
		},
	)

	s.setState(StateConnected)
	s.startBootstrap(gen)
	s.flushPendingRead()
}

func (s *Session) handleClosed(gen uint64, code int, err error) {
	if gen != s.gen || s.conn == nil || s.conn.gen != gen {
		return
	}
	s.conn.close(false)
	s.prevDead = s.conn.dead
	s.conn = nil
	s.typing.Reset()
	if s.cancelIO != nil {
		s.cancelIO()
		s.cancelIO = nil
	}

	if code == websocket.CloseNormalClosure {
		s.log.Info("chat connection closed by server", zap.String("building_id", s.building))
		s.setState(StateIdle)
		return
	}
	s.handleFailure(&ConnectionError{BuildingID: s.building, Attempts: s.attempt, Code: code, Err: err})
}

// handleFailure 依重連策略排程下一次連線，或在額度用完時進入 Failed
func (s *Session) handleFailure(cerr *ConnectionError) {
	s.typing.Reset()
	s.lastErr = cerr

	if s.policy.Exhausted(s.attempt) {
		s.log.Error("chat connection failed, giving up",
			zap.String("building_id", s.building),
			zap.Int("attempt", s.attempt),
			zap.Error(cerr))
		s.setState(StateFailed)
		return
	}

	delay := s.policy.Delay(s.attempt)
	gen := s.gen
	s.nextRetry = delay
	s.reconnectTimer = s.clock.AfterFunc(delay, func() {
		s.post(func() { s.handleReconnect(gen) })
	})
	s.metrics.reconnect()
	s.log.Warn("chat connection lost, scheduling reconnect",
		zap.String("building_id", s.building),
		zap.Int("attempt", s.attempt),
		zap.Duration("delay", delay),
		zap.Error(cerr))
	s.setState(StateReconnecting)
}

func (s *Session) handleReconnect(gen uint64) {
	if gen != s.gen || s.state != StateReconnecting {
		return
	}
	s.reconnectTimer = nil
	s.attempt++
	s.connect()
}

func (s *Session) handleFrame(gen uint64, data []byte) {
	if gen != s.gen || s.conn == nil {
		return
	}
	frame, err := protocol.DecodeInbound(data)
	if err != nil {
		s.metrics.protocolError()
		s.log.Warn("dropping malformed frame", zap.String("building_id", s.building), zap.Error(err))
		s.emit(Event{Kind: EventProtocolError, Err: err})
		return
	}
	s.metrics.frame(string(frame.Kind()))
	s.dispatch(frame)
}

func (s *Session) dispatch(frame protocol.Inbound) {
	switch f := frame.(type) {
	case protocol.ChatMessageFrame:
		s.onChatMessage(f)
	case protocol.UserJoinFrame:
		s.onUserJoin(f.UserID, f.UserName)
	case protocol.UserLeaveFrame:
		s.onUserLeave(f.UserID, f.UserName)
	case protocol.TypingIndicatorFrame:
		if f.IsTyping {
			s.typing.Start(f.UserID, f.UserName)
		} else if !s.typing.Stop(f.UserID) {
			return
		}
		s.emitTyping()
	case protocol.ReadReceiptFrame:
		s.emit(Event{Kind: EventReadReceipt, UserID: f.UserID, UserName: f.UserName})
	case protocol.Unknown:
		s.log.Debug("ignoring unknown frame", zap.String("type", string(f.Type)))
	}
}

func (s *Session) onChatMessage(f protocol.ChatMessageFrame) {
	msg := f.Message()
	if msg.RoomID == 0 && s.room != nil {
		msg.RoomID = s.room.ID
	}

	if s.typing.Stop(msg.SenderID) {
		s.emitTyping()
	}
	// 同一則訊息（相同 ID）重送時只計一次未讀，與 client_msg_id 去重一致
	if !s.store.Add(msg) {
		return
	}
	s.unread.Increment()
	s.emit(Event{Kind: EventMessage, Message: &msg, Unread: s.unread.Count()})
}

func (s *Session) onUserJoin(userID uint, name string) {
	if userID != 0 && !slices.ContainsFunc(s.participants, func(p protocol.ChatParticipant) bool {
		return p.UserID == userID
	}) {
		p := protocol.ChatParticipant{UserID: userID, DisplayName: name, JoinedAt: time.Now()}
		if s.room != nil {
			p.RoomID = s.room.ID
		}
		s.participants = append(s.participants, p)
	}
	s.emit(Event{Kind: EventUserJoined, UserID: userID, UserName: name})
}

func (s *Session) onUserLeave(userID uint, name string) {
	s.participants = slices.DeleteFunc(s.participants, func(p protocol.ChatParticipant) bool {
		if userID != 0 {
			return p.UserID == userID
		}
		return p.DisplayName == name
	})
	s.emit(Event{Kind: EventUserLeft, UserID: userID, UserName: name})
}

func (s *Session) startBootstrap(gen uint64) {
	ctx := s.ioCtx
	building := s.building
	go func() {
		b := s.loader.Load(ctx, building)
		s.post(func() {
			if gen != s.gen || s.state != StateConnected {
				return
			}
			s.applyHistory(b)
		})
	}()
}

// applyHistory 套用 bootstrap 結果；失敗的步驟保留原本的資料
func (s *Session) applyHistory(b Bootstrap) {
	failed := func(step string) bool {
		return slices.ContainsFunc(b.Failures, func(f *BootstrapFailure) bool { return f.Step == step })
	}

	if b.Room != nil {
		s.room = b.Room
	}
	if !failed("messages") {
		s.store.Reload(b.Messages)
	}
	if !failed("participants") {
		s.participants = b.Participants
	}
	if !failed("unread") {
		s.unread.Set(b.Unread)
	}
	s.emit(Event{Kind: EventHistoryLoaded, Unread: s.unread.Count()})
}

func (s *Session) setState(st State) {
	if s.state == st {
		return
	}
	s.state = st
	s.metrics.transition(st)
	s.log.Info("chat state changed",
		zap.String("building_id", s.building),
		zap.Stringer("state", st),
		zap.Int("attempt", s.attempt))
	s.emit(Event{Kind: EventStateChanged, State: st, Attempt: s.attempt, Err: s.lastErr})
}

func (s *Session) emitTyping() {
	s.emit(Event{Kind: EventTyping, Typing: s.typing.Users()})
}

func (s *Session) emit(ev Event) {
	if s.onEvent != nil {
		s.onEvent(ev)
	}
}

// closeNormally 以 1000 關閉碼關閉一條不再需要的連線
func closeNormally(conn Conn, wait time.Duration) {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(wait))
	_ = conn.Close()
}
