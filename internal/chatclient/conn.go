package chatclient

import (
	"context"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const outboundBuffer = 64

// connTuning 是即時連線的讀寫參數
type connTuning struct {
	pingInterval time.Duration
	pongWait     time.Duration
	writeWait    time.Duration
	maxFrameSize int64
}

var defaultConnTuning = connTuning{
	pingInterval: 54 * time.Second,
	pongWait:     60 * time.Second,
	writeWait:    10 * time.Second,
	maxFrameSize: 64 * 1024,
}

type outboundFrame struct {
	data   []byte
	result chan error
}

// liveConn 包裝一條即時連線：一個讀取 goroutine、一個寫入 goroutine。
// 所有寫入都經過 out channel，確保同時只有一個 writer。
type liveConn struct {
	conn   Conn
	gen    uint64
	tuning connTuning

	out     chan outboundFrame
	closing chan struct{}
	dead    chan struct{}

	closeOnce sync.Once
	normal    bool
}

func newLiveConn(conn Conn, gen uint64, tuning connTuning) *liveConn {
	return &liveConn{
		conn:    conn,
		gen:     gen,
		tuning:  tuning,
		out:     make(chan outboundFrame, outboundBuffer),
		closing: make(chan struct{}),
		dead:    make(chan struct{}),
	}
}

// readPump 持續讀取 frame 直到連線結束
func (c *liveConn) readPump(onFrame func(data []byte), onClose func(code int, err error)) {
	if c.tuning.maxFrameSize > 0 {
		c.conn.SetReadLimit(c.tuning.maxFrameSize)
	}
	if wait := c.tuning.pongWait; wait > 0 {
		_ = c.conn.SetReadDeadline(time.Now().Add(wait))
		c.conn.SetPongHandler(func(string) error {
			return c.conn.SetReadDeadline(time.Now().Add(wait))
		})
	}

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			onClose(closeCode(err), err)
			return
		}
		onFrame(data)
	}
}

// writePump 送出排隊中的 frame 與心跳
func (c *liveConn) writePump() {
	defer close(c.dead)

	var tick <-chan time.Time
	if c.tuning.pingInterval > 0 {
		ticker := time.NewTicker(c.tuning.pingInterval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case f := <-c.out:
			c.setWriteDeadline()
			err := c.conn.WriteMessage(websocket.TextMessage, f.data)
			if f.result != nil {
				f.result <- err
			}
			if err != nil {
				_ = c.conn.Close()
				return
			}

		case <-tick:
			c.setWriteDeadline()
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				_ = c.conn.Close()
				return
			}

		case <-c.closing:
			if c.normal {
				msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
				_ = c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(c.writeWait()))
			}
			_ = c.conn.Close()
			return
		}
	}
}

func (c *liveConn) writeWait() time.Duration {
	if c.tuning.writeWait > 0 {
		return c.tuning.writeWait
	}
	return defaultConnTuning.writeWait
}

func (c *liveConn) setWriteDeadline() {
	if c.tuning.writeWait > 0 {
		_ = c.conn.SetWriteDeadline(time.Now().Add(c.tuning.writeWait))
	}
}

// close 要求寫入 goroutine 關閉連線；normal 為 true 時先送出 1000 關閉碼
func (c *liveConn) close(normal bool) {
	c.closeOnce.Do(func() {
		c.normal = normal
		close(c.closing)
	})
}

// send 排入 frame 並等待寫入結果
func (c *liveConn) send(ctx context.Context, data []byte) error {
	f := outboundFrame{data: data, result: make(chan error, 1)}
	select {
	case c.out <- f:
	case <-c.dead:
		return errConnShutdown
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-f.result:
		return err
	case <-c.dead:
		select {
		case err := <-f.result:
			return err
		default:
			return errConnShutdown
		}
	case <-ctx.Done():
		return ctx.Err()
	}
}

// trySend 不等待結果；在事件迴圈中使用，不可阻塞
func (c *liveConn) trySend(data []byte) error {
	select {
	case <-c.dead:
		return errConnShutdown
	default:
	}
	select {
	case c.out <- outboundFrame{data: data}:
		return nil
	default:
		return errOutboundQueue
	}
}
