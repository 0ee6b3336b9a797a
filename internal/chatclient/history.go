package chatclient

import (
	"context"
	"errors"
	"slices"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"building_chat/internal/protocol"
)

// DefaultHistoryLimit 是 bootstrap 時載入的最新訊息數
const DefaultHistoryLimit = 50

// RoomAPI 是 request/response 傳輸層，用於 bootstrap 與備援傳送
type RoomAPI interface {
	GetOrCreateRoom(ctx context.Context, buildingID string) (protocol.RoomResult, error)
	ListRooms(ctx context.Context) ([]protocol.ChatRoom, error)
	// ListMessages 回傳最新的 limit 則訊息，由新到舊排序
	ListMessages(ctx context.Context, roomID uint, limit int) ([]protocol.ChatMessage, error)
	Participants(ctx context.Context, roomID uint) ([]protocol.ChatParticipant, error)
	UnreadSummary(ctx context.Context, roomID uint) (protocol.UnreadSummary, error)
	CreateMessage(ctx context.Context, roomID uint, req protocol.CreateMessageRequest) (protocol.ChatMessage, error)
}

// Bootstrap 是一次 bootstrap 的結果；Room 為 nil 表示大樓尚無聊天室
type Bootstrap struct {
	Room         *protocol.ChatRoom
	Messages     []protocol.ChatMessage
	Participants []protocol.ChatParticipant
	Unread       int
	Failures     []*BootstrapFailure
}

// HistoryLoader 在連線成功後載入聊天室、訊息、成員與未讀數
type HistoryLoader struct {
	api     RoomAPI
	limit   int
	log     *zap.Logger
	metrics *Metrics
}

func NewHistoryLoader(api RoomAPI, limit int, log *zap.Logger, metrics *Metrics) *HistoryLoader {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &HistoryLoader{api: api, limit: limit, log: log, metrics: metrics}
}

// ResolveRoom 先呼叫 get-or-create，失敗時改從聊天室列表中找同一棟大樓的聊天室
func (l *HistoryLoader) ResolveRoom(ctx context.Context, buildingID string) (*protocol.ChatRoom, error) {
	res, err := l.api.GetOrCreateRoom(ctx, buildingID)
	if err == nil {
		room := res.Room
		return &room, nil
	}
	l.log.Warn("get-or-create room failed, scanning room list",
		zap.String("building_id", buildingID), zap.Error(err))

	rooms, listErr := l.api.ListRooms(ctx)
	if listErr != nil {
		return nil, errors.Join(err, listErr)
	}
	for _, r := range rooms {
		if r.BuildingID == buildingID {
			room := r
			return &room, nil
		}
	}
	return nil, ErrRoomNotFound
}

// Load 執行 bootstrap。子請求彼此獨立，任何失敗都只記錄在 Failures 中。
func (l *HistoryLoader) Load(ctx context.Context, buildingID string) Bootstrap {
	var b Bootstrap

	room, err := l.ResolveRoom(ctx, buildingID)
	if err != nil {
		if !errors.Is(err, ErrRoomNotFound) {
			b.Failures = append(b.Failures, l.fail(buildingID, "room", err))
		}
		return b
	}
	b.Room = room

	var (
		g  errgroup.Group
		mu sync.Mutex
	)
	record := func(step string, err error) {
		f := l.fail(buildingID, step, err)
		mu.Lock()
		b.Failures = append(b.Failures, f)
		mu.Unlock()
	}

	g.Go(func() error {
		msgs, err := l.api.ListMessages(ctx, room.ID, l.limit)
		if err != nil {
			record("messages", err)
			return nil
		}
		slices.Reverse(msgs)
		b.Messages = msgs
		return nil
	})
	g.Go(func() error {
		participants, err := l.api.Participants(ctx, room.ID)
		if err != nil {
			record("participants", err)
			return nil
		}
		b.Participants = participants
		return nil
	})
	g.Go(func() error {
		summary, err := l.api.UnreadSummary(ctx, room.ID)
		if err != nil {
			record("unread", err)
			return nil
		}
		b.Unread = max(summary.UnreadCount, 0)
		return nil
	})
	_ = g.Wait()

	return b
}

func (l *HistoryLoader) fail(buildingID, step string, err error) *BootstrapFailure {
	l.metrics.bootstrapFailure(step)
	l.log.Warn("bootstrap step failed",
		zap.String("building_id", buildingID), zap.String("step", step), zap.Error(err))
	return &BootstrapFailure{Step: step, Err: err}
}
