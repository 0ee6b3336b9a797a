package chatclient

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"building_chat/internal/protocol"
)

func TestHistoryLoader_Load(t *testing.T) {
	api := newFakeAPI()
	api.rooms = []protocol.ChatRoom{{ID: 4, BuildingID: "b-1", Name: "Tower"}}
	api.messages[4] = []protocol.ChatMessage{
		msgAt(3, 3*time.Minute),
		msgAt(1, time.Minute),
		msgAt(2, 2*time.Minute),
	}
	api.participants[4] = []protocol.ChatParticipant{{UserID: 2, RoomID: 4, DisplayName: "Alice"}}
	api.unread[4] = 2

	b := NewHistoryLoader(api, 0, nil, nil).Load(context.Background(), "b-1")

	require.NotNil(t, b.Room)
	assert.Equal(t, uint(4), b.Room.ID)
	assert.Equal(t, []uint{1, 2, 3}, ids(b.Messages))
	assert.Len(t, b.Participants, 1)
	assert.Equal(t, 2, b.Unread)
	assert.Empty(t, b.Failures)
}

func TestHistoryLoader_ChronologicalStore(t *testing.T) {
	// 傳輸層以 [t3, t1, t2] 回傳，store 內必須是 [t1, t2, t3]
	api := &orderedAPI{fakeAPI: newFakeAPI(), order: []protocol.ChatMessage{
		msgAt(3, 3*time.Minute),
		msgAt(1, time.Minute),
		msgAt(2, 2*time.Minute),
	}}
	api.rooms = []protocol.ChatRoom{{ID: 1, BuildingID: "b-1"}}

	b := NewHistoryLoader(api, 50, nil, nil).Load(context.Background(), "b-1")

	s := NewMessageStore()
	s.Reload(b.Messages)
	assert.Equal(t, []uint{1, 2, 3}, ids(s.Messages()))
}

func TestHistoryLoader_LimitPassedThrough(t *testing.T) {
	api := newFakeAPI()
	api.rooms = []protocol.ChatRoom{{ID: 1, BuildingID: "b-1"}}
	for i := uint(1); i <= 10; i++ {
		api.messages[1] = append(api.messages[1], msgAt(i, time.Duration(i)*time.Minute))
	}

	b := NewHistoryLoader(api, 3, nil, nil).Load(context.Background(), "b-1")
	assert.Equal(t, []uint{8, 9, 10}, ids(b.Messages))
}

func TestHistoryLoader_ResolveRoom(t *testing.T) {
	boom := errors.New("boom")

	t.Run("falls back to room list", func(t *testing.T) {
		api := newFakeAPI()
		api.rooms = []protocol.ChatRoom{{ID: 1, BuildingID: "a"}, {ID: 2, BuildingID: "b"}}
		api.getOrCreateErr = boom

		room, err := NewHistoryLoader(api, 0, nil, nil).ResolveRoom(context.Background(), "b")
		require.NoError(t, err)
		assert.Equal(t, uint(2), room.ID)
	})

	t.Run("no room for building", func(t *testing.T) {
		api := newFakeAPI()
		api.getOrCreateErr = boom

		_, err := NewHistoryLoader(api, 0, nil, nil).ResolveRoom(context.Background(), "b")
		assert.ErrorIs(t, err, ErrRoomNotFound)
	})

	t.Run("both calls fail", func(t *testing.T) {
		api := newFakeAPI()
		api.getOrCreateErr = boom
		api.listRoomsErr = errors.New("list down")

		_, err := NewHistoryLoader(api, 0, nil, nil).ResolveRoom(context.Background(), "b")
		assert.ErrorIs(t, err, boom)
		assert.NotErrorIs(t, err, ErrRoomNotFound)
	})
}

func TestHistoryLoader_PartialFailures(t *testing.T) {
	api := newFakeAPI()
	api.rooms = []protocol.ChatRoom{{ID: 1, BuildingID: "b-1"}}
	api.messages[1] = []protocol.ChatMessage{msgAt(1, time.Minute)}
	api.partsErr = errors.New("participants down")
	api.unreadErr = errors.New("unread down")

	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg)
	b := NewHistoryLoader(api, 0, nil, metrics).Load(context.Background(), "b-1")

	assert.Equal(t, []uint{1}, ids(b.Messages))
	assert.Equal(t, 0, b.Unread)

	steps := map[string]bool{}
	for _, f := range b.Failures {
		steps[f.Step] = true
	}
	assert.Equal(t, map[string]bool{"participants": true, "unread": true}, steps)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.bootstrapFailures.WithLabelValues("unread")))
}

func TestHistoryLoader_NoRoomIsNotAFailure(t *testing.T) {
	api := newFakeAPI()
	api.getOrCreateErr = errors.New("forbidden")

	b := NewHistoryLoader(api, 0, nil, nil).Load(context.Background(), "b-1")
	assert.Nil(t, b.Room)
	assert.Empty(t, b.Messages)
	assert.Empty(t, b.Failures)
}

func TestHistoryLoader_NegativeUnreadFloored(t *testing.T) {
	api := newFakeAPI()
	api.rooms = []protocol.ChatRoom{{ID: 1, BuildingID: "b-1"}}
	api.unread[1] = -3

	b := NewHistoryLoader(api, 0, nil, nil).Load(context.Background(), "b-1")
	assert.Equal(t, 0, b.Unread)
}

// orderedAPI 依指定順序回傳訊息，不重新排序
type orderedAPI struct {
	*fakeAPI
	order []protocol.ChatMessage
}

func (a *orderedAPI) ListMessages(context.Context, uint, int) ([]protocol.ChatMessage, error) {
	return append([]protocol.ChatMessage(nil), a.order...), nil
}
