package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"building_chat/internal/models"
	"building_chat/internal/protocol"
	"building_chat/internal/repository"
	"building_chat/internal/storage"
	"building_chat/internal/utils"
	"building_chat/pkg/config"
)

func newTestServices(t *testing.T) *Services {
	t.Helper()
	db, err := storage.Open(config.DBConfig{Driver: "sqlite", Path: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, db.AutoMigrate(models.All()...))

	tokens := utils.NewTokenManager("secret", time.Hour)
	return NewServices(repository.NewRepositories(db), tokens, zaptest.NewLogger(t), nil)
}

func register(t *testing.T, s *Services, name string, role models.UserRole) *models.User {
	t.Helper()
	u, err := s.User.Register(name, "pw-"+name, "", role)
	require.NoError(t, err)
	return u
}

func TestUserService_RegisterAndLogin(t *testing.T) {
	s := newTestServices(t)

	u, err := s.User.Register("alice", "pw", "Alice Chen", "")
	require.NoError(t, err)
	assert.Equal(t, models.RoleResident, u.Role)
	assert.NotEqual(t, "pw", u.Password)

	_, err = s.User.Register("alice", "pw", "", models.RoleResident)
	assert.ErrorIs(t, err, ErrUserExists)

	_, err = s.User.Register("bob", "pw", "", "landlord")
	assert.Error(t, err)

	token, user, err := s.User.Login("alice", "pw")
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.Equal(t, u.ID, user.ID)

	_, _, err = s.User.Login("alice", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, _, err = s.User.Login("nobody", "pw")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestRoomService_GetOrCreateForBuilding(t *testing.T) {
	s := newTestServices(t)
	alice := register(t, s, "alice", models.RoleResident)
	bob := register(t, s, "bob", models.RoleManager)

	first, err := s.Room.GetOrCreateForBuilding("b-1", alice.ID)
	require.NoError(t, err)
	assert.True(t, first.Created)
	assert.Equal(t, "b-1", first.Room.BuildingID)
	assert.Equal(t, 1, first.Room.UnreadCount, "creation system message")

	second, err := s.Room.GetOrCreateForBuilding("b-1", bob.ID)
	require.NoError(t, err)
	assert.False(t, second.Created)
	assert.Equal(t, first.Room.ID, second.Room.ID)

	parts, err := s.Room.Participants(first.Room.ID)
	require.NoError(t, err)
	assert.Len(t, parts, 2)

	_, err = s.Room.GetOrCreateForBuilding("b-2", 999)
	assert.ErrorIs(t, err, ErrUserNotFound)
	_, err = s.Room.Participants(999)
	assert.ErrorIs(t, err, ErrRoomNotFound)
}

func TestRoomService_ListForUser(t *testing.T) {
	s := newTestServices(t)
	alice := register(t, s, "alice", models.RoleResident)
	bob := register(t, s, "bob", models.RoleResident)

	_, err := s.Room.GetOrCreateForBuilding("b-1", alice.ID)
	require.NoError(t, err)
	_, err = s.Room.GetOrCreateForBuilding("b-2", alice.ID)
	require.NoError(t, err)

	rooms, err := s.Room.ListForUser(alice.ID)
	require.NoError(t, err)
	assert.Len(t, rooms, 2)

	// bob 尚未加入任何聊天室，看到全部
	rooms, err = s.Room.ListForUser(bob.ID)
	require.NoError(t, err)
	assert.Len(t, rooms, 2)
}

func TestMessageService_CreateAndList(t *testing.T) {
	s := newTestServices(t)
	alice := register(t, s, "alice", models.RoleResident)
	bob := register(t, s, "bob", models.RoleResident)
	res, err := s.Room.GetOrCreateForBuilding("b-1", alice.ID)
	require.NoError(t, err)
	roomID := res.Room.ID

	msg, created, err := s.Message.Create(roomID, bob.ID, protocol.CreateMessageRequest{Content: "hi", ClientMsgID: "cm-1"})
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "bob", msg.SenderName)
	assert.Equal(t, protocol.MessageTypeText, msg.MessageType)

	again, created, err := s.Message.Create(roomID, bob.ID, protocol.CreateMessageRequest{Content: "hi", ClientMsgID: "cm-1"})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, msg.ID, again.ID)

	_, _, err = s.Message.Create(roomID, bob.ID, protocol.CreateMessageRequest{Content: "  "})
	assert.ErrorIs(t, err, ErrInvalidMessage)
	_, _, err = s.Message.Create(roomID, bob.ID, protocol.CreateMessageRequest{MessageType: protocol.MessageTypeFile})
	assert.ErrorIs(t, err, ErrInvalidMessage)
	_, _, err = s.Message.Create(roomID, bob.ID, protocol.CreateMessageRequest{Content: "x", MessageType: protocol.MessageTypeSystem})
	assert.ErrorIs(t, err, ErrInvalidMessage)
	_, _, err = s.Message.Create(999, bob.ID, protocol.CreateMessageRequest{Content: "x"})
	assert.ErrorIs(t, err, ErrRoomNotFound)

	page, err := s.Message.List(roomID, 1, 0)
	require.NoError(t, err)
	assert.Equal(t, DefaultPageSize, page.Limit)
	require.Len(t, page.Messages, 2)
	assert.Equal(t, msg.ID, page.Messages[0].ID, "newest first")
	assert.Equal(t, protocol.MessageTypeSystem, page.Messages[1].MessageType)

	page, err = s.Message.List(roomID, 2, 1)
	require.NoError(t, err)
	require.Len(t, page.Messages, 1)
	assert.Equal(t, protocol.MessageTypeSystem, page.Messages[0].MessageType)

	_, err = s.Message.List(999, 1, 10)
	assert.ErrorIs(t, err, ErrRoomNotFound)
}

func TestRoomService_UnreadAndMarkRead(t *testing.T) {
	s := newTestServices(t)
	alice := register(t, s, "alice", models.RoleResident)
	bob := register(t, s, "bob", models.RoleResident)
	res, err := s.Room.GetOrCreateForBuilding("b-1", alice.ID)
	require.NoError(t, err)
	roomID := res.Room.ID

	var last protocol.ChatMessage
	for _, text := range []string{"a", "b", "c"} {
		last, _, err = s.Message.Create(roomID, bob.ID, protocol.CreateMessageRequest{Content: text})
		require.NoError(t, err)
	}
	_, _, err = s.Message.Create(roomID, alice.ID, protocol.CreateMessageRequest{Content: "mine"})
	require.NoError(t, err)

	summary, err := s.Room.UnreadSummary(roomID, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, 4, summary.UnreadCount, "system message plus bob's three")

	watermark, err := s.Room.MarkRead(roomID, alice.ID, &last.ID)
	require.NoError(t, err)
	assert.Equal(t, last.ID, watermark)

	summary, err = s.Room.UnreadSummary(roomID, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, summary.UnreadCount)

	watermark, err = s.Room.MarkRead(roomID, bob.ID, nil)
	require.NoError(t, err)
	assert.Greater(t, watermark, last.ID)
}
