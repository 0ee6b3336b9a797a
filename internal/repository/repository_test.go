package repository

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"building_chat/internal/models"
	"building_chat/internal/protocol"
	"building_chat/internal/storage"
	"building_chat/pkg/config"
)

func newTestRepos(t *testing.T) *Repositories {
	t.Helper()
	db, err := storage.Open(config.DBConfig{Driver: "sqlite", Path: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, db.AutoMigrate(models.All()...))
	return NewRepositories(db)
}

func createUser(t *testing.T, repos *Repositories, name string) *models.User {
	t.Helper()
	u := &models.User{Username: name, Password: "x", Role: models.RoleResident}
	require.NoError(t, repos.User.Create(u))
	return u
}

func TestUserRepository(t *testing.T) {
	repos := newTestRepos(t)
	u := createUser(t, repos, "alice")

	found, err := repos.User.FindByUsername("alice")
	require.NoError(t, err)
	assert.Equal(t, u.ID, found.ID)

	byID, err := repos.User.FindByID(u.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", byID.Username)

	assert.Error(t, repos.User.Create(&models.User{Username: "alice", Password: "y", Role: models.RoleResident}))
}

func TestRoomRepository_FirstOrCreateByBuilding(t *testing.T) {
	repos := newTestRepos(t)

	room, created, err := repos.Room.FirstOrCreateByBuilding("b-1", "Tower")
	require.NoError(t, err)
	assert.True(t, created)

	again, created, err := repos.Room.FirstOrCreateByBuilding("b-1", "Other")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, room.ID, again.ID)
	assert.Equal(t, "Tower", again.Name)

	all, err := repos.Room.FindAll()
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestRoomRepository_Participants(t *testing.T) {
	repos := newTestRepos(t)
	alice := createUser(t, repos, "alice")
	bob := createUser(t, repos, "bob")
	room, _, err := repos.Room.FirstOrCreateByBuilding("b-1", "Tower")
	require.NoError(t, err)
	other, _, err := repos.Room.FirstOrCreateByBuilding("b-2", "Annex")
	require.NoError(t, err)

	require.NoError(t, repos.Room.AddParticipant(room.ID, alice.ID, models.RoleResident))
	require.NoError(t, repos.Room.AddParticipant(room.ID, alice.ID, models.RoleResident))
	require.NoError(t, repos.Room.AddParticipant(room.ID, bob.ID, models.RoleManager))
	require.NoError(t, repos.Room.AddParticipant(other.ID, bob.ID, models.RoleManager))

	parts, err := repos.Room.Participants(room.ID)
	require.NoError(t, err)
	require.Len(t, parts, 2)
	assert.Equal(t, "alice", parts[0].ToProtocol().DisplayName)

	ok, err := repos.Room.IsParticipant(other.ID, alice.ID)
	require.NoError(t, err)
	assert.False(t, ok)

	rooms, err := repos.Room.FindByParticipant(bob.ID)
	require.NoError(t, err)
	assert.Len(t, rooms, 2)
}

func TestMessageRepository_CreateOnce(t *testing.T) {
	repos := newTestRepos(t)
	alice := createUser(t, repos, "alice")
	room, _, err := repos.Room.FirstOrCreateByBuilding("b-1", "Tower")
	require.NoError(t, err)

	req := protocol.CreateMessageRequest{Content: "hello", ClientMsgID: "cm-1"}
	first, created, err := repos.Message.CreateOnce(models.NewChatMessage(room.ID, alice, req))
	require.NoError(t, err)
	assert.True(t, created)

	dup, created, err := repos.Message.CreateOnce(models.NewChatMessage(room.ID, alice, req))
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, dup.ID)

	// 沒有 client_msg_id 的訊息不去重
	_, created, err = repos.Message.CreateOnce(models.NewSystemMessage(room.ID, "a"))
	require.NoError(t, err)
	assert.True(t, created)
	_, created, err = repos.Message.CreateOnce(models.NewSystemMessage(room.ID, "a"))
	require.NoError(t, err)
	assert.True(t, created)
}

func TestMessageRepository_FindByRoomIDNewestFirst(t *testing.T) {
	repos := newTestRepos(t)
	alice := createUser(t, repos, "alice")
	room, _, err := repos.Room.FirstOrCreateByBuilding("b-1", "Tower")
	require.NoError(t, err)

	base := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		m := models.NewChatMessage(room.ID, alice, protocol.CreateMessageRequest{Content: string(rune('a' + i))})
		m.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		require.NoError(t, repos.Message.Create(m))
	}

	page1, err := repos.Message.FindByRoomID(room.ID, 2, 0)
	require.NoError(t, err)
	page2, err := repos.Message.FindByRoomID(room.ID, 2, 2)
	require.NoError(t, err)

	contents := func(ms []models.Message) []string {
		var out []string
		for _, m := range ms {
			out = append(out, m.Content)
		}
		return out
	}
	assert.Equal(t, []string{"e", "d"}, contents(page1))
	assert.Equal(t, []string{"c", "b"}, contents(page2))
}

func TestReadStateAndUnread(t *testing.T) {
	repos := newTestRepos(t)
	alice := createUser(t, repos, "alice")
	bob := createUser(t, repos, "bob")
	room, _, err := repos.Room.FirstOrCreateByBuilding("b-1", "Tower")
	require.NoError(t, err)

	var ids []uint
	for _, sender := range []*models.User{bob, bob, alice, bob} {
		m, _, err := repos.Message.CreateOnce(models.NewChatMessage(room.ID, sender, protocol.CreateMessageRequest{Content: "x"}))
		require.NoError(t, err)
		ids = append(ids, m.ID)
	}

	count, err := repos.Message.CountAfter(room.ID, 0, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)

	require.NoError(t, repos.ReadState.Advance(room.ID, alice.ID, ids[1]))
	require.NoError(t, repos.ReadState.Advance(room.ID, alice.ID, ids[0]))
	last, err := repos.ReadState.LastRead(room.ID, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, ids[1], last, "watermark never moves backwards")

	count, err = repos.Message.CountAfter(room.ID, last, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	last, err = repos.ReadState.LastRead(room.ID, bob.ID)
	require.NoError(t, err)
	assert.Zero(t, last)
}
