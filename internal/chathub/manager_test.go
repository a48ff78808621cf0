package chathub_test

import (
	"civicdesk/backend/internal/apperr"
	"civicdesk/backend/internal/chathub"
	"civicdesk/backend/internal/models"
	"civicdesk/backend/internal/ratelimit"
	"civicdesk/backend/internal/storage/storagetest"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var (
	asha  = chathub.Identity{UserID: 7, Name: "Asha", Role: models.RoleCitizen}
	admin = chathub.Identity{UserID: 1, Name: "Admin", Role: models.RoleAdmin}
	raj   = chathub.Identity{UserID: 3, Name: "Raj", Role: models.RoleWorker}
)

func startHub(t *testing.T, store chathub.ChatStore, broker chathub.Broker, limiter ratelimit.Limiter) *chathub.ManagerService {
	t.Helper()
	hub := chathub.NewManagerService(store, broker, limiter, nil)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go hub.Run(ctx)
	return hub
}

func receive(t *testing.T, c *MockClient) chathub.Frame {
	t.Helper()
	select {
	case f := <-c.RecvChannel:
		return f
	case <-time.After(time.Second):
		t.Fatalf("client %s did not receive a frame", c.id.Name)
		return chathub.Frame{}
	}
}

func assertNothing(t *testing.T, c *MockClient) {
	t.Helper()
	select {
	case f := <-c.RecvChannel:
		t.Fatalf("client %s received unexpected frame %+v", c.id.Name, f)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestCanJoin(t *testing.T) {
	assert.True(t, chathub.CanJoin(asha, "citizen_7"))
	assert.False(t, chathub.CanJoin(asha, "citizen_8"))
	assert.True(t, chathub.CanJoin(admin, "citizen_8"))
	assert.False(t, chathub.CanJoin(admin, "general"))
	assert.False(t, chathub.CanJoin(raj, "citizen_7"))
	assert.Equal(t, "citizen_7", chathub.RoomFor(7))
}

func TestManager_JoinRoomAuthorization(t *testing.T) {
	hub := startHub(t, new(MockStorage), nil, nil)

	assert.ErrorIs(t, hub.JoinRoom(newMockClient(asha), "lobby"), apperr.ErrValidation)
	assert.ErrorIs(t, hub.JoinRoom(newMockClient(asha), "citizen_8"), apperr.ErrForbidden)
	assert.ErrorIs(t, hub.JoinRoom(newMockClient(raj), "citizen_7"), apperr.ErrForbidden)
	assert.NoError(t, hub.JoinRoom(newMockClient(asha), "citizen_7"))
	assert.NoError(t, hub.JoinRoom(newMockClient(admin), "citizen_7"))
}

func TestManager_SendMessageBroadcastsAfterPersist(t *testing.T) {
	store := new(MockStorage)
	store.On("SaveChatMessage", mock.Anything, mock.AnythingOfType("*models.ChatMessage")).
		Run(func(args mock.Arguments) { args.Get(1).(*models.ChatMessage).ID = 42 }).
		Return(nil)
	hub := startHub(t, store, nil, nil)

	phone := newMockClient(asha)
	laptop := newMockClient(asha)
	desk := newMockClient(admin)
	other := newMockClient(chathub.Identity{UserID: 8, Name: "Vik", Role: models.RoleCitizen})
	require.NoError(t, hub.JoinRoom(phone, "citizen_7"))
	require.NoError(t, hub.JoinRoom(laptop, "citizen_7"))
	require.NoError(t, hub.JoinRoom(desk, "citizen_7"))
	require.NoError(t, hub.JoinRoom(other, "citizen_8"))

	require.NoError(t, hub.SendMessage(context.Background(), "citizen_7", asha, "  street light is out "))

	for _, c := range []*MockClient{phone, laptop, desk} {
		f := receive(t, c)
		assert.Equal(t, chathub.FrameReceiveMessage, f.Type)
		require.NotNil(t, f.Payload)
		assert.Equal(t, uint(42), f.Payload.ID)
		assert.Equal(t, "  street light is out ", f.Payload.Message, "relayed verbatim")
		assert.Equal(t, "Asha", f.Payload.SenderName)
		assert.Equal(t, models.RoleCitizen, f.Payload.SenderRole)
	}
	assertNothing(t, other)
	store.AssertNumberOfCalls(t, "SaveChatMessage", 1)
}

// sequentialIDs makes SaveChatMessage assign increasing IDs starting at first.
func sequentialIDs(store *MockStorage, first uint) {
	next := first
	store.On("SaveChatMessage", mock.Anything, mock.AnythingOfType("*models.ChatMessage")).
		Run(func(args mock.Arguments) {
			args.Get(1).(*models.ChatMessage).ID = next
			next++
		}).
		Return(nil)
}

func TestManager_JoinWithHistorySendsHistoryFirst(t *testing.T) {
	store := new(MockStorage)
	sequentialIDs(store, 9)
	var hub *chathub.ManagerService
	// Повідомлення 9 зберігається під час приєднання і вже є в історії.
	store.On("ChatHistory", mock.Anything, "citizen_7").
		Run(func(mock.Arguments) {
			require.NoError(t, hub.SendMessage(context.Background(), "citizen_7", asha, "during join"))
		}).
		Return([]models.ChatMessage{{ID: 8, Message: "earlier"}, {ID: 9, Message: "during join"}}, nil)
	hub = startHub(t, store, nil, nil)

	viewer := newMockClient(admin)
	require.NoError(t, hub.JoinWithHistory(context.Background(), viewer, "citizen_7"))

	f := receive(t, viewer)
	assert.Equal(t, chathub.FrameChatHistory, f.Type)
	require.Len(t, f.Messages, 2)
	assert.Equal(t, uint(9), f.Messages[1].ID)
	assertNothing(t, viewer)

	require.NoError(t, hub.SendMessage(context.Background(), "citizen_7", asha, "after join"))
	f = receive(t, viewer)
	assert.Equal(t, chathub.FrameReceiveMessage, f.Type)
	assert.Equal(t, uint(10), f.Payload.ID)
}

func TestManager_JoinWithHistoryHoldsLiveMessages(t *testing.T) {
	store := new(MockStorage)
	sequentialIDs(store, 10)
	var hub *chathub.ManagerService
	// Повідомлення 10 зберігається вже після завантаження історії.
	store.On("ChatHistory", mock.Anything, "citizen_7").
		Run(func(mock.Arguments) {
			require.NoError(t, hub.SendMessage(context.Background(), "citizen_7", asha, "live"))
		}).
		Return([]models.ChatMessage{{ID: 8, Message: "earlier"}}, nil)
	hub = startHub(t, store, nil, nil)

	viewer := newMockClient(admin)
	require.NoError(t, hub.JoinWithHistory(context.Background(), viewer, "citizen_7"))

	first := receive(t, viewer)
	assert.Equal(t, chathub.FrameChatHistory, first.Type)
	assert.Len(t, first.Messages, 1)

	second := receive(t, viewer)
	assert.Equal(t, chathub.FrameReceiveMessage, second.Type)
	assert.Equal(t, uint(10), second.Payload.ID)
	assertNothing(t, viewer)
}

func TestManager_JoinWithHistoryLoadFailureStillSubscribes(t *testing.T) {
	store := new(MockStorage)
	sequentialIDs(store, 1)
	store.On("ChatHistory", mock.Anything, "citizen_7").Return(nil, errors.New("db down"))
	hub := startHub(t, store, nil, nil)

	viewer := newMockClient(admin)
	require.NoError(t, hub.JoinWithHistory(context.Background(), viewer, "citizen_7"))
	assert.ErrorIs(t, hub.JoinWithHistory(context.Background(), viewer, "lobby"), apperr.ErrValidation)

	require.NoError(t, hub.SendMessage(context.Background(), "citizen_7", asha, "hi"))
	f := receive(t, viewer)
	assert.Equal(t, chathub.FrameReceiveMessage, f.Type)
}

func TestManager_SendMessagePersistFailureIsSilent(t *testing.T) {
	store := new(MockStorage)
	store.On("SaveChatMessage", mock.Anything, mock.Anything).Return(errors.New("db down"))
	hub := startHub(t, store, nil, nil)

	viewer := newMockClient(admin)
	require.NoError(t, hub.JoinRoom(viewer, "citizen_7"))

	assert.NoError(t, hub.SendMessage(context.Background(), "citizen_7", asha, "hello"))
	assertNothing(t, viewer)
}

func TestManager_SendMessageValidation(t *testing.T) {
	store := new(MockStorage)
	hub := startHub(t, store, nil, nil)
	ctx := context.Background()

	assert.ErrorIs(t, hub.SendMessage(ctx, "room1", admin, "hi"), apperr.ErrValidation)
	assert.ErrorIs(t, hub.SendMessage(ctx, "citizen_7", asha, "   "), apperr.ErrValidation)
	long := make([]byte, 2001)
	for i := range long {
		long[i] = 'a'
	}
	assert.ErrorIs(t, hub.SendMessage(ctx, "citizen_7", asha, string(long)), apperr.ErrValidation)
	assert.ErrorIs(t, hub.SendMessage(ctx, "citizen_8", asha, "hi"), apperr.ErrForbidden)

	store.AssertNotCalled(t, "SaveChatMessage", mock.Anything, mock.Anything)
}

func TestManager_QuotaDropsSilently(t *testing.T) {
	store := storagetest.New(t)
	limiter := ratelimit.NewSlidingWindow(3, time.Minute, nil)
	hub := startHub(t, store, nil, limiter)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		assert.NoError(t, hub.SendMessage(ctx, "citizen_7", asha, "msg"))
	}
	require.NoError(t, hub.SendMessage(ctx, "citizen_7", admin, "reply"), "admin has a separate quota")

	history, err := hub.History(ctx, "citizen_7")
	require.NoError(t, err)
	assert.Len(t, history, 4)
	assert.Equal(t, "reply", history[3].Message)
}

func TestManager_UnregisterRemovesFromRooms(t *testing.T) {
	store := new(MockStorage)
	store.On("SaveChatMessage", mock.Anything, mock.Anything).Return(nil)
	hub := startHub(t, store, nil, nil)

	gone := newMockClient(admin)
	stays := newMockClient(asha)
	require.NoError(t, hub.JoinRoom(gone, "citizen_7"))
	require.NoError(t, hub.JoinRoom(stays, "citizen_7"))

	hub.Unregister(gone)
	hub.Unregister(gone)

	require.NoError(t, hub.SendMessage(context.Background(), "citizen_7", asha, "still here?"))
	receive(t, stays)
	assertNothing(t, gone)
	assert.Equal(t, 1, gone.closeCount(), "closed exactly once")
}

func TestManager_SlowClientIsDropped(t *testing.T) {
	store := new(MockStorage)
	store.On("SaveChatMessage", mock.Anything, mock.Anything).Return(nil)
	hub := startHub(t, store, nil, nil)

	slow := newMockClient(admin)
	require.NoError(t, hub.JoinRoom(slow, "citizen_7"))

	for i := 0; i < cap(slow.RecvChannel)+1; i++ {
		require.NoError(t, hub.SendMessage(context.Background(), "citizen_7", asha, "flood"))
	}

	assert.Eventually(t, func() bool { return slow.closeCount() == 1 }, time.Second, 10*time.Millisecond)
}

func TestManager_RedisFanOut(t *testing.T) {
	store := new(MockStorage)
	store.On("SaveChatMessage", mock.Anything, mock.Anything).Return(nil)
	broker := &MockBroker{feed: make(chan models.ChatMessage, 1)}
	broker.On("PublishChat", mock.Anything, mock.AnythingOfType("*models.ChatMessage")).Return(nil).Once()
	broker.On("SubscribeChat", mock.Anything).Return(nil)

	hub := startHub(t, store, broker, nil)
	require.NoError(t, hub.StartPubSubListener(context.Background()))

	viewer := newMockClient(admin)
	require.NoError(t, hub.JoinRoom(viewer, "citizen_7"))

	require.NoError(t, hub.SendMessage(context.Background(), "citizen_7", asha, "via redis"))
	assertNothing(t, viewer)
	broker.AssertExpectations(t)

	broker.feed <- models.ChatMessage{ID: 5, RoomName: "citizen_7", SenderName: "Asha", Message: "via redis"}
	f := receive(t, viewer)
	assert.Equal(t, "via redis", f.Payload.Message)
}

func TestManager_RedisPublishFailureFallsBackToLocal(t *testing.T) {
	store := new(MockStorage)
	store.On("SaveChatMessage", mock.Anything, mock.Anything).Return(nil)
	broker := &MockBroker{}
	broker.On("PublishChat", mock.Anything, mock.Anything).Return(errors.New("redis down"))
	hub := startHub(t, store, broker, nil)

	viewer := newMockClient(admin)
	require.NoError(t, hub.JoinRoom(viewer, "citizen_7"))
	require.NoError(t, hub.SendMessage(context.Background(), "citizen_7", asha, "local"))

	assert.Equal(t, "local", receive(t, viewer).Payload.Message)
}

func TestManager_ActiveRoomsAndHistory(t *testing.T) {
	store := new(MockStorage)
	rooms := []models.ActiveRoom{{RoomName: "citizen_2"}, {RoomName: "citizen_1"}}
	store.On("ActiveRooms", mock.Anything).Return(rooms, nil)
	store.On("ChatHistory", mock.Anything, "citizen_1").Return([]models.ChatMessage{{ID: 1}, {ID: 2}}, nil)
	hub := startHub(t, store, nil, nil)

	got, err := hub.ActiveRooms(context.Background())
	require.NoError(t, err)
	assert.Equal(t, rooms, got)

	history, err := hub.History(context.Background(), "citizen_1")
	require.NoError(t, err)
	assert.Len(t, history, 2)
}

func TestManager_ValidateFrame(t *testing.T) {
	hub := chathub.NewManagerService(new(MockStorage), nil, nil, nil)

	assert.NoError(t, hub.ValidateFrame(&chathub.InboundFrame{Type: "join_chat", Room: "citizen_1"}))
	assert.NoError(t, hub.ValidateFrame(&chathub.InboundFrame{Type: "send_message", Room: "citizen_1", Message: "hi"}))
	assert.Error(t, hub.ValidateFrame(&chathub.InboundFrame{Type: "send_message", Room: "citizen_1"}))
	assert.Error(t, hub.ValidateFrame(&chathub.InboundFrame{Type: "leave", Room: "citizen_1"}))
	assert.Error(t, hub.ValidateFrame(&chathub.InboundFrame{Type: "join_chat", Room: "lobby"}))
}
