package telegram

import (
	"context"
	"errors"
	"testing"
	"time"

	"civicdesk/backend/internal/apperr"
	"civicdesk/backend/internal/localization"
	"civicdesk/backend/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeAPI records everything sent through it.
type fakeAPI struct {
	sent    []tgbotapi.MessageConfig
	updates chan tgbotapi.Update
	sendErr error
	stopped bool
	notify  chan struct{}
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{updates: make(chan tgbotapi.Update, 4)}
}

func (f *fakeAPI) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	if msg, ok := c.(tgbotapi.MessageConfig); ok {
		f.sent = append(f.sent, msg)
	}
	if f.notify != nil {
		f.notify <- struct{}{}
	}
	return tgbotapi.Message{}, f.sendErr
}

func (f *fakeAPI) GetUpdatesChan(tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel {
	return f.updates
}

func (f *fakeAPI) StopReceivingUpdates() { f.stopped = true }

type MockComplaints struct {
	mock.Mock
}

func (m *MockComplaints) GetComplaint(ctx context.Context, id uint) (*models.Complaint, error) {
	args := m.Called(id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Complaint), args.Error(1)
}

type MockRooms struct {
	mock.Mock
}

func (m *MockRooms) ActiveRooms(ctx context.Context) ([]models.ActiveRoom, error) {
	args := m.Called()
	return args.Get(0).([]models.ActiveRoom), args.Error(1)
}

func command(chatID int64, text, cmd string) *tgbotapi.Message {
	return &tgbotapi.Message{
		Text: text,
		Entities: []tgbotapi.MessageEntity{
			{Type: "bot_command", Offset: 0, Length: len(cmd) + 1},
		},
		From: &tgbotapi.User{ID: 1, LanguageCode: "en"},
		Chat: tgbotapi.Chat{ID: chatID},
	}
}

func newBot(api *fakeAPI, c *MockComplaints, r *MockRooms) *BotService {
	return NewBotService(api, c, r, localization.Default(), 777, zap.NewNop())
}

func TestStatusCommand(t *testing.T) {
	api := newFakeAPI()
	complaints := new(MockComplaints)
	complaints.On("GetComplaint", uint(12)).Return(&models.Complaint{ID: 12, Title: "Pothole", Status: models.StatusAssigned}, nil)
	complaints.On("GetComplaint", uint(99)).Return(nil, apperr.NotFound("complaint_not_found", "complaint not found"))
	bot := newBot(api, complaints, new(MockRooms))

	bot.HandleMessage(context.Background(), command(777, "/status 12", "status"))
	bot.HandleMessage(context.Background(), command(777, "/status 99", "status"))
	bot.HandleMessage(context.Background(), command(777, "/status abc", "status"))

	require.Len(t, api.sent, 3)
	assert.Equal(t, `Complaint #12 "Pothole": Assigned`, api.sent[0].Text)
	assert.Equal(t, "Complaint #99 not found", api.sent[1].Text)
	assert.Equal(t, "Usage: /status <complaint id>", api.sent[2].Text)
	complaints.AssertExpectations(t)
}

func TestChatsCommand(t *testing.T) {
	api := newFakeAPI()
	rooms := new(MockRooms)
	at := time.Date(2024, 5, 1, 10, 30, 0, 0, time.UTC)
	rooms.On("ActiveRooms").Return([]models.ActiveRoom{
		{RoomName: "citizen_7", LastActivity: at},
		{RoomName: "citizen_3", LastActivity: at.Add(-time.Hour)},
	}, nil).Once()
	rooms.On("ActiveRooms").Return([]models.ActiveRoom{}, nil).Once()
	bot := newBot(api, new(MockComplaints), rooms)

	bot.HandleMessage(context.Background(), command(777, "/chats", "chats"))
	bot.HandleMessage(context.Background(), command(777, "/chats", "chats"))

	require.Len(t, api.sent, 2)
	assert.Equal(t, "Active chats:\ncitizen_7 (2024-05-01 10:30)\ncitizen_3 (2024-05-01 09:30)", api.sent[0].Text)
	assert.Equal(t, "No active chats", api.sent[1].Text)
}

func TestCommandsFromOtherChatsIgnored(t *testing.T) {
	api := newFakeAPI()
	bot := newBot(api, new(MockComplaints), new(MockRooms))

	bot.HandleMessage(context.Background(), command(5, "/chats", "chats"))
	bot.HandleMessage(context.Background(), &tgbotapi.Message{Text: "hello", Chat: tgbotapi.Chat{ID: 777}})

	assert.Empty(t, api.sent)
}

func TestRunStopsOnContextCancel(t *testing.T) {
	api := newFakeAPI()
	api.notify = make(chan struct{}, 1)
	rooms := new(MockRooms)
	rooms.On("ActiveRooms").Return([]models.ActiveRoom{}, nil)
	bot := newBot(api, new(MockComplaints), rooms)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		bot.Run(ctx)
		close(done)
	}()

	api.updates <- tgbotapi.Update{Message: command(777, "/chats", "chats")}
	select {
	case <-api.notify:
	case <-time.After(time.Second):
		t.Fatal("no reply to /chats")
	}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
	assert.True(t, api.stopped)
	rooms.AssertNumberOfCalls(t, "ActiveRooms", 1)
}

func TestNotifierMirrorsAdminNotificationsOnly(t *testing.T) {
	api := newFakeAPI()
	api.notify = make(chan struct{}, 4)
	n := NewNotifier(api, 777, zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	n.Mirror(ctx, models.NewNotification(models.ToUser(models.RoleCitizen, 3, "Asha"), "Your complaint (ID 4) has been resolved"))
	n.Mirror(ctx, nil)
	n.Mirror(ctx, models.NewNotification(models.ToRole(models.RoleAdmin), "Complaint 4 resolved by Raj"))
	require.Len(t, n.queue, 1)

	go n.Run(ctx)
	select {
	case <-api.notify:
	case <-time.After(time.Second):
		t.Fatal("notification not delivered")
	}
	cancel()

	require.Len(t, api.sent, 1)
	assert.Equal(t, "Complaint 4 resolved by Raj", api.sent[0].Text)
}

func TestNotifierDisabledWithoutChat(t *testing.T) {
	n := NewNotifier(newFakeAPI(), 0, zap.NewNop())
	n.Mirror(context.Background(), models.NewNotification(models.ToRole(models.RoleAdmin), "x"))
	assert.Empty(t, n.queue)
}

func TestNotifierDropsWhenQueueFull(t *testing.T) {
	n := NewNotifier(newFakeAPI(), 1, zap.NewNop())
	for i := 0; i < queueSize+5; i++ {
		n.Mirror(context.Background(), models.NewNotification(models.ToRole(models.RoleAdmin), "x"))
	}
	assert.Len(t, n.queue, queueSize)
}

func TestNotifierSendErrorIsLogged(t *testing.T) {
	api := newFakeAPI()
	api.notify = make(chan struct{}, 1)
	api.sendErr = errors.New("unreachable")
	n := NewNotifier(api, 1, zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	n.Mirror(ctx, models.NewNotification(models.ToRole(models.RoleAdmin), "x"))
	go n.Run(ctx)
	select {
	case <-api.notify:
	case <-time.After(time.Second):
		t.Fatal("send not attempted")
	}
}
