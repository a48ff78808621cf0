package chathub_test

import (
	"civicdesk/backend/internal/models"
	"context"

	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"
)

// MockStorage implements chathub.ChatStore with testify/mock.
type MockStorage struct {
	mock.Mock
}

func (m *MockStorage) SaveChatMessage(ctx context.Context, msg *models.ChatMessage) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}

func (m *MockStorage) ChatHistory(ctx context.Context, room string) ([]models.ChatMessage, error) {
	args := m.Called(ctx, room)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.ChatMessage), args.Error(1)
}

func (m *MockStorage) ActiveRooms(ctx context.Context) ([]models.ActiveRoom, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.ActiveRoom), args.Error(1)
}

// MockBroker implements chathub.Broker.
type MockBroker struct {
	mock.Mock
	feed chan models.ChatMessage
}

func (m *MockBroker) PublishChat(ctx context.Context, msg *models.ChatMessage) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}

func (m *MockBroker) SubscribeChat(ctx context.Context, _ *zap.Logger) (<-chan models.ChatMessage, error) {
	args := m.Called(ctx)
	return m.feed, args.Error(0)
}
