package storage

import (
	"civicdesk/backend/internal/models"
	"context"
	"encoding/json"
	"errors"
	"strings"

	"go.uber.org/zap"
)

// ChatChannelPrefix namespaces chat rooms on Redis Pub/Sub: "chat:<room>".
const ChatChannelPrefix = "chat:"

// ErrNoRedis is returned by the Pub/Sub helpers when Redis is not configured.
var ErrNoRedis = errors.New("storage: redis is not configured")

// PublishChat публікує збережене повідомлення в канал кімнати.
func (s *Service) PublishChat(ctx context.Context, msg *models.ChatMessage) error {
	if s.Redis == nil {
		return ErrNoRedis
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return s.Redis.Publish(ctx, ChatChannelPrefix+msg.RoomName, payload).Err()
}

// SubscribeChat listens on every chat room channel and decodes the messages.
// The returned channel is closed when ctx is done.
func (s *Service) SubscribeChat(ctx context.Context, log *zap.Logger) (<-chan models.ChatMessage, error) {
	if s.Redis == nil {
		return nil, ErrNoRedis
	}
	pubsub := s.Redis.PSubscribe(ctx, ChatChannelPrefix+"*")
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, err
	}

	out := make(chan models.ChatMessage, 64)
	go func() {
		defer close(out)
		defer pubsub.Close()

		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case raw, ok := <-ch:
				if !ok {
					return
				}
				var msg models.ChatMessage
				if err := json.Unmarshal([]byte(raw.Payload), &msg); err != nil {
					log.Warn("dropping malformed chat payload", zap.String("channel", raw.Channel), zap.Error(err))
					continue
				}
				if msg.RoomName == "" {
					msg.RoomName = strings.TrimPrefix(raw.Channel, ChatChannelPrefix)
				}
				select {
				case out <- msg:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}
