package chathub

import (
	"context"
	"errors"
)

var errHubStopped = errors.New("chat hub stopped")

// StartPubSubListener запускає Goroutine, яка слухає Redis Pub/Sub і передає
// повідомлення з інших інстансів локальним підписникам.
func (m *ManagerService) StartPubSubListener(ctx context.Context) error {
	if m.broker == nil {
		return nil
	}
	ch, err := m.broker.SubscribeChat(ctx, m.log)
	if err != nil {
		return err
	}
	go func() {
		for msg := range ch {
			m.Broadcast(msg)
		}
		m.log.Info("chat pub/sub listener stopped")
	}()
	m.log.Info("chat pub/sub listener started")
	return nil
}
