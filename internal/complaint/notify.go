package complaint

import (
	"civicdesk/backend/internal/localization"
	"civicdesk/backend/internal/models"
	"civicdesk/backend/internal/storage"
	"context"
)

// Mirror receives committed notifications, e.g. to forward admin alerts to Telegram.
type Mirror interface {
	Mirror(ctx context.Context, n *models.Notification)
}

// emitter appends notification rows inside the caller's transaction.
type emitter struct {
	tx    storage.Storage
	texts *localization.Localizer
	sent  []*models.Notification
}

func (s *Service) emitter(tx storage.Storage) *emitter {
	return &emitter{tx: tx, texts: s.texts}
}

func (e *emitter) emit(ctx context.Context, to models.Recipient, key string, args ...any) error {
	n := models.NewNotification(to, e.texts.Format(localization.DefaultLanguage, key, args...))
	if err := e.tx.CreateNotification(ctx, n); err != nil {
		return err
	}
	e.sent = append(e.sent, n)
	return nil
}
