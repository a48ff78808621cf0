package telegram

import (
	"context"

	"civicdesk/backend/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

const queueSize = 64

// Sender is the part of *tgbotapi.BotAPI used to deliver messages.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// NewBotAPI authorizes the bot token against Telegram.
func NewBotAPI(token string, logger *zap.Logger) (*tgbotapi.BotAPI, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}
	bot.Debug = false
	logger.Info("telegram bot authorized", zap.String("account", bot.Self.UserName))
	return bot, nil
}

// Notifier пересилає адміністраторські сповіщення в чат адмінів.
// Mirror only queues; Run delivers, so Telegram latency never reaches a request.
type Notifier struct {
	api         Sender
	adminChatID int64
	queue       chan string
	logger      *zap.Logger
}

func NewNotifier(api Sender, adminChatID int64, logger *zap.Logger) *Notifier {
	return &Notifier{
		api:         api,
		adminChatID: adminChatID,
		queue:       make(chan string, queueSize),
		logger:      logger,
	}
}

// Mirror queues notifications addressed to admins. Other recipients are
// ignored; when the queue is full the message is dropped and logged.
func (n *Notifier) Mirror(_ context.Context, note *models.Notification) {
	if note == nil || note.UserRole != models.RoleAdmin || n.adminChatID == 0 {
		return
	}
	select {
	case n.queue <- note.Message:
	default:
		n.logger.Warn("telegram queue full, notification dropped", zap.Uint("notification_id", note.ID))
	}
}

// Run слухає чергу і надсилає повідомлення в Telegram, доки ctx не завершено.
func (n *Notifier) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case text := <-n.queue:
			if _, err := n.api.Send(tgbotapi.NewMessage(n.adminChatID, text)); err != nil {
				n.logger.Warn("telegram mirror failed", zap.Error(err))
			}
		}
	}
}
