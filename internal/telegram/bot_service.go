// Package telegram connects the service to a Telegram admin chat: committed
// admin notifications are mirrored there, and the bot answers a couple of
// read-only commands.
package telegram

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"civicdesk/backend/internal/apperr"
	"civicdesk/backend/internal/localization"
	"civicdesk/backend/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

// UpdateSource is the polling side of *tgbotapi.BotAPI.
type UpdateSource interface {
	Sender
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// ComplaintReader looks complaints up for /status.
type ComplaintReader interface {
	GetComplaint(ctx context.Context, id uint) (*models.Complaint, error)
}

// RoomLister lists chat rooms for /chats.
type RoomLister interface {
	ActiveRooms(ctx context.Context) ([]models.ActiveRoom, error)
}

// BotService receives Telegram updates and answers admin commands.
type BotService struct {
	api         UpdateSource
	complaints  ComplaintReader
	rooms       RoomLister
	localizer   *localization.Localizer
	adminChatID int64
	logger      *zap.Logger
}

// NewBotService creates a new BotService instance. adminChatID 0 accepts
// commands from any chat.
func NewBotService(api UpdateSource, complaints ComplaintReader, rooms RoomLister, loc *localization.Localizer, adminChatID int64, logger *zap.Logger) *BotService {
	return &BotService{
		api:         api,
		complaints:  complaints,
		rooms:       rooms,
		localizer:   loc,
		adminChatID: adminChatID,
		logger:      logger,
	}
}

// Run is the main loop for receiving Telegram updates. It returns when ctx is done.
func (s *BotService) Run(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := s.api.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			s.api.StopReceivingUpdates()
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			if update.Message != nil {
				s.HandleMessage(ctx, update.Message)
			}
		}
	}
}

// HandleMessage dispatches one incoming message.
func (s *BotService) HandleMessage(ctx context.Context, msg *tgbotapi.Message) {
	if !msg.IsCommand() {
		return
	}
	// Команди приймаємо лише з чату адміністраторів
	if s.adminChatID != 0 && msg.Chat.ID != s.adminChatID {
		return
	}

	lang := ""
	if msg.From != nil {
		lang = msg.From.LanguageCode
	}

	var reply string
	switch msg.Command() {
	case "status":
		reply = s.statusReply(ctx, lang, msg.CommandArguments())
	case "chats":
		reply = s.chatsReply(ctx, lang)
	default:
		return
	}
	s.reply(msg.Chat.ID, reply)
}

func (s *BotService) statusReply(ctx context.Context, lang, args string) string {
	id, err := strconv.ParseUint(strings.TrimSpace(args), 10, 64)
	if err != nil || id == 0 {
		return s.localizer.GetString(lang, "bot_status_usage")
	}

	c, err := s.complaints.GetComplaint(ctx, uint(id))
	if errors.Is(err, apperr.ErrNotFound) {
		return s.localizer.Format(lang, "bot_status_not_found", id)
	}
	if err != nil {
		s.logger.Error("bot status lookup failed", zap.Uint64("complaint_id", id), zap.Error(err))
		return s.localizer.Format(lang, "bot_status_not_found", id)
	}
	return s.localizer.Format(lang, "bot_status", c.ID, c.Title, c.Status)
}

func (s *BotService) chatsReply(ctx context.Context, lang string) string {
	rooms, err := s.rooms.ActiveRooms(ctx)
	if err != nil {
		s.logger.Error("bot active rooms failed", zap.Error(err))
		return s.localizer.GetString(lang, "bot_no_chats")
	}
	if len(rooms) == 0 {
		return s.localizer.GetString(lang, "bot_no_chats")
	}

	lines := make([]string, 0, len(rooms))
	for _, r := range rooms {
		lines = append(lines, r.RoomName+" ("+r.LastActivity.Format("2006-01-02 15:04")+")")
	}
	return s.localizer.Format(lang, "bot_chats", strings.Join(lines, "\n"))
}

func (s *BotService) reply(chatID int64, text string) {
	if _, err := s.api.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		s.logger.Warn("telegram reply failed", zap.Int64("chat_id", chatID), zap.Error(err))
	}
}
