package messaging

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// telegramAPI is the slice of the bot API the service needs; *tgbotapi.BotAPI
// satisfies it.
type telegramAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// TelegramService implements Service by sending codes to a Telegram chat.
type TelegramService struct {
	bot    telegramAPI
	chatID int64
}

// NewTelegramService creates a TelegramService for the given bot token and
// partner chat ID.
func NewTelegramService(token string, chatID int64) (*TelegramService, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}
	slog.Info("TelegramService authorized", "account", bot.Self.UserName, "chat_id", chatID)
	return &TelegramService{bot: bot, chatID: chatID}, nil
}

// SendCode sends the override code to the partner chat.
func (s *TelegramService) SendCode(ctx context.Context, code string, expiresAt time.Time) error {
	slog.Debug("TelegramService SendCode invoked", "chat_id", s.chatID)
	msg := tgbotapi.NewMessage(s.chatID, formatCodeMessage(code, expiresAt))
	if _, err := s.bot.Send(msg); err != nil {
		slog.Error("TelegramService SendCode error", "error", err, "chat_id", s.chatID)
		return fmt.Errorf("failed to send telegram message: %w", err)
	}
	slog.Info("TelegramService code sent", "chat_id", s.chatID)
	return nil
}

// Stop is a no-op; the bot holds no long-lived connection for plain sends.
func (s *TelegramService) Stop() error {
	return nil
}
