package notify

import (
	"context"
	"fmt"

	"gopkg.in/telebot.v3"
)

// TelegramSender is the subset of *telebot.Bot used by TelegramSink.
type TelegramSender interface {
	Send(to telebot.Recipient, what interface{}, opts ...interface{}) (*telebot.Message, error)
}

// TelegramSink posts messages to the operations chat.
type TelegramSink struct {
	sender TelegramSender
	chatID int64
}

// NewTelegramSink constructs a sink posting to chatID.
func NewTelegramSink(sender TelegramSender, chatID int64) *TelegramSink {
	return &TelegramSink{sender: sender, chatID: chatID}
}

// NewTelegramBot creates a send-only bot. Offline skips the getMe round trip at startup.
func NewTelegramBot(token string, offline bool) (*telebot.Bot, error) {
	bot, err := telebot.NewBot(telebot.Settings{Token: token, Offline: offline})
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}
	return bot, nil
}

// Name implements Sink.
func (s *TelegramSink) Name() string { return "telegram" }

// Send implements Sink.
func (s *TelegramSink) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	text := msg.Text
	if msg.Recipient != "" {
		text = fmt.Sprintf("[%s] %s", msg.Recipient, msg.Text)
	}
	_, err := s.sender.Send(&telebot.Chat{ID: s.chatID}, text, &telebot.SendOptions{DisableWebPagePreview: true})
	if err != nil {
		return fmt.Errorf("telegram send: %w", err)
	}
	return nil
}
