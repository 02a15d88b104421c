package notify

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// TelegramAPI is the part of tgbotapi.BotAPI used for sending.
type TelegramAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// TelegramSender posts admin alerts to a chat.
type TelegramSender struct {
	api TelegramAPI
}

func NewTelegramSender(token string) (*TelegramSender, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}
	return &TelegramSender{api: api}, nil
}

// NewTelegramSenderWithAPI allows injecting a mocked Telegram client for tests.
func NewTelegramSenderWithAPI(api TelegramAPI) *TelegramSender {
	return &TelegramSender{api: api}
}

func (s *TelegramSender) Send(_ context.Context, msg Message) error {
	chatID, err := strconv.ParseInt(msg.To, 10, 64)
	if err != nil {
		return &SendError{Channel: ChannelTelegram, Code: 400, Err: fmt.Errorf("invalid chat id %q", msg.To)}
	}

	if _, err := s.api.Send(tgbotapi.NewMessage(chatID, msg.Body)); err != nil {
		var tgErr *tgbotapi.Error
		if errors.As(err, &tgErr) {
			return &SendError{
				Channel:    ChannelTelegram,
				Code:       tgErr.Code,
				RetryAfter: time.Duration(tgErr.RetryAfter) * time.Second,
				Err:        errors.New(tgErr.Message),
			}
		}
		return fmt.Errorf("send telegram message: %w", err)
	}
	return nil
}
