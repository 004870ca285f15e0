// Package notify delivers operational messages (paid orders, fulfillment
// failures, credit purchases) to the team.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Notifier never returns delivery errors to callers; failures are logged.
type Notifier interface {
	Notify(ctx context.Context, text string)
}

type Noop struct{}

func (Noop) Notify(context.Context, string) {}

// Telegram posts messages to a single ops chat.
type Telegram struct {
	api    *tgbotapi.BotAPI
	chatID int64
	log    *slog.Logger
}

// NewTelegram connects to the Bot API. endpoint may be empty for the public
// Telegram API.
func NewTelegram(token, endpoint string, chatID int64, log *slog.Logger) (*Telegram, error) {
	if endpoint == "" {
		endpoint = tgbotapi.APIEndpoint
	}
	api, err := tgbotapi.NewBotAPIWithClient(token, endpoint, &http.Client{Timeout: 15 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("init telegram bot: %w", err)
	}
	return &Telegram{api: api, chatID: chatID, log: log}, nil
}

func (t *Telegram) Notify(ctx context.Context, text string) {
	if ctx.Err() != nil {
		return
	}
	msg := tgbotapi.NewMessage(t.chatID, text)
	msg.DisableWebPagePreview = true
	if _, err := t.api.Send(msg); err != nil && t.log != nil {
		t.log.Warn("ops notification failed", "err", err)
	}
}
