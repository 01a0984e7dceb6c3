package telegram

import (
	"context"
	"errors"
	"fmt"
	"time"

	"spawn_warning_bot/internal/domain/notification"
	"spawn_warning_bot/internal/domain/spawn"
	domainTelegram "spawn_warning_bot/internal/domain/telegram"

	"gopkg.in/telebot.v3"
)

// killUnique is the callback identifier of the inline "Killed Now" button.
const killUnique = "kill"

// Transport sends warnings to one Telegram chat. Fixed-interval warnings carry a
// "Killed Now" button so an admin can reset the timer straight from the warning.
// Send gives up when ctx ends; the bot's HTTP client timeout bounds the abandoned request.
type Transport struct {
	sender domainTelegram.MessageSender
	chatID int64
}

func NewTransport(sender domainTelegram.MessageSender, chatID int64) *Transport {
	return &Transport{sender: sender, chatID: chatID}
}

func (t *Transport) Send(ctx context.Context, msg notification.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	var markup *telebot.ReplyMarkup
	if msg.Key.Source == spawn.SourceField {
		markup = killMarkup(msg.Key.Entity)
	}

	// telebot calls take no context; stop waiting once ctx is done
	done := make(chan error, 1)
	go func() { done <- t.sender.SendText(t.chatID, msg.Text, markup) }()
	var err error
	select {
	case err = <-done:
	case <-ctx.Done():
		return fmt.Errorf("telegram send abandoned: %w", ctx.Err())
	}

	var flood telebot.FloodError
	if errors.As(err, &flood) {
		return &notification.RateLimitError{
			RetryAfter: time.Duration(flood.RetryAfter) * time.Second,
			Err:        fmt.Errorf("telegram flood control"),
		}
	}
	return err
}

func killMarkup(entity string) *telebot.ReplyMarkup {
	m := &telebot.ReplyMarkup{}
	m.Inline(m.Row(m.Data("☠️ Killed Now", killUnique, entity)))
	return m
}
