package telegram

import "gopkg.in/telebot.v3"

// MessageSender posts a text message to one chat, optionally with an inline keyboard.
// The warning transport depends on this instead of *telebot.Bot so it can be exercised without a bot.
type MessageSender interface {
	SendText(chatID int64, text string, markup *telebot.ReplyMarkup) error
}
