// internal/infra/telegram/bot_commands_handler.go
package telegram

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"spawn_warning_bot/internal/app"

	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"
)

// RegisterBotCommands registers the read-only commands available to everyone.
func RegisterBotCommands(
	ctx context.Context,
	b *telebot.Bot,
	timers *app.TimerService,
	adminService *app.AdminService,
	baseLogger *logrus.Entry,
) {
	queryLogger := baseLogger.WithField("handler_group", "queries")

	b.Handle("/start", func(c telebot.Context) error {
		return c.Send("Hi! I post a warning shortly before every tracked spawn. Use /help to see the commands.")
	})

	b.Handle("/help", func(c telebot.Context) error {
		var helpText strings.Builder
		helpText.WriteString("Commands:\n\n")
		helpText.WriteString("/timers - all spawns, soonest first\n")
		helpText.WriteString("/next <name> - next spawn of one timer\n")
		helpText.WriteString("/soonest - the very next spawn\n")
		if adminService.IsAdmin(c.Sender().ID) {
			helpText.WriteString("\nAdmin:\n")
			helpText.WriteString("/kill <name> - mark a timer as killed now\n")
			helpText.WriteString("/edit <name> <YYYY-MM-DD> <hh:mm> [AM|PM] - set the last kill time\n")
			helpText.WriteString("/interval <name> <minutes> - change the respawn interval\n")
			helpText.WriteString("/history [count] - recent edits\n")
		}
		return c.Send(helpText.String())
	})

	b.Handle("/timers", func(c telebot.Context) error {
		logCtx := queryLogger.WithField("command", "/timers").WithField("sender_id", c.Sender().ID)
		occ, err := timers.Occurrences(ctx, adminService.Now())
		if err != nil {
			logCtx.WithError(err).Error("Failed to list occurrences")
			return c.Send("An error occurred while reading the timers. Please try again later.")
		}
		return c.Send(formatOccurrenceList(occ))
	})

	b.Handle("/next", func(c telebot.Context) error {
		logCtx := queryLogger.WithField("command", "/next").WithField("sender_id", c.Sender().ID)
		name := strings.Join(c.Args(), " ")
		if strings.TrimSpace(name) == "" {
			return c.Send("Usage: /next <name>")
		}
		o, err := timers.NextFor(ctx, name, adminService.Now())
		if err != nil {
			if errors.Is(err, app.ErrEntityNotFound) {
				return c.Send(fmt.Sprintf("No timer named %q.", name))
			}
			logCtx.WithError(err).Error("Failed to resolve next occurrence")
			return c.Send("An error occurred while reading the timers. Please try again later.")
		}
		return c.Send(formatOccurrence(o))
	})

	b.Handle("/soonest", func(c telebot.Context) error {
		logCtx := queryLogger.WithField("command", "/soonest").WithField("sender_id", c.Sender().ID)
		o, ok, err := timers.Soonest(ctx, adminService.Now())
		if err != nil {
			logCtx.WithError(err).Error("Failed to resolve soonest occurrence")
			return c.Send("An error occurred while reading the timers. Please try again later.")
		}
		if !ok {
			return c.Send("No timers configured.")
		}
		return c.Send("Next up: " + formatOccurrence(o))
	})
}
