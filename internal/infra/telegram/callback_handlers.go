package telegram

import (
	"context"
	"errors"
	"fmt"

	"spawn_warning_bot/internal/app"
	"spawn_warning_bot/internal/domain/spawn"

	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"
)

// RegisterKillButton handles the inline "Killed Now" button attached to warnings.
func RegisterKillButton(ctx context.Context, b *telebot.Bot, adminService *app.AdminService, baseLogger *logrus.Entry) {
	b.Handle(&telebot.Btn{Unique: killUnique}, func(c telebot.Context) error {
		name := c.Data()
		logCtx := baseLogger.WithFields(logrus.Fields{
			"handler":   "kill_button",
			"sender_id": c.Sender().ID,
			"timer":     name,
		})

		t, err := adminService.KillNow(ctx, c.Sender().ID, name)
		if err != nil {
			switch {
			case errors.Is(err, app.ErrAdminNotAuthorized):
				logCtx.Warn("Unauthorized kill attempt")
				return c.Respond(&telebot.CallbackResponse{Text: "Only the admin can do this."})
			case errors.Is(err, spawn.ErrTimerNotFound):
				return c.Respond(&telebot.CallbackResponse{Text: "Timer no longer exists."})
			default:
				logCtx.WithError(err).Error("Failed to process kill button")
				return c.Respond(&telebot.CallbackResponse{Text: "An error occurred."})
			}
		}

		logCtx.Info("Timer killed via button")
		return c.Respond(&telebot.CallbackResponse{
			Text: fmt.Sprintf("%s updated! Next: %s", t.Name, t.NextOccurrence.Format(spawn.DisplayLayout)),
		})
	})
}
