package telegram

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"spawn_warning_bot/internal/app"
	"spawn_warning_bot/internal/domain/spawn"

	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"
)

const unauthorizedReply = "Error: you are not allowed to run this command."

// RegisterAdminHandlers registers the mutating commands. Every handler checks the sender
// against the configured admin before touching any timer.
func RegisterAdminHandlers(ctx context.Context, b *telebot.Bot, adminService *app.AdminService, baseLogger *logrus.Entry) {
	b.Handle("/edit", func(c telebot.Context) error {
		handlerLogger := baseLogger.WithFields(logrus.Fields{
			"handler":   "/edit",
			"sender_id": c.Sender().ID,
		})
		handlerLogger.Info("Command received")

		if !adminService.IsAdmin(c.Sender().ID) {
			handlerLogger.Warn("Unauthorized access attempt")
			return c.Send(unauthorizedReply)
		}

		name, ts, ok := splitNameAndTimestamp(c.Args())
		if !ok {
			return c.Send("Usage: /edit <name> <YYYY-MM-DD> <hh:mm> [AM|PM]")
		}
		handlerLogger = handlerLogger.WithFields(logrus.Fields{"timer": name, "timestamp": ts})

		t, err := adminService.EditLastOccurrence(ctx, c.Sender().ID, name, ts)
		if err != nil {
			return replyEditError(c, handlerLogger, name, err)
		}
		handlerLogger.Info("Timer last occurrence edited")
		return c.Send("Updated. " + formatTimer(t, adminService.Now()))
	})

	b.Handle("/interval", func(c telebot.Context) error {
		handlerLogger := baseLogger.WithFields(logrus.Fields{
			"handler":   "/interval",
			"sender_id": c.Sender().ID,
		})
		if !adminService.IsAdmin(c.Sender().ID) {
			handlerLogger.Warn("Unauthorized access attempt")
			return c.Send(unauthorizedReply)
		}

		args := c.Args()
		if len(args) < 2 {
			return c.Send("Usage: /interval <name> <minutes>")
		}
		minutes, err := strconv.ParseInt(args[len(args)-1], 10, 64)
		if err != nil {
			return c.Send("Error: minutes must be a whole number.")
		}
		name := strings.Join(args[:len(args)-1], " ")
		handlerLogger = handlerLogger.WithFields(logrus.Fields{"timer": name, "minutes": minutes})

		t, err := adminService.EditInterval(ctx, c.Sender().ID, name, minutes)
		if err != nil {
			return replyEditError(c, handlerLogger, name, err)
		}
		handlerLogger.Info("Timer interval edited")
		return c.Send("Updated. " + formatTimer(t, adminService.Now()))
	})

	b.Handle("/kill", func(c telebot.Context) error {
		handlerLogger := baseLogger.WithFields(logrus.Fields{
			"handler":   "/kill",
			"sender_id": c.Sender().ID,
		})
		if !adminService.IsAdmin(c.Sender().ID) {
			handlerLogger.Warn("Unauthorized access attempt")
			return c.Send(unauthorizedReply)
		}
		name := strings.Join(c.Args(), " ")
		if strings.TrimSpace(name) == "" {
			return c.Send("Usage: /kill <name>")
		}
		t, err := adminService.KillNow(ctx, c.Sender().ID, name)
		if err != nil {
			return replyEditError(c, handlerLogger.WithField("timer", name), name, err)
		}
		handlerLogger.WithField("timer", name).Info("Timer killed now")
		return c.Send(fmt.Sprintf("✅ %s updated! Next: %s", t.Name, t.NextOccurrence.Format(spawn.DisplayLayout)))
	})

	b.Handle("/history", func(c telebot.Context) error {
		handlerLogger := baseLogger.WithFields(logrus.Fields{
			"handler":   "/history",
			"sender_id": c.Sender().ID,
		})
		limit := 10
		if args := c.Args(); len(args) > 0 {
			n, err := strconv.Atoi(args[0])
			if err != nil || n <= 0 {
				return c.Send("Usage: /history [count]")
			}
			limit = n
		}
		edits, err := adminService.History(ctx, c.Sender().ID, limit)
		if err != nil {
			if errors.Is(err, app.ErrAdminNotAuthorized) {
				handlerLogger.Warn("Unauthorized access attempt")
				return c.Send(unauthorizedReply)
			}
			handlerLogger.WithError(err).Error("Failed to list edit history")
			return c.Send("An error occurred while reading the edit history.")
		}
		return c.Send(formatEdits(edits, adminService.Now().Location()))
	})
}

func replyEditError(c telebot.Context, logCtx *logrus.Entry, name string, err error) error {
	logWithError := logCtx.WithError(err)
	switch {
	case errors.Is(err, app.ErrAdminNotAuthorized):
		logWithError.Warn("Admin not authorized (service level)")
		return c.Send(unauthorizedReply)
	case errors.Is(err, spawn.ErrTimerNotFound):
		logWithError.Warn("Timer not found")
		return c.Send(fmt.Sprintf("No timer named %q.", name))
	case errors.Is(err, app.ErrIntervalNotPositive), errors.Is(err, app.ErrIntervalTooLong), errors.Is(err, spawn.ErrInvalidInterval):
		return c.Send("Error: the interval must be between one minute and 366 days.")
	case errors.Is(err, spawn.ErrInvalidTimestamp):
		return c.Send("Error: use the format YYYY-MM-DD hh:mm AM/PM, e.g. 2025-09-19 04:32 PM.")
	default:
		logWithError.Error("Failed to edit timer")
		return c.Send(fmt.Sprintf("An error occurred while updating the timer: %s", err.Error()))
	}
}
