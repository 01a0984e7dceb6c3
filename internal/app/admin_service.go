package app

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"spawn_warning_bot/internal/domain/spawn"
)

// Custom application-level errors for admin service
var ErrAdminNotAuthorized = fmt.Errorf("performing user is not authorized as an admin")
var ErrIntervalNotPositive = fmt.Errorf("interval must be at least one minute")
var ErrIntervalTooLong = fmt.Errorf("interval must not exceed 366 days")

// AdminService gates the mutating timer operations behind the configured admin identity.
type AdminService struct {
	timers          *TimerService
	clock           spawn.Clock
	adminTelegramID int64
}

func NewAdminService(timers *TimerService, clock spawn.Clock, adminID int64) *AdminService {
	return &AdminService{
		timers:          timers,
		clock:           clock,
		adminTelegramID: adminID,
	}
}

func (s *AdminService) IsAdmin(userID int64) bool {
	return s.adminTelegramID != 0 && userID == s.adminTelegramID
}

func actorName(userID int64) string {
	return "telegram:" + strconv.FormatInt(userID, 10)
}

// EditLastOccurrence handles "/edit <name> <timestamp>".
func (s *AdminService) EditLastOccurrence(ctx context.Context, performingAdminID int64, name, rawTimestamp string) (*spawn.FixedIntervalTimer, error) {
	if !s.IsAdmin(performingAdminID) {
		return nil, ErrAdminNotAuthorized
	}
	newLast, err := spawn.ParseOccurrenceTime(rawTimestamp, s.timers.Location())
	if err != nil {
		return nil, err
	}
	return s.timers.EditLastOccurrence(ctx, name, newLast, actorName(performingAdminID))
}

// EditInterval handles "/interval <name> <minutes>".
func (s *AdminService) EditInterval(ctx context.Context, performingAdminID int64, name string, minutes int64) (*spawn.FixedIntervalTimer, error) {
	if !s.IsAdmin(performingAdminID) {
		return nil, ErrAdminNotAuthorized
	}
	if minutes <= 0 {
		return nil, ErrIntervalNotPositive
	}
	if minutes > spawn.MaxIntervalSeconds/60 {
		return nil, ErrIntervalTooLong
	}
	return s.timers.EditInterval(ctx, name, minutes, actorName(performingAdminID))
}

// KillNow handles "/kill <name>" and the inline "Killed Now" button.
func (s *AdminService) KillNow(ctx context.Context, performingAdminID int64, name string) (*spawn.FixedIntervalTimer, error) {
	if !s.IsAdmin(performingAdminID) {
		return nil, ErrAdminNotAuthorized
	}
	return s.timers.KillNow(ctx, name, s.clock.Now(), actorName(performingAdminID))
}

func (s *AdminService) History(ctx context.Context, performingAdminID int64, limit int) ([]*spawn.Edit, error) {
	if !s.IsAdmin(performingAdminID) {
		return nil, ErrAdminNotAuthorized
	}
	return s.timers.History(ctx, limit)
}

// Now is exposed so handlers render countdowns against the same clock.
func (s *AdminService) Now() time.Time { return s.clock.Now() }
