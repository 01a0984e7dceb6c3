// internal/app/warning_service.go
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"spawn_warning_bot/internal/domain/notification"
	"spawn_warning_bot/internal/domain/spawn"

	"github.com/sirupsen/logrus"
)

// WarningConfig bounds the dispatcher.
type WarningConfig struct {
	Window          time.Duration // warn when 0 < next-now <= Window
	DispatchTimeout time.Duration // per transport call
	MaxRetryWait    time.Duration // cap on the single rate-limit retry delay
}

// DispatchResult counts what one dispatch pass did.
type DispatchResult struct {
	Due     int // occurrences inside the window
	Sent    int
	Skipped int // already in the ledger or stale
	Failed  int
}

// WarningService sends one warning per occurrence shortly before it happens.
type WarningService struct {
	timers    *TimerService
	ledger    *LedgerService
	transport notification.Transport
	cfg       WarningConfig
	logger    *logrus.Entry

	sleep func(ctx context.Context, d time.Duration) error
}

func NewWarningService(
	timers *TimerService,
	ledger *LedgerService,
	transport notification.Transport,
	cfg WarningConfig,
	logger *logrus.Entry,
) *WarningService {
	if cfg.DispatchTimeout <= 0 {
		cfg.DispatchTimeout = 10 * time.Second
	}
	if cfg.MaxRetryWait <= 0 {
		cfg.MaxRetryWait = 5 * time.Second
	}
	return &WarningService{
		timers:    timers,
		ledger:    ledger,
		transport: transport,
		cfg:       cfg,
		logger:    logger.WithField("component", "warnings"),
		sleep:     sleepContext,
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// InWarningWindow reports whether an occurrence at next is due for a warning at now.
func InWarningWindow(next, now time.Time, window time.Duration) bool {
	d := next.Sub(now)
	return d > 0 && d <= window
}

// DispatchWarnings runs one pass over all entities. Callers must hold the sender lease.
// Per-entity failures are logged and counted; only a failure to read the timers aborts the pass.
func (s *WarningService) DispatchWarnings(ctx context.Context, now time.Time) (DispatchResult, error) {
	var res DispatchResult
	now = now.In(s.timers.Location())

	timers, err := s.timers.CurrentTimers(ctx, now)
	if err != nil {
		return res, err
	}
	for _, t := range timers {
		if !InWarningWindow(t.NextOccurrence, now, s.cfg.Window) {
			continue
		}
		res.Due++
		s.dispatchTimer(ctx, t, now, &res)
	}

	for _, e := range s.timers.WeeklyEntries() {
		at, ok := e.Next(now)
		if !ok || !InWarningWindow(at, now, s.cfg.Window) {
			continue
		}
		res.Due++
		s.dispatch(ctx, notification.NewKey(spawn.SourceWeekly, e.Name, at), at, now, &res)
	}
	return res, nil
}

func (s *WarningService) dispatchTimer(ctx context.Context, t spawn.FixedIntervalTimer, now time.Time, res *DispatchResult) {
	// re-read right before sending so an edit made since the list was loaded wins
	fresh, err := s.timers.CurrentTimer(ctx, t.Name, now)
	if err != nil {
		s.logger.WithError(err).WithField("entity", t.Name).Error("Failed to reload timer before dispatch")
		res.Failed++
		return
	}
	if !fresh.NextOccurrence.Equal(t.NextOccurrence) {
		s.logger.WithFields(logrus.Fields{
			"entity":   t.Name,
			"computed": t.NextOccurrence.Format(spawn.DisplayLayout),
			"stored":   fresh.NextOccurrence.Format(spawn.DisplayLayout),
		}).Info("Timer changed since it was loaded, skipping stale warning")
		res.Skipped++
		return
	}
	s.dispatch(ctx, notification.NewKey(spawn.SourceField, t.Name, t.NextOccurrence), t.NextOccurrence, now, res)
}

func (s *WarningService) dispatch(ctx context.Context, key notification.Key, at, now time.Time, res *DispatchResult) {
	logCtx := s.logger.WithFields(logrus.Fields{
		"source":     key.Source,
		"entity":     key.Entity,
		"occurrence": key.Minute,
	})

	sent, err := s.ledger.IsSent(ctx, key)
	if err != nil {
		// unknown ledger state: do not send, the next tick retries
		logCtx.WithError(err).Error("Ledger unavailable, dispatch deferred")
		res.Failed++
		return
	}
	if sent {
		res.Skipped++
		return
	}

	msg := notification.Message{Key: key, Occurrence: at, Text: FormatWarning(key, at, now)}
	if err := s.send(ctx, msg, logCtx); err != nil {
		logCtx.WithError(err).Warn("Warning dispatch failed, will retry while inside the window")
		res.Failed++
		return
	}

	if err := s.ledger.MarkSent(ctx, key); err != nil {
		logCtx.WithError(err).Error("Warning sent but ledger write failed, it may be sent again")
		res.Failed++
		return
	}
	logCtx.Info("Warning sent")
	res.Sent++
}

// send makes one bounded attempt and, on a rate-limit answer only, one more after a capped delay.
func (s *WarningService) send(ctx context.Context, msg notification.Message, logCtx *logrus.Entry) error {
	err := s.sendOnce(ctx, msg)
	var rl *notification.RateLimitError
	if !errors.As(err, &rl) {
		return err
	}

	wait := rl.RetryAfter
	if wait <= 0 {
		wait = time.Second
	}
	if wait > s.cfg.MaxRetryWait {
		wait = s.cfg.MaxRetryWait
	}
	logCtx.WithField("retry_in", wait.String()).Warn("Transport rate limited, retrying once")
	if err := s.sleep(ctx, wait); err != nil {
		return fmt.Errorf("rate-limit wait interrupted: %w", err)
	}
	return s.sendOnce(ctx, msg)
}

func (s *WarningService) sendOnce(ctx context.Context, msg notification.Message) error {
	callCtx, cancel := context.WithTimeout(ctx, s.cfg.DispatchTimeout)
	defer cancel()
	return s.transport.Send(callCtx, msg)
}

// FormatWarning renders the text delivered for one occurrence.
func FormatWarning(key notification.Key, at, now time.Time) string {
	minutes := int(at.Sub(now).Round(time.Minute) / time.Minute)
	label := key.Entity
	if key.Source == spawn.SourceWeekly {
		label = key.Entity + " (weekly)"
	}
	if minutes <= 0 {
		return fmt.Sprintf("⚠️ %s spawns in under a minute (%s)", label, at.Format(spawn.DisplayLayout))
	}
	return fmt.Sprintf("⚠️ %s spawns in %d min (%s)", label, minutes, at.Format(spawn.DisplayLayout))
}
