// internal/app/timer_service.go
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"spawn_warning_bot/internal/domain/spawn"

	"github.com/sirupsen/logrus"
)

var ErrEntityNotFound = fmt.Errorf("no timer or weekly entry with this name")

// TimerService owns the fixed-interval timers and the static weekly schedule: catch-up,
// administrative edits, and the read projections shown to people.
type TimerService struct {
	repo   spawn.TimerRepository
	ledger *LedgerService
	weekly []spawn.WeeklyScheduleEntry
	loc    *time.Location
	logger *logrus.Entry
}

func NewTimerService(
	repo spawn.TimerRepository,
	ledger *LedgerService,
	weekly []spawn.WeeklyScheduleEntry,
	loc *time.Location,
	logger *logrus.Entry,
) *TimerService {
	if loc == nil {
		loc = time.Local
	}
	return &TimerService{
		repo:   repo,
		ledger: ledger,
		weekly: weekly,
		loc:    loc,
		logger: logger.WithField("component", "timers"),
	}
}

func (s *TimerService) Location() *time.Location { return s.loc }

func (s *TimerService) WeeklyEntries() []spawn.WeeklyScheduleEntry { return s.weekly }

// Seed stores configured timers that the store does not know yet. Existing records win, so
// restarts never roll back edits made at runtime.
func (s *TimerService) Seed(ctx context.Context, timers []*spawn.FixedIntervalTimer) (int, error) {
	inserted := 0
	for _, t := range timers {
		ok, err := s.repo.InsertTimerIfMissing(ctx, t)
		if err != nil {
			return inserted, fmt.Errorf("failed to seed timer %q: %w", t.Name, err)
		}
		if ok {
			inserted++
			s.logger.WithFields(logrus.Fields{
				"timer":    t.Name,
				"interval": t.Interval().String(),
				"last":     t.LastOccurrence.Format(spawn.DisplayLayout),
			}).Info("Timer seeded from schedule file")
		}
	}
	return inserted, nil
}

// CurrentTimers reads every timer from the store and advances it in memory to now.
// Records that violate the interval invariant are skipped and reported, never advanced.
func (s *TimerService) CurrentTimers(ctx context.Context, now time.Time) ([]spawn.FixedIntervalTimer, error) {
	stored, err := s.repo.ListTimers(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list timers: %w", err)
	}
	out := make([]spawn.FixedIntervalTimer, 0, len(stored))
	for _, t := range stored {
		if !spawn.ValidInterval(t.IntervalSeconds) {
			s.logger.WithFields(logrus.Fields{"timer": t.Name, "interval_seconds": t.IntervalSeconds}).Error("Stored timer has an invalid interval, skipping")
			continue
		}
		out = append(out, s.current(*t, now))
	}
	return out, nil
}

// CurrentTimer is CurrentTimers for a single name.
func (s *TimerService) CurrentTimer(ctx context.Context, name string, now time.Time) (*spawn.FixedIntervalTimer, error) {
	t, err := s.repo.GetTimer(ctx, name)
	if err != nil {
		return nil, err
	}
	if !spawn.ValidInterval(t.IntervalSeconds) {
		return nil, fmt.Errorf("timer %q: %w", name, spawn.ErrInvalidInterval)
	}
	cur := s.current(*t, now)
	return &cur, nil
}

func (s *TimerService) current(t spawn.FixedIntervalTimer, now time.Time) spawn.FixedIntervalTimer {
	t.LastOccurrence = t.LastOccurrence.In(s.loc)
	return spawn.Advance(t, now.In(s.loc))
}

// CatchUp writes back every timer whose stored pair has fallen behind now. The write is
// conditional on the stored last occurrence being unchanged, so an edit made by another
// instance in the meantime is kept and this instance simply loses the race.
func (s *TimerService) CatchUp(ctx context.Context, now time.Time) (int, error) {
	stored, err := s.repo.ListTimers(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list timers: %w", err)
	}

	advanced := 0
	var errs []error
	for _, t := range stored {
		if !spawn.NeedsAdvance(*t, now) {
			continue
		}
		next := s.current(*t, now)
		ok, err := s.repo.AdvanceTimer(ctx, &next, t.LastOccurrence)
		if err != nil {
			errs = append(errs, fmt.Errorf("timer %q: %w", t.Name, err))
			continue
		}
		if !ok {
			s.logger.WithField("timer", t.Name).Debug("Timer changed concurrently, catch-up skipped")
			continue
		}
		advanced++
		s.logger.WithFields(logrus.Fields{
			"timer": t.Name,
			"last":  next.LastOccurrence.Format(spawn.DisplayLayout),
			"next":  next.NextOccurrence.Format(spawn.DisplayLayout),
		}).Debug("Timer caught up")
	}
	return advanced, errors.Join(errs...)
}

// EditLastOccurrence purges the ledger for the timer, since keys for its previous occurrences no
// longer mean anything, then persists the new last occurrence and records the edit. A failed purge
// aborts the edit with nothing written.
func (s *TimerService) EditLastOccurrence(ctx context.Context, name string, newLast time.Time, actor string) (*spawn.FixedIntervalTimer, error) {
	return s.edit(ctx, name, actor, func(t *spawn.FixedIntervalTimer) error {
		t.SetLastOccurrence(newLast.In(s.loc))
		return nil
	})
}

// EditInterval changes the interval; the last occurrence is kept.
func (s *TimerService) EditInterval(ctx context.Context, name string, minutes int64, actor string) (*spawn.FixedIntervalTimer, error) {
	if minutes <= 0 || minutes > spawn.MaxIntervalSeconds/60 {
		return nil, fmt.Errorf("timer %q: %w", name, spawn.ErrInvalidInterval)
	}
	return s.edit(ctx, name, actor, func(t *spawn.FixedIntervalTimer) error {
		return t.SetInterval(minutes * 60)
	})
}

// KillNow records that the event just happened: last occurrence becomes now.
func (s *TimerService) KillNow(ctx context.Context, name string, now time.Time, actor string) (*spawn.FixedIntervalTimer, error) {
	return s.EditLastOccurrence(ctx, name, now, actor)
}

func (s *TimerService) edit(ctx context.Context, name, actor string, mutate func(*spawn.FixedIntervalTimer) error) (*spawn.FixedIntervalTimer, error) {
	t, err := s.repo.GetTimer(ctx, name)
	if err != nil {
		return nil, err
	}
	old := *t
	if err := mutate(t); err != nil {
		return nil, fmt.Errorf("timer %q: %w", name, err)
	}

	// purge first: a key marked between purge and update can only be for the old occurrence
	if _, err := s.ledger.PurgeByEntity(ctx, name); err != nil {
		return nil, fmt.Errorf("timer %q not edited: %w", name, err)
	}
	if err := s.repo.UpdateTimer(ctx, t); err != nil {
		return nil, fmt.Errorf("failed to persist timer %q: %w", name, err)
	}

	logCtx := s.logger.WithFields(logrus.Fields{
		"timer":    name,
		"actor":    actor,
		"old_last": old.LastOccurrence.In(s.loc).Format(spawn.DisplayLayout),
		"new_last": t.LastOccurrence.In(s.loc).Format(spawn.DisplayLayout),
		"interval": t.Interval().String(),
	})
	logCtx.Info("Timer edited")

	edit := &spawn.Edit{
		TimerName:          name,
		OldLastOccurrence:  old.LastOccurrence,
		NewLastOccurrence:  t.LastOccurrence,
		OldIntervalSeconds: old.IntervalSeconds,
		NewIntervalSeconds: t.IntervalSeconds,
		EditedBy:           actor,
	}
	if err := s.repo.RecordEdit(ctx, edit); err != nil {
		// history is informational; the timer is already saved
		logCtx.WithError(err).Warn("Failed to record edit history")
	}
	return t, nil
}

// History returns the latest administrative edits, newest first.
func (s *TimerService) History(ctx context.Context, limit int) ([]*spawn.Edit, error) {
	if limit <= 0 {
		limit = 10
	}
	edits, err := s.repo.ListEdits(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list edits: %w", err)
	}
	return edits, nil
}

// Occurrences lists every entity's next occurrence, soonest first.
func (s *TimerService) Occurrences(ctx context.Context, now time.Time) ([]spawn.Occurrence, error) {
	now = now.In(s.loc)
	timers, err := s.CurrentTimers(ctx, now)
	if err != nil {
		return nil, err
	}

	out := make([]spawn.Occurrence, 0, len(timers)+len(s.weekly))
	for i, t := range timers {
		out = append(out, spawn.Occurrence{
			Source:    spawn.SourceField,
			Name:      t.Name,
			At:        t.NextOccurrence,
			Countdown: t.NextOccurrence.Sub(now),
			Order:     i,
		})
	}
	for i, e := range s.weekly {
		at, ok := e.Next(now)
		if !ok {
			continue
		}
		out = append(out, spawn.Occurrence{
			Source:    spawn.SourceWeekly,
			Name:      e.Name,
			At:        at,
			Countdown: at.Sub(now),
			Order:     len(timers) + i,
		})
	}
	spawn.SortOccurrences(out)
	return out, nil
}

// NextFor returns the next occurrence for name. Fixed-interval timers shadow weekly entries of the same name.
func (s *TimerService) NextFor(ctx context.Context, name string, now time.Time) (spawn.Occurrence, error) {
	occ, err := s.Occurrences(ctx, now)
	if err != nil {
		return spawn.Occurrence{}, err
	}
	var weekly *spawn.Occurrence
	for i := range occ {
		if occ[i].Name != name {
			continue
		}
		if occ[i].Source == spawn.SourceField {
			return occ[i], nil
		}
		if weekly == nil {
			weekly = &occ[i]
		}
	}
	if weekly != nil {
		return *weekly, nil
	}
	return spawn.Occurrence{}, ErrEntityNotFound
}

// Soonest returns the single closest occurrence across all entities.
func (s *TimerService) Soonest(ctx context.Context, now time.Time) (spawn.Occurrence, bool, error) {
	occ, err := s.Occurrences(ctx, now)
	if err != nil || len(occ) == 0 {
		return spawn.Occurrence{}, false, err
	}
	return occ[0], true, nil
}
