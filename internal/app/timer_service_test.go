package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"spawn_warning_bot/internal/domain/notification"
	"spawn_warning_bot/internal/domain/spawn"
	"spawn_warning_bot/internal/infra/memstore"
)

func TestEditPurgesLedgerAndRecordsHistory(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	last := time.Date(2025, 9, 19, 16, 0, 0, 0, testZone)
	f := newFixture(t, nil,
		newTimer(t, "Ego", 600, last, 0),
		newTimer(t, "Venatus", 36000, last, 1),
	)

	keep := notification.NewKey(spawn.SourceField, "Venatus", last.Add(10*time.Hour))
	for _, k := range []notification.Key{
		notification.NewKey(spawn.SourceField, "Ego", last.Add(10*time.Minute)),
		notification.NewKey(spawn.SourceField, "Ego", last.Add(20*time.Minute)),
		keep,
	} {
		if err := f.ledger.MarkSent(ctx, k); err != nil {
			t.Fatalf("MarkSent: %v", err)
		}
	}

	newLast := last.Add(4 * time.Minute)
	edited, err := f.timers.EditLastOccurrence(ctx, "Ego", newLast, "telegram:1")
	if err != nil {
		t.Fatalf("EditLastOccurrence: %v", err)
	}
	if !edited.NextOccurrence.Equal(newLast.Add(10 * time.Minute)) {
		t.Fatalf("next = %v", edited.NextOccurrence)
	}

	keys := f.ledgerRepo.Keys()
	if len(keys) != 1 || keys[0] != keep {
		t.Fatalf("ledger after edit = %v", keys)
	}

	history, err := f.timers.History(ctx, 5)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(history) != 1 {
		t.Fatalf("history len = %d", len(history))
	}
	h := history[0]
	if h.TimerName != "Ego" || h.EditedBy != "telegram:1" || !h.OldLastOccurrence.Equal(last) || !h.NewLastOccurrence.Equal(newLast) {
		t.Fatalf("unexpected edit %+v", h)
	}
}

func TestEditIntervalKeepsLastOccurrence(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	last := time.Date(2025, 9, 19, 16, 0, 0, 0, testZone)
	f := newFixture(t, nil, newTimer(t, "Ego", 600, last, 0))

	edited, err := f.timers.EditInterval(ctx, "Ego", 15, "test")
	if err != nil {
		t.Fatalf("EditInterval: %v", err)
	}
	if !edited.LastOccurrence.Equal(last) || !edited.NextOccurrence.Equal(last.Add(15*time.Minute)) {
		t.Fatalf("edited = %+v", edited)
	}

	if _, err := f.timers.EditInterval(ctx, "Ego", 0, "test"); !errors.Is(err, spawn.ErrInvalidInterval) {
		t.Fatalf("zero interval err = %v", err)
	}
	if _, err := f.timers.EditInterval(ctx, "Nobody", 10, "test"); !errors.Is(err, spawn.ErrTimerNotFound) {
		t.Fatalf("missing timer err = %v", err)
	}
}

func TestKillNowRestartsCycle(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	last := time.Date(2025, 9, 19, 16, 0, 0, 0, testZone)
	f := newFixture(t, nil, newTimer(t, "Ego", 600, last, 0))

	now := last.Add(3*time.Minute + 17*time.Second)
	killed, err := f.timers.KillNow(ctx, "Ego", now, "test")
	if err != nil {
		t.Fatalf("KillNow: %v", err)
	}
	if !killed.LastOccurrence.Equal(now) || !killed.NextOccurrence.Equal(now.Add(10*time.Minute)) {
		t.Fatalf("killed = %+v", killed)
	}
}

func TestCatchUpPersistsAdvancedTimers(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	last := time.Date(2025, 9, 19, 16, 0, 0, 0, testZone)
	f := newFixture(t, nil,
		newTimer(t, "Ego", 600, last, 0),
		newTimer(t, "Venatus", 36000, last, 1),
	)

	now := last.Add(6500 * time.Second)
	advanced, err := f.timers.CatchUp(ctx, now)
	if err != nil {
		t.Fatalf("CatchUp: %v", err)
	}
	if advanced != 1 {
		t.Fatalf("advanced = %d, want 1", advanced)
	}

	stored, err := f.timerRepo.GetTimer(ctx, "Ego")
	if err != nil {
		t.Fatalf("GetTimer: %v", err)
	}
	if !stored.LastOccurrence.Equal(last.Add(6000*time.Second)) || !stored.NextOccurrence.Equal(last.Add(6600*time.Second)) {
		t.Fatalf("stored = %+v", stored)
	}

	advanced, err = f.timers.CatchUp(ctx, now)
	if err != nil || advanced != 0 {
		t.Fatalf("second catch-up advanced %d, err %v", advanced, err)
	}
}

// racingTimerRepo runs an edit right before the first conditional advance lands.
type racingTimerRepo struct {
	*memstore.TimerRepository
	before func()
}

func (r *racingTimerRepo) AdvanceTimer(ctx context.Context, t *spawn.FixedIntervalTimer, expectedLast time.Time) (bool, error) {
	if r.before != nil {
		hook := r.before
		r.before = nil
		hook()
	}
	return r.TimerRepository.AdvanceTimer(ctx, t, expectedLast)
}

func TestCatchUpLosesToConcurrentEdit(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	last := time.Date(2025, 9, 19, 16, 0, 0, 0, testZone)
	f := newFixture(t, nil, newTimer(t, "Ego", 600, last, 0))

	now := last.Add(25 * time.Minute)
	edited := now.Add(-time.Minute)
	repo := &racingTimerRepo{TimerRepository: f.timerRepo}
	repo.before = func() {
		if _, err := f.timers.EditLastOccurrence(ctx, "Ego", edited, "other-instance"); err != nil {
			t.Errorf("EditLastOccurrence: %v", err)
		}
	}
	timers := NewTimerService(repo, f.ledger, nil, testZone, testLogger())

	advanced, err := timers.CatchUp(ctx, now)
	if err != nil {
		t.Fatalf("CatchUp: %v", err)
	}
	if advanced != 0 {
		t.Fatalf("advanced = %d, want 0", advanced)
	}
	stored, _ := f.timerRepo.GetTimer(ctx, "Ego")
	if !stored.LastOccurrence.Equal(edited) {
		t.Fatalf("edit overwritten: last = %v", stored.LastOccurrence)
	}
}

func TestOccurrencesOrderingAndLookup(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	now := time.Date(2025, 9, 17, 10, 0, 0, 0, testZone) // Wednesday
	weekly := []spawn.WeeklyScheduleEntry{
		{Name: "Clemantis", Slots: []spawn.WeeklySlot{{Weekday: time.Wednesday, Hour: 10, Minute: 30}}},
		{Name: "Ego", Slots: []spawn.WeeklySlot{{Weekday: time.Wednesday, Hour: 10, Minute: 5}}},
	}
	f := newFixture(t, weekly,
		newTimer(t, "Venatus", 3600, now.Add(-30*time.Minute), 0), // next 10:30, ties with Clemantis
		newTimer(t, "Ego", 600, now.Add(-8*time.Minute), 1),      // next 10:02
	)

	occ, err := f.timers.Occurrences(ctx, now)
	if err != nil {
		t.Fatalf("Occurrences: %v", err)
	}
	var got []string
	for _, o := range occ {
		got = append(got, string(o.Source)+":"+o.Name)
	}
	want := []string{"FIELD:Ego", "WEEKLY:Ego", "FIELD:Venatus", "WEEKLY:Clemantis"}
	if len(got) != len(want) {
		t.Fatalf("occurrences = %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("occurrences = %v, want %v", got, want)
		}
	}
	if occ[0].Countdown != 2*time.Minute {
		t.Fatalf("countdown = %v", occ[0].Countdown)
	}

	ego, err := f.timers.NextFor(ctx, "Ego", now)
	if err != nil || ego.Source != spawn.SourceField {
		t.Fatalf("NextFor(Ego) = %+v, %v", ego, err)
	}
	clem, err := f.timers.NextFor(ctx, "Clemantis", now)
	if err != nil || clem.Source != spawn.SourceWeekly || !clem.At.Equal(now.Add(30*time.Minute)) {
		t.Fatalf("NextFor(Clemantis) = %+v, %v", clem, err)
	}
	if _, err := f.timers.NextFor(ctx, "Nobody", now); !errors.Is(err, ErrEntityNotFound) {
		t.Fatalf("NextFor(Nobody) err = %v", err)
	}

	soonest, ok, err := f.timers.Soonest(ctx, now)
	if err != nil || !ok || soonest.Name != "Ego" || soonest.Source != spawn.SourceField {
		t.Fatalf("Soonest = %+v, %v, %v", soonest, ok, err)
	}
}

func TestSoonestWithNothingConfigured(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil)
	_, ok, err := f.timers.Soonest(context.Background(), time.Now())
	if err != nil || ok {
		t.Fatalf("Soonest = %v, %v", ok, err)
	}
}

func TestSeedKeepsExistingRecords(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	last := time.Date(2025, 9, 19, 16, 0, 0, 0, testZone)
	f := newFixture(t, nil, newTimer(t, "Ego", 600, last, 0))

	if _, err := f.timers.EditLastOccurrence(ctx, "Ego", last.Add(time.Minute), "test"); err != nil {
		t.Fatalf("EditLastOccurrence: %v", err)
	}
	inserted, err := f.timers.Seed(ctx, []*spawn.FixedIntervalTimer{
		newTimer(t, "Ego", 600, last, 0),
		newTimer(t, "Viorent", 1800, last, 1),
	})
	if err != nil {
		t.Fatalf("Seed: %v", err)
	}
	if inserted != 1 {
		t.Fatalf("inserted = %d", inserted)
	}
	ego, _ := f.timerRepo.GetTimer(ctx, "Ego")
	if !ego.LastOccurrence.Equal(last.Add(time.Minute)) {
		t.Fatal("seeding rolled back a runtime edit")
	}
}

func TestEditAbortsWhenLedgerPurgeFails(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	last := time.Date(2025, 9, 19, 10, 0, 0, 0, testZone)
	f := newFixture(t, nil, newTimer(t, "Ego", 600, last, 0))
	ledgerRepo := f.withFailingLedger()

	stale := notification.NewKey(spawn.SourceField, "Ego", last.Add(10*time.Minute))
	if err := f.ledger.MarkSent(ctx, stale); err != nil {
		t.Fatalf("MarkSent: %v", err)
	}
	ledgerDown := errors.New("ledger down")
	ledgerRepo.fail(nil, nil, ledgerDown)

	if _, err := f.timers.EditLastOccurrence(ctx, "Ego", last.Add(time.Hour), "test"); !errors.Is(err, ledgerDown) {
		t.Fatalf("EditLastOccurrence err = %v", err)
	}
	stored, _ := f.timerRepo.GetTimer(ctx, "Ego")
	if !stored.LastOccurrence.Equal(last) {
		t.Fatalf("timer written despite failed purge: last = %v", stored.LastOccurrence)
	}
	if history, _ := f.timers.History(ctx, 5); len(history) != 0 {
		t.Fatalf("edit recorded despite failed purge: %d entries", len(history))
	}

	// once the ledger recovers the same edit goes through and clears the old key
	ledgerRepo.fail(nil, nil, nil)
	if _, err := f.timers.EditLastOccurrence(ctx, "Ego", last.Add(time.Hour), "test"); err != nil {
		t.Fatalf("EditLastOccurrence: %v", err)
	}
	if sent, _ := f.ledger.IsSent(ctx, stale); sent {
		t.Fatal("stale key survived a successful edit")
	}
}
