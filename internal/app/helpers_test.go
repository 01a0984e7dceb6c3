package app

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"spawn_warning_bot/internal/domain/notification"
	"spawn_warning_bot/internal/domain/spawn"
	"spawn_warning_bot/internal/infra/memstore"

	"github.com/sirupsen/logrus"
)

var testZone = time.FixedZone("PHT", 8*3600)

func testLogger() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}

type fixedClock struct{ now time.Time }

func (c *fixedClock) Now() time.Time { return c.now }

// recordingTransport captures messages and returns queued errors first.
type recordingTransport struct {
	mu   sync.Mutex
	errs []error
	sent []notification.Message
	hits int
}

func (t *recordingTransport) Send(_ context.Context, msg notification.Message) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.hits++
	if len(t.errs) > 0 {
		err := t.errs[0]
		t.errs = t.errs[1:]
		if err != nil {
			return err
		}
	}
	t.sent = append(t.sent, msg)
	return nil
}

func (t *recordingTransport) messages() []notification.Message {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]notification.Message(nil), t.sent...)
}

type fixture struct {
	timerRepo  *memstore.TimerRepository
	ledgerRepo *memstore.LedgerRepository
	ledger     *LedgerService
	timers     *TimerService
	transport  *recordingTransport
	warnings   *WarningService
	slept      []time.Duration
}

func newFixture(t *testing.T, weekly []spawn.WeeklyScheduleEntry, timers ...*spawn.FixedIntervalTimer) *fixture {
	t.Helper()
	f := &fixture{
		timerRepo:  memstore.NewTimerRepository(),
		ledgerRepo: memstore.NewLedgerRepository(),
		transport:  &recordingTransport{},
	}
	f.ledger = NewLedgerService(f.ledgerRepo, testLogger())
	f.timers = NewTimerService(f.timerRepo, f.ledger, weekly, testZone, testLogger())
	f.warnings = NewWarningService(f.timers, f.ledger, f.transport, WarningConfig{
		Window:          5 * time.Minute,
		DispatchTimeout: time.Second,
		MaxRetryWait:    2 * time.Second,
	}, testLogger())
	f.warnings.sleep = func(_ context.Context, d time.Duration) error {
		f.slept = append(f.slept, d)
		return nil
	}
	if _, err := f.timers.Seed(context.Background(), timers); err != nil {
		t.Fatalf("Seed: %v", err)
	}
	return f
}

// failingLedgerRepo wraps the in-memory ledger and fails the calls whose error is set.
type failingLedgerRepo struct {
	*memstore.LedgerRepository
	mu        sync.Mutex
	isSentErr error
	markErr   error
	purgeErr  error
}

func (r *failingLedgerRepo) fail(isSent, mark, purge error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.isSentErr, r.markErr, r.purgeErr = isSent, mark, purge
}

func (r *failingLedgerRepo) IsSent(ctx context.Context, key notification.Key) (bool, error) {
	r.mu.Lock()
	err := r.isSentErr
	r.mu.Unlock()
	if err != nil {
		return false, err
	}
	return r.LedgerRepository.IsSent(ctx, key)
}

func (r *failingLedgerRepo) MarkSent(ctx context.Context, key notification.Key) error {
	r.mu.Lock()
	err := r.markErr
	r.mu.Unlock()
	if err != nil {
		return err
	}
	return r.LedgerRepository.MarkSent(ctx, key)
}

func (r *failingLedgerRepo) PurgeByEntity(ctx context.Context, entity string) (int64, error) {
	r.mu.Lock()
	err := r.purgeErr
	r.mu.Unlock()
	if err != nil {
		return 0, err
	}
	return r.LedgerRepository.PurgeByEntity(ctx, entity)
}

// withFailingLedger rebuilds the services over a ledger that can be made to fail.
// The timer store and transport are kept.
func (f *fixture) withFailingLedger() *failingLedgerRepo {
	repo := &failingLedgerRepo{LedgerRepository: f.ledgerRepo}
	f.ledger = NewLedgerService(repo, testLogger())
	f.timers = NewTimerService(f.timerRepo, f.ledger, f.timers.WeeklyEntries(), testZone, testLogger())
	sleep := f.warnings.sleep
	f.warnings = NewWarningService(f.timers, f.ledger, f.transport, f.warnings.cfg, testLogger())
	f.warnings.sleep = sleep
	return repo
}

func newTimer(t *testing.T, name string, intervalSeconds int64, last time.Time, position int) *spawn.FixedIntervalTimer {
	t.Helper()
	timer, err := spawn.NewFixedIntervalTimer(name, intervalSeconds, last)
	if err != nil {
		t.Fatalf("NewFixedIntervalTimer: %v", err)
	}
	timer.Position = position
	return timer
}
