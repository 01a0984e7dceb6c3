package app

import (
	"context"
	"fmt"
	"time"

	"spawn_warning_bot/internal/domain/spawn"

	"github.com/sirupsen/logrus"
)

// PollService is what the scheduler drives on every tick.
type PollService interface {
	Tick(ctx context.Context) (TickReport, error)
}

type PollConfig struct {
	InstanceID    string
	LeaseTTL      time.Duration
	LedgerMaxSize int64
}

// TickReport summarizes one tick.
type TickReport struct {
	Advanced int
	Leader   bool
	Dispatch DispatchResult
	Trimmed  int64
}

// Poller runs one tick: catch up timers, take or renew the lease, and only if it is held,
// dispatch warnings and trim the ledger. Lease ownership is checked once per tick.
type Poller struct {
	clock    spawn.Clock
	timers   *TimerService
	lease    *SenderLease
	warnings *WarningService
	ledger   *LedgerService
	cfg      PollConfig
	logger   *logrus.Entry
}

func NewPoller(
	clock spawn.Clock,
	timers *TimerService,
	lease *SenderLease,
	warnings *WarningService,
	ledger *LedgerService,
	cfg PollConfig,
	logger *logrus.Entry,
) *Poller {
	return &Poller{
		clock:    clock,
		timers:   timers,
		lease:    lease,
		warnings: warnings,
		ledger:   ledger,
		cfg:      cfg,
		logger:   logger.WithFields(logrus.Fields{"component": "poller", "instance_id": cfg.InstanceID}),
	}
}

func (p *Poller) Tick(ctx context.Context) (TickReport, error) {
	var report TickReport
	now := p.clock.Now()

	advanced, err := p.timers.CatchUp(ctx, now)
	report.Advanced = advanced
	if err != nil {
		// dispatch computes occurrences in memory, so a failed write-back does not block it
		p.logger.WithError(err).Error("Timer catch-up failed")
	}

	leader, err := p.lease.TryAcquire(ctx, p.cfg.InstanceID, now, p.cfg.LeaseTTL)
	if err != nil {
		return report, fmt.Errorf("lease check failed, skipping dispatch: %w", err)
	}
	report.Leader = leader
	if !leader {
		p.logger.Debug("Not the sender this tick")
		return report, nil
	}

	report.Dispatch, err = p.warnings.DispatchWarnings(ctx, now)
	if err != nil {
		return report, fmt.Errorf("warning dispatch failed: %w", err)
	}

	report.Trimmed, err = p.ledger.Trim(ctx, p.cfg.LedgerMaxSize)
	if err != nil {
		p.logger.WithError(err).Error("Ledger trim failed")
	}

	if report.Dispatch.Due > 0 {
		p.logger.WithFields(logrus.Fields{
			"due":     report.Dispatch.Due,
			"sent":    report.Dispatch.Sent,
			"skipped": report.Dispatch.Skipped,
			"failed":  report.Dispatch.Failed,
		}).Info("Dispatch pass finished")
	}
	return report, nil
}
