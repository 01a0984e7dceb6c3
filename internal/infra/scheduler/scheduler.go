package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"spawn_warning_bot/internal/app" // For PollService interface

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// PollScheduler invokes one poll tick every interval. A tick that overruns the interval causes
// the next one to be skipped rather than run concurrently.
type PollScheduler struct {
	cronEngine  *cron.Cron
	poller      app.PollService
	logger      *logrus.Entry
	interval    time.Duration
	tickTimeout time.Duration

	running sync.Mutex
	initial sync.WaitGroup
}

func NewPollScheduler(
	poller app.PollService,
	logger *logrus.Entry,
	interval time.Duration,
	loc *time.Location,
) *PollScheduler {
	cronLogger := cron.PrintfLogger(logger.WithField("component", "cron"))
	return &PollScheduler{
		cronEngine: cron.New(
			cron.WithLocation(loc),
			cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)),
		),
		poller:      poller,
		logger:      logger.WithField("component", "scheduler"),
		interval:    interval,
		tickTimeout: interval,
	}
}

// Spec is the cron expression used for the poll job.
func (s *PollScheduler) Spec() string {
	return fmt.Sprintf("@every %s", s.interval)
}

func (s *PollScheduler) Start() error {
	s.logger.WithField("spec", s.Spec()).Info("Starting poll scheduler")

	if _, err := s.cronEngine.AddFunc(s.Spec(), s.RunOnce); err != nil {
		return fmt.Errorf("could not add poll job: %w", err)
	}

	s.cronEngine.Start()
	// do not wait a whole interval for the first tick after a restart
	s.initial.Add(1)
	go func() {
		defer s.initial.Done()
		s.RunOnce()
	}()
	return nil
}

// RunOnce executes a single tick with a timeout of one poll interval.
func (s *PollScheduler) RunOnce() {
	if !s.running.TryLock() {
		s.logger.Debug("Previous tick still running, skipping")
		return
	}
	defer s.running.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), s.tickTimeout)
	defer cancel()

	report, err := s.poller.Tick(ctx)
	if err != nil {
		s.logger.WithError(err).Error("Poll tick failed")
		return
	}
	s.logger.WithFields(logrus.Fields{
		"leader":   report.Leader,
		"advanced": report.Advanced,
		"sent":     report.Dispatch.Sent,
		"trimmed":  report.Trimmed,
	}).Debug("Poll tick finished")
}

func (s *PollScheduler) Stop() {
	s.logger.Info("Stopping poll scheduler...")
	ctx := s.cronEngine.Stop() // Stops the scheduler from adding new jobs, waits for running jobs.
	<-ctx.Done()
	s.initial.Wait()
	s.logger.Info("Poll scheduler gracefully stopped.")
}
