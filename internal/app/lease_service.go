package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"spawn_warning_bot/internal/domain/notification"

	"github.com/sirupsen/logrus"
)

// SenderLease decides which instance may dispatch warnings. It only reduces redundant sends;
// the ledger is what prevents duplicates when two instances briefly both believe they hold it.
type SenderLease struct {
	repo   notification.LeaseRepository
	logger *logrus.Entry

	mu   sync.Mutex
	held bool
}

func NewSenderLease(repo notification.LeaseRepository, logger *logrus.Entry) *SenderLease {
	return &SenderLease{repo: repo, logger: logger.WithField("component", "lease")}
}

// TryAcquire acquires or renews the lease for selfID until now+ttl.
//
// Stores with an atomic conditional write decide in one call. Otherwise the record is read,
// written only when unheld, expired or already ours, and read back: acquisition counts only if
// the confirmed owner is selfID. A valid lease held by someone else is never overwritten.
func (s *SenderLease) TryAcquire(ctx context.Context, selfID string, now time.Time, ttl time.Duration) (bool, error) {
	if selfID == "" {
		return false, fmt.Errorf("instance id must not be empty")
	}
	if ttl <= 0 {
		return false, fmt.Errorf("lease ttl must be positive, got %s", ttl)
	}
	expiresAt := now.Add(ttl)

	var (
		ok  bool
		err error
	)
	if cond, isCond := s.repo.(notification.ConditionalLeaseRepository); isCond {
		ok, err = cond.AcquireLease(ctx, selfID, now, expiresAt)
		if err != nil {
			return false, fmt.Errorf("failed to acquire lease: %w", err)
		}
	} else {
		ok, err = s.acquireOptimistic(ctx, selfID, now, expiresAt)
		if err != nil {
			return false, err
		}
	}

	s.noteTransition(selfID, ok, expiresAt)
	return ok, nil
}

func (s *SenderLease) acquireOptimistic(ctx context.Context, selfID string, now, expiresAt time.Time) (bool, error) {
	current, err := s.read(ctx)
	if err != nil {
		return false, err
	}
	if !notification.CanAcquire(current, selfID, now) {
		s.logger.WithFields(logrus.Fields{
			"owner":      current.Owner,
			"expires_at": current.ExpiresAt,
		}).Debug("Lease held by another instance")
		return false, nil
	}

	if err := s.repo.PutLease(ctx, notification.Lease{Owner: selfID, ExpiresAt: expiresAt}); err != nil {
		return false, fmt.Errorf("failed to write lease: %w", err)
	}

	confirmed, err := s.read(ctx)
	if err != nil {
		return false, err
	}
	if confirmed == nil || confirmed.Owner != selfID {
		s.logger.Debug("Lease write was overtaken by another instance")
		return false, nil
	}
	return true, nil
}

func (s *SenderLease) read(ctx context.Context) (*notification.Lease, error) {
	l, err := s.repo.GetLease(ctx)
	if errors.Is(err, notification.ErrLeaseNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read lease: %w", err)
	}
	return l, nil
}

func (s *SenderLease) noteTransition(selfID string, held bool, expiresAt time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if held == s.held {
		return
	}
	s.held = held
	entry := s.logger.WithField("instance_id", selfID)
	if held {
		entry.WithField("expires_at", expiresAt).Info("Sender lease acquired")
	} else {
		entry.Info("Sender lease lost")
	}
}
