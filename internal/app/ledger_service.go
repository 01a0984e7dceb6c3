// internal/app/ledger_service.go
package app

import (
	"context"
	"fmt"

	"spawn_warning_bot/internal/domain/notification"

	"github.com/sirupsen/logrus"
)

// LedgerService is the notification ledger: the persisted set of warnings already delivered.
// Every call goes to the repository; nothing is cached, so concurrent writers are always observed.
type LedgerService struct {
	repo   notification.LedgerRepository
	logger *logrus.Entry
}

func NewLedgerService(repo notification.LedgerRepository, logger *logrus.Entry) *LedgerService {
	return &LedgerService{repo: repo, logger: logger.WithField("component", "ledger")}
}

func (s *LedgerService) IsSent(ctx context.Context, key notification.Key) (bool, error) {
	sent, err := s.repo.IsSent(ctx, key)
	if err != nil {
		return false, fmt.Errorf("failed to check ledger key %s: %w", key, err)
	}
	return sent, nil
}

// MarkSent records a successful dispatch. It returns only after the write is durable.
// Keys that would not parse back, such as an entity containing the separator, are refused.
func (s *LedgerService) MarkSent(ctx context.Context, key notification.Key) error {
	if _, err := notification.ParseKey(key.String()); err != nil {
		return fmt.Errorf("refusing to record ledger key: %w", err)
	}
	if err := s.repo.MarkSent(ctx, key); err != nil {
		return fmt.Errorf("failed to mark ledger key %s: %w", key, err)
	}
	return nil
}

// PurgeByEntity drops every key that references entity, whatever its source or minute.
func (s *LedgerService) PurgeByEntity(ctx context.Context, entity string) (int64, error) {
	removed, err := s.repo.PurgeByEntity(ctx, entity)
	if err != nil {
		return 0, fmt.Errorf("failed to purge ledger for %q: %w", entity, err)
	}
	s.logger.WithFields(logrus.Fields{"entity": entity, "removed": removed}).Info("Ledger purged for entity")
	return removed, nil
}

// RetentionTarget is the size a trim shrinks the ledger to: three quarters of the cap.
func RetentionTarget(maxSize int64) int64 {
	return maxSize * 3 / 4
}

// Trim evicts the oldest-inserted keys once the ledger holds more than maxSize entries,
// down to RetentionTarget(maxSize). A ledger at or under the cap is left alone.
func (s *LedgerService) Trim(ctx context.Context, maxSize int64) (int64, error) {
	if maxSize <= 0 {
		return 0, fmt.Errorf("ledger max size must be positive, got %d", maxSize)
	}
	count, err := s.repo.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to count ledger entries: %w", err)
	}
	if count <= maxSize {
		return 0, nil
	}

	evict := count - RetentionTarget(maxSize)
	removed, err := s.repo.DeleteOldest(ctx, evict)
	if err != nil {
		return 0, fmt.Errorf("failed to trim ledger: %w", err)
	}
	s.logger.WithFields(logrus.Fields{
		"before":  count,
		"removed": removed,
		"cap":     maxSize,
	}).Info("Ledger trimmed")
	return removed, nil
}
