package notification

import "context"

// LedgerRepository is the persisted set of warnings that were successfully dispatched.
// Insertion order must be recoverable so trimming can evict oldest-inserted keys first.
type LedgerRepository interface {
	IsSent(ctx context.Context, key Key) (bool, error)
	// MarkSent is idempotent; re-marking an existing key keeps its original insertion position.
	MarkSent(ctx context.Context, key Key) error
	// PurgeByEntity deletes every key for entity regardless of source or minute.
	PurgeByEntity(ctx context.Context, entity string) (int64, error)
	Count(ctx context.Context) (int64, error)
	// DeleteOldest evicts up to n keys in insertion order.
	DeleteOldest(ctx context.Context, n int64) (int64, error)
}
