package memstore

import (
	"context"
	"sync"

	"spawn_warning_bot/internal/domain/notification"
)

// LedgerRepository keeps keys in insertion order.
type LedgerRepository struct {
	mu    sync.Mutex
	order []notification.Key
	index map[string]struct{}
}

func NewLedgerRepository() *LedgerRepository {
	return &LedgerRepository{index: make(map[string]struct{})}
}

func (r *LedgerRepository) IsSent(_ context.Context, key notification.Key) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.index[key.String()]
	return ok, nil
}

func (r *LedgerRepository) MarkSent(_ context.Context, key notification.Key) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.index[key.String()]; ok {
		return nil
	}
	r.index[key.String()] = struct{}{}
	r.order = append(r.order, key)
	return nil
}

func (r *LedgerRepository) PurgeByEntity(_ context.Context, entity string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	kept := r.order[:0]
	var removed int64
	for _, k := range r.order {
		if k.Entity == entity {
			delete(r.index, k.String())
			removed++
			continue
		}
		kept = append(kept, k)
	}
	r.order = kept
	return removed, nil
}

func (r *LedgerRepository) Count(_ context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return int64(len(r.order)), nil
}

func (r *LedgerRepository) DeleteOldest(_ context.Context, n int64) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if n <= 0 {
		return 0, nil
	}
	if n > int64(len(r.order)) {
		n = int64(len(r.order))
	}
	for _, k := range r.order[:n] {
		delete(r.index, k.String())
	}
	r.order = append([]notification.Key(nil), r.order[n:]...)
	return n, nil
}

// Keys returns a snapshot in insertion order.
func (r *LedgerRepository) Keys() []notification.Key {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]notification.Key(nil), r.order...)
}
