package memstore

import (
	"context"
	"sync"

	"spawn_warning_bot/internal/domain/notification"
)

// LeaseRepository is a plain read/write register without a conditional write, so callers go
// through the read-after-write confirmation path.
type LeaseRepository struct {
	mu    sync.Mutex
	lease *notification.Lease

	// AfterPut, when set, runs after every write while the lock is not held.
	// Tests use it to interleave a competing writer.
	AfterPut func(l notification.Lease)
}

func NewLeaseRepository() *LeaseRepository {
	return &LeaseRepository{}
}

func (r *LeaseRepository) GetLease(_ context.Context) (*notification.Lease, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.lease == nil {
		return nil, notification.ErrLeaseNotFound
	}
	l := *r.lease
	return &l, nil
}

func (r *LeaseRepository) PutLease(_ context.Context, l notification.Lease) error {
	r.mu.Lock()
	r.lease = &l
	hook := r.AfterPut
	r.mu.Unlock()

	if hook != nil {
		hook(l)
	}
	return nil
}
