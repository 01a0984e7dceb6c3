package notification

import (
	"context"
	"fmt"
	"time"
)

var ErrLeaseNotFound = fmt.Errorf("sender lease not found")

// Lease is the time-bounded right of one instance to dispatch warnings.
type Lease struct {
	Owner     string
	ExpiresAt time.Time
}

type LeaseState int

const (
	LeaseUnheld LeaseState = iota
	LeaseHeldValid
	LeaseHeldExpired
)

func (s LeaseState) String() string {
	switch s {
	case LeaseUnheld:
		return "unheld"
	case LeaseHeldValid:
		return "held"
	case LeaseHeldExpired:
		return "expired"
	default:
		return fmt.Sprintf("LeaseState(%d)", int(s))
	}
}

// StateOf classifies a stored lease record; nil means no record. A lease expiring exactly at now is expired.
func StateOf(l *Lease, now time.Time) LeaseState {
	if l == nil || l.Owner == "" {
		return LeaseUnheld
	}
	if !l.ExpiresAt.After(now) {
		return LeaseHeldExpired
	}
	return LeaseHeldValid
}

// CanAcquire reports whether owner may write the lease given the current record.
func CanAcquire(l *Lease, owner string, now time.Time) bool {
	return StateOf(l, now) != LeaseHeldValid || l.Owner == owner
}

// LeaseRepository stores the single sender lease record.
type LeaseRepository interface {
	// GetLease returns ErrLeaseNotFound when no record exists.
	GetLease(ctx context.Context) (*Lease, error)
	PutLease(ctx context.Context, l Lease) error
}

// ConditionalLeaseRepository is implemented by stores that can perform the acquisition rule as one
// atomic conditional write. AcquireLease writes {owner, expiresAt} only when CanAcquire holds for
// the stored record at now, and reports whether it did.
type ConditionalLeaseRepository interface {
	LeaseRepository
	AcquireLease(ctx context.Context, owner string, now, expiresAt time.Time) (bool, error)
}
