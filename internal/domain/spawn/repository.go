package spawn

import (
	"context"
	"time"
)

// Edit is one entry of the administrative edit history.
type Edit struct {
	ID                 int64
	TimerName          string
	OldLastOccurrence  time.Time
	NewLastOccurrence  time.Time
	OldIntervalSeconds int64
	NewIntervalSeconds int64
	EditedBy           string
	EditedAt           time.Time
}

// TimerRepository persists fixed-interval timers and their edit history.
type TimerRepository interface {
	ListTimers(ctx context.Context) ([]*FixedIntervalTimer, error) // ordered by Position
	GetTimer(ctx context.Context, name string) (*FixedIntervalTimer, error)
	// InsertTimerIfMissing stores t unless a timer with the same name exists. It reports whether t was inserted.
	InsertTimerIfMissing(ctx context.Context, t *FixedIntervalTimer) (bool, error)
	// UpdateTimer overwrites interval and occurrence pair unconditionally (administrative edits).
	UpdateTimer(ctx context.Context, t *FixedIntervalTimer) error
	// AdvanceTimer writes t only if the stored last occurrence still equals expectedLast.
	AdvanceTimer(ctx context.Context, t *FixedIntervalTimer, expectedLast time.Time) (bool, error)

	RecordEdit(ctx context.Context, e *Edit) error
	ListEdits(ctx context.Context, limit int) ([]*Edit, error) // newest first
}
