// Package memstore holds process-local repositories. They give a single instance a working store
// without PostgreSQL and back the service tests; they provide no cross-process coordination.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"spawn_warning_bot/internal/domain/spawn"
)

type TimerRepository struct {
	mu     sync.Mutex
	timers map[string]spawn.FixedIntervalTimer
	edits  []spawn.Edit
	nextID int64
}

func NewTimerRepository() *TimerRepository {
	return &TimerRepository{timers: make(map[string]spawn.FixedIntervalTimer)}
}

func (r *TimerRepository) ListTimers(_ context.Context) ([]*spawn.FixedIntervalTimer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]*spawn.FixedIntervalTimer, 0, len(r.timers))
	for _, t := range r.timers {
		t := t
		out = append(out, &t)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Position != out[j].Position {
			return out[i].Position < out[j].Position
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

func (r *TimerRepository) GetTimer(_ context.Context, name string) (*spawn.FixedIntervalTimer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.timers[name]
	if !ok {
		return nil, spawn.ErrTimerNotFound
	}
	return &t, nil
}

func (r *TimerRepository) InsertTimerIfMissing(_ context.Context, t *spawn.FixedIntervalTimer) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.timers[t.Name]; ok {
		return false, nil
	}
	t.UpdatedAt = time.Now()
	r.timers[t.Name] = *t
	return true, nil
}

func (r *TimerRepository) UpdateTimer(_ context.Context, t *spawn.FixedIntervalTimer) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cur, ok := r.timers[t.Name]
	if !ok {
		return spawn.ErrTimerNotFound
	}
	cur.IntervalSeconds = t.IntervalSeconds
	cur.LastOccurrence = t.LastOccurrence
	cur.NextOccurrence = t.NextOccurrence
	cur.UpdatedAt = time.Now()
	r.timers[t.Name] = cur
	t.UpdatedAt = cur.UpdatedAt
	return nil
}

func (r *TimerRepository) AdvanceTimer(_ context.Context, t *spawn.FixedIntervalTimer, expectedLast time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cur, ok := r.timers[t.Name]
	if !ok {
		return false, spawn.ErrTimerNotFound
	}
	if !cur.LastOccurrence.Equal(expectedLast) || cur.IntervalSeconds != t.IntervalSeconds {
		return false, nil
	}
	cur.LastOccurrence = t.LastOccurrence
	cur.NextOccurrence = t.NextOccurrence
	cur.UpdatedAt = time.Now()
	r.timers[t.Name] = cur
	return true, nil
}

func (r *TimerRepository) RecordEdit(_ context.Context, e *spawn.Edit) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextID++
	e.ID = r.nextID
	if e.EditedAt.IsZero() {
		e.EditedAt = time.Now()
	}
	r.edits = append(r.edits, *e)
	return nil
}

func (r *TimerRepository) ListEdits(_ context.Context, limit int) ([]*spawn.Edit, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]*spawn.Edit, 0, limit)
	for i := len(r.edits) - 1; i >= 0 && len(out) < limit; i-- {
		e := r.edits[i]
		out = append(out, &e)
	}
	return out, nil
}
