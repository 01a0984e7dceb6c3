package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"spawn_warning_bot/internal/domain/spawn"
)

type PostgresTimerRepository struct {
	db *sql.DB
}

func NewPostgresTimerRepository(db *sql.DB) *PostgresTimerRepository {
	return &PostgresTimerRepository{db: db}
}

const timerColumns = `name, position, interval_minutes, last_occurrence, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTimer(row rowScanner) (*spawn.FixedIntervalTimer, error) {
	var (
		t       spawn.FixedIntervalTimer
		minutes int64
		last    time.Time
	)
	if err := row.Scan(&t.Name, &t.Position, &minutes, &last, &t.UpdatedAt); err != nil {
		return nil, err
	}
	t.IntervalSeconds = minutes * 60
	t.SetLastOccurrence(last)
	return &t, nil
}

func (r *PostgresTimerRepository) ListTimers(ctx context.Context) ([]*spawn.FixedIntervalTimer, error) {
	query := `SELECT ` + timerColumns + ` FROM spawn_timers ORDER BY position, name`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("error listing timers: %w", err)
	}
	defer rows.Close()

	timers := make([]*spawn.FixedIntervalTimer, 0)
	for rows.Next() {
		t, err := scanTimer(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning timer: %w", err)
		}
		timers = append(timers, t)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating timers: %w", err)
	}
	return timers, nil
}

func (r *PostgresTimerRepository) GetTimer(ctx context.Context, name string) (*spawn.FixedIntervalTimer, error) {
	query := `SELECT ` + timerColumns + ` FROM spawn_timers WHERE name = $1`
	t, err := scanTimer(r.db.QueryRowContext(ctx, query, name))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, spawn.ErrTimerNotFound
		}
		return nil, fmt.Errorf("error getting timer %q: %w", name, err)
	}
	return t, nil
}

func (r *PostgresTimerRepository) InsertTimerIfMissing(ctx context.Context, t *spawn.FixedIntervalTimer) (bool, error) {
	query := `INSERT INTO spawn_timers (name, position, interval_minutes, last_occurrence)
               VALUES ($1, $2, $3, $4)
               ON CONFLICT (name) DO NOTHING`
	res, err := r.db.ExecContext(ctx, query, t.Name, t.Position, t.IntervalMinutes(), t.LastOccurrence)
	if err != nil {
		return false, fmt.Errorf("error inserting timer %q: %w", t.Name, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("error reading insert result for %q: %w", t.Name, err)
	}
	return n == 1, nil
}

func (r *PostgresTimerRepository) UpdateTimer(ctx context.Context, t *spawn.FixedIntervalTimer) error {
	query := `UPDATE spawn_timers
               SET interval_minutes = $1, last_occurrence = $2, updated_at = NOW()
               WHERE name = $3
               RETURNING updated_at`
	err := r.db.QueryRowContext(ctx, query, t.IntervalMinutes(), t.LastOccurrence, t.Name).Scan(&t.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return spawn.ErrTimerNotFound
		}
		return fmt.Errorf("error updating timer %q: %w", t.Name, err)
	}
	return nil
}

func (r *PostgresTimerRepository) AdvanceTimer(ctx context.Context, t *spawn.FixedIntervalTimer, expectedLast time.Time) (bool, error) {
	query := `UPDATE spawn_timers
               SET last_occurrence = $1, updated_at = NOW()
               WHERE name = $2 AND last_occurrence = $3 AND interval_minutes = $4`
	res, err := r.db.ExecContext(ctx, query, t.LastOccurrence, t.Name, expectedLast, t.IntervalMinutes())
	if err != nil {
		return false, fmt.Errorf("error advancing timer %q: %w", t.Name, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("error reading advance result for %q: %w", t.Name, err)
	}
	return n == 1, nil
}

func (r *PostgresTimerRepository) RecordEdit(ctx context.Context, e *spawn.Edit) error {
	query := `INSERT INTO spawn_timer_edits
               (timer_name, old_last_occurrence, new_last_occurrence, old_interval_minutes, new_interval_minutes, edited_by)
               VALUES ($1, $2, $3, $4, $5, $6)
               RETURNING id, edited_at`
	err := r.db.QueryRowContext(ctx, query,
		e.TimerName, e.OldLastOccurrence, e.NewLastOccurrence,
		e.OldIntervalSeconds/60, e.NewIntervalSeconds/60, e.EditedBy,
	).Scan(&e.ID, &e.EditedAt)
	if err != nil {
		return fmt.Errorf("error recording edit for %q: %w", e.TimerName, err)
	}
	return nil
}

func (r *PostgresTimerRepository) ListEdits(ctx context.Context, limit int) ([]*spawn.Edit, error) {
	query := `SELECT id, timer_name, old_last_occurrence, new_last_occurrence,
                     old_interval_minutes, new_interval_minutes, edited_by, edited_at
               FROM spawn_timer_edits ORDER BY id DESC LIMIT $1`

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("error listing edits: %w", err)
	}
	defer rows.Close()

	edits := make([]*spawn.Edit, 0, limit)
	for rows.Next() {
		e := &spawn.Edit{}
		var oldMinutes, newMinutes int64
		if err := rows.Scan(&e.ID, &e.TimerName, &e.OldLastOccurrence, &e.NewLastOccurrence,
			&oldMinutes, &newMinutes, &e.EditedBy, &e.EditedAt); err != nil {
			return nil, fmt.Errorf("error scanning edit: %w", err)
		}
		e.OldIntervalSeconds = oldMinutes * 60
		e.NewIntervalSeconds = newMinutes * 60
		edits = append(edits, e)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating edits: %w", err)
	}
	return edits, nil
}
