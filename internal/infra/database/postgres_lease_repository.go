package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"spawn_warning_bot/internal/domain/notification"
)

const defaultLeaseName = "warning_sender"

// PostgresLeaseRepository keeps the sender lease in one row and supports the atomic
// conditional acquisition through INSERT .. ON CONFLICT .. WHERE.
type PostgresLeaseRepository struct {
	db   *sql.DB
	name string
}

func NewPostgresLeaseRepository(db *sql.DB) *PostgresLeaseRepository {
	return &PostgresLeaseRepository{db: db, name: defaultLeaseName}
}

func (r *PostgresLeaseRepository) GetLease(ctx context.Context) (*notification.Lease, error) {
	l := &notification.Lease{}
	query := `SELECT owner, expires_at FROM sender_lease WHERE name = $1`
	err := r.db.QueryRowContext(ctx, query, r.name).Scan(&l.Owner, &l.ExpiresAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, notification.ErrLeaseNotFound
		}
		return nil, fmt.Errorf("error reading lease: %w", err)
	}
	return l, nil
}

func (r *PostgresLeaseRepository) PutLease(ctx context.Context, l notification.Lease) error {
	query := `INSERT INTO sender_lease (name, owner, expires_at) VALUES ($1, $2, $3)
               ON CONFLICT (name) DO UPDATE SET owner = EXCLUDED.owner, expires_at = EXCLUDED.expires_at`
	if _, err := r.db.ExecContext(ctx, query, r.name, l.Owner, l.ExpiresAt); err != nil {
		return fmt.Errorf("error writing lease: %w", err)
	}
	return nil
}

func (r *PostgresLeaseRepository) AcquireLease(ctx context.Context, owner string, now, expiresAt time.Time) (bool, error) {
	query := `INSERT INTO sender_lease (name, owner, expires_at) VALUES ($1, $2, $3)
               ON CONFLICT (name) DO UPDATE SET owner = EXCLUDED.owner, expires_at = EXCLUDED.expires_at
               WHERE sender_lease.expires_at <= $4 OR sender_lease.owner = EXCLUDED.owner
               RETURNING owner`
	var got string
	err := r.db.QueryRowContext(ctx, query, r.name, owner, expiresAt, now).Scan(&got)
	if err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("error acquiring lease: %w", err)
	}
	return got == owner, nil
}
