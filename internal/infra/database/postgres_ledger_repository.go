package database

import (
	"context"
	"database/sql"
	"fmt"

	"spawn_warning_bot/internal/domain/notification"
)

// PostgresLedgerRepository stores dedup keys; the BIGSERIAL id records insertion order.
type PostgresLedgerRepository struct {
	db *sql.DB
}

func NewPostgresLedgerRepository(db *sql.DB) *PostgresLedgerRepository {
	return &PostgresLedgerRepository{db: db}
}

func (r *PostgresLedgerRepository) IsSent(ctx context.Context, key notification.Key) (bool, error) {
	var sent bool
	query := `SELECT EXISTS (SELECT 1 FROM notification_ledger WHERE dedup_key = $1)`
	if err := r.db.QueryRowContext(ctx, query, key.String()).Scan(&sent); err != nil {
		return false, fmt.Errorf("error checking ledger key: %w", err)
	}
	return sent, nil
}

func (r *PostgresLedgerRepository) MarkSent(ctx context.Context, key notification.Key) error {
	query := `INSERT INTO notification_ledger (dedup_key, source, entity_name, occurrence)
               VALUES ($1, $2, $3, $4)
               ON CONFLICT (dedup_key) DO NOTHING`
	if _, err := r.db.ExecContext(ctx, query, key.String(), string(key.Source), key.Entity, key.Minute); err != nil {
		return fmt.Errorf("error inserting ledger key: %w", err)
	}
	return nil
}

func (r *PostgresLedgerRepository) PurgeByEntity(ctx context.Context, entity string) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM notification_ledger WHERE entity_name = $1`, entity)
	if err != nil {
		return 0, fmt.Errorf("error purging ledger for %q: %w", entity, err)
	}
	return res.RowsAffected()
}

func (r *PostgresLedgerRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM notification_ledger`).Scan(&n); err != nil {
		return 0, fmt.Errorf("error counting ledger: %w", err)
	}
	return n, nil
}

func (r *PostgresLedgerRepository) DeleteOldest(ctx context.Context, n int64) (int64, error) {
	if n <= 0 {
		return 0, nil
	}
	query := `DELETE FROM notification_ledger
               WHERE id IN (SELECT id FROM notification_ledger ORDER BY id ASC LIMIT $1)`
	res, err := r.db.ExecContext(ctx, query, n)
	if err != nil {
		return 0, fmt.Errorf("error trimming ledger: %w", err)
	}
	return res.RowsAffected()
}
