package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// HistoryRecord is one journal row: a single pair measurement from one refresh.
type HistoryRecord struct {
	ID        string
	RefreshID string
	Code      string
	Base      string
	Rate      float64
	Source    string
	FetchedAt time.Time
}

// HistoryRepository defines DB operations for the rate history journal.
type HistoryRepository interface {
	InsertBatch(ctx context.Context, records []HistoryRecord) error
	ListByCode(ctx context.Context, code string, limit int) ([]HistoryRecord, error)
}

// PostgresHistoryRepository is an implementation of HistoryRepository using PostgreSQL.
type PostgresHistoryRepository struct {
	db *sql.DB
}

// NewPostgresHistoryRepository creates a new PostgresHistoryRepository.
func NewPostgresHistoryRepository(db *sql.DB) HistoryRepository {
	return &PostgresHistoryRepository{db: db}
}

// InsertBatch writes all records of one refresh in a single transaction.
func (r *PostgresHistoryRepository) InsertBatch(ctx context.Context, records []HistoryRecord) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin history insert: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	query := `INSERT INTO rate_history (id, refresh_id, code, base, rate, source, fetched_at)
              VALUES ($1::uuid, $2::uuid, $3, $4, $5::numeric, $6, $7)`
	for _, rec := range records {
		if _, err := tx.ExecContext(ctx, query,
			rec.ID, rec.RefreshID, rec.Code, rec.Base, rec.Rate, rec.Source, rec.FetchedAt,
		); err != nil {
			return fmt.Errorf("insert history record %s/%s: %w", rec.Code, rec.Base, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit history insert: %w", err)
	}
	return nil
}

// ListByCode returns the newest journal rows for a currency code.
func (r *PostgresHistoryRepository) ListByCode(ctx context.Context, code string, limit int) ([]HistoryRecord, error) {
	query := `SELECT id::text, refresh_id::text, code, base, rate, source, fetched_at
              FROM rate_history
              WHERE code = $1
              ORDER BY fetched_at DESC
              LIMIT $2`

	rows, err := r.db.QueryContext(ctx, query, code, limit)
	if err != nil {
		return nil, fmt.Errorf("list history for %s: %w", code, err)
	}
	defer rows.Close() //nolint:errcheck // best-effort close

	var out []HistoryRecord
	for rows.Next() {
		var rec HistoryRecord
		if err := rows.Scan(&rec.ID, &rec.RefreshID, &rec.Code, &rec.Base, &rec.Rate, &rec.Source, &rec.FetchedAt); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
