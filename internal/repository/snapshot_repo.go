package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Snapshot is a persisted copy of the tracked conversion state.
type Snapshot struct {
	ConversionDate         int64
	ConversionRate         float64
	CurrentCurrency        string
	NativeCurrency         string
	PendingCurrentCurrency string
	PendingNativeCurrency  string
	USDConversionRate      *float64
	CreatedAt              time.Time
}

// SnapshotRepository defines DB operations for conversion state snapshots.
type SnapshotRepository interface {
	Save(ctx context.Context, s Snapshot) error
	Latest(ctx context.Context) (*Snapshot, error)
}

// PostgresSnapshotRepository is an implementation of SnapshotRepository using PostgreSQL.
type PostgresSnapshotRepository struct {
	db *sql.DB
}

// NewPostgresSnapshotRepository creates a new PostgresSnapshotRepository.
func NewPostgresSnapshotRepository(db *sql.DB) SnapshotRepository {
	return &PostgresSnapshotRepository{db: db}
}

// Save appends a snapshot row.
func (r *PostgresSnapshotRepository) Save(ctx context.Context, s Snapshot) error {
	query := `INSERT INTO rate_snapshots
                (current_currency, native_currency, conversion_rate, usd_conversion_rate,
                 pending_current_currency, pending_native_currency, conversion_date)
              VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := r.db.ExecContext(ctx, query,
		s.CurrentCurrency, s.NativeCurrency, s.ConversionRate, s.USDConversionRate,
		s.PendingCurrentCurrency, s.PendingNativeCurrency, s.ConversionDate)
	if err != nil {
		return fmt.Errorf("failed to save snapshot: %w", err)
	}
	return nil
}

// Latest returns the most recent snapshot, or (nil, nil) when none exists.
func (r *PostgresSnapshotRepository) Latest(ctx context.Context) (*Snapshot, error) {
	query := `SELECT current_currency, native_currency, conversion_rate, usd_conversion_rate,
                     pending_current_currency, pending_native_currency, conversion_date, created_at
              FROM rate_snapshots
              ORDER BY created_at DESC, id DESC
              LIMIT 1`

	row := r.db.QueryRowContext(ctx, query)

	var s Snapshot
	var usd sql.NullFloat64
	err := row.Scan(&s.CurrentCurrency, &s.NativeCurrency, &s.ConversionRate, &usd,
		&s.PendingCurrentCurrency, &s.PendingNativeCurrency, &s.ConversionDate, &s.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	if usd.Valid {
		s.USDConversionRate = &usd.Float64
	}
	return &s, nil
}
