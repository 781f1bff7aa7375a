package incc

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/wonny/incc/backend/pkg/database"
)

// PGMirror keeps a copy of the series in PostgreSQL for reporting queries.
// The CSV snapshot stays the durable source of truth.
type PGMirror struct {
	pool *pgxpool.Pool
}

// NewPGMirror creates a mirror backed by pool
func NewPGMirror(pool *pgxpool.Pool) *PGMirror {
	return &PGMirror{pool: pool}
}

// EnsureSchema creates the mirror table if needed
func (m *PGMirror) EnsureSchema(ctx context.Context) error {
	_, err := m.pool.Exec(ctx, `
		CREATE SCHEMA IF NOT EXISTS incc;
		CREATE TABLE IF NOT EXISTS incc.index_points (
			ref_month  DATE PRIMARY KEY,
			value      NUMERIC(14, 4) NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
	`)
	if err != nil {
		return fmt.Errorf("create incc schema: %w", err)
	}
	return nil
}

// ReplaceSeries rewrites the table with series in one transaction
func (m *PGMirror) ReplaceSeries(ctx context.Context, series Series) error {
	return database.InTx(ctx, m.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM incc.index_points`); err != nil {
			return fmt.Errorf("clear mirror: %w", err)
		}

		batch := &pgx.Batch{}
		for _, p := range series.points {
			batch.Queue(`
				INSERT INTO incc.index_points (ref_month, value)
				VALUES ($1, $2::text::numeric)
			`, p.Date, p.Value.String())
		}

		results := tx.SendBatch(ctx, batch)
		for range series.points {
			if _, err := results.Exec(); err != nil {
				results.Close()
				return fmt.Errorf("insert mirror point: %w", err)
			}
		}
		if err := results.Close(); err != nil {
			return fmt.Errorf("close mirror batch: %w", err)
		}
		return nil
	})
}

// LoadSeries reads the mirrored series
func (m *PGMirror) LoadSeries(ctx context.Context) (Series, error) {
	rows, err := m.pool.Query(ctx, `
		SELECT ref_month, value::text
		FROM incc.index_points
		ORDER BY ref_month ASC
	`)
	if err != nil {
		return Series{}, fmt.Errorf("query mirror: %w", err)
	}
	defer rows.Close()

	var points []IndexPoint
	for rows.Next() {
		var (
			month time.Time
			raw   string
		)
		if err := rows.Scan(&month, &raw); err != nil {
			return Series{}, fmt.Errorf("scan mirror row: %w", err)
		}
		value, err := decimal.NewFromString(raw)
		if err != nil {
			return Series{}, fmt.Errorf("mirror value %q: %w", raw, err)
		}
		points = append(points, IndexPoint{Date: month, Value: value})
	}
	if err := rows.Err(); err != nil {
		return Series{}, err
	}

	return NewSeries(points), nil
}
