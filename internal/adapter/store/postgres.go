package store

import (
	"context"
	"errors"
	"time"

	"github.com/berfenger/gridwatch/internal/core/domain"
	"github.com/berfenger/gridwatch/internal/core/port"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const energySamplesSchema = `
CREATE TABLE IF NOT EXISTS energy_samples (
	ts                TIMESTAMPTZ PRIMARY KEY,
	total_imported_wh BIGINT NOT NULL,
	total_exported_wh BIGINT NOT NULL
)`

// PostgresStore persists energy samples in a single append-only table.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// EnsureSchema creates the samples table when missing. Called once at boot.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, energySamplesSchema)
	return err
}

func (s *PostgresStore) Append(ctx context.Context, sample domain.CumulativeEnergySample) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO energy_samples (ts, total_imported_wh, total_exported_wh) VALUES ($1, $2, $3)`,
		sample.Timestamp, int64(sample.TotalImportedWh), int64(sample.TotalExportedWh))
	return err
}

func (s *PostgresStore) Latest(ctx context.Context) (*domain.CumulativeEnergySample, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT ts, total_imported_wh, total_exported_wh FROM energy_samples ORDER BY ts DESC LIMIT 1`)
	sample, err := scanSample(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return sample, nil
}

func (s *PostgresStore) Range(ctx context.Context, start, end time.Time) ([]domain.CumulativeEnergySample, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT ts, total_imported_wh, total_exported_wh FROM energy_samples
		 WHERE ts >= $1 AND ts < $2 ORDER BY ts`, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.CumulativeEnergySample
	for rows.Next() {
		sample, err := scanSample(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *sample)
	}
	return out, rows.Err()
}

func scanSample(row pgx.Row) (*domain.CumulativeEnergySample, error) {
	var ts time.Time
	var imported, exported int64
	if err := row.Scan(&ts, &imported, &exported); err != nil {
		return nil, err
	}
	return &domain.CumulativeEnergySample{
		Timestamp:       ts,
		TotalImportedWh: uint64(imported),
		TotalExportedWh: uint64(exported),
	}, nil
}

// ensure interface compliance
var _ port.TimeSeriesStore = (*PostgresStore)(nil)
