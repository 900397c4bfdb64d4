package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

var (
	// ErrNotConfigured indicates the storage pool was not initialised.
	ErrNotConfigured = errors.New("storage: pool not configured")
)

const (
	insertBatchSQL = `INSERT INTO batches (command, source)
    VALUES ($1, $2)
    RETURNING id, created_at;`

	listRecentFlaggedSQL = `SELECT
        b.id,
        b.created_at,
        s.run_id,
        s.ofp,
        s.test_case,
        s.label,
        s.mean_voltage,
        s.variance,
        s.threshold_mode,
        s.flag_reasons
    FROM segment_results s
    JOIN batches b ON b.id = s.batch_id
    WHERE s.flagged
    ORDER BY b.created_at DESC, s.run_id
    LIMIT $1;`

	countFlipsSQL = `SELECT COUNT(*) FROM bus_flips WHERE batch_id = $1;`
)

var segmentColumns = []string{
	"batch_id", "run_id", "ofp", "test_case", "unit_id", "station", "save", "test_run", "dc_folder",
	"label", "voltage_column", "n_points", "mean_voltage", "std", "variance", "iqr", "abs_slope",
	"r_squared", "threshold_mode", "flagged", "flag_reasons",
}

var thresholdColumns = []string{"batch_id", "ofp", "test_case", "metric", "min_threshold", "max_threshold"}

var flipColumns = []string{
	"batch_id", "unit_id", "station", "save", "bus_transition", "msg_type",
	"timestamp_bus_a", "timestamp_bus_b", "gap_ms", "decoded_description",
}

// SegmentStore persists voltage analysis batches.
type SegmentStore interface {
	SaveSegmentBatch(ctx context.Context, source string, segments []SegmentRow, thresholds []ThresholdRow) (Batch, error)
	ListRecentFlagged(ctx context.Context, limit int) ([]FlaggedSegment, error)
}

// FlipStore persists bus flip batches.
type FlipStore interface {
	SaveFlipBatch(ctx context.Context, source string, flips []FlipRow) (Batch, error)
	CountFlips(ctx context.Context, batchID int64) (int64, error)
}

// Store aggregates access to analysis batches.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore wires a pgx pool into a Store.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

func (s *Store) getPool() (*pgxpool.Pool, error) {
	if s == nil || s.pool == nil {
		return nil, ErrNotConfigured
	}
	return s.pool, nil
}

// SaveSegmentBatch stores every record and derived threshold of one voltage
// analysis in a single transaction.
func (s *Store) SaveSegmentBatch(ctx context.Context, source string, segments []SegmentRow, thresholds []ThresholdRow) (Batch, error) {
	var batch Batch
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		var err error
		batch, err = insertBatch(ctx, tx, "voltage", source)
		if err != nil {
			return err
		}

		rows := make([][]any, len(segments))
		for i, r := range segments {
			rows[i] = []any{
				batch.ID, r.RunID, r.OFP, r.TestCase, r.UnitID, r.Station, r.Save, r.TestRun, r.DCFolder,
				r.Label, r.VoltageColumn, r.Points, r.MeanVoltage, r.Std, r.Variance, r.IQR, r.AbsSlope,
				r.RSquared, r.Mode, r.Flagged, r.FlagReasons,
			}
		}
		if _, err := tx.CopyFrom(ctx, pgx.Identifier{"segment_results"}, segmentColumns, pgx.CopyFromRows(rows)); err != nil {
			return fmt.Errorf("copy segment results: %w", err)
		}

		trows := make([][]any, len(thresholds))
		for i, r := range thresholds {
			trows[i] = []any{batch.ID, r.OFP, r.TestCase, r.Metric, r.Min, r.Max}
		}
		if _, err := tx.CopyFrom(ctx, pgx.Identifier{"dynamic_thresholds"}, thresholdColumns, pgx.CopyFromRows(trows)); err != nil {
			return fmt.Errorf("copy dynamic thresholds: %w", err)
		}
		return nil
	})
	if err != nil {
		return Batch{}, err
	}
	return batch, nil
}

// SaveFlipBatch stores the flips of one detection run.
func (s *Store) SaveFlipBatch(ctx context.Context, source string, flips []FlipRow) (Batch, error) {
	var batch Batch
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		var err error
		batch, err = insertBatch(ctx, tx, "flips", source)
		if err != nil {
			return err
		}
		_, err = tx.CopyFrom(ctx, pgx.Identifier{"bus_flips"}, flipColumns,
			pgx.CopyFromSlice(len(flips), func(i int) ([]any, error) {
				f := flips[i]
				return []any{
					batch.ID, f.UnitID, f.Station, f.Save, f.Transition, f.MsgType,
					numeric(f.TimestampBusA), numeric(f.TimestampBusB), numeric(f.GapMS), f.Description,
				}, nil
			}))
		if err != nil {
			return fmt.Errorf("copy bus flips: %w", err)
		}
		return nil
	})
	if err != nil {
		return Batch{}, err
	}
	return batch, nil
}

// ListRecentFlagged lists flagged segments, newest batch first.
func (s *Store) ListRecentFlagged(ctx context.Context, limit int) ([]FlaggedSegment, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listRecentFlaggedSQL, limit)
	if queryErr != nil {
		return nil, fmt.Errorf("list recent flagged: %w", queryErr)
	}
	defer rows.Close()

	out := make([]FlaggedSegment, 0, limit)
	for rows.Next() {
		var rec FlaggedSegment
		if err := rows.Scan(
			&rec.BatchID,
			&rec.CreatedAt,
			&rec.RunID,
			&rec.OFP,
			&rec.TestCase,
			&rec.Label,
			&rec.MeanVoltage,
			&rec.Variance,
			&rec.Mode,
			&rec.FlagReasons,
		); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return out, nil
}

// CountFlips counts the flips stored for a batch.
func (s *Store) CountFlips(ctx context.Context, batchID int64) (int64, error) {
	pool, err := s.getPool()
	if err != nil {
		return 0, err
	}
	var count int64
	if scanErr := pool.QueryRow(ctx, countFlipsSQL, batchID).Scan(&count); scanErr != nil {
		return 0, fmt.Errorf("count flips: %w", scanErr)
	}
	return count, nil
}

func (s *Store) inTx(ctx context.Context, fn func(pgx.Tx) error) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	tx, err := pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		rollbackCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = tx.Rollback(rollbackCtx)
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func insertBatch(ctx context.Context, tx pgx.Tx, command, source string) (Batch, error) {
	batch := Batch{Command: command, Source: source}
	if err := tx.QueryRow(ctx, insertBatchSQL, command, source).Scan(&batch.ID, &batch.CreatedAt); err != nil {
		return Batch{}, fmt.Errorf("insert batch: %w", err)
	}
	return batch, nil
}

// numeric converts d for binary COPY into NUMERIC columns.
func numeric(d decimal.Decimal) pgtype.Numeric {
	return pgtype.Numeric{Int: d.Coefficient(), Exp: d.Exponent(), Valid: true}
}
