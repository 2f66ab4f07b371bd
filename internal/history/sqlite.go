package history

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/berfenger/smartess/internal/core/domain"
	"github.com/berfenger/smartess/internal/core/port"

	_ "modernc.org/sqlite"
)

const DefaultRecentLimit = 100

const schema = `
CREATE TABLE IF NOT EXISTS dispatch_history (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	ts INTEGER NOT NULL,
	regime TEXT NOT NULL,
	rate TEXT NOT NULL DEFAULT '',
	next_charge INTEGER NOT NULL DEFAULT 0,
	system_load REAL NOT NULL,
	soc REAL NOT NULL,
	grid_load REAL NOT NULL,
	battery_load REAL NOT NULL,
	using_capacity REAL NOT NULL,
	reserve REAL NOT NULL,
	set_point INTEGER NOT NULL,
	applied INTEGER NOT NULL,
	error TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_dispatch_history_ts ON dispatch_history(ts);
`

// SQLiteStore keeps one row per dispatch tick.
type SQLiteStore struct {
	db *sql.DB
}

var _ port.DispatchRecorder = (*SQLiteStore)(nil)

// NewSQLiteStore opens or creates the database at path and ensures the schema.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// sqlite has a single writer
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		if cerr := db.Close(); cerr != nil {
			return nil, fmt.Errorf("close db: %v (schema err: %w)", cerr, err)
		}
		return nil, err
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) Record(ctx context.Context, rec domain.DispatchRecord) error {
	var nextCharge int64
	if !rec.NextCharge.IsZero() {
		nextCharge = rec.NextCharge.UnixNano()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO dispatch_history
		(ts, regime, rate, next_charge, system_load, soc, grid_load, battery_load, using_capacity, reserve, set_point, applied, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.Time.UnixNano(), rec.Regime.String(), rec.Rate, nextCharge,
		rec.SystemLoad, rec.Soc, rec.GridLoad, rec.BatteryLoad, rec.UsingCapacity, rec.Reserve,
		rec.SetPointWatt, rec.Applied, rec.Error)
	if err != nil {
		return fmt.Errorf("insert dispatch record: %w", err)
	}
	return nil
}

// Recent returns up to limit records, newest first.
func (s *SQLiteStore) Recent(ctx context.Context, limit int) ([]domain.DispatchRecord, error) {
	if limit <= 0 {
		limit = DefaultRecentLimit
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT ts, regime, rate, next_charge, system_load, soc, grid_load, battery_load, using_capacity, reserve, set_point, applied, error
		FROM dispatch_history ORDER BY ts DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var res []domain.DispatchRecord
	for rows.Next() {
		var (
			rec        domain.DispatchRecord
			ts         int64
			nextCharge int64
			regime     string
		)
		if err := rows.Scan(&ts, &regime, &rec.Rate, &nextCharge, &rec.SystemLoad, &rec.Soc, &rec.GridLoad,
			&rec.BatteryLoad, &rec.UsingCapacity, &rec.Reserve, &rec.SetPointWatt, &rec.Applied, &rec.Error); err != nil {
			return nil, err
		}
		rec.Time = time.Unix(0, ts)
		if nextCharge != 0 {
			rec.NextCharge = time.Unix(0, nextCharge)
		}
		rec.Regime = domain.ParseRegime(regime)
		res = append(res, rec)
	}
	return res, rows.Err()
}
