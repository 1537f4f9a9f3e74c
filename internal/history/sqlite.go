package history

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

type SQLite struct {
	db *sql.DB
}

// OpenSQLite opens (or creates) the ledger database and its schema.
func OpenSQLite(dsn string) (*SQLite, error) {
	if dsn == "" {
		return nil, fmt.Errorf("history: sqlite path is required")
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	s := &SQLite{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate sqlite: %w", err)
	}
	return s, nil
}

func (s *SQLite) migrate() error {
	_, err := s.db.Exec(`
	CREATE TABLE IF NOT EXISTS round_records (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		table_id TEXT NOT NULL,
		round INTEGER NOT NULL,
		finished_at INTEGER NOT NULL,
		dealer_value INTEGER NOT NULL DEFAULT 0,
		dealer_hand TEXT NOT NULL,
		results TEXT NOT NULL
	);`)
	if err != nil {
		return err
	}

	_, err = s.db.Exec(`CREATE INDEX IF NOT EXISTS idx_round_records_table ON round_records (table_id, finished_at);`)
	return err
}

func (s *SQLite) Record(ctx context.Context, r Round) error {
	rec, err := toRecord(r)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO round_records (table_id, round, finished_at, dealer_value, dealer_hand, results)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		rec.TableID, rec.Round, rec.FinishedAt.UnixMilli(), rec.DealerValue, rec.DealerHand, rec.Results,
	)
	return err
}

func (s *SQLite) Recent(ctx context.Context, tableID string, limit int) ([]Round, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT table_id, round, finished_at, dealer_value, dealer_hand, results
		 FROM round_records WHERE table_id = ? ORDER BY finished_at DESC, id DESC LIMIT ?`,
		tableID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Round
	for rows.Next() {
		var (
			rec    roundRecord
			millis int64
		)
		if err := rows.Scan(&rec.TableID, &rec.Round, &millis, &rec.DealerValue, &rec.DealerHand, &rec.Results); err != nil {
			return nil, err
		}
		rec.FinishedAt = time.UnixMilli(millis)
		r, err := rec.toRound()
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *SQLite) Close() error {
	return s.db.Close()
}
