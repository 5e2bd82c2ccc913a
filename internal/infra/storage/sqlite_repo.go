package storage

import (
	"context"
	"database/sql"
	"fmt"
)

// SQLiteTickRepository implements TickRepository for SQLite.
type SQLiteTickRepository struct {
	db *sql.DB
}

func NewSQLiteTickRepository(db *sql.DB) *SQLiteTickRepository {
	return &SQLiteTickRepository{db: db}
}

func (r *SQLiteTickRepository) Append(ctx context.Context, record TickRecord) error {
	query := `
		INSERT INTO ticks (id, run_id, number, timestamp, duration_ns, status, detail, bytes)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.ExecContext(ctx, query,
		record.ID, record.RunID, record.Number, record.Timestamp,
		record.DurationNS, record.Status, record.Detail, record.Bytes,
	)
	if err != nil {
		return fmt.Errorf("failed to append tick record: %w", err)
	}
	return nil
}

func (r *SQLiteTickRepository) getMany(ctx context.Context, query string, args ...interface{}) ([]TickRecord, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []TickRecord
	for rows.Next() {
		var rec TickRecord
		err := rows.Scan(
			&rec.ID, &rec.RunID, &rec.Number, &rec.Timestamp,
			&rec.DurationNS, &rec.Status, &rec.Detail, &rec.Bytes,
		)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func (r *SQLiteTickRepository) GetRecent(ctx context.Context, runID string, limit int) ([]TickRecord, error) {
	query := `SELECT id, run_id, number, timestamp, duration_ns, status, detail, bytes FROM ticks WHERE run_id = ? ORDER BY number DESC LIMIT ?`
	return r.getMany(ctx, query, runID, limit)
}

func (r *SQLiteTickRepository) GetByStatus(ctx context.Context, runID, status string) ([]TickRecord, error) {
	query := `SELECT id, run_id, number, timestamp, duration_ns, status, detail, bytes FROM ticks WHERE run_id = ? AND status = ? ORDER BY number ASC`
	return r.getMany(ctx, query, runID, status)
}

func (r *SQLiteTickRepository) LastTickNumber(ctx context.Context, runID string) (int64, error) {
	var number sql.NullInt64
	query := `SELECT MAX(number) FROM ticks WHERE run_id = ?`
	if err := r.db.QueryRowContext(ctx, query, runID).Scan(&number); err != nil {
		return 0, fmt.Errorf("failed to query last tick number: %w", err)
	}
	if !number.Valid {
		return 0, nil
	}
	return number.Int64, nil
}
