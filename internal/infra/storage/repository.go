// Package storage provides the persistence layer for the renderer runtime.
// The event log uses the TickRepository interface so the core packages never
// import a database driver.
package storage

import (
	"context"
	"time"
)

// TickRecord mirrors the tick event structure for persistence.
type TickRecord struct {
	ID         string    `json:"id" db:"id"`
	RunID      string    `json:"run_id" db:"run_id"`
	Number     int64     `json:"number" db:"number"`
	Timestamp  time.Time `json:"timestamp" db:"timestamp"`
	DurationNS int64     `json:"duration_ns" db:"duration_ns"`
	Status     string    `json:"status" db:"status"`
	Detail     string    `json:"detail" db:"detail"`
	Bytes      int       `json:"bytes" db:"bytes"`
}

// TickRepository defines the interface for tick persistence.
type TickRepository interface {
	// Append adds a tick record to the ledger.
	Append(ctx context.Context, record TickRecord) error

	// GetRecent retrieves the most recent records for a run, newest first.
	GetRecent(ctx context.Context, runID string, limit int) ([]TickRecord, error)

	// GetByStatus retrieves records with a given status for a run.
	GetByStatus(ctx context.Context, runID, status string) ([]TickRecord, error)

	// LastTickNumber returns the highest recorded tick number for a run,
	// or 0 when the run has no history.
	LastTickNumber(ctx context.Context, runID string) (int64, error)
}
