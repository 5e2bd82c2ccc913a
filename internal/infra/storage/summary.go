package storage

import (
	"context"
	"time"
)

// RunSummary aggregates the persisted tick history of one run.
// summary = f(tick records), the ledger stays untouched.
type RunSummary struct {
	RunID       string           `json:"run_id"`
	Ticks       int64            `json:"ticks"`
	LastTick    int64            `json:"last_tick"`
	ByStatus    map[string]int64 `json:"by_status"`
	AvgDuration time.Duration    `json:"avg_duration_ns"`
	BytesCopied int64            `json:"bytes_copied"`
}

// Summarizer rebuilds run statistics from the tick ledger. Used by the
// history API and for post-run tuning of the pool size.
type Summarizer struct {
	repo TickRepository
}

// NewSummarizer creates a new tick-ledger summarizer.
func NewSummarizer(repo TickRepository) *Summarizer {
	return &Summarizer{repo: repo}
}

// Summarize folds the most recent limit records of a run into a RunSummary.
func (s *Summarizer) Summarize(ctx context.Context, runID string, limit int) (RunSummary, error) {
	records, err := s.repo.GetRecent(ctx, runID, limit)
	if err != nil {
		return RunSummary{}, err
	}

	summary := RunSummary{
		RunID:    runID,
		ByStatus: make(map[string]int64),
	}

	var totalDuration int64
	for _, rec := range records {
		summary.Ticks++
		summary.ByStatus[rec.Status]++
		summary.BytesCopied += int64(rec.Bytes)
		totalDuration += rec.DurationNS
		if rec.Number > summary.LastTick {
			summary.LastTick = rec.Number
		}
	}
	if summary.Ticks > 0 {
		summary.AvgDuration = time.Duration(totalDuration / summary.Ticks)
	}
	return summary, nil
}
