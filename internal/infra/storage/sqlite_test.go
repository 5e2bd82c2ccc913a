package storage

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"
)

func newTestRepo(t *testing.T) *SQLiteTickRepository {
	t.Helper()
	db, err := InitSQLite(filepath.Join(t.TempDir(), "renderer.db"))
	if err != nil {
		t.Fatalf("InitSQLite: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewSQLiteTickRepository(db)
}

func record(runID string, n int64, status string) TickRecord {
	return TickRecord{
		ID:         fmt.Sprintf("%s-%s-%d-%s", runID, status, n, time.Now().Format("150405.000000000")),
		RunID:      runID,
		Number:     n,
		Timestamp:  time.Now(),
		DurationNS: int64(time.Millisecond),
		Status:     status,
		Bytes:      16,
	}
}

func TestAppendAndGetRecent(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	for i := int64(1); i <= 4; i++ {
		rec := record("RUN_1", i, "OK")
		rec.ID = rec.ID + string(rune('a'+i))
		if err := repo.Append(ctx, rec); err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
	}

	recent, err := repo.GetRecent(ctx, "RUN_1", 2)
	if err != nil {
		t.Fatalf("GetRecent: %v", err)
	}
	if len(recent) != 2 {
		t.Fatalf("GetRecent returned %d records, want 2", len(recent))
	}
	if recent[0].Number != 4 || recent[1].Number != 3 {
		t.Errorf("GetRecent order = [%d, %d], want newest first [4, 3]", recent[0].Number, recent[1].Number)
	}
}

func TestGetByStatus(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	statuses := []string{"OK", "POOL_EXHAUSTED", "OK", "ENGINE_FAULT"}
	for i, s := range statuses {
		rec := record("RUN_1", int64(i+1), s)
		rec.ID = rec.ID + string(rune('a'+i))
		if err := repo.Append(ctx, rec); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	faults, err := repo.GetByStatus(ctx, "RUN_1", "ENGINE_FAULT")
	if err != nil {
		t.Fatalf("GetByStatus: %v", err)
	}
	if len(faults) != 1 || faults[0].Number != 4 {
		t.Errorf("GetByStatus(ENGINE_FAULT) = %+v, want the single tick 4", faults)
	}
}

func TestLastTickNumber(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	// No history: starts at zero.
	last, err := repo.LastTickNumber(ctx, "RUN_EMPTY")
	if err != nil {
		t.Fatalf("LastTickNumber on empty run: %v", err)
	}
	if last != 0 {
		t.Errorf("empty run last tick = %d, want 0", last)
	}

	for _, n := range []int64{3, 7, 5} {
		rec := record("RUN_1", n, "OK")
		rec.ID = rec.ID + string(rune('a'+n))
		if err := repo.Append(ctx, rec); err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	last, err = repo.LastTickNumber(ctx, "RUN_1")
	if err != nil {
		t.Fatalf("LastTickNumber: %v", err)
	}
	if last != 7 {
		t.Errorf("last tick = %d, want 7", last)
	}
}

func TestSummarize(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	statuses := []string{"OK", "OK", "POOL_EXHAUSTED"}
	for i, s := range statuses {
		rec := record("RUN_1", int64(i+1), s)
		rec.ID = rec.ID + string(rune('a'+i))
		if err := repo.Append(ctx, rec); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	summary, err := NewSummarizer(repo).Summarize(ctx, "RUN_1", 100)
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	if summary.Ticks != 3 {
		t.Errorf("summary ticks = %d, want 3", summary.Ticks)
	}
	if summary.ByStatus["OK"] != 2 || summary.ByStatus["POOL_EXHAUSTED"] != 1 {
		t.Errorf("summary by status = %v", summary.ByStatus)
	}
	if summary.LastTick != 3 {
		t.Errorf("summary last tick = %d, want 3", summary.LastTick)
	}
	if summary.AvgDuration != time.Millisecond {
		t.Errorf("summary avg duration = %s, want 1ms", summary.AvgDuration)
	}
}
