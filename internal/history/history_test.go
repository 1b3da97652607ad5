package history

import (
	"path/filepath"
	"testing"
	"time"

	"calstats/internal/stats"
)

func newTestArchive(t *testing.T) *Archive {
	t.Helper()
	a, err := OpenMemory()
	if err != nil {
		t.Fatalf("open memory archive: %v", err)
	}
	t.Cleanup(func() { a.Close() })
	return a
}

func TestOpenWithPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "history.db")
	a, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	a.Close()

	// Reopen: migration is idempotent.
	a2, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	a2.Close()
}

func TestRecordAndRecentRuns(t *testing.T) {
	a := newTestArchive(t)

	first := time.Date(2026, 8, 10, 6, 0, 0, 0, time.UTC)
	second := first.AddDate(0, 0, 1)

	totals := map[stats.Category]float64{
		stats.CategoryOneOnOnes:   3.5,
		stats.CategoryMeetings:    10.0,
		stats.CategoryBlocked:     4.0,
		stats.CategoryUnscheduled: 22.5,
	}
	if err := a.RecordRun(first, 40, totals); err != nil {
		t.Fatalf("record first run: %v", err)
	}
	if err := a.RecordRun(second, 42, totals); err != nil {
		t.Fatalf("record second run: %v", err)
	}

	runs, err := a.RecentRuns(10)
	if err != nil {
		t.Fatalf("recent runs: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("expected 2 runs, got %d", len(runs))
	}
	// Newest first.
	if !runs[0].RunAt.Equal(second) {
		t.Fatalf("order: got %v first", runs[0].RunAt)
	}
	if runs[0].Events != 42 {
		t.Fatalf("events: got %d", runs[0].Events)
	}
	if runs[0].OneOnOnes != 3.5 || runs[0].Unscheduled != 22.5 {
		t.Fatalf("totals: %+v", runs[0])
	}
}

func TestRecentRunsLimit(t *testing.T) {
	a := newTestArchive(t)
	base := time.Date(2026, 8, 1, 6, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		if err := a.RecordRun(base.AddDate(0, 0, i), i, nil); err != nil {
			t.Fatal(err)
		}
	}
	runs, err := a.RecentRuns(3)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 3 {
		t.Fatalf("limit ignored: got %d runs", len(runs))
	}
	if runs[0].Events != 4 {
		t.Fatalf("expected newest run first, got %+v", runs[0])
	}
}
