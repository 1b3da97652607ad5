package run

import (
	"context"
	"errors"
	"path/filepath"
	"reflect"
	"strconv"
	"testing"
	"time"

	"calstats/internal/config"
	"calstats/internal/model"
	"calstats/internal/report"
)

const testOwner = "andrew@hurstdog.org"

var testNow = time.Date(2026, 8, 12, 12, 0, 0, 0, time.UTC)

type fakeSource struct {
	occs []model.Occurrence
	err  error
}

func (f *fakeSource) Occurrences(ctx context.Context, start, end time.Time) ([]model.Occurrence, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.occs, nil
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.OwnerEmail = testOwner
	cfg.Workbook = filepath.Join(t.TempDir(), "calstats.xlsx")
	if err := cfg.Validate(); err != nil {
		t.Fatalf("test config invalid: %v", err)
	}
	return cfg
}

func oneOnOne(start time.Time, partner string) model.Occurrence {
	return model.Occurrence{
		UID:     "ev-" + partner,
		Summary: "1:1",
		Guests:  []string{testOwner, partner},
		Start:   start,
		End:     start.Add(time.Hour),
	}
}

func readSheet(t *testing.T, path, sheet string) ([]string, [][]string) {
	t.Helper()
	wb, err := report.Open(path, 200)
	if err != nil {
		t.Fatalf("open workbook: %v", err)
	}
	defer wb.Close()
	header, rows, err := wb.ReadSheet(sheet)
	if err != nil {
		t.Fatalf("read %s: %v", sheet, err)
	}
	return header, rows
}

func atof(t *testing.T, s string) float64 {
	t.Helper()
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		t.Fatalf("not a number: %q", s)
	}
	return f
}

// ============================================================
// Full pipeline
// ============================================================

// One 1:1 with a@x.com, 60 minutes, 10 days back, inside working
// hours: the cadence sheet gains a row with that date as last meeting,
// and the ledger's week shows one 1:1 hour drained from unscheduled.
func TestRunScenario(t *testing.T) {
	cfg := testConfig(t)

	// 2026-08-02 is a Sunday, so the occurrence keys its own week.
	start := time.Date(2026, 8, 2, 10, 0, 0, 0, time.UTC)
	src := &fakeSource{occs: []model.Occurrence{oneOnOne(start, "a@x.com")}}

	if err := New(cfg, src, nil).Run(context.Background(), testNow); err != nil {
		t.Fatalf("run: %v", err)
	}

	_, cadence := readSheet(t, cfg.Workbook, cfg.CadenceSheet)
	if len(cadence) != 1 {
		t.Fatalf("cadence rows: %v", cadence)
	}
	row := cadence[0]
	if row[0] != "a@x.com" || row[1] != "2026-08-02" {
		t.Fatalf("cadence row: %v", row)
	}
	if len(row) > 2 && row[2] != "" {
		t.Fatalf("next should be blank: %v", row)
	}

	ledgerHeader, ledger := readSheet(t, cfg.Workbook, cfg.LedgerSheet)
	if len(ledger) != 1 || ledger[0][0] != "2026-08-02" {
		t.Fatalf("ledger rows: %v", ledger)
	}
	if ledgerHeader[1] != "1:1s" || ledgerHeader[4] != "Unscheduled" {
		t.Fatalf("ledger header: %v", ledgerHeader)
	}
	if got := atof(t, ledger[0][1]); got != 1.0 {
		t.Fatalf("1:1 hours: %v", got)
	}
	if got := atof(t, ledger[0][4]); got != 39.0 {
		t.Fatalf("unscheduled hours: %v", got)
	}

	_, counts := readSheet(t, cfg.Workbook, cfg.StatsSheet)
	if len(counts) != 1 || counts[0][0] != "1:1s" || counts[0][1] != "1" {
		t.Fatalf("counts rows: %v", counts)
	}
}

// SLO and notes in the persisted sheet survive the rewrite; overdue is
// recomputed from the fresh window.
func TestRunSeedsPersistedSLO(t *testing.T) {
	cfg := testConfig(t)

	wb, err := report.Open(cfg.Workbook, cfg.MaxRows)
	if err != nil {
		t.Fatal(err)
	}
	err = wb.WriteTable(report.Table{
		Sheet:  cfg.CadenceSheet,
		Header: []string{"Who", "Last 1:1", "Next 1:1", "SLO", "Days Overdue", "Notes"},
		Rows: [][]any{
			{"a@x.com", "2020-01-01", "", 7, 999, "direct report"},
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := wb.Save(); err != nil {
		t.Fatal(err)
	}
	wb.Close()

	start := testNow.AddDate(0, 0, -10)
	src := &fakeSource{occs: []model.Occurrence{oneOnOne(start, "a@x.com")}}
	if err := New(cfg, src, nil).Run(context.Background(), testNow); err != nil {
		t.Fatalf("run: %v", err)
	}

	_, cadence := readSheet(t, cfg.Workbook, cfg.CadenceSheet)
	row := cadence[0]
	if row[0] != "a@x.com" {
		t.Fatalf("row: %v", row)
	}
	if row[1] != start.Format("2006-01-02") {
		t.Fatalf("stale last date survived: %v", row)
	}
	if row[3] != "7" {
		t.Fatalf("slo lost: %v", row)
	}
	// 10 days since last minus a 7-day SLO.
	if row[4] != "3" {
		t.Fatalf("overdue: %v", row)
	}
	if row[5] != "direct report" {
		t.Fatalf("notes lost: %v", row)
	}
}

// Two identical runs over the same window and prior state produce
// identical sheets: no accumulation drift.
func TestRunIdempotent(t *testing.T) {
	cfg := testConfig(t)

	occs := []model.Occurrence{
		oneOnOne(time.Date(2026, 8, 2, 10, 0, 0, 0, time.UTC), "a@x.com"),
		oneOnOne(time.Date(2026, 8, 14, 9, 0, 0, 0, time.UTC), "a@x.com"),
		{
			UID:         "planning",
			Description: "TAG: Planning",
			Guests:      []string{testOwner, "a@x.com", "b@x.com"},
			Start:       time.Date(2026, 8, 3, 13, 0, 0, 0, time.UTC),
			End:         time.Date(2026, 8, 3, 14, 0, 0, 0, time.UTC),
		},
	}
	src := &fakeSource{occs: occs}
	runner := New(cfg, src, nil)

	if err := runner.Run(context.Background(), testNow); err != nil {
		t.Fatalf("first run: %v", err)
	}
	_, cadence1 := readSheet(t, cfg.Workbook, cfg.CadenceSheet)
	_, ledger1 := readSheet(t, cfg.Workbook, cfg.LedgerSheet)

	if err := runner.Run(context.Background(), testNow); err != nil {
		t.Fatalf("second run: %v", err)
	}
	_, cadence2 := readSheet(t, cfg.Workbook, cfg.CadenceSheet)
	_, ledger2 := readSheet(t, cfg.Workbook, cfg.LedgerSheet)

	if !reflect.DeepEqual(cadence1, cadence2) {
		t.Fatalf("cadence drifted:\n%v\n%v", cadence1, cadence2)
	}
	if !reflect.DeepEqual(ledger1, ledger2) {
		t.Fatalf("ledger drifted:\n%v\n%v", ledger1, ledger2)
	}
}

// ============================================================
// Failure ordering
// ============================================================

// A fetch failure aborts before the sink is opened: both reports stay
// in their pre-run state.
func TestRunFetchFailureLeavesReports(t *testing.T) {
	cfg := testConfig(t)

	// Seed the workbook with a prior run's data.
	goodSrc := &fakeSource{occs: []model.Occurrence{
		oneOnOne(time.Date(2026, 8, 2, 10, 0, 0, 0, time.UTC), "a@x.com"),
	}}
	if err := New(cfg, goodSrc, nil).Run(context.Background(), testNow); err != nil {
		t.Fatalf("seed run: %v", err)
	}
	_, before := readSheet(t, cfg.Workbook, cfg.CadenceSheet)

	badSrc := &fakeSource{err: errors.New("upstream down")}
	err := New(cfg, badSrc, nil).Run(context.Background(), testNow)
	if err == nil {
		t.Fatal("expected fetch failure to surface")
	}

	_, after := readSheet(t, cfg.Workbook, cfg.CadenceSheet)
	if !reflect.DeepEqual(before, after) {
		t.Fatalf("report mutated on fetch failure:\n%v\n%v", before, after)
	}
}

// More counterparties than the sheet capacity is a configuration
// error, not a silent truncation.
func TestRunCapacityExceeded(t *testing.T) {
	cfg := testConfig(t)
	cfg.MaxRows = 2

	occs := make([]model.Occurrence, 0, 3)
	for _, partner := range []string{"a@x.com", "b@x.com", "c@x.com"} {
		occs = append(occs, oneOnOne(time.Date(2026, 8, 2, 10, 0, 0, 0, time.UTC), partner))
	}
	src := &fakeSource{occs: occs}

	err := New(cfg, src, nil).Run(context.Background(), testNow)
	if !errors.Is(err, report.ErrCapacityExceeded) {
		t.Fatalf("expected ErrCapacityExceeded, got %v", err)
	}
}
