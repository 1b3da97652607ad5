package run

import (
	"context"
	"fmt"
	"time"

	"calstats/internal/config"
	"calstats/internal/history"
	appLog "calstats/internal/log"
	"calstats/internal/model"
	"calstats/internal/report"
	"calstats/internal/stats"
)

// Source produces the owner's concrete event occurrences for a window.
// The ICS client implements it; tests substitute fixtures.
type Source interface {
	Occurrences(ctx context.Context, start, end time.Time) ([]model.Occurrence, error)
}

// Runner drives one batch pass: fetch the window, feed every event
// through the classifier, the ledger and the cadence tracker, then
// render and overwrite the report sheets.
type Runner struct {
	cfg     *config.Config
	src     Source
	archive *history.Archive // nil disables run history
}

// New builds a Runner. archive may be nil.
func New(cfg *config.Config, src Source, archive *history.Archive) *Runner {
	return &Runner{cfg: cfg, src: src, archive: archive}
}

// Run executes one full pass anchored at now.
//
// Failure ordering matters: a fetch failure aborts before the workbook
// is opened, leaving both reports in their pre-run state. A write
// failure after that may leave the mid-write sheet partially updated;
// that is the accepted cost of last-writer-wins batch overwrite.
func (r *Runner) Run(ctx context.Context, now time.Time) error {
	windowStart := now.AddDate(0, 0, -r.cfg.RangeDaysPast)
	windowEnd := now.AddDate(0, 0, r.cfg.RangeDaysFuture)

	occs, err := r.src.Occurrences(ctx, windowStart, windowEnd)
	if err != nil {
		return fmt.Errorf("fetch events: %w", err)
	}

	wb, err := report.Open(r.cfg.Workbook, r.cfg.MaxRows)
	if err != nil {
		return err
	}
	defer wb.Close()

	// Seed cadence state from the persisted sheet: SLO and notes are the
	// user's data, last/next are recomputed from this window.
	seedHeader, seedRows, err := wb.ReadSheet(r.cfg.CadenceSheet)
	if err != nil {
		return err
	}
	tracker := stats.NewTracker(r.cfg.OwnerEmail, r.cfg.Aliases)
	tracker.Seed(seedHeader, seedRows)

	classifier := stats.NewClassifier(r.cfg.OwnerEmail, r.cfg.TagMarker, r.cfg.Aliases)
	ledger := stats.NewLedger(r.cfg.WorkStartHour, r.cfg.WorkEndHour, r.cfg.WorkDaysPerWeek)
	counts := stats.NewCounts()

	for _, ev := range occs {
		cat := classifier.Classify(ev)
		ledger.Record(ev, cat)
		counts.Add(cat)
		// Cadence re-derives 1:1-ness itself: a tagged 1:1 still counts
		// toward cadence even though its ledger category is the tag.
		tracker.Record(ev, now)
	}

	appLog.Info("window processed",
		"occurrences", len(occs),
		"counterparties", tracker.Len(),
		"weeks", ledger.Weeks(),
	)

	cadenceHeader, cadenceRows := tracker.Render(now)
	if err := wb.WriteTable(report.Table{
		Sheet:         r.cfg.CadenceSheet,
		Header:        cadenceHeader,
		Rows:          cadenceRows,
		SortColumn:    r.cfg.CadenceSort.Column,
		SortAscending: r.cfg.CadenceSort.Ascending,
	}); err != nil {
		return fmt.Errorf("write cadence sheet: %w", err)
	}

	ledgerHeader, ledgerRows := ledger.Render()
	hourCols := make([]int, 0, len(ledgerHeader)-1)
	for col := 2; col <= len(ledgerHeader); col++ {
		hourCols = append(hourCols, col)
	}
	if err := wb.WriteTable(report.Table{
		Sheet:         r.cfg.LedgerSheet,
		Header:        ledgerHeader,
		Rows:          ledgerRows,
		SortColumn:    r.cfg.LedgerSort.Column,
		SortAscending: r.cfg.LedgerSort.Ascending,
		NumberCols:    hourCols,
		NumberFormat:  "0.0",
	}); err != nil {
		return fmt.Errorf("write ledger sheet: %w", err)
	}

	countsHeader, countsRows := counts.Render()
	if err := wb.WriteTable(report.Table{
		Sheet:         r.cfg.StatsSheet,
		Header:        countsHeader,
		Rows:          countsRows,
		SortColumn:    r.cfg.StatsSort.Column,
		SortAscending: r.cfg.StatsSort.Ascending,
	}); err != nil {
		return fmt.Errorf("write stats sheet: %w", err)
	}

	if err := wb.Save(); err != nil {
		return err
	}

	if r.archive != nil {
		if err := r.archive.RecordRun(now, len(occs), ledger.Totals()); err != nil {
			// The workbook is the report of record; history is best-effort.
			appLog.Error("run history archive failed", err)
		}
	}

	appLog.Info("run complete", "workbook", r.cfg.Workbook)
	return nil
}
