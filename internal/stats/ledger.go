package stats

import (
	"sort"
	"time"

	"calstats/internal/model"
)

// Ledger allocates event hours into weekly buckets keyed by the Sunday
// on/before the event. Each bucket starts life holding the full
// configured work-week capacity as unscheduled time; every recorded
// event moves hours from the unscheduled bucket into its category, so a
// week always sums to the configured capacity. Overbooking drives the
// unscheduled bucket negative rather than breaking the invariant.
type Ledger struct {
	workStartHour int
	workEndHour   int
	capacity      float64 // hours per week, the unscheduled seed

	weeks map[string]map[Category]float64
}

// NewLedger builds a Ledger counting hours between workStartHour and
// workEndHour across workDaysPerWeek days.
func NewLedger(workStartHour, workEndHour, workDaysPerWeek int) *Ledger {
	return &Ledger{
		workStartHour: workStartHour,
		workEndHour:   workEndHour,
		capacity:      float64(workEndHour-workStartHour) * float64(workDaysPerWeek),
		weeks:         make(map[string]map[Category]float64),
	}
}

// WeekKey returns the ledger bucket key for a point in time: the date of
// the Sunday on or before it, in sortable YYYY-MM-DD form.
func WeekKey(t time.Time) string {
	sunday := t.AddDate(0, 0, -int(t.Weekday()))
	return sunday.Format(dateLayout)
}

// Record files an event's duration under the given category in its
// week's bucket. Events outside the configured working hours are
// invisible to hour accounting, though the bucket is still created so
// every observed week renders.
func (l *Ledger) Record(ev model.Occurrence, cat Category) {
	bucket := l.ensure(WeekKey(ev.Start))

	if !l.withinWorkHours(ev) {
		return
	}

	hours := ev.Hours()
	bucket[cat] += hours
	bucket[CategoryUnscheduled] -= hours
}

// withinWorkHours reports whether the whole event sits inside the
// configured working day, compared at minute granularity. An event
// crossing midnight never fits: its hour-of-day bounds can both look
// in-range while the event itself spans the night.
func (l *Ledger) withinWorkHours(ev model.Occurrence) bool {
	if ev.End.Year() != ev.Start.Year() || ev.End.YearDay() != ev.Start.YearDay() {
		return false
	}
	startMin := ev.Start.Hour()*60 + ev.Start.Minute()
	endMin := ev.End.Hour()*60 + ev.End.Minute()
	if startMin < l.workStartHour*60 {
		return false
	}
	if endMin > l.workEndHour*60 {
		return false
	}
	return true
}

// Render flattens the ledger into one row per week, ascending by week
// key. The four built-in categories come first; tag categories observed
// anywhere in the window get appended columns in sorted order, zero for
// weeks that never saw them. Hour cells are rounded to one decimal.
func (l *Ledger) Render() (header []string, rows [][]any) {
	weekKeys := make([]string, 0, len(l.weeks))
	for wk := range l.weeks {
		weekKeys = append(weekKeys, wk)
	}
	sort.Strings(weekKeys)

	tagCols := l.tagCategories()

	header = make([]string, 0, 1+len(fixedLedgerOrder)+len(tagCols))
	header = append(header, "Week")
	for _, cat := range fixedLedgerOrder {
		header = append(header, string(cat))
	}
	for _, cat := range tagCols {
		header = append(header, string(cat))
	}

	rows = make([][]any, 0, len(weekKeys))
	for _, wk := range weekKeys {
		bucket := l.weeks[wk]
		row := make([]any, 0, len(header))
		row = append(row, wk)
		for _, cat := range fixedLedgerOrder {
			row = append(row, roundTenth(bucket[cat]))
		}
		for _, cat := range tagCols {
			row = append(row, roundTenth(bucket[cat]))
		}
		rows = append(rows, row)
	}
	return header, rows
}

// Weeks reports how many week buckets exist.
func (l *Ledger) Weeks() int {
	return len(l.weeks)
}

// Totals sums hours per category across all weeks. Used by the run
// history archive.
func (l *Ledger) Totals() map[Category]float64 {
	totals := make(map[Category]float64)
	for _, bucket := range l.weeks {
		for cat, hours := range bucket {
			totals[cat] += hours
		}
	}
	return totals
}

func (l *Ledger) ensure(weekKey string) map[Category]float64 {
	if bucket, ok := l.weeks[weekKey]; ok {
		return bucket
	}
	bucket := map[Category]float64{
		CategoryUnscheduled: l.capacity,
	}
	l.weeks[weekKey] = bucket
	return bucket
}

// tagCategories returns every non-built-in category seen in any week,
// sorted.
func (l *Ledger) tagCategories() []Category {
	fixed := make(map[Category]struct{}, len(fixedLedgerOrder))
	for _, cat := range fixedLedgerOrder {
		fixed[cat] = struct{}{}
	}

	seen := make(map[Category]struct{})
	for _, bucket := range l.weeks {
		for cat := range bucket {
			if _, isFixed := fixed[cat]; !isFixed {
				seen[cat] = struct{}{}
			}
		}
	}

	tags := make([]Category, 0, len(seen))
	for cat := range seen {
		tags = append(tags, cat)
	}
	sort.Slice(tags, func(i, j int) bool { return tags[i] < tags[j] })
	return tags
}

// roundTenth rounds to one decimal place, matching the sheet's number
// format so rendered values and stored values agree.
func roundTenth(v float64) float64 {
	if v < 0 {
		return float64(int(v*10-0.5)) / 10
	}
	return float64(int(v*10+0.5)) / 10
}
