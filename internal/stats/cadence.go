package stats

import (
	"strconv"
	"strings"
	"time"

	"calstats/internal/model"
)

// CadenceHeader is the column layout of the 1:1 list sheet. SLO and
// Notes are user-maintained; the rest is recomputed every run. A
// persisted sheet may carry extra columns past Notes, which survive
// rewrites untouched.
var CadenceHeader = []string{
	"Who",
	"Last 1:1",
	"Next 1:1",
	"SLO",
	"Days Overdue",
	"Notes",
}

// Column indexes into CadenceHeader.
const (
	cadenceColWho = iota
	cadenceColLast
	cadenceColNext
	cadenceColSLO
	cadenceColOverdue
	cadenceColNotes
	cadenceCoreWidth
)

const dateLayout = "2006-01-02"

// CadenceRecord tracks 1:1 state for one counterparty. Zero times mean
// "no meeting observed in the window"; SLODays zero means no target set.
type CadenceRecord struct {
	Last    time.Time
	Next    time.Time
	SLODays int
	Notes   string

	// Extra holds persisted columns beyond the core six, passed through
	// verbatim on rewrite.
	Extra []string
}

// Tracker aggregates per-counterparty 1:1 cadence over one event window.
//
// Lifecycle: seed from the persisted sheet (keeping SLO/Notes, dropping
// stale last/next), feed every event through Record, then Render. No
// record is ever deleted mid-run.
type Tracker struct {
	owner   string
	domain  string // owner's email domain, stripped from display identities
	aliases map[string]string

	headerWidth int
	extraHeader []string // persisted header names past the core six
	records     map[string]*CadenceRecord
	order       []string // insertion order, the sort tie-break
}

// NewTracker builds an empty Tracker for the given owner.
func NewTracker(owner string, aliases map[string]string) *Tracker {
	owner = CanonicalIdentity(owner, aliases)
	domain := ""
	if i := strings.IndexByte(owner, '@'); i >= 0 {
		domain = owner[i+1:]
	}
	return &Tracker{
		owner:       owner,
		domain:      domain,
		aliases:     aliases,
		headerWidth: cadenceCoreWidth,
		records:     make(map[string]*CadenceRecord),
	}
}

// Seed loads previously persisted rows. SLO, Notes and any extra columns
// are retained; last/next are deliberately reset so they are always
// recomputed from the current window instead of trusted from a prior run.
// Rows past the first one with an empty Who cell are the reader's
// responsibility; Seed also skips them should one slip through.
func (t *Tracker) Seed(header []string, rows [][]string) {
	if len(header) > t.headerWidth {
		t.headerWidth = len(header)
	}
	if len(header) > cadenceCoreWidth {
		t.extraHeader = append([]string(nil), header[cadenceCoreWidth:]...)
	}
	for _, row := range rows {
		if len(row) == 0 || strings.TrimSpace(row[cadenceColWho]) == "" {
			break
		}
		rec := t.ensure(strings.TrimSpace(row[cadenceColWho]))
		if len(row) > cadenceColSLO {
			rec.SLODays = parseSLO(row[cadenceColSLO])
		}
		if len(row) > cadenceColNotes {
			rec.Notes = row[cadenceColNotes]
		}
		if len(row) > cadenceCoreWidth {
			rec.Extra = append([]string(nil), row[cadenceCoreWidth:]...)
		}
	}
}

// Record updates cadence state if the event is a 1:1; any other event is
// a no-op. Past events (start at or before now) compete for the most
// recent last-meeting slot, future events for the soonest next-meeting
// slot.
func (t *Tracker) Record(ev model.Occurrence, now time.Time) {
	if len(CanonicalGuests(ev, t.aliases)) != 2 {
		return
	}
	partner, ok := OneOnOnePartner(ev, t.owner, t.aliases)
	if !ok {
		return
	}

	rec := t.ensure(t.displayIdentity(partner))

	if !ev.Start.After(now) {
		// Keep the most recent past meeting.
		if rec.Last.IsZero() || ev.Start.After(rec.Last) {
			rec.Last = ev.Start
		}
	} else {
		// Keep the soonest future meeting.
		if rec.Next.IsZero() || ev.Start.Before(rec.Next) {
			rec.Next = ev.Start
		}
	}
}

// Render flattens the tracker into sheet rows. Overdue is computed here
// as a static value (not a live sheet formula):
//
//   - no SLO            -> blank
//   - SLO but no last   -> the SLO itself (never met, fully overdue)
//   - otherwise         -> days since last minus SLO, blank when <= 0
//
// Rows come out in insertion order; the sink applies the final sort.
// Every row is padded to the persisted header width.
func (t *Tracker) Render(now time.Time) (header []string, rows [][]any) {
	header = make([]string, t.headerWidth)
	copy(header, CadenceHeader)
	for i, name := range t.extraHeader {
		if col := cadenceCoreWidth + i; col < t.headerWidth {
			header[col] = name
		}
	}

	rows = make([][]any, 0, len(t.order))
	for _, who := range t.order {
		rec := t.records[who]

		row := make([]any, t.headerWidth)
		for i := range row {
			row[i] = ""
		}
		row[cadenceColWho] = who
		if !rec.Last.IsZero() {
			row[cadenceColLast] = rec.Last.Format(dateLayout)
		}
		if !rec.Next.IsZero() {
			row[cadenceColNext] = rec.Next.Format(dateLayout)
		}
		if rec.SLODays > 0 {
			row[cadenceColSLO] = rec.SLODays
		}
		if over, ok := overdueDays(rec, now); ok {
			row[cadenceColOverdue] = over
		}
		row[cadenceColNotes] = rec.Notes
		for i, extra := range rec.Extra {
			col := cadenceCoreWidth + i
			if col < t.headerWidth {
				row[col] = extra
			}
		}

		rows = append(rows, row)
	}
	return header, rows
}

// Len reports how many counterparties are tracked.
func (t *Tracker) Len() int {
	return len(t.records)
}

func (t *Tracker) ensure(who string) *CadenceRecord {
	if rec, ok := t.records[who]; ok {
		return rec
	}
	rec := &CadenceRecord{}
	t.records[who] = rec
	t.order = append(t.order, who)
	return rec
}

// displayIdentity strips the owner's domain suffix from a counterparty
// identity. Purely cosmetic, distinct from alias canonicalization:
// "bob@hurstdog.org" reads as "bob" in the owner's sheet.
func (t *Tracker) displayIdentity(id string) string {
	if t.domain == "" {
		return id
	}
	return strings.TrimSuffix(id, "@"+t.domain)
}

func overdueDays(rec *CadenceRecord, now time.Time) (int, bool) {
	if rec.SLODays <= 0 {
		return 0, false
	}
	if rec.Last.IsZero() {
		return rec.SLODays, true
	}
	over := int(now.Sub(rec.Last).Hours()/24) - rec.SLODays
	if over <= 0 {
		return 0, false
	}
	return over, true
}

// parseSLO reads a user-entered SLO cell. Sheets hand numbers back as
// strings, occasionally in float form.
func parseSLO(s string) int {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return int(f)
	}
	return 0
}
