package model

import "time"

// Event represents a logical calendar event before recurrence expansion.
// Guests holds the raw attendee identities exactly as the source reported
// them; alias canonicalization happens downstream in internal/stats.
type Event struct {
	SourceID string // calendar source ID (e.g., config ICS ID)
	UID      string // iCalendar UID

	Summary     string
	Description string

	// Guests are attendee email addresses, owner included if the source
	// lists the owner as an attendee.
	Guests []string

	AllDay bool

	// Original start/end in the event's own timezone.
	Start time.Time
	End   time.Time
}

// Occurrence represents a single concrete instance of an event
// (after recurrence expansion and timezone normalization). This is the
// unit the aggregation engine consumes.
type Occurrence struct {
	SourceID string // calendar source ID
	UID      string // iCalendar UID

	// InstanceKey uniquely identifies a single occurrence of a recurring
	// event, derived from the local start time.
	InstanceKey string

	Summary     string
	Description string
	Guests      []string

	AllDay bool

	// Start / End are in the configured display timezone.
	Start time.Time
	End   time.Time
}

// Duration returns the occurrence length.
func (o Occurrence) Duration() time.Duration {
	return o.End.Sub(o.Start)
}

// Hours returns the occurrence length in fractional hours, the unit the
// weekly time ledger accounts in.
func (o Occurrence) Hours() float64 {
	return o.End.Sub(o.Start).Hours()
}
