package ics

import (
	"testing"
	"time"
)

func window(days int) (time.Time, time.Time) {
	start := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	return start, start.AddDate(0, 0, days)
}

func TestExpandSingleEvent(t *testing.T) {
	start := time.Date(2026, 8, 12, 10, 0, 0, 0, time.UTC)
	ev := ParsedEvent{
		Source:      testSource,
		UID:         "ev1",
		Summary:     "Sync",
		Description: "TAG: Planning",
		Guests:      []string{"andrew@hurstdog.org", "bob@hurstdog.org"},
		Start:       start,
		End:         start.Add(time.Hour),
	}

	ws, we := window(30)
	res, err := ExpandOccurrences([]ParsedEvent{ev}, ExpandConfig{
		DisplayLocation: time.UTC,
		RangeStart:      ws,
		RangeEnd:        we,
	})
	if err != nil {
		t.Fatalf("expand: %v", err)
	}
	if len(res.Occurrences) != 1 {
		t.Fatalf("expected 1 occurrence, got %d", len(res.Occurrences))
	}

	occ := res.Occurrences[0]
	if !occ.Start.Equal(start) || occ.End.Sub(occ.Start) != time.Hour {
		t.Fatalf("occurrence times: %+v", occ)
	}
	// Description and guests must survive expansion: the aggregation
	// engine classifies on them.
	if occ.Description != "TAG: Planning" {
		t.Fatalf("description lost: %q", occ.Description)
	}
	if len(occ.Guests) != 2 {
		t.Fatalf("guests lost: %v", occ.Guests)
	}
}

func TestExpandOutsideWindow(t *testing.T) {
	start := time.Date(2026, 10, 1, 10, 0, 0, 0, time.UTC)
	ev := ParsedEvent{
		Source: testSource,
		UID:    "ev1",
		Start:  start,
		End:    start.Add(time.Hour),
	}

	ws, we := window(30)
	res, err := ExpandOccurrences([]ParsedEvent{ev}, ExpandConfig{
		DisplayLocation: time.UTC,
		RangeStart:      ws,
		RangeEnd:        we,
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Occurrences) != 0 {
		t.Fatalf("event outside window expanded: %v", res.Occurrences)
	}
}

func TestExpandRecurring(t *testing.T) {
	start := time.Date(2026, 8, 3, 9, 0, 0, 0, time.UTC) // a Monday
	ev := ParsedEvent{
		Source:   testSource,
		UID:      "standup",
		Summary:  "Standup",
		Guests:   []string{"andrew@hurstdog.org", "bob@hurstdog.org"},
		Start:    start,
		End:      start.Add(30 * time.Minute),
		RawRRule: "FREQ=DAILY;COUNT=3",
	}

	ws, we := window(30)
	res, err := ExpandOccurrences([]ParsedEvent{ev}, ExpandConfig{
		DisplayLocation: time.UTC,
		RangeStart:      ws,
		RangeEnd:        we,
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Occurrences) != 3 {
		t.Fatalf("expected 3 occurrences, got %d", len(res.Occurrences))
	}
	for _, occ := range res.Occurrences {
		if occ.End.Sub(occ.Start) != 30*time.Minute {
			t.Fatalf("duration not preserved: %+v", occ)
		}
		if len(occ.Guests) != 2 {
			t.Fatalf("guests lost on recurring occurrence: %+v", occ)
		}
	}
}

func TestExpandExDate(t *testing.T) {
	start := time.Date(2026, 8, 3, 9, 0, 0, 0, time.UTC)
	ex := start.AddDate(0, 0, 1)
	ev := ParsedEvent{
		Source:   testSource,
		UID:      "standup",
		Start:    start,
		End:      start.Add(30 * time.Minute),
		RawRRule: "FREQ=DAILY;COUNT=3",
		ExDates:  []time.Time{ex},
	}

	ws, we := window(30)
	res, err := ExpandOccurrences([]ParsedEvent{ev}, ExpandConfig{
		DisplayLocation: time.UTC,
		RangeStart:      ws,
		RangeEnd:        we,
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Occurrences) != 2 {
		t.Fatalf("expected exdate to remove one occurrence, got %d", len(res.Occurrences))
	}
	for _, occ := range res.Occurrences {
		if occ.Start.Equal(ex) {
			t.Fatalf("excluded occurrence still present: %+v", occ)
		}
	}
}

func TestExpandInvalidRange(t *testing.T) {
	ws, we := window(30)
	_, err := ExpandOccurrences(nil, ExpandConfig{
		RangeStart: we,
		RangeEnd:   ws,
	})
	if err == nil {
		t.Fatal("expected error for inverted range")
	}
}
