package ics

import (
	"context"
	"fmt"
	"sort"
	"time"

	appLog "calstats/internal/log"
	"calstats/internal/model"
)

// Client combines fetch, parse and recurrence expansion into the single
// "give me the owner's events for a window" operation the aggregation
// pipeline consumes.
type Client struct {
	fetcher *Fetcher
	sources []Source
	loc     *time.Location
}

// NewClient creates a Client over the given sources. loc is the display
// timezone for expanded occurrences; nil means time.Local.
func NewClient(fetcher *Fetcher, sources []Source, loc *time.Location) *Client {
	if loc == nil {
		loc = time.Local
	}
	return &Client{
		fetcher: fetcher,
		sources: sources,
		loc:     loc,
	}
}

// Occurrences fetches every configured source and returns all concrete
// event occurrences intersecting [start, end], sorted by start time.
// Any source failing without a cached fallback fails the whole call;
// the caller must not touch the report sink in that case.
func (c *Client) Occurrences(ctx context.Context, start, end time.Time) ([]model.Occurrence, error) {
	results, err := c.fetcher.FetchAll(ctx, c.sources)
	if err != nil {
		return nil, err
	}

	parsed := make([]ParsedEvent, 0)
	for _, res := range results {
		evs, perr := ParseICS(res.Source, res.Body)
		if perr != nil {
			return nil, fmt.Errorf("parse source %s: %w", res.Source.ID, perr)
		}
		parsed = append(parsed, evs...)
	}

	expanded, err := ExpandOccurrences(parsed, ExpandConfig{
		DisplayLocation: c.loc,
		RangeStart:      start,
		RangeEnd:        end,
	})
	if err != nil {
		return nil, err
	}

	occs := expanded.Occurrences
	sort.Slice(occs, func(i, j int) bool {
		if !occs[i].Start.Equal(occs[j].Start) {
			return occs[i].Start.Before(occs[j].Start)
		}
		return occs[i].UID < occs[j].UID
	})

	appLog.Info("event window assembled",
		"sources", len(c.sources),
		"events", len(parsed),
		"occurrences", len(occs),
		"window_start", start.Format(time.RFC3339),
		"window_end", end.Format(time.RFC3339),
	)

	return occs, nil
}
