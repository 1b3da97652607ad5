package stats

import (
	"errors"
	"sort"
	"strings"

	appLog "calstats/internal/log"
	"calstats/internal/model"
)

// CanonicalIdentity resolves one raw identity through the alias table.
// Identities are compared case-insensitively, so everything is lowered
// first; lookups are single-hop (alias targets are final).
func CanonicalIdentity(raw string, aliases map[string]string) string {
	id := strings.ToLower(strings.TrimSpace(raw))
	if canon, ok := aliases[id]; ok {
		return strings.ToLower(canon)
	}
	return id
}

// CanonicalGuests resolves an event's guest list into a deduplicated set
// of canonical identities. The owner is included if listed as a guest;
// callers decide whether to exclude it.
func CanonicalGuests(ev model.Occurrence, aliases map[string]string) map[string]struct{} {
	set := make(map[string]struct{}, len(ev.Guests))
	for _, g := range ev.Guests {
		id := CanonicalIdentity(g, aliases)
		if id == "" {
			continue
		}
		set[id] = struct{}{}
	}
	return set
}

// OneOnOnePartner returns the canonical counterparty of a 1:1 event. The
// canonical guest set must have exactly two members; anything else is a
// malformed 1:1, logged and reported as no partner so callers skip the
// event for cadence tracking.
//
// When neither member is the owner (a 1:1 held on a delegated calendar),
// the lexically smallest member is picked so runs stay deterministic.
func OneOnOnePartner(ev model.Occurrence, owner string, aliases map[string]string) (string, bool) {
	guests := CanonicalGuests(ev, aliases)
	if len(guests) != 2 {
		appLog.Error("malformed 1:1, skipping for cadence",
			errors.New("canonical guest count is not 2"),
			"summary", ev.Summary,
			"guest_count", len(guests),
		)
		return "", false
	}

	owner = CanonicalIdentity(owner, aliases)
	others := make([]string, 0, 2)
	for g := range guests {
		if g != owner {
			others = append(others, g)
		}
	}
	if len(others) == 0 {
		// A set cannot hold the owner twice, so this only trips on a
		// future regression in dedup.
		return "", false
	}
	sort.Strings(others)
	return others[0], true
}
