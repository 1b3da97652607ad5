package stats

import (
	"strings"

	"calstats/internal/model"
)

// Classifier assigns a Category to each event. It is a pure value: all
// inputs are fixed at construction and no call mutates it.
type Classifier struct {
	owner     string
	tagMarker string
	aliases   map[string]string
}

// NewClassifier builds a Classifier for the given owner identity, tag
// marker and alias table.
func NewClassifier(owner, tagMarker string, aliases map[string]string) *Classifier {
	return &Classifier{
		owner:     CanonicalIdentity(owner, aliases),
		tagMarker: tagMarker,
		aliases:   aliases,
	}
}

// Classify maps an event onto its Category.
//
// Precedence: an explicit description tag beats every guest heuristic;
// then zero canonical guests or the owner alone means blocked time; a
// canonical guest set of exactly two (owner included, duplicates and
// aliases collapsed) is a 1:1; anything else is a plain meeting.
func (c *Classifier) Classify(ev model.Occurrence) Category {
	if tag, ok := ExtractTag(ev.Description, c.tagMarker); ok {
		return Category(tag)
	}

	// Canonicalize before counting: an owner attending under both a work
	// and an aliased personal address still collapses to one identity.
	guests := CanonicalGuests(ev, c.aliases)

	switch len(guests) {
	case 0:
		return CategoryBlocked
	case 1:
		if _, ownerOnly := guests[c.owner]; ownerOnly {
			return CategoryBlocked
		}
		return CategoryMeetings
	case 2:
		return CategoryOneOnOnes
	default:
		return CategoryMeetings
	}
}

// ExtractTag scans an event description line by line for the marker
// prefix. The first trimmed line starting with the marker yields the
// remainder of that line as the tag; later matches are ignored.
func ExtractTag(description, marker string) (string, bool) {
	if marker == "" || description == "" {
		return "", false
	}
	for _, line := range strings.Split(description, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, marker) {
			return line[len(marker):], true
		}
	}
	return "", false
}
