package stats

import "sort"

// CountsHeader is the column layout of the meeting stats sheet.
var CountsHeader = []string{"Meeting Type", "Num Events"}

// Counts tallies how many events fell into each category over the
// window, the companion report to the hours ledger.
type Counts struct {
	byCategory map[Category]int
}

func NewCounts() *Counts {
	return &Counts{byCategory: make(map[Category]int)}
}

// Add increments the tally for one categorized event.
func (c *Counts) Add(cat Category) {
	c.byCategory[cat]++
}

// Total returns the number of events counted.
func (c *Counts) Total() int {
	n := 0
	for _, v := range c.byCategory {
		n += v
	}
	return n
}

// Render flattens the tally into rows, one per category, sorted by
// category name for determinism. The sink applies the final sort.
func (c *Counts) Render() (header []string, rows [][]any) {
	cats := make([]Category, 0, len(c.byCategory))
	for cat := range c.byCategory {
		cats = append(cats, cat)
	}
	sort.Slice(cats, func(i, j int) bool { return cats[i] < cats[j] })

	rows = make([][]any, 0, len(cats))
	for _, cat := range cats {
		rows = append(rows, []any{string(cat), c.byCategory[cat]})
	}
	return CountsHeader, rows
}
