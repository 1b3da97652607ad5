package stats

// Category is the meeting type an event is filed under. The fixed kinds
// below cover guest-count heuristics; events carrying an explicit tag in
// their description become an open-ended Category of that tag text.
type Category string

const (
	// CategoryBlocked is self-scheduled focus time: no guests, or the
	// owner alone.
	CategoryBlocked Category = "Blocked Time"

	// CategoryOneOnOnes is a meeting between the owner and exactly one
	// counterparty (two canonical guests total).
	CategoryOneOnOnes Category = "1:1s"

	// CategoryMeetings is everything else with guests.
	CategoryMeetings Category = "Meetings"

	// CategoryUnscheduled is the weekly ledger's remainder bucket. It is
	// never assigned to an event; every recorded hour is drained from it.
	CategoryUnscheduled Category = "Unscheduled"
)

// fixedLedgerOrder is the column order of the built-in categories in the
// weekly ledger. Tag categories follow, sorted.
var fixedLedgerOrder = []Category{
	CategoryOneOnOnes,
	CategoryMeetings,
	CategoryBlocked,
	CategoryUnscheduled,
}
