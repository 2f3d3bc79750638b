package importer

// Decision is the conflict policy outcome for one item row.
type Decision int

const (
	// DecisionCreate persists a new item; no existing item matched.
	DecisionCreate Decision = iota + 1
	// DecisionUpdate overwrites the matched item in place.
	DecisionUpdate
	// DecisionSkip leaves the matched item alone and writes nothing.
	DecisionSkip
	// DecisionDuplicate persists a new item next to the matched one, with
	// DuplicateSuffix appended to its name.
	DecisionDuplicate
)

// DuplicateSuffix marks items created alongside an existing match.
const DuplicateSuffix = " (Imported)"

func (d Decision) String() string {
	switch d {
	case DecisionCreate:
		return "create"
	case DecisionUpdate:
		return "update"
	case DecisionSkip:
		return "skip"
	case DecisionDuplicate:
		return "duplicate"
	}
	return "unknown"
}

// Decide applies the item conflict policy. Update wins over skip when both
// flags are set. With neither flag a match is imported as a marked
// duplicate.
func Decide(matchExists, updateExisting, skipDuplicates bool) Decision {
	switch {
	case !matchExists:
		return DecisionCreate
	case updateExisting:
		return DecisionUpdate
	case skipDuplicates:
		return DecisionSkip
	default:
		return DecisionDuplicate
	}
}
