package model

// Priority ranks how urgently a candidate needs enrichment, by count
// of missing target fields.
type Priority string

const (
	PriorityHigh   Priority = "HIGH"   // 4+ fields missing
	PriorityMedium Priority = "MEDIUM" // 2-3 fields missing
	PriorityLow    Priority = "LOW"    // 0-1 fields missing
)

// PriorityFor maps a missing-field count to a priority level.
func PriorityFor(missing int) Priority {
	switch {
	case missing >= 4:
		return PriorityHigh
	case missing >= 2:
		return PriorityMedium
	default:
		return PriorityLow
	}
}

// rank orders priorities for sorting, highest first.
func (p Priority) rank() int {
	switch p {
	case PriorityHigh:
		return 0
	case PriorityMedium:
		return 1
	default:
		return 2
	}
}

// Before reports whether p sorts ahead of other (more urgent first).
func (p Priority) Before(other Priority) bool {
	return p.rank() < other.rank()
}

// Candidate is an organization paired with its computed enrichment
// need. Derived on demand, never persisted.
type Candidate struct {
	Org      Organization   `json:"org"`
	Missing  []ContactField `json:"missing"`
	Priority Priority       `json:"priority"`
}
