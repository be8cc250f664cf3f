package enrich

import (
	"github.com/EnzoMH/cradcrawl-enrich/internal/model"
)

// MissingFields returns the organization's missing contact fields in
// the fixed target order (phone first). A field is missing when it is
// empty after trimming whitespace. Pure, no side effects.
func MissingFields(org model.Organization) []model.ContactField {
	var missing []model.ContactField
	for _, f := range model.TargetFields {
		if !org.HasField(f) {
			missing = append(missing, f)
		}
	}
	return missing
}

// BuildCandidate derives the enrichment candidate view for an
// organization: its missing fields plus the priority level implied by
// how many are missing.
func BuildCandidate(org model.Organization) model.Candidate {
	missing := MissingFields(org)
	return model.Candidate{
		Org:      org,
		Missing:  missing,
		Priority: model.PriorityFor(len(missing)),
	}
}
