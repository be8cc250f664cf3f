package enrich

import (
	"context"
	"sort"

	"github.com/rotisserie/eris"

	"github.com/EnzoMH/cradcrawl-enrich/internal/model"
	"github.com/EnzoMH/cradcrawl-enrich/internal/store"
)

// ListCandidates returns organizations with at least one missing
// contact field, most-incomplete first, tagged with a crawl priority.
func ListCandidates(ctx context.Context, st store.Store, filter store.CandidateFilter) ([]model.Candidate, error) {
	orgs, err := st.ListIncomplete(ctx, filter)
	if err != nil {
		return nil, eris.Wrap(err, "list candidates")
	}

	candidates := make([]model.Candidate, 0, len(orgs))
	for _, org := range orgs {
		c := BuildCandidate(org)
		if len(c.Missing) == 0 {
			continue
		}
		candidates = append(candidates, c)
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].Priority != candidates[j].Priority {
			return candidates[i].Priority.Before(candidates[j].Priority)
		}
		return len(candidates[i].Missing) > len(candidates[j].Missing)
	})
	return candidates, nil
}

// CandidateStats summarizes a candidate set for reporting.
type CandidateStats struct {
	Total      int
	ByPriority map[model.Priority]int
	ByGrade    map[Grade]int
}

// Stats aggregates priority and grade counts over candidates.
func Stats(candidates []model.Candidate) CandidateStats {
	s := CandidateStats{
		Total:      len(candidates),
		ByPriority: make(map[model.Priority]int),
		ByGrade:    make(map[Grade]int),
	}
	for _, c := range candidates {
		s.ByPriority[c.Priority]++
		s.ByGrade[GradeOrganization(c.Org)]++
	}
	return s
}
