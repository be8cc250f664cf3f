package enrich

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/EnzoMH/cradcrawl-enrich/internal/model"
	"github.com/EnzoMH/cradcrawl-enrich/internal/store"
)

func TestListCandidates(t *testing.T) {
	t.Parallel()

	fs := newFakeStore(
		model.Organization{ID: "full", Name: "a", Address: "서울", Phone: "02-1", Fax: "02-2", Email: "a@b.kr", Homepage: "https://a.kr"},
		model.Organization{ID: "bare", Name: "b"},
		model.Organization{ID: "half", Name: "c", Phone: "02-1", Address: "서울"},
		model.Organization{ID: "four", Name: "d", Phone: "02-1"},
	)

	candidates, err := ListCandidates(context.Background(), fs, store.CandidateFilter{})
	require.NoError(t, err)

	// Higher priority first; within a priority, more missing fields
	// first.
	require.Len(t, candidates, 3)
	assert.Equal(t, "bare", candidates[0].Org.ID)
	assert.Equal(t, model.PriorityHigh, candidates[0].Priority)
	assert.Equal(t, "four", candidates[1].Org.ID)
	assert.Equal(t, model.PriorityHigh, candidates[1].Priority)
	assert.Equal(t, "half", candidates[2].Org.ID)
	assert.Equal(t, model.PriorityMedium, candidates[2].Priority)
}

func TestStats(t *testing.T) {
	t.Parallel()

	candidates := []model.Candidate{
		BuildCandidate(model.Organization{Name: "a"}),
		BuildCandidate(model.Organization{Name: "b"}),
		BuildCandidate(model.Organization{Name: "c", Phone: "02-1", Address: "서울"}),
	}

	s := Stats(candidates)
	assert.Equal(t, 3, s.Total)
	assert.Equal(t, 2, s.ByPriority[model.PriorityHigh])
	assert.Equal(t, 1, s.ByPriority[model.PriorityMedium])
	assert.Equal(t, 2, s.ByGrade[GradeE])
	assert.Equal(t, 1, s.ByGrade[GradeC])
}
