package enrich

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/EnzoMH/cradcrawl-enrich/internal/model"
	"github.com/EnzoMH/cradcrawl-enrich/internal/ratelimit"
	"github.com/EnzoMH/cradcrawl-enrich/internal/store"
)

// --- fakes ---

type fakeStore struct {
	mu         sync.Mutex
	orgs       map[string]model.Organization
	updates    []store.ContactUpdate
	updateErrs []error // consumed one per UpdateOrganizationContact call
}

func newFakeStore(orgs ...model.Organization) *fakeStore {
	fs := &fakeStore{orgs: make(map[string]model.Organization)}
	for _, o := range orgs {
		fs.orgs[o.ID] = o
	}
	return fs
}

func (f *fakeStore) CreateOrganization(_ context.Context, org model.Organization) (*model.Organization, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.orgs[org.ID] = org
	return &org, nil
}

func (f *fakeStore) GetOrganization(_ context.Context, id string) (*model.Organization, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	org, ok := f.orgs[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &org, nil
}

func (f *fakeStore) UpdateOrganizationContact(_ context.Context, id string, upd store.ContactUpdate) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates = append(f.updates, upd)
	if len(f.updateErrs) > 0 {
		err := f.updateErrs[0]
		f.updateErrs = f.updateErrs[1:]
		if err != nil {
			return err
		}
	}
	org := f.orgs[id]
	for field, v := range upd.Fields {
		org.SetFieldValue(field, v)
	}
	if upd.Status != nil {
		org.Status = *upd.Status
	}
	org.UpdatedAt = upd.EnrichedAt
	f.orgs[id] = org
	return nil
}

func (f *fakeStore) ListOrganizations(_ context.Context, _ store.OrgFilter) ([]model.Organization, error) {
	return nil, nil
}

func (f *fakeStore) ListIncomplete(_ context.Context, _ store.CandidateFilter) ([]model.Organization, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Organization
	for _, o := range f.orgs {
		if len(MissingFields(o)) > 0 {
			out = append(out, o)
		}
	}
	return out, nil
}

func (f *fakeStore) SaveJobSummary(_ context.Context, _ model.JobSnapshot) error { return nil }
func (f *fakeStore) ListJobSummaries(_ context.Context, _ int) ([]model.JobSnapshot, error) {
	return nil, nil
}
func (f *fakeStore) Migrate(_ context.Context) error { return nil }
func (f *fakeStore) Close() error                    { return nil }

func (f *fakeStore) updateCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.updates)
}

type fakeSearcher struct {
	url string
	err error
}

func (f *fakeSearcher) Discover(_ context.Context, _, _ string) (string, error) {
	return f.url, f.err
}

type fakeFetcher struct {
	text string
	err  error
}

func (f *fakeFetcher) Name() string { return "fake" }
func (f *fakeFetcher) FetchText(_ context.Context, _ string) (string, error) {
	return f.text, f.err
}

type fakeExtractor struct {
	result map[model.ContactField]string
	err    error
	got    []model.ContactField
}

func (f *fakeExtractor) Extract(_ context.Context, _ string, targets []model.ContactField) (map[model.ContactField]string, error) {
	f.got = targets
	return f.result, f.err
}

// --- tests ---

func TestEnrich_FillsMissingFields(t *testing.T) {
	t.Parallel()

	org := model.Organization{
		ID:      "org-1",
		Name:    "은혜교회",
		Address: "서울시 서초구",
		Status:  model.StatusNew,
	}
	fs := newFakeStore(org)
	extractor := &fakeExtractor{result: map[model.ContactField]string{
		model.FieldPhone: "02-1234-5678",
		model.FieldEmail: "OFFICE@grace.or.kr",
	}}

	e := New(fs,
		&fakeSearcher{url: "https://grace.or.kr"},
		&fakeFetcher{text: pageText()},
		extractor,
		nil,
		Options{},
	)

	outcome := e.Enrich(context.Background(), org)

	require.Equal(t, model.OutcomeSuccess, outcome.Status)
	assert.Equal(t, []model.ContactField{
		model.FieldPhone,
		model.FieldEmail,
		model.FieldHomepage,
	}, outcome.Filled)
	assert.Equal(t, "02-1234-5678", outcome.Found[model.FieldPhone])
	assert.Equal(t, "office@grace.or.kr", outcome.Found[model.FieldEmail])
	assert.Equal(t, "https://grace.or.kr", outcome.Found[model.FieldHomepage])
	assert.Equal(t, string(GradeB), outcome.Grade)

	require.Equal(t, 1, fs.updateCount())
	upd := fs.updates[0]
	require.NotNil(t, upd.Status)
	assert.Equal(t, model.StatusContacted, *upd.Status)

	// Present fields were never requested from extraction.
	assert.NotContains(t, extractor.got, model.FieldAddress)
}

func TestEnrich_NothingMissingWritesNothing(t *testing.T) {
	t.Parallel()

	org := model.Organization{
		ID:       "org-1",
		Name:     "은혜교회",
		Address:  "서울시 서초구",
		Phone:    "02-1234-5678",
		Fax:      "02-1234-5679",
		Email:    "a@b.kr",
		Homepage: "https://b.kr",
	}
	fs := newFakeStore(org)

	e := New(fs, nil, &fakeFetcher{}, nil, nil, Options{})
	outcome := e.Enrich(context.Background(), org)

	assert.Equal(t, model.OutcomeSuccess, outcome.Status)
	assert.Empty(t, outcome.Filled)
	assert.Equal(t, string(GradeA), outcome.Grade)
	assert.Zero(t, fs.updateCount())
}

func TestEnrich_FaxMatchingPhoneStaysEmpty(t *testing.T) {
	t.Parallel()

	org := model.Organization{
		ID:       "org-1",
		Name:     "은혜교회",
		Address:  "서울시 서초구",
		Phone:    "02-1234-5678",
		Homepage: "https://grace.or.kr",
		Status:   model.StatusNew,
	}
	fs := newFakeStore(org)
	extractor := &fakeExtractor{result: map[model.ContactField]string{
		model.FieldFax: "02) 1234-5678",
	}}

	e := New(fs, nil, &fakeFetcher{text: pageText()}, extractor, nil, Options{})
	outcome := e.Enrich(context.Background(), org)

	require.Equal(t, model.OutcomeSuccess, outcome.Status)
	assert.NotContains(t, outcome.Found, model.FieldFax)
	assert.Contains(t, outcome.Notes, "fax_matches_phone")

	require.Equal(t, 1, fs.updateCount())
	assert.NotContains(t, fs.updates[0].Fields, model.FieldFax)
}

func TestEnrich_DiscoveryFailureDegrades(t *testing.T) {
	t.Parallel()

	org := model.Organization{ID: "org-1", Name: "은혜교회", Status: model.StatusNew}
	fs := newFakeStore(org)

	e := New(fs,
		&fakeSearcher{err: eris.New("search down")},
		&fakeFetcher{err: eris.New("should not be called")},
		&fakeExtractor{},
		nil,
		Options{},
	)
	outcome := e.Enrich(context.Background(), org)

	assert.Equal(t, model.OutcomeSuccess, outcome.Status)
	assert.Empty(t, outcome.Filled)
	assert.Contains(t, outcome.Notes, "homepage discovery failed")
	// Nothing found, but the attempt is still recorded once.
	require.Equal(t, 1, fs.updateCount())
	assert.Empty(t, fs.updates[0].Fields)
	assert.Nil(t, fs.updates[0].Status)
}

func TestEnrich_FetchFailureDegrades(t *testing.T) {
	t.Parallel()

	org := model.Organization{
		ID:       "org-1",
		Name:     "은혜교회",
		Homepage: "https://grace.or.kr",
	}
	fs := newFakeStore(org)

	e := New(fs, nil, &fakeFetcher{err: eris.New("timeout")}, &fakeExtractor{}, nil, Options{})
	outcome := e.Enrich(context.Background(), org)

	assert.Equal(t, model.OutcomeSuccess, outcome.Status)
	assert.Contains(t, outcome.Notes, "page fetch failed")
	assert.Empty(t, outcome.Filled)
}

func TestEnrich_InvalidCandidatesRejected(t *testing.T) {
	t.Parallel()

	org := model.Organization{
		ID:       "org-1",
		Name:     "은혜교회",
		Homepage: "https://grace.or.kr",
	}
	fs := newFakeStore(org)
	extractor := &fakeExtractor{result: map[model.ContactField]string{
		model.FieldPhone: "1234",              // unknown area code
		model.FieldEmail: "office@grace.or.kr", // fine
	}}

	e := New(fs, nil, &fakeFetcher{text: pageText()}, extractor, nil, Options{})
	outcome := e.Enrich(context.Background(), org)

	require.Equal(t, model.OutcomeSuccess, outcome.Status)
	assert.Equal(t, []model.ContactField{model.FieldEmail}, outcome.Filled)
}

func TestEnrich_SecondCallConverges(t *testing.T) {
	t.Parallel()

	org := model.Organization{
		ID:       "org-1",
		Name:     "은혜교회",
		Address:  "서울시 서초구",
		Homepage: "https://grace.or.kr",
		Status:   model.StatusNew,
	}
	fs := newFakeStore(org)
	extractor := &fakeExtractor{result: map[model.ContactField]string{
		model.FieldPhone: "02-1234-5678",
		model.FieldEmail: "office@grace.or.kr",
	}}

	e := New(fs, nil, &fakeFetcher{text: pageText()}, extractor, nil, Options{})

	first := e.EnrichByID(context.Background(), "org-1")
	require.Equal(t, model.OutcomeSuccess, first.Status)
	require.Equal(t, []model.ContactField{model.FieldPhone, model.FieldEmail}, first.Filled)

	// The fax is still missing, so the second pass runs again, but it
	// only asks for the fax and re-fills nothing already present.
	second := e.EnrichByID(context.Background(), "org-1")
	require.Equal(t, model.OutcomeSuccess, second.Status)
	assert.Empty(t, second.Filled)
	assert.Equal(t, []model.ContactField{model.FieldFax}, extractor.got)

	require.Equal(t, 2, fs.updateCount())
	assert.Empty(t, fs.updates[1].Fields)

	final := fs.orgs["org-1"]
	assert.Equal(t, "02-1234-5678", final.Phone)
	assert.Equal(t, "office@grace.or.kr", final.Email)
}

func TestEnrich_ConflictRetriesOnceWithFreshRow(t *testing.T) {
	t.Parallel()

	org := model.Organization{ID: "org-1", Name: "은혜교회", Homepage: "https://grace.or.kr"}
	fs := newFakeStore(org)
	fs.updateErrs = []error{store.ErrConflict}

	// Simulate a manual edit landing between read and write.
	manual := fs.orgs["org-1"]
	manual.Phone = "02-9999-8888"
	manual.UpdatedAt = time.Now()
	fs.orgs["org-1"] = manual

	extractor := &fakeExtractor{result: map[model.ContactField]string{
		model.FieldPhone: "02-1234-5678",
		model.FieldEmail: "office@grace.or.kr",
	}}

	e := New(fs, nil, &fakeFetcher{text: pageText()}, extractor, nil, Options{})
	outcome := e.Enrich(context.Background(), org)

	require.Equal(t, model.OutcomeSuccess, outcome.Status)
	require.Equal(t, 2, fs.updateCount())

	// The retry respects the manual phone edit and keeps only the email.
	retry := fs.updates[1]
	assert.NotContains(t, retry.Fields, model.FieldPhone)
	assert.Contains(t, retry.Fields, model.FieldEmail)

	final := fs.orgs["org-1"]
	assert.Equal(t, "02-9999-8888", final.Phone)
	assert.Equal(t, "office@grace.or.kr", final.Email)
}

func TestEnrich_SecondConflictFails(t *testing.T) {
	t.Parallel()

	org := model.Organization{ID: "org-1", Name: "은혜교회", Homepage: "https://grace.or.kr"}
	fs := newFakeStore(org)
	fs.updateErrs = []error{store.ErrConflict, store.ErrConflict}

	extractor := &fakeExtractor{result: map[model.ContactField]string{
		model.FieldEmail: "office@grace.or.kr",
	}}

	e := New(fs, nil, &fakeFetcher{text: pageText()}, extractor, nil, Options{})
	outcome := e.Enrich(context.Background(), org)

	assert.Equal(t, model.OutcomeFailure, outcome.Status)
	assert.NotEmpty(t, outcome.Error)
	assert.Equal(t, 2, fs.updateCount())
}

func TestEnrich_RateLimitedSkipsExtraction(t *testing.T) {
	t.Parallel()

	org := model.Organization{ID: "org-1", Name: "은혜교회", Homepage: "https://grace.or.kr"}
	fs := newFakeStore(org)

	limiter := ratelimit.New(ratelimit.Config{
		RequestsPerMinute: 1,
		RetryWait:         time.Millisecond,
	})
	require.True(t, limiter.Acquire(0)) // window already full

	extractor := &fakeExtractor{result: map[model.ContactField]string{
		model.FieldPhone: "02-1234-5678",
	}}

	e := New(fs, nil, &fakeFetcher{text: pageText()}, extractor, limiter, Options{})
	outcome := e.Enrich(context.Background(), org)

	assert.Equal(t, model.OutcomeSuccess, outcome.Status)
	assert.Empty(t, outcome.Filled)
	assert.Contains(t, outcome.Notes, "rate limited, extraction skipped")
	assert.Nil(t, extractor.got)
}

func TestEnrichByID_UnknownOrganizationFails(t *testing.T) {
	t.Parallel()

	e := New(newFakeStore(), nil, &fakeFetcher{}, nil, nil, Options{})
	outcome := e.EnrichByID(context.Background(), "nope")

	assert.Equal(t, model.OutcomeFailure, outcome.Status)
	assert.NotEmpty(t, outcome.Error)
}

func pageText() string {
	return "은혜교회 | 오시는 길 | 대표전화 02-1234-5678 | 이메일 office@grace.or.kr | " +
		"서울시 서초구 반포대로 123 | 주일예배 안내와 교회 소개, 교역자 소개, 교회학교 안내 페이지입니다."
}
