package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/EnzoMH/cradcrawl-enrich/internal/enrich"
	"github.com/EnzoMH/cradcrawl-enrich/internal/job"
	"github.com/EnzoMH/cradcrawl-enrich/internal/model"
	"github.com/EnzoMH/cradcrawl-enrich/internal/store"
)

func newTestEnv(t *testing.T) *appEnv {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))

	enricher := enrich.New(st, nil, nil, nil, nil, enrich.Options{})
	return &appEnv{
		Store:        st,
		Enricher:     enricher,
		Orchestrator: job.NewOrchestrator(enricher, st, job.NewRegistry()),
	}
}

func TestServeMux_Health(t *testing.T) {
	mux := newServeMux(context.Background(), newTestEnv(t))

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestServeMux_JobLifecycle(t *testing.T) {
	env := newTestEnv(t)
	mux := newServeMux(context.Background(), env)

	created, err := env.Store.CreateOrganization(context.Background(), model.Organization{
		Name:     "소망교회",
		Address:  "서울시 강남구",
		Phone:    "02-512-9191",
		Fax:      "02-512-9192",
		Email:    "info@somang.net",
		Homepage: "https://www.somang.net",
	})
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	body := strings.NewReader(`{"name":"api-test","org_ids":["` + created.ID + `"]}`)
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/jobs", body))
	require.Equal(t, http.StatusAccepted, rec.Code)

	var started struct {
		JobID string `json:"job_id"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &started))
	require.NotEmpty(t, started.JobID)

	// The single complete organization is a no-op; the job finishes fast.
	require.Eventually(t, func() bool {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/jobs/"+started.JobID, nil))
		if rec.Code != http.StatusOK {
			return false
		}
		var snap model.JobSnapshot
		if err := json.Unmarshal(rec.Body.Bytes(), &snap); err != nil {
			return false
		}
		return snap.Status == model.JobStatusCompleted && snap.Succeeded == 1
	}, 5*time.Second, 10*time.Millisecond)
}

func TestServeMux_JobNotFound(t *testing.T) {
	mux := newServeMux(context.Background(), newTestEnv(t))

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/jobs/nope", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/jobs/nope/stop", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServeMux_Stats(t *testing.T) {
	env := newTestEnv(t)
	mux := newServeMux(context.Background(), env)

	_, err := env.Store.CreateOrganization(context.Background(), model.Organization{
		Name:    "행복어린이집",
		Address: "서울시 강남구",
		Phone:   "02-1234-5678",
	})
	require.NoError(t, err)
	_, err = env.Store.CreateOrganization(context.Background(), model.Organization{Name: "은혜교회"})
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/stats", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var stats struct {
		Candidates int            `json:"candidates"`
		ByPriority map[string]int `json:"by_priority"`
		ByGrade    map[string]int `json:"by_grade"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Equal(t, 2, stats.Candidates)
	assert.Equal(t, 1, stats.ByGrade["C"])
	assert.Equal(t, 1, stats.ByGrade["E"])
	assert.Equal(t, 1, stats.ByPriority[string(model.PriorityHigh)])
}

func TestServeMux_EnrichValidation(t *testing.T) {
	mux := newServeMux(context.Background(), newTestEnv(t))

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/enrich", strings.NewReader(`{}`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/enrich", strings.NewReader(`not json`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServeMux_EnrichUnknownOrg(t *testing.T) {
	mux := newServeMux(context.Background(), newTestEnv(t))

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/enrich", strings.NewReader(`{"org_id":"nope"}`)))
	require.Equal(t, http.StatusOK, rec.Code)

	var outcome model.Outcome
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &outcome))
	assert.Equal(t, model.OutcomeFailure, outcome.Status)
}
