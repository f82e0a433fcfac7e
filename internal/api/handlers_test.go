package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/gigharvest/internal/api"
	"github.com/jonesrussell/gigharvest/internal/domain"
	"github.com/jonesrussell/gigharvest/internal/logger"
	"github.com/jonesrussell/gigharvest/internal/plugin"
	"github.com/jonesrussell/gigharvest/internal/scheduler"
)

type fakeJobs struct {
	triggerErr error
	startErr   error
	stopErr    error
	jobs       []domain.ScheduledJob
	report     scheduler.HealthReport
	metrics    scheduler.MetricsSnapshot

	triggered []string
	stopped   []string
}

func (f *fakeJobs) Trigger(source string) error {
	f.triggered = append(f.triggered, source)
	return f.triggerErr
}

func (f *fakeJobs) StartJob(string) error { return f.startErr }

func (f *fakeJobs) StopJob(source string) error {
	f.stopped = append(f.stopped, source)
	return f.stopErr
}

func (f *fakeJobs) Jobs() ([]domain.ScheduledJob, error)    { return f.jobs, nil }
func (f *fakeJobs) Health() (scheduler.HealthReport, error) { return f.report, nil }
func (f *fakeJobs) GetMetrics() scheduler.MetricsSnapshot   { return f.metrics }

type fakeCatalog struct {
	metas []plugin.Metadata
}

func (f *fakeCatalog) Metas() []plugin.Metadata { return f.metas }

type fakeHistory struct {
	runs []domain.RunStats
	err  error

	source string
	limit  int
}

func (f *fakeHistory) Recent(_ context.Context, source string, limit int) ([]domain.RunStats, error) {
	f.source = source
	f.limit = limit
	return f.runs, f.err
}

func newTestRouter(jobs api.JobController, catalog api.SourceCatalog, history api.HistoryReader) http.Handler {
	log := logger.NewNoOp()
	return api.NewRouter(api.NewHandler(jobs, catalog, history, 20, log), log)
}

func doRequest(t *testing.T, router http.Handler, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, http.NoBody)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestHealthOK(t *testing.T) {
	jobs := &fakeJobs{report: scheduler.HealthReport{SweptAt: time.Now()}}
	router := newTestRouter(jobs, &fakeCatalog{}, nil)

	rec := doRequest(t, router, http.MethodGet, "/health")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decodeBody(t, rec)["status"])
}

func TestHealthDegraded(t *testing.T) {
	jobs := &fakeJobs{report: scheduler.HealthReport{
		SweptAt:   time.Now(),
		StuckJobs: []string{"massey-hall"},
	}}
	router := newTestRouter(jobs, &fakeCatalog{}, nil)

	rec := doRequest(t, router, http.MethodGet, "/health")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "degraded", decodeBody(t, rec)["status"])
}

func TestListJobs(t *testing.T) {
	jobs := &fakeJobs{jobs: []domain.ScheduledJob{
		{Source: "danforth", Status: domain.JobScheduled},
		{Source: "massey-hall", Status: domain.JobRunning},
	}}
	router := newTestRouter(jobs, &fakeCatalog{}, nil)

	rec := doRequest(t, router, http.MethodGet, "/api/v1/jobs")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Jobs []domain.ScheduledJob `json:"jobs"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Jobs, 2)
	assert.Equal(t, domain.JobRunning, body.Jobs[1].Status)
}

func TestTriggerJob(t *testing.T) {
	jobs := &fakeJobs{}
	router := newTestRouter(jobs, &fakeCatalog{}, nil)

	rec := doRequest(t, router, http.MethodPost, "/api/v1/jobs/massey-hall/trigger")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"massey-hall"}, jobs.triggered)
	assert.Equal(t, "triggered", decodeBody(t, rec)["status"])
}

func TestJobErrorStatusCodes(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"not found", scheduler.ErrJobNotFound, http.StatusNotFound},
		{"already running", scheduler.ErrJobRunning, http.StatusConflict},
		{"stopped", scheduler.ErrJobStopped, http.StatusConflict},
		{"internal", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			jobs := &fakeJobs{triggerErr: tt.err}
			router := newTestRouter(jobs, &fakeCatalog{}, nil)

			rec := doRequest(t, router, http.MethodPost, "/api/v1/jobs/massey-hall/trigger")
			require.Equal(t, tt.want, rec.Code)
			assert.Contains(t, decodeBody(t, rec)["error"], tt.err.Error())
		})
	}
}

func TestStopJob(t *testing.T) {
	jobs := &fakeJobs{}
	router := newTestRouter(jobs, &fakeCatalog{}, nil)

	rec := doRequest(t, router, http.MethodPost, "/api/v1/jobs/massey-hall/stop")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"massey-hall"}, jobs.stopped)
}

func TestListSources(t *testing.T) {
	catalog := &fakeCatalog{metas: []plugin.Metadata{
		{Name: "massey-hall", TrustScore: 90},
	}}
	router := newTestRouter(&fakeJobs{}, catalog, nil)

	rec := doRequest(t, router, http.MethodGet, "/api/v1/sources")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Sources []plugin.Metadata `json:"sources"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Sources, 1)
	assert.Equal(t, "massey-hall", body.Sources[0].Name)
}

func TestRunHistory(t *testing.T) {
	history := &fakeHistory{runs: []domain.RunStats{
		{ID: "run-1", Source: "massey-hall", Success: true},
	}}
	router := newTestRouter(&fakeJobs{}, &fakeCatalog{}, history)

	rec := doRequest(t, router, http.MethodGet, "/api/v1/runs/massey-hall")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "massey-hall", history.source)
	assert.Equal(t, 20, history.limit)
}

func TestRunHistoryDisabled(t *testing.T) {
	router := newTestRouter(&fakeJobs{}, &fakeCatalog{}, nil)

	rec := doRequest(t, router, http.MethodGet, "/api/v1/runs/massey-hall")
	require.Equal(t, http.StatusNotImplemented, rec.Code)
}

func TestRunHistoryReadError(t *testing.T) {
	history := &fakeHistory{err: errors.New("db unavailable")}
	router := newTestRouter(&fakeJobs{}, &fakeCatalog{}, history)

	rec := doRequest(t, router, http.MethodGet, "/api/v1/runs/massey-hall")
	require.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	jobs := &fakeJobs{metrics: scheduler.MetricsSnapshot{TotalRuns: 7, CompletedRuns: 6}}
	router := newTestRouter(jobs, &fakeCatalog{}, nil)

	rec := doRequest(t, router, http.MethodGet, "/api/v1/metrics")
	require.Equal(t, http.StatusOK, rec.Code)

	var snap scheduler.MetricsSnapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
	assert.Equal(t, int64(7), snap.TotalRuns)
	assert.Equal(t, int64(6), snap.CompletedRuns)
}
