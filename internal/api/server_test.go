package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/comixlabs/catalog-etl/internal/catalog"
	"github.com/comixlabs/catalog-etl/internal/store"
)

// fakeLedger serves canned runs.
type fakeLedger struct {
	runs       map[int64]store.AuditRun
	lastStatus *store.RunStatus
	lastLimit  int
	lastOffset int
	listErr    error
}

func (l *fakeLedger) Begin(context.Context, string, time.Time) (int64, error) {
	return 0, nil
}

func (l *fakeLedger) Finish(context.Context, int64, time.Time, int, int, store.RunStatus, string) error {
	return nil
}

func (l *fakeLedger) GetRun(_ context.Context, runID int64) (store.AuditRun, error) {
	run, ok := l.runs[runID]
	if !ok {
		return store.AuditRun{}, store.ErrNotFound
	}
	return run, nil
}

func (l *fakeLedger) ListRuns(_ context.Context, status *store.RunStatus, limit, offset int) ([]store.AuditRun, error) {
	l.lastStatus = status
	l.lastLimit = limit
	l.lastOffset = offset
	if l.listErr != nil {
		return nil, l.listErr
	}
	var out []store.AuditRun
	for _, run := range l.runs {
		if status == nil || run.Status == *status {
			out = append(out, run)
		}
	}
	return out, nil
}

type fakeQuality struct {
	report catalog.AnomalyReport
}

func (f *fakeQuality) ScanAnomalies(context.Context) (catalog.AnomalyReport, error) {
	return f.report, nil
}

func (f *fakeQuality) TopSeries(context.Context, int) ([]store.SeriesCount, error) {
	return nil, nil
}

func (f *fakeQuality) IssueCovers(context.Context, int) ([]store.CoverRef, error) {
	return nil, nil
}

func newTestServer(t *testing.T, ledger store.AuditLedger, qs store.QualityStore) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(NewServer(ledger, qs, nil).Handler())
	t.Cleanup(srv.Close)
	return srv
}

func seededLedger() *fakeLedger {
	started := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	finished := started.Add(90 * time.Second)
	return &fakeLedger{runs: map[int64]store.AuditRun{
		1: {
			ID:            1,
			SourceSystem:  "marvel",
			StartedAt:     started,
			FinishedAt:    &finished,
			RecordsRead:   130,
			RecordsLoaded: 130,
			Status:        store.RunSuccess,
		},
		2: {
			ID:           2,
			SourceSystem: "marvel",
			StartedAt:    started,
			Status:       store.RunRunning,
		},
	}}
}

func getJSON(t *testing.T, url string, out any) *http.Response {
	t.Helper()
	resp, err := http.Get(url) //nolint:gosec // test server URL
	require.NoError(t, err)
	defer resp.Body.Close() //nolint:errcheck // test body
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp
}

func TestHealthz(t *testing.T) {
	srv := newTestServer(t, seededLedger(), &fakeQuality{})

	var body map[string]string
	resp := getJSON(t, srv.URL+"/healthz", &body)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "ok", body["status"])
	require.NotEmpty(t, resp.Header.Get("X-Request-ID"))
}

func TestListRunsFiltersByStatus(t *testing.T) {
	ledger := seededLedger()
	srv := newTestServer(t, ledger, &fakeQuality{})

	var body struct {
		Runs []store.AuditRun `json:"runs"`
	}
	resp := getJSON(t, srv.URL+"/api/runs?status=running&limit=10&offset=5", &body)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, body.Runs, 1)
	require.Equal(t, store.RunRunning, body.Runs[0].Status)
	require.NotNil(t, ledger.lastStatus)
	require.Equal(t, store.RunRunning, *ledger.lastStatus)
	require.Equal(t, 10, ledger.lastLimit)
	require.Equal(t, 5, ledger.lastOffset)
}

func TestListRunsRejectsBadParams(t *testing.T) {
	srv := newTestServer(t, seededLedger(), &fakeQuality{})

	resp := getJSON(t, srv.URL+"/api/runs?status=bogus", nil)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = getJSON(t, srv.URL+"/api/runs?limit=-1", nil)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = getJSON(t, srv.URL+"/api/runs?offset=x", nil)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestGetRun(t *testing.T) {
	srv := newTestServer(t, seededLedger(), &fakeQuality{})

	var body struct {
		Run store.AuditRun `json:"run"`
	}
	resp := getJSON(t, srv.URL+"/api/runs/1", &body)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, int64(1), body.Run.ID)
	require.Equal(t, store.RunSuccess, body.Run.Status)

	resp = getJSON(t, srv.URL+"/api/runs/99", nil)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = getJSON(t, srv.URL+"/api/runs/abc", nil)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestQualityReport(t *testing.T) {
	qs := &fakeQuality{report: catalog.AnomalyReport{
		TotalIssues:       130,
		NullCoverDates:    4,
		OrphanIssues:      1,
		DuplicateCreators: 0,
	}}
	srv := newTestServer(t, seededLedger(), qs)

	var body struct {
		Anomalies catalog.AnomalyReport `json:"anomalies"`
	}
	resp := getJSON(t, srv.URL+"/api/quality", &body)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, int64(1), body.Anomalies.OrphanIssues)
	require.Equal(t, int64(130), body.Anomalies.TotalIssues)
}

func TestMetricsEndpoint(t *testing.T) {
	srv := newTestServer(t, seededLedger(), &fakeQuality{})

	resp := getJSON(t, srv.URL+"/metrics", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
}
