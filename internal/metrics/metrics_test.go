package metrics

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/mttbar/internal/db"
)

func TestObserveEvent(t *testing.T) {
	m := New()
	m.ObserveEvent("reconstructed", 27, 2, 3*time.Millisecond)
	m.ObserveEvent("reconstructed", 9, 1, time.Millisecond)
	m.ObserveEvent("rejected", 0, 0, 0)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Events.WithLabelValues("reconstructed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Events.WithLabelValues("rejected")))
	assert.Equal(t, 36.0, testutil.ToFloat64(m.Hypotheses))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Solutions.WithLabelValues("2")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.Latency))
}

func TestHandler(t *testing.T) {
	m := New()
	m.ObserveMass(812)
	m.Files.Inc()

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "mttbar_files_total 1")
	assert.Contains(t, string(body), "mttbar_mttbar_gev_count 1")
	assert.Contains(t, string(body), "go_goroutines")
}

func TestNew_Independent(t *testing.T) {
	a, b := New(), New()
	a.Files.Inc()
	assert.Equal(t, 0.0, testutil.ToFloat64(b.Files))
}

type fakeRuns struct {
	runs []db.Run
	err  error
}

func (f fakeRuns) Runs(context.Context) ([]db.Run, error) { return f.runs, f.err }

func TestStoreCollector(t *testing.T) {
	finished := time.Date(2012, 5, 1, 0, 0, 0, 0, time.UTC)
	m := New()
	require.NoError(t, m.WatchStore(fakeRuns{runs: []db.Run{
		{ID: "a", Strategy: "simple", Events: 20, Selected: 12, Reconstructed: 11, Skipped: 1, FinishedAt: &finished},
		{ID: "b", Strategy: "chi2", Events: 5},
	}}))

	expected := `
# HELP mttbar_store_runs Runs recorded in the result store.
# TYPE mttbar_store_runs gauge
mttbar_store_runs 2
# HELP mttbar_store_run_finished 1 if the stored run finished, else 0.
# TYPE mttbar_store_run_finished gauge
mttbar_store_run_finished{run="a",strategy="simple"} 1
mttbar_store_run_finished{run="b",strategy="chi2"} 0
`
	assert.NoError(t, testutil.GatherAndCompare(m.Registry(), strings.NewReader(expected),
		"mttbar_store_runs", "mttbar_store_run_finished"))

	n, err := testutil.GatherAndCount(m.Registry(), "mttbar_store_run_events")
	require.NoError(t, err)
	assert.Equal(t, 8, n)
}

func TestStoreCollector_Error(t *testing.T) {
	m := New()
	require.NoError(t, m.WatchStore(fakeRuns{err: errors.New("database is locked")}))
	_, err := m.Registry().Gather()
	assert.ErrorContains(t, err, "database is locked")
}
