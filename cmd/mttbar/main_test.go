package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/mttbar/internal/db"
	"github.com/banshee-data/mttbar/internal/event"
	"github.com/banshee-data/mttbar/internal/metrics"
	"github.com/banshee-data/mttbar/internal/monitoring"
	"github.com/banshee-data/mttbar/internal/rpc"
	"github.com/banshee-data/mttbar/internal/testutil"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	orig := monitoring.Logf
	t.Cleanup(func() { monitoring.Logf = orig })

	var out, errOut bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func writeEvents(t *testing.T, path string, n int) {
	t.Helper()
	var evs []*event.Event
	for i := 0; i < n; i++ {
		evs = append(evs, testutil.SemileptonicEvent(uint64(i+1)))
	}
	testutil.WriteEvents(t, path, evs...)
}

func TestRunCommand(t *testing.T) {
	dir := t.TempDir()
	inputs := filepath.Join(dir, "inputs")
	require.NoError(t, os.Mkdir(inputs, 0o755))
	writeEvents(t, filepath.Join(inputs, "a.jsonl"), 2)
	writeEvents(t, filepath.Join(inputs, "b.jsonl.gz"), 1)
	require.NoError(t, os.WriteFile(filepath.Join(inputs, "notes.txt"), []byte("ignored"), 0o644))

	dbPath := filepath.Join(dir, "results.db")
	yoda := filepath.Join(dir, "out.yoda.gz")
	html := filepath.Join(dir, "report.html")
	plots := filepath.Join(dir, "plots")

	out, err := execute(t, "run", "--log-format", "json", "--workers", "2",
		"--db", dbPath, "--yoda", yoda, "--html", html, "--plots", plots, inputs)
	require.NoError(t, err)
	assert.Contains(t, out, "pre-selection")
	assert.Contains(t, out, "mreco")

	for _, p := range []string{yoda, html, filepath.Join(plots, "mreco.png")} {
		_, err := os.Stat(p)
		assert.NoError(t, err, p)
	}

	d, err := db.Open(dbPath)
	require.NoError(t, err)
	defer d.Close()
	runs, err := d.Runs(context.Background())
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, int64(2), runs[0].Files)
	assert.Equal(t, int64(3), runs[0].Events)
	assert.Equal(t, int64(3), runs[0].Reconstructed)
	assert.Equal(t, "simple", runs[0].Strategy)
	assert.NotNil(t, runs[0].FinishedAt)

	// Event 1 appears in both files and is stored once.
	masses, err := d.MttbarValues(context.Background(), runs[0].ID)
	require.NoError(t, err)
	assert.Len(t, masses, 2)
}

func TestRunCommand_Errors(t *testing.T) {
	_, err := execute(t, "run")
	assert.Error(t, err)

	_, err = execute(t, "run", "--db", "", filepath.Join(t.TempDir(), "missing.jsonl"))
	assert.Error(t, err)

	_, err = execute(t, "run", "--db", "", "--workers", "0", t.TempDir())
	assert.Error(t, err)

	_, err = execute(t, "run", "--log-level", "loud", t.TempDir())
	assert.Error(t, err)
}

func TestMigrateCommand(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "m.db")

	out, err := execute(t, "migrate", "version", "--db", dbPath)
	require.NoError(t, err)
	assert.Equal(t, "version 0 (latest 2, dirty false)\n", out)

	_, err = execute(t, "migrate", "up", "--db", dbPath)
	require.NoError(t, err)
	out, err = execute(t, "migrate", "version", "--db", dbPath)
	require.NoError(t, err)
	assert.Equal(t, "version 2 (latest 2, dirty false)\n", out)

	_, err = execute(t, "migrate", "down", "--db", dbPath)
	require.NoError(t, err)
	out, err = execute(t, "migrate", "version", "--db", dbPath)
	require.NoError(t, err)
	assert.Equal(t, "version 1 (latest 2, dirty false)\n", out)

	_, err = execute(t, "migrate", "to", "two", "--db", dbPath)
	assert.Error(t, err)
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "mttbar dev"), out)
}

func TestServeMux(t *testing.T) {
	orig := monitoring.Logf
	defer func() { monitoring.Logf = orig }()
	monitoring.SetLogger(nil)

	d, err := db.Open(filepath.Join(t.TempDir(), "serve.db"))
	require.NoError(t, err)
	defer d.Close()

	ctx := context.Background()
	run, err := d.RecordRun(ctx, db.Run{Strategy: "simple", LeptonMode: "muon", CutMode: "2d"})
	require.NoError(t, err)
	require.NoError(t, d.RecordReconstructions(ctx, run.ID, []db.Reconstruction{
		{Run: 1, Lumi: 1, EventID: 1, Valid: true, MTTbar: 650},
		{Run: 1, Lumi: 1, EventID: 2, Valid: true, MTTbar: 810},
	}))

	m := metrics.New()
	require.NoError(t, m.WatchStore(d))
	mux, err := newServeMux(d, m)
	require.NoError(t, err)
	srv := httptest.NewServer(mux)
	defer srv.Close()

	get := func(path string) (int, string) {
		resp, err := http.Get(srv.URL + path)
		require.NoError(t, err)
		defer resp.Body.Close()
		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		return resp.StatusCode, string(body)
	}

	code, body := get("/")
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, "mreco")

	code, _ = get("/?run=" + run.ID)
	assert.Equal(t, http.StatusOK, code)

	code, _ = get("/?run=nope")
	assert.Equal(t, http.StatusNotFound, code)

	code, body = get("/api/runs")
	assert.Equal(t, http.StatusOK, code)
	var runs []db.Run
	require.NoError(t, json.Unmarshal([]byte(body), &runs))
	require.Len(t, runs, 1)
	assert.Equal(t, run.ID, runs[0].ID)

	code, body = get("/api/runs/" + run.ID)
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, `"Strategy":"simple"`)

	code, body = get("/api/runs/nope")
	assert.Equal(t, http.StatusNotFound, code)
	assert.Contains(t, body, "run not found")

	code, body = get("/metrics")
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, "go_goroutines")
	assert.Contains(t, body, "mttbar_store_runs 1")
}

func TestRunsCommand(t *testing.T) {
	d, err := db.Open(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	defer d.Close()

	ctx := context.Background()
	run, err := d.RecordRun(ctx, db.Run{Strategy: "chi2", LeptonMode: "muon", CutMode: "2d"})
	require.NoError(t, err)
	require.NoError(t, d.RecordReconstructions(ctx, run.ID, []db.Reconstruction{
		{Run: 1, Lumi: 1, EventID: 1, Valid: true, MTTbar: 655},
		{Run: 1, Lumi: 1, EventID: 2, Valid: true, MTTbar: 805},
	}))

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	gs := rpc.NewGRPCServer(d)
	go func() { _ = gs.Serve(lis) }()
	defer gs.GracefulStop()

	out, err := execute(t, "runs", "--log-format", "json", "--server", lis.Addr().String())
	require.NoError(t, err)
	assert.Contains(t, out, run.ID)
	assert.Contains(t, out, "chi2")

	out, err = execute(t, "runs", "--log-format", "json", "--server", lis.Addr().String(), run.ID)
	require.NoError(t, err)
	assert.Contains(t, out, "run "+run.ID+" (chi2, muon leptons)")
	assert.Contains(t, out, "mreco entries 2, mean 730.00 GeV")

	_, err = execute(t, "runs", "--log-format", "json", "--server", lis.Addr().String(), "nope")
	assert.Error(t, err)
}

func TestCollectInputs(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.jsonl.zst", "a.jsonl", "c.json"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), nil, 0o644))
	}
	files, err := collectInputs([]string{dir})
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "a.jsonl"), filepath.Join(dir, "b.jsonl.zst")}, files)

	_, err = collectInputs([]string{t.TempDir()})
	assert.Error(t, err)
}
