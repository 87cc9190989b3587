package db

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "results.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestOpen_Migrates(t *testing.T) {
	db := setupTestDB(t)

	version, dirty, err := db.MigrateVersion()
	require.NoError(t, err)
	assert.False(t, dirty)

	latest, err := LatestMigrationVersion()
	require.NoError(t, err)
	assert.Equal(t, uint(2), latest)
	assert.Equal(t, latest, version)

	var journal string
	require.NoError(t, db.QueryRow("PRAGMA journal_mode").Scan(&journal))
	assert.Equal(t, "wal", journal)
}

func TestMigrateDownAndUp(t *testing.T) {
	db := setupTestDB(t)

	require.NoError(t, db.MigrateDown())
	version, _, err := db.MigrateVersion()
	require.NoError(t, err)
	assert.Equal(t, uint(1), version)

	_, err = db.Exec("SELECT 1 FROM reconstructions")
	assert.Error(t, err)

	require.NoError(t, db.MigrateUp())
	require.NoError(t, db.MigrateUp())
	version, _, err = db.MigrateVersion()
	require.NoError(t, err)
	assert.Equal(t, uint(2), version)

	require.NoError(t, db.MigrateTo(1))
	require.NoError(t, db.MigrateForce(2))
	version, _, err = db.MigrateVersion()
	require.NoError(t, err)
	assert.Equal(t, uint(2), version)
}

func TestRunLifecycle(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)

	run, err := db.RecordRun(ctx, Run{Strategy: "chi2", LeptonMode: "muon", CutMode: "2dcut"})
	require.NoError(t, err)
	require.NotEmpty(t, run.ID)
	assert.Equal(t, "none", run.Systematic)

	recs := []Reconstruction{
		{Run: 1, Lumi: 2, EventID: 30, Valid: true, MTTbar: 950, LTopMass: 170, HTopMass: 180, Solutions: 2, HTopNJets: 2, Hypotheses: 81},
		{Run: 1, Lumi: 2, EventID: 10, Valid: true, MTTbar: 720, MGen: 700, Solutions: 1, HTopNJets: 1, Hypotheses: 9},
		{Run: 1, Lumi: 2, EventID: 20, Valid: false, Solutions: 0, Hypotheses: 9},
	}
	require.NoError(t, db.RecordReconstructions(ctx, run.ID, recs))
	require.NoError(t, db.RecordReconstructions(ctx, run.ID, recs[:1]))
	require.NoError(t, db.RecordReconstructions(ctx, run.ID, nil))

	masses, err := db.MttbarValues(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, []float64{720, 950}, masses)

	var withGen int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM reconstructions WHERE mgen IS NOT NULL").Scan(&withGen))
	assert.Equal(t, 1, withGen)

	got, err := db.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Nil(t, got.FinishedAt)
	assert.Equal(t, "chi2", got.Strategy)

	require.NoError(t, db.FinishRun(ctx, run.ID, RunTotals{Files: 2, Events: 100, Selected: 3, Reconstructed: 2}))
	got, err = db.GetRun(ctx, run.ID)
	require.NoError(t, err)
	require.NotNil(t, got.FinishedAt)
	assert.Equal(t, int64(100), got.Events)
	assert.Equal(t, int64(2), got.Reconstructed)

	runs, err := db.Runs(ctx)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, run.ID, runs[0].ID)
}

func TestRunNotFound(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)

	_, err := db.GetRun(ctx, "missing")
	assert.ErrorIs(t, err, ErrRunNotFound)
	assert.ErrorIs(t, db.FinishRun(ctx, "missing", RunTotals{}), ErrRunNotFound)
}

func TestRecordReconstructions_UnknownRun(t *testing.T) {
	db := setupTestDB(t)
	err := db.RecordReconstructions(context.Background(), "missing", []Reconstruction{{EventID: 1}})
	assert.Error(t, err)

	var n int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM reconstructions").Scan(&n))
	assert.Zero(t, n)
}

func TestServeBackup(t *testing.T) {
	db := setupTestDB(t)
	_, err := db.RecordRun(context.Background(), Run{Strategy: "simple", LeptonMode: "muon", CutMode: "2dcut"})
	require.NoError(t, err)

	require.NoError(t, db.AttachAdminRoutes(http.NewServeMux()))

	rec := httptest.NewRecorder()
	db.serveBackup(rec, httptest.NewRequest(http.MethodGet, "/debug/backup", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/gzip", rec.Header().Get("Content-Type"))

	zr, err := gzip.NewReader(rec.Body)
	require.NoError(t, err)
	raw, err := io.ReadAll(zr)
	require.NoError(t, err)
	assert.Equal(t, "SQLite format 3\x00", string(raw[:16]))
}
