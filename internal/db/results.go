package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ErrRunNotFound is returned when a run id is not in the runs table.
var ErrRunNotFound = errors.New("run not found")

// Run is one invocation of the analysis over a set of files.
type Run struct {
	ID         string
	Strategy   string
	LeptonMode string
	CutMode    string
	Systematic string
	ConfigJSON string
	StartedAt  time.Time
	FinishedAt *time.Time

	Files         int64
	Events        int64
	Selected      int64
	Reconstructed int64
	Skipped       int64
}

// RunTotals are written when a run finishes.
type RunTotals struct {
	Files         int64
	Events        int64
	Selected      int64
	Reconstructed int64
	Skipped       int64
}

// Reconstruction is the stored summary of one selected event.
type Reconstruction struct {
	Run     uint32
	Lumi    uint32
	EventID uint64
	Valid   bool

	MTTbar     float64
	LTopMass   float64
	HTopMass   float64
	LTopPt     float64
	HTopPt     float64
	NeutrinoPz float64
	// MGen is zero when no generator mass was computed.
	MGen float64

	Solutions  int
	HTopNJets  int
	Hypotheses int
}

// RecordRun inserts a new run and returns it with a fresh id.
func (db *DB) RecordRun(ctx context.Context, run Run) (Run, error) {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now().UTC()
	}
	if run.Systematic == "" {
		run.Systematic = "none"
	}

	_, err := db.ExecContext(ctx, `
		INSERT INTO runs (run_id, strategy, lepton_mode, cut_mode, systematic, config_json, started_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Strategy, run.LeptonMode, run.CutMode, run.Systematic, run.ConfigJSON, run.StartedAt,
	)
	if err != nil {
		return Run{}, fmt.Errorf("insert run: %w", err)
	}
	return run, nil
}

// FinishRun stamps the finish time and totals of runID.
func (db *DB) FinishRun(ctx context.Context, runID string, totals RunTotals) error {
	res, err := db.ExecContext(ctx, `
		UPDATE runs
		SET finished_at = ?, files = ?, events = ?, selected = ?, reconstructed = ?, skipped = ?
		WHERE run_id = ?`,
		time.Now().UTC(), totals.Files, totals.Events, totals.Selected, totals.Reconstructed, totals.Skipped, runID,
	)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	return nil
}

// RecordReconstructions writes recs for runID in a single transaction.
// A repeated event replaces the earlier row.
func (db *DB) RecordReconstructions(ctx context.Context, runID string, recs []Reconstruction) (err error) {
	if len(recs) == 0 {
		return nil
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO reconstructions (
			run_id, event_id, run, lumi, valid,
			mttbar, ltop_mass, htop_mass, ltop_pt, htop_pt, neutrino_pz, mgen,
			solutions, htop_njets, hypotheses
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare reconstruction insert: %w", err)
	}
	defer stmt.Close()

	for _, r := range recs {
		var mgen sql.NullFloat64
		if r.MGen > 0 {
			mgen = sql.NullFloat64{Float64: r.MGen, Valid: true}
		}
		if _, err = stmt.ExecContext(ctx,
			runID, int64(r.EventID), r.Run, r.Lumi, r.Valid,
			r.MTTbar, r.LTopMass, r.HTopMass, r.LTopPt, r.HTopPt, r.NeutrinoPz, mgen,
			r.Solutions, r.HTopNJets, r.Hypotheses,
		); err != nil {
			return fmt.Errorf("insert reconstruction %d:%d:%d: %w", r.Run, r.Lumi, r.EventID, err)
		}
	}
	return tx.Commit()
}

// MttbarValues returns the reconstructed masses of the valid events of
// runID in event order.
func (db *DB) MttbarValues(ctx context.Context, runID string) ([]float64, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT mttbar FROM reconstructions
		WHERE run_id = ? AND valid = 1
		ORDER BY run, lumi, event_id`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []float64
	for rows.Next() {
		var m float64
		if err := rows.Scan(&m); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

const runColumns = `run_id, strategy, lepton_mode, cut_mode, systematic, COALESCE(config_json, ''),
	started_at, finished_at, files, events, selected, reconstructed, skipped`

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (Run, error) {
	var (
		r        Run
		finished sql.NullTime
	)
	err := s.Scan(&r.ID, &r.Strategy, &r.LeptonMode, &r.CutMode, &r.Systematic, &r.ConfigJSON,
		&r.StartedAt, &finished, &r.Files, &r.Events, &r.Selected, &r.Reconstructed, &r.Skipped)
	if err != nil {
		return Run{}, err
	}
	if finished.Valid {
		t := finished.Time
		r.FinishedAt = &t
	}
	return r, nil
}

// Runs lists all runs, newest first.
func (db *DB) Runs(ctx context.Context) ([]Run, error) {
	rows, err := db.QueryContext(ctx, `SELECT `+runColumns+` FROM runs ORDER BY started_at DESC, run_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// GetRun returns a single run.
func (db *DB) GetRun(ctx context.Context, runID string) (Run, error) {
	r, err := scanRun(db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE run_id = ?`, runID))
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	return r, err
}
