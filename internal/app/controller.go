// Package app runs an analysis over many input files with a pool of
// workers feeding a single aggregator.
package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/banshee-data/mttbar/internal/analyzer"
	"github.com/banshee-data/mttbar/internal/db"
	"github.com/banshee-data/mttbar/internal/event"
	"github.com/banshee-data/mttbar/internal/metrics"
	"github.com/banshee-data/mttbar/internal/monitor"
	"github.com/banshee-data/mttbar/internal/monitoring"
	"github.com/banshee-data/mttbar/internal/selection"
	"github.com/banshee-data/mttbar/internal/timeutil"
)

// DefaultBatchSize is the number of rows written to the store per
// transaction.
const DefaultBatchSize = 500

// ErrNoFiles is returned by Run when there is nothing to read.
var ErrNoFiles = errors.New("no input files")

// ResultStore persists per-event reconstruction rows.
type ResultStore interface {
	RecordReconstructions(ctx context.Context, runID string, recs []db.Reconstruction) error
}

// Options configures a Controller. Metrics and Store are optional.
type Options struct {
	Analyzer  analyzer.Config
	Workers   int
	MaxEvents int64
	Clock     timeutil.Clock

	Metrics   *metrics.Metrics
	Store     ResultStore
	RunID     string
	BatchSize int
}

// Summary totals a run.
type Summary struct {
	Files         int64
	Bytes         int64
	Events        int64
	Selected      int64
	Reconstructed int64
	Invalid       int64
	Skipped       int64
	Duration      time.Duration
}

// EventsPerSecond is the processing rate over the whole run.
func (s Summary) EventsPerSecond() float64 {
	if s.Duration <= 0 {
		return 0
	}
	return float64(s.Events) / s.Duration.Seconds()
}

// Totals converts the summary to the store's run totals.
func (s Summary) Totals() db.RunTotals {
	return db.RunTotals{
		Files:         s.Files,
		Events:        s.Events,
		Selected:      s.Selected,
		Reconstructed: s.Reconstructed,
		Skipped:       s.Skipped,
	}
}

// Controller owns the merged monitor and cutflow of a run.
type Controller struct {
	opts    Options
	monitor *monitor.MttbarMonitor
	cutflow *selection.Cutflow
}

// NewController checks that opts build a working analyzer.
func NewController(opts Options) (*Controller, error) {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if opts.BatchSize < 1 {
		opts.BatchSize = DefaultBatchSize
	}
	if opts.Clock == nil {
		opts.Clock = timeutil.RealClock{}
	}
	tmpl, err := analyzer.New(opts.Analyzer, nil)
	if err != nil {
		return nil, err
	}

	cutflow := selection.NewSynchCutflow()
	for i := 0; i < cutflow.Len(); i++ {
		cutflow.SetName(i, tmpl.Cutflow().Name(i))
	}
	return &Controller{opts: opts, monitor: monitor.NewMttbarMonitor(), cutflow: cutflow}, nil
}

// Monitor holds every outcome aggregated so far.
func (c *Controller) Monitor() *monitor.MttbarMonitor { return c.monitor }

// Cutflow is the selection cutflow merged over all workers.
func (c *Controller) Cutflow() *selection.Cutflow { return c.cutflow }

// Run analyses files. Each worker owns its analyzer; outcomes are
// funnelled to one aggregator that fills the monitor, the store and the
// metrics. The first worker or store error cancels the run.
func (c *Controller) Run(ctx context.Context, files []string) (Summary, error) {
	if len(files) == 0 {
		return Summary{}, ErrNoFiles
	}
	if err := ctx.Err(); err != nil {
		return Summary{}, err
	}
	start := c.opts.Clock.Now()

	workers := min(c.opts.Workers, len(files))
	jobs := make(chan string)
	outcomes := make(chan analyzer.Outcome, 256)

	var (
		budget    atomic.Int64
		filesDone atomic.Int64
		bytes     atomic.Int64
	)
	budget.Store(c.opts.MaxEvents)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer close(jobs)
		for _, f := range files {
			select {
			case jobs <- f:
			case <-gctx.Done():
				return gctx.Err()
			}
		}
		return nil
	})

	cutflows := make([]*selection.Cutflow, workers)
	for w := 0; w < workers; w++ {
		g.Go(func() error {
			a, err := analyzer.New(c.opts.Analyzer, nil)
			if err != nil {
				return err
			}
			cutflows[w] = a.Cutflow()

			if m := c.opts.Metrics; m != nil {
				m.ActiveWorkers.Inc()
				defer m.ActiveWorkers.Dec()
			}

			for path := range jobs {
				n, err := c.processFile(gctx, a, path, outcomes, &budget)
				if err != nil {
					return err
				}
				bytes.Add(n)
				if c.opts.Metrics != nil {
					c.opts.Metrics.Files.Inc()
				}
				logProgress(filesDone.Add(1), int64(len(files)))
			}
			return nil
		})
	}

	done := make(chan aggregation, 1)
	go func() { done <- c.aggregate(ctx, outcomes) }()

	runErr := g.Wait()
	close(outcomes)
	agg := <-done

	for _, cf := range cutflows {
		if cf == nil {
			continue
		}
		if err := c.cutflow.Merge(cf); err != nil {
			return agg.summary, err
		}
	}

	summary := agg.summary
	summary.Files = filesDone.Load()
	summary.Bytes = bytes.Load()
	summary.Duration = c.opts.Clock.Since(start)

	if runErr != nil {
		return summary, runErr
	}
	return summary, agg.err
}

func (c *Controller) processFile(ctx context.Context, a *analyzer.MttbarAnalyzer, path string, out chan<- analyzer.Outcome, budget *atomic.Int64) (int64, error) {
	r, err := event.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open %s: %w", path, err)
	}
	defer r.Close()

	for r.Next() {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		if c.opts.MaxEvents > 0 && budget.Add(-1) < 0 {
			break
		}
		o, err := a.Process(r.Event())
		if err != nil {
			return 0, fmt.Errorf("%s: %w", path, err)
		}
		select {
		case out <- o:
		case <-ctx.Done():
			return 0, ctx.Err()
		}
	}
	if err := r.Err(); err != nil {
		return 0, fmt.Errorf("read %s: %w", path, err)
	}

	info, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

// logProgress reports each time the completed file count crosses a
// further tenth of the total.
func logProgress(done, total int64) {
	step := done * 10 / total
	if step > (done-1)*10/total {
		monitoring.Logf("progress: %d/%d files (%d%%)", done, total, step*10)
	}
}

type aggregation struct {
	summary Summary
	err     error
}

func (c *Controller) aggregate(ctx context.Context, in <-chan analyzer.Outcome) aggregation {
	var agg aggregation
	batch := make([]db.Reconstruction, 0, c.opts.BatchSize)

	flush := func() {
		if len(batch) == 0 {
			return
		}
		if c.opts.Store != nil && agg.err == nil {
			if err := c.opts.Store.RecordReconstructions(ctx, c.opts.RunID, batch); err != nil {
				agg.err = fmt.Errorf("store reconstructions: %w", err)
			}
		}
		batch = batch[:0]
	}

	// Keep draining after a store error so workers never block.
	for o := range in {
		s := &agg.summary
		s.Events++
		o.Fill(c.monitor)

		switch o.Status {
		case analyzer.StatusSkipped:
			s.Selected++
			s.Skipped++
		case analyzer.StatusInvalid:
			s.Selected++
			s.Invalid++
		case analyzer.StatusReconstructed:
			s.Selected++
			s.Reconstructed++
		}

		if m := c.opts.Metrics; m != nil {
			m.ObserveEvent(o.Status.String(), o.Result.Hypotheses, o.Result.Solutions, o.Latency)
			if o.Reconstructed() {
				m.ObserveMass(o.Result.MTTbar.Mass())
			}
		}

		if o.Status == analyzer.StatusInvalid || o.Status == analyzer.StatusReconstructed {
			batch = append(batch, Row(o))
			if len(batch) >= c.opts.BatchSize {
				flush()
			}
		}
	}
	flush()
	return agg
}

// Row converts an outcome into a store row.
func Row(o analyzer.Outcome) db.Reconstruction {
	r := o.Result
	row := db.Reconstruction{
		Run:        o.Run,
		Lumi:       o.Lumi,
		EventID:    o.EventID,
		Valid:      r.Valid,
		Solutions:  r.Solutions,
		HTopNJets:  r.HTopNJets,
		Hypotheses: r.Hypotheses,
	}
	if o.HasGen {
		row.MGen = o.MGen
	}
	if r.Valid {
		row.MTTbar = r.MTTbar.Mass()
		row.LTopMass = r.LTop.Mass()
		row.HTopMass = r.HTop.Mass()
		row.LTopPt = r.LTop.Pt()
		row.HTopPt = r.HTop.Pt()
		row.NeutrinoPz = r.Neutrino.Pz()
	}
	return row
}

// LogSummary writes the run totals through monitoring.Logf.
func LogSummary(s Summary) {
	monitoring.Logf("processed %d events from %d files (%.1f MB) in %s, %.0f events/s",
		s.Events, s.Files, float64(s.Bytes)/1e6, s.Duration.Round(time.Millisecond), s.EventsPerSecond())
	monitoring.Logf("selected %d, reconstructed %d, invalid %d, skipped %d",
		s.Selected, s.Reconstructed, s.Invalid, s.Skipped)
}
