package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"math"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"syscall"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/banshee-data/mttbar/internal/app"
	"github.com/banshee-data/mttbar/internal/config"
	"github.com/banshee-data/mttbar/internal/db"
	"github.com/banshee-data/mttbar/internal/metrics"
	"github.com/banshee-data/mttbar/internal/monitor"
	"github.com/banshee-data/mttbar/internal/monitoring"
)

type runOptions struct {
	configPath string
	workers    int
	maxEvents  int64
	output     config.Output
}

func newRunCmd() *cobra.Command {
	opts := &runOptions{}

	cmd := &cobra.Command{
		Use:   "run [files or directories...]",
		Short: "Reconstruct m_ttbar over event files",
		Long: `Run the selection and reconstruction over every event file given. Directories
are searched for .jsonl, .jsonl.gz and .jsonl.zst files.

Histograms are written as YODA and optionally as PNG plots and an HTML page.
Per-event results go to the SQLite database unless --db is empty.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAnalysis(cmd, opts, args)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opts.configPath, "config", "c", "", "analysis config file (.json, .yaml)")
	f.IntVar(&opts.workers, "workers", 0, "number of workers (default from config)")
	f.Int64Var(&opts.maxEvents, "max-events", 0, "stop after this many events (0 for all)")
	f.StringVar(&opts.output.YODA, "yoda", "", "YODA output path, .gz to compress")
	f.StringVar(&opts.output.PlotsDir, "plots", "", "directory for PNG plots")
	f.StringVar(&opts.output.HTML, "html", "", "HTML report path")
	f.StringVar(&opts.output.Database, "db", "", "SQLite results database")
	return cmd
}

func loadSettings(cmd *cobra.Command, opts *runOptions) (config.Settings, *config.AnalysisConfig, error) {
	cfg := config.Defaults()
	if opts.configPath != "" {
		loaded, err := config.Load(opts.configPath)
		if err != nil {
			return config.Settings{}, nil, err
		}
		cfg = loaded
	}

	s, err := cfg.Resolve()
	if err != nil {
		return config.Settings{}, nil, err
	}

	f := cmd.Flags()
	if f.Changed("workers") {
		s.Workers = opts.workers
	}
	if f.Changed("max-events") {
		s.MaxEvents = opts.maxEvents
	}
	if f.Changed("yoda") {
		s.Output.YODA = opts.output.YODA
	}
	if f.Changed("plots") {
		s.Output.PlotsDir = opts.output.PlotsDir
	}
	if f.Changed("html") {
		s.Output.HTML = opts.output.HTML
	}
	if f.Changed("db") {
		s.Output.Database = opts.output.Database
	}
	if s.Workers < 1 {
		return config.Settings{}, nil, fmt.Errorf("workers must be at least 1, got %d", s.Workers)
	}
	return s, cfg, nil
}

func runAnalysis(cmd *cobra.Command, opts *runOptions, args []string) error {
	s, cfg, err := loadSettings(cmd, opts)
	if err != nil {
		return err
	}
	files, err := collectInputs(args)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	appOpts := app.Options{
		Analyzer:  s.Analyzer(),
		Workers:   s.Workers,
		MaxEvents: s.MaxEvents,
		Metrics:   metrics.New(),
	}

	var store *db.DB
	if s.Output.Database != "" {
		store, err = db.Open(s.Output.Database)
		if err != nil {
			return err
		}
		defer store.Close()

		cfgJSON, err := json.Marshal(cfg)
		if err != nil {
			return err
		}
		run, err := store.RecordRun(ctx, db.Run{
			Strategy:   s.Strategy.String(),
			LeptonMode: s.LeptonMode.String(),
			CutMode:    s.CutMode.String(),
			Systematic: s.Systematic.String(),
			ConfigJSON: string(cfgJSON),
		})
		if err != nil {
			return err
		}
		appOpts.Store = store
		appOpts.RunID = run.ID
		monitoring.Logf("recording run %s in %s", run.ID, s.Output.Database)
	}

	ctrl, err := app.NewController(appOpts)
	if err != nil {
		return err
	}

	monitoring.Logf("analysing %d files with %d workers, strategy %s", len(files), s.Workers, s.Strategy)
	summary, runErr := ctrl.Run(ctx, files)
	app.LogSummary(summary)

	if store != nil {
		if err := store.FinishRun(context.WithoutCancel(ctx), appOpts.RunID, summary.Totals()); err != nil {
			runErr = errors.Join(runErr, err)
		}
	}
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return runErr
	}

	out := cmd.OutOrStdout()
	if _, err := ctrl.Cutflow().WriteTo(out); err != nil {
		return err
	}
	mon := ctrl.Monitor()
	printSummaries(out, mon.Summaries())

	if err := writeOutputs(mon, s.Output); err != nil {
		return err
	}
	return runErr
}

// collectInputs expands directories into the event files they contain.
func collectInputs(args []string) ([]string, error) {
	var files []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			files = append(files, arg)
			continue
		}

		var found []string
		err = filepath.WalkDir(arg, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() && isEventFile(path) {
				found = append(found, path)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
		sort.Strings(found)
		files = append(files, found...)
	}
	if len(files) == 0 {
		return nil, app.ErrNoFiles
	}
	return files, nil
}

func isEventFile(path string) bool {
	for _, ext := range []string{".jsonl", ".jsonl.gz", ".jsonl.zst"} {
		if strings.HasSuffix(path, ext) {
			return true
		}
	}
	return false
}

func printSummaries(w io.Writer, summaries []monitor.Summary) {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("histogram", "entries", "mean", "rms")
	for _, s := range summaries {
		t.Row(s.Name, strconv.FormatInt(s.Entries, 10), formatStat(s.Mean), formatStat(s.RMS))
	}
	fmt.Fprintln(w, t.String())
}

func formatStat(v float64) string {
	if math.IsNaN(v) {
		return "-"
	}
	return strconv.FormatFloat(v, 'f', 2, 64)
}

func writeOutputs(mon *monitor.MttbarMonitor, out config.Output) error {
	hists := mon.Histograms()

	if out.YODA != "" {
		if err := monitor.WriteYODAFile(out.YODA, hists); err != nil {
			return fmt.Errorf("write yoda: %w", err)
		}
		monitoring.Logf("wrote %d histograms to %s", len(hists), out.YODA)
	}

	if out.PlotsDir != "" {
		written, err := monitor.RenderPNG(out.PlotsDir, hists)
		if err != nil {
			return fmt.Errorf("render plots: %w", err)
		}
		monitoring.Logf("wrote %d plots to %s", len(written), out.PlotsDir)
	}

	if out.HTML != "" {
		f, err := os.Create(out.HTML)
		if err != nil {
			return err
		}
		if err := monitor.RenderHTML(f, hists); err != nil {
			f.Close()
			return fmt.Errorf("render html: %w", err)
		}
		if err := f.Close(); err != nil {
			return err
		}
		monitoring.Logf("wrote report to %s", out.HTML)
	}
	return nil
}
