package main

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/banshee-data/mttbar/internal/db"
	"github.com/banshee-data/mttbar/internal/monitor"
	"github.com/banshee-data/mttbar/internal/rpc"
)

func newRunsCmd() *cobra.Command {
	var (
		server  string
		timeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "runs [run id]",
		Short: "List runs stored behind a serve instance",
		Long: `Query the gRPC results service of "mttbar serve". Without arguments every
stored run is listed; with a run id its m_ttbar summary is printed.

Examples:
  mttbar runs --server localhost:9090
  mttbar runs --server localhost:9090 6f1c0e4a-...`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := rpc.Dial(server)
			if err != nil {
				return err
			}
			defer c.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			if len(args) == 0 {
				runs, err := c.ListRuns(ctx)
				if err != nil {
					return err
				}
				printRuns(cmd.OutOrStdout(), runs)
				return nil
			}
			return printRun(ctx, cmd.OutOrStdout(), c, args[0])
		},
	}

	cmd.Flags().StringVar(&server, "server", "localhost:9090", "gRPC address of mttbar serve")
	cmd.Flags().DurationVar(&timeout, "timeout", 10*time.Second, "request timeout")
	return cmd
}

func printRuns(w io.Writer, runs []db.Run) {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("run", "strategy", "started", "events", "reconstructed", "finished")
	for _, r := range runs {
		t.Row(r.ID, r.Strategy, r.StartedAt.Format(time.RFC3339),
			strconv.FormatInt(r.Events, 10), strconv.FormatInt(r.Reconstructed, 10),
			strconv.FormatBool(r.FinishedAt != nil))
	}
	fmt.Fprintln(w, t.String())
}

func printRun(ctx context.Context, w io.Writer, c *rpc.Client, runID string) error {
	r, err := c.GetRun(ctx, runID)
	if err != nil {
		return err
	}
	masses, err := c.GetMasses(ctx, runID)
	if err != nil {
		return err
	}
	h := monitor.MassHistogram(masses)
	s := monitor.Summarize(h.Name, h.H1)
	fmt.Fprintf(w, "run %s (%s, %s leptons)\n", r.ID, r.Strategy, r.LeptonMode)
	fmt.Fprintf(w, "events %d, selected %d, reconstructed %d, skipped %d\n",
		r.Events, r.Selected, r.Reconstructed, r.Skipped)
	fmt.Fprintf(w, "%s entries %d, mean %s GeV, rms %s GeV\n", s.Name, s.Entries, formatStat(s.Mean), formatStat(s.RMS))
	return nil
}
