package main

import (
	"os"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/banshee-data/mttbar/internal/monitoring"
	"github.com/banshee-data/mttbar/internal/version"
)

type rootOptions struct {
	logLevel  string
	logFormat string
	logger    *zap.Logger
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "mttbar",
		Short: "Reconstruct m_ttbar in semileptonic top pair events",
		Long: `mttbar selects semileptonic ttbar candidates from event files, builds every
leptonic/hadronic top hypothesis from the good jets and keeps the best one
according to the chosen strategy.

Examples:
  mttbar run --config run.yaml data/*.jsonl.zst
  mttbar serve --db mttbar.db
  mttbar runs --server localhost:9090
  mttbar migrate version --db mttbar.db`,
		Version: version.String("mttbar"),
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.initLogger(cmd)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if opts.logger != nil {
				_ = opts.logger.Sync()
			}
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := cmd.PersistentFlags()
	pf.StringVar(&opts.logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	pf.StringVar(&opts.logFormat, "log-format", "", "log format (console, json; default console on a terminal)")

	cmd.AddCommand(
		newRunCmd(),
		newServeCmd(),
		newRunsCmd(),
		newMigrateCmd(),
		newVersionCmd(),
	)
	return cmd
}

func (o *rootOptions) initLogger(cmd *cobra.Command) error {
	format := o.logFormat
	if format == "" {
		format = "json"
		if isatty.IsTerminal(os.Stderr.Fd()) || isatty.IsCygwinTerminal(os.Stderr.Fd()) {
			format = "console"
		}
	}
	l, err := monitoring.NewZapLogger(o.logLevel, format, zapcore.Lock(zapcore.AddSync(cmd.ErrOrStderr())))
	if err != nil {
		return err
	}
	o.logger = l
	monitoring.UseZap(l)
	return nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := cmd.OutOrStdout().Write([]byte(version.String("mttbar") + "\n"))
			return err
		},
	}
}
