package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/banshee-data/mttbar/internal/db"
	"github.com/banshee-data/mttbar/internal/httputil"
	"github.com/banshee-data/mttbar/internal/metrics"
	"github.com/banshee-data/mttbar/internal/monitor"
	"github.com/banshee-data/mttbar/internal/monitoring"
	"github.com/banshee-data/mttbar/internal/rpc"
)

type serveOptions struct {
	listen     string
	grpcListen string
	database   string
}

func newServeCmd() *cobra.Command {
	opts := &serveOptions{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve stored results, metrics and database admin pages",
		Long: `Serve a dashboard of the reconstructed m_ttbar distribution for each stored
run, Prometheus metrics on /metrics and database debugging pages under /debug/.

Routes:
  /               m_ttbar of the most recent run, or ?run=<id>
  /api/runs       stored runs as JSON
  /api/runs/{id}  one stored run
  /metrics        Prometheus metrics, including gauges read from the store
  /debug/         tailsql console and database backup

The same runs are served over gRPC on --grpc-listen as mttbar.v1.Results,
with the standard health service and server reflection.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context(), opts)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.listen, "listen", ":8080", "listen address")
	f.StringVar(&opts.grpcListen, "grpc-listen", ":9090", "gRPC listen address, empty to disable")
	f.StringVar(&opts.database, "db", "mttbar.db", "SQLite results database")
	return cmd
}

func serve(ctx context.Context, opts *serveOptions) error {
	store, err := db.Open(opts.database)
	if err != nil {
		return err
	}
	defer store.Close()

	m := metrics.New()
	if err := m.WatchStore(store); err != nil {
		return err
	}
	mux, err := newServeMux(store, m)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errc := make(chan error, 2)

	if opts.grpcListen != "" {
		lis, err := net.Listen("tcp", opts.grpcListen)
		if err != nil {
			return fmt.Errorf("failed to listen: %w", err)
		}
		gs := rpc.NewGRPCServer(store)
		defer gs.GracefulStop()
		go func() {
			monitoring.Logf("gRPC server listening on %s", opts.grpcListen)
			if err := gs.Serve(lis); err != nil {
				errc <- err
			}
		}()
	}

	server := &http.Server{
		Addr:              opts.listen,
		Handler:           logRequests(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		monitoring.Logf("serving %s on %s", opts.database, opts.listen)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	monitoring.Logf("shutting down HTTP server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		monitoring.Logf("HTTP server shutdown error: %v", err)
		if err := server.Close(); err != nil {
			monitoring.Logf("HTTP server force close error: %v", err)
		}
	}
	return nil
}

func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		monitoring.Logf("got request %q", r.URL.Path)
		next.ServeHTTP(w, r)
	})
}

func newServeMux(store *db.DB, m *metrics.Metrics) (*http.ServeMux, error) {
	mux := http.NewServeMux()
	if err := store.AttachAdminRoutes(mux); err != nil {
		return nil, err
	}
	mux.Handle("/metrics", m.Handler())

	mux.HandleFunc("GET /api/runs", func(w http.ResponseWriter, r *http.Request) {
		runs, err := store.Runs(r.Context())
		if err != nil {
			httputil.WriteError(w, err)
			return
		}
		httputil.WriteJSON(w, http.StatusOK, runs)
	})

	mux.HandleFunc("GET /api/runs/{id}", func(w http.ResponseWriter, r *http.Request) {
		run, err := store.GetRun(r.Context(), r.PathValue("id"))
		if err != nil {
			httputil.WriteError(w, err, db.ErrRunNotFound)
			return
		}
		httputil.WriteJSON(w, http.StatusOK, run)
	})

	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		runID := r.URL.Query().Get("run")
		if runID == "" {
			runs, err := store.Runs(r.Context())
			if err != nil {
				httputil.WriteError(w, err)
				return
			}
			if len(runs) == 0 {
				httputil.WriteError(w, db.ErrRunNotFound, db.ErrRunNotFound)
				return
			}
			runID = runs[0].ID
		}

		if _, err := store.GetRun(r.Context(), runID); err != nil {
			httputil.WriteError(w, err, db.ErrRunNotFound)
			return
		}

		masses, err := store.MttbarValues(r.Context(), runID)
		if err != nil {
			httputil.WriteError(w, err)
			return
		}

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		h := monitor.MassHistogram(masses)
		if err := monitor.BarChart(h).Render(w); err != nil {
			monitoring.Logf("render dashboard: %v", err)
		}
	})
	return mux, nil
}
