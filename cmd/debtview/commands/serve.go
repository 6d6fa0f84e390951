package commands

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/wonny/debtview/internal/api"
	"github.com/wonny/debtview/internal/api/handlers"
	"github.com/wonny/debtview/internal/enrich"
	"github.com/wonny/debtview/internal/metrics"
	"github.com/wonny/debtview/internal/refresh"
	"github.com/wonny/debtview/internal/scheduler"
	"github.com/wonny/debtview/internal/scheduler/jobs"
	"github.com/wonny/debtview/internal/snapshot"
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the refresh loop and the API server",
	Long: `Runs the snapshot producer and serves the latest snapshot.

This command:
- polls the exchange order book every REFRESH_INTERVAL
- rebuilds the reference table daily (REFERENCE_SCHEDULE) and on date roll
- serves snapshots over HTTP and websocket

Endpoints:
  GET  /health                 - Health check
  GET  /api/snapshot           - Latest snapshot (503 before the first)
  GET  /api/snapshot/status    - Producer status
  GET  /api/quotes             - Filtered quotes (?series=&symbol=&nonzero=&watchlist=)
  GET  /api/references         - Reference table
  GET  /api/references/{sym}   - One instrument
  GET  /ws                     - Snapshot stream
  GET  /metrics                - Prometheus metrics

Example:
  go run ./cmd/debtview serve
  go run ./cmd/debtview serve --port 9000 --config configs/debtview.yaml`,
	RunE: runServe,
}

var servePort string

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&servePort, "port", "", "API server port (overrides PORT)")
}

func runServe(cmd *cobra.Command, args []string) error {
	// 1. Config and logger
	cfg, log, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if servePort != "" {
		cfg.Port = servePort
	}

	log.WithFields(map[string]interface{}{
		"port":      cfg.Port,
		"env":       cfg.Env,
		"source":    cfg.Reference.Source,
		"interval":  cfg.Refresh.Interval.String(),
		"watchlist": len(cfg.Watchlist),
	}).Info("Starting debtview")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Stores and reference source
	a, err := newApp(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer a.Close()

	// 3. Metrics
	var reg *metrics.Registry
	var metricsHandler http.Handler
	if cfg.MetricsEnabled {
		reg = metrics.New()
		metricsHandler = reg.Handler()
	}

	// 4. Producer
	provider := a.provider()
	store := snapshot.NewStore(staleAfter(cfg.Refresh.Interval, cfg.Refresh.MaxBackoff))

	opts := []refresh.Option{refresh.WithMetrics(reg)}
	mirror := snapshot.NewRedisMirror(a.redis, a.cache, cfg.Refresh.SnapshotMirrorTTL, log)
	if mirror != nil {
		opts = append(opts, refresh.WithMirror(mirror))
	}
	publisher := refresh.New(a.feedClient(), provider, enrich.NewEngine(log), store, cfg.Refresh, log, opts...)

	// 5. Scheduled jobs
	sched := scheduler.New(log, cfg.Location())
	var invalidator jobs.Invalidator
	if a.cached != nil {
		invalidator = a.cached
	}
	var tableMirror jobs.TableMirror
	if mirror != nil {
		tableMirror = mirror
	}
	if err := sched.AddJob(jobs.NewReferenceRefreshJob(provider, invalidator, tableMirror, reg, cfg.Reference.Schedule, log)); err != nil {
		return err
	}
	if err := sched.AddJob(jobs.NewStaleSnapshotJob(store, log)); err != nil {
		return err
	}

	// 6. API server
	router := api.NewRouter(api.Handlers{
		Snapshot:  handlers.NewSnapshotHandler(store, cfg.Watchlist, log),
		Reference: handlers.NewReferenceHandler(provider, log),
		Stream:    handlers.NewStreamHandler(store, reg, log),
		Jobs:      handlers.NewJobsHandler(sched, log),
		Metrics:   metricsHandler,
	}, log)
	server := api.New(cfg, log, router)

	// 7. Run until interrupted
	g, gctx := errgroup.WithContext(ctx)

	sched.Start()

	g.Go(func() error {
		return publisher.Run(gctx)
	})
	g.Go(server.Start)
	g.Go(func() error {
		<-gctx.Done()
		log.Info("Shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		sched.Stop()
		return server.Shutdown(shutdownCtx)
	})

	fmt.Fprintf(cmd.OutOrStdout(), "\n✅ debtview running on http://localhost:%s\n", cfg.Port)
	fmt.Fprintln(cmd.OutOrStdout(), "Press Ctrl+C to stop")

	if err := g.Wait(); err != nil {
		log.WithError(err).Error("debtview stopped with error")
		return err
	}
	log.Info("debtview stopped")
	return nil
}

// staleAfter is how old a snapshot may get before readers are told it is
// stale: a few missed cycles, or a full backoff period.
func staleAfter(interval, maxBackoff time.Duration) time.Duration {
	d := 3 * interval
	if maxBackoff > d {
		d = maxBackoff
	}
	return d
}
