package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"syscall"
	"time"

	"github.com/oklog/run"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/remedian/remedian/internal/daemon"
	"github.com/remedian/remedian/internal/history"
	"github.com/remedian/remedian/providers/aws"
)

var (
	daemonInterval    time.Duration
	daemonMetricsAddr string
	daemonHistoryPath string
)

// daemonCmd represents the daemon command
var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Run continuous sweep daemon",
	Long: `Run Remedian in daemon mode, sweeping the account on an interval.

Each sweep checks every S3 bucket for public exposure and remediates
what it finds, exactly like the event-driven path would. A bbolt
history store deduplicates notifications so a bucket remediated in one
sweep is not re-notified in the next; the corrective call itself always
runs, re-exposed buckets are re-blocked on the very next sweep.

Prometheus metrics are served on /metrics, health on /health.
Shuts down gracefully on SIGTERM/SIGINT.`,
	Example: `  remedian daemon                          # Sweep on the configured interval
  remedian daemon --interval 15m           # Sweep every 15 minutes
  remedian daemon --metrics-addr :9090     # Custom metrics address`,
	RunE: runDaemon,
}

func init() {
	rootCmd.AddCommand(daemonCmd)

	daemonCmd.Flags().DurationVar(&daemonInterval, "interval", 0, "Sweep interval (default from config)")
	daemonCmd.Flags().StringVar(&daemonMetricsAddr, "metrics-addr", ":2112", "Metrics HTTP server address")
	daemonCmd.Flags().StringVar(&daemonHistoryPath, "history", "", "History database path (default from config)")
}

func runDaemon(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	rt, err := buildRuntime(ctx, runtimeOptions{Prometheus: true})
	if err != nil {
		return err
	}
	defer rt.close(context.Background())

	accountID, err := aws.ResolveAccountID(ctx, rt.clients.STS)
	if err != nil {
		return err
	}

	interval := rt.cfg.Sweep.Interval
	if daemonInterval > 0 {
		interval = daemonInterval
	}

	sweeper := aws.NewSweeper(rt.clients.S3, rt.cfg.Region, accountID)
	d, err := daemon.New(sweeper, rt.handler, daemon.Config{
		Interval: interval,
		Region:   rt.cfg.Region,
	})
	if err != nil {
		return fmt.Errorf("failed to create daemon: %w", err)
	}

	historyPath := rt.cfg.Sweep.HistoryPath
	if daemonHistoryPath != "" {
		historyPath = daemonHistoryPath
	}
	if historyPath != "" {
		store, err := history.Open(historyPath)
		if err != nil {
			return err
		}
		defer func() { _ = store.Close() }()
		d.WithHistory(store)
		if rt.cfg.Sweep.NotifyOnce > 0 {
			rt.handler.WithNotifier(daemon.NewOnceNotifier(rt.notifier, store, rt.cfg.Sweep.NotifyOnce))
		}
	}

	fmt.Printf("🚀 Starting Remedian daemon...\n")
	fmt.Printf("   Account: %s\n", accountID)
	fmt.Printf("   Region: %s\n", rt.cfg.Region)
	fmt.Printf("   Interval: %s\n", interval)
	fmt.Printf("   Metrics: http://localhost%s/metrics\n\n", daemonMetricsAddr)

	var g run.Group
	g.Add(run.SignalHandler(ctx, syscall.SIGINT, syscall.SIGTERM))

	srv := metricsServer(d)
	g.Add(func() error {
		srv.Addr = daemonMetricsAddr
		return srv.ListenAndServe()
	}, func(error) {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		_ = srv.Shutdown(shutdownCtx)
	})

	g.Add(func() error {
		return d.Start(ctx)
	}, func(error) {
		cancel()
	})

	err = g.Run()
	var sig run.SignalError
	if err != nil && !errors.As(err, &sig) && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("daemon error: %w", err)
	}

	fmt.Println("\n👋 Daemon stopped")
	return nil
}

// metricsServer serves Prometheus metrics and health
func metricsServer(d *daemon.Daemon) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"status":     d.Health().Status,
			"uptime":     d.Health().Uptime,
			"sweeps":     d.SweepCount(),
			"remediated": d.RemediatedCount(),
		})
	})
	return &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
}
