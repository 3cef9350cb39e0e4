package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
)

var flagMetricsAddr string

var watchCmd = &cobra.Command{
	Use:   "watch [path...]",
	Short: "Keep the scope graph up to date as files change",
	Long: `Loads the database, then watches the given directories (default: watch.paths
from the config, or else the directory holding every indexed file) and
reindexes files as they change until interrupted. Changes
made while not watching are picked up from the archive on the next start.`,
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().StringVar(&flagMetricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address (default: metrics.addr from the config)")
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("getting cwd: %w", err)
	}
	env, err := loadEnv(cwd)
	if err != nil {
		return err
	}

	wcfg := env.cfg.Watch
	if len(args) > 0 {
		wcfg.Paths = args
	}
	for i, p := range wcfg.Paths {
		if wcfg.Paths[i], err = filepath.Abs(p); err != nil {
			return fmt.Errorf("resolving path %q: %w", p, err)
		}
	}
	if !filepath.IsAbs(wcfg.Archive) {
		wcfg.Archive = filepath.Join(env.repoRoot, wcfg.Archive)
	}

	engine, err := env.open()
	if err != nil {
		return err
	}
	defer engine.Close()
	if err := engine.Load(ctx); err != nil {
		return err
	}

	addr := env.cfg.Metrics.Addr
	if flagMetricsAddr != "" {
		addr = flagMetricsAddr
	}
	if addr != "" {
		stop := serveMetrics(ctx, addr, env.logger)
		defer stop()
	}

	if len(wcfg.Paths) == 0 {
		fmt.Fprintf(os.Stderr, "Watching the indexed source tree; database: %s\n", env.dbPath)
	} else {
		fmt.Fprintf(os.Stderr, "Watching %d director(ies); database: %s\n", len(wcfg.Paths), env.dbPath)
	}
	return engine.Watch(ctx, wcfg)
}

// serveMetrics exposes the default Prometheus registry on addr until the
// returned stop function is called.
func serveMetrics(ctx context.Context, addr string, logger *slog.Logger) (stop func()) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", "addr", addr, "error", err)
		}
	}()
	logger.Info("serving metrics", "addr", addr)

	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}
}
