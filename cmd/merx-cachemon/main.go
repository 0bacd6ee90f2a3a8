// Package main implements merx-cachemon, a standalone cache monitor for the
// Merx platform. It runs a configured cache instance, exposes its Prometheus
// metrics, and periodically logs a statistics snapshot. It doubles as a
// connectivity smoke test for distributed cache backends.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/merxcommerce/merx/config"
	"github.com/merxcommerce/merx/metric"
	"github.com/merxcommerce/merx/pkg/cache"
)

// Build information constants
const (
	Version = "0.1.0"
	appName = "merx-cachemon"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	if err := run(); err != nil {
		slog.Error("Application failed", "error", err, "exit_code", 1)
		os.Exit(1)
	}
}

func run() error {
	cliCfg := parseFlags()
	if cliCfg.ShowVersion {
		fmt.Printf("%s %s\n", appName, Version)
		return nil
	}

	logger := setupLogger(cliCfg.LogLevel, cliCfg.LogFormat)
	slog.SetDefault(logger)

	cfg, err := config.Load(cliCfg.ConfigPath)
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	if cliCfg.Validate {
		logger.Info("Configuration is valid",
			"backend", cfg.Cache.ResolvedBackend())
		return nil
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	registry := metric.NewMetricsRegistry()

	provider := cache.NewProvider[map[string]any](cfg.Cache,
		cache.WithMetrics[map[string]any](registry, appName),
		cache.WithLogger[map[string]any](logger),
	)
	defer func() {
		if err := provider.Close(); err != nil {
			logger.Warn("Cache shutdown failed", "error", err)
		}
	}()

	c, err := provider.Instance(ctx)
	if err != nil {
		return fmt.Errorf("construct cache: %w", err)
	}

	logger.Info("Cache monitor started",
		"backend", c.Backend(),
		"max_size", cfg.Cache.MaxSize,
		"default_ttl", cfg.Cache.DefaultTTL,
		"snapshot_interval", cliCfg.SnapshotInterval,
	)

	group, groupCtx := errgroup.WithContext(ctx)

	var metricsServer *metric.Server
	if cfg.Metrics.Enabled {
		metricsServer = metric.NewServer(cfg.Metrics.Addr, cfg.Metrics.Path, registry)
		group.Go(func() error {
			if err := metricsServer.Start(); err != nil {
				return fmt.Errorf("start metrics server: %w", err)
			}
			logger.Info("Metrics server listening",
				"addr", cfg.Metrics.Addr, "path", cfg.Metrics.Path)
			<-groupCtx.Done()

			stopCtx, cancel := context.WithTimeout(context.Background(), cliCfg.ShutdownTimeout)
			defer cancel()
			return metricsServer.Stop(stopCtx)
		})
	}

	group.Go(func() error {
		return snapshotLoop(groupCtx, c, logger, cliCfg.SnapshotInterval)
	})

	if err := group.Wait(); err != nil && ctx.Err() == nil {
		return err
	}

	logger.Info("Cache monitor stopped")
	return nil
}

// snapshotLoop logs the cache statistics snapshot at a fixed interval until
// the context is canceled.
func snapshotLoop(ctx context.Context, c cache.Cache[map[string]any], logger *slog.Logger, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			snap := c.Metrics()
			logger.Info("Cache snapshot",
				"backend", snap.Backend,
				"hits", snap.Hits,
				"misses", snap.Misses,
				"hit_rate", fmt.Sprintf("%.3f", snap.HitRate),
				"sets", snap.Sets,
				"deletes", snap.Deletes,
				"evictions", snap.Evictions,
				"size", snap.CurrentSize,
				"max_size", snap.MaxSize,
				"avg_latency", snap.AverageLatency,
			)
		}
	}
}
