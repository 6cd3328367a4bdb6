package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dray-io/ybroute/internal/metrics"
	"github.com/dray-io/ybroute/internal/topology"
)

func runWatch(args []string) error {
	fs := flag.NewFlagSet("watch", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to configuration file")
	metricsAddr := fs.String("metrics-addr", "", "Override metrics endpoint address (e.g., :9090)")
	clusterID := fs.String("cluster-id", "", "Override cluster ID (default: from config)")

	fs.Usage = func() {
		fmt.Println(`Usage: ybroute watch [options]

Keep the split catalog of the cluster fresh, logging every change, and serve
split and metadata store metrics until interrupted.

Options:`)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return err
	}

	storeMetrics := metrics.NewStoreMetrics()
	splitMetrics := metrics.NewSplitMetrics()

	e, cleanup, err := openEnv(*configPath, storeMetrics)
	if err != nil {
		return err
	}
	defer cleanup()

	if *metricsAddr != "" {
		e.cfg.Observability.MetricsAddr = *metricsAddr
	}
	if *clusterID != "" {
		e.cfg.ClusterID = *clusterID
	}
	logger := e.logger

	metricsServer := metrics.NewServer(e.cfg.Observability.MetricsAddr)
	if err := metricsServer.Start(); err != nil {
		return fmt.Errorf("failed to start metrics server: %w", err)
	}
	defer metricsServer.Close()

	registry := topology.NewHostRegistry()
	catalog := topology.NewSplitCatalog()
	refresher := topology.NewSplitRefresher(e.store, registry, catalog, topology.RefresherConfig{
		ClusterID: e.cfg.ClusterID,
		Interval:  e.cfg.RefreshInterval(),
		Logger:    logger,
		Metrics:   splitMetrics,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	refresher.Start(ctx)
	logger.Infof("watching table splits", map[string]any{
		"clusterId":   e.cfg.ClusterID,
		"interval":    e.cfg.RefreshInterval().String(),
		"metricsAddr": metricsServer.Addr(),
	})

	ticker := time.NewTicker(e.cfg.RefreshInterval())
	defer ticker.Stop()
	lastTables := -1
	for {
		select {
		case sig := <-sigCh:
			logger.Infof("received shutdown signal", map[string]any{"signal": sig.String()})
			refresher.Stop()
			logger.Info("watch stopped")
			return nil
		case <-ticker.C:
			if n := catalog.Len(); n != lastTables {
				logger.Infof("split catalog", map[string]any{
					"tables": n,
					"hosts":  registry.Len(),
				})
				lastTables = n
			}
		}
	}
}
