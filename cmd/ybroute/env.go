package main

import (
	"context"
	"fmt"
	"time"

	"github.com/dray-io/ybroute/internal/config"
	"github.com/dray-io/ybroute/internal/logging"
	"github.com/dray-io/ybroute/internal/metadata"
	"github.com/dray-io/ybroute/internal/metadata/oxia"
	"github.com/dray-io/ybroute/internal/topology"
)

// env holds what commands that read split metadata share.
type env struct {
	cfg    *config.Config
	logger *logging.Logger
	store  metadata.MetadataStore
}

func loadConfig(configPath string) (*config.Config, error) {
	if configPath != "" {
		return config.LoadFromPath(configPath)
	}
	return config.Load()
}

// openEnv loads configuration and connects to the metadata store. Without
// an Oxia endpoint it falls back to an empty in-memory store.
func openEnv(configPath string, recorder metadata.StoreMetricsRecorder) (*env, func(), error) {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	logger, err := logging.Configure(cfg.Observability.LogLevel, cfg.Observability.LogFormat)
	if err != nil {
		return nil, nil, err
	}

	var store metadata.MetadataStore
	if cfg.Metadata.OxiaEndpoint != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		oxiaStore, err := oxia.New(ctx, oxia.Config{
			ServiceAddress: cfg.Metadata.OxiaEndpoint,
			Namespace:      cfg.Metadata.Namespace,
			RequestTimeout: cfg.RequestTimeout(),
		})
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to Oxia at %s: %w", cfg.Metadata.OxiaEndpoint, err)
		}
		store = oxiaStore
	} else {
		logger.Warn("no oxia endpoint configured, using an empty in-memory store")
		store = metadata.NewMockStore()
	}
	if recorder != nil {
		store = metadata.NewInstrumentedStore(store, recorder)
	}

	cleanup := func() {
		if err := store.Close(); err != nil {
			logger.Warnf("failed to close metadata store", map[string]any{"error": err.Error()})
		}
	}
	return &env{cfg: cfg, logger: logger, store: store}, cleanup, nil
}

// loadSplits reads the cluster's split records once.
func (e *env) loadSplits(ctx context.Context, metrics topology.RefreshRecorder) (*topology.HostRegistry, *topology.SplitCatalog, topology.RefreshResult, error) {
	registry := topology.NewHostRegistry()
	catalog := topology.NewSplitCatalog()
	refresher := topology.NewSplitRefresher(e.store, registry, catalog, topology.RefresherConfig{
		ClusterID: e.cfg.ClusterID,
		Interval:  e.cfg.RefreshInterval(),
		Logger:    e.logger,
		Metrics:   metrics,
	})
	result, err := refresher.RefreshOnce(ctx)
	return registry, catalog, result, err
}
