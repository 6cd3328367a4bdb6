package topology

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/dray-io/ybroute/internal/logging"
	"github.com/dray-io/ybroute/internal/metadata"
	"github.com/dray-io/ybroute/internal/metadata/keys"
)

// DefaultRefreshInterval is used when RefresherConfig.Interval is zero.
const DefaultRefreshInterval = 30 * time.Second

// RefreshRecorder records refresh outcomes. It keeps this package
// independent of the metrics package.
type RefreshRecorder interface {
	RecordRefresh(durationSeconds float64, success bool, tables int)
	RecordInvalidRecord()
}

// RefresherConfig configures a SplitRefresher.
type RefresherConfig struct {
	// ClusterID selects the split records to load.
	ClusterID string

	// Interval between periodic refreshes.
	Interval time.Duration

	// Logger for refresh events. Defaults to the global logger.
	Logger *logging.Logger

	// Metrics, if set, receives refresh outcomes.
	Metrics RefreshRecorder
}

// RefreshResult summarizes one refresh pass.
type RefreshResult struct {
	Tables  int
	Invalid int
}

// SplitRefresher loads split records from the metadata store into a
// SplitCatalog. A failed pass leaves the previous snapshot in place.
type SplitRefresher struct {
	store    metadata.MetadataStore
	registry *HostRegistry
	catalog  *SplitCatalog
	config   RefresherConfig
	logger   *logging.Logger

	// refreshMu serializes passes so an older listing never replaces a newer one.
	refreshMu sync.Mutex

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewSplitRefresher creates a refresher writing into catalog.
func NewSplitRefresher(store metadata.MetadataStore, registry *HostRegistry, catalog *SplitCatalog, config RefresherConfig) *SplitRefresher {
	if config.Interval <= 0 {
		config.Interval = DefaultRefreshInterval
	}
	logger := config.Logger
	if logger == nil {
		logger = logging.Global()
	}
	return &SplitRefresher{
		store:    store,
		registry: registry,
		catalog:  catalog,
		config:   config,
		logger:   logger.WithComponent("splits").With(map[string]any{"clusterId": config.ClusterID}),
	}
}

// RefreshOnce lists every split record of the cluster and swaps in a new
// snapshot. Records that fail to decode or validate are skipped and logged.
func (r *SplitRefresher) RefreshOnce(ctx context.Context) (RefreshResult, error) {
	r.refreshMu.Lock()
	defer r.refreshMu.Unlock()

	start := time.Now()
	logger := logging.FromCtx(ctx, r.logger)

	kvs, err := r.store.List(ctx, keys.SplitsPrefix(r.config.ClusterID), "", 0)
	if err != nil {
		r.record(start, false, r.catalog.Len())
		return RefreshResult{}, fmt.Errorf("topology: list split records: %w", err)
	}

	var (
		splits []*TableSplit
		result RefreshResult
	)
	for _, kv := range kvs {
		if !keys.IsSplitKey(r.config.ClusterID, kv.Key) {
			continue
		}
		split, err := r.decode(kv)
		if err != nil {
			result.Invalid++
			if r.config.Metrics != nil {
				r.config.Metrics.RecordInvalidRecord()
			}
			logger.Warnf("skipping split record", map[string]any{
				"key":   kv.Key,
				"error": err.Error(),
			})
			continue
		}
		splits = append(splits, split)
	}

	r.catalog.Replace(splits)
	result.Tables = len(splits)
	r.record(start, true, result.Tables)

	logger.Debugf("split catalog refreshed", map[string]any{
		"tables":  result.Tables,
		"invalid": result.Invalid,
		"hosts":   r.registry.Len(),
	})
	return result, nil
}

func (r *SplitRefresher) decode(kv metadata.KV) (*TableSplit, error) {
	record, err := DecodeTableSplitRecord(kv.Value)
	if err != nil {
		return nil, err
	}
	_, keyspace, table, err := keys.ParseSplitKey(kv.Key)
	if err != nil {
		return nil, err
	}
	if record.Keyspace != keyspace || record.Table != table {
		return nil, fmt.Errorf("%w: record names %s.%s under key for %s.%s",
			ErrInvalidSplit, record.Keyspace, record.Table, keyspace, table)
	}
	return record.Build(r.registry)
}

func (r *SplitRefresher) record(start time.Time, success bool, tables int) {
	if r.config.Metrics != nil {
		r.config.Metrics.RecordRefresh(time.Since(start).Seconds(), success, tables)
	}
}

// Start refreshes in the background every interval and whenever a split
// record of the cluster changes, until Stop is called or ctx ends.
func (r *SplitRefresher) Start(ctx context.Context) {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return
	}
	r.running = true
	r.stopCh = make(chan struct{})
	r.doneCh = make(chan struct{})
	r.mu.Unlock()

	go r.run(ctx)
}

// Stop stops the background loop and waits for it to exit.
func (r *SplitRefresher) Stop() {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return
	}
	close(r.stopCh)
	r.mu.Unlock()

	<-r.doneCh

	r.mu.Lock()
	r.running = false
	r.mu.Unlock()
}

func (r *SplitRefresher) run(ctx context.Context) {
	defer close(r.doneCh)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	changed := make(chan struct{}, 1)
	if stream, err := r.store.Notifications(ctx); err != nil {
		r.logger.Warnf("split notifications unavailable, refreshing on interval only", map[string]any{
			"error": err.Error(),
		})
	} else {
		go r.watch(ctx, stream, changed)
	}

	ticker := time.NewTicker(r.config.Interval)
	defer ticker.Stop()

	r.refreshLogged(ctx)
	for {
		select {
		case <-r.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
		case <-changed:
		}
		r.refreshLogged(ctx)
	}
}

func (r *SplitRefresher) refreshLogged(ctx context.Context) {
	ctx, _ = logging.NewRequestIDCtx(ctx)
	if _, err := r.RefreshOnce(ctx); err != nil && ctx.Err() == nil {
		logging.FromCtx(ctx, r.logger).Warnf("split refresh failed, keeping previous snapshot", map[string]any{
			"error":       err.Error(),
			"unavailable": errors.Is(err, metadata.ErrUnavailable),
			"tables":      r.catalog.Len(),
		})
	}
}

// watch signals changed, coalescing bursts, for every notification that
// touches this cluster's split records.
func (r *SplitRefresher) watch(ctx context.Context, stream metadata.NotificationStream, changed chan<- struct{}) {
	defer stream.Close()

	prefix := keys.SplitsPrefix(r.config.ClusterID)
	for {
		n, err := stream.Next(ctx)
		if err != nil {
			if ctx.Err() == nil {
				r.logger.Warnf("split notification stream ended", map[string]any{
					"error": err.Error(),
				})
			}
			return
		}
		// A range delete reports only its start key, which may sit above prefix.
		touches := strings.HasPrefix(n.Key, prefix) || (n.Deleted && strings.HasPrefix(prefix, n.Key))
		if !touches {
			continue
		}
		select {
		case changed <- struct{}{}:
		default:
		}
	}
}
