package metadata

import (
	"context"
	"time"
)

// StoreMetricsRecorder records per-operation latency and outcome.
// It keeps this package independent of the metrics package.
type StoreMetricsRecorder interface {
	RecordOperation(op string, durationSeconds float64, success bool)
}

// Operation names passed to StoreMetricsRecorder.
const (
	OpGet    = "get"
	OpPut    = "put"
	OpDelete = "delete"
	OpList   = "list"
)

// InstrumentedStore wraps a MetadataStore and records metrics for each call.
type InstrumentedStore struct {
	store   MetadataStore
	metrics StoreMetricsRecorder
}

// NewInstrumentedStore wraps store. A nil recorder disables recording.
func NewInstrumentedStore(store MetadataStore, metrics StoreMetricsRecorder) *InstrumentedStore {
	return &InstrumentedStore{store: store, metrics: metrics}
}

func (s *InstrumentedStore) observe(op string, start time.Time, err error) {
	if s.metrics != nil {
		s.metrics.RecordOperation(op, time.Since(start).Seconds(), err == nil)
	}
}

// Get retrieves a value by key.
func (s *InstrumentedStore) Get(ctx context.Context, key string) (GetResult, error) {
	start := time.Now()
	result, err := s.store.Get(ctx, key)
	s.observe(OpGet, start, err)
	return result, err
}

// Put stores a value.
func (s *InstrumentedStore) Put(ctx context.Context, key string, value []byte, opts ...PutOption) (Version, error) {
	start := time.Now()
	v, err := s.store.Put(ctx, key, value, opts...)
	s.observe(OpPut, start, err)
	return v, err
}

// Delete removes a key.
func (s *InstrumentedStore) Delete(ctx context.Context, key string) error {
	start := time.Now()
	err := s.store.Delete(ctx, key)
	s.observe(OpDelete, start, err)
	return err
}

// List returns keys in [startKey, endKey).
func (s *InstrumentedStore) List(ctx context.Context, startKey, endKey string, limit int) ([]KV, error) {
	start := time.Now()
	result, err := s.store.List(ctx, startKey, endKey, limit)
	s.observe(OpList, start, err)
	return result, err
}

// Notifications is not timed; streams are long-lived.
func (s *InstrumentedStore) Notifications(ctx context.Context) (NotificationStream, error) {
	return s.store.Notifications(ctx)
}

// Close closes the wrapped store.
func (s *InstrumentedStore) Close() error {
	return s.store.Close()
}

var _ MetadataStore = (*InstrumentedStore)(nil)
