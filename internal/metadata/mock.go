package metadata

import (
	"context"
	"sort"
	"strings"
	"sync"
)

// MockStore is an in-memory MetadataStore for tests in any package.
// Writes and deletes emit notifications to every open stream.
type MockStore struct {
	mu      sync.RWMutex
	data    map[string]KV
	closed  bool
	nextVer Version
	streams []*mockStream

	// listErr, when set, is returned by List. Used to simulate outages.
	listErr error
}

// NewMockStore creates an empty MockStore.
func NewMockStore() *MockStore {
	return &MockStore{
		data:    make(map[string]KV),
		nextVer: 1,
	}
}

func (m *MockStore) Get(_ context.Context, key string) (GetResult, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return GetResult{}, ErrStoreClosed
	}
	kv, ok := m.data[key]
	if !ok {
		return GetResult{Exists: false}, nil
	}
	return GetResult{Value: kv.Value, Version: kv.Version, Exists: true}, nil
}

func (m *MockStore) Put(_ context.Context, key string, value []byte, opts ...PutOption) (Version, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return 0, ErrStoreClosed
	}

	if expected := ExtractExpectedVersion(opts); expected != nil {
		existing, ok := m.data[key]
		if !ok && *expected != 0 {
			return 0, ErrVersionMismatch
		}
		if ok && existing.Version != *expected {
			return 0, ErrVersionMismatch
		}
	}

	ver := m.nextVer
	m.nextVer++
	m.data[key] = KV{Key: key, Value: value, Version: ver}
	m.notifyLocked(Notification{Key: key, Version: ver})
	return ver, nil
}

func (m *MockStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrStoreClosed
	}
	if _, ok := m.data[key]; !ok {
		return nil
	}
	delete(m.data, key)
	m.notifyLocked(Notification{Key: key, Deleted: true})
	return nil
}

func (m *MockStore) List(_ context.Context, startKey, endKey string, limit int) ([]KV, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrStoreClosed
	}
	if m.listErr != nil {
		return nil, m.listErr
	}

	var keys []string
	for k := range m.data {
		if endKey == "" {
			if strings.HasPrefix(k, startKey) {
				keys = append(keys, k)
			}
		} else if k >= startKey && k < endKey {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	if limit > 0 && len(keys) > limit {
		keys = keys[:limit]
	}

	result := make([]KV, len(keys))
	for i, k := range keys {
		result[i] = m.data[k]
	}
	return result, nil
}

func (m *MockStore) Notifications(_ context.Context) (NotificationStream, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, ErrStoreClosed
	}
	s := &mockStream{ch: make(chan Notification, 100), done: make(chan struct{})}
	m.streams = append(m.streams, s)
	return s, nil
}

func (m *MockStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil
	}
	m.closed = true
	for _, s := range m.streams {
		s.Close()
	}
	m.streams = nil
	return nil
}

// SetListError makes subsequent List calls fail with err. Pass nil to clear.
func (m *MockStore) SetListError(err error) {
	m.mu.Lock()
	m.listErr = err
	m.mu.Unlock()
}

// notifyLocked fans n out to open streams. A full stream drops the event.
func (m *MockStore) notifyLocked(n Notification) {
	for _, s := range m.streams {
		select {
		case <-s.done:
		case s.ch <- n:
		default:
		}
	}
}

type mockStream struct {
	ch   chan Notification
	done chan struct{}
	once sync.Once
}

func (s *mockStream) Next(ctx context.Context) (Notification, error) {
	select {
	case <-ctx.Done():
		return Notification{}, ctx.Err()
	case <-s.done:
		return Notification{}, ErrStreamClosed
	case n := <-s.ch:
		return n, nil
	}
}

func (s *mockStream) Close() error {
	s.once.Do(func() { close(s.done) })
	return nil
}

var _ MetadataStore = (*MockStore)(nil)
