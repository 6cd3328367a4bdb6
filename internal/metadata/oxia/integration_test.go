//go:build integration

package oxia

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/oxia-db/oxia/oxiad/dataserver"

	"github.com/dray-io/ybroute/internal/metadata"
	"github.com/dray-io/ybroute/internal/metadata/keys"
)

// startServer returns the address of OXIA_SERVICE_ADDRESS when set,
// otherwise of an embedded standalone server torn down with the test.
func startServer(t *testing.T) string {
	t.Helper()

	if addr := os.Getenv("OXIA_SERVICE_ADDRESS"); addr != "" {
		t.Logf("Using external Oxia server at %s", addr)
		return addr
	}

	dir := t.TempDir()
	standalone, err := dataserver.NewStandalone(dataserver.NewTestConfig(dir))
	if err != nil {
		t.Fatalf("failed to start Oxia standalone server: %v", err)
	}
	t.Cleanup(func() { standalone.Close() })
	return standalone.ServiceAddr()
}

func newIntegrationStore(t *testing.T) *Store {
	t.Helper()

	store, err := New(context.Background(), Config{
		ServiceAddress: startServer(t),
		Namespace:      "default",
		RequestTimeout: 10 * time.Second,
	})
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestIntegration_PutGetDelete(t *testing.T) {
	store := newIntegrationStore(t)
	ctx := context.Background()
	key := keys.SplitKeyPath("c1", "ks", "users")

	v1, err := store.Put(ctx, key, []byte("r1"), metadata.WithExpectedVersion(0))
	if err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if v1 < 1 {
		t.Errorf("expected version >= 1, got %d", v1)
	}

	if _, err := store.Put(ctx, key, []byte("r2"), metadata.WithExpectedVersion(v1+5)); !errors.Is(err, metadata.ErrVersionMismatch) {
		t.Errorf("stale Put: err = %v, want ErrVersionMismatch", err)
	}

	result, err := store.Get(ctx, key)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !result.Exists || string(result.Value) != "r1" || result.Version != v1 {
		t.Errorf("Get = %+v", result)
	}

	if err := store.Delete(ctx, key); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if err := store.Delete(ctx, key); err != nil {
		t.Errorf("second Delete: %v", err)
	}
}

func TestIntegration_ListSplits(t *testing.T) {
	store := newIntegrationStore(t)
	ctx := context.Background()

	for _, table := range []string{"b", "a", "c"} {
		if _, err := store.Put(ctx, keys.SplitKeyPath("c1", "ks", table), []byte(table)); err != nil {
			t.Fatalf("Put failed: %v", err)
		}
	}
	if _, err := store.Put(ctx, keys.SplitKeyPath("c2", "ks", "a"), []byte("other")); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	kvs, err := store.List(ctx, keys.SplitsPrefix("c1"), "", 0)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(kvs) != 3 {
		t.Fatalf("List returned %d keys, want 3", len(kvs))
	}

	kvs, err = store.List(ctx, keys.SplitsPrefix("c1"), "", 1)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(kvs) != 1 {
		t.Errorf("limited List returned %d keys, want 1", len(kvs))
	}
}

func TestIntegration_Notifications(t *testing.T) {
	store := newIntegrationStore(t)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	stream, err := store.Notifications(ctx)
	if err != nil {
		t.Fatalf("Notifications failed: %v", err)
	}
	defer stream.Close()

	key := keys.SplitKeyPath("c1", "ks", "events")
	if _, err := store.Put(ctx, key, []byte("r")); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	for {
		n, err := stream.Next(ctx)
		if err != nil {
			t.Fatalf("Next failed: %v", err)
		}
		if n.Key == key {
			if n.Deleted {
				t.Errorf("unexpected delete notification")
			}
			return
		}
	}
}
