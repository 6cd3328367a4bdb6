// Package metadata defines the MetadataStore interface used to persist and
// watch cluster topology records. The production implementation lives in the
// oxia subpackage; MockStore serves tests.
//
// The store holds one record per hash-sharded table describing how the
// 16-bit partition space is split across tablet replicas. Routing reads a
// snapshot built from these records and never touches the store on the
// request path.
package metadata

import (
	"context"
	"errors"
)

// Common errors returned by MetadataStore operations.
var (
	// ErrKeyNotFound is returned when a key does not exist.
	ErrKeyNotFound = errors.New("metadata: key not found")

	// ErrVersionMismatch is returned when the expected version does not match
	// the current version during a compare-and-set.
	ErrVersionMismatch = errors.New("metadata: version mismatch")

	// ErrStoreClosed is returned when operations are attempted on a closed store.
	ErrStoreClosed = errors.New("metadata: store closed")

	// ErrStreamClosed is returned by NotificationStream.Next after Close.
	ErrStreamClosed = errors.New("metadata: notification stream closed")

	// ErrUnavailable wraps transport failures a later attempt may not see.
	ErrUnavailable = errors.New("metadata: store unavailable")
)

// Version is a key's version in the metadata store. A zero version means the
// key has never been written.
type Version int64

// KV is a key-value pair with its version.
type KV struct {
	Key     string
	Value   []byte
	Version Version
}

// GetResult is the result of a Get operation.
type GetResult struct {
	Value   []byte
	Version Version
	Exists  bool
}

// Notification is a change event for a single key.
type Notification struct {
	Key     string
	Version Version
	// Deleted is true if the key (or a range containing it) was removed.
	Deleted bool
}

// NotificationStream delivers change notifications in commit order.
//
//	stream, err := store.Notifications(ctx)
//	if err != nil {
//	    return err
//	}
//	defer stream.Close()
//
//	for {
//	    n, err := stream.Next(ctx)
//	    if err != nil {
//	        return err
//	    }
//	    // react to n.Key
//	}
type NotificationStream interface {
	// Next blocks until a notification arrives or ctx is done.
	Next(ctx context.Context) (Notification, error)

	// Close releases the stream. Next returns an error afterwards.
	Close() error
}

// PutOption configures a Put operation.
type PutOption func(*putOptions)

type putOptions struct {
	expectedVersion *Version
}

// WithExpectedVersion makes Put conditional on the key's current version.
// Version 0 requires that the key does not exist yet.
func WithExpectedVersion(v Version) PutOption {
	return func(o *putOptions) {
		o.expectedVersion = &v
	}
}

// ExtractExpectedVersion returns the version set by WithExpectedVersion, or
// nil if Put is unconditional.
func ExtractExpectedVersion(opts []PutOption) *Version {
	var o putOptions
	for _, opt := range opts {
		opt(&o)
	}
	return o.expectedVersion
}

// MetadataStore is a versioned, ordered key-value store with change
// notifications.
type MetadataStore interface {
	// Get retrieves a value by key. A missing key yields Exists=false, not an
	// error.
	Get(ctx context.Context, key string) (GetResult, error)

	// Put stores a value and returns its new version. With
	// WithExpectedVersion it fails with ErrVersionMismatch on conflict.
	Put(ctx context.Context, key string, value []byte, opts ...PutOption) (Version, error)

	// Delete removes a key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// List returns keys in [startKey, endKey) in lexicographic order. An
	// empty endKey lists every key with the prefix startKey. A limit <= 0
	// means no limit.
	List(ctx context.Context, startKey, endKey string, limit int) ([]KV, error)

	// Notifications subscribes to changes in the store's namespace.
	Notifications(ctx context.Context) (NotificationStream, error)

	// Close releases resources. Later calls return ErrStoreClosed.
	Close() error
}
