// Package keys builds and parses metadata store keys.
//
// Split records are stored one per table:
//
//	/ybroute/v1/cluster/<clusterId>/splits/<keyspace>.<table>
//
// Cluster ids and keyspace names must not contain '/'. Keyspace names must
// not contain '.', table names may.
package keys

import (
	"errors"
	"fmt"
	"strings"
)

// Key prefixes.
const (
	// Prefix is the root prefix for all ybroute keys.
	Prefix = "/ybroute/v1"

	// ClusterPrefix is the prefix for per-cluster metadata.
	ClusterPrefix = Prefix + "/cluster"
)

// ErrInvalidKey is returned when a key cannot be parsed.
var ErrInvalidKey = errors.New("keys: invalid key format")

// ClusterKeyPath returns the root key of a cluster.
func ClusterKeyPath(clusterID string) string {
	return fmt.Sprintf("%s/%s", ClusterPrefix, clusterID)
}

// SplitsPrefix returns the prefix for listing every split record of a cluster.
func SplitsPrefix(clusterID string) string {
	return fmt.Sprintf("%s/%s/splits/", ClusterPrefix, clusterID)
}

// SplitKeyPath returns the key of the split record for keyspace.table.
// Format: /ybroute/v1/cluster/<clusterId>/splits/<keyspace>.<table>
func SplitKeyPath(clusterID, keyspace, table string) string {
	return SplitsPrefix(clusterID) + TableName(keyspace, table)
}

// TableName returns the fully qualified "keyspace.table" name.
func TableName(keyspace, table string) string {
	return keyspace + "." + table
}

// SplitTableName returns the keyspace and table of a fully qualified name.
// The keyspace ends at the first '.'.
func SplitTableName(fullName string) (keyspace, table string, err error) {
	keyspace, table, ok := strings.Cut(fullName, ".")
	if !ok || keyspace == "" || table == "" {
		return "", "", fmt.Errorf("%w: table name %q", ErrInvalidKey, fullName)
	}
	return keyspace, table, nil
}

// ParseSplitKey parses a split record key into its components.
// Returns ErrInvalidKey if the key is not a split key.
func ParseSplitKey(key string) (clusterID, keyspace, table string, err error) {
	prefix := ClusterPrefix + "/"
	if !strings.HasPrefix(key, prefix) {
		return "", "", "", ErrInvalidKey
	}

	clusterID, name, ok := strings.Cut(key[len(prefix):], "/splits/")
	if !ok || clusterID == "" || strings.Contains(clusterID, "/") || strings.Contains(name, "/") {
		return "", "", "", ErrInvalidKey
	}

	keyspace, table, err = SplitTableName(name)
	if err != nil {
		return "", "", "", ErrInvalidKey
	}
	return clusterID, keyspace, table, nil
}

// IsSplitKey reports whether key is a split record of clusterID.
func IsSplitKey(clusterID, key string) bool {
	id, _, _, err := ParseSplitKey(key)
	return err == nil && id == clusterID
}
