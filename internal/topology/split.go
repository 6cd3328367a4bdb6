package topology

import (
	"errors"
	"fmt"
	"sort"

	"github.com/dray-io/ybroute/internal/partition"
)

// ErrInvalidSplit is returned when partitions do not tile the hash space.
var ErrInvalidSplit = errors.New("topology: invalid table split")

// Partition is one tablet: the buckets in [StartKey, EndKey) and the hosts
// holding a replica, leader first.
type Partition struct {
	StartKey int
	EndKey   int
	Hosts    []*Host
}

// TableSplit maps buckets of one table to replica hosts. It is immutable.
type TableSplit struct {
	keyspace   string
	table      string
	partitions []Partition
}

// NewTableSplit validates that partitions, in any order, cover
// [0, partition.NumBuckets) exactly once and returns the split.
func NewTableSplit(keyspace, table string, partitions []Partition) (*TableSplit, error) {
	if len(partitions) == 0 {
		return nil, fmt.Errorf("%w: %s.%s has no partitions", ErrInvalidSplit, keyspace, table)
	}

	ps := make([]Partition, len(partitions))
	for i, p := range partitions {
		ps[i] = Partition{
			StartKey: p.StartKey,
			EndKey:   p.EndKey,
			Hosts:    append([]*Host(nil), p.Hosts...),
		}
	}
	sort.Slice(ps, func(i, j int) bool { return ps[i].StartKey < ps[j].StartKey })

	next := 0
	for _, p := range ps {
		if p.StartKey != next {
			return nil, fmt.Errorf("%w: %s.%s expected partition at %d, found %d",
				ErrInvalidSplit, keyspace, table, next, p.StartKey)
		}
		if p.EndKey <= p.StartKey {
			return nil, fmt.Errorf("%w: %s.%s empty partition [%d, %d)",
				ErrInvalidSplit, keyspace, table, p.StartKey, p.EndKey)
		}
		next = p.EndKey
	}
	if next != partition.NumBuckets {
		return nil, fmt.Errorf("%w: %s.%s partitions end at %d, want %d",
			ErrInvalidSplit, keyspace, table, next, partition.NumBuckets)
	}

	return &TableSplit{keyspace: keyspace, table: table, partitions: ps}, nil
}

// UniformSplit divides the hash space into len(replicas) equal partitions.
// replicas[i] are the hosts of partition i.
func UniformSplit(keyspace, table string, replicas ...[]*Host) (*TableSplit, error) {
	n := len(replicas)
	if n == 0 || n > partition.NumBuckets {
		return nil, fmt.Errorf("%w: %d partitions", ErrInvalidSplit, n)
	}
	ps := make([]Partition, n)
	for i := range ps {
		ps[i] = Partition{
			StartKey: i * partition.NumBuckets / n,
			EndKey:   (i + 1) * partition.NumBuckets / n,
			Hosts:    replicas[i],
		}
	}
	return NewTableSplit(keyspace, table, ps)
}

// Keyspace returns the table's keyspace.
func (s *TableSplit) Keyspace() string { return s.keyspace }

// Table returns the table name.
func (s *TableSplit) Table() string { return s.table }

// FullName returns "keyspace.table".
func (s *TableSplit) FullName() string { return s.keyspace + "." + s.table }

// NumPartitions returns the number of tablets.
func (s *TableSplit) NumPartitions() int { return len(s.partitions) }

// PartitionFor returns the partition containing bucket b.
func (s *TableSplit) PartitionFor(b partition.Bucket) Partition {
	key := int(b)
	i := sort.Search(len(s.partitions), func(i int) bool {
		return s.partitions[i].EndKey > key
	})
	return s.partitions[i]
}

// HostsForBucket returns the replica hosts of bucket b, leader first.
// The returned slice is a copy the caller may reorder.
func (s *TableSplit) HostsForBucket(b partition.Bucket) []*Host {
	return append([]*Host(nil), s.PartitionFor(b).Hosts...)
}
