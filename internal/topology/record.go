package topology

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/dray-io/ybroute/internal/metadata"
	"github.com/dray-io/ybroute/internal/metadata/keys"
)

// Replica roles.
const (
	RoleLeader   = "LEADER"
	RoleFollower = "FOLLOWER"
)

// TableSplitRecord is the stored form of a table's split.
//
//	{
//	  "keyspace": "shop",
//	  "table": "orders",
//	  "partitions": [
//	    {"startKey": 0, "endKey": 32768, "replicas": [
//	      {"hostId": "…", "address": "10.0.0.1:9042", "dc": "dc1", "rack": "r1", "role": "LEADER"}
//	    ]}
//	  ]
//	}
type TableSplitRecord struct {
	Keyspace   string            `json:"keyspace"`
	Table      string            `json:"table"`
	Partitions []PartitionRecord `json:"partitions"`
}

// PartitionRecord is the stored form of a Partition.
type PartitionRecord struct {
	StartKey int             `json:"startKey"`
	EndKey   int             `json:"endKey"`
	Replicas []ReplicaRecord `json:"replicas"`
}

// ReplicaRecord names a replica host. HostID may be empty.
type ReplicaRecord struct {
	HostID  string `json:"hostId,omitempty"`
	Address string `json:"address"`
	DC      string `json:"dc,omitempty"`
	Rack    string `json:"rack,omitempty"`
	Role    string `json:"role,omitempty"`
}

// DecodeTableSplitRecord parses a stored record.
func DecodeTableSplitRecord(data []byte) (TableSplitRecord, error) {
	var r TableSplitRecord
	if err := json.Unmarshal(data, &r); err != nil {
		return TableSplitRecord{}, fmt.Errorf("topology: decode split record: %w", err)
	}
	return r, nil
}

// Encode serializes the record.
func (r TableSplitRecord) Encode() ([]byte, error) {
	return json.Marshal(r)
}

// Build resolves replicas through registry and returns the validated split.
// Leaders are ordered first within each partition; other replicas keep
// their stored order.
func (r TableSplitRecord) Build(registry *HostRegistry) (*TableSplit, error) {
	if r.Keyspace == "" || r.Table == "" {
		return nil, fmt.Errorf("%w: record without keyspace or table", ErrInvalidSplit)
	}

	parts := make([]Partition, len(r.Partitions))
	for i, pr := range r.Partitions {
		replicas := append([]ReplicaRecord(nil), pr.Replicas...)
		sort.SliceStable(replicas, func(a, b int) bool {
			return replicas[a].Role == RoleLeader && replicas[b].Role != RoleLeader
		})

		hosts := make([]*Host, 0, len(replicas))
		for _, rep := range replicas {
			if rep.Address == "" {
				return nil, fmt.Errorf("%w: %s.%s replica without address", ErrInvalidSplit, r.Keyspace, r.Table)
			}
			var id uuid.UUID
			if rep.HostID != "" {
				parsed, err := uuid.Parse(rep.HostID)
				if err != nil {
					return nil, fmt.Errorf("%w: %s.%s host id %q: %v", ErrInvalidSplit, r.Keyspace, r.Table, rep.HostID, err)
				}
				id = parsed
			}
			h, _ := registry.Resolve(id, rep.Address, rep.DC, rep.Rack)
			hosts = append(hosts, h)
		}
		parts[i] = Partition{StartKey: pr.StartKey, EndKey: pr.EndKey, Hosts: hosts}
	}
	return NewTableSplit(r.Keyspace, r.Table, parts)
}

// RecordFromSplit converts a split back to its stored form. Every partition's
// first host is written as the leader.
func RecordFromSplit(s *TableSplit) TableSplitRecord {
	r := TableSplitRecord{Keyspace: s.keyspace, Table: s.table}
	for _, p := range s.partitions {
		pr := PartitionRecord{StartKey: p.StartKey, EndKey: p.EndKey}
		for i, h := range p.Hosts {
			role := RoleFollower
			if i == 0 {
				role = RoleLeader
			}
			pr.Replicas = append(pr.Replicas, ReplicaRecord{
				HostID:  h.ID.String(),
				Address: h.Address,
				DC:      h.DC,
				Rack:    h.Rack,
				Role:    role,
			})
		}
		r.Partitions = append(r.Partitions, pr)
	}
	return r
}

// PublishSplit validates record and writes it under the cluster's split key.
func PublishSplit(ctx context.Context, store metadata.MetadataStore, clusterID string, record TableSplitRecord) (metadata.Version, error) {
	if _, err := record.Build(NewHostRegistry()); err != nil {
		return 0, err
	}
	data, err := record.Encode()
	if err != nil {
		return 0, fmt.Errorf("topology: encode split record: %w", err)
	}
	key := keys.SplitKeyPath(clusterID, record.Keyspace, record.Table)
	v, err := store.Put(ctx, key, data)
	if err != nil {
		return 0, fmt.Errorf("topology: publish %s: %w", key, err)
	}
	return v, nil
}
