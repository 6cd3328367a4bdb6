package routing

import (
	"math/rand/v2"

	"github.com/dray-io/ybroute/internal/logging"
	"github.com/dray-io/ybroute/internal/topology"
)

// HostDistance classifies a host relative to the client.
type HostDistance int

const (
	DistanceLocal HostDistance = iota
	DistanceRemote
	DistanceIgnored
)

func (d HostDistance) String() string {
	switch d {
	case DistanceLocal:
		return "local"
	case DistanceRemote:
		return "remote"
	case DistanceIgnored:
		return "ignored"
	default:
		return "unknown"
	}
}

// Plan paths reported to Recorder.RecordPlan.
const (
	PathPartition = "partition"
	PathFallback  = "fallback"
)

// Cluster is the view of cluster state a policy plans against.
type Cluster interface {
	// TableSplit returns the split of "keyspace.table".
	TableSplit(fullName string) (*topology.TableSplit, bool)
	// Hosts returns every known host in a stable order.
	Hosts() []*topology.Host
	// HostsVersion changes whenever Hosts would return a different set.
	HostsVersion() uint64
	// DefaultConsistency applies to statements without their own level.
	DefaultConsistency() Consistency
}

// LoadBalancingPolicy orders the hosts a query is sent to.
type LoadBalancingPolicy interface {
	Init(cluster Cluster)
	Distance(host *topology.Host) HostDistance
	NewQueryPlan(keyspace string, stmt Statement) *HostPlan
	RequiresTokenMap() bool
	RequiresPartitionMap() bool
}

// DefaultConsistencyLevel is used when neither the statement nor the
// cluster names a level.
const DefaultConsistencyLevel = ConsistencyLocalOne

// ClusterState implements Cluster over a host registry and a split catalog.
type ClusterState struct {
	registry    *topology.HostRegistry
	catalog     *topology.SplitCatalog
	consistency Consistency
}

// NewClusterState returns a Cluster backed by registry and catalog.
// ConsistencyUnset selects DefaultConsistencyLevel.
func NewClusterState(registry *topology.HostRegistry, catalog *topology.SplitCatalog, consistency Consistency) *ClusterState {
	if consistency == ConsistencyUnset {
		consistency = DefaultConsistencyLevel
	}
	return &ClusterState{registry: registry, catalog: catalog, consistency: consistency}
}

func (c *ClusterState) TableSplit(fullName string) (*topology.TableSplit, bool) {
	return c.catalog.TableSplit(fullName)
}

func (c *ClusterState) Hosts() []*topology.Host {
	return c.registry.Hosts()
}

func (c *ClusterState) HostsVersion() uint64 {
	return c.registry.Version()
}

func (c *ClusterState) DefaultConsistency() Consistency {
	return c.consistency
}

// PartitionAwarePolicy sends bound and batch statements to the replicas
// owning their partition first, then to the hosts of a fallback policy.
// Statements it cannot route are planned by the fallback alone.
type PartitionAwarePolicy struct {
	fallback   LoadBalancingPolicy
	extractor  *KeyExtractor
	serializer Serializer
	logger     *logging.Logger
	recorder   Recorder
	rnd        *rand.Rand

	cluster Cluster
	builder *PlanBuilder
}

var _ LoadBalancingPolicy = (*PartitionAwarePolicy)(nil)

// Option configures a PartitionAwarePolicy.
type Option func(*PartitionAwarePolicy)

// WithRand sets the source used to shuffle replicas for consistent-prefix
// reads.
func WithRand(r *rand.Rand) Option {
	return func(p *PartitionAwarePolicy) { p.rnd = r }
}

// WithSeed seeds the replica shuffle deterministically.
func WithSeed(seed uint64) Option {
	return WithRand(rand.New(rand.NewPCG(seed, seed)))
}

// WithSerializer sets the serializer for bound values.
func WithSerializer(s Serializer) Option {
	return func(p *PartitionAwarePolicy) { p.serializer = s }
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(p *PartitionAwarePolicy) { p.logger = l }
}

// WithRecorder sets the metrics recorder.
func WithRecorder(r Recorder) Option {
	return func(p *PartitionAwarePolicy) { p.recorder = r }
}

// NewPartitionAwarePolicy wraps fallback. It panics if fallback is nil.
func NewPartitionAwarePolicy(fallback LoadBalancingPolicy, opts ...Option) *PartitionAwarePolicy {
	if fallback == nil {
		panic("routing: partition-aware policy requires a fallback policy")
	}
	p := &PartitionAwarePolicy{fallback: fallback}
	for _, opt := range opts {
		opt(p)
	}
	if p.logger == nil {
		p.logger = logging.Global()
	}
	p.logger = p.logger.WithComponent("routing")
	if p.rnd == nil {
		p.rnd = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	p.extractor = NewKeyExtractor(p.serializer, p.logger, p.recorder)
	return p
}

// Init initializes the fallback and binds the policy to cluster. It must be
// called once before NewQueryPlan.
func (p *PartitionAwarePolicy) Init(cluster Cluster) {
	p.fallback.Init(cluster)
	p.cluster = cluster
	p.builder = NewPlanBuilder(cluster, p.fallback, p.rnd)
}

// Distance delegates to the fallback.
func (p *PartitionAwarePolicy) Distance(host *topology.Host) HostDistance {
	return p.fallback.Distance(host)
}

// NewQueryPlan returns the hosts to try for stmt, in order.
func (p *PartitionAwarePolicy) NewQueryPlan(keyspace string, stmt Statement) *HostPlan {
	if p.builder != nil {
		switch stmt.(type) {
		case *BoundStatement, *BatchStatement:
			if key, ok := p.extractor.extract(stmt); ok {
				cl := p.effectiveConsistency(stmt, key.stmt)
				plan, routed := p.builder.plan(keyspace, stmt, key.prepared.FullTableName(), key.bucket, cl)
				if routed {
					p.recordPlan(PathPartition)
				} else {
					p.recordPlan(PathFallback)
				}
				return plan
			}
		}
	}
	p.recordPlan(PathFallback)
	return p.fallback.NewQueryPlan(keyspace, stmt)
}

// effectiveConsistency picks the statement's own level, then the routed
// child's for a batch, then the cluster default.
func (p *PartitionAwarePolicy) effectiveConsistency(stmt Statement, child *BoundStatement) Consistency {
	if cl := stmt.ConsistencyLevel(); cl != ConsistencyUnset {
		return cl
	}
	if child != nil && child.Consistency != ConsistencyUnset {
		return child.Consistency
	}
	if cl := p.cluster.DefaultConsistency(); cl != ConsistencyUnset {
		return cl
	}
	return DefaultConsistencyLevel
}

func (p *PartitionAwarePolicy) recordPlan(path string) {
	if p.recorder != nil {
		p.recorder.RecordPlan(path)
	}
}

// RequiresTokenMap reports whether the fallback needs the token map.
func (p *PartitionAwarePolicy) RequiresTokenMap() bool {
	return p.fallback.RequiresTokenMap()
}

// RequiresPartitionMap is always true: routing needs table splits.
func (p *PartitionAwarePolicy) RequiresPartitionMap() bool {
	return true
}
