package routing

import (
	"fmt"
	"math/big"
	"math/rand/v2"
	"sync"
	"testing"

	"github.com/datastax/go-cassandra-native-protocol/datatype"
	"github.com/datastax/go-cassandra-native-protocol/message"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dray-io/ybroute/internal/cqltype"
	"github.com/dray-io/ybroute/internal/logging"
	"github.com/dray-io/ybroute/internal/partition"
	"github.com/dray-io/ybroute/internal/topology"
)

// bucketOf42 is the bucket of the int key 42 (buffer 00 00 00 2a).
const bucketOf42 partition.Bucket = 21465

type fakeRecorder struct {
	mu        sync.Mutex
	paths     map[string]int
	reasons   map[string]int
	durations int
}

func newFakeRecorder() *fakeRecorder {
	return &fakeRecorder{paths: map[string]int{}, reasons: map[string]int{}}
}

func (r *fakeRecorder) RecordPlan(path string) {
	r.mu.Lock()
	r.paths[path]++
	r.mu.Unlock()
}

func (r *fakeRecorder) RecordUnroutable(reason string) {
	r.mu.Lock()
	r.reasons[reason]++
	r.mu.Unlock()
}

func (r *fakeRecorder) RecordBucketDuration(float64) {
	r.mu.Lock()
	r.durations++
	r.mu.Unlock()
}

// staticPolicy returns the same plan every time.
type staticPolicy struct {
	hosts     []*topology.Host
	distances map[*topology.Host]HostDistance
	cluster   Cluster
	tokenMap  bool
}

func (p *staticPolicy) Init(c Cluster) { p.cluster = c }

func (p *staticPolicy) Distance(h *topology.Host) HostDistance {
	if d, ok := p.distances[h]; ok {
		return d
	}
	return DistanceLocal
}

func (p *staticPolicy) NewQueryPlan(string, Statement) *HostPlan {
	return PlanOf(p.hosts...)
}

func (p *staticPolicy) RequiresTokenMap() bool     { return p.tokenMap }
func (p *staticPolicy) RequiresPartitionMap() bool { return false }

type fixture struct {
	registry *topology.HostRegistry
	catalog  *topology.SplitCatalog
	cluster  *ClusterState
	h        []*topology.Host // h[1]..h[5]; h[0] unused
	fallback *staticPolicy
	prepared *PreparedStatement
}

// newFixture builds a cluster where bucketOf42 of ks.t is owned by
// [H1, H2(down), H3] and the fallback plan is [H4, H2, H1, H5, H3].
func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{registry: topology.NewHostRegistry()}
	f.h = make([]*topology.Host, 6)
	for i := 1; i <= 5; i++ {
		f.h[i], _ = f.registry.Resolve(uuid.Nil, fmt.Sprintf("10.0.0.%d:9042", i), "dc1", "r1")
	}
	f.h[2].SetUp(false)

	split, err := topology.NewTableSplit("ks", "t", []topology.Partition{
		{StartKey: 0, EndKey: int(bucketOf42), Hosts: []*topology.Host{f.h[4]}},
		{StartKey: int(bucketOf42), EndKey: int(bucketOf42) + 1, Hosts: []*topology.Host{f.h[1], f.h[2], f.h[3]}},
		{StartKey: int(bucketOf42) + 1, EndKey: partition.NumBuckets, Hosts: []*topology.Host{f.h[5]}},
	})
	require.NoError(t, err)
	f.catalog = topology.NewSplitCatalog(split)
	f.cluster = NewClusterState(f.registry, f.catalog, ConsistencyQuorum)
	f.fallback = &staticPolicy{hosts: []*topology.Host{f.h[4], f.h[2], f.h[1], f.h[5], f.h[3]}}
	f.prepared = &PreparedStatement{
		Keyspace: "ks",
		Table:    "t",
		Query:    "SELECT * FROM ks.t WHERE k = ?",
		Routing:  RoutingSpec{{Position: 0, Type: cqltype.Int}},
	}
	return f
}

func (f *fixture) policy(opts ...Option) *PartitionAwarePolicy {
	opts = append([]Option{WithLogger(logging.Discard())}, opts...)
	p := NewPartitionAwarePolicy(f.fallback, opts...)
	p.Init(f.cluster)
	return p
}

func addresses(hosts []*topology.Host) []string {
	out := make([]string, len(hosts))
	for i, h := range hosts {
		out[i] = h.Address
	}
	return out
}

func TestExtractorGoldenInt(t *testing.T) {
	f := newFixture(t)
	rec := newFakeRecorder()
	e := NewKeyExtractor(nil, logging.Discard(), rec)

	b, ok := e.Bucket(f.prepared.Bind(int32(42)))
	require.True(t, ok)
	assert.Equal(t, bucketOf42, b)
	assert.Equal(t, 1, rec.durations)
	assert.Empty(t, rec.reasons)

	token, ok := ComputeToken(f.prepared.Bind(int32(42)), nil)
	require.True(t, ok)
	assert.Equal(t, int64(-3181511661760544768), token)
}

func TestExtractorNotRoutable(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name   string
		stmt   Statement
		reason string
	}{
		{
			name:   "empty routing spec",
			stmt:   (&PreparedStatement{Keyspace: "ks", Table: "t"}).Bind(int32(1)),
			reason: ReasonEmptyRouting,
		},
		{
			name:   "type mismatch",
			stmt:   f.prepared.Bind(struct{ X int }{1}),
			reason: ReasonSerialize,
		},
		{
			name: "missing value",
			stmt: (&PreparedStatement{Keyspace: "ks", Table: "t", Routing: RoutingSpec{
				{Position: 2, Type: cqltype.Int},
			}}).Bind(int32(1)),
			reason: ReasonMissingValue,
		},
		{
			name: "unsupported key type",
			stmt: (&PreparedStatement{Keyspace: "ks", Table: "t", Routing: RoutingSpec{
				{Position: 0, Type: cqltype.Varint},
			}}).Bind(big.NewInt(5)),
			reason: ReasonEncode,
		},
		{
			name:   "unprepared",
			stmt:   &SimpleStatement{Query: "SELECT * FROM ks.t WHERE k = 1"},
			reason: ReasonUnprepared,
		},
		{
			name:   "bound without prepared statement",
			stmt:   &BoundStatement{Values: []any{int32(1)}},
			reason: ReasonUnprepared,
		},
		{
			name: "batch without routable child",
			stmt: &BatchStatement{Statements: []Statement{
				&SimpleStatement{Query: "INSERT"},
				(&PreparedStatement{Keyspace: "ks", Table: "t"}).Bind(),
			}},
			reason: ReasonNoRoutableChild,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := newFakeRecorder()
			e := NewKeyExtractor(nil, logging.Discard(), rec)
			_, ok := e.Bucket(tc.stmt)
			assert.False(t, ok)
			assert.Equal(t, map[string]int{tc.reason: 1}, rec.reasons)
		})
	}
}

func TestExtractorBatchFirstRoutableChild(t *testing.T) {
	f := newFixture(t)
	other := &PreparedStatement{Keyspace: "ks", Table: "u", Routing: RoutingSpec{{Position: 0, Type: cqltype.Int}}}

	batch := &BatchStatement{Statements: []Statement{
		&SimpleStatement{Query: "INSERT"},
		f.prepared.Bind("not an int"),
		f.prepared.Bind(int32(42)),
		other.Bind(int32(1)),
	}}
	key, ok := NewKeyExtractor(nil, logging.Discard(), nil).extract(batch)
	require.True(t, ok)
	assert.Equal(t, bucketOf42, key.bucket)
	assert.Same(t, f.prepared, key.prepared)
}

func TestExtractorDeterministic(t *testing.T) {
	spec := RoutingSpec{
		{Position: 1, Type: cqltype.Varchar},
		{Position: 0, Type: cqltype.Bigint},
	}
	p := &PreparedStatement{Keyspace: "ks", Table: "t", Routing: spec}

	first, ok := ComputeBucket(p.Bind(int64(7), "user-7"), nil)
	require.True(t, ok)
	for i := 0; i < 10; i++ {
		b, ok := ComputeBucket(p.Bind(int64(7), "user-7"), nil)
		require.True(t, ok)
		assert.Equal(t, first, b)
	}

	// Columns are encoded in RoutingSpec order, not bind order.
	want := partition.BucketFor(append([]byte("user-7"), 0, 0, 0, 0, 0, 0, 0, 7))
	assert.Equal(t, want, first)
}

func TestPlanStrongConsistency(t *testing.T) {
	f := newFixture(t)
	b := NewPlanBuilder(f.cluster, f.fallback, rand.New(rand.NewPCG(1, 2)))

	plan := b.Plan("ks", nil, "ks.t", bucketOf42, ConsistencyQuorum)
	assert.Equal(t, addresses([]*topology.Host{f.h[1], f.h[3], f.h[4], f.h[5]}), addresses(plan.Collect()))
}

func TestPlanSnapshotsHostStateAtCallTime(t *testing.T) {
	f := newFixture(t)
	b := NewPlanBuilder(f.cluster, f.fallback, nil)

	plan := b.Plan("ks", nil, "ks.t", bucketOf42, ConsistencyQuorum)
	first, ok := plan.Next()
	require.True(t, ok)
	assert.Same(t, f.h[1], first)

	// Changes after the call do not alter the plan in either tier.
	f.h[3].SetUp(false)
	f.h[4].SetUp(false)
	f.h[2].SetUp(true)
	assert.Equal(t, addresses([]*topology.Host{f.h[3], f.h[4], f.h[5]}), addresses(plan.Collect()))

	// A new plan sees the new state.
	plan = b.Plan("ks", nil, "ks.t", bucketOf42, ConsistencyQuorum)
	assert.Equal(t, addresses([]*topology.Host{f.h[1], f.h[2], f.h[5]}), addresses(plan.Collect()))
}

func TestPlanDeduplicatesHosts(t *testing.T) {
	f := newFixture(t)
	f.fallback.hosts = []*topology.Host{f.h[4], f.h[4], f.h[1], f.h[5], f.h[4]}
	b := NewPlanBuilder(f.cluster, f.fallback, nil)

	plan := b.Plan("ks", nil, "ks.t", bucketOf42, ConsistencyQuorum)
	assert.Equal(t, addresses([]*topology.Host{f.h[1], f.h[3], f.h[4], f.h[5]}), addresses(plan.Collect()))
}

func TestPlanConsistentPrefixShuffles(t *testing.T) {
	f := newFixture(t)
	b := NewPlanBuilder(f.cluster, f.fallback, rand.New(rand.NewPCG(42, 42)))

	const trials = 2000
	h1First := 0
	for i := 0; i < trials; i++ {
		hosts := b.Plan("ks", nil, "ks.t", bucketOf42, ConsistencyYBConsistentPrefix).Collect()
		require.Len(t, hosts, 4)
		owners := []*topology.Host{hosts[0], hosts[1]}
		require.ElementsMatch(t, []*topology.Host{f.h[1], f.h[3]}, owners, "owner tier must be H1 and H3")
		assert.Equal(t, addresses([]*topology.Host{f.h[4], f.h[5]}), addresses(hosts[2:]))
		if hosts[0] == f.h[1] {
			h1First++
		}
	}
	assert.InDelta(t, trials/2, h1First, trials*0.1, "orderings should be roughly equally likely")
}

func TestPlanConsistentPrefixSkipsNonLocal(t *testing.T) {
	f := newFixture(t)
	f.fallback.distances = map[*topology.Host]HostDistance{
		f.h[3]: DistanceRemote,
		f.h[5]: DistanceIgnored,
	}
	b := NewPlanBuilder(f.cluster, f.fallback, nil)

	plan := b.Plan("ks", nil, "ks.t", bucketOf42, ConsistencyYBConsistentPrefix)
	assert.Equal(t, addresses([]*topology.Host{f.h[1], f.h[4]}), addresses(plan.Collect()))

	// Strong reads ignore distance.
	plan = b.Plan("ks", nil, "ks.t", bucketOf42, ConsistencyOne)
	assert.Equal(t, addresses([]*topology.Host{f.h[1], f.h[3], f.h[4], f.h[5]}), addresses(plan.Collect()))
}

func TestPlanWithoutSplitUsesFallback(t *testing.T) {
	f := newFixture(t)
	b := NewPlanBuilder(f.cluster, f.fallback, nil)

	plan, routed := b.plan("ks", nil, "ks.missing", bucketOf42, ConsistencyQuorum)
	assert.False(t, routed)
	assert.Equal(t, addresses(f.fallback.hosts), addresses(plan.Collect()))
}

func TestPolicyBoundStatement(t *testing.T) {
	f := newFixture(t)
	rec := newFakeRecorder()
	p := f.policy(WithRecorder(rec))

	hosts := p.NewQueryPlan("ks", f.prepared.Bind(int32(42))).Collect()
	assert.Equal(t, addresses([]*topology.Host{f.h[1], f.h[3], f.h[4], f.h[5]}), addresses(hosts))
	assert.Equal(t, 1, rec.paths[PathPartition])

	// A bucket in another partition is owned by H5 alone.
	other := p.NewQueryPlan("ks", f.prepared.Bind(int32(1))).Collect()
	require.NotEmpty(t, other)
	b, _ := ComputeBucket(f.prepared.Bind(int32(1)), nil)
	split, _ := f.catalog.TableSplit("ks.t")
	assert.Same(t, split.HostsForBucket(b)[0], other[0])
}

func TestPolicyBatchMatchesBound(t *testing.T) {
	f := newFixture(t)
	p := f.policy()

	single := p.NewQueryPlan("ks", f.prepared.Bind(int32(42))).Collect()
	batch := p.NewQueryPlan("ks", &BatchStatement{Statements: []Statement{
		(&PreparedStatement{Keyspace: "ks", Table: "t"}).Bind(int32(9)),
		f.prepared.Bind(int32(42)),
	}}).Collect()
	assert.Equal(t, addresses(single), addresses(batch))
}

func TestPolicyFallsBack(t *testing.T) {
	f := newFixture(t)
	rec := newFakeRecorder()
	p := f.policy(WithRecorder(rec))

	stmts := []Statement{
		&SimpleStatement{Query: "SELECT now() FROM system.local"},
		f.prepared.Bind("forty-two"),
		(&PreparedStatement{Keyspace: "ks", Table: "missing", Routing: f.prepared.Routing}).Bind(int32(42)),
	}
	for _, stmt := range stmts {
		assert.Equal(t, addresses(f.fallback.hosts), addresses(p.NewQueryPlan("ks", stmt).Collect()))
	}
	assert.Equal(t, 3, rec.paths[PathFallback])
	assert.Equal(t, 0, rec.paths[PathPartition])
}

func TestPolicyBeforeInitUsesFallback(t *testing.T) {
	f := newFixture(t)
	p := NewPartitionAwarePolicy(f.fallback, WithLogger(logging.Discard()))
	assert.Len(t, p.NewQueryPlan("ks", f.prepared.Bind(int32(42))).Collect(), 5)
}

func TestPolicyDelegation(t *testing.T) {
	f := newFixture(t)
	f.fallback.tokenMap = true
	f.fallback.distances = map[*topology.Host]HostDistance{f.h[2]: DistanceRemote}
	p := f.policy()

	assert.Same(t, f.cluster, f.fallback.cluster, "Init should initialize the fallback")
	assert.True(t, p.RequiresPartitionMap())
	assert.True(t, p.RequiresTokenMap())
	assert.Equal(t, DistanceRemote, p.Distance(f.h[2]))
	assert.Equal(t, DistanceLocal, p.Distance(f.h[1]))

	assert.Panics(t, func() { NewPartitionAwarePolicy(nil) })
}

func TestEffectiveConsistency(t *testing.T) {
	f := newFixture(t)
	p := f.policy()

	child := f.prepared.Bind(int32(42))
	assert.Equal(t, ConsistencyQuorum, p.effectiveConsistency(child, child))

	child.Consistency = ConsistencyYBConsistentPrefix
	batch := &BatchStatement{Statements: []Statement{child}}
	assert.Equal(t, ConsistencyYBConsistentPrefix, p.effectiveConsistency(batch, child))

	batch.Consistency = ConsistencyAll
	assert.Equal(t, ConsistencyAll, p.effectiveConsistency(batch, child))

	state := NewClusterState(f.registry, f.catalog, ConsistencyUnset)
	assert.Equal(t, DefaultConsistencyLevel, state.DefaultConsistency())
}

func TestConsistencyNames(t *testing.T) {
	for c := ConsistencyAny; c <= ConsistencyYBConsistentPrefix; c++ {
		parsed, err := ParseConsistency(c.String())
		require.NoError(t, err)
		assert.Equal(t, c, parsed)
		_, ok := c.Wire()
		assert.True(t, ok, c.String())
	}

	c, err := ParseConsistency(" local-quorum ")
	require.NoError(t, err)
	assert.Equal(t, ConsistencyLocalQuorum, c)

	_, err = ParseConsistency("unset")
	assert.ErrorIs(t, err, ErrUnknownConsistency)
	_, err = ParseConsistency("most")
	assert.ErrorIs(t, err, ErrUnknownConsistency)

	wire, _ := ConsistencyYBConsistentPrefix.Wire()
	assert.EqualValues(t, 0x10, wire)
	_, ok := ConsistencyUnset.Wire()
	assert.False(t, ok)

	assert.False(t, ConsistencyYBConsistentPrefix.IsStrong())
	assert.True(t, ConsistencyLocalOne.IsStrong())
}

func TestPreparedFromMetadata(t *testing.T) {
	vars := &message.VariablesMetadata{
		PkIndices: []uint16{1, 0},
		Columns: []*message.ColumnMetadata{
			{Keyspace: "shop", Table: "orders", Name: "region", Index: 0, Type: datatype.Varchar},
			{Keyspace: "shop", Table: "orders", Name: "id", Index: 1, Type: datatype.Bigint},
			{Keyspace: "shop", Table: "orders", Name: "tags", Index: 2, Type: datatype.NewList(datatype.Varchar)},
		},
	}
	p, err := PreparedFromMetadata("SELECT * FROM shop.orders WHERE region = ? AND id = ? AND tags = ?", vars)
	require.NoError(t, err)
	assert.Equal(t, "shop.orders", p.FullTableName())
	require.Len(t, p.Routing, 2)
	assert.Equal(t, 1, p.Routing[0].Position)
	assert.Equal(t, cqltype.Bigint.Code, p.Routing[0].Type.Code)
	assert.Equal(t, 0, p.Routing[1].Position)

	vars.PkIndices = []uint16{3}
	_, err = PreparedFromMetadata("q", vars)
	assert.Error(t, err)

	empty, err := PreparedFromMetadata("SELECT now() FROM system.local", nil)
	require.NoError(t, err)
	assert.Empty(t, empty.Routing)
}

func TestHostPlan(t *testing.T) {
	f := newFixture(t)
	plan := PlanOf(f.h[1], f.h[2], f.h[3])

	var seen []*topology.Host
	for h := range plan.All() {
		seen = append(seen, h)
		if len(seen) == 2 {
			break
		}
	}
	assert.Equal(t, []*topology.Host{f.h[1], f.h[2]}, seen)

	h, ok := plan.Next()
	require.True(t, ok)
	assert.Same(t, f.h[3], h)
	_, ok = plan.Next()
	assert.False(t, ok)
	_, ok = plan.Next()
	assert.False(t, ok)

	var nilPlan *HostPlan
	assert.Empty(t, nilPlan.Collect())
}
