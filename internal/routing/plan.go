package routing

import (
	"iter"
	"math/rand/v2"
	"slices"
	"sync"

	"github.com/dray-io/ybroute/internal/partition"
	"github.com/dray-io/ybroute/internal/topology"
)

// HostPlan is a forward-only sequence of hosts, produced on demand by next.
// A plan is consumed once and is not safe for concurrent use.
type HostPlan struct {
	next func() (*topology.Host, bool)
}

// NewHostPlan returns a plan producing hosts from next until it returns
// false.
func NewHostPlan(next func() (*topology.Host, bool)) *HostPlan {
	return &HostPlan{next: next}
}

// PlanOf returns a plan over hosts in order.
func PlanOf(hosts ...*topology.Host) *HostPlan {
	i := 0
	return NewHostPlan(func() (*topology.Host, bool) {
		if i >= len(hosts) {
			return nil, false
		}
		h := hosts[i]
		i++
		return h, true
	})
}

// Next returns the next host, or false once the plan is exhausted.
func (p *HostPlan) Next() (*topology.Host, bool) {
	if p == nil || p.next == nil {
		return nil, false
	}
	h, ok := p.next()
	if !ok {
		p.next = nil
	}
	return h, ok
}

// All returns the remaining hosts as an iterator.
func (p *HostPlan) All() iter.Seq[*topology.Host] {
	return func(yield func(*topology.Host) bool) {
		for {
			h, ok := p.Next()
			if !ok || !yield(h) {
				return
			}
		}
	}
}

// Collect drains the plan.
func (p *HostPlan) Collect() []*topology.Host {
	return slices.Collect(p.All())
}

// PlanBuilder turns a bucket into a host plan: owning replicas first, then
// the fallback policy's hosts.
type PlanBuilder struct {
	cluster  Cluster
	fallback LoadBalancingPolicy

	mu  sync.Mutex
	rnd *rand.Rand
}

// NewPlanBuilder returns a builder. rnd drives replica shuffling for
// consistent-prefix reads and must not be shared with other goroutines.
func NewPlanBuilder(cluster Cluster, fallback LoadBalancingPolicy, rnd *rand.Rand) *PlanBuilder {
	if rnd == nil {
		rnd = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &PlanBuilder{cluster: cluster, fallback: fallback, rnd: rnd}
}

// Plan returns the host plan for the row at bucket of table
// ("keyspace.table"). Without a split for table it returns the fallback's
// plan.
func (b *PlanBuilder) Plan(keyspace string, stmt Statement, table string, bucket partition.Bucket, cl Consistency) *HostPlan {
	plan, _ := b.plan(keyspace, stmt, table, bucket, cl)
	return plan
}

// plan also reports whether the split of table was found.
//
// Host state is read once, here: owners and fallback hosts are filtered by
// their up flag and distance at call time, and later changes do not alter
// the returned plan. Each host appears at most once.
func (b *PlanBuilder) plan(keyspace string, stmt Statement, table string, bucket partition.Bucket, cl Consistency) (*HostPlan, bool) {
	split, ok := b.cluster.TableSplit(table)
	if !ok {
		return b.fallback.NewQueryPlan(keyspace, stmt), false
	}

	owners := split.HostsForBucket(bucket)
	strong := cl.IsStrong()
	if !strong {
		b.shuffle(owners)
	}

	eligible := func(h *topology.Host) bool {
		return h.IsUp() && (strong || b.fallback.Distance(h) == DistanceLocal)
	}

	seen := make(map[*topology.Host]struct{}, len(owners))
	hosts := make([]*topology.Host, 0, len(owners))
	for _, h := range owners {
		if _, dup := seen[h]; dup {
			continue
		}
		seen[h] = struct{}{}
		if eligible(h) {
			hosts = append(hosts, h)
		}
	}
	for h := range b.fallback.NewQueryPlan(keyspace, stmt).All() {
		if _, dup := seen[h]; dup {
			continue
		}
		seen[h] = struct{}{}
		if eligible(h) {
			hosts = append(hosts, h)
		}
	}
	return PlanOf(hosts...), true
}

func (b *PlanBuilder) shuffle(hosts []*topology.Host) {
	b.mu.Lock()
	b.rnd.Shuffle(len(hosts), func(i, j int) {
		hosts[i], hosts[j] = hosts[j], hosts[i]
	})
	b.mu.Unlock()
}
