package routing

import (
	"sync/atomic"

	"github.com/dray-io/ybroute/internal/topology"
)

// RoundRobinPolicy treats every host as local and rotates the starting
// host on each plan.
type RoundRobinPolicy struct {
	cluster Cluster
	index   atomic.Uint64
}

var _ LoadBalancingPolicy = (*RoundRobinPolicy)(nil)

// NewRoundRobinPolicy returns a round-robin policy.
func NewRoundRobinPolicy() *RoundRobinPolicy {
	return &RoundRobinPolicy{}
}

func (p *RoundRobinPolicy) Init(cluster Cluster) {
	p.cluster = cluster
}

func (p *RoundRobinPolicy) Distance(*topology.Host) HostDistance {
	return DistanceLocal
}

// NewQueryPlan yields the hosts that are up when it is called, starting one
// past the previous plan's start.
func (p *RoundRobinPolicy) NewQueryPlan(string, Statement) *HostPlan {
	if p.cluster == nil {
		return PlanOf()
	}
	return PlanOf(rotateUp(nil, p.cluster.Hosts(), p.index.Add(1)-1)...)
}

func (p *RoundRobinPolicy) RequiresTokenMap() bool     { return false }
func (p *RoundRobinPolicy) RequiresPartitionMap() bool { return false }

// rotateUp appends to dst the up hosts of hosts, starting at offset start.
func rotateUp(dst, hosts []*topology.Host, start uint64) []*topology.Host {
	n := len(hosts)
	if n == 0 {
		return dst
	}
	first := int(start % uint64(n))
	for i := range n {
		if h := hosts[(first+i)%n]; h.IsUp() {
			dst = append(dst, h)
		}
	}
	return dst
}
