package routing

import (
	"sort"
	"sync/atomic"

	"github.com/dray-io/ybroute/internal/topology"
)

// DCAwareRoundRobinPolicy prefers hosts in the local data center. Up to
// UsedHostsPerRemoteDC hosts of every other data center are used after the
// local ones; the rest are ignored.
type DCAwareRoundRobinPolicy struct {
	localDC              string
	usedHostsPerRemoteDC int

	cluster Cluster
	index   atomic.Uint64
	layout  atomic.Pointer[dcLayout]
}

// dcLayout splits one version of the host set into local hosts and the
// remote hosts in use, per DC.
type dcLayout struct {
	version uint64
	local   []*topology.Host
	remote  map[*topology.Host]struct{}
	dcs     []string
	byDC    map[string][]*topology.Host
}

var _ LoadBalancingPolicy = (*DCAwareRoundRobinPolicy)(nil)

// NewDCAwareRoundRobinPolicy returns a policy for localDC. An empty localDC
// treats every host as local.
func NewDCAwareRoundRobinPolicy(localDC string, usedHostsPerRemoteDC int) *DCAwareRoundRobinPolicy {
	if usedHostsPerRemoteDC < 0 {
		usedHostsPerRemoteDC = 0
	}
	return &DCAwareRoundRobinPolicy{localDC: localDC, usedHostsPerRemoteDC: usedHostsPerRemoteDC}
}

// LocalDC returns the configured local data center.
func (p *DCAwareRoundRobinPolicy) LocalDC() string {
	return p.localDC
}

func (p *DCAwareRoundRobinPolicy) Init(cluster Cluster) {
	p.cluster = cluster
	p.layout.Store(nil)
}

func (p *DCAwareRoundRobinPolicy) isLocal(h *topology.Host) bool {
	return p.localDC == "" || h.DC == p.localDC
}

// currentLayout returns the layout for the cluster's current host set,
// rebuilding it only when the set has changed.
func (p *DCAwareRoundRobinPolicy) currentLayout() *dcLayout {
	version := p.cluster.HostsVersion()
	if l := p.layout.Load(); l != nil && l.version == version {
		return l
	}

	l := &dcLayout{
		version: version,
		remote:  map[*topology.Host]struct{}{},
		byDC:    map[string][]*topology.Host{},
	}
	for _, h := range p.cluster.Hosts() {
		switch {
		case p.isLocal(h):
			l.local = append(l.local, h)
		case len(l.byDC[h.DC]) < p.usedHostsPerRemoteDC:
			l.byDC[h.DC] = append(l.byDC[h.DC], h)
			l.remote[h] = struct{}{}
		}
	}
	for dc := range l.byDC {
		l.dcs = append(l.dcs, dc)
	}
	sort.Strings(l.dcs)
	p.layout.Store(l)
	return l
}

// Distance is Local for hosts of the local DC and Remote for the first
// UsedHostsPerRemoteDC hosts, by address, of each other DC.
func (p *DCAwareRoundRobinPolicy) Distance(host *topology.Host) HostDistance {
	if p.isLocal(host) {
		return DistanceLocal
	}
	if p.usedHostsPerRemoteDC == 0 || p.cluster == nil {
		return DistanceIgnored
	}
	if _, ok := p.currentLayout().remote[host]; ok {
		return DistanceRemote
	}
	return DistanceIgnored
}

// NewQueryPlan yields the local hosts that are up, rotated per plan, then
// the up remote hosts of each other DC in DC name order. Up state is read
// when the plan is created.
func (p *DCAwareRoundRobinPolicy) NewQueryPlan(string, Statement) *HostPlan {
	if p.cluster == nil {
		return PlanOf()
	}
	l := p.currentLayout()
	start := p.index.Add(1) - 1

	hosts := rotateUp(nil, l.local, start)
	for _, dc := range l.dcs {
		hosts = rotateUp(hosts, l.byDC[dc], start)
	}
	return PlanOf(hosts...)
}

func (p *DCAwareRoundRobinPolicy) RequiresTokenMap() bool     { return false }
func (p *DCAwareRoundRobinPolicy) RequiresPartitionMap() bool { return false }
