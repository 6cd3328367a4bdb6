package topology

import (
	"sort"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
)

// HostRegistry is the set of known hosts, keyed by address. The same *Host
// is returned for an address for the life of the registry, so up/down state
// set by the connection layer is seen by every split that references it.
type HostRegistry struct {
	mu     sync.RWMutex
	byAddr map[string]*Host
	byID   map[uuid.UUID]*Host

	// version counts additions. sorted caches Hosts for that version.
	version atomic.Uint64
	sorted  atomic.Pointer[sortedHosts]
}

type sortedHosts struct {
	version uint64
	hosts   []*Host
}

// NewHostRegistry creates an empty registry.
func NewHostRegistry() *HostRegistry {
	return &HostRegistry{
		byAddr: make(map[string]*Host),
		byID:   make(map[uuid.UUID]*Host),
	}
}

// Resolve returns the host at address, creating it on first sight.
// A nil id is derived from the address. Placement of an existing host is not
// changed.
func (r *HostRegistry) Resolve(id uuid.UUID, address, dc, rack string) (h *Host, created bool) {
	r.mu.RLock()
	h, ok := r.byAddr[address]
	r.mu.RUnlock()
	if ok {
		return h, false
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if h, ok := r.byAddr[address]; ok {
		return h, false
	}
	h = NewHost(id, address, dc, rack)
	r.byAddr[address] = h
	r.byID[h.ID] = h
	r.version.Add(1)
	return h, true
}

// ByAddress returns the host at address.
func (r *HostRegistry) ByAddress(address string) (*Host, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.byAddr[address]
	return h, ok
}

// ByID returns the host with id.
func (r *HostRegistry) ByID(id uuid.UUID) (*Host, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.byID[id]
	return h, ok
}

// Hosts returns every known host ordered by address. The slice is a copy.
func (r *HostRegistry) Hosts() []*Host {
	return append([]*Host(nil), r.sortedHosts()...)
}

// Version changes whenever a host is added. Hosts are never removed and
// their placement never changes, so anything derived from Hosts stays
// valid while Version is unchanged.
func (r *HostRegistry) Version() uint64 {
	return r.version.Load()
}

func (r *HostRegistry) sortedHosts() []*Host {
	if cached := r.sorted.Load(); cached != nil && cached.version == r.version.Load() {
		return cached.hosts
	}

	r.mu.RLock()
	version := r.version.Load()
	hosts := make([]*Host, 0, len(r.byAddr))
	for _, h := range r.byAddr {
		hosts = append(hosts, h)
	}
	r.mu.RUnlock()

	sort.Slice(hosts, func(i, j int) bool { return hosts[i].Address < hosts[j].Address })
	r.sorted.Store(&sortedHosts{version: version, hosts: hosts})
	return hosts
}

// SetUp marks the host at address up or down. It returns false if the
// address is unknown.
func (r *HostRegistry) SetUp(address string, up bool) bool {
	h, ok := r.ByAddress(address)
	if !ok {
		return false
	}
	h.SetUp(up)
	return true
}

// Len returns the number of known hosts.
func (r *HostRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byAddr)
}
