// Package topology holds the driver's view of cluster hosts and of how each
// hash-sharded table is split across them.
//
// Hosts are shared, long-lived values whose up/down flag is flipped by the
// connection layer. Table splits are immutable snapshots swapped wholesale
// by the refresher, so routing reads them without locking.
package topology

import (
	"fmt"
	"sync/atomic"

	"github.com/google/uuid"
)

// hostNamespace derives stable host ids from addresses when a record has none.
var hostNamespace = uuid.MustParse("6f0c2c4e-1d55-4b8f-9a8e-3a1f7c2d9b10")

// Host is a cluster node. Identity fields are immutable once created.
type Host struct {
	ID      uuid.UUID
	Address string
	DC      string
	Rack    string

	down atomic.Bool
}

// NewHost returns a host that starts up.
func NewHost(id uuid.UUID, address, dc, rack string) *Host {
	if id == uuid.Nil {
		id = HostIDFor(address)
	}
	return &Host{ID: id, Address: address, DC: dc, Rack: rack}
}

// HostIDFor returns the deterministic id used for an address without one.
func HostIDFor(address string) uuid.UUID {
	return uuid.NewSHA1(hostNamespace, []byte(address))
}

// IsUp reports whether the host is currently considered reachable.
func (h *Host) IsUp() bool {
	return !h.down.Load()
}

// SetUp records the host's reachability and reports whether it changed.
func (h *Host) SetUp(up bool) bool {
	return h.down.Swap(!up) == up
}

func (h *Host) String() string {
	state := "up"
	if !h.IsUp() {
		state = "down"
	}
	return fmt.Sprintf("%s(%s/%s, %s)", h.Address, h.DC, h.Rack, state)
}
