package topology

import (
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/dray-io/ybroute/internal/partition"
)

func hosts(names ...string) []*Host {
	out := make([]*Host, len(names))
	for i, n := range names {
		out[i] = NewHost(uuid.Nil, n, "dc1", "r1")
	}
	return out
}

func TestHostUpDown(t *testing.T) {
	h := NewHost(uuid.Nil, "10.0.0.1:9042", "dc1", "r1")
	if !h.IsUp() {
		t.Fatal("new host should be up")
	}
	if h.ID != HostIDFor("10.0.0.1:9042") {
		t.Errorf("nil id not derived from address")
	}
	if !h.SetUp(false) {
		t.Error("SetUp(false) on an up host should report a change")
	}
	if h.IsUp() {
		t.Error("host should be down")
	}
	if h.SetUp(false) {
		t.Error("repeated SetUp(false) should not report a change")
	}
	if !h.SetUp(true) || !h.IsUp() {
		t.Error("host should come back up")
	}
}

func TestNewTableSplitValidation(t *testing.T) {
	hs := hosts("a", "b")
	tests := []struct {
		name  string
		parts []Partition
	}{
		{"empty", nil},
		{"gap", []Partition{{0, 100, hs}, {200, partition.NumBuckets, hs}}},
		{"overlap", []Partition{{0, 200, hs}, {100, partition.NumBuckets, hs}}},
		{"short", []Partition{{0, 1000, hs}}},
		{"not from zero", []Partition{{1, partition.NumBuckets, hs}}},
		{"inverted", []Partition{{0, 0, hs}, {0, partition.NumBuckets, hs}}},
		{"past end", []Partition{{0, partition.NumBuckets + 1, hs}}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := NewTableSplit("ks", "t", tc.parts); !errors.Is(err, ErrInvalidSplit) {
				t.Errorf("err = %v, want ErrInvalidSplit", err)
			}
		})
	}
}

func TestHostsForBucket(t *testing.T) {
	h := hosts("h1", "h2", "h3", "h4")
	split, err := NewTableSplit("ks", "t", []Partition{
		{StartKey: 0x8000, EndKey: partition.NumBuckets, Hosts: []*Host{h[2], h[3]}},
		{StartKey: 0, EndKey: 0x4000, Hosts: []*Host{h[0], h[1]}},
		{StartKey: 0x4000, EndKey: 0x8000, Hosts: []*Host{h[1], h[2]}},
	})
	if err != nil {
		t.Fatalf("NewTableSplit failed: %v", err)
	}
	if split.FullName() != "ks.t" || split.NumPartitions() != 3 {
		t.Errorf("split = %s with %d partitions", split.FullName(), split.NumPartitions())
	}

	tests := []struct {
		bucket partition.Bucket
		want   []*Host
	}{
		{0, []*Host{h[0], h[1]}},
		{0x3fff, []*Host{h[0], h[1]}},
		{0x4000, []*Host{h[1], h[2]}},
		{0x7fff, []*Host{h[1], h[2]}},
		{0x8000, []*Host{h[2], h[3]}},
		{0xffff, []*Host{h[2], h[3]}},
	}
	for _, tc := range tests {
		got := split.HostsForBucket(tc.bucket)
		if len(got) != len(tc.want) {
			t.Fatalf("bucket %#x: %d hosts, want %d", tc.bucket, len(got), len(tc.want))
		}
		for i := range got {
			if got[i] != tc.want[i] {
				t.Errorf("bucket %#x host %d = %s, want %s", tc.bucket, i, got[i].Address, tc.want[i].Address)
			}
		}
	}
}

func TestHostsForBucketReturnsCopy(t *testing.T) {
	h := hosts("h1", "h2")
	split, err := UniformSplit("ks", "t", h)
	if err != nil {
		t.Fatalf("UniformSplit failed: %v", err)
	}

	got := split.HostsForBucket(5)
	got[0], got[1] = got[1], got[0]

	again := split.HostsForBucket(5)
	if again[0] != h[0] || again[1] != h[1] {
		t.Error("reordering the returned slice changed the split")
	}
}

func TestUniformSplit(t *testing.T) {
	h := hosts("a", "b", "c")
	split, err := UniformSplit("ks", "t", h[:1], h[1:2], h[2:])
	if err != nil {
		t.Fatalf("UniformSplit failed: %v", err)
	}
	if split.NumPartitions() != 3 {
		t.Fatalf("partitions = %d", split.NumPartitions())
	}
	if got := split.HostsForBucket(0)[0]; got != h[0] {
		t.Errorf("bucket 0 -> %s", got.Address)
	}
	if got := split.HostsForBucket(0xffff)[0]; got != h[2] {
		t.Errorf("bucket 0xffff -> %s", got.Address)
	}
	if _, err := UniformSplit("ks", "t"); !errors.Is(err, ErrInvalidSplit) {
		t.Errorf("UniformSplit with no partitions: err = %v", err)
	}
}

func TestSplitCatalog(t *testing.T) {
	var zero SplitCatalog
	if _, ok := zero.TableSplit("ks.t"); ok || zero.Len() != 0 {
		t.Error("zero catalog should be empty")
	}

	a, _ := UniformSplit("ks", "a", hosts("h1"))
	b, _ := UniformSplit("ks", "b", hosts("h2"))
	c := NewSplitCatalog(a, b)

	if got, ok := c.TableSplit("ks.a"); !ok || got != a {
		t.Error("ks.a not found")
	}
	if names := c.Tables(); len(names) != 2 || names[0] != "ks.a" || names[1] != "ks.b" {
		t.Errorf("Tables() = %v", names)
	}

	c.Replace([]*TableSplit{b})
	if _, ok := c.TableSplit("ks.a"); ok {
		t.Error("ks.a should be gone after Replace")
	}
	if c.Len() != 1 {
		t.Errorf("Len() = %d", c.Len())
	}
}

func TestHostRegistry(t *testing.T) {
	r := NewHostRegistry()
	id := uuid.New()

	h1, created := r.Resolve(id, "10.0.0.2:9042", "dc2", "r1")
	if !created || h1.ID != id {
		t.Fatalf("Resolve = %v, %v", h1, created)
	}
	h2, created := r.Resolve(uuid.Nil, "10.0.0.2:9042", "dcX", "rX")
	if created || h2 != h1 || h2.DC != "dc2" {
		t.Error("second Resolve should return the existing host unchanged")
	}
	h3, _ := r.Resolve(uuid.Nil, "10.0.0.1:9042", "dc1", "r1")

	if got, ok := r.ByID(id); !ok || got != h1 {
		t.Error("ByID failed")
	}
	if all := r.Hosts(); len(all) != 2 || all[0] != h3 || all[1] != h1 {
		t.Errorf("Hosts() not ordered by address: %v", all)
	}

	if !r.SetUp("10.0.0.2:9042", false) || h1.IsUp() {
		t.Error("SetUp did not mark host down")
	}
	if r.SetUp("10.9.9.9:9042", false) {
		t.Error("SetUp on unknown address should return false")
	}
}

func TestHostRegistryVersion(t *testing.T) {
	r := NewHostRegistry()
	v0 := r.Version()

	h1, _ := r.Resolve(uuid.Nil, "10.0.0.2:9042", "dc1", "r1")
	v1 := r.Version()
	if v1 == v0 {
		t.Fatal("adding a host should change the version")
	}
	r.Resolve(uuid.Nil, "10.0.0.2:9042", "dc1", "r1")
	h1.SetUp(false)
	if r.Version() != v1 {
		t.Error("existing hosts and up/down changes should keep the version")
	}

	first := r.Hosts()
	first[0] = nil
	if all := r.Hosts(); len(all) != 1 || all[0] != h1 {
		t.Errorf("Hosts() returned shared state: %v", all)
	}

	h0, _ := r.Resolve(uuid.Nil, "10.0.0.1:9042", "dc1", "r1")
	if r.Version() == v1 {
		t.Error("second host should change the version")
	}
	if all := r.Hosts(); len(all) != 2 || all[0] != h0 || all[1] != h1 {
		t.Errorf("Hosts() after add = %v", all)
	}
}
