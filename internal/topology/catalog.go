package topology

import (
	"sort"
	"sync/atomic"
)

type splitSnapshot struct {
	tables map[string]*TableSplit
}

var emptySnapshot = &splitSnapshot{}

// SplitCatalog holds the current table splits. Reads are lock-free; the
// whole set is replaced at once, so a reader sees either the old or the new
// snapshot, never a mix.
type SplitCatalog struct {
	current atomic.Pointer[splitSnapshot]
}

// NewSplitCatalog returns a catalog holding splits.
func NewSplitCatalog(splits ...*TableSplit) *SplitCatalog {
	c := &SplitCatalog{}
	c.Replace(splits)
	return c
}

func (c *SplitCatalog) snapshot() *splitSnapshot {
	if s := c.current.Load(); s != nil {
		return s
	}
	return emptySnapshot
}

// TableSplit returns the split of "keyspace.table".
func (c *SplitCatalog) TableSplit(fullName string) (*TableSplit, bool) {
	s, ok := c.snapshot().tables[fullName]
	return s, ok
}

// Replace installs splits as the new snapshot. Later entries win on
// duplicate names.
func (c *SplitCatalog) Replace(splits []*TableSplit) {
	next := &splitSnapshot{tables: make(map[string]*TableSplit, len(splits))}
	for _, s := range splits {
		next.tables[s.FullName()] = s
	}
	c.current.Store(next)
}

// Tables returns the names of all tables in the snapshot, sorted.
func (c *SplitCatalog) Tables() []string {
	tables := c.snapshot().tables
	names := make([]string, 0, len(tables))
	for name := range tables {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of tables in the snapshot.
func (c *SplitCatalog) Len() int {
	return len(c.snapshot().tables)
}
