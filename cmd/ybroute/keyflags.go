package main

import (
	"fmt"
	"strings"

	"github.com/dray-io/ybroute/internal/cqltype"
	"github.com/dray-io/ybroute/internal/routing"
)

// stringsFlag collects every occurrence of a repeated flag.
type stringsFlag []string

func (s *stringsFlag) String() string { return strings.Join(*s, ",") }

func (s *stringsFlag) Set(v string) error {
	*s = append(*s, v)
	return nil
}

// keyColumns pairs repeated -type and -value flags, in order.
type keyColumns struct {
	types  stringsFlag
	values stringsFlag
}

// column is one parsed hash key column.
type column struct {
	Type  cqltype.TypeInfo
	Value any
}

func (k *keyColumns) parse() ([]column, error) {
	if len(k.types) == 0 {
		return nil, fmt.Errorf("at least one -type/-value pair is required")
	}
	if len(k.types) != len(k.values) {
		return nil, fmt.Errorf("got %d -type and %d -value flags", len(k.types), len(k.values))
	}
	cols := make([]column, len(k.types))
	for i, name := range k.types {
		t, err := cqltype.ParseTypeName(name)
		if err != nil {
			return nil, fmt.Errorf("key column %d: %w", i, err)
		}
		v, err := cqltype.ParseLiteral(t, k.values[i])
		if err != nil {
			return nil, fmt.Errorf("key column %d (%s): %w", i, t, err)
		}
		cols[i] = column{Type: t, Value: v}
	}
	return cols, nil
}

// prepared returns a statement whose bind positions are the key columns.
func prepared(keyspace, table string, cols []column) *routing.PreparedStatement {
	p := &routing.PreparedStatement{Keyspace: keyspace, Table: table}
	for i, c := range cols {
		p.Routing = append(p.Routing, routing.RoutingColumn{Position: i, Type: c.Type})
	}
	return p
}

func values(cols []column) []any {
	out := make([]any, len(cols))
	for i, c := range cols {
		out[i] = c.Value
	}
	return out
}
