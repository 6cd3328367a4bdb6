package routing

import (
	"errors"
	"fmt"
	"strings"

	"github.com/datastax/go-cassandra-native-protocol/message"
	"github.com/datastax/go-cassandra-native-protocol/primitive"

	"github.com/dray-io/ybroute/internal/cqltype"
)

// Consistency is a statement consistency level. The zero value means the
// statement defers to the cluster default.
type Consistency uint8

const (
	ConsistencyUnset Consistency = iota
	ConsistencyAny
	ConsistencyOne
	ConsistencyTwo
	ConsistencyThree
	ConsistencyQuorum
	ConsistencyAll
	ConsistencyLocalQuorum
	ConsistencyEachQuorum
	ConsistencySerial
	ConsistencyLocalSerial
	ConsistencyLocalOne
	// ConsistencyYBConsistentPrefix allows reads from any replica, which may
	// lag the leader.
	ConsistencyYBConsistentPrefix
)

// ybConsistentPrefixWire is the wire code of YB_CONSISTENT_PREFIX.
const ybConsistentPrefixWire = primitive.ConsistencyLevel(0x0010)

var consistencyNames = [...]string{
	ConsistencyUnset:              "UNSET",
	ConsistencyAny:                "ANY",
	ConsistencyOne:                "ONE",
	ConsistencyTwo:                "TWO",
	ConsistencyThree:              "THREE",
	ConsistencyQuorum:             "QUORUM",
	ConsistencyAll:                "ALL",
	ConsistencyLocalQuorum:        "LOCAL_QUORUM",
	ConsistencyEachQuorum:         "EACH_QUORUM",
	ConsistencySerial:             "SERIAL",
	ConsistencyLocalSerial:        "LOCAL_SERIAL",
	ConsistencyLocalOne:           "LOCAL_ONE",
	ConsistencyYBConsistentPrefix: "YB_CONSISTENT_PREFIX",
}

// ErrUnknownConsistency is returned by ParseConsistency.
var ErrUnknownConsistency = errors.New("routing: unknown consistency level")

func (c Consistency) String() string {
	if int(c) < len(consistencyNames) {
		return consistencyNames[c]
	}
	return fmt.Sprintf("Consistency(%d)", uint8(c))
}

// ParseConsistency parses a level name such as "local_quorum" or
// "YB_CONSISTENT_PREFIX". Case and '-' versus '_' are ignored.
func ParseConsistency(s string) (Consistency, error) {
	name := strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(s), "-", "_"))
	for i, n := range consistencyNames {
		if i > 0 && n == name {
			return Consistency(i), nil
		}
	}
	return ConsistencyUnset, fmt.Errorf("%w: %q", ErrUnknownConsistency, s)
}

// IsStrong reports whether reads at c must be served by the tablet leader.
func (c Consistency) IsStrong() bool {
	return c != ConsistencyYBConsistentPrefix
}

// Wire returns the native protocol code of c. It returns false for
// ConsistencyUnset.
func (c Consistency) Wire() (primitive.ConsistencyLevel, bool) {
	switch c {
	case ConsistencyAny:
		return primitive.ConsistencyLevelAny, true
	case ConsistencyOne:
		return primitive.ConsistencyLevelOne, true
	case ConsistencyTwo:
		return primitive.ConsistencyLevelTwo, true
	case ConsistencyThree:
		return primitive.ConsistencyLevelThree, true
	case ConsistencyQuorum:
		return primitive.ConsistencyLevelQuorum, true
	case ConsistencyAll:
		return primitive.ConsistencyLevelAll, true
	case ConsistencyLocalQuorum:
		return primitive.ConsistencyLevelLocalQuorum, true
	case ConsistencyEachQuorum:
		return primitive.ConsistencyLevelEachQuorum, true
	case ConsistencySerial:
		return primitive.ConsistencyLevelSerial, true
	case ConsistencyLocalSerial:
		return primitive.ConsistencyLevelLocalSerial, true
	case ConsistencyLocalOne:
		return primitive.ConsistencyLevelLocalOne, true
	case ConsistencyYBConsistentPrefix:
		return ybConsistentPrefixWire, true
	}
	return 0, false
}

// RoutingColumn is one hash key column of a prepared statement: the bind
// position that carries it and its declared type.
type RoutingColumn struct {
	Position int
	Type     cqltype.TypeInfo
}

// RoutingSpec lists the hash key columns of a prepared statement in key
// order. An empty spec means the statement cannot be routed.
type RoutingSpec []RoutingColumn

// PreparedStatement is the routing view of a prepared statement.
type PreparedStatement struct {
	Keyspace string
	Table    string
	Query    string
	Routing  RoutingSpec
}

// FullTableName returns "keyspace.table".
func (p *PreparedStatement) FullTableName() string {
	return p.Keyspace + "." + p.Table
}

// Bind returns a bound statement for p.
func (p *PreparedStatement) Bind(values ...any) *BoundStatement {
	return &BoundStatement{Prepared: p, Values: values}
}

// PreparedFromMetadata derives a PreparedStatement from the variables
// metadata of a PREPARED result. The keyspace and table come from the first
// bind column; PkIndices lists the hash key positions in key order.
func PreparedFromMetadata(query string, vars *message.VariablesMetadata) (*PreparedStatement, error) {
	if vars == nil || len(vars.Columns) == 0 {
		return &PreparedStatement{Query: query}, nil
	}
	first := vars.Columns[0]
	p := &PreparedStatement{
		Keyspace: first.Keyspace,
		Table:    first.Table,
		Query:    query,
	}
	for _, idx := range vars.PkIndices {
		if int(idx) >= len(vars.Columns) {
			return nil, fmt.Errorf("routing: partition key index %d out of %d bind columns", idx, len(vars.Columns))
		}
		col := vars.Columns[idx]
		t, err := cqltype.FromDataType(col.Type)
		if err != nil {
			return nil, fmt.Errorf("routing: partition key column %s: %w", col.Name, err)
		}
		p.Routing = append(p.Routing, RoutingColumn{Position: int(idx), Type: t})
	}
	return p, nil
}

// Statement is a statement the policy can plan for. It is implemented by
// *BoundStatement, *BatchStatement and *SimpleStatement only.
type Statement interface {
	// ConsistencyLevel returns the statement's own level, or
	// ConsistencyUnset to use the cluster default.
	ConsistencyLevel() Consistency
	isStatement()
}

// BoundStatement is a prepared statement with its bind values.
type BoundStatement struct {
	Prepared    *PreparedStatement
	Values      []any
	Consistency Consistency
}

func (s *BoundStatement) ConsistencyLevel() Consistency { return s.Consistency }
func (*BoundStatement) isStatement()                    {}

// BatchStatement groups statements executed together.
type BatchStatement struct {
	Statements  []Statement
	Consistency Consistency
}

func (s *BatchStatement) ConsistencyLevel() Consistency { return s.Consistency }
func (*BatchStatement) isStatement()                    {}

// SimpleStatement is an unprepared query string. Its routing key is unknown.
type SimpleStatement struct {
	Query       string
	Keyspace    string
	Values      []any
	Consistency Consistency
}

func (s *SimpleStatement) ConsistencyLevel() Consistency { return s.Consistency }
func (*SimpleStatement) isStatement()                    {}
