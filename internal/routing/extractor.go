package routing

import (
	"encoding/hex"
	"time"

	"github.com/dray-io/ybroute/internal/cqltype"
	"github.com/dray-io/ybroute/internal/logging"
	"github.com/dray-io/ybroute/internal/partition"
)

// Reasons a statement is not routable, as reported to Recorder.
const (
	ReasonEmptyRouting    = "empty_routing"
	ReasonMissingValue    = "missing_value"
	ReasonSerialize       = "serialize"
	ReasonEncode          = "encode"
	ReasonUnprepared      = "unprepared"
	ReasonNoRoutableChild = "no_routable_child"
)

// Serializer encodes a bound value as its CQL wire form.
// *cqltype.Serializer implements it.
type Serializer interface {
	Serialize(t cqltype.TypeInfo, v any) ([]byte, error)
}

// Recorder receives routing outcomes. It keeps this package independent of
// the metrics package.
type Recorder interface {
	RecordPlan(path string)
	RecordUnroutable(reason string)
	RecordBucketDuration(seconds float64)
}

// KeyExtractor computes the partition bucket of bound and batch statements.
// It holds no mutable state and is safe for concurrent use.
type KeyExtractor struct {
	serializer Serializer
	logger     *logging.Logger
	recorder   Recorder
}

// NewKeyExtractor returns an extractor. A nil serializer selects the
// protocol v4 cqltype serializer; a nil logger discards output.
func NewKeyExtractor(serializer Serializer, logger *logging.Logger, recorder Recorder) *KeyExtractor {
	if serializer == nil {
		serializer = cqltype.NewSerializer(cqltype.DefaultProtocolVersion)
	}
	if logger == nil {
		logger = logging.Discard()
	}
	return &KeyExtractor{serializer: serializer, logger: logger, recorder: recorder}
}

// routingKey is the outcome of a successful extraction: the bucket and the
// prepared statement whose table it belongs to.
type routingKey struct {
	bucket   partition.Bucket
	prepared *PreparedStatement
	// stmt is the bound statement the key came from.
	stmt *BoundStatement
}

// Bucket returns the partition bucket of stmt, or false when stmt is not
// routable. A batch yields the bucket of its first routable bound child.
func (e *KeyExtractor) Bucket(stmt Statement) (partition.Bucket, bool) {
	key, ok := e.extract(stmt)
	return key.bucket, ok
}

func (e *KeyExtractor) extract(stmt Statement) (routingKey, bool) {
	var (
		key    routingKey
		reason string
	)
	switch s := stmt.(type) {
	case *BoundStatement:
		key, reason = e.bound(s)
	case *BatchStatement:
		key, reason = e.batch(s)
	default:
		reason = ReasonUnprepared
	}
	if reason != "" {
		if e.recorder != nil {
			e.recorder.RecordUnroutable(reason)
		}
		return routingKey{}, false
	}
	return key, true
}

func (e *KeyExtractor) batch(b *BatchStatement) (routingKey, string) {
	for _, child := range b.Statements {
		bs, ok := child.(*BoundStatement)
		if !ok {
			continue
		}
		if key, reason := e.bound(bs); reason == "" {
			return key, ""
		}
	}
	return routingKey{}, ReasonNoRoutableChild
}

func (e *KeyExtractor) bound(s *BoundStatement) (routingKey, string) {
	if s == nil || s.Prepared == nil {
		return routingKey{}, ReasonUnprepared
	}
	spec := s.Prepared.Routing
	if len(spec) == 0 {
		return routingKey{}, ReasonEmptyRouting
	}

	var start time.Time
	if e.recorder != nil {
		start = time.Now()
	}

	var buf []byte
	for i, col := range spec {
		if col.Position < 0 || col.Position >= len(s.Values) {
			e.logger.Debugf("routing column has no bound value", map[string]any{
				"table":    s.Prepared.FullTableName(),
				"column":   i,
				"position": col.Position,
				"values":   len(s.Values),
			})
			return routingKey{}, ReasonMissingValue
		}
		raw, err := e.serializer.Serialize(col.Type, s.Values[col.Position])
		if err != nil {
			e.logger.Debugf("cannot serialize routing value", map[string]any{
				"table":    s.Prepared.FullTableName(),
				"position": col.Position,
				"type":     col.Type.String(),
				"error":    err.Error(),
			})
			return routingKey{}, ReasonSerialize
		}
		buf, err = partition.AppendCanonical(buf, col.Type, raw)
		if err != nil {
			e.logger.Debugf("cannot encode routing value", map[string]any{
				"table":    s.Prepared.FullTableName(),
				"position": col.Position,
				"type":     col.Type.String(),
				"error":    err.Error(),
			})
			return routingKey{}, ReasonEncode
		}
	}

	bucket := partition.BucketFor(buf)
	if e.logger.Enabled(logging.LevelDebug) {
		e.logger.Debugf("bytes to key", map[string]any{
			"table":  s.Prepared.FullTableName(),
			"bytes":  hex.EncodeToString(buf),
			"bucket": int(bucket),
		})
	}
	if e.recorder != nil {
		e.recorder.RecordBucketDuration(time.Since(start).Seconds())
	}
	return routingKey{bucket: bucket, prepared: s.Prepared, stmt: s}, ""
}

// ComputeBucket returns the bucket of stmt using serializer, without logging
// or metrics.
func ComputeBucket(stmt Statement, serializer Serializer) (partition.Bucket, bool) {
	return NewKeyExtractor(serializer, nil, nil).Bucket(stmt)
}

// ComputeToken returns the token the server reports from TOKEN() for the
// row stmt addresses.
func ComputeToken(stmt Statement, serializer Serializer) (int64, bool) {
	b, ok := ComputeBucket(stmt, serializer)
	if !ok {
		return 0, false
	}
	return partition.Token(b), true
}
