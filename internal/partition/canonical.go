package partition

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/datastax/go-cassandra-native-protocol/primitive"

	"github.com/dray-io/ybroute/internal/cqltype"
)

// Errors returned while building a canonical key.
var (
	// ErrUnsupportedRoutingType is returned for column types the server cannot
	// hash: counter, custom, decimal, tuple and varint.
	ErrUnsupportedRoutingType = errors.New("partition: type not supported in a partition key column")

	// ErrUnknownRoutingType is returned for an unrecognized type code.
	ErrUnknownRoutingType = errors.New("partition: unknown type for a partition key column")

	// ErrMalformedValue is returned when serialized bytes do not match the
	// framing their declared type requires.
	ErrMalformedValue = errors.New("partition: malformed serialized value")
)

var (
	canonicalFloatNaN  = [4]byte{0x7f, 0xc0, 0x00, 0x00}
	canonicalDoubleNaN = [8]byte{0x7f, 0xf8, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00}
)

// KeyPart is one serialized hash key column.
type KeyPart struct {
	Type  cqltype.TypeInfo
	Value []byte
}

// EncodeKey concatenates the canonical encodings of parts in order.
func EncodeKey(parts ...KeyPart) ([]byte, error) {
	var buf []byte
	for i, p := range parts {
		var err error
		buf, err = AppendCanonical(buf, p.Type, p.Value)
		if err != nil {
			return nil, fmt.Errorf("hash key column %d (%s): %w", i, p.Type, err)
		}
	}
	return buf, nil
}

// BucketForKey encodes parts and returns their bucket.
func BucketForKey(parts ...KeyPart) (Bucket, error) {
	buf, err := EncodeKey(parts...)
	if err != nil {
		return 0, err
	}
	return BucketFor(buf), nil
}

// AppendCanonical appends the canonical form of the serialized value raw of
// type t to dst.
//
// Most types are copied unchanged. NaN floats and doubles collapse to a single
// bit pattern, timestamps are rescaled from milliseconds to microseconds, and
// collections, maps and UDTs are flattened to the canonical forms of their
// elements with the length framing removed.
func AppendCanonical(dst []byte, t cqltype.TypeInfo, raw []byte) ([]byte, error) {
	switch t.Code {
	case primitive.DataTypeCodeBoolean,
		primitive.DataTypeCodeTinyint,
		primitive.DataTypeCodeSmallint,
		primitive.DataTypeCodeInt,
		primitive.DataTypeCodeBigint,
		primitive.DataTypeCodeAscii,
		primitive.DataTypeCodeText,
		primitive.DataTypeCodeVarchar,
		primitive.DataTypeCodeBlob,
		primitive.DataTypeCodeInet,
		primitive.DataTypeCodeUuid,
		primitive.DataTypeCodeTimeuuid,
		primitive.DataTypeCodeDate,
		primitive.DataTypeCodeTime:
		return append(dst, raw...), nil

	case primitive.DataTypeCodeFloat:
		if len(raw) != 4 {
			return nil, fmt.Errorf("%w: float of %d bytes", ErrMalformedValue, len(raw))
		}
		if math.IsNaN(float64(math.Float32frombits(binary.BigEndian.Uint32(raw)))) {
			return append(dst, canonicalFloatNaN[:]...), nil
		}
		return append(dst, raw...), nil

	case primitive.DataTypeCodeDouble:
		if len(raw) != 8 {
			return nil, fmt.Errorf("%w: double of %d bytes", ErrMalformedValue, len(raw))
		}
		if math.IsNaN(math.Float64frombits(binary.BigEndian.Uint64(raw))) {
			return append(dst, canonicalDoubleNaN[:]...), nil
		}
		return append(dst, raw...), nil

	case primitive.DataTypeCodeTimestamp:
		if len(raw) != 8 {
			return nil, fmt.Errorf("%w: timestamp of %d bytes", ErrMalformedValue, len(raw))
		}
		millis := int64(binary.BigEndian.Uint64(raw))
		return binary.BigEndian.AppendUint64(dst, uint64(millis*1000)), nil

	case primitive.DataTypeCodeList, primitive.DataTypeCodeSet:
		if t.Elem == nil {
			return nil, fmt.Errorf("%w: %s without element type", ErrMalformedValue, t)
		}
		r := frameReader{buf: raw}
		n, err := r.count()
		if err != nil {
			return nil, err
		}
		for i := 0; i < n; i++ {
			if dst, err = r.appendValue(dst, *t.Elem); err != nil {
				return nil, err
			}
		}
		return dst, r.done()

	case primitive.DataTypeCodeMap:
		if t.Key == nil || t.Value == nil {
			return nil, fmt.Errorf("%w: %s without key or value type", ErrMalformedValue, t)
		}
		r := frameReader{buf: raw}
		n, err := r.count()
		if err != nil {
			return nil, err
		}
		for i := 0; i < n; i++ {
			if dst, err = r.appendValue(dst, *t.Key); err != nil {
				return nil, err
			}
			if dst, err = r.appendValue(dst, *t.Value); err != nil {
				return nil, err
			}
		}
		return dst, r.done()

	case primitive.DataTypeCodeUdt:
		// No count prefix: fields follow in declaration order until the value
		// ends. Trailing fields may be omitted by the serializer.
		r := frameReader{buf: raw}
		var err error
		for i := 0; !r.empty(); i++ {
			if i >= len(t.Fields) {
				return nil, fmt.Errorf("%w: %s has more than %d fields", ErrMalformedValue, t, len(t.Fields))
			}
			if dst, err = r.appendValue(dst, t.Fields[i].Type); err != nil {
				return nil, err
			}
		}
		return dst, nil

	case primitive.DataTypeCodeCounter,
		primitive.DataTypeCodeCustom,
		primitive.DataTypeCodeDecimal,
		primitive.DataTypeCodeTuple,
		primitive.DataTypeCodeVarint:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedRoutingType, t)

	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownRoutingType, t)
	}
}

// frameReader walks the [int32 length][bytes] framing of collection values.
type frameReader struct {
	buf []byte
	pos int
}

func (r *frameReader) empty() bool {
	return r.pos >= len(r.buf)
}

func (r *frameReader) readInt() (int32, error) {
	if len(r.buf)-r.pos < 4 {
		return 0, fmt.Errorf("%w: truncated length at offset %d", ErrMalformedValue, r.pos)
	}
	v := int32(binary.BigEndian.Uint32(r.buf[r.pos:]))
	r.pos += 4
	return v, nil
}

func (r *frameReader) count() (int, error) {
	n, err := r.readInt()
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, fmt.Errorf("%w: negative element count %d", ErrMalformedValue, n)
	}
	return int(n), nil
}

// appendValue reads one length-prefixed element and appends its canonical
// form. A null element (negative length) contributes nothing.
func (r *frameReader) appendValue(dst []byte, t cqltype.TypeInfo) ([]byte, error) {
	size, err := r.readInt()
	if err != nil {
		return nil, err
	}
	if size < 0 {
		return dst, nil
	}
	if int(size) > len(r.buf)-r.pos {
		return nil, fmt.Errorf("%w: element of %d bytes exceeds remaining %d", ErrMalformedValue, size, len(r.buf)-r.pos)
	}
	elem := r.buf[r.pos : r.pos+int(size)]
	r.pos += int(size)
	return AppendCanonical(dst, t, elem)
}

func (r *frameReader) done() error {
	if !r.empty() {
		return fmt.Errorf("%w: %d trailing bytes", ErrMalformedValue, len(r.buf)-r.pos)
	}
	return nil
}
