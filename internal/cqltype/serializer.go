package cqltype

import (
	"encoding/hex"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/datastax/go-cassandra-native-protocol/datacodec"
	"github.com/datastax/go-cassandra-native-protocol/primitive"
	"github.com/google/uuid"
)

// DefaultProtocolVersion is the native protocol version used for value encoding.
const DefaultProtocolVersion = primitive.ProtocolVersion4

// Serializer encodes bound Go values into their CQL wire form.
type Serializer struct {
	Version primitive.ProtocolVersion
}

// NewSerializer returns a serializer for the given protocol version.
// A zero version selects DefaultProtocolVersion.
func NewSerializer(version primitive.ProtocolVersion) *Serializer {
	if version == 0 {
		version = DefaultProtocolVersion
	}
	return &Serializer{Version: version}
}

// Serialize encodes v as a value of type t. A value whose Go type cannot be
// converted to t yields an error.
func (s *Serializer) Serialize(t TypeInfo, v any) ([]byte, error) {
	dt, err := t.DataType()
	if err != nil {
		return nil, err
	}
	codec, err := datacodec.NewCodec(dt)
	if err != nil {
		return nil, fmt.Errorf("cqltype: no codec for %s: %w", t, err)
	}
	version := s.Version
	if version == 0 {
		version = DefaultProtocolVersion
	}
	data, err := codec.Encode(v, version)
	if err != nil {
		return nil, fmt.Errorf("cqltype: cannot encode %T as %s: %w", v, t, err)
	}
	return data, nil
}

// ParseLiteral converts a textual value into a Go value the Serializer
// accepts for the primitive type t. Used by tooling.
func ParseLiteral(t TypeInfo, text string) (any, error) {
	switch t.Code {
	case primitive.DataTypeCodeBoolean:
		return strconv.ParseBool(text)
	case primitive.DataTypeCodeTinyint:
		v, err := strconv.ParseInt(text, 10, 8)
		return int8(v), err
	case primitive.DataTypeCodeSmallint:
		v, err := strconv.ParseInt(text, 10, 16)
		return int16(v), err
	case primitive.DataTypeCodeInt:
		v, err := strconv.ParseInt(text, 10, 32)
		return int32(v), err
	case primitive.DataTypeCodeBigint:
		return strconv.ParseInt(text, 10, 64)
	case primitive.DataTypeCodeFloat:
		v, err := strconv.ParseFloat(text, 32)
		return float32(v), err
	case primitive.DataTypeCodeDouble:
		return strconv.ParseFloat(text, 64)
	case primitive.DataTypeCodeAscii, primitive.DataTypeCodeText, primitive.DataTypeCodeVarchar:
		return text, nil
	case primitive.DataTypeCodeBlob:
		return hex.DecodeString(strings.TrimPrefix(strings.ToLower(text), "0x"))
	case primitive.DataTypeCodeUuid, primitive.DataTypeCodeTimeuuid:
		u, err := uuid.Parse(text)
		if err != nil {
			return nil, err
		}
		return primitive.UUID(u), nil
	case primitive.DataTypeCodeInet:
		ip := net.ParseIP(text)
		if ip == nil {
			return nil, fmt.Errorf("cqltype: invalid inet %q", text)
		}
		return ip, nil
	case primitive.DataTypeCodeTimestamp:
		if ms, err := strconv.ParseInt(text, 10, 64); err == nil {
			return time.UnixMilli(ms).UTC(), nil
		}
		return time.Parse(time.RFC3339Nano, text)
	}
	return nil, fmt.Errorf("cqltype: cannot parse literal for %s", t)
}
