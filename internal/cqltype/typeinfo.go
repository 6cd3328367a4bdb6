// Package cqltype describes CQL column types for partition key routing.
//
// TypeInfo is a closed descriptor: a primitive.DataTypeCode plus the child
// types a collection, map, UDT or tuple carries. It converts to and from the
// datatype.DataType values found in prepared statement metadata so the rest
// of the driver can keep using the protocol library's representation.
package cqltype

import (
	"errors"
	"fmt"
	"strings"

	"github.com/datastax/go-cassandra-native-protocol/datatype"
	"github.com/datastax/go-cassandra-native-protocol/primitive"
)

// ErrUnsupportedDataType is returned by FromDataType for descriptors it cannot map.
var ErrUnsupportedDataType = errors.New("cqltype: unsupported data type")

// Field is a named UDT field.
type Field struct {
	Name string
	Type TypeInfo
}

// TypeInfo describes a CQL type.
//
// Only the members relevant to Code are set:
//   - list, set: Elem
//   - map: Key, Value
//   - udt: Keyspace, Name, Fields
//   - tuple: Tuple
//   - custom: CustomClass
type TypeInfo struct {
	Code primitive.DataTypeCode

	Elem  *TypeInfo
	Key   *TypeInfo
	Value *TypeInfo

	Keyspace string
	Name     string
	Fields   []Field

	Tuple []TypeInfo

	CustomClass string
}

// Primitive returns a descriptor for a type without children.
func Primitive(code primitive.DataTypeCode) TypeInfo {
	return TypeInfo{Code: code}
}

// Common primitive descriptors.
var (
	Ascii     = Primitive(primitive.DataTypeCodeAscii)
	Bigint    = Primitive(primitive.DataTypeCodeBigint)
	Blob      = Primitive(primitive.DataTypeCodeBlob)
	Boolean   = Primitive(primitive.DataTypeCodeBoolean)
	Counter   = Primitive(primitive.DataTypeCodeCounter)
	Date      = Primitive(primitive.DataTypeCodeDate)
	Decimal   = Primitive(primitive.DataTypeCodeDecimal)
	Double    = Primitive(primitive.DataTypeCodeDouble)
	Duration  = Primitive(primitive.DataTypeCodeDuration)
	Float     = Primitive(primitive.DataTypeCodeFloat)
	Inet      = Primitive(primitive.DataTypeCodeInet)
	Int       = Primitive(primitive.DataTypeCodeInt)
	Smallint  = Primitive(primitive.DataTypeCodeSmallint)
	Text      = Primitive(primitive.DataTypeCodeText)
	Time      = Primitive(primitive.DataTypeCodeTime)
	Timestamp = Primitive(primitive.DataTypeCodeTimestamp)
	Timeuuid  = Primitive(primitive.DataTypeCodeTimeuuid)
	Tinyint   = Primitive(primitive.DataTypeCodeTinyint)
	Uuid      = Primitive(primitive.DataTypeCodeUuid)
	Varchar   = Primitive(primitive.DataTypeCodeVarchar)
	Varint    = Primitive(primitive.DataTypeCodeVarint)
)

// List returns a list<elem> descriptor.
func List(elem TypeInfo) TypeInfo {
	return TypeInfo{Code: primitive.DataTypeCodeList, Elem: &elem}
}

// Set returns a set<elem> descriptor.
func Set(elem TypeInfo) TypeInfo {
	return TypeInfo{Code: primitive.DataTypeCodeSet, Elem: &elem}
}

// Map returns a map<key, value> descriptor.
func Map(key, value TypeInfo) TypeInfo {
	return TypeInfo{Code: primitive.DataTypeCodeMap, Key: &key, Value: &value}
}

// UDT returns a user defined type descriptor with fields in declaration order.
func UDT(keyspace, name string, fields ...Field) TypeInfo {
	return TypeInfo{Code: primitive.DataTypeCodeUdt, Keyspace: keyspace, Name: name, Fields: fields}
}

// Tuple returns a tuple descriptor.
func Tuple(elems ...TypeInfo) TypeInfo {
	return TypeInfo{Code: primitive.DataTypeCodeTuple, Tuple: elems}
}

// Custom returns a custom type descriptor.
func Custom(className string) TypeInfo {
	return TypeInfo{Code: primitive.DataTypeCodeCustom, CustomClass: className}
}

// String renders the type in CQL syntax.
func (t TypeInfo) String() string {
	switch t.Code {
	case primitive.DataTypeCodeList, primitive.DataTypeCodeSet:
		return fmt.Sprintf("%s<%s>", codeName(t.Code), childString(t.Elem))
	case primitive.DataTypeCodeMap:
		return fmt.Sprintf("map<%s, %s>", childString(t.Key), childString(t.Value))
	case primitive.DataTypeCodeUdt:
		if t.Keyspace == "" {
			return t.Name
		}
		return t.Keyspace + "." + t.Name
	case primitive.DataTypeCodeTuple:
		parts := make([]string, len(t.Tuple))
		for i, e := range t.Tuple {
			parts[i] = e.String()
		}
		return "tuple<" + strings.Join(parts, ", ") + ">"
	case primitive.DataTypeCodeCustom:
		return "'" + t.CustomClass + "'"
	default:
		return codeName(t.Code)
	}
}

func childString(t *TypeInfo) string {
	if t == nil {
		return "?"
	}
	return t.String()
}

// FromDataType converts a protocol library descriptor.
func FromDataType(dt datatype.DataType) (TypeInfo, error) {
	if dt == nil {
		return TypeInfo{}, fmt.Errorf("%w: nil", ErrUnsupportedDataType)
	}
	switch t := dt.(type) {
	case *datatype.List:
		elem, err := FromDataType(t.ElementType)
		if err != nil {
			return TypeInfo{}, err
		}
		return List(elem), nil
	case *datatype.Set:
		elem, err := FromDataType(t.ElementType)
		if err != nil {
			return TypeInfo{}, err
		}
		return Set(elem), nil
	case *datatype.Map:
		key, err := FromDataType(t.KeyType)
		if err != nil {
			return TypeInfo{}, err
		}
		value, err := FromDataType(t.ValueType)
		if err != nil {
			return TypeInfo{}, err
		}
		return Map(key, value), nil
	case *datatype.UserDefined:
		if len(t.FieldNames) != len(t.FieldTypes) {
			return TypeInfo{}, fmt.Errorf("%w: udt %s has %d names for %d types",
				ErrUnsupportedDataType, t.Name, len(t.FieldNames), len(t.FieldTypes))
		}
		fields := make([]Field, len(t.FieldTypes))
		for i, ft := range t.FieldTypes {
			fti, err := FromDataType(ft)
			if err != nil {
				return TypeInfo{}, err
			}
			fields[i] = Field{Name: t.FieldNames[i], Type: fti}
		}
		return UDT(t.Keyspace, t.Name, fields...), nil
	case *datatype.Tuple:
		elems := make([]TypeInfo, len(t.FieldTypes))
		for i, ft := range t.FieldTypes {
			e, err := FromDataType(ft)
			if err != nil {
				return TypeInfo{}, err
			}
			elems[i] = e
		}
		return Tuple(elems...), nil
	case *datatype.Custom:
		return Custom(t.ClassName), nil
	default:
		return Primitive(dt.Code()), nil
	}
}

// DataType converts the descriptor back to the protocol library's form.
func (t TypeInfo) DataType() (datatype.DataType, error) {
	switch t.Code {
	case primitive.DataTypeCodeList, primitive.DataTypeCodeSet:
		if t.Elem == nil {
			return nil, fmt.Errorf("%w: %s without element type", ErrUnsupportedDataType, codeName(t.Code))
		}
		elem, err := t.Elem.DataType()
		if err != nil {
			return nil, err
		}
		if t.Code == primitive.DataTypeCodeList {
			return datatype.NewList(elem), nil
		}
		return datatype.NewSet(elem), nil
	case primitive.DataTypeCodeMap:
		if t.Key == nil || t.Value == nil {
			return nil, fmt.Errorf("%w: map without key or value type", ErrUnsupportedDataType)
		}
		key, err := t.Key.DataType()
		if err != nil {
			return nil, err
		}
		value, err := t.Value.DataType()
		if err != nil {
			return nil, err
		}
		return datatype.NewMap(key, value), nil
	case primitive.DataTypeCodeUdt:
		names := make([]string, len(t.Fields))
		types := make([]datatype.DataType, len(t.Fields))
		for i, f := range t.Fields {
			ft, err := f.Type.DataType()
			if err != nil {
				return nil, err
			}
			names[i] = f.Name
			types[i] = ft
		}
		udt, err := datatype.NewUserDefined(t.Keyspace, t.Name, names, types)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrUnsupportedDataType, err)
		}
		return udt, nil
	case primitive.DataTypeCodeTuple:
		types := make([]datatype.DataType, len(t.Tuple))
		for i, e := range t.Tuple {
			et, err := e.DataType()
			if err != nil {
				return nil, err
			}
			types[i] = et
		}
		return datatype.NewTuple(types...), nil
	case primitive.DataTypeCodeCustom:
		return datatype.NewCustom(t.CustomClass), nil
	}
	if dt, ok := primitives[t.Code]; ok {
		return dt, nil
	}
	return nil, fmt.Errorf("%w: code 0x%04x", ErrUnsupportedDataType, uint16(t.Code))
}

var primitives = map[primitive.DataTypeCode]datatype.DataType{
	primitive.DataTypeCodeAscii:     datatype.Ascii,
	primitive.DataTypeCodeBigint:    datatype.Bigint,
	primitive.DataTypeCodeBlob:      datatype.Blob,
	primitive.DataTypeCodeBoolean:   datatype.Boolean,
	primitive.DataTypeCodeCounter:   datatype.Counter,
	primitive.DataTypeCodeDate:      datatype.Date,
	primitive.DataTypeCodeDecimal:   datatype.Decimal,
	primitive.DataTypeCodeDouble:    datatype.Double,
	primitive.DataTypeCodeDuration:  datatype.Duration,
	primitive.DataTypeCodeFloat:     datatype.Float,
	primitive.DataTypeCodeInet:      datatype.Inet,
	primitive.DataTypeCodeInt:       datatype.Int,
	primitive.DataTypeCodeSmallint:  datatype.Smallint,
	primitive.DataTypeCodeText:      datatype.Varchar,
	primitive.DataTypeCodeTime:      datatype.Time,
	primitive.DataTypeCodeTimestamp: datatype.Timestamp,
	primitive.DataTypeCodeTimeuuid:  datatype.Timeuuid,
	primitive.DataTypeCodeTinyint:   datatype.Tinyint,
	primitive.DataTypeCodeUuid:      datatype.Uuid,
	primitive.DataTypeCodeVarchar:   datatype.Varchar,
	primitive.DataTypeCodeVarint:    datatype.Varint,
}
