package cqltype

import (
	"fmt"
	"strings"

	"github.com/datastax/go-cassandra-native-protocol/primitive"
)

var codeNames = map[primitive.DataTypeCode]string{
	primitive.DataTypeCodeCustom:    "custom",
	primitive.DataTypeCodeAscii:     "ascii",
	primitive.DataTypeCodeBigint:    "bigint",
	primitive.DataTypeCodeBlob:      "blob",
	primitive.DataTypeCodeBoolean:   "boolean",
	primitive.DataTypeCodeCounter:   "counter",
	primitive.DataTypeCodeDecimal:   "decimal",
	primitive.DataTypeCodeDouble:    "double",
	primitive.DataTypeCodeFloat:     "float",
	primitive.DataTypeCodeInt:       "int",
	primitive.DataTypeCodeText:      "text",
	primitive.DataTypeCodeTimestamp: "timestamp",
	primitive.DataTypeCodeUuid:      "uuid",
	primitive.DataTypeCodeVarchar:   "varchar",
	primitive.DataTypeCodeVarint:    "varint",
	primitive.DataTypeCodeTimeuuid:  "timeuuid",
	primitive.DataTypeCodeInet:      "inet",
	primitive.DataTypeCodeDate:      "date",
	primitive.DataTypeCodeTime:      "time",
	primitive.DataTypeCodeSmallint:  "smallint",
	primitive.DataTypeCodeTinyint:   "tinyint",
	primitive.DataTypeCodeDuration:  "duration",
	primitive.DataTypeCodeList:      "list",
	primitive.DataTypeCodeMap:       "map",
	primitive.DataTypeCodeSet:       "set",
	primitive.DataTypeCodeUdt:       "udt",
	primitive.DataTypeCodeTuple:     "tuple",
}

var namedTypes = func() map[string]TypeInfo {
	m := make(map[string]TypeInfo, len(codeNames))
	for code, name := range codeNames {
		switch code {
		case primitive.DataTypeCodeCustom, primitive.DataTypeCodeList, primitive.DataTypeCodeMap,
			primitive.DataTypeCodeSet, primitive.DataTypeCodeUdt, primitive.DataTypeCodeTuple:
			continue
		}
		m[name] = Primitive(code)
	}
	return m
}()

func codeName(code primitive.DataTypeCode) string {
	if name, ok := codeNames[code]; ok {
		return name
	}
	return fmt.Sprintf("0x%04x", uint16(code))
}

// ParseTypeName parses a CQL type expression such as "int", "list<text>"
// or "map<text, frozen<set<int>>>". UDTs and custom types cannot be named.
func ParseTypeName(s string) (TypeInfo, error) {
	p := &typeParser{src: s}
	t, err := p.parse()
	if err != nil {
		return TypeInfo{}, err
	}
	p.skipSpace()
	if p.pos != len(p.src) {
		return TypeInfo{}, fmt.Errorf("cqltype: unexpected %q in %q", p.src[p.pos:], s)
	}
	return t, nil
}

type typeParser struct {
	src string
	pos int
}

func (p *typeParser) skipSpace() {
	for p.pos < len(p.src) && p.src[p.pos] == ' ' {
		p.pos++
	}
}

func (p *typeParser) ident() string {
	p.skipSpace()
	start := p.pos
	for p.pos < len(p.src) {
		c := p.src[p.pos]
		if c == '<' || c == '>' || c == ',' || c == ' ' {
			break
		}
		p.pos++
	}
	return strings.ToLower(p.src[start:p.pos])
}

func (p *typeParser) expect(c byte) error {
	p.skipSpace()
	if p.pos >= len(p.src) || p.src[p.pos] != c {
		return fmt.Errorf("cqltype: expected %q at offset %d in %q", c, p.pos, p.src)
	}
	p.pos++
	return nil
}

func (p *typeParser) params(n int) ([]TypeInfo, error) {
	if err := p.expect('<'); err != nil {
		return nil, err
	}
	var out []TypeInfo
	for {
		t, err := p.parse()
		if err != nil {
			return nil, err
		}
		out = append(out, t)
		p.skipSpace()
		if p.pos < len(p.src) && p.src[p.pos] == ',' {
			p.pos++
			continue
		}
		break
	}
	if err := p.expect('>'); err != nil {
		return nil, err
	}
	if n > 0 && len(out) != n {
		return nil, fmt.Errorf("cqltype: expected %d type parameters in %q, got %d", n, p.src, len(out))
	}
	return out, nil
}

func (p *typeParser) parse() (TypeInfo, error) {
	name := p.ident()
	switch name {
	case "":
		return TypeInfo{}, fmt.Errorf("cqltype: missing type name in %q", p.src)
	case "frozen":
		ps, err := p.params(1)
		if err != nil {
			return TypeInfo{}, err
		}
		return ps[0], nil
	case "list", "set":
		ps, err := p.params(1)
		if err != nil {
			return TypeInfo{}, err
		}
		if name == "list" {
			return List(ps[0]), nil
		}
		return Set(ps[0]), nil
	case "map":
		ps, err := p.params(2)
		if err != nil {
			return TypeInfo{}, err
		}
		return Map(ps[0], ps[1]), nil
	case "tuple":
		ps, err := p.params(0)
		if err != nil {
			return TypeInfo{}, err
		}
		return Tuple(ps...), nil
	}
	t, ok := namedTypes[name]
	if !ok {
		return TypeInfo{}, fmt.Errorf("cqltype: unknown type %q", name)
	}
	return t, nil
}
