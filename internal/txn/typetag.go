package txn

import (
	"errors"
	"fmt"
	"strings"

	"github.com/Ribbit-Nova/ribbit-wallet-connect-demo/internal/protocol/bcs"
)

var ErrInvalidTypeTag = errors.New("txn: invalid type tag")

// TagKind is the BCS variant index of a Move type tag.
type TagKind uint32

const (
	TagBool TagKind = iota
	TagU8
	TagU64
	TagU128
	TagAddress
	TagSigner
	TagVector
	TagStruct
	TagU16
	TagU32
	TagU256
)

const maxTypeTagDepth = 8

var primitiveTags = map[string]TagKind{
	"bool":    TagBool,
	"u8":      TagU8,
	"u16":     TagU16,
	"u32":     TagU32,
	"u64":     TagU64,
	"u128":    TagU128,
	"u256":    TagU256,
	"address": TagAddress,
	"signer":  TagSigner,
}

// TypeTag is a Move type used as a generic argument.
type TypeTag struct {
	Kind TagKind
	// Elem is set for vectors.
	Elem *TypeTag
	// Struct is set for structs.
	Struct *StructTag
}

type StructTag struct {
	Address  Address
	Module   string
	Name     string
	TypeArgs []TypeTag
}

// ParseTypeTag parses a Move type such as u64, vector<u8> or
// 0x1::coin::CoinStore<0x1::supra_coin::SupraCoin>.
func ParseTypeTag(raw string) (TypeTag, error) {
	p := &tagParser{src: raw}
	tag, err := p.parse(0)
	if err != nil {
		return TypeTag{}, err
	}
	p.skipSpace()
	if p.pos != len(p.src) {
		return TypeTag{}, p.fail("unexpected %q", p.src[p.pos:])
	}
	return tag, nil
}

// StructTypeTag parses raw and requires it to be a struct.
func StructTypeTag(raw string) (TypeTag, error) {
	tag, err := ParseTypeTag(raw)
	if err != nil {
		return TypeTag{}, err
	}
	if tag.Kind != TagStruct {
		return TypeTag{}, fmt.Errorf("%w: %q is not a struct", ErrInvalidTypeTag, raw)
	}
	return tag, nil
}

func (t TypeTag) String() string {
	switch t.Kind {
	case TagVector:
		if t.Elem == nil {
			return "vector<?>"
		}
		return "vector<" + t.Elem.String() + ">"
	case TagStruct:
		if t.Struct == nil {
			return "struct?"
		}
		return t.Struct.String()
	}
	for name, kind := range primitiveTags {
		if kind == t.Kind {
			return name
		}
	}
	return fmt.Sprintf("tag(%d)", t.Kind)
}

// String uses the short address form the way Move source does.
func (s StructTag) String() string {
	addr := strings.TrimLeft(strings.TrimPrefix(s.Address.String(), "0x"), "0")
	if addr == "" {
		addr = "0"
	}
	out := "0x" + addr + "::" + s.Module + "::" + s.Name
	if len(s.TypeArgs) == 0 {
		return out
	}
	args := make([]string, len(s.TypeArgs))
	for i, arg := range s.TypeArgs {
		args[i] = arg.String()
	}
	return out + "<" + strings.Join(args, ", ") + ">"
}

func (t TypeTag) Serialize(s *bcs.Serializer) error {
	s.VariantIndex(uint32(t.Kind))
	switch t.Kind {
	case TagVector:
		if t.Elem == nil {
			return fmt.Errorf("%w: vector without element type", ErrInvalidTypeTag)
		}
		return t.Elem.Serialize(s)
	case TagStruct:
		if t.Struct == nil {
			return fmt.Errorf("%w: struct tag without body", ErrInvalidTypeTag)
		}
		t.Struct.Address.Serialize(s)
		if err := s.Str(t.Struct.Module); err != nil {
			return err
		}
		if err := s.Str(t.Struct.Name); err != nil {
			return err
		}
		return serializeTypeTags(s, t.Struct.TypeArgs)
	default:
		if t.Kind > TagU256 {
			return fmt.Errorf("%w: unknown kind %d", ErrInvalidTypeTag, t.Kind)
		}
		return nil
	}
}

func serializeTypeTags(s *bcs.Serializer, tags []TypeTag) error {
	if err := s.SequenceLength(len(tags)); err != nil {
		return err
	}
	for _, tag := range tags {
		if err := tag.Serialize(s); err != nil {
			return err
		}
	}
	return nil
}

func decodeTypeTag(d *bcs.Deserializer, depth int) (TypeTag, error) {
	if depth > maxTypeTagDepth {
		return TypeTag{}, fmt.Errorf("%w: nested deeper than %d", ErrInvalidTypeTag, maxTypeTagDepth)
	}
	variant, err := d.VariantIndex()
	if err != nil {
		return TypeTag{}, err
	}
	tag := TypeTag{Kind: TagKind(variant)}
	switch tag.Kind {
	case TagVector:
		elem, err := decodeTypeTag(d, depth+1)
		if err != nil {
			return TypeTag{}, err
		}
		tag.Elem = &elem
	case TagStruct:
		st := &StructTag{}
		if st.Address, err = decodeAddress(d); err != nil {
			return TypeTag{}, err
		}
		if st.Module, err = d.Str(); err != nil {
			return TypeTag{}, err
		}
		if st.Name, err = d.Str(); err != nil {
			return TypeTag{}, err
		}
		if st.TypeArgs, err = decodeTypeTags(d, depth+1); err != nil {
			return TypeTag{}, err
		}
		tag.Struct = st
	default:
		if tag.Kind > TagU256 {
			return TypeTag{}, fmt.Errorf("%w: unknown variant %d", ErrInvalidTypeTag, variant)
		}
	}
	return tag, nil
}

func decodeTypeTags(d *bcs.Deserializer, depth int) ([]TypeTag, error) {
	n, err := d.SequenceLength()
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, nil
	}
	out := make([]TypeTag, 0, n)
	for i := 0; i < n; i++ {
		tag, err := decodeTypeTag(d, depth)
		if err != nil {
			return nil, err
		}
		out = append(out, tag)
	}
	return out, nil
}

type tagParser struct {
	src string
	pos int
}

func (p *tagParser) fail(format string, args ...any) error {
	return fmt.Errorf("%w: %q at %d: %s", ErrInvalidTypeTag, p.src, p.pos, fmt.Sprintf(format, args...))
}

func (p *tagParser) skipSpace() {
	for p.pos < len(p.src) && (p.src[p.pos] == ' ' || p.src[p.pos] == '\t') {
		p.pos++
	}
}

func (p *tagParser) consume(tok string) bool {
	p.skipSpace()
	if strings.HasPrefix(p.src[p.pos:], tok) {
		p.pos += len(tok)
		return true
	}
	return false
}

func (p *tagParser) ident() (string, error) {
	p.skipSpace()
	start := p.pos
	for p.pos < len(p.src) {
		c := p.src[p.pos]
		isAlpha := c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
		isDigit := c >= '0' && c <= '9'
		if !isAlpha && !(isDigit && p.pos > start) {
			break
		}
		p.pos++
	}
	if p.pos == start {
		return "", p.fail("expected identifier")
	}
	return p.src[start:p.pos], nil
}

func (p *tagParser) parse(depth int) (TypeTag, error) {
	if depth > maxTypeTagDepth {
		return TypeTag{}, p.fail("nested deeper than %d", maxTypeTagDepth)
	}
	p.skipSpace()
	if strings.HasPrefix(p.src[p.pos:], "0x") || strings.HasPrefix(p.src[p.pos:], "0X") {
		return p.parseStruct(depth)
	}
	name, err := p.ident()
	if err != nil {
		return TypeTag{}, err
	}
	if name == "vector" {
		if !p.consume("<") {
			return TypeTag{}, p.fail("vector needs an element type")
		}
		elem, err := p.parse(depth + 1)
		if err != nil {
			return TypeTag{}, err
		}
		if !p.consume(">") {
			return TypeTag{}, p.fail("unclosed vector")
		}
		return TypeTag{Kind: TagVector, Elem: &elem}, nil
	}
	kind, ok := primitiveTags[name]
	if !ok {
		return TypeTag{}, p.fail("unknown type %q", name)
	}
	return TypeTag{Kind: kind}, nil
}

func (p *tagParser) parseStruct(depth int) (TypeTag, error) {
	start := p.pos
	end := strings.Index(p.src[start:], "::")
	if end < 0 {
		return TypeTag{}, p.fail("struct needs address::module::name")
	}
	addr, err := ParseAddress(p.src[start : start+end])
	if err != nil {
		return TypeTag{}, p.fail("%v", err)
	}
	p.pos = start + end + 2

	module, err := p.ident()
	if err != nil {
		return TypeTag{}, err
	}
	if !p.consume("::") {
		return TypeTag{}, p.fail("struct needs address::module::name")
	}
	name, err := p.ident()
	if err != nil {
		return TypeTag{}, err
	}

	st := &StructTag{Address: addr, Module: module, Name: name}
	if p.consume("<") {
		for {
			arg, err := p.parse(depth + 1)
			if err != nil {
				return TypeTag{}, err
			}
			st.TypeArgs = append(st.TypeArgs, arg)
			if p.consume(",") {
				continue
			}
			if p.consume(">") {
				break
			}
			return TypeTag{}, p.fail("expected , or > in type arguments")
		}
	}
	return TypeTag{Kind: TagStruct, Struct: st}, nil
}
