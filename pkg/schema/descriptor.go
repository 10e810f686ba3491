// Package schema describes message shapes for the wiremsg codec.
//
// A Catalog holds named Message and Enum descriptors. Each Message is an
// ordered list of Field descriptors carrying the field number, value kind,
// cardinality and, for enum and message kinds, a reference to another
// descriptor by name. Catalogs are built once, resolved, and then shared
// read-only between any number of goroutines.
//
// Catalogs can be assembled in code, loaded from .proto files, imported
// from compiled protobuf descriptors or extracted from tagged Go structs.
package schema

import (
	"fmt"
	"strings"

	"github.com/blockberries/wiremsg/internal/wire"
)

// Position represents a position in a schema source file.
type Position struct {
	Filename string
	Line     int
	Column   int
	Offset   int
}

func (p Position) String() string {
	if p.Filename == "" && p.Line == 0 {
		return "-"
	}
	return fmt.Sprintf("%s:%d:%d", p.Filename, p.Line, p.Column)
}

// FieldNumber identifies a field on the wire.
type FieldNumber int32

// Field number bounds. Numbers 19000-19999 are reserved by convention.
const (
	MinFieldNumber      FieldNumber = wire.MinFieldNumber
	MaxFieldNumber      FieldNumber = wire.MaxFieldNumber
	FirstReservedNumber FieldNumber = 19000
	LastReservedNumber  FieldNumber = 19999
)

// IsValid reports whether n fits the 29-bit field number space.
func (n FieldNumber) IsValid() bool {
	return n >= MinFieldNumber && n <= MaxFieldNumber
}

// Kind is the value kind of a field.
type Kind uint8

const (
	InvalidKind Kind = iota
	BoolKind
	Int32Kind
	Int64Kind
	Uint32Kind
	Uint64Kind
	Sint32Kind
	Sint64Kind
	Fixed32Kind
	Fixed64Kind
	Sfixed32Kind
	Sfixed64Kind
	FloatKind
	DoubleKind
	StringKind
	BytesKind
	EnumKind
	MessageKind

	kindCount
)

var kindNames = [kindCount]string{
	InvalidKind:  "invalid",
	BoolKind:     "bool",
	Int32Kind:    "int32",
	Int64Kind:    "int64",
	Uint32Kind:   "uint32",
	Uint64Kind:   "uint64",
	Sint32Kind:   "sint32",
	Sint64Kind:   "sint64",
	Fixed32Kind:  "fixed32",
	Fixed64Kind:  "fixed64",
	Sfixed32Kind: "sfixed32",
	Sfixed64Kind: "sfixed64",
	FloatKind:    "float",
	DoubleKind:   "double",
	StringKind:   "string",
	BytesKind:    "bytes",
	EnumKind:     "enum",
	MessageKind:  "message",
}

func (k Kind) String() string {
	if k < kindCount {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", k)
}

// ScalarKind returns the kind named by a scalar type keyword such as "int32"
// or "string". Enum and message kinds are not scalar keywords.
func ScalarKind(name string) (Kind, bool) {
	for k := BoolKind; k <= BytesKind; k++ {
		if kindNames[k] == name {
			return k, true
		}
	}
	return InvalidKind, false
}

// IsValid reports whether k is a defined kind.
func (k Kind) IsValid() bool {
	return k > InvalidKind && k < kindCount
}

// WireType returns the wire type used for a single value of this kind.
func (k Kind) WireType() wire.Type {
	switch k {
	case Fixed32Kind, Sfixed32Kind, FloatKind:
		return wire.Fixed32
	case Fixed64Kind, Sfixed64Kind, DoubleKind:
		return wire.Fixed64
	case StringKind, BytesKind, MessageKind:
		return wire.Bytes
	default:
		return wire.Varint
	}
}

// IsNumeric reports whether values of this kind can use packed encoding.
func (k Kind) IsNumeric() bool {
	return k.IsValid() && k.WireType() != wire.Bytes
}

// IsSigned reports whether the kind holds signed integers.
func (k Kind) IsSigned() bool {
	switch k {
	case Int32Kind, Int64Kind, Sint32Kind, Sint64Kind, Sfixed32Kind, Sfixed64Kind, EnumKind:
		return true
	}
	return false
}

// IsValidMapKey reports whether k may key a map: integral kinds, bool and string.
func (k Kind) IsValidMapKey() bool {
	switch k {
	case FloatKind, DoubleKind, BytesKind, EnumKind, MessageKind, InvalidKind:
		return false
	}
	return k.IsValid()
}

// Cardinality describes how many values a field holds.
type Cardinality uint8

const (
	Singular Cardinality = iota
	Repeated
	Map
)

func (c Cardinality) String() string {
	switch c {
	case Singular:
		return "singular"
	case Repeated:
		return "repeated"
	case Map:
		return "map"
	default:
		return fmt.Sprintf("Cardinality(%d)", c)
	}
}

// Field describes one field of a message.
//
// For map fields Kind and TypeName describe the map value and MapKey the key.
// TypeName names the referenced enum or message for EnumKind and MessageKind.
// It is resolved relative to the enclosing message the way protobuf resolves
// type references; a leading dot makes it fully qualified.
type Field struct {
	Name        string
	JSONName    string
	Number      FieldNumber
	Kind        Kind
	Cardinality Cardinality
	TypeName    string
	MapKey      Kind
	Packed      bool
	Oneof       string
	Deprecated  bool
	Position    Position

	parent  *Message
	message *Message
	enum    *Enum
	entry   *Message
	codec   *kindCodec
}

// FullName returns the message-qualified field name.
func (f *Field) FullName() string {
	if f.parent == nil {
		return f.Name
	}
	return f.parent.Name + "." + f.Name
}

// Parent returns the message declaring f.
func (f *Field) Parent() *Message { return f.parent }

// Message returns the resolved message type of a MessageKind field, or nil.
func (f *Field) Message() *Message { return f.message }

// Enum returns the resolved enum type of an EnumKind field, or nil.
func (f *Field) Enum() *Enum { return f.enum }

// MapEntry returns the synthetic two-field entry message of a map field:
// field 1 is the key and field 2 the value. It is nil for other fields.
func (f *Field) MapEntry() *Message { return f.entry }

// IsMap reports whether f is a map field.
func (f *Field) IsMap() bool { return f.Cardinality == Map }

// IsList reports whether f is a repeated, non-map field.
func (f *Field) IsList() bool { return f.Cardinality == Repeated }

// HasPresence reports whether f tracks explicit presence. Only singular
// message fields do; scalars use their zero value to mean absent.
func (f *Field) HasPresence() bool {
	return f.Cardinality == Singular && f.Kind == MessageKind
}

// IsPackable reports whether f is a repeated numeric field.
func (f *Field) IsPackable() bool {
	return f.Cardinality == Repeated && f.Kind.IsNumeric()
}

// WireType returns the wire type written in the tag of each unpacked entry.
// It is fixed for the life of the field.
func (f *Field) WireType() wire.Type {
	if f.Cardinality == Map {
		return wire.Bytes
	}
	return f.Kind.WireType()
}

// TypeString renders the field type the way it is written in a .proto file.
func (f *Field) TypeString() string {
	elem := f.elemTypeString()
	switch f.Cardinality {
	case Repeated:
		return "repeated " + elem
	case Map:
		return "map<" + f.MapKey.String() + ", " + elem + ">"
	default:
		return elem
	}
}

func (f *Field) elemTypeString() string {
	switch f.Kind {
	case EnumKind, MessageKind, InvalidKind:
		switch {
		case f.message != nil:
			return f.message.Name
		case f.enum != nil:
			return f.enum.Name
		default:
			return f.TypeName
		}
	default:
		return f.Kind.String()
	}
}

// ReservedRange is an inclusive range of reserved field numbers.
type ReservedRange struct {
	Start FieldNumber
	End   FieldNumber
}

// Contains reports whether n lies in the range.
func (r ReservedRange) Contains(n FieldNumber) bool {
	return n >= r.Start && n <= r.End
}

// Message describes one message type. Name is fully qualified
// (for example "storage.v1.Volume"); Package and File record where it was
// declared when it came from a schema file.
type Message struct {
	Name          string
	Package       string
	File          string
	Fields        []*Field
	Reserved      []ReservedRange
	ReservedNames []string
	Deprecated    bool
	Position      Position

	catalog  *Catalog
	mapEntry bool
	byNumber map[FieldNumber]*Field
	byName   map[string]*Field
	oneofs   []string
}

// ShortName returns the last component of the message name.
func (m *Message) ShortName() string {
	if i := strings.LastIndexByte(m.Name, '.'); i >= 0 {
		return m.Name[i+1:]
	}
	return m.Name
}

// Catalog returns the catalog m was resolved in.
func (m *Message) Catalog() *Catalog { return m.catalog }

// IsMapEntry reports whether m is the synthetic entry of a map field.
func (m *Message) IsMapEntry() bool { return m.mapEntry }

// Field returns the field with the given number, or nil.
func (m *Message) Field(n FieldNumber) *Field {
	if m.byNumber != nil {
		return m.byNumber[n]
	}
	for _, f := range m.Fields {
		if f.Number == n {
			return f
		}
	}
	return nil
}

// FieldByName returns the field with the given name or JSON name, or nil.
func (m *Message) FieldByName(name string) *Field {
	if m.byName != nil {
		return m.byName[name]
	}
	for _, f := range m.Fields {
		if f.Name == name || (f.JSONName != "" && f.JSONName == name) {
			return f
		}
	}
	return nil
}

// Oneofs returns the oneof group names in declaration order.
func (m *Message) Oneofs() []string { return m.oneofs }

// OneofFields returns the members of the named oneof group.
func (m *Message) OneofFields(name string) []*Field {
	var out []*Field
	for _, f := range m.Fields {
		if f.Oneof == name {
			out = append(out, f)
		}
	}
	return out
}

// IsReserved reports whether n falls in a reserved range.
func (m *Message) IsReserved(n FieldNumber) bool {
	for _, r := range m.Reserved {
		if r.Contains(n) {
			return true
		}
	}
	return false
}

// Enum describes an enum type. Enums are open: unknown numbers are carried
// through decoding unchanged.
type Enum struct {
	Name     string
	Package  string
	File     string
	Values   []*EnumValue
	Position Position

	byNumber map[int32]*EnumValue
	byName   map[string]*EnumValue
}

// EnumValue is one named enum constant.
type EnumValue struct {
	Name       string
	Number     int32
	Deprecated bool
	Position   Position
}

// ShortName returns the last component of the enum name.
func (e *Enum) ShortName() string {
	if i := strings.LastIndexByte(e.Name, '.'); i >= 0 {
		return e.Name[i+1:]
	}
	return e.Name
}

// ValueName returns the name of the first value declared with number n,
// or "" if n is not a known value.
func (e *Enum) ValueName(n int32) string {
	if v := e.ByNumber(n); v != nil {
		return v.Name
	}
	return ""
}

// ByNumber returns the value with number n, or nil.
func (e *Enum) ByNumber(n int32) *EnumValue {
	if e.byNumber != nil {
		return e.byNumber[n]
	}
	for _, v := range e.Values {
		if v.Number == n {
			return v
		}
	}
	return nil
}

// ByName returns the value with the given name, or nil.
func (e *Enum) ByName(name string) *EnumValue {
	if e.byName != nil {
		return e.byName[name]
	}
	for _, v := range e.Values {
		if v.Name == name {
			return v
		}
	}
	return nil
}
