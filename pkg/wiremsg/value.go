package wiremsg

import (
	"bytes"
	"fmt"
	"math"
	"strconv"

	"github.com/blockberries/wiremsg/pkg/schema"
)

// Value holds one field value: a scalar, a string or bytes payload, a
// nested message, or a whole list or map.
//
// Numeric kinds are stored as raw uint64 bits in the form described by
// schema.NormalizeScalar. Accessors panic when called on the wrong kind, the
// same contract protoreflect.Value uses.
type Value struct {
	kind schema.Kind
	num  uint64
	str  string
	b    []byte
	msg  *Message
	list *List
	mp   *Map
}

// ValueOfBool returns a bool value.
func ValueOfBool(v bool) Value {
	if v {
		return Value{kind: schema.BoolKind, num: 1}
	}
	return Value{kind: schema.BoolKind}
}

// ValueOfInt32 returns an int32 value. Set accepts it for any signed
// integer or enum field.
func ValueOfInt32(v int32) Value { return Value{kind: schema.Int32Kind, num: uint64(int64(v))} }

// ValueOfInt64 returns an int64 value. Set accepts it for any signed
// integer or enum field.
func ValueOfInt64(v int64) Value { return Value{kind: schema.Int64Kind, num: uint64(v)} }

// ValueOfUint32 returns a uint32 value. Set accepts it for any unsigned field.
func ValueOfUint32(v uint32) Value { return Value{kind: schema.Uint32Kind, num: uint64(v)} }

// ValueOfUint64 returns a uint64 value. Set accepts it for any unsigned field.
func ValueOfUint64(v uint64) Value { return Value{kind: schema.Uint64Kind, num: v} }

// ValueOfFloat32 returns a float value, kept as its IEEE 754 bits.
func ValueOfFloat32(v float32) Value {
	return Value{kind: schema.FloatKind, num: uint64(math.Float32bits(v))}
}

// ValueOfFloat64 returns a double value, kept as its IEEE 754 bits.
func ValueOfFloat64(v float64) Value {
	return Value{kind: schema.DoubleKind, num: math.Float64bits(v)}
}

// ValueOfString returns a string value.
func ValueOfString(v string) Value { return Value{kind: schema.StringKind, str: v} }

// ValueOfBytes returns a bytes value. The slice is not copied.
func ValueOfBytes(v []byte) Value { return Value{kind: schema.BytesKind, b: v} }

// ValueOfEnum holds an enum number. Numbers outside the enum's declared
// values are valid.
func ValueOfEnum(v int32) Value { return Value{kind: schema.EnumKind, num: uint64(int64(v))} }

// ValueOfMessage wraps a message. A nil message means absent.
func ValueOfMessage(m *Message) Value { return Value{kind: schema.MessageKind, msg: m} }

// ValueOfList wraps a list, as returned by Message.Get for repeated fields.
func ValueOfList(l *List) Value {
	v := Value{list: l}
	if l != nil && l.field != nil {
		v.kind = l.field.Kind
	}
	return v
}

// ValueOfMap wraps a map, as returned by Message.Get for map fields.
func ValueOfMap(m *Map) Value {
	v := Value{mp: m}
	if m != nil && m.field != nil {
		v.kind = m.field.Kind
	}
	return v
}

// ValueOfRaw builds a numeric value of kind k from raw bits, normalising
// them first.
func ValueOfRaw(k schema.Kind, raw uint64) Value {
	return Value{kind: k, num: schema.NormalizeScalar(k, raw)}
}

// zeroValue is the default value of a singular field of kind k.
func zeroValue(k schema.Kind) Value {
	return Value{kind: k}
}

// Kind returns the value kind. For lists and maps it is the element kind.
func (v Value) Kind() schema.Kind { return v.kind }

// IsValid reports whether v holds anything at all.
func (v Value) IsValid() bool { return v.kind != schema.InvalidKind || v.list != nil || v.mp != nil }

// IsList reports whether v wraps a List.
func (v Value) IsList() bool { return v.list != nil }

// IsMap reports whether v wraps a Map.
func (v Value) IsMap() bool { return v.mp != nil }

// Raw returns the raw bits of a numeric value.
func (v Value) Raw() uint64 {
	v.mustNumeric()
	return v.num
}

func (v Value) mustNumeric() {
	if !v.kind.IsNumeric() || v.list != nil || v.mp != nil {
		panic(fmt.Sprintf("wiremsg: value of kind %v is not numeric", v.kind))
	}
}

func (v Value) mustKind(kinds ...schema.Kind) {
	if v.list == nil && v.mp == nil {
		for _, k := range kinds {
			if v.kind == k {
				return
			}
		}
	}
	panic(fmt.Sprintf("wiremsg: invalid type: %v is not %v", v.describe(), kinds))
}

func (v Value) describe() string {
	switch {
	case v.list != nil:
		return "list of " + v.kind.String()
	case v.mp != nil:
		return "map of " + v.kind.String()
	default:
		return v.kind.String()
	}
}

// Bool returns v as a bool.
func (v Value) Bool() bool {
	v.mustKind(schema.BoolKind)
	return v.num != 0
}

// Int returns v as an int64. It accepts every signed integer kind and enums.
func (v Value) Int() int64 {
	v.mustNumeric()
	if !v.kind.IsSigned() {
		panic(fmt.Sprintf("wiremsg: invalid type: %v is not signed", v.kind))
	}
	return int64(v.num)
}

// Uint returns v as a uint64. It accepts every unsigned integer kind.
func (v Value) Uint() uint64 {
	v.mustKind(schema.Uint32Kind, schema.Uint64Kind, schema.Fixed32Kind, schema.Fixed64Kind)
	return v.num
}

// Float returns v as a float64. It accepts float and double.
func (v Value) Float() float64 {
	v.mustKind(schema.FloatKind, schema.DoubleKind)
	if v.kind == schema.FloatKind {
		return float64(math.Float32frombits(uint32(v.num)))
	}
	return math.Float64frombits(v.num)
}

// String returns the string payload of a string value. For any other kind
// it returns a readable rendering of the value and never panics.
func (v Value) String() string {
	switch {
	case v.kind == schema.StringKind && v.list == nil && v.mp == nil:
		return v.str
	case v.list != nil:
		return fmt.Sprintf("<list %d>", v.list.Len())
	case v.mp != nil:
		return fmt.Sprintf("<map %d>", v.mp.Len())
	}
	switch v.kind {
	case schema.InvalidKind:
		return "<invalid>"
	case schema.BoolKind:
		return strconv.FormatBool(v.num != 0)
	case schema.BytesKind:
		return fmt.Sprintf("%x", v.b)
	case schema.MessageKind:
		if v.msg == nil {
			return "<nil>"
		}
		return "<" + v.msg.desc.Name + ">"
	case schema.FloatKind, schema.DoubleKind:
		return strconv.FormatFloat(v.Float(), 'g', -1, 64)
	}
	if v.kind.IsSigned() {
		return strconv.FormatInt(int64(v.num), 10)
	}
	return strconv.FormatUint(v.num, 10)
}

// Bytes returns v as a byte slice.
func (v Value) Bytes() []byte {
	v.mustKind(schema.BytesKind)
	return v.b
}

// Enum returns v as an enum number.
func (v Value) Enum() int32 {
	v.mustKind(schema.EnumKind)
	return int32(v.num)
}

// Message returns v as a message, nil when absent.
func (v Value) Message() *Message {
	v.mustKind(schema.MessageKind)
	return v.msg
}

// List returns the wrapped list.
func (v Value) List() *List {
	if v.list == nil {
		panic(fmt.Sprintf("wiremsg: invalid type: %v is not a list", v.describe()))
	}
	return v.list
}

// Map returns the wrapped map.
func (v Value) Map() *Map {
	if v.mp == nil {
		panic(fmt.Sprintf("wiremsg: invalid type: %v is not a map", v.describe()))
	}
	return v.mp
}

// IsZero reports whether v is the default of its kind: zero numbers, empty
// strings and bytes, absent messages and empty lists and maps. Floats are
// zero only when every bit is clear, so -0.0 is not zero.
func (v Value) IsZero() bool {
	switch {
	case v.list != nil:
		return v.list.Len() == 0
	case v.mp != nil:
		return v.mp.Len() == 0
	}
	switch v.kind {
	case schema.StringKind:
		return v.str == ""
	case schema.BytesKind:
		return len(v.b) == 0
	case schema.MessageKind:
		return v.msg == nil
	default:
		return v.num == 0
	}
}

// Equal reports whether v and w hold the same kind and contents.
// Floats compare by bits, so NaN equals an identical NaN.
func (v Value) Equal(w Value) bool {
	if v.kind != w.kind || (v.list == nil) != (w.list == nil) || (v.mp == nil) != (w.mp == nil) {
		return false
	}
	switch {
	case v.list != nil:
		return v.list.Equal(w.list)
	case v.mp != nil:
		return v.mp.Equal(w.mp)
	}
	switch v.kind {
	case schema.StringKind:
		return v.str == w.str
	case schema.BytesKind:
		return bytes.Equal(v.b, w.b)
	case schema.MessageKind:
		return v.msg.Equal(w.msg)
	default:
		return v.num == w.num
	}
}

// Interface returns v as a plain Go value: bool, int32, int64, uint32,
// uint64, float32, float64, string, []byte, *Message, *List or *Map.
// Enums come back as int32.
func (v Value) Interface() any {
	switch {
	case v.list != nil:
		return v.list
	case v.mp != nil:
		return v.mp
	}
	switch v.kind {
	case schema.BoolKind:
		return v.num != 0
	case schema.Int32Kind, schema.Sint32Kind, schema.Sfixed32Kind, schema.EnumKind:
		return int32(v.num)
	case schema.Int64Kind, schema.Sint64Kind, schema.Sfixed64Kind:
		return int64(v.num)
	case schema.Uint32Kind, schema.Fixed32Kind:
		return uint32(v.num)
	case schema.Uint64Kind, schema.Fixed64Kind:
		return v.num
	case schema.FloatKind:
		return math.Float32frombits(uint32(v.num))
	case schema.DoubleKind:
		return math.Float64frombits(v.num)
	case schema.StringKind:
		return v.str
	case schema.BytesKind:
		return v.b
	case schema.MessageKind:
		return v.msg
	}
	return nil
}

// kindClass groups kinds whose values convert into one another.
type kindClass uint8

const (
	classNone kindClass = iota
	classBool
	classSigned
	classUnsigned
	classFloat
	classString
	classBytes
	classMessage
)

func classOf(k schema.Kind) kindClass {
	switch k {
	case schema.BoolKind:
		return classBool
	case schema.Int32Kind, schema.Int64Kind, schema.Sint32Kind, schema.Sint64Kind,
		schema.Sfixed32Kind, schema.Sfixed64Kind, schema.EnumKind:
		return classSigned
	case schema.Uint32Kind, schema.Uint64Kind, schema.Fixed32Kind, schema.Fixed64Kind:
		return classUnsigned
	case schema.FloatKind, schema.DoubleKind:
		return classFloat
	case schema.StringKind:
		return classString
	case schema.BytesKind:
		return classBytes
	case schema.MessageKind:
		return classMessage
	}
	return classNone
}

// convert coerces a singular value to kind k. Values convert within their
// class (any signed integer or enum to any signed kind, and so on) and are
// then truncated to the width of k. Messages must match desc.
func convert(v Value, k schema.Kind, desc *schema.Message) (Value, error) {
	if v.list != nil || v.mp != nil || classOf(v.kind) != classOf(k) || classOf(k) == classNone {
		return Value{}, fmt.Errorf("%w: %v value for %v", ErrKindMismatch, v.describe(), k)
	}
	switch k {
	case schema.StringKind, schema.BytesKind:
		return v, nil
	case schema.MessageKind:
		if v.msg != nil && v.msg.desc != desc {
			return Value{}, fmt.Errorf("%w: message %s for %s", ErrKindMismatch, v.msg.desc.Name, desc.Name)
		}
		return v, nil
	case schema.FloatKind:
		if v.kind == schema.DoubleKind {
			return ValueOfFloat32(float32(math.Float64frombits(v.num))), nil
		}
	case schema.DoubleKind:
		if v.kind == schema.FloatKind {
			return ValueOfFloat64(float64(math.Float32frombits(uint32(v.num)))), nil
		}
	}
	return ValueOfRaw(k, v.num), nil
}
