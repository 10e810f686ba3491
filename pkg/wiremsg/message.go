package wiremsg

import (
	"bytes"
	"fmt"
	"slices"

	"github.com/blockberries/wiremsg/pkg/schema"
)

// Message is a dynamic message bound to a resolved descriptor.
//
// Singular scalar fields hold a value only while it is nonzero. Singular
// message fields are present once set, even when empty. Every repeated and
// map field has its List or Map from construction on.
//
// A Message is not safe for concurrent mutation. Descriptors are shared.
type Message struct {
	desc    *schema.Message
	fields  map[schema.FieldNumber]Value
	unknown []byte
}

// NewMessage returns an empty message of type desc. It panics if desc is
// nil or its catalog has not been resolved.
func NewMessage(desc *schema.Message) *Message {
	if desc == nil {
		panic("wiremsg: NewMessage with nil descriptor")
	}
	if desc.Catalog() == nil {
		panic(fmt.Sprintf("wiremsg: %s: %v", desc.Name, ErrUnresolvedSchema))
	}
	m := &Message{desc: desc, fields: make(map[schema.FieldNumber]Value, len(desc.Fields))}
	for _, f := range desc.Fields {
		switch f.Cardinality {
		case schema.Repeated:
			m.fields[f.Number] = ValueOfList(&List{field: f})
		case schema.Map:
			m.fields[f.Number] = ValueOfMap(newMap(f))
		}
	}
	return m
}

// Descriptor returns the message type.
func (m *Message) Descriptor() *schema.Message { return m.desc }

func (m *Message) fieldError(f *schema.Field, n schema.FieldNumber, cause error) error {
	fe := &FieldError{Type: m.desc.Name, Number: int32(n), Cause: cause}
	if f != nil {
		fe.Field = f.Name
	}
	return fe
}

// Get returns the value of field n. Unset scalars return their zero value,
// absent message fields a Value with a nil message, and repeated and map
// fields their List or Map. Unknown numbers return an invalid Value.
func (m *Message) Get(n schema.FieldNumber) Value {
	f := m.desc.Field(n)
	if f == nil {
		return Value{}
	}
	if v, ok := m.fields[n]; ok {
		return v
	}
	return zeroValue(f.Kind)
}

// GetByName is Get addressed by field name or JSON name.
func (m *Message) GetByName(name string) Value {
	f := m.desc.FieldByName(name)
	if f == nil {
		return Value{}
	}
	return m.Get(f.Number)
}

// Lookup returns the value of field n and whether it is populated: a
// nonzero scalar, a present message, or a non-empty list or map.
func (m *Message) Lookup(n schema.FieldNumber) (Value, bool) {
	v := m.Get(n)
	if !v.IsValid() {
		return v, false
	}
	if v.kind == schema.MessageKind && v.list == nil && v.mp == nil {
		return v, v.msg != nil
	}
	return v, !v.IsZero()
}

// Set assigns field n. The value is converted to the field's kind within
// its class, so ValueOfInt64 can set a sint32 field. Zero scalars clear the
// field and a nil message makes it absent. Setting a oneof member clears
// the other members of its group. Repeated and map fields take a List or
// Map built for the same field.
func (m *Message) Set(n schema.FieldNumber, v Value) error {
	f := m.desc.Field(n)
	if f == nil {
		return m.fieldError(nil, n, ErrUnknownField)
	}

	switch f.Cardinality {
	case schema.Repeated:
		if v.list == nil || v.list.field != f {
			return m.fieldError(f, n, ErrKindMismatch)
		}
		m.fields[n] = v
		return nil
	case schema.Map:
		if v.mp == nil || v.mp.field != f {
			return m.fieldError(f, n, ErrKindMismatch)
		}
		m.fields[n] = v
		return nil
	}

	cv, err := convert(v, f.Kind, f.Message())
	if err != nil {
		return m.fieldError(f, n, err)
	}
	m.set(f, cv)
	return nil
}

// SetByName is Set addressed by field name or JSON name.
func (m *Message) SetByName(name string, v Value) error {
	f := m.desc.FieldByName(name)
	if f == nil {
		return &FieldError{Type: m.desc.Name, Field: name, Cause: ErrUnknownField}
	}
	return m.Set(f.Number, v)
}

// set stores an already converted singular value.
func (m *Message) set(f *schema.Field, v Value) {
	if f.Oneof != "" {
		for _, other := range m.desc.OneofFields(f.Oneof) {
			if other != f {
				delete(m.fields, other.Number)
			}
		}
	}
	if (f.Kind == schema.MessageKind && v.msg == nil) || (f.Kind != schema.MessageKind && v.IsZero()) {
		delete(m.fields, f.Number)
		return
	}
	m.fields[f.Number] = v
}

// Clear resets field n to its default: zero, absent or empty.
func (m *Message) Clear(n schema.FieldNumber) {
	f := m.desc.Field(n)
	if f == nil {
		return
	}
	switch f.Cardinality {
	case schema.Repeated:
		m.fields[n] = ValueOfList(&List{field: f})
	case schema.Map:
		m.fields[n] = ValueOfMap(newMap(f))
	default:
		delete(m.fields, n)
	}
}

// Has reports whether singular message field n is present. Other fields do
// not track presence and return ErrPresenceUnsupported.
func (m *Message) Has(n schema.FieldNumber) (bool, error) {
	f := m.desc.Field(n)
	if f == nil {
		return false, m.fieldError(nil, n, ErrUnknownField)
	}
	if !f.HasPresence() {
		return false, m.fieldError(f, n, ErrPresenceUnsupported)
	}
	_, ok := m.fields[n]
	return ok, nil
}

// WhichOneof returns the member of the named oneof that is set, or nil.
func (m *Message) WhichOneof(name string) *schema.Field {
	for _, f := range m.desc.OneofFields(name) {
		if _, ok := m.fields[f.Number]; ok {
			return f
		}
	}
	return nil
}

// Mutable returns the message held by singular message field n, creating an
// empty one first if the field is absent. It panics if n is not a singular
// message field.
func (m *Message) Mutable(n schema.FieldNumber) *Message {
	f := m.desc.Field(n)
	if f == nil || !f.HasPresence() {
		panic(m.fieldError(f, n, ErrKindMismatch))
	}
	if v, ok := m.fields[n]; ok {
		return v.msg
	}
	child := NewMessage(f.Message())
	m.set(f, ValueOfMessage(child))
	return child
}

// List returns the list of repeated field n, or nil if n is not repeated.
func (m *Message) List(n schema.FieldNumber) *List {
	if v, ok := m.fields[n]; ok && v.list != nil {
		return v.list
	}
	return nil
}

// Map returns the map of map field n, or nil if n is not a map field.
func (m *Message) Map(n schema.FieldNumber) *Map {
	if v, ok := m.fields[n]; ok && v.mp != nil {
		return v.mp
	}
	return nil
}

// Append adds v to repeated field n.
func (m *Message) Append(n schema.FieldNumber, v Value) error {
	l := m.List(n)
	if l == nil {
		return m.fieldError(m.desc.Field(n), n, ErrKindMismatch)
	}
	if err := l.Append(v); err != nil {
		return m.fieldError(l.field, n, err)
	}
	return nil
}

// Range calls fn for each populated field in field-number order until fn
// returns false.
func (m *Message) Range(fn func(*schema.Field, Value) bool) {
	nums := make([]schema.FieldNumber, 0, len(m.fields))
	for n, v := range m.fields {
		if !v.IsZero() || (v.kind == schema.MessageKind && v.msg != nil) {
			nums = append(nums, n)
		}
	}
	slices.Sort(nums)
	for _, n := range nums {
		if !fn(m.desc.Field(n), m.fields[n]) {
			return
		}
	}
}

// Len returns the number of populated fields.
func (m *Message) Len() int {
	n := 0
	m.Range(func(*schema.Field, Value) bool {
		n++
		return true
	})
	return n
}

// Reset clears every field and any retained unknown bytes.
func (m *Message) Reset() {
	for _, f := range m.desc.Fields {
		m.Clear(f.Number)
	}
	m.unknown = nil
}

// Unknown returns the raw bytes of fields the decoder did not recognise.
// It is only populated when decoding with Options.KeepUnknown.
func (m *Message) Unknown() []byte { return m.unknown }

// SetUnknown replaces the retained unknown bytes. They are written verbatim
// after the known fields on encode.
func (m *Message) SetUnknown(b []byte) { m.unknown = b }

// Equal reports whether m and o have the same type, the same populated
// fields with equal values, and the same unknown bytes. Two nil messages
// are equal.
func (m *Message) Equal(o *Message) bool {
	if m == nil || o == nil {
		return m == o
	}
	if m.desc != o.desc || !bytes.Equal(m.unknown, o.unknown) {
		return false
	}
	equal := m.Len() == o.Len()
	if equal {
		m.Range(func(f *schema.Field, v Value) bool {
			equal = v.Equal(o.Get(f.Number))
			return equal
		})
	}
	return equal
}

// Clone returns a deep copy of m.
func (m *Message) Clone() *Message {
	if m == nil {
		return nil
	}
	c := NewMessage(m.desc)
	c.unknown = bytes.Clone(m.unknown)
	m.Range(func(f *schema.Field, v Value) bool {
		c.fields[f.Number] = cloneValue(f, v)
		return true
	})
	return c
}

func cloneValue(f *schema.Field, v Value) Value {
	switch {
	case v.list != nil:
		l := &List{field: f, elems: make([]Value, len(v.list.elems))}
		for i, e := range v.list.elems {
			l.elems[i] = cloneValue(f, e)
		}
		return ValueOfList(l)
	case v.mp != nil:
		mp := newMap(f)
		for k, e := range v.mp.entries {
			mp.entries[k] = cloneValue(f, e)
		}
		return ValueOfMap(mp)
	case v.kind == schema.BytesKind:
		return ValueOfBytes(bytes.Clone(v.b))
	case v.kind == schema.MessageKind:
		return ValueOfMessage(v.msg.Clone())
	}
	return v
}

// List is the ordered element list of a repeated field.
type List struct {
	field *schema.Field
	elems []Value
}

// Field returns the repeated field the list belongs to.
func (l *List) Field() *schema.Field { return l.field }

// Len returns the number of elements.
func (l *List) Len() int {
	if l == nil {
		return 0
	}
	return len(l.elems)
}

// Get returns element i.
func (l *List) Get(i int) Value { return l.elems[i] }

// Set replaces element i, converting v to the element kind.
func (l *List) Set(i int, v Value) error {
	cv, err := convert(v, l.field.Kind, l.field.Message())
	if err != nil {
		return err
	}
	l.elems[i] = cv
	return nil
}

// Append adds v at the end, converting it to the element kind. Nil
// messages are rejected since list elements cannot be absent.
func (l *List) Append(v Value) error {
	cv, err := convert(v, l.field.Kind, l.field.Message())
	if err != nil {
		return err
	}
	if cv.kind == schema.MessageKind && cv.msg == nil {
		return fmt.Errorf("%w: nil message in list", ErrKindMismatch)
	}
	l.elems = append(l.elems, cv)
	return nil
}

// AppendMessage appends and returns a new empty element of a message list.
func (l *List) AppendMessage() *Message {
	child := NewMessage(l.field.Message())
	l.elems = append(l.elems, ValueOfMessage(child))
	return child
}

// Truncate drops every element from index n on.
func (l *List) Truncate(n int) {
	clear(l.elems[n:])
	l.elems = l.elems[:n]
}

// Equal reports whether both lists hold equal elements in the same order.
func (l *List) Equal(o *List) bool {
	if l.Len() != o.Len() {
		return false
	}
	for i := range l.Len() {
		if !l.elems[i].Equal(o.elems[i]) {
			return false
		}
	}
	return true
}
