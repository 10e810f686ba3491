package wiremsg

import (
	"cmp"
	"fmt"
	"slices"

	"github.com/blockberries/wiremsg/pkg/schema"
)

// mapKey is the comparable form of a map key value.
type mapKey struct {
	num uint64
	str string
}

// Map holds the entries of a map field. Keys have the field's MapKey kind
// and values its value kind. Setting an existing key replaces its value.
type Map struct {
	field   *schema.Field
	entries map[mapKey]Value
}

func newMap(f *schema.Field) *Map {
	return &Map{field: f, entries: make(map[mapKey]Value)}
}

// Field returns the map field the map belongs to.
func (m *Map) Field() *schema.Field { return m.field }

// Len returns the number of entries.
func (m *Map) Len() int {
	if m == nil {
		return 0
	}
	return len(m.entries)
}

func (m *Map) key(k Value) (mapKey, error) {
	ck, err := convert(k, m.field.MapKey, nil)
	if err != nil {
		return mapKey{}, fmt.Errorf("map key: %w", err)
	}
	return mapKey{num: ck.num, str: ck.str}, nil
}

func (m *Map) keyValue(k mapKey) Value {
	if m.field.MapKey == schema.StringKind {
		return ValueOfString(k.str)
	}
	return ValueOfRaw(m.field.MapKey, k.num)
}

// Get returns the value stored under k. Keys of the wrong kind are never
// present.
func (m *Map) Get(k Value) (Value, bool) {
	mk, err := m.key(k)
	if err != nil {
		return Value{}, false
	}
	v, ok := m.entries[mk]
	return v, ok
}

// Has reports whether k is present.
func (m *Map) Has(k Value) bool {
	_, ok := m.Get(k)
	return ok
}

// Set stores v under k, converting both to the field's kinds. A nil
// message value is stored as an empty message.
func (m *Map) Set(k, v Value) error {
	mk, err := m.key(k)
	if err != nil {
		return err
	}
	cv, err := convert(v, m.field.Kind, m.field.Message())
	if err != nil {
		return fmt.Errorf("map value: %w", err)
	}
	if cv.kind == schema.MessageKind && cv.msg == nil {
		cv = ValueOfMessage(NewMessage(m.field.Message()))
	}
	m.entries[mk] = cv
	return nil
}

// Delete removes k.
func (m *Map) Delete(k Value) {
	if mk, err := m.key(k); err == nil {
		delete(m.entries, mk)
	}
}

// Range calls fn for every entry in unspecified order until fn returns false.
func (m *Map) Range(fn func(k, v Value) bool) {
	for mk, v := range m.entries {
		if !fn(m.keyValue(mk), v) {
			return
		}
	}
}

// Keys returns the keys sorted in ascending order: false before true,
// integers numerically and strings bytewise.
func (m *Map) Keys() []Value {
	keys := make([]mapKey, 0, len(m.entries))
	for mk := range m.entries {
		keys = append(keys, mk)
	}
	signed := m.field.MapKey.IsSigned()
	slices.SortFunc(keys, func(a, b mapKey) int {
		switch {
		case m.field.MapKey == schema.StringKind:
			return cmp.Compare(a.str, b.str)
		case signed:
			return cmp.Compare(int64(a.num), int64(b.num))
		default:
			return cmp.Compare(a.num, b.num)
		}
	})
	out := make([]Value, len(keys))
	for i, mk := range keys {
		out[i] = m.keyValue(mk)
	}
	return out
}

// Equal reports whether both maps hold the same keys with equal values.
func (m *Map) Equal(o *Map) bool {
	if m.Len() != o.Len() {
		return false
	}
	for mk, v := range m.entries {
		ov, ok := o.entries[mk]
		if !ok || !v.Equal(ov) {
			return false
		}
	}
	return true
}
