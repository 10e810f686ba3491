package wiremsg

import (
	"fmt"

	"github.com/blockberries/wiremsg/internal/wire"
	"github.com/blockberries/wiremsg/pkg/schema"
)

// Marshal encodes m with DefaultOptions.
func Marshal(m *Message) ([]byte, error) {
	return MarshalWithOptions(m, DefaultOptions)
}

// MarshalWithOptions encodes m. Fields are written in declaration order;
// zero scalars, absent messages and empty lists and maps are omitted, so an
// empty message encodes to zero bytes. Retained unknown bytes follow the
// known fields.
//
// The only schema error is a field number above 2^29-1, reported as
// ErrFieldNumberOverflow. Depth and size limits also apply.
func MarshalWithOptions(m *Message, opts Options) ([]byte, error) {
	if m == nil {
		return nil, nil
	}
	w := GetWriter()
	defer PutWriter(w)
	w.SetOptions(opts)

	encodeMessage(w, m)
	if err := w.Err(); err != nil {
		return nil, err
	}
	return w.BytesCopy(), nil
}

// AppendMarshal appends the encoding of m to b. MaxMessageSize applies to
// the appended encoding alone, not to what b already holds.
func AppendMarshal(b []byte, m *Message, opts Options) ([]byte, error) {
	w := &Writer{buf: b, opts: opts, start: len(b)}
	if m != nil {
		encodeMessage(w, m)
	}
	if err := w.Err(); err != nil {
		return b, err
	}
	return w.buf, nil
}

// Size returns the encoded length of m. Limits are not applied.
func Size(m *Message) int {
	w := GetWriter()
	defer PutWriter(w)
	w.opts.Limits = NoLimits
	if m != nil {
		encodeMessage(w, m)
	}
	return w.Len()
}

func encodeMessage(w *Writer, m *Message) {
	for _, f := range m.desc.Fields {
		if w.err != nil {
			return
		}
		v, ok := m.fields[f.Number]
		if !ok || v.IsZero() {
			continue
		}
		if !checkNumber(w, m, f) {
			return
		}
		switch f.Cardinality {
		case schema.Map:
			encodeMap(w, f, v.mp)
		case schema.Repeated:
			encodeList(w, f, v.list)
		default:
			encodeValue(w, f, f.Number, v)
		}
	}
	if len(m.unknown) > 0 {
		w.WriteRawBytes(m.unknown)
	}
}

func checkNumber(w *Writer, m *Message, f *schema.Field) bool {
	switch {
	case f.Number > schema.MaxFieldNumber:
		w.setError(&EncodeError{
			Type:    m.desc.Name,
			Field:   f.Name,
			Message: fmt.Sprintf("field number %d exceeds %d", f.Number, schema.MaxFieldNumber),
			Cause:   ErrFieldNumberOverflow,
		})
		return false
	case f.Number < schema.MinFieldNumber:
		w.setError(&EncodeError{
			Type:    m.desc.Name,
			Field:   f.Name,
			Message: fmt.Sprintf("field number %d is below 1", f.Number),
			Cause:   ErrInvalidFieldNumber,
		})
		return false
	}
	return true
}

// encodeValue writes one tagged value. f supplies the kind and codec and
// num the tag, which differ only for map entry fields.
func encodeValue(w *Writer, f *schema.Field, num schema.FieldNumber, v Value) {
	switch f.Kind {
	case schema.StringKind:
		w.WriteTag(int32(num), wire.Bytes)
		w.WriteString(v.str)
	case schema.BytesKind:
		w.WriteTag(int32(num), wire.Bytes)
		w.WriteBytes(v.b)
	case schema.MessageKind:
		w.WriteTag(int32(num), wire.Bytes)
		cp := w.BeginMessage()
		if v.msg != nil {
			encodeMessage(w, v.msg)
		}
		w.EndMessage(cp)
	default:
		w.WriteTag(int32(num), f.Kind.WireType())
		w.WriteScalar(f, v.num)
	}
}

func encodeList(w *Writer, f *schema.Field, l *List) {
	if f.Kind.IsNumeric() && (f.Packed || w.opts.PackRepeated) {
		w.WriteTag(int32(f.Number), wire.Bytes)
		cp := w.beginLength()
		for _, e := range l.elems {
			w.WriteScalar(f, e.num)
		}
		w.endLength(cp)
		return
	}
	for _, e := range l.elems {
		encodeValue(w, f, f.Number, e)
	}
}

// encodeMap writes each entry as a nested {1: key, 2: value} message.
// Both entry fields are always written, zero or not.
func encodeMap(w *Writer, f *schema.Field, mp *Map) {
	entry := f.MapEntry()
	keyField, valueField := entry.Field(1), entry.Field(2)

	write := func(k, v Value) bool {
		w.WriteTag(int32(f.Number), wire.Bytes)
		cp := w.BeginMessage()
		encodeValue(w, keyField, 1, k)
		encodeValue(w, valueField, 2, v)
		w.EndMessage(cp)
		return w.err == nil
	}

	if w.opts.Deterministic {
		for _, k := range mp.Keys() {
			v, _ := mp.Get(k)
			if !write(k, v) {
				return
			}
		}
		return
	}
	mp.Range(write)
}
