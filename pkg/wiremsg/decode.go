package wiremsg

import (
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"github.com/blockberries/wiremsg/internal/wire"
	"github.com/blockberries/wiremsg/pkg/schema"
)

// Unmarshal decodes data as a message of type desc with DefaultOptions.
func Unmarshal(data []byte, desc *schema.Message) (*Message, error) {
	return UnmarshalWithOptions(data, desc, DefaultOptions)
}

// UnmarshalWithOptions decodes data as a message of type desc.
//
// The returned message is never nil: on error it holds every field decoded
// before the failure. Unknown field numbers are skipped. A singular field
// seen more than once keeps the last occurrence, including singular
// messages, which are replaced and not merged. Repeated fields accept both
// packed and unpacked runs and map entries upsert by key.
func UnmarshalWithOptions(data []byte, desc *schema.Message, opts Options) (*Message, error) {
	m := NewMessage(desc)
	return m, UnmarshalInto(data, m, opts)
}

// UnmarshalInto decodes data into m, adding to what m already holds.
//
// Errors are *DecodeError values naming the message, field and offset. An
// invalid UTF-8 string only drops that field; decoding continues and every
// such error is returned joined with any fatal one.
func UnmarshalInto(data []byte, m *Message, opts Options) error {
	if opts.Limits.MaxMessageSize > 0 && int64(len(data)) > opts.Limits.MaxMessageSize {
		return &DecodeError{
			Type:    m.desc.Name,
			Offset:  -1,
			Message: fmt.Sprintf("input of %d bytes exceeds limit %d", len(data), opts.Limits.MaxMessageSize),
			Cause:   ErrMaxSizeExceeded,
		}
	}

	d := &decoder{opts: opts, log: opts.Logger}
	r := NewReaderWithOptions(data, opts)
	d.decodeMessage(r, m)

	errs := d.errs
	if err := r.Err(); err != nil {
		errs = append(errs, err)
	}
	switch len(errs) {
	case 0:
		return nil
	case 1:
		return errs[0]
	default:
		return errors.Join(errs...)
	}
}

type decoder struct {
	opts Options
	log  zerolog.Logger
	errs []error // recoverable errors
}

// record records a non-fatal error and lets decoding continue.
func (d *decoder) record(m *Message, f *schema.Field, offset int, msg string, cause error) {
	d.errs = append(d.errs, &DecodeError{
		Type:        m.desc.Name,
		Field:       f.Name,
		FieldNumber: int32(f.Number),
		Offset:      offset,
		Message:     msg,
		Cause:       cause,
	})
}

// annotate fills in the message and field of a reader error that does not
// name them yet. Inner messages annotate first, so the innermost wins.
func annotate(r *Reader, m *Message, f *schema.Field, num int32) {
	var de *DecodeError
	if !errors.As(r.err, &de) {
		return
	}
	if de.Type == "" {
		de.Type = m.desc.Name
		if f != nil {
			de.Field = f.Name
			de.FieldNumber = int32(f.Number)
		} else {
			de.FieldNumber = num
		}
	}
}

func (d *decoder) decodeMessage(r *Reader, m *Message) {
	for !r.EOF() && r.err == nil {
		start := r.Pos()
		num, typ := r.ReadTag()
		if r.err != nil {
			annotate(r, m, nil, 0)
			return
		}

		f := m.desc.Field(schema.FieldNumber(num))
		if f == nil {
			d.skip(r, m, start, num, typ, "unknown field")
			if r.err != nil {
				annotate(r, m, nil, num)
				return
			}
			continue
		}

		d.decodeField(r, m, f, typ, start)
		if r.err != nil {
			annotate(r, m, f, num)
			return
		}
	}
}

// skip steps over one value. Unknown fields are retained when
// KeepUnknown is set; mismatched known fields are dropped.
func (d *decoder) skip(r *Reader, m *Message, start int, num int32, typ wire.Type, reason string) {
	r.SkipValue(typ)
	if r.err != nil {
		return
	}
	if d.opts.KeepUnknown && reason == "unknown field" {
		m.unknown = append(m.unknown, r.data[start:r.pos]...)
	}
	d.log.Debug().
		Str("message", m.desc.Name).
		Int32("field", num).
		Stringer("wire_type", typ).
		Int("offset", r.base+start).
		Msg("skipped " + reason)
}

func (d *decoder) mismatch(r *Reader, m *Message, f *schema.Field, start int, typ wire.Type) {
	if d.opts.StrictWireType {
		r.err = &DecodeError{
			Type:        m.desc.Name,
			Field:       f.Name,
			FieldNumber: int32(f.Number),
			Offset:      r.base + start,
			Message:     fmt.Sprintf("got wire type %v, want %v", typ, f.WireType()),
			Cause:       ErrWireTypeMismatch,
		}
		return
	}
	d.skip(r, m, start, int32(f.Number), typ, "field with mismatched wire type")
}

func (d *decoder) decodeField(r *Reader, m *Message, f *schema.Field, typ wire.Type, start int) {
	switch f.Cardinality {
	case schema.Map:
		if typ != wire.Bytes {
			d.mismatch(r, m, f, start, typ)
			return
		}
		d.decodeMapEntry(r, m, f)

	case schema.Repeated:
		l := m.fields[f.Number].list
		switch {
		case typ == wire.Bytes && f.Kind.IsNumeric():
			d.decodePacked(r, f, l)
		case typ == f.Kind.WireType():
			v, ok := d.readValue(r, m, f, start)
			if ok && d.checkRepeated(r, l) {
				l.elems = append(l.elems, v)
			}
		default:
			d.mismatch(r, m, f, start, typ)
		}

	default:
		if typ != f.WireType() {
			d.mismatch(r, m, f, start, typ)
			return
		}
		if v, ok := d.readValue(r, m, f, start); ok {
			m.set(f, v)
		}
	}
}

func (d *decoder) checkRepeated(r *Reader, l *List) bool {
	if limit := d.opts.Limits.MaxRepeated; limit > 0 && len(l.elems) >= limit {
		r.setErrorAt(ErrMaxRepeated, fmt.Sprintf("more than %d elements", limit))
		return false
	}
	return true
}

func (d *decoder) decodePacked(r *Reader, f *schema.Field, l *List) {
	n := r.ReadLength(d.opts.Limits.MaxMessageSize, ErrMaxSizeExceeded)
	sub := r.SubReader(n)
	if sub == nil {
		return
	}
	for !sub.EOF() {
		raw := sub.ReadScalar(f)
		if sub.err != nil {
			r.setError(sub.err)
			return
		}
		if !d.checkRepeated(r, l) {
			return
		}
		l.elems = append(l.elems, Value{kind: f.Kind, num: raw})
	}
}

// readValue reads one value of f's kind. ok is false when the value was
// dropped or a fatal error was recorded on r.
func (d *decoder) readValue(r *Reader, m *Message, f *schema.Field, start int) (Value, bool) {
	switch f.Kind {
	case schema.StringKind:
		b := r.ReadRawBytes(r.ReadLength(int64(d.opts.Limits.MaxStringLength), ErrMaxStringLength))
		if r.err != nil {
			return Value{}, false
		}
		if d.opts.ValidateUTF8 && !utf8.Valid(b) {
			d.record(m, f, r.base+start, "invalid UTF-8", ErrInvalidUTF8)
			return Value{}, false
		}
		return ValueOfString(string(b)), true

	case schema.BytesKind:
		b := r.ReadBytes(d.opts.Limits.MaxBytesLength, ErrMaxBytesLength)
		return ValueOfBytes(b), r.err == nil

	case schema.MessageKind:
		n := r.ReadLength(d.opts.Limits.MaxMessageSize, ErrMaxSizeExceeded)
		if r.err != nil {
			return Value{}, false
		}
		child := NewMessage(f.Message())
		d.decodeWithLimit(r, n, child)
		// keep the partial child so callers see how far decoding got
		return ValueOfMessage(child), true

	default:
		raw := r.ReadScalar(f)
		return Value{kind: f.Kind, num: raw}, r.err == nil
	}
}

// decodeWithLimit decodes the next length bytes of r into m. The nested
// reader cannot see past its slice, and a failure inside it stops r.
func (d *decoder) decodeWithLimit(r *Reader, length int, m *Message) {
	if r.err != nil {
		return
	}
	sub := r.SubReader(length)
	if sub == nil {
		return
	}
	if sub.enterNested() {
		d.decodeMessage(sub, m)
	}
	if sub.err != nil {
		r.setError(sub.err)
	}
}

func (d *decoder) decodeMapEntry(r *Reader, m *Message, f *schema.Field) {
	entry := NewMessage(f.MapEntry())
	before := len(d.errs)
	d.decodeWithLimit(r, r.ReadLength(d.opts.Limits.MaxMessageSize, ErrMaxSizeExceeded), entry)
	if r.err != nil || len(d.errs) > before {
		// an entry with a dropped key or value is dropped whole
		return
	}

	mp := m.fields[f.Number].mp
	key := entry.Get(1)
	value := entry.Get(2)
	if value.kind == schema.MessageKind && value.msg == nil {
		value = ValueOfMessage(NewMessage(f.Message()))
	}

	mk := mapKey{num: key.num, str: key.str}
	if _, exists := mp.entries[mk]; !exists {
		if limit := d.opts.Limits.MaxMapSize; limit > 0 && len(mp.entries) >= limit {
			r.setErrorAt(ErrMaxMapSize, fmt.Sprintf("more than %d entries", limit))
			return
		}
	}
	mp.entries[mk] = value
}
