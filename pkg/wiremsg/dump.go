package wiremsg

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"io"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/blockberries/wiremsg/internal/wire"
	"github.com/blockberries/wiremsg/pkg/schema"
)

// Dump writes a human-readable listing of the fields in data, one line per
// field, to w. Each line starts with the offset of the field tag.
//
// desc may be nil. With a descriptor, known fields are named, their values
// are rendered by kind and nested messages and map entries are expanded.
// Without one, length-delimited payloads that parse as a message are
// expanded and the rest are shown as text or hex.
//
// Dump stops at the first malformed field and returns the error after
// writing everything before it.
func Dump(w io.Writer, data []byte, desc *schema.Message) error {
	d := &dumper{w: w}
	r := NewReaderWithOptions(data, DefaultOptions)
	d.walk(r, desc, 0)
	if d.err != nil {
		return d.err
	}
	return r.Err()
}

type dumper struct {
	w   io.Writer
	err error
}

func (d *dumper) printf(depth int, offset int, format string, args ...any) {
	if d.err != nil {
		return
	}
	line := fmt.Sprintf(format, args...)
	_, d.err = fmt.Fprintf(d.w, "%06d %s%s\n", offset, strings.Repeat("  ", depth), line)
}

func (d *dumper) walk(r *Reader, desc *schema.Message, depth int) {
	for !r.EOF() && r.Err() == nil && d.err == nil {
		offset := r.Offset()
		num, typ := r.ReadTag()
		if r.Err() != nil {
			return
		}

		var f *schema.Field
		if desc != nil {
			f = desc.Field(schema.FieldNumber(num))
		}
		label := strconv.Itoa(int(num))
		if f != nil {
			label += " " + f.Name
		}
		if f != nil && typ != f.WireType() && !(typ == wire.Bytes && f.IsPackable()) {
			label += " (wire type mismatch)"
			f = nil
		}

		switch typ {
		case wire.Varint, wire.Fixed32, wire.Fixed64:
			d.printf(depth, offset, "%s %v: %s", label, typ, d.scalar(r, f, typ))
		case wire.Bytes:
			n := r.ReadLength(0, nil)
			payload := r.ReadRawBytes(n)
			if r.Err() != nil {
				return
			}
			d.bytes(r, payload, offset, depth, label, f)
		default:
			r.setErrorAt(ErrInvalidWireType, fmt.Sprintf("wire type %d", typ))
			return
		}
	}
}

func (d *dumper) scalar(r *Reader, f *schema.Field, typ wire.Type) string {
	if f != nil {
		return formatScalar(f, r.ReadScalar(f))
	}
	switch typ {
	case wire.Varint:
		v := r.ReadUvarint()
		if int64(v) < 0 {
			return fmt.Sprintf("%d (%d)", v, int64(v))
		}
		return strconv.FormatUint(v, 10)
	case wire.Fixed32:
		b := r.ReadRawBytes(wire.Fixed32Size)
		if b == nil {
			return ""
		}
		v := binary.LittleEndian.Uint32(b)
		return fmt.Sprintf("%d 0x%08x", v, v)
	default:
		b := r.ReadRawBytes(wire.Fixed64Size)
		if b == nil {
			return ""
		}
		v := binary.LittleEndian.Uint64(b)
		return fmt.Sprintf("%d 0x%016x", v, v)
	}
}

// bytes renders a length-delimited payload that parent has just read.
func (d *dumper) bytes(parent *Reader, payload []byte, offset, depth int, label string, f *schema.Field) {
	prefix := fmt.Sprintf("%s %v[%d]", label, wire.Bytes, len(payload))
	base := parent.Offset() - len(payload)
	sub := func() *Reader {
		return &Reader{data: payload, base: base, opts: parent.opts, depth: parent.depth}
	}

	switch {
	case f == nil:
		if looksLikeMessage(payload) {
			d.printf(depth, offset, "%s {", prefix)
			d.nested(sub(), nil, depth, parent)
			d.printf(depth, offset, "}")
			return
		}
		d.printf(depth, offset, "%s %s", prefix, formatPayload(payload))

	case f.IsMap():
		d.printf(depth, offset, "%s {", prefix)
		d.nested(sub(), f.MapEntry(), depth, parent)
		d.printf(depth, offset, "}")

	case f.Kind == schema.MessageKind:
		d.printf(depth, offset, "%s %s {", prefix, f.Message().Name)
		d.nested(sub(), f.Message(), depth, parent)
		d.printf(depth, offset, "}")

	case f.IsPackable():
		r := sub()
		var vals []string
		for !r.EOF() && r.Err() == nil {
			vals = append(vals, formatScalar(f, r.ReadScalar(f)))
		}
		if err := r.Err(); err != nil {
			parent.setError(err)
			return
		}
		d.printf(depth, offset, "%s packed [%s]", prefix, strings.Join(vals, ", "))

	case f.Kind == schema.StringKind:
		d.printf(depth, offset, "%s %q", prefix, payload)

	default:
		d.printf(depth, offset, "%s %s", prefix, hex.EncodeToString(payload))
	}
}

func (d *dumper) nested(r *Reader, desc *schema.Message, depth int, parent *Reader) {
	if !r.enterNested() {
		parent.setError(r.Err())
		return
	}
	d.walk(r, desc, depth+1)
	if err := r.Err(); err != nil {
		parent.setError(err)
	}
}

func formatScalar(f *schema.Field, raw uint64) string {
	s := ValueOfRaw(f.Kind, raw).String()
	if f.Kind == schema.EnumKind && f.Enum() != nil {
		if name := f.Enum().ValueName(int32(raw)); name != "" {
			return name + " (" + s + ")"
		}
	}
	return s
}

// looksLikeMessage reports whether b is a non-empty run of well-formed fields.
func looksLikeMessage(b []byte) bool {
	if len(b) == 0 {
		return false
	}
	for len(b) > 0 {
		_, _, n, err := wire.ConsumeField(b)
		if err != nil {
			return false
		}
		b = b[n:]
	}
	return true
}

func formatPayload(b []byte) string {
	if utf8.Valid(b) && strings.IndexFunc(string(b), func(r rune) bool {
		return !unicode.IsPrint(r) && !unicode.IsSpace(r)
	}) < 0 {
		return strconv.Quote(string(b))
	}
	return hex.EncodeToString(b)
}
