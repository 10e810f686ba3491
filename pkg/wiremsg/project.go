package wiremsg

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math"
	"strconv"

	"github.com/blockberries/wiremsg/pkg/schema"
)

// ProjectOptions controls the name-keyed debug projection.
type ProjectOptions struct {
	// UseJSONNames keys fields by lowerCamel JSON name instead of field name.
	UseJSONNames bool

	// EnumNames renders known enum numbers as their value names.
	EnumNames bool

	// EmitDefaults includes unpopulated fields with their zero value.
	EmitDefaults bool
}

// ToMap projects m onto a generic map keyed by field name. Scalars become
// bool, int32, int64, uint32, uint64, float32, float64, string or []byte;
// messages nested maps; lists []any; and maps map[string]any keyed by the
// decimal or string form of the key. The projection is for inspection and
// is not a wire contract.
func ToMap(m *Message, opts ProjectOptions) map[string]any {
	p := projector{opts: opts}
	return p.message(m)
}

type projector struct {
	opts ProjectOptions
	json bool // render values encoding/json can represent
}

func (p projector) message(m *Message) map[string]any {
	out := make(map[string]any)
	if m == nil {
		return out
	}
	for _, f := range m.desc.Fields {
		v, ok := m.Lookup(f.Number)
		if !ok && !p.opts.EmitDefaults {
			continue
		}
		name := f.Name
		if p.opts.UseJSONNames {
			name = f.JSONName
		}
		switch {
		case v.list != nil:
			elems := make([]any, v.list.Len())
			for i, e := range v.list.elems {
				elems[i] = p.scalar(f, e)
			}
			out[name] = elems
		case v.mp != nil:
			entries := make(map[string]any, v.mp.Len())
			v.mp.Range(func(k, e Value) bool {
				entries[k.String()] = p.scalar(f, e)
				return true
			})
			out[name] = entries
		default:
			out[name] = p.scalar(f, v)
		}
	}
	return out
}

func (p projector) scalar(f *schema.Field, v Value) any {
	switch v.kind {
	case schema.MessageKind:
		if v.msg == nil {
			return nil
		}
		return p.message(v.msg)
	case schema.EnumKind:
		if p.opts.EnumNames && f.Enum() != nil {
			if name := f.Enum().ValueName(v.Enum()); name != "" {
				return name
			}
		}
		return v.Enum()
	case schema.FloatKind, schema.DoubleKind:
		if p.json {
			switch x := v.Float(); {
			case math.IsNaN(x):
				return "NaN"
			case math.IsInf(x, 1):
				return "Infinity"
			case math.IsInf(x, -1):
				return "-Infinity"
			}
		}
	}
	return v.Interface()
}

// ToJSON renders the projection of m as JSON. Bytes are base64 and
// non-finite floats are the strings "NaN", "Infinity" and "-Infinity".
func ToJSON(m *Message, opts ProjectOptions) ([]byte, error) {
	p := projector{opts: opts, json: true}
	return json.Marshal(p.message(m))
}

// FromMap builds a message of type desc from a generic map. Keys may be
// field names or JSON names. Numbers may arrive as any Go integer or float
// type, json.Number or a decimal string; enums as a value name or number;
// bytes as []byte or base64 text.
func FromMap(desc *schema.Message, in map[string]any) (*Message, error) {
	m := NewMessage(desc)
	if err := fillMessage(m, in); err != nil {
		return m, err
	}
	return m, nil
}

// FromJSON parses JSON produced by ToJSON, or written by hand, into a
// message of type desc.
func FromJSON(desc *schema.Message, data []byte) (*Message, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var in map[string]any
	if err := dec.Decode(&in); err != nil {
		return nil, fmt.Errorf("wiremsg: parse JSON for %s: %w", desc.Name, err)
	}
	return FromMap(desc, in)
}

func fillMessage(m *Message, in map[string]any) error {
	for name, raw := range in {
		f := m.desc.FieldByName(name)
		if f == nil {
			return &FieldError{Type: m.desc.Name, Field: name, Cause: ErrUnknownField}
		}
		if raw == nil {
			continue
		}
		if err := fillField(m, f, raw); err != nil {
			return &FieldError{Type: m.desc.Name, Field: f.Name, Number: int32(f.Number), Cause: err}
		}
	}
	return nil
}

func fillField(m *Message, f *schema.Field, raw any) error {
	switch f.Cardinality {
	case schema.Repeated:
		elems, ok := raw.([]any)
		if !ok {
			return fmt.Errorf("%w: want a list, got %T", ErrKindMismatch, raw)
		}
		l := m.List(f.Number)
		for _, e := range elems {
			v, err := coerce(f, f.Kind, e)
			if err != nil {
				return err
			}
			if err := l.Append(v); err != nil {
				return err
			}
		}
		return nil

	case schema.Map:
		entries, ok := raw.(map[string]any)
		if !ok {
			return fmt.Errorf("%w: want an object, got %T", ErrKindMismatch, raw)
		}
		mp := m.Map(f.Number)
		for ks, e := range entries {
			k, err := coerce(f, f.MapKey, ks)
			if err != nil {
				return fmt.Errorf("map key %q: %w", ks, err)
			}
			v, err := coerce(f, f.Kind, e)
			if err != nil {
				return fmt.Errorf("map value %q: %w", ks, err)
			}
			if err := mp.Set(k, v); err != nil {
				return err
			}
		}
		return nil
	}

	v, err := coerce(f, f.Kind, raw)
	if err != nil {
		return err
	}
	cv, err := convert(v, f.Kind, f.Message())
	if err != nil {
		return err
	}
	m.set(f, cv)
	return nil
}

// coerce turns a loosely typed projection value into a Value of kind k.
func coerce(f *schema.Field, k schema.Kind, raw any) (Value, error) {
	switch k {
	case schema.MessageKind:
		in, ok := raw.(map[string]any)
		if !ok {
			return Value{}, fmt.Errorf("%w: want an object, got %T", ErrKindMismatch, raw)
		}
		child := NewMessage(f.Message())
		return ValueOfMessage(child), fillMessage(child, in)

	case schema.StringKind:
		s, ok := raw.(string)
		if !ok {
			return Value{}, fmt.Errorf("%w: want a string, got %T", ErrKindMismatch, raw)
		}
		return ValueOfString(s), nil

	case schema.BytesKind:
		switch b := raw.(type) {
		case []byte:
			return ValueOfBytes(b), nil
		case string:
			dec, err := base64.StdEncoding.DecodeString(b)
			if err != nil {
				dec, err = base64.URLEncoding.DecodeString(b)
			}
			if err != nil {
				return Value{}, fmt.Errorf("bytes: %w", err)
			}
			return ValueOfBytes(dec), nil
		}
		return Value{}, fmt.Errorf("%w: want bytes, got %T", ErrKindMismatch, raw)

	case schema.BoolKind:
		switch b := raw.(type) {
		case bool:
			return ValueOfBool(b), nil
		case string:
			v, err := strconv.ParseBool(b)
			if err != nil {
				return Value{}, err
			}
			return ValueOfBool(v), nil
		}
		return Value{}, fmt.Errorf("%w: want a bool, got %T", ErrKindMismatch, raw)

	case schema.EnumKind:
		if s, ok := raw.(string); ok && f.Enum() != nil {
			if ev := f.Enum().ByName(s); ev != nil {
				return ValueOfEnum(ev.Number), nil
			}
		}
		n, err := toInt(raw, 32)
		if err != nil {
			return Value{}, err
		}
		return ValueOfEnum(int32(n)), nil

	case schema.FloatKind, schema.DoubleKind:
		x, err := toFloat(raw)
		if err != nil {
			return Value{}, err
		}
		if k == schema.FloatKind {
			return ValueOfFloat32(float32(x)), nil
		}
		return ValueOfFloat64(x), nil
	}

	bits := 64
	switch k {
	case schema.Int32Kind, schema.Sint32Kind, schema.Sfixed32Kind, schema.Uint32Kind, schema.Fixed32Kind:
		bits = 32
	}
	if k.IsSigned() {
		n, err := toInt(raw, bits)
		if err != nil {
			return Value{}, err
		}
		return ValueOfRaw(k, uint64(n)), nil
	}
	n, err := toUint(raw, bits)
	if err != nil {
		return Value{}, err
	}
	return ValueOfRaw(k, n), nil
}

func toInt(raw any, bits int) (int64, error) {
	var n int64
	switch x := raw.(type) {
	case int:
		n = int64(x)
	case int8:
		n = int64(x)
	case int16:
		n = int64(x)
	case int32:
		n = int64(x)
	case int64:
		n = x
	case uint:
		n = int64(x)
	case uint8:
		n = int64(x)
	case uint16:
		n = int64(x)
	case uint32:
		n = int64(x)
	case uint64:
		if x > math.MaxInt64 {
			return 0, fmt.Errorf("%w: %d", ErrOverflow, x)
		}
		n = int64(x)
	case float32:
		return floatToInt(float64(x), bits)
	case float64:
		return floatToInt(x, bits)
	case json.Number:
		return parseInt(x.String(), bits)
	case string:
		return parseInt(x, bits)
	default:
		return 0, fmt.Errorf("%w: want an integer, got %T", ErrKindMismatch, raw)
	}
	if bits == 32 && (n < math.MinInt32 || n > math.MaxInt32) {
		return 0, fmt.Errorf("%w: %d does not fit 32 bits", ErrOverflow, n)
	}
	return n, nil
}

func parseInt(s string, bits int) (int64, error) {
	n, err := strconv.ParseInt(s, 10, bits)
	if err == nil {
		return n, nil
	}
	// JSON numbers such as 1e3 or 4.0
	f, ferr := strconv.ParseFloat(s, 64)
	if ferr != nil {
		return 0, err
	}
	return floatToInt(f, bits)
}

func floatToInt(f float64, bits int) (int64, error) {
	if f != math.Trunc(f) || math.IsInf(f, 0) || math.IsNaN(f) {
		return 0, fmt.Errorf("%w: %v is not an integer", ErrKindMismatch, f)
	}
	limit := math.Ldexp(1, bits-1)
	if f < -limit || f >= limit {
		return 0, fmt.Errorf("%w: %v does not fit %d bits", ErrOverflow, f, bits)
	}
	return int64(f), nil
}

func toUint(raw any, bits int) (uint64, error) {
	var n uint64
	switch x := raw.(type) {
	case uint:
		n = uint64(x)
	case uint8:
		n = uint64(x)
	case uint16:
		n = uint64(x)
	case uint32:
		n = uint64(x)
	case uint64:
		n = x
	case int, int8, int16, int32, int64:
		i, _ := toInt(x, 64)
		if i < 0 {
			return 0, fmt.Errorf("%w: %d is negative", ErrOverflow, i)
		}
		n = uint64(i)
	case float32:
		return floatToUint(float64(x), bits)
	case float64:
		return floatToUint(x, bits)
	case json.Number:
		return parseUint(x.String(), bits)
	case string:
		return parseUint(x, bits)
	default:
		return 0, fmt.Errorf("%w: want an unsigned integer, got %T", ErrKindMismatch, raw)
	}
	if bits == 32 && n > math.MaxUint32 {
		return 0, fmt.Errorf("%w: %d does not fit 32 bits", ErrOverflow, n)
	}
	return n, nil
}

func parseUint(s string, bits int) (uint64, error) {
	n, err := strconv.ParseUint(s, 10, bits)
	if err == nil {
		return n, nil
	}
	f, ferr := strconv.ParseFloat(s, 64)
	if ferr != nil {
		return 0, err
	}
	return floatToUint(f, bits)
}

func floatToUint(f float64, bits int) (uint64, error) {
	if f != math.Trunc(f) || math.IsInf(f, 0) || math.IsNaN(f) {
		return 0, fmt.Errorf("%w: %v is not an integer", ErrKindMismatch, f)
	}
	if f < 0 || f >= math.Ldexp(1, bits) {
		return 0, fmt.Errorf("%w: %v does not fit %d bits", ErrOverflow, f, bits)
	}
	return uint64(f), nil
}

func toFloat(raw any) (float64, error) {
	switch x := raw.(type) {
	case float64:
		return x, nil
	case float32:
		return float64(x), nil
	case json.Number:
		return x.Float64()
	case string:
		switch x {
		case "NaN":
			return math.NaN(), nil
		case "Infinity":
			return math.Inf(1), nil
		case "-Infinity":
			return math.Inf(-1), nil
		}
		return strconv.ParseFloat(x, 64)
	}
	if n, err := toInt(raw, 64); err == nil {
		return float64(n), nil
	}
	if n, err := toUint(raw, 64); err == nil {
		return float64(n), nil
	}
	return 0, fmt.Errorf("%w: want a number, got %T", ErrKindMismatch, raw)
}
