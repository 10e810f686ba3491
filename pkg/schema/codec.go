package schema

import (
	"fmt"
	"math"

	"github.com/blockberries/wiremsg/internal/wire"
)

// Numeric values cross the codec boundary as raw uint64 bits:
//
//   - bool is 0 or 1
//   - signed integer kinds and enums are sign-extended two's complement
//   - unsigned kinds are zero-extended
//   - float holds math.Float32bits, double holds math.Float64bits
//
// Each kind's codec converts between this form and the wire.

// kindCodec encodes and decodes single numeric values of one kind.
// Length-delimited kinds have a wire type but no numeric functions.
type kindCodec struct {
	kind    Kind
	wire    wire.Type
	append  func(b []byte, v uint64) []byte
	consume func(b []byte) (uint64, int, error)
	size    func(v uint64) int
}

// codecTable maps every Kind to its codec.
type codecTable [kindCount]kindCodec

func newCodecTable() *codecTable {
	t := &codecTable{}
	for k := BoolKind; k < kindCount; k++ {
		t[k] = kindCodec{kind: k, wire: k.WireType()}
	}

	varint := func(k Kind, normalize func(uint64) uint64) {
		t[k].append = wire.AppendUvarint
		t[k].size = wire.UvarintSize
		t[k].consume = func(b []byte) (uint64, int, error) {
			v, n, err := wire.DecodeUvarint(b)
			if err != nil {
				return 0, 0, err
			}
			return normalize(v), n, nil
		}
	}
	varint(BoolKind, func(v uint64) uint64 {
		if v != 0 {
			return 1
		}
		return 0
	})
	varint(Int32Kind, signExtend32)
	varint(EnumKind, signExtend32)
	varint(Int64Kind, identity)
	varint(Uint32Kind, func(v uint64) uint64 { return uint64(uint32(v)) })
	varint(Uint64Kind, identity)

	t[Sint32Kind].append = func(b []byte, v uint64) []byte {
		return wire.AppendUvarint(b, uint64(zigzag32(int32(v))))
	}
	t[Sint32Kind].size = func(v uint64) int {
		return wire.UvarintSize(uint64(zigzag32(int32(v))))
	}
	t[Sint32Kind].consume = func(b []byte) (uint64, int, error) {
		v, n, err := wire.DecodeUvarint(b)
		if err != nil {
			return 0, 0, err
		}
		return uint64(int64(int32(wire.DecodeZigZag(v & math.MaxUint32)))), n, nil
	}

	t[Sint64Kind].append = func(b []byte, v uint64) []byte {
		return wire.AppendSvarint(b, int64(v))
	}
	t[Sint64Kind].size = func(v uint64) int {
		return wire.SvarintSize(int64(v))
	}
	t[Sint64Kind].consume = func(b []byte) (uint64, int, error) {
		v, n, err := wire.DecodeSvarint(b)
		return uint64(v), n, err
	}

	fixed32 := func(k Kind, normalize func(uint64) uint64) {
		t[k].append = func(b []byte, v uint64) []byte { return wire.AppendFixed32(b, uint32(v)) }
		t[k].size = func(uint64) int { return wire.Fixed32Size }
		t[k].consume = func(b []byte) (uint64, int, error) {
			v, err := wire.DecodeFixed32(b)
			if err != nil {
				return 0, 0, err
			}
			return normalize(uint64(v)), wire.Fixed32Size, nil
		}
	}
	fixed32(Fixed32Kind, identity)
	fixed32(FloatKind, identity)
	fixed32(Sfixed32Kind, signExtend32)

	fixed64 := func(k Kind) {
		t[k].append = wire.AppendFixed64
		t[k].size = func(uint64) int { return wire.Fixed64Size }
		t[k].consume = func(b []byte) (uint64, int, error) {
			v, err := wire.DecodeFixed64(b)
			if err != nil {
				return 0, 0, err
			}
			return v, wire.Fixed64Size, nil
		}
	}
	fixed64(Fixed64Kind)
	fixed64(Sfixed64Kind)
	fixed64(DoubleKind)

	return t
}

func identity(v uint64) uint64 { return v }

func signExtend32(v uint64) uint64 { return uint64(int64(int32(v))) }

func zigzag32(v int32) uint32 { return uint32(v<<1) ^ uint32(v>>31) }

// NormalizeScalar truncates and extends v to the canonical raw form of kind k,
// so that for example an Int32Kind value is always sign-extended from 32 bits.
func NormalizeScalar(k Kind, v uint64) uint64 {
	switch k {
	case BoolKind:
		if v != 0 {
			return 1
		}
		return 0
	case Int32Kind, Sint32Kind, Sfixed32Kind, EnumKind:
		return signExtend32(v)
	case Uint32Kind, Fixed32Kind, FloatKind:
		return uint64(uint32(v))
	}
	return v
}

func (f *Field) mustCodec() *kindCodec {
	if f.codec == nil {
		panic(fmt.Sprintf("schema: field %s used before its catalog was resolved", f.FullName()))
	}
	if f.codec.append == nil {
		panic(fmt.Sprintf("schema: field %s of kind %v has no scalar codec", f.FullName(), f.Kind))
	}
	return f.codec
}

// AppendScalar appends one numeric value of the field's kind without a tag.
// v is in the raw form described by NormalizeScalar.
func (f *Field) AppendScalar(b []byte, v uint64) []byte {
	return f.mustCodec().append(b, v)
}

// ConsumeScalar decodes one numeric value of the field's kind from the
// front of b and returns it in raw form with the number of bytes read.
func (f *Field) ConsumeScalar(b []byte) (uint64, int, error) {
	return f.mustCodec().consume(b)
}

// ScalarSize returns the encoded size of one numeric value without a tag.
func (f *Field) ScalarSize(v uint64) int {
	return f.mustCodec().size(v)
}
