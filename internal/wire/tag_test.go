package wire

import (
	"bytes"
	"errors"
	"testing"

	"google.golang.org/protobuf/encoding/protowire"
)

func TestTypeString(t *testing.T) {
	tests := []struct {
		typ      Type
		expected string
	}{
		{Varint, "Varint"},
		{Fixed64, "Fixed64"},
		{Bytes, "LengthDelimited"},
		{StartGroup, "StartGroup"},
		{EndGroup, "EndGroup"},
		{Fixed32, "Fixed32"},
		{Type(6), "Unknown"},
		{Type(7), "Unknown"},
	}

	for _, tc := range tests {
		if tc.typ.String() != tc.expected {
			t.Errorf("Type(%d).String() = %q, want %q", tc.typ, tc.typ.String(), tc.expected)
		}
	}
}

func TestTypeIsValid(t *testing.T) {
	for _, typ := range []Type{Varint, Fixed64, Bytes, Fixed32} {
		if !typ.IsValid() {
			t.Errorf("Type(%d).IsValid() = false, want true", typ)
		}
	}
	for _, typ := range []Type{StartGroup, EndGroup, 6, 7, 100} {
		if typ.IsValid() {
			t.Errorf("Type(%d).IsValid() = true, want false", typ)
		}
	}
}

func TestNewTag(t *testing.T) {
	tests := []struct {
		num      int32
		typ      Type
		expected Tag
	}{
		{1, Varint, Tag(0x08)},
		{1, Fixed64, Tag(0x09)},
		{1, Bytes, Tag(0x0A)},
		{1, Fixed32, Tag(0x0D)},
		{2, Varint, Tag(0x10)},
		{15, Varint, Tag(0x78)},
		{16, Varint, Tag(0x80)},
		{MaxFieldNumber, Bytes, Tag(uint64(MaxFieldNumber)<<3 | 2)},
	}

	for _, tc := range tests {
		tag := NewTag(tc.num, tc.typ)
		if tag != tc.expected {
			t.Errorf("NewTag(%d, %v) = %#x, want %#x", tc.num, tc.typ, tag, tc.expected)
		}
		if tag.Number() != tc.num {
			t.Errorf("Tag(%#x).Number() = %d, want %d", tag, tag.Number(), tc.num)
		}
		if tag.Type() != tc.typ {
			t.Errorf("Tag(%#x).Type() = %v, want %v", tag, tag.Type(), tc.typ)
		}
	}
}

func TestTagRoundTrip(t *testing.T) {
	nums := []int32{1, 2, 15, 16, 2047, 2048, 262143, 262144, MaxFieldNumber}
	types := []Type{Varint, Fixed64, Bytes, Fixed32}

	for _, num := range nums {
		for _, typ := range types {
			encoded := AppendTag(nil, num, typ)
			if len(encoded) != TagSize(num) {
				t.Errorf("TagSize(%d) = %d, encoded %d bytes", num, TagSize(num), len(encoded))
			}
			gotNum, gotTyp, n, err := DecodeTag(encoded)
			if err != nil {
				t.Fatalf("DecodeTag(%x) error: %v", encoded, err)
			}
			if gotNum != num || gotTyp != typ || n != len(encoded) {
				t.Errorf("DecodeTag(%x) = (%d, %v, %d), want (%d, %v, %d)",
					encoded, gotNum, gotTyp, n, num, typ, len(encoded))
			}
		}
	}
}

func TestDecodeTagErrors(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		err  error
	}{
		{"empty", nil, ErrUnexpectedEOF},
		{"start_group", []byte{0x0B}, ErrInvalidWireType},
		{"end_group", []byte{0x0C}, ErrInvalidWireType},
		{"type_6", []byte{0x0E}, ErrInvalidWireType},
		{"type_7", []byte{0x0F}, ErrInvalidWireType},
		{"field_zero", []byte{0x00}, ErrInvalidFieldNumber},
		{"field_too_large", AppendUvarint(nil, uint64(MaxFieldNumber+1)<<3), ErrInvalidFieldNumber},
		{"malformed", bytes.Repeat([]byte{0x80}, 10), ErrMalformedVarint},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, _, _, err := DecodeTag(tc.data)
			if !errors.Is(err, tc.err) {
				t.Errorf("DecodeTag(%x) error = %v, want %v", tc.data, err, tc.err)
			}
		})
	}
}

func TestValidateFieldNumber(t *testing.T) {
	for _, num := range []int32{MinFieldNumber, 100, 19000, MaxFieldNumber} {
		if err := ValidateFieldNumber(num); err != nil {
			t.Errorf("ValidateFieldNumber(%d) = %v, want nil", num, err)
		}
	}
	for _, num := range []int32{0, -1, MaxFieldNumber + 1} {
		if err := ValidateFieldNumber(num); !errors.Is(err, ErrInvalidFieldNumber) {
			t.Errorf("ValidateFieldNumber(%d) = %v, want ErrInvalidFieldNumber", num, err)
		}
	}
}

func TestTagMatchesProtowire(t *testing.T) {
	for _, num := range []int32{1, 15, 16, 2048, MaxFieldNumber} {
		for _, typ := range []Type{Varint, Fixed64, Bytes, Fixed32} {
			got := AppendTag(nil, num, typ)
			want := protowire.AppendTag(nil, protowire.Number(num), protowire.Type(typ))
			if !bytes.Equal(got, want) {
				t.Errorf("AppendTag(%d, %v) = %x, protowire = %x", num, typ, got, want)
			}
			if TagSize(num) != protowire.SizeTag(protowire.Number(num)) {
				t.Errorf("TagSize(%d) = %d, protowire = %d", num, TagSize(num), protowire.SizeTag(protowire.Number(num)))
			}
		}
	}
}

func BenchmarkAppendTag(b *testing.B) {
	buf := make([]byte, 0, 8)
	for i := 0; i < b.N; i++ {
		buf = AppendTag(buf[:0], 100, Bytes)
	}
}

func BenchmarkDecodeTag(b *testing.B) {
	data := AppendTag(nil, 100, Bytes)
	for i := 0; i < b.N; i++ {
		_, _, _, _ = DecodeTag(data)
	}
}
