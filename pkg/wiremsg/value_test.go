package wiremsg

import (
	"errors"
	"math"
	"testing"

	"github.com/blockberries/wiremsg/pkg/schema"
)

func TestValueAccessors(t *testing.T) {
	if !ValueOfBool(true).Bool() || ValueOfBool(false).Bool() {
		t.Error("Bool round trip")
	}
	if got := ValueOfInt32(-7).Int(); got != -7 {
		t.Errorf("Int32.Int() = %d", got)
	}
	if got := ValueOfInt64(math.MinInt64).Int(); got != math.MinInt64 {
		t.Errorf("Int64.Int() = %d", got)
	}
	if got := ValueOfUint32(math.MaxUint32).Uint(); got != math.MaxUint32 {
		t.Errorf("Uint32.Uint() = %d", got)
	}
	if got := ValueOfFloat32(1.5).Float(); got != 1.5 {
		t.Errorf("Float32.Float() = %v", got)
	}
	if got := ValueOfFloat64(-0.25).Float(); got != -0.25 {
		t.Errorf("Float64.Float() = %v", got)
	}
	if got := ValueOfEnum(-3).Enum(); got != -3 {
		t.Errorf("Enum() = %d", got)
	}
	if got := ValueOfEnum(2).Int(); got != 2 {
		t.Errorf("Enum.Int() = %d", got)
	}
	if got := string(ValueOfBytes([]byte("ab")).Bytes()); got != "ab" {
		t.Errorf("Bytes() = %q", got)
	}
	if got := ValueOfString("x").String(); got != "x" {
		t.Errorf("String() = %q", got)
	}
}

func TestValueStringNeverPanics(t *testing.T) {
	tests := []struct {
		v    Value
		want string
	}{
		{Value{}, "<invalid>"},
		{ValueOfBool(true), "true"},
		{ValueOfInt32(-1), "-1"},
		{ValueOfUint64(math.MaxUint64), "18446744073709551615"},
		{ValueOfFloat64(2.5), "2.5"},
		{ValueOfBytes([]byte{0xAB}), "ab"},
		{ValueOfMessage(nil), "<nil>"},
		{ValueOfEnum(4), "4"},
	}
	for _, tt := range tests {
		if got := tt.v.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}
}

func TestValueAccessorPanics(t *testing.T) {
	tests := []struct {
		name string
		fn   func()
	}{
		{"bool on int", func() { ValueOfInt32(1).Bool() }},
		{"int on uint", func() { ValueOfUint32(1).Int() }},
		{"uint on int", func() { ValueOfInt64(1).Uint() }},
		{"float on int", func() { ValueOfInt64(1).Float() }},
		{"bytes on string", func() { ValueOfString("a").Bytes() }},
		{"message on enum", func() { ValueOfEnum(1).Message() }},
		{"list on scalar", func() { ValueOfBool(true).List() }},
		{"map on scalar", func() { ValueOfBool(true).Map() }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			defer func() {
				if recover() == nil {
					t.Error("expected panic")
				}
			}()
			tt.fn()
		})
	}
}

func TestValueIsZero(t *testing.T) {
	tests := []struct {
		name string
		v    Value
		want bool
	}{
		{"false", ValueOfBool(false), true},
		{"true", ValueOfBool(true), false},
		{"int zero", ValueOfInt64(0), true},
		{"empty string", ValueOfString(""), true},
		{"nil bytes", ValueOfBytes(nil), true},
		{"positive zero", ValueOfFloat64(0), true},
		{"negative zero", ValueOfFloat64(math.Copysign(0, -1)), false},
		{"nil message", ValueOfMessage(nil), true},
		{"empty message", ValueOfMessage(NewMessage(snapshotDesc())), false},
		{"enum zero", ValueOfEnum(0), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.v.IsZero(); got != tt.want {
				t.Errorf("IsZero() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestValueEqual(t *testing.T) {
	nan := math.NaN()
	if !ValueOfFloat64(nan).Equal(ValueOfFloat64(nan)) {
		t.Error("identical NaN bits should be equal")
	}
	if ValueOfFloat64(0).Equal(ValueOfFloat64(math.Copysign(0, -1))) {
		t.Error("0 and -0 differ in bits")
	}
	if ValueOfInt32(1).Equal(ValueOfInt64(1)) {
		t.Error("different kinds are not equal")
	}
	if !ValueOfBytes([]byte{1}).Equal(ValueOfBytes([]byte{1})) {
		t.Error("equal bytes")
	}
	a, b := newSnapshot(t, "s", 1), newSnapshot(t, "s", 1)
	if !ValueOfMessage(a).Equal(ValueOfMessage(b)) {
		t.Error("equal messages")
	}
}

func TestConvert(t *testing.T) {
	tests := []struct {
		name string
		in   Value
		kind schema.Kind
		want uint64
		err  bool
	}{
		{"int64 to int32 truncates", ValueOfInt64(1<<32 + 5), schema.Int32Kind, 5, false},
		{"int32 to sint64", ValueOfInt32(-1), schema.Sint64Kind, math.MaxUint64, false},
		{"enum to int32", ValueOfEnum(3), schema.Int32Kind, 3, false},
		{"int to enum", ValueOfInt64(-2), schema.EnumKind, uint64(math.MaxUint64 - 1), false},
		{"uint64 to fixed32", ValueOfUint64(1<<33 + 1), schema.Fixed32Kind, 1, false},
		{"double to float", ValueOfFloat64(1.5), schema.FloatKind, uint64(math.Float32bits(1.5)), false},
		{"float to double", ValueOfFloat32(1.5), schema.DoubleKind, math.Float64bits(1.5), false},
		{"int to uint", ValueOfInt64(1), schema.Uint64Kind, 0, true},
		{"bool to int", ValueOfBool(true), schema.Int32Kind, 0, true},
		{"string to bytes", ValueOfString("a"), schema.BytesKind, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := convert(tt.in, tt.kind, nil)
			if tt.err {
				if !errors.Is(err, ErrKindMismatch) {
					t.Errorf("error = %v, want ErrKindMismatch", err)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if got.Kind() != tt.kind || got.Raw() != tt.want {
				t.Errorf("convert = %v/%#x, want %v/%#x", got.Kind(), got.Raw(), tt.kind, tt.want)
			}
		})
	}
}

func TestValueInterface(t *testing.T) {
	tests := []struct {
		v    Value
		want any
	}{
		{ValueOfBool(true), true},
		{ValueOfInt32(-1), int32(-1)},
		{ValueOfInt64(-1), int64(-1)},
		{ValueOfUint32(1), uint32(1)},
		{ValueOfUint64(1), uint64(1)},
		{ValueOfFloat32(1), float32(1)},
		{ValueOfFloat64(1), float64(1)},
		{ValueOfString("s"), "s"},
		{ValueOfEnum(2), int32(2)},
	}
	for _, tt := range tests {
		if got := tt.v.Interface(); got != tt.want {
			t.Errorf("Interface() = %#v, want %#v", got, tt.want)
		}
	}
}
