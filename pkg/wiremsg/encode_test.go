package wiremsg

import (
	"bytes"
	"errors"
	"math"
	"testing"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/blockberries/wiremsg/pkg/schema"
)

func TestMarshalEmptyIsZeroBytes(t *testing.T) {
	data, err := Marshal(NewMessage(volumeDesc()))
	if err != nil {
		t.Fatal(err)
	}
	if len(data) != 0 {
		t.Errorf("empty message encoded to %x", data)
	}

	// zero scalars are elided too
	m := NewMessage(volumeDesc())
	mustSet(t, m, fName, ValueOfString(""))
	mustSet(t, m, fSize, ValueOfUint64(0))
	mustSet(t, m, fOnline, ValueOfBool(false))
	mustSet(t, m, fRatio, ValueOfFloat64(0))
	if got := Size(m); got != 0 {
		t.Errorf("Size() = %d, want 0", got)
	}

	if data, err := Marshal(nil); err != nil || data != nil {
		t.Errorf("Marshal(nil) = %x, %v", data, err)
	}
}

func TestMarshalNameAndLabels(t *testing.T) {
	m := NewMessage(volumeDesc())
	mustSet(t, m, fName, ValueOfString("vol-1"))
	if err := m.Map(fLabels).Set(ValueOfString("env"), ValueOfString("prod")); err != nil {
		t.Fatal(err)
	}

	got, err := Marshal(m)
	if err != nil {
		t.Fatal(err)
	}
	want := []byte{
		0x0A, 0x05, 'v', 'o', 'l', '-', '1',
		0x12, 0x0B,
		0x0A, 0x03, 'e', 'n', 'v',
		0x12, 0x04, 'p', 'r', 'o', 'd',
	}
	if !bytes.Equal(got, want) {
		t.Errorf("Marshal() = % X\nwant        % X", got, want)
	}

	back, err := Unmarshal(got, volumeDesc())
	if err != nil {
		t.Fatal(err)
	}
	if !back.Equal(m) {
		t.Error("round trip mismatch")
	}
}

func TestMarshalMatchesProtowire(t *testing.T) {
	tag := func(n protowire.Number, typ protowire.Type) []byte {
		return protowire.AppendTag(nil, n, typ)
	}
	tests := []struct {
		n    schema.FieldNumber
		v    Value
		want []byte
	}{
		{fSize, ValueOfUint64(300), protowire.AppendVarint(tag(3, protowire.VarintType), 300)},
		{fState, ValueOfEnum(-1), protowire.AppendVarint(tag(4, protowire.VarintType), math.MaxUint64)},
		{fISCSILun, ValueOfUint32(math.MaxUint32), protowire.AppendVarint(tag(8, protowire.VarintType), math.MaxUint32)},
		{fChecksum, ValueOfBytes([]byte{1, 2}), protowire.AppendBytes(tag(10, protowire.BytesType), []byte{1, 2})},
		{fRatio, ValueOfFloat64(-1.25), protowire.AppendFixed64(tag(11, protowire.Fixed64Type), math.Float64bits(-1.25))},
		{fOnline, ValueOfBool(true), protowire.AppendVarint(tag(14, protowire.VarintType), 1)},
		{fOffset, ValueOfInt32(-5), protowire.AppendVarint(tag(15, protowire.VarintType), math.MaxUint64-4)},
	}
	for _, tt := range tests {
		t.Run(volumeDesc().Field(tt.n).Name, func(t *testing.T) {
			m := NewMessage(volumeDesc())
			mustSet(t, m, tt.n, tt.v)
			got, err := Marshal(m)
			if err != nil {
				t.Fatal(err)
			}
			if !bytes.Equal(got, tt.want) {
				t.Errorf("got % X, want % X", got, tt.want)
			}
			if Size(m) != len(tt.want) {
				t.Errorf("Size() = %d, want %d", Size(m), len(tt.want))
			}
		})
	}
}

func TestMarshalNegativeZero(t *testing.T) {
	m := NewMessage(volumeDesc())
	mustSet(t, m, fRatio, ValueOfFloat64(math.Copysign(0, -1)))
	got, err := Marshal(m)
	if err != nil {
		t.Fatal(err)
	}
	want := protowire.AppendFixed64(protowire.AppendTag(nil, 11, protowire.Fixed64Type), 1<<63)
	if !bytes.Equal(got, want) {
		t.Errorf("-0.0 encoded as % X, want % X", got, want)
	}
}

func TestMarshalRepeated(t *testing.T) {
	m := NewMessage(volumeDesc())
	for _, id := range []int64{1, -1, 150} {
		mustAppend(t, m, fBlockIDs, ValueOfInt64(id))
	}
	mustAppend(t, m, fWeights, ValueOfFloat32(1))
	mustAppend(t, m, fWeights, ValueOfFloat32(2))
	mustAppend(t, m, fTags, ValueOfString("x"))
	mustAppend(t, m, fTags, ValueOfString(""))

	var packed []byte
	for _, id := range []int64{1, -1, 150} {
		packed = protowire.AppendVarint(packed, protowire.EncodeZigZag(id))
	}
	var want []byte
	want = protowire.AppendTag(want, 6, protowire.BytesType)
	want = protowire.AppendBytes(want, packed)
	for _, w := range []float32{1, 2} {
		want = protowire.AppendTag(want, 12, protowire.Fixed32Type)
		want = protowire.AppendFixed32(want, math.Float32bits(w))
	}
	// empty strings inside a list are still written
	want = protowire.AppendTag(want, 16, protowire.BytesType)
	want = protowire.AppendString(want, "x")
	want = protowire.AppendTag(want, 16, protowire.BytesType)
	want = protowire.AppendString(want, "")

	got, err := Marshal(m)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, want) {
		t.Errorf("got  % X\nwant % X", got, want)
	}

	t.Run("pack everything", func(t *testing.T) {
		opts := DefaultOptions
		opts.PackRepeated = true
		got, err := MarshalWithOptions(m, opts)
		if err != nil {
			t.Fatal(err)
		}
		var run []byte
		run = protowire.AppendFixed32(run, math.Float32bits(1))
		run = protowire.AppendFixed32(run, math.Float32bits(2))
		weights := protowire.AppendBytes(protowire.AppendTag(nil, 12, protowire.BytesType), run)
		if !bytes.Contains(got, weights) {
			t.Errorf("weights not packed: % X", got)
		}
		back, err := Unmarshal(got, volumeDesc())
		if err != nil || !back.Equal(m) {
			t.Errorf("packed round trip: %v", err)
		}
	})
}

func TestMarshalMapEntriesWriteZeroKeyAndValue(t *testing.T) {
	m := NewMessage(volumeDesc())
	if err := m.Map(fReplicas).Set(ValueOfInt32(0), ValueOfMessage(nil)); err != nil {
		t.Fatal(err)
	}
	got, err := Marshal(m)
	if err != nil {
		t.Fatal(err)
	}
	// entry {1: 0, 2: <empty>}
	want := []byte{0x6A, 0x04, 0x08, 0x00, 0x12, 0x00}
	if !bytes.Equal(got, want) {
		t.Errorf("got % X, want % X", got, want)
	}
}

func TestMarshalDeterministicMaps(t *testing.T) {
	m := NewMessage(volumeDesc())
	for _, k := range []string{"zeta", "alpha", "mid", "beta", "omega"} {
		if err := m.Map(fLabels).Set(ValueOfString(k), ValueOfString(k+"!")); err != nil {
			t.Fatal(err)
		}
	}
	first, err := Marshal(m)
	if err != nil {
		t.Fatal(err)
	}
	for range 20 {
		again, _ := Marshal(m)
		if !bytes.Equal(first, again) {
			t.Fatal("deterministic encoding changed between calls")
		}
	}
	if i, j := bytes.Index(first, []byte("alpha")), bytes.Index(first, []byte("zeta")); i > j {
		t.Error("keys not sorted")
	}

	// without sorting the bytes may differ but still decode to the same map
	opts := FastOptions
	data, err := MarshalWithOptions(m, opts)
	if err != nil {
		t.Fatal(err)
	}
	back, err := Unmarshal(data, volumeDesc())
	if err != nil || !back.Equal(m) {
		t.Errorf("unordered map round trip: %v", err)
	}
}

func TestMarshalUnknownBytesFollowKnownFields(t *testing.T) {
	m := NewMessage(volumeDesc())
	mustSet(t, m, fName, ValueOfString("a"))
	m.SetUnknown([]byte{0xF8, 0x01, 0x01}) // field 31, varint 1

	got, err := Marshal(m)
	if err != nil {
		t.Fatal(err)
	}
	want := []byte{0x0A, 0x01, 'a', 0xF8, 0x01, 0x01}
	if !bytes.Equal(got, want) {
		t.Errorf("got % X, want % X", got, want)
	}
}

func TestMarshalFieldNumberOverflow(t *testing.T) {
	c := schema.NewCatalog(&schema.Message{Name: "Big", Fields: []*schema.Field{
		{Name: "a", Number: 1, Kind: schema.StringKind},
	}}).MustResolve()
	desc := c.Message("Big")
	f := desc.Field(1)

	m := NewMessage(desc)
	f.Number = schema.MaxFieldNumber + 1
	m.fields[f.Number] = ValueOfString("x")

	_, err := Marshal(m)
	if !errors.Is(err, ErrFieldNumberOverflow) {
		t.Fatalf("error = %v, want ErrFieldNumberOverflow", err)
	}
	if !IsFatal(err) {
		t.Error("overflow should be fatal")
	}
	var ee *EncodeError
	if !errors.As(err, &ee) || ee.Type != "Big" || ee.Field != "a" {
		t.Errorf("error = %#v", err)
	}

	// an empty message never reaches the check
	delete(m.fields, f.Number)
	if data, err := Marshal(m); err != nil || len(data) != 0 {
		t.Errorf("empty message = %x, %v", data, err)
	}
}

func TestMarshalDepthLimit(t *testing.T) {
	root := NewMessage(nodeDesc())
	cur := root
	for range 10 {
		cur = cur.Mutable(2)
	}

	opts := DefaultOptions
	opts.Limits.MaxDepth = 5
	if _, err := MarshalWithOptions(root, opts); !errors.Is(err, ErrMaxDepthExceeded) {
		t.Errorf("error = %v, want ErrMaxDepthExceeded", err)
	}
	opts.Limits.MaxDepth = 10
	if _, err := MarshalWithOptions(root, opts); err != nil {
		t.Errorf("depth 10 should fit: %v", err)
	}
}

func TestMarshalSizeLimit(t *testing.T) {
	m := NewMessage(volumeDesc())
	mustSet(t, m, fChecksum, ValueOfBytes(make([]byte, 2048)))
	opts := DefaultOptions
	opts.Limits.MaxMessageSize = 1024
	_, err := MarshalWithOptions(m, opts)
	if !errors.Is(err, ErrMaxSizeExceeded) || !IsLimitExceeded(err) {
		t.Errorf("error = %v, want ErrMaxSizeExceeded", err)
	}
}

func TestMarshalSizeLimitIsExact(t *testing.T) {
	flat := NewMessage(volumeDesc())
	mustSet(t, flat, fName, ValueOfString("ab"))

	nested := NewMessage(volumeDesc())
	mustSet(t, nested.Mutable(fParent), 1, ValueOfString("ab"))

	packed := NewMessage(volumeDesc())
	mustAppend(t, packed, fBlockIDs, ValueOfInt64(1))
	mustAppend(t, packed, fBlockIDs, ValueOfInt64(-1))

	large := NewMessage(volumeDesc())
	mustSet(t, large.Mutable(fParent), 1, ValueOfString(string(bytes.Repeat([]byte("x"), 200))))
	mustSet(t, large, fOffset, ValueOfInt32(-1))

	tests := []struct {
		name string
		m    *Message
	}{
		{"flat", flat},
		{"nested", nested},
		{"packed", packed},
		{"large nested", large},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			want, err := Marshal(tt.m)
			if err != nil {
				t.Fatal(err)
			}
			opts := DefaultOptions
			opts.Limits.MaxMessageSize = int64(len(want))

			got, err := MarshalWithOptions(tt.m, opts)
			if err != nil {
				t.Fatalf("encoding %d bytes under limit %d: %v", len(want), len(want), err)
			}
			if !bytes.Equal(got, want) {
				t.Errorf("MarshalWithOptions() = % X, want % X", got, want)
			}
			if _, err := UnmarshalWithOptions(got, volumeDesc(), opts); err != nil {
				t.Errorf("decoding under the same limit: %v", err)
			}

			prefix := bytes.Repeat([]byte{0xFF}, 64)
			appended, err := AppendMarshal(prefix, tt.m, opts)
			if err != nil {
				t.Fatalf("AppendMarshal() with a prefix: %v", err)
			}
			if !bytes.Equal(appended[len(prefix):], want) {
				t.Errorf("AppendMarshal() suffix = % X, want % X", appended[len(prefix):], want)
			}

			opts.Limits.MaxMessageSize = int64(len(want) - 1)
			if _, err := MarshalWithOptions(tt.m, opts); !errors.Is(err, ErrMaxSizeExceeded) {
				t.Errorf("limit %d: error = %v, want ErrMaxSizeExceeded", len(want)-1, err)
			}
		})
	}
}

func TestAppendMarshal(t *testing.T) {
	m := NewMessage(volumeDesc())
	mustSet(t, m, fOnline, ValueOfBool(true))
	got, err := AppendMarshal([]byte{0xFF}, m, DefaultOptions)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, []byte{0xFF, 0x70, 0x01}) {
		t.Errorf("AppendMarshal() = % X", got)
	}
}

func TestNestedLengthPrefixes(t *testing.T) {
	// a nested payload above 127 bytes needs a two byte length
	m := NewMessage(volumeDesc())
	p := m.Mutable(fParent)
	mustSet(t, p, 1, ValueOfString(string(bytes.Repeat([]byte("x"), 200))))

	got, err := Marshal(m)
	if err != nil {
		t.Fatal(err)
	}
	inner := protowire.AppendString(protowire.AppendTag(nil, 1, protowire.BytesType), string(bytes.Repeat([]byte("x"), 200)))
	want := protowire.AppendBytes(protowire.AppendTag(nil, 9, protowire.BytesType), inner)
	if !bytes.Equal(got, want) {
		t.Errorf("nested encoding differs: got %d bytes, want %d", len(got), len(want))
	}
}
