package wiremsg

import (
	"testing"

	"github.com/blockberries/wiremsg/pkg/schema"
)

// Field numbers of storage.v1.Volume.
const (
	fName      schema.FieldNumber = 1
	fLabels    schema.FieldNumber = 2
	fSize      schema.FieldNumber = 3
	fState     schema.FieldNumber = 4
	fSnapshots schema.FieldNumber = 5
	fBlockIDs  schema.FieldNumber = 6
	fNFSPath   schema.FieldNumber = 7
	fISCSILun  schema.FieldNumber = 8
	fParent    schema.FieldNumber = 9
	fChecksum  schema.FieldNumber = 10
	fRatio     schema.FieldNumber = 11
	fWeights   schema.FieldNumber = 12
	fReplicas  schema.FieldNumber = 13
	fOnline    schema.FieldNumber = 14
	fOffset    schema.FieldNumber = 15
	fTags      schema.FieldNumber = 16
)

func storageCatalog() *schema.Catalog {
	c := schema.NewCatalog(
		&schema.Message{
			Name:    "storage.v1.Volume",
			Package: "storage.v1",
			Fields: []*schema.Field{
				{Name: "name", Number: fName, Kind: schema.StringKind},
				{Name: "labels", Number: fLabels, Kind: schema.StringKind, Cardinality: schema.Map, MapKey: schema.StringKind},
				{Name: "size_bytes", Number: fSize, Kind: schema.Uint64Kind},
				{Name: "state", Number: fState, TypeName: "State"},
				{Name: "snapshots", Number: fSnapshots, TypeName: "Snapshot", Cardinality: schema.Repeated},
				{Name: "block_ids", Number: fBlockIDs, Kind: schema.Sint64Kind, Cardinality: schema.Repeated, Packed: true},
				{Name: "nfs_path", Number: fNFSPath, Kind: schema.StringKind, Oneof: "source"},
				{Name: "iscsi_lun", Number: fISCSILun, Kind: schema.Uint32Kind, Oneof: "source"},
				{Name: "parent", Number: fParent, TypeName: "Snapshot"},
				{Name: "checksum", Number: fChecksum, Kind: schema.BytesKind},
				{Name: "ratio", Number: fRatio, Kind: schema.DoubleKind},
				{Name: "weights", Number: fWeights, Kind: schema.FloatKind, Cardinality: schema.Repeated},
				{Name: "replicas", Number: fReplicas, TypeName: "Snapshot", Cardinality: schema.Map, MapKey: schema.Int32Kind},
				{Name: "online", Number: fOnline, Kind: schema.BoolKind},
				{Name: "offset", Number: fOffset, Kind: schema.Int32Kind},
				{Name: "tags", Number: fTags, Kind: schema.StringKind, Cardinality: schema.Repeated},
			},
		},
		&schema.Message{
			Name:    "storage.v1.Volume.Snapshot",
			Package: "storage.v1",
			Fields: []*schema.Field{
				{Name: "id", Number: 1, Kind: schema.StringKind},
				{Name: "created_unix", Number: 2, Kind: schema.Int64Kind},
				{Name: "sealed", Number: 3, Kind: schema.BoolKind},
			},
		},
		&schema.Message{
			Name:    "storage.v1.Node",
			Package: "storage.v1",
			Fields: []*schema.Field{
				{Name: "id", Number: 1, Kind: schema.StringKind},
				{Name: "child", Number: 2, TypeName: "Node"},
			},
		},
	)
	_ = c.AddEnum(&schema.Enum{
		Name:    "storage.v1.State",
		Package: "storage.v1",
		Values: []*schema.EnumValue{
			{Name: "STATE_UNKNOWN", Number: 0},
			{Name: "STATE_ACTIVE", Number: 1},
			{Name: "STATE_DEGRADED", Number: 2},
		},
	})
	return c.MustResolve()
}

var testCatalog = storageCatalog()

func volumeDesc() *schema.Message   { return testCatalog.Message("storage.v1.Volume") }
func snapshotDesc() *schema.Message { return testCatalog.Message("storage.v1.Volume.Snapshot") }
func nodeDesc() *schema.Message     { return testCatalog.Message("storage.v1.Node") }

func mustSet(tb testing.TB, m *Message, n schema.FieldNumber, v Value) {
	tb.Helper()
	if err := m.Set(n, v); err != nil {
		tb.Fatalf("Set(%d) error = %v", n, err)
	}
}

func mustAppend(tb testing.TB, m *Message, n schema.FieldNumber, v Value) {
	tb.Helper()
	if err := m.Append(n, v); err != nil {
		tb.Fatalf("Append(%d) error = %v", n, err)
	}
}

func newSnapshot(tb testing.TB, id string, created int64) *Message {
	tb.Helper()
	s := NewMessage(snapshotDesc())
	mustSet(tb, s, 1, ValueOfString(id))
	mustSet(tb, s, 2, ValueOfInt64(created))
	return s
}

// fullVolume populates every field of a Volume.
func fullVolume(tb testing.TB) *Message {
	tb.Helper()
	v := NewMessage(volumeDesc())
	mustSet(tb, v, fName, ValueOfString("vol-1"))
	if err := v.Map(fLabels).Set(ValueOfString("env"), ValueOfString("prod")); err != nil {
		tb.Fatal(err)
	}
	if err := v.Map(fLabels).Set(ValueOfString("tier"), ValueOfString("gold")); err != nil {
		tb.Fatal(err)
	}
	mustSet(tb, v, fSize, ValueOfUint64(1<<40))
	mustSet(tb, v, fState, ValueOfEnum(1))
	mustAppend(tb, v, fSnapshots, ValueOfMessage(newSnapshot(tb, "snap-a", 1700000000)))
	mustAppend(tb, v, fSnapshots, ValueOfMessage(newSnapshot(tb, "snap-b", -1)))
	for _, id := range []int64{-2, 0, 300, -1 << 40} {
		mustAppend(tb, v, fBlockIDs, ValueOfInt64(id))
	}
	mustSet(tb, v, fISCSILun, ValueOfUint32(7))
	mustSet(tb, v, fParent, ValueOfMessage(newSnapshot(tb, "root", 1)))
	mustSet(tb, v, fChecksum, ValueOfBytes([]byte{0xDE, 0xAD, 0xBE, 0xEF}))
	mustSet(tb, v, fRatio, ValueOfFloat64(0.75))
	mustAppend(tb, v, fWeights, ValueOfFloat32(1.5))
	mustAppend(tb, v, fWeights, ValueOfFloat32(-2))
	if err := v.Map(fReplicas).Set(ValueOfInt32(-1), ValueOfMessage(newSnapshot(tb, "r", 2))); err != nil {
		tb.Fatal(err)
	}
	mustSet(tb, v, fOnline, ValueOfBool(true))
	mustSet(tb, v, fOffset, ValueOfInt32(-5))
	mustAppend(tb, v, fTags, ValueOfString("a"))
	mustAppend(tb, v, fTags, ValueOfString(""))
	return v
}
