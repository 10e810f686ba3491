package schema

import (
	"os"
	"path/filepath"
	"testing"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protodesc"
	"google.golang.org/protobuf/types/descriptorpb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/timestamppb"
)

func TestFromDescriptorTimestamp(t *testing.T) {
	c, err := FromDescriptor((&timestamppb.Timestamp{}).ProtoReflect().Descriptor())
	if err != nil {
		t.Fatalf("FromDescriptor() error = %v", err)
	}
	ts := c.Message("google.protobuf.Timestamp")
	if ts == nil {
		t.Fatal("Timestamp missing")
	}
	if f := ts.Field(1); f.Name != "seconds" || f.Kind != Int64Kind {
		t.Errorf("field 1 = %s %v", f.Name, f.Kind)
	}
	if f := ts.Field(2); f.Name != "nanos" || f.Kind != Int32Kind {
		t.Errorf("field 2 = %s %v", f.Name, f.Kind)
	}
	if ts.Package != "google.protobuf" {
		t.Errorf("package = %q", ts.Package)
	}
}

func TestFromDescriptorStruct(t *testing.T) {
	c, err := FromDescriptor((&structpb.Struct{}).ProtoReflect().Descriptor())
	if err != nil {
		t.Fatalf("FromDescriptor() error = %v", err)
	}

	for _, name := range []string{"google.protobuf.Struct", "google.protobuf.Value", "google.protobuf.ListValue"} {
		if c.Message(name) == nil {
			t.Errorf("%s not collected", name)
		}
	}
	if c.Enum("google.protobuf.NullValue") == nil {
		t.Error("NullValue not collected")
	}

	fields := c.Message("google.protobuf.Struct").FieldByName("fields")
	if !fields.IsMap() || fields.MapKey != StringKind || fields.Kind != MessageKind {
		t.Errorf("fields = %v key=%v kind=%v", fields.Cardinality, fields.MapKey, fields.Kind)
	}
	if fields.Message().Name != "google.protobuf.Value" {
		t.Errorf("map value = %s", fields.Message().Name)
	}

	value := c.Message("google.protobuf.Value")
	if got := value.OneofFields("kind"); len(got) != 6 {
		t.Errorf("kind oneof has %d members, want 6", len(got))
	}
	list := c.Message("google.protobuf.ListValue").Field(1)
	if !list.IsList() || list.Message() != value {
		t.Error("ListValue.values should be a repeated Value")
	}
}

func TestFromFileDescriptorSet(t *testing.T) {
	set := &descriptorpb.FileDescriptorSet{File: []*descriptorpb.FileDescriptorProto{
		protodesc.ToFileDescriptorProto(timestamppb.File_google_protobuf_timestamp_proto),
		storeFileProto(),
	}}
	c, err := FromFileDescriptorSet(set)
	if err != nil {
		t.Fatalf("FromFileDescriptorSet() error = %v", err)
	}
	checkStoreCatalog(t, c)
}

func TestLoadDescriptorSet(t *testing.T) {
	set := &descriptorpb.FileDescriptorSet{File: []*descriptorpb.FileDescriptorProto{storeFileProto()}}
	data, err := proto.Marshal(set)
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), "store.pb")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}

	// timestamp.proto is not in the set; it comes from the global registry
	c, err := LoadDescriptorSet(path)
	if err != nil {
		t.Fatalf("LoadDescriptorSet() error = %v", err)
	}
	checkStoreCatalog(t, c)
}

func TestLoadDescriptorSetErrors(t *testing.T) {
	if _, err := LoadDescriptorSet(filepath.Join(t.TempDir(), "missing.pb")); err == nil {
		t.Error("missing file should fail")
	}
	bad := filepath.Join(t.TempDir(), "bad.pb")
	if err := os.WriteFile(bad, []byte{0xFF, 0xFF}, 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadDescriptorSet(bad); err == nil {
		t.Error("corrupt descriptor set should fail")
	}
}

func storeFileProto() *descriptorpb.FileDescriptorProto {
	return &descriptorpb.FileDescriptorProto{
		Name:       proto.String("store.proto"),
		Package:    proto.String("store"),
		Syntax:     proto.String("proto3"),
		Dependency: []string{"google/protobuf/timestamp.proto"},
		MessageType: []*descriptorpb.DescriptorProto{{
			Name: proto.String("Blob"),
			Field: []*descriptorpb.FieldDescriptorProto{
				{
					Name:     proto.String("key"),
					JsonName: proto.String("key"),
					Number:   proto.Int32(1),
					Label:    descriptorpb.FieldDescriptorProto_LABEL_OPTIONAL.Enum(),
					Type:     descriptorpb.FieldDescriptorProto_TYPE_STRING.Enum(),
				},
				{
					Name:     proto.String("chunks"),
					JsonName: proto.String("chunks"),
					Number:   proto.Int32(2),
					Label:    descriptorpb.FieldDescriptorProto_LABEL_REPEATED.Enum(),
					Type:     descriptorpb.FieldDescriptorProto_TYPE_FIXED64.Enum(),
				},
				{
					Name:     proto.String("written"),
					JsonName: proto.String("written"),
					Number:   proto.Int32(3),
					Label:    descriptorpb.FieldDescriptorProto_LABEL_OPTIONAL.Enum(),
					Type:     descriptorpb.FieldDescriptorProto_TYPE_MESSAGE.Enum(),
					TypeName: proto.String(".google.protobuf.Timestamp"),
				},
				{
					Name:     proto.String("tier"),
					JsonName: proto.String("tier"),
					Number:   proto.Int32(4),
					Label:    descriptorpb.FieldDescriptorProto_LABEL_OPTIONAL.Enum(),
					Type:     descriptorpb.FieldDescriptorProto_TYPE_ENUM.Enum(),
					TypeName: proto.String(".store.Blob.Tier"),
					Options:  &descriptorpb.FieldOptions{Deprecated: proto.Bool(true)},
				},
			},
			EnumType: []*descriptorpb.EnumDescriptorProto{{
				Name: proto.String("Tier"),
				Value: []*descriptorpb.EnumValueDescriptorProto{
					{Name: proto.String("TIER_HOT"), Number: proto.Int32(0)},
					{Name: proto.String("TIER_COLD"), Number: proto.Int32(1)},
				},
			}},
			ReservedRange: []*descriptorpb.DescriptorProto_ReservedRange{
				{Start: proto.Int32(5), End: proto.Int32(8)},
			},
			ReservedName: []string{"legacy"},
		}},
	}
}

func checkStoreCatalog(t *testing.T, c *Catalog) {
	t.Helper()
	blob := c.Message("store.Blob")
	if blob == nil {
		t.Fatal("store.Blob missing")
	}
	if blob.File != "store.proto" {
		t.Errorf("file = %q", blob.File)
	}
	if f := blob.Field(2); !f.IsList() || f.Kind != Fixed64Kind || !f.Packed {
		t.Errorf("chunks = %v %v packed=%v", f.Cardinality, f.Kind, f.Packed)
	}
	if f := blob.Field(3); f.Message() == nil || f.Message().Name != "google.protobuf.Timestamp" {
		t.Errorf("written type = %v", f.Message())
	}
	tier := blob.Field(4)
	if tier.Enum() == nil || tier.Enum().Name != "store.Blob.Tier" || !tier.Deprecated {
		t.Errorf("tier = %+v", tier)
	}
	// descriptor ranges are end-exclusive
	if !blob.IsReserved(7) || blob.IsReserved(8) {
		t.Errorf("reserved = %v", blob.Reserved)
	}
	if len(blob.ReservedNames) != 1 || blob.ReservedNames[0] != "legacy" {
		t.Errorf("reserved names = %v", blob.ReservedNames)
	}
}
