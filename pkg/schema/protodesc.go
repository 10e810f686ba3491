package schema

import (
	"fmt"
	"os"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protodesc"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/reflect/protoregistry"
	"google.golang.org/protobuf/types/descriptorpb"
)

var protoKinds = map[protoreflect.Kind]Kind{
	protoreflect.BoolKind:     BoolKind,
	protoreflect.Int32Kind:    Int32Kind,
	protoreflect.Int64Kind:    Int64Kind,
	protoreflect.Uint32Kind:   Uint32Kind,
	protoreflect.Uint64Kind:   Uint64Kind,
	protoreflect.Sint32Kind:   Sint32Kind,
	protoreflect.Sint64Kind:   Sint64Kind,
	protoreflect.Fixed32Kind:  Fixed32Kind,
	protoreflect.Fixed64Kind:  Fixed64Kind,
	protoreflect.Sfixed32Kind: Sfixed32Kind,
	protoreflect.Sfixed64Kind: Sfixed64Kind,
	protoreflect.FloatKind:    FloatKind,
	protoreflect.DoubleKind:   DoubleKind,
	protoreflect.StringKind:   StringKind,
	protoreflect.BytesKind:    BytesKind,
	protoreflect.EnumKind:     EnumKind,
	protoreflect.MessageKind:  MessageKind,
}

// FromDescriptor builds a resolved catalog containing md and every message
// and enum reachable from its fields.
func FromDescriptor(md protoreflect.MessageDescriptor) (*Catalog, error) {
	c := NewCatalog()
	seen := make(map[protoreflect.FullName]bool)
	if err := c.addReachable(md, seen); err != nil {
		return nil, err
	}
	if err := c.Resolve(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Catalog) addReachable(md protoreflect.MessageDescriptor, seen map[protoreflect.FullName]bool) error {
	if seen[md.FullName()] {
		return nil
	}
	seen[md.FullName()] = true

	msg, err := messageFromDescriptor(md)
	if err != nil {
		return err
	}
	if err := c.AddMessage(msg); err != nil {
		return err
	}

	fields := md.Fields()
	for i := 0; i < fields.Len(); i++ {
		fd := fields.Get(i)
		if fd.IsMap() {
			fd = fd.MapValue()
		}
		switch {
		case fd.Message() != nil:
			if err := c.addReachable(fd.Message(), seen); err != nil {
				return err
			}
		case fd.Enum() != nil:
			ed := fd.Enum()
			if !seen[ed.FullName()] {
				seen[ed.FullName()] = true
				if err := c.AddEnum(enumFromDescriptor(ed)); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// FromFileDescriptorSet builds a resolved catalog from every file in set.
func FromFileDescriptorSet(set *descriptorpb.FileDescriptorSet) (*Catalog, error) {
	files, err := protodesc.NewFiles(set)
	if err != nil {
		return nil, fmt.Errorf("schema: build descriptor set: %w", err)
	}
	c := NewCatalog()
	files.RangeFiles(func(fd protoreflect.FileDescriptor) bool {
		err = c.AddFileDescriptor(fd)
		return err == nil
	})
	if err != nil {
		return nil, err
	}
	if err := c.Resolve(); err != nil {
		return nil, err
	}
	return c, nil
}

// LoadDescriptorSet reads a serialized FileDescriptorSet, as written by
// protoc --descriptor_set_out, and builds a resolved catalog from it.
// Dependencies missing from the set are looked up in the global registry.
func LoadDescriptorSet(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("schema: read descriptor set: %w", err)
	}
	set := &descriptorpb.FileDescriptorSet{}
	if err := proto.Unmarshal(data, set); err != nil {
		return nil, fmt.Errorf("schema: decode descriptor set %s: %w", path, err)
	}

	have := make(map[string]bool, len(set.File))
	for _, f := range set.File {
		have[f.GetName()] = true
	}
	for _, f := range set.File {
		for _, dep := range f.Dependency {
			if have[dep] {
				continue
			}
			fd, err := protoregistry.GlobalFiles.FindFileByPath(dep)
			if err != nil {
				return nil, fmt.Errorf("schema: %s imports unknown file %s", f.GetName(), dep)
			}
			set.File = append(set.File, protodesc.ToFileDescriptorProto(fd))
			have[dep] = true
		}
	}
	return FromFileDescriptorSet(set)
}

// AddFileDescriptor adds every message and enum declared in fd, including
// nested declarations. Synthetic map entry messages are skipped.
func (c *Catalog) AddFileDescriptor(fd protoreflect.FileDescriptor) error {
	enums := fd.Enums()
	for i := 0; i < enums.Len(); i++ {
		if err := c.AddEnum(enumFromDescriptor(enums.Get(i))); err != nil {
			return err
		}
	}
	msgs := fd.Messages()
	for i := 0; i < msgs.Len(); i++ {
		if err := c.addMessageTree(msgs.Get(i)); err != nil {
			return err
		}
	}
	return nil
}

func (c *Catalog) addMessageTree(md protoreflect.MessageDescriptor) error {
	if md.IsMapEntry() {
		return nil
	}
	msg, err := messageFromDescriptor(md)
	if err != nil {
		return err
	}
	if err := c.AddMessage(msg); err != nil {
		return err
	}
	enums := md.Enums()
	for i := 0; i < enums.Len(); i++ {
		if err := c.AddEnum(enumFromDescriptor(enums.Get(i))); err != nil {
			return err
		}
	}
	nested := md.Messages()
	for i := 0; i < nested.Len(); i++ {
		if err := c.addMessageTree(nested.Get(i)); err != nil {
			return err
		}
	}
	return nil
}

func messageFromDescriptor(md protoreflect.MessageDescriptor) (*Message, error) {
	msg := &Message{
		Name:    string(md.FullName()),
		Package: string(md.ParentFile().Package()),
		File:    md.ParentFile().Path(),
	}
	if opts, ok := md.Options().(*descriptorpb.MessageOptions); ok {
		msg.Deprecated = opts.GetDeprecated()
	}

	ranges := md.ReservedRanges()
	for i := 0; i < ranges.Len(); i++ {
		r := ranges.Get(i)
		msg.Reserved = append(msg.Reserved, ReservedRange{Start: FieldNumber(r[0]), End: FieldNumber(r[1] - 1)})
	}
	names := md.ReservedNames()
	for i := 0; i < names.Len(); i++ {
		msg.ReservedNames = append(msg.ReservedNames, string(names.Get(i)))
	}

	fields := md.Fields()
	for i := 0; i < fields.Len(); i++ {
		f, err := fieldFromDescriptor(fields.Get(i))
		if err != nil {
			return nil, err
		}
		msg.Fields = append(msg.Fields, f)
	}
	return msg, nil
}

func fieldFromDescriptor(fd protoreflect.FieldDescriptor) (*Field, error) {
	f := &Field{
		Name:     string(fd.Name()),
		JSONName: fd.JSONName(),
		Number:   FieldNumber(fd.Number()),
	}

	elem := fd
	switch {
	case fd.IsMap():
		f.Cardinality = Map
		key, ok := protoKinds[fd.MapKey().Kind()]
		if !ok {
			return nil, fmt.Errorf("schema: unsupported map key kind %v in %s", fd.MapKey().Kind(), fd.FullName())
		}
		f.MapKey = key
		elem = fd.MapValue()
	case fd.IsList():
		f.Cardinality = Repeated
		f.Packed = fd.IsPacked()
	}

	kind, ok := protoKinds[elem.Kind()]
	if !ok {
		return nil, fmt.Errorf("schema: unsupported kind %v in %s", elem.Kind(), fd.FullName())
	}
	f.Kind = kind
	switch kind {
	case MessageKind:
		f.TypeName = "." + string(elem.Message().FullName())
	case EnumKind:
		f.TypeName = "." + string(elem.Enum().FullName())
	}

	if od := fd.ContainingOneof(); od != nil && !od.IsSynthetic() {
		f.Oneof = string(od.Name())
	}
	if opts, ok := fd.Options().(*descriptorpb.FieldOptions); ok {
		f.Deprecated = opts.GetDeprecated()
	}
	return f, nil
}

func enumFromDescriptor(ed protoreflect.EnumDescriptor) *Enum {
	e := &Enum{
		Name:    string(ed.FullName()),
		Package: string(ed.ParentFile().Package()),
		File:    ed.ParentFile().Path(),
	}
	values := ed.Values()
	for i := 0; i < values.Len(); i++ {
		v := values.Get(i)
		ev := &EnumValue{Name: string(v.Name()), Number: int32(v.Number())}
		if opts, ok := v.Options().(*descriptorpb.EnumValueOptions); ok {
			ev.Deprecated = opts.GetDeprecated()
		}
		e.Values = append(e.Values, ev)
	}
	return e
}
