package extract

import (
	"fmt"
	"go/token"
	"go/types"
	"math"
	"sort"

	"github.com/blockberries/wiremsg/internal/naming"
	"github.com/blockberries/wiremsg/pkg/schema"
)

// SchemaBuilder converts collected type information into a catalog.
type SchemaBuilder struct {
	types    map[string]*TypeInfo
	enums    map[string]*EnumInfo
	pkg      string
	warnings []string
}

// NewSchemaBuilder creates a new schema builder.
func NewSchemaBuilder(types map[string]*TypeInfo, enums map[string]*EnumInfo) *SchemaBuilder {
	// an integer type without constants is just an integer
	live := make(map[string]*EnumInfo, len(enums))
	for name, e := range enums {
		if len(e.Values) > 0 {
			live[name] = e
		}
	}
	return &SchemaBuilder{types: types, enums: live}
}

// Warnings returns any warnings generated during schema building.
func (b *SchemaBuilder) Warnings() []string {
	return b.warnings
}

func (b *SchemaBuilder) addWarning(format string, args ...any) {
	b.warnings = append(b.warnings, fmt.Sprintf(format, args...))
}

// Build constructs a resolved catalog from the collected types. Every
// message and enum is declared in packageName.
func (b *SchemaBuilder) Build(packageName string) (*schema.Catalog, error) {
	b.pkg = packageName
	cat := schema.NewCatalog()

	for _, e := range b.buildEnums() {
		if err := cat.AddEnum(e); err != nil {
			return nil, err
		}
	}
	for _, m := range b.buildMessages() {
		if err := cat.AddMessage(m); err != nil {
			return nil, err
		}
	}

	if err := cat.Resolve(); err != nil {
		return nil, fmt.Errorf("extracted schema is invalid: %w", err)
	}
	return cat, nil
}

func (b *SchemaBuilder) qualify(name string) string {
	if b.pkg == "" {
		return name
	}
	return b.pkg + "." + name
}

func (b *SchemaBuilder) buildEnums() []*schema.Enum {
	var names []string
	for name := range b.enums {
		names = append(names, name)
	}
	sort.Strings(names)

	var out []*schema.Enum
	for _, name := range names {
		enum := b.enums[name]
		schemaEnum := &schema.Enum{
			Name:     b.qualify(enum.Name),
			Package:  b.pkg,
			Position: position(enum.Pos),
		}

		values := make([]*EnumValueInfo, len(enum.Values))
		copy(values, enum.Values)
		sort.SliceStable(values, func(i, j int) bool {
			if values[i].Number != values[j].Number {
				return values[i].Number < values[j].Number
			}
			return values[i].Name < values[j].Name
		})

		for _, val := range values {
			if val.Number < math.MinInt32 || val.Number > math.MaxInt32 {
				b.addWarning("enum %s: constant %s = %d does not fit in int32; skipped", enum.Name, val.Name, val.Number)
				continue
			}
			schemaEnum.Values = append(schemaEnum.Values, &schema.EnumValue{
				Name:     naming.ToUpperSnakeCase(val.Name),
				Number:   int32(val.Number),
				Position: position(val.Pos),
			})
		}

		out = append(out, schemaEnum)
	}
	return out
}

func (b *SchemaBuilder) buildMessages() []*schema.Message {
	var names []string
	for name := range b.types {
		names = append(names, name)
	}
	sort.Strings(names)

	var out []*schema.Message
	for _, name := range names {
		typ := b.types[name]
		msg := &schema.Message{
			Name:     b.qualify(typ.Name),
			Package:  b.pkg,
			Position: position(typ.Pos),
		}

		fields := make([]*FieldInfo, len(typ.Fields))
		copy(fields, typ.Fields)
		sort.SliceStable(fields, func(i, j int) bool {
			return fields[i].Tag.Number < fields[j].Tag.Number
		})

		usedFieldNums := make(map[int]string)
		for _, field := range fields {
			if existing, exists := usedFieldNums[field.Tag.Number]; exists {
				b.addWarning("field number collision in type '%s': fields '%s' and '%s' both have field number %d",
					typ.Name, existing, field.Name, field.Tag.Number)
			}
			usedFieldNums[field.Tag.Number] = field.Name
		}

		for _, field := range fields {
			f, err := b.buildField(field)
			if err != nil {
				b.addWarning("%s.%s: %v; field skipped", typ.Name, field.Name, err)
				continue
			}
			msg.Fields = append(msg.Fields, f)
		}

		out = append(out, msg)
	}
	return out
}

func (b *SchemaBuilder) buildField(field *FieldInfo) (*schema.Field, error) {
	tag := field.Tag
	name := tag.Name
	if name == "" {
		name = naming.ToSnakeCase(field.Name)
	}
	f := &schema.Field{
		Name:       name,
		Number:     schema.FieldNumber(tag.Number),
		Oneof:      tag.Oneof,
		Deprecated: tag.Deprecated,
		Position:   position(field.Pos),
	}

	if err := b.shape(f, field.GoType); err != nil {
		return nil, err
	}

	if tag.ZigZag || tag.Fixed {
		k, err := encodingKind(f.Kind, tag)
		if err != nil {
			return nil, err
		}
		f.Kind = k
	}

	if tag.Packed {
		if f.Cardinality == schema.Repeated && f.Kind.IsNumeric() {
			f.Packed = true
		} else {
			b.addWarning("%s: packed ignored on a %s field", field.Name, f.TypeString())
		}
	}
	return f, nil
}

// shape fills in kind, cardinality and type reference for a Go field type.
func (b *SchemaBuilder) shape(f *schema.Field, t types.Type) error {
	t = unpointer(t)
	if b.isKnown(t) {
		return b.element(f, t)
	}

	switch u := t.Underlying().(type) {
	case *types.Slice:
		if isByte(u.Elem()) {
			f.Kind = schema.BytesKind
			return nil
		}
		f.Cardinality = schema.Repeated
		return b.element(f, u.Elem())

	case *types.Array:
		if isByte(u.Elem()) {
			f.Kind = schema.BytesKind
			return nil
		}
		f.Cardinality = schema.Repeated
		return b.element(f, u.Elem())

	case *types.Map:
		key := &schema.Field{}
		if err := b.element(key, u.Key()); err != nil {
			return fmt.Errorf("map key: %w", err)
		}
		if !key.Kind.IsValidMapKey() {
			return fmt.Errorf("map key type %s is not allowed", u.Key())
		}
		f.Cardinality = schema.Map
		f.MapKey = key.Kind
		return b.element(f, u.Elem())
	}

	return b.element(f, t)
}

// element resolves a single (non-collection) value type.
func (b *SchemaBuilder) element(f *schema.Field, t types.Type) error {
	t = unpointer(t)

	if named, ok := t.(*types.Named); ok {
		name := qualifiedName(named)
		if e, ok := b.enums[name]; ok {
			f.Kind = schema.EnumKind
			f.TypeName = e.Name
			return nil
		}
		if m, ok := b.types[name]; ok {
			f.Kind = schema.MessageKind
			f.TypeName = m.Name
			return nil
		}
	}

	switch u := t.Underlying().(type) {
	case *types.Basic:
		k, err := b.basicKind(u)
		if err != nil {
			return err
		}
		f.Kind = k
		return nil
	case *types.Slice:
		if isByte(u.Elem()) {
			f.Kind = schema.BytesKind
			return nil
		}
		return fmt.Errorf("nested collection %s is not supported", t)
	case *types.Array:
		if isByte(u.Elem()) {
			f.Kind = schema.BytesKind
			return nil
		}
		return fmt.Errorf("nested collection %s is not supported", t)
	case *types.Map:
		return fmt.Errorf("nested collection %s is not supported", t)
	case *types.Struct:
		return fmt.Errorf("struct type %s is not among the extracted types", t)
	default:
		return fmt.Errorf("type %s has no wire representation", t)
	}
}

func (b *SchemaBuilder) isKnown(t types.Type) bool {
	named, ok := t.(*types.Named)
	if !ok {
		return false
	}
	name := qualifiedName(named)
	_, isEnum := b.enums[name]
	_, isType := b.types[name]
	return isEnum || isType
}

func (b *SchemaBuilder) basicKind(t *types.Basic) (schema.Kind, error) {
	switch t.Kind() {
	case types.Bool:
		return schema.BoolKind, nil
	case types.Int8, types.Int16, types.Int32:
		return schema.Int32Kind, nil
	case types.Int:
		b.addWarning("type 'int' is platform-dependent (32 or 64 bits); " +
			"mapped to int64, consider using explicit int32 or int64 for cross-platform compatibility")
		return schema.Int64Kind, nil
	case types.Int64:
		return schema.Int64Kind, nil
	case types.Uint8, types.Uint16, types.Uint32:
		return schema.Uint32Kind, nil
	case types.Uint, types.Uintptr:
		b.addWarning("type 'uint' is platform-dependent (32 or 64 bits); " +
			"mapped to uint64, consider using explicit uint32 or uint64 for cross-platform compatibility")
		return schema.Uint64Kind, nil
	case types.Uint64:
		return schema.Uint64Kind, nil
	case types.Float32:
		return schema.FloatKind, nil
	case types.Float64:
		return schema.DoubleKind, nil
	case types.String:
		return schema.StringKind, nil
	default:
		return schema.InvalidKind, fmt.Errorf("type %s has no wire representation", t)
	}
}

// encodingKind applies the zigzag or fixed tag option to an integer kind.
func encodingKind(k schema.Kind, tag *StructTag) (schema.Kind, error) {
	switch {
	case tag.ZigZag && k == schema.Int32Kind:
		return schema.Sint32Kind, nil
	case tag.ZigZag && k == schema.Int64Kind:
		return schema.Sint64Kind, nil
	case tag.Fixed && k == schema.Int32Kind:
		return schema.Sfixed32Kind, nil
	case tag.Fixed && k == schema.Int64Kind:
		return schema.Sfixed64Kind, nil
	case tag.Fixed && k == schema.Uint32Kind:
		return schema.Fixed32Kind, nil
	case tag.Fixed && k == schema.Uint64Kind:
		return schema.Fixed64Kind, nil
	}
	opt := "zigzag"
	if tag.Fixed {
		opt = "fixed"
	}
	return k, fmt.Errorf("wire tag option %s does not apply to %s", opt, k)
}

func unpointer(t types.Type) types.Type {
	for {
		ptr, ok := t.(*types.Pointer)
		if !ok {
			return t
		}
		t = ptr.Elem()
	}
}

func isByte(t types.Type) bool {
	basic, ok := t.(*types.Basic)
	return ok && basic.Kind() == types.Byte
}

func qualifiedName(named *types.Named) string {
	if named.Obj().Pkg() == nil {
		return named.Obj().Name()
	}
	return named.Obj().Pkg().Path() + "." + named.Obj().Name()
}

func position(p token.Position) schema.Position {
	return schema.Position{
		Filename: p.Filename,
		Line:     p.Line,
		Column:   p.Column,
		Offset:   p.Offset,
	}
}
