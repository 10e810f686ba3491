package schema

import (
	"errors"
	"strings"
	"sync"
	"testing"
)

// volumeCatalog declares a small storage schema exercising nesting, maps,
// oneofs and deferred enum-or-message references.
func volumeCatalog() *Catalog {
	c := NewCatalog(
		&Message{
			Name:    "storage.v1.Volume",
			Package: "storage.v1",
			Fields: []*Field{
				{Name: "name", Number: 1, Kind: StringKind},
				{Name: "size_bytes", Number: 2, Kind: Uint64Kind},
				{Name: "labels", Number: 3, Kind: StringKind, Cardinality: Map, MapKey: StringKind},
				{Name: "state", Number: 4, TypeName: "State"},
				{Name: "snapshots", Number: 5, TypeName: "Snapshot", Cardinality: Repeated},
				{Name: "block_ids", Number: 6, Kind: Sint64Kind, Cardinality: Repeated, Packed: true},
				{Name: "nfs_path", Number: 7, Kind: StringKind, Oneof: "source"},
				{Name: "iscsi_lun", Number: 8, Kind: Uint32Kind, Oneof: "source"},
			},
			Reserved:      []ReservedRange{{Start: 9, End: 11}},
			ReservedNames: []string{"owner"},
		},
		&Message{
			Name:    "storage.v1.Volume.Snapshot",
			Package: "storage.v1",
			Fields: []*Field{
				{Name: "id", Number: 1, Kind: StringKind},
				{Name: "created_at", Number: 2, Kind: Int64Kind},
			},
		},
	)
	_ = c.AddEnum(&Enum{
		Name:    "storage.v1.Volume.State",
		Package: "storage.v1",
		Values: []*EnumValue{
			{Name: "STATE_UNKNOWN", Number: 0},
			{Name: "STATE_ACTIVE", Number: 1},
			{Name: "STATE_DELETED", Number: 2},
		},
	})
	return c
}

func TestResolveLinksReferences(t *testing.T) {
	c := volumeCatalog()
	if err := c.Resolve(); err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if !c.Resolved() {
		t.Fatal("Resolved() = false after Resolve")
	}

	vol := c.Message("storage.v1.Volume")
	if vol == nil {
		t.Fatal("Volume not found")
	}
	if vol.Catalog() != c {
		t.Error("Volume.Catalog() does not point back to the catalog")
	}

	state := vol.FieldByName("state")
	if state.Kind != EnumKind {
		t.Errorf("state kind = %v, want enum", state.Kind)
	}
	if state.Enum() == nil || state.Enum().Name != "storage.v1.Volume.State" {
		t.Errorf("state enum = %v", state.Enum())
	}

	snaps := vol.Field(5)
	if snaps.Kind != MessageKind || snaps.Message() == nil {
		t.Fatalf("snapshots not linked: kind=%v msg=%v", snaps.Kind, snaps.Message())
	}
	if snaps.Message().Name != "storage.v1.Volume.Snapshot" {
		t.Errorf("snapshots message = %s", snaps.Message().Name)
	}
	if snaps.Parent() != vol {
		t.Error("field parent not set")
	}
	if got := snaps.FullName(); got != "storage.v1.Volume.snapshots" {
		t.Errorf("FullName() = %q", got)
	}
}

func TestResolveDefaultsJSONNames(t *testing.T) {
	c := volumeCatalog().MustResolve()
	vol := c.Message("storage.v1.Volume")

	f := vol.Field(2)
	if f.JSONName != "sizeBytes" {
		t.Errorf("JSONName = %q, want sizeBytes", f.JSONName)
	}
	if vol.FieldByName("sizeBytes") != f {
		t.Error("FieldByName did not find the field by JSON name")
	}
	if vol.FieldByName("size_bytes") != f {
		t.Error("FieldByName did not find the field by name")
	}
}

func TestResolveMapEntry(t *testing.T) {
	c := volumeCatalog().MustResolve()
	labels := c.Message("storage.v1.Volume").FieldByName("labels")

	if !labels.IsMap() || labels.IsList() {
		t.Fatal("labels should be a map")
	}
	entry := labels.MapEntry()
	if entry == nil {
		t.Fatal("MapEntry() = nil")
	}
	if !entry.IsMapEntry() {
		t.Error("entry.IsMapEntry() = false")
	}
	if entry.Name != "storage.v1.Volume.LabelsEntry" {
		t.Errorf("entry name = %q", entry.Name)
	}
	if k := entry.Field(1); k == nil || k.Kind != StringKind || k.Name != "key" {
		t.Errorf("entry key = %+v", k)
	}
	if v := entry.Field(2); v == nil || v.Kind != StringKind || v.Name != "value" {
		t.Errorf("entry value = %+v", v)
	}
	if labels.WireType().String() != "LengthDelimited" {
		t.Errorf("map wire type = %v", labels.WireType())
	}
	if got := labels.TypeString(); got != "map<string, string>" {
		t.Errorf("TypeString() = %q", got)
	}
}

func TestResolveOneofs(t *testing.T) {
	c := volumeCatalog().MustResolve()
	vol := c.Message("storage.v1.Volume")

	if got := vol.Oneofs(); len(got) != 1 || got[0] != "source" {
		t.Fatalf("Oneofs() = %v", got)
	}
	members := vol.OneofFields("source")
	if len(members) != 2 || members[0].Number != 7 || members[1].Number != 8 {
		t.Errorf("OneofFields() = %v", members)
	}
}

func TestResolveTwiceIsNoop(t *testing.T) {
	c := volumeCatalog()
	if err := c.Resolve(); err != nil {
		t.Fatal(err)
	}
	if err := c.Resolve(); err != nil {
		t.Fatalf("second Resolve() error = %v", err)
	}
}

func TestCatalogFrozen(t *testing.T) {
	c := volumeCatalog().MustResolve()
	if err := c.AddMessage(&Message{Name: "Late"}); !errors.Is(err, ErrCatalogFrozen) {
		t.Errorf("AddMessage after Resolve = %v, want ErrCatalogFrozen", err)
	}
	if err := c.AddEnum(&Enum{Name: "Late"}); !errors.Is(err, ErrCatalogFrozen) {
		t.Errorf("AddEnum after Resolve = %v, want ErrCatalogFrozen", err)
	}
}

func TestLookupScoping(t *testing.T) {
	c := NewCatalog(
		&Message{Name: "a.Inner", Fields: []*Field{{Name: "x", Number: 1, Kind: Int32Kind}}},
		&Message{Name: "a.b.Inner", Fields: []*Field{{Name: "y", Number: 1, Kind: Int32Kind}}},
		&Message{Name: "a.b.Outer", Fields: []*Field{
			{Name: "near", Number: 1, TypeName: "Inner"},
			{Name: "far", Number: 2, TypeName: ".a.Inner"},
			{Name: "partial", Number: 3, TypeName: "a.Inner"},
		}},
	).MustResolve()

	outer := c.Message("a.b.Outer")
	tests := []struct {
		field string
		want  string
	}{
		{"near", "a.b.Inner"},
		{"far", "a.Inner"},
		{"partial", "a.Inner"},
	}
	for _, tt := range tests {
		t.Run(tt.field, func(t *testing.T) {
			f := outer.FieldByName(tt.field)
			if f.Message() == nil || f.Message().Name != tt.want {
				t.Errorf("%s resolved to %v, want %s", tt.field, f.Message(), tt.want)
			}
		})
	}
}

func TestCatalogLookup(t *testing.T) {
	c := NewCatalog(
		&Message{Name: "x.Thing"},
		&Message{Name: "y.Thing"},
		&Message{Name: "y.Other"},
	).MustResolve()

	if m, err := c.Lookup("y.Other"); err != nil || m.Name != "y.Other" {
		t.Errorf("Lookup(full) = %v, %v", m, err)
	}
	if m, err := c.Lookup(".y.Other"); err != nil || m.Name != "y.Other" {
		t.Errorf("Lookup(dotted) = %v, %v", m, err)
	}
	if m, err := c.Lookup("Other"); err != nil || m.Name != "y.Other" {
		t.Errorf("Lookup(short) = %v, %v", m, err)
	}
	if _, err := c.Lookup("Thing"); err == nil || !strings.Contains(err.Error(), "ambiguous") {
		t.Errorf("Lookup(ambiguous) error = %v", err)
	}
	if _, err := c.Lookup("Missing"); err == nil {
		t.Error("Lookup(missing) should fail")
	}
}

func TestMessagesSorted(t *testing.T) {
	c := NewCatalog(&Message{Name: "c"}, &Message{Name: "a"}, &Message{Name: "b"})
	msgs := c.Messages()
	for i, want := range []string{"a", "b", "c"} {
		if msgs[i].Name != want {
			t.Errorf("Messages()[%d] = %s, want %s", i, msgs[i].Name, want)
		}
	}
}

func TestResolveReturnsValidationErrors(t *testing.T) {
	c := NewCatalog(&Message{Name: "Bad", Fields: []*Field{
		{Name: "a", Number: 1, Kind: Int32Kind},
		{Name: "b", Number: 1, Kind: Int32Kind},
	}})
	err := c.Resolve()
	var verrs ValidationErrors
	if !errors.As(err, &verrs) {
		t.Fatalf("Resolve() error = %v, want ValidationErrors", err)
	}
	if len(verrs) != 1 || !strings.Contains(verrs[0].Message, "duplicate field number") {
		t.Errorf("errors = %v", verrs)
	}
	if c.Resolved() {
		t.Error("catalog marked resolved after failure")
	}
}

func TestMustResolvePanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("MustResolve did not panic on an invalid catalog")
		}
	}()
	NewCatalog(&Message{Name: "Bad", Fields: []*Field{{Name: "x", Number: 0, Kind: BoolKind}}}).MustResolve()
}

func TestCatalogConcurrentReads(t *testing.T) {
	c := volumeCatalog().MustResolve()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				vol := c.Message("storage.v1.Volume")
				if vol.Field(4).Enum().ValueName(1) != "STATE_ACTIVE" {
					t.Error("unexpected enum value name")
					return
				}
				_ = c.Messages()
			}
		}()
	}
	wg.Wait()
}

func TestEnumLookups(t *testing.T) {
	e := &Enum{Name: "pkg.Color", Values: []*EnumValue{
		{Name: "RED", Number: 0},
		{Name: "CRIMSON", Number: 0},
		{Name: "BLUE", Number: 2},
	}}

	check := func(t *testing.T) {
		if got := e.ValueName(0); got != "RED" {
			t.Errorf("ValueName(0) = %q, want first declared alias", got)
		}
		if got := e.ValueName(7); got != "" {
			t.Errorf("ValueName(7) = %q, want empty", got)
		}
		if v := e.ByName("BLUE"); v == nil || v.Number != 2 {
			t.Errorf("ByName(BLUE) = %v", v)
		}
		if e.ShortName() != "Color" {
			t.Errorf("ShortName() = %q", e.ShortName())
		}
	}
	t.Run("unlinked", check)
	linkEnum(e)
	t.Run("linked", check)
}
