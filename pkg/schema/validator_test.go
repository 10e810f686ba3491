package schema

import (
	"strings"
	"testing"
)

func hasIssue(issues []ValidationError, sev Severity, substr string) bool {
	for _, e := range issues {
		if e.Severity == sev && strings.Contains(e.Message, substr) {
			return true
		}
	}
	return false
}

func TestValidateMessageErrors(t *testing.T) {
	tests := []struct {
		name   string
		fields []*Field
		extra  func(m *Message)
		want   string
	}{
		{
			name:   "zero field number",
			fields: []*Field{{Name: "a", Number: 0, Kind: Int32Kind}},
			want:   "must be positive",
		},
		{
			name:   "field number overflow",
			fields: []*Field{{Name: "a", Number: MaxFieldNumber + 1, Kind: Int32Kind}},
			want:   "exceeds maximum",
		},
		{
			name: "duplicate number",
			fields: []*Field{
				{Name: "a", Number: 1, Kind: Int32Kind},
				{Name: "b", Number: 1, Kind: StringKind},
			},
			want: "duplicate field number 1",
		},
		{
			name: "duplicate name",
			fields: []*Field{
				{Name: "a", Number: 1, Kind: Int32Kind},
				{Name: "a", Number: 2, Kind: StringKind},
			},
			want: "duplicate field name",
		},
		{
			name:   "missing name",
			fields: []*Field{{Number: 1, Kind: Int32Kind}},
			want:   "has no name",
		},
		{
			name:   "reserved number",
			fields: []*Field{{Name: "a", Number: 5, Kind: Int32Kind}},
			extra:  func(m *Message) { m.Reserved = []ReservedRange{{Start: 4, End: 6}} },
			want:   "reserved number 5",
		},
		{
			name:   "reserved name",
			fields: []*Field{{Name: "owner", Number: 1, Kind: StringKind}},
			extra:  func(m *Message) { m.ReservedNames = []string{"owner"} },
			want:   "is reserved",
		},
		{
			name:   "undefined type",
			fields: []*Field{{Name: "a", Number: 1, TypeName: "Nope"}},
			want:   `undefined type "Nope"`,
		},
		{
			name:   "no type",
			fields: []*Field{{Name: "a", Number: 1}},
			want:   "has no type",
		},
		{
			name:   "enum kind without type name",
			fields: []*Field{{Name: "a", Number: 1, Kind: EnumKind}},
			want:   "needs a type name",
		},
		{
			name:   "enum kind naming a message",
			fields: []*Field{{Name: "a", Number: 1, Kind: EnumKind, TypeName: "M"}},
			want:   "declared as enum",
		},
		{
			name:   "invalid map key",
			fields: []*Field{{Name: "a", Number: 1, Kind: StringKind, Cardinality: Map, MapKey: DoubleKind}},
			want:   "map key type double",
		},
		{
			name:   "repeated oneof member",
			fields: []*Field{{Name: "a", Number: 1, Kind: StringKind, Cardinality: Repeated, Oneof: "o"}},
			want:   "cannot be a oneof member",
		},
		{
			name:   "packed string",
			fields: []*Field{{Name: "a", Number: 1, Kind: StringKind, Cardinality: Repeated, Packed: true}},
			want:   "packed is only valid",
		},
		{
			name:   "packed singular",
			fields: []*Field{{Name: "a", Number: 1, Kind: Int32Kind, Packed: true}},
			want:   "packed is only valid",
		},
		{
			name:   "invalid kind",
			fields: []*Field{{Name: "a", Number: 1, Kind: Kind(77)}},
			want:   "invalid kind",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := &Message{Name: "M", Fields: tt.fields}
			if tt.extra != nil {
				tt.extra(m)
			}
			issues := Validate(NewCatalog(m))
			if !hasIssue(issues, SeverityError, tt.want) {
				t.Errorf("expected error containing %q, got %v", tt.want, issues)
			}
		})
	}
}

func TestValidatePackedEnumReference(t *testing.T) {
	c := NewCatalog(&Message{Name: "M", Fields: []*Field{
		{Name: "colors", Number: 1, TypeName: "Color", Cardinality: Repeated, Packed: true},
	}})
	_ = c.AddEnum(&Enum{Name: "Color", Values: []*EnumValue{{Name: "NONE", Number: 0}}})

	v := NewValidator(c)
	v.Validate()
	if v.HasErrors() {
		t.Errorf("packed enum list should be valid: %v", v.Errors())
	}
}

func TestValidateWarnings(t *testing.T) {
	c := NewCatalog(&Message{Name: "M", Fields: []*Field{
		{Name: "a", Number: 19500, Kind: Int32Kind},
	}})
	_ = c.AddEnum(&Enum{Name: "NoZero", Values: []*EnumValue{{Name: "ONE", Number: 1}}})
	_ = c.AddEnum(&Enum{Name: "Empty"})
	_ = c.AddEnum(&Enum{Name: "Alias", Values: []*EnumValue{
		{Name: "A", Number: 0},
		{Name: "B", Number: 0},
	}})

	v := NewValidator(c)
	v.Validate()
	if v.HasErrors() {
		t.Fatalf("unexpected errors: %v", v.Errors())
	}
	warnings := v.Warnings()
	for _, want := range []string{"reserved range", "should have a zero value", "has no values", "aliases"} {
		if !hasIssue(warnings, SeverityWarning, want) {
			t.Errorf("missing warning %q in %v", want, warnings)
		}
	}

	// warnings alone do not block resolution
	if err := c.Resolve(); err != nil {
		t.Errorf("Resolve() error = %v", err)
	}
}

func TestValidateEnumDuplicateName(t *testing.T) {
	c := NewCatalog()
	_ = c.AddEnum(&Enum{Name: "E", Values: []*EnumValue{
		{Name: "A", Number: 0},
		{Name: "A", Number: 1},
	}})
	if !hasIssue(Validate(c), SeverityError, "duplicate enum value name") {
		t.Error("expected duplicate enum value name error")
	}
}

func TestValidateDuplicateTypeNames(t *testing.T) {
	c := NewCatalog(&Message{Name: "T"}, &Message{Name: "T"})
	_ = c.AddEnum(&Enum{Name: "", Values: []*EnumValue{{Name: "Z", Number: 0}}})

	issues := Validate(c)
	if !hasIssue(issues, SeverityError, `duplicate type name "T"`) {
		t.Errorf("expected duplicate type error, got %v", issues)
	}
	if !hasIssue(issues, SeverityError, "must not be empty") {
		t.Errorf("expected empty name error, got %v", issues)
	}
}

func TestValidateSortsByPosition(t *testing.T) {
	c := NewCatalog(&Message{Name: "M", Fields: []*Field{
		{Name: "b", Number: 0, Kind: Int32Kind, Position: Position{Filename: "x.proto", Line: 9}},
		{Name: "a", Number: -1, Kind: Int32Kind, Position: Position{Filename: "x.proto", Line: 3}},
	}})
	issues := Validate(c)
	if len(issues) < 2 {
		t.Fatalf("got %d issues", len(issues))
	}
	if issues[0].Position.Line != 3 || issues[1].Position.Line != 9 {
		t.Errorf("issues not sorted: %v", issues)
	}
	if got := issues[0].Error(); !strings.HasPrefix(got, "x.proto:3:0: error:") {
		t.Errorf("Error() = %q", got)
	}
}

func TestValidationErrorsMessage(t *testing.T) {
	errs := ValidationErrors{
		{Message: "first", Severity: SeverityError},
		{Message: "second", Severity: SeverityError},
	}
	got := errs.Error()
	if !strings.HasPrefix(got, "schema: 2 errors:") || !strings.Contains(got, "second") {
		t.Errorf("Error() = %q", got)
	}
	if got := errs[:1].Error(); got != "schema: -: error: first" {
		t.Errorf("single Error() = %q", got)
	}
}
