package schema

import (
	"fmt"
	"sort"
	"strings"
)

// ValidationError represents a schema validation error.
type ValidationError struct {
	Position Position
	Message  string
	Severity Severity
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s: %s", e.Position, e.Severity, e.Message)
}

// ValidationErrors is returned by Catalog.Resolve when validation fails.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	switch len(e) {
	case 0:
		return "schema: no errors"
	case 1:
		return "schema: " + e[0].Error()
	}
	lines := make([]string, len(e))
	for i, err := range e {
		lines[i] = err.Error()
	}
	return fmt.Sprintf("schema: %d errors:\n  %s", len(e), strings.Join(lines, "\n  "))
}

// Severity indicates the severity of a validation error.
type Severity int

const (
	// SeverityError is a fatal error that prevents the catalog from resolving.
	SeverityError Severity = iota
	// SeverityWarning is a non-fatal issue.
	SeverityWarning
)

func (s Severity) String() string {
	switch s {
	case SeverityError:
		return "error"
	case SeverityWarning:
		return "warning"
	default:
		return "unknown"
	}
}

// Validator checks the descriptors of a catalog.
type Validator struct {
	catalog *Catalog
	errors  []ValidationError
}

// NewValidator creates a new validator for the given catalog.
func NewValidator(c *Catalog) *Validator {
	return &Validator{catalog: c}
}

// Validate performs validation and returns all errors and warnings.
func (v *Validator) Validate() []ValidationError {
	v.errors = nil

	v.checkNames()
	for _, msg := range v.catalog.messages {
		v.validateMessage(msg)
	}
	for _, enum := range v.catalog.enums {
		v.validateEnum(enum)
	}

	sort.SliceStable(v.errors, func(i, j int) bool {
		a, b := v.errors[i].Position, v.errors[j].Position
		if a.Filename != b.Filename {
			return a.Filename < b.Filename
		}
		if a.Line != b.Line {
			return a.Line < b.Line
		}
		return a.Column < b.Column
	})

	return v.errors
}

// checkNames reports empty and duplicate type names.
func (v *Validator) checkNames() {
	seen := make(map[string]Position)
	check := func(name string, pos Position) {
		if name == "" {
			v.addError(pos, "type name must not be empty")
			return
		}
		if prev, ok := seen[name]; ok {
			v.addError(pos, "duplicate type name %q (previously declared at %s)", name, prev)
			return
		}
		seen[name] = pos
	}
	for _, m := range v.catalog.messages {
		check(m.Name, m.Position)
	}
	for _, e := range v.catalog.enums {
		check(e.Name, e.Position)
	}
}

// validateMessage validates a message definition.
func (v *Validator) validateMessage(msg *Message) {
	fieldNumbers := make(map[FieldNumber]string)
	fieldNames := make(map[string]bool)
	reservedNames := make(map[string]bool, len(msg.ReservedNames))
	for _, n := range msg.ReservedNames {
		reservedNames[n] = true
	}

	for _, field := range msg.Fields {
		if field.Name == "" {
			v.addError(field.Position, "field %d of %s has no name", field.Number, msg.Name)
		}

		if field.Number < MinFieldNumber {
			v.addError(field.Position, "field number must be positive, got %d", field.Number)
		}
		if field.Number > MaxFieldNumber {
			v.addError(field.Position, "field number %d exceeds maximum (%d)", field.Number, MaxFieldNumber)
		}
		if field.Number >= FirstReservedNumber && field.Number <= LastReservedNumber {
			v.addWarning(field.Position, "field number %d is in reserved range (%d-%d)",
				field.Number, FirstReservedNumber, LastReservedNumber)
		}
		if msg.IsReserved(field.Number) {
			v.addError(field.Position, "field %q uses reserved number %d", field.Name, field.Number)
		}
		if reservedNames[field.Name] {
			v.addError(field.Position, "field name %q is reserved", field.Name)
		}

		if existing, ok := fieldNumbers[field.Number]; ok {
			v.addError(field.Position, "duplicate field number %d (also used by field %q)",
				field.Number, existing)
		} else {
			fieldNumbers[field.Number] = field.Name
		}

		if fieldNames[field.Name] {
			v.addError(field.Position, "duplicate field name %q", field.Name)
		} else {
			fieldNames[field.Name] = true
		}

		v.validateFieldType(msg, field)

		switch field.Cardinality {
		case Singular:
		case Repeated:
			if field.Oneof != "" {
				v.addError(field.Position, "repeated field %s cannot be a oneof member", field.Name)
			}
		case Map:
			if !field.MapKey.IsValidMapKey() {
				v.addError(field.Position, "map key type %v is not allowed in field %s.%s",
					field.MapKey, msg.Name, field.Name)
			}
			if field.Oneof != "" {
				v.addError(field.Position, "map field %s cannot be a oneof member", field.Name)
			}
		default:
			v.addError(field.Position, "field %s has invalid cardinality %v", field.Name, field.Cardinality)
		}

		if field.Packed && !(field.Cardinality == Repeated && v.isNumeric(msg, field)) {
			v.addError(field.Position, "packed is only valid on repeated numeric fields (%s.%s)",
				msg.Name, field.Name)
		}
	}
}

// validateFieldType checks the field kind and that type references resolve
// to a descriptor of the right sort.
func (v *Validator) validateFieldType(msg *Message, field *Field) {
	switch field.Kind {
	case EnumKind, MessageKind, InvalidKind:
		if field.TypeName == "" {
			if field.Kind == InvalidKind {
				v.addError(field.Position, "field %s.%s has no type", msg.Name, field.Name)
			} else {
				v.addError(field.Position, "field %s.%s of kind %v needs a type name",
					msg.Name, field.Name, field.Kind)
			}
			return
		}
		target := v.catalog.lookup(msg.Name, field.TypeName)
		switch t := target.(type) {
		case nil:
			v.addError(field.Position, "undefined type %q in field %s.%s", field.TypeName, msg.Name, field.Name)
		case *Message:
			if field.Kind == EnumKind {
				v.addError(field.Position, "field %s.%s declared as enum but %q is a message",
					msg.Name, field.Name, t.Name)
			}
		case *Enum:
			if field.Kind == MessageKind {
				v.addError(field.Position, "field %s.%s declared as message but %q is an enum",
					msg.Name, field.Name, t.Name)
			}
		}
	default:
		if !field.Kind.IsValid() {
			v.addError(field.Position, "field %s.%s has invalid kind %v", msg.Name, field.Name, field.Kind)
		}
	}
}

func (v *Validator) isNumeric(msg *Message, field *Field) bool {
	if field.Kind == InvalidKind && field.TypeName != "" {
		_, ok := v.catalog.lookup(msg.Name, field.TypeName).(*Enum)
		return ok
	}
	return field.Kind.IsNumeric()
}

// validateEnum validates an enum definition.
func (v *Validator) validateEnum(enum *Enum) {
	valueNumbers := make(map[int32]string)
	valueNames := make(map[string]bool)

	hasZero := false
	for _, val := range enum.Values {
		if val.Number == 0 {
			hasZero = true
			break
		}
	}
	if !hasZero && len(enum.Values) > 0 {
		v.addWarning(enum.Position, "enum %q should have a zero value (conventionally for unknown/default)", enum.Name)
	}
	if len(enum.Values) == 0 {
		v.addWarning(enum.Position, "enum %q has no values", enum.Name)
	}

	for _, val := range enum.Values {
		if existing, ok := valueNumbers[val.Number]; ok {
			v.addWarning(val.Position, "enum value %q aliases %q (number %d)", val.Name, existing, val.Number)
		} else {
			valueNumbers[val.Number] = val.Name
		}

		if valueNames[val.Name] {
			v.addError(val.Position, "duplicate enum value name %q", val.Name)
		} else {
			valueNames[val.Name] = true
		}
	}
}

func (v *Validator) addError(pos Position, format string, args ...any) {
	v.errors = append(v.errors, ValidationError{
		Position: pos,
		Message:  fmt.Sprintf(format, args...),
		Severity: SeverityError,
	})
}

func (v *Validator) addWarning(pos Position, format string, args ...any) {
	v.errors = append(v.errors, ValidationError{
		Position: pos,
		Message:  fmt.Sprintf(format, args...),
		Severity: SeverityWarning,
	})
}

// HasErrors returns true if there are any errors (not warnings).
func (v *Validator) HasErrors() bool {
	for _, err := range v.errors {
		if err.Severity == SeverityError {
			return true
		}
	}
	return false
}

// Errors returns only the error-severity issues.
func (v *Validator) Errors() []ValidationError {
	var errors []ValidationError
	for _, err := range v.errors {
		if err.Severity == SeverityError {
			errors = append(errors, err)
		}
	}
	return errors
}

// Warnings returns only the warning-severity issues.
func (v *Validator) Warnings() []ValidationError {
	var warnings []ValidationError
	for _, err := range v.errors {
		if err.Severity == SeverityWarning {
			warnings = append(warnings, err)
		}
	}
	return warnings
}

// Validate is a convenience function that validates a catalog without
// resolving it.
func Validate(c *Catalog) []ValidationError {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return NewValidator(c).Validate()
}
