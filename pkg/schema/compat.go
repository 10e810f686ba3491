package schema

import (
	"fmt"
	"sort"
)

// BreakingChangeType indicates the kind of breaking change detected.
type BreakingChangeType int

const (
	// FieldTypeChanged indicates a field's kind changed to one that decodes differently.
	FieldTypeChanged BreakingChangeType = iota
	// WireTypeChanged indicates a field's wire type changed.
	WireTypeChanged
	// CardinalityChanged indicates a field moved between map and non-map.
	CardinalityChanged
	// ReservedNumberUsed indicates a field number reserved in the old catalog is used again.
	ReservedNumberUsed
	// EnumValueReused indicates an enum value number was reused with a different name.
	EnumValueReused
	// MessageRemoved indicates a message was removed.
	MessageRemoved
	// EnumRemoved indicates an enum was removed.
	EnumRemoved
)

// String returns a human-readable description of the breaking change type.
func (t BreakingChangeType) String() string {
	switch t {
	case FieldTypeChanged:
		return "field type changed"
	case WireTypeChanged:
		return "wire type changed"
	case CardinalityChanged:
		return "cardinality changed"
	case ReservedNumberUsed:
		return "reserved number used"
	case EnumValueReused:
		return "enum value number reused"
	case MessageRemoved:
		return "message removed"
	case EnumRemoved:
		return "enum removed"
	default:
		return "unknown breaking change"
	}
}

// BreakingChange represents an incompatible schema change.
type BreakingChange struct {
	// Type is the kind of breaking change.
	Type BreakingChangeType
	// Message describes the specific change.
	Message string
	// Location identifies where in the schema the change occurred.
	Location string
}

// Error returns the breaking change as an error string.
func (b BreakingChange) Error() string {
	if b.Location != "" {
		return fmt.Sprintf("%s: %s at %s", b.Type, b.Message, b.Location)
	}
	return fmt.Sprintf("%s: %s", b.Type, b.Message)
}

// CompatibilityReport contains the results of a schema compatibility check.
type CompatibilityReport struct {
	// Breaking contains all breaking changes detected.
	Breaking []BreakingChange
	// Warnings contains non-breaking but notable changes.
	Warnings []string
}

// IsCompatible returns true if no breaking changes were detected.
func (r *CompatibilityReport) IsCompatible() bool {
	return len(r.Breaking) == 0
}

func (r *CompatibilityReport) breaking(t BreakingChangeType, loc, format string, args ...any) {
	r.Breaking = append(r.Breaking, BreakingChange{
		Type:     t,
		Message:  fmt.Sprintf(format, args...),
		Location: loc,
	})
}

func (r *CompatibilityReport) warn(format string, args ...any) {
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
}

// CheckCompatibility compares two catalogs and returns a compatibility report.
// The old catalog is the deployed version and the new one is the proposed
// version; bytes written by either must stay readable by the other.
func CheckCompatibility(oldCat, newCat *Catalog) *CompatibilityReport {
	report := &CompatibilityReport{}

	for _, oldMsg := range oldCat.Messages() {
		newMsg := newCat.Message(oldMsg.Name)
		if newMsg == nil {
			report.breaking(MessageRemoved, oldMsg.Name, "message %q was removed", oldMsg.Name)
			continue
		}
		checkMessageCompat(oldMsg, newMsg, report)
	}

	for _, oldEnum := range oldCat.Enums() {
		newEnum := newCat.Enum(oldEnum.Name)
		if newEnum == nil {
			report.breaking(EnumRemoved, oldEnum.Name, "enum %q was removed", oldEnum.Name)
			continue
		}
		checkEnumCompat(oldEnum, newEnum, report)
	}

	return report
}

// checkMessageCompat checks for breaking changes between two message versions.
func checkMessageCompat(oldMsg, newMsg *Message, report *CompatibilityReport) {
	newFields := make(map[FieldNumber]*Field, len(newMsg.Fields))
	for _, f := range newMsg.Fields {
		newFields[f.Number] = f
	}

	for _, oldF := range sortedFields(oldMsg) {
		loc := oldMsg.Name + "." + oldF.Name
		newF, exists := newFields[oldF.Number]
		if !exists {
			if newMsg.IsReserved(oldF.Number) {
				report.warn("field %s (%d) was removed and reserved", loc, oldF.Number)
			} else {
				report.warn("field %s (%d) was removed without reserving its number", loc, oldF.Number)
			}
			continue
		}
		checkFieldCompat(loc, oldF, newF, report)
	}

	for _, newF := range sortedFields(newMsg) {
		if oldMsg.IsReserved(newF.Number) {
			report.breaking(ReservedNumberUsed, newMsg.Name+"."+newF.Name,
				"field number %d was reserved in the previous version", newF.Number)
		}
	}
}

func checkFieldCompat(loc string, oldF, newF *Field, report *CompatibilityReport) {
	if (oldF.Cardinality == Map) != (newF.Cardinality == Map) {
		report.breaking(CardinalityChanged, loc, "field %d changed from %v to %v",
			oldF.Number, oldF.Cardinality, newF.Cardinality)
		return
	}
	if oldF.Cardinality != newF.Cardinality {
		report.warn("field %s changed from %v to %v; singular readers keep the last value",
			loc, oldF.Cardinality, newF.Cardinality)
	}
	if oldF.Name != newF.Name {
		report.warn("field %s (%d) was renamed to %q", loc, oldF.Number, newF.Name)
	}

	if oldF.Cardinality == Map && oldF.MapKey != newF.MapKey {
		if kindFamily(oldF.MapKey) != kindFamily(newF.MapKey) {
			report.breaking(FieldTypeChanged, loc, "map key changed from %v to %v", oldF.MapKey, newF.MapKey)
		} else {
			report.warn("field %s map key changed from %v to %v", loc, oldF.MapKey, newF.MapKey)
		}
	}

	oldKind, newKind := effectiveKind(oldF), effectiveKind(newF)
	switch {
	case oldKind == newKind:
		if (oldKind == MessageKind || oldKind == EnumKind) && oldF.elemTypeString() != newF.elemTypeString() {
			report.breaking(FieldTypeChanged, loc, "field %d type changed from %s to %s",
				oldF.Number, oldF.elemTypeString(), newF.elemTypeString())
		}
	case oldKind.WireType() != newKind.WireType():
		report.breaking(WireTypeChanged, loc, "field %d wire type changed from %v (%v) to %v (%v)",
			oldF.Number, oldKind.WireType(), oldKind, newKind.WireType(), newKind)
	case kindFamily(oldKind) != kindFamily(newKind):
		report.breaking(FieldTypeChanged, loc, "field %d type changed from %v to %v",
			oldF.Number, oldKind, newKind)
	default:
		report.warn("field %s type changed from %v to %v; values may be truncated", loc, oldKind, newKind)
	}
}

// effectiveKind treats an unresolved named type as a message.
func effectiveKind(f *Field) Kind {
	if f.Kind == InvalidKind && f.TypeName != "" {
		return MessageKind
	}
	return f.Kind
}

// kindFamily groups kinds whose encodings are interchangeable on the wire.
func kindFamily(k Kind) int {
	switch k {
	case BoolKind, Int32Kind, Int64Kind, Uint32Kind, Uint64Kind, EnumKind:
		return 1
	case Sint32Kind, Sint64Kind:
		return 2
	case Fixed32Kind, Sfixed32Kind:
		return 3
	case Fixed64Kind, Sfixed64Kind:
		return 4
	case StringKind, BytesKind:
		return 5
	default:
		return 100 + int(k)
	}
}

// checkEnumCompat checks for breaking changes between two enum versions.
func checkEnumCompat(oldEnum, newEnum *Enum, report *CompatibilityReport) {
	newValues := make(map[int32]*EnumValue, len(newEnum.Values))
	for _, v := range newEnum.Values {
		if _, ok := newValues[v.Number]; !ok {
			newValues[v.Number] = v
		}
	}

	for _, oldV := range oldEnum.Values {
		newV, exists := newValues[oldV.Number]
		if !exists {
			report.warn("enum value %s.%s (%d) was removed; old readers still decode the number",
				oldEnum.Name, oldV.Name, oldV.Number)
			continue
		}
		if oldV.Name != newV.Name && newEnum.ByName(oldV.Name) == nil {
			report.breaking(EnumValueReused, oldEnum.Name+"."+oldV.Name,
				"enum value %d changed from %q to %q", oldV.Number, oldV.Name, newV.Name)
		}
	}
}

func sortedFields(m *Message) []*Field {
	out := make([]*Field, len(m.Fields))
	copy(out, m.Fields)
	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out
}
