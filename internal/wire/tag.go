package wire

import "errors"

// Type indicates how a value is physically encoded on the wire.
type Type uint8

const (
	// Varint is used for integers, booleans and enums.
	Varint Type = 0

	// Fixed64 is used for 8-byte little-endian values (double, fixed64, sfixed64).
	Fixed64 Type = 1

	// Bytes is used for length-prefixed data: strings, byte slices,
	// embedded messages, map entries and packed repeated fields.
	// Format: [length: varint] [data: length bytes]
	Bytes Type = 2

	// StartGroup and EndGroup belong to the deprecated group encoding.
	// They are never produced and are rejected on read.
	StartGroup Type = 3
	EndGroup   Type = 4

	// Fixed32 is used for 4-byte little-endian values (float, fixed32, sfixed32).
	Fixed32 Type = 5
)

// String returns a human-readable name for the wire type.
func (t Type) String() string {
	switch t {
	case Varint:
		return "Varint"
	case Fixed64:
		return "Fixed64"
	case Bytes:
		return "LengthDelimited"
	case StartGroup:
		return "StartGroup"
	case EndGroup:
		return "EndGroup"
	case Fixed32:
		return "Fixed32"
	default:
		return "Unknown"
	}
}

// IsValid returns true if the wire type can appear in a well-formed stream.
// Group types are reserved and reported as invalid.
func (t Type) IsValid() bool {
	switch t {
	case Varint, Fixed64, Bytes, Fixed32:
		return true
	default:
		return false
	}
}

// Errors for tag decoding.
var (
	// ErrInvalidWireType indicates a reserved or undefined wire type.
	ErrInvalidWireType = errors.New("wiremsg: invalid wire type")

	// ErrInvalidFieldNumber indicates a field number of zero or above MaxFieldNumber.
	ErrInvalidFieldNumber = errors.New("wiremsg: invalid field number")
)

// Field number bounds.
const (
	MinFieldNumber = 1
	MaxFieldNumber = 1<<29 - 1
)

// Tag represents a field tag combining field number and wire type.
// The tag is encoded as a varint: (field_number << 3) | wire_type
type Tag uint64

// NewTag creates a new tag from a field number and wire type.
func NewTag(num int32, typ Type) Tag {
	return Tag(uint64(num)<<3 | uint64(typ&7))
}

// Number returns the field number from the tag.
func (t Tag) Number() int32 {
	return int32(t >> 3)
}

// Type returns the wire type from the tag.
func (t Tag) Type() Type {
	return Type(t & 0x7)
}

// AppendTag appends a field tag to buf and returns the extended buffer.
func AppendTag(buf []byte, num int32, typ Type) []byte {
	return AppendUvarint(buf, uint64(NewTag(num, typ)))
}

// DecodeTag decodes a field tag from data.
// Returns the field number, wire type and bytes consumed.
//
// A field number outside MinFieldNumber..MaxFieldNumber fails with
// ErrInvalidFieldNumber; reserved or undefined wire types fail with
// ErrInvalidWireType.
func DecodeTag(data []byte) (num int32, typ Type, n int, err error) {
	v, n, err := DecodeUvarint(data)
	if err != nil {
		return 0, 0, 0, err
	}

	if v>>3 < MinFieldNumber || v>>3 > MaxFieldNumber {
		return 0, 0, n, ErrInvalidFieldNumber
	}
	tag := Tag(v)
	if !tag.Type().IsValid() {
		return 0, 0, n, ErrInvalidWireType
	}

	return tag.Number(), tag.Type(), n, nil
}

// TagSize returns the number of bytes required to encode a tag.
// The wire type never changes the size because it lives below the shift.
func TagSize(num int32) int {
	return UvarintSize(uint64(num) << 3)
}

// ValidateFieldNumber returns ErrInvalidFieldNumber if num is out of range.
func ValidateFieldNumber(num int32) error {
	if num < MinFieldNumber || num > MaxFieldNumber {
		return ErrInvalidFieldNumber
	}
	return nil
}
