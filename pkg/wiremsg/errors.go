// Package wiremsg encodes and decodes protobuf-compatible binary messages
// driven by a schema.Catalog instead of generated code.
//
// A Message is a dynamic value tree bound to a *schema.Message. Scalars use
// value-based presence: a zero value is never written and decodes back as
// zero. Singular message fields use existence-based presence and can be
// queried with Has. Repeated and map fields are always present and may be
// empty, never nil.
//
// Decoding skips unknown field numbers and, by default, fields whose wire
// type disagrees with the schema. Errors carry the message, field and byte
// offset at which they occurred and are returned together with the partially
// decoded tree.
package wiremsg

import (
	"errors"
	"fmt"

	"github.com/blockberries/wiremsg/internal/wire"
)

// Sentinel errors for common conditions.
// These can be checked using errors.Is().
var (
	// ErrMalformedVarint indicates a varint that does not terminate within ten bytes.
	ErrMalformedVarint = wire.ErrMalformedVarint

	// ErrUnexpectedEOF indicates the data was truncated unexpectedly.
	ErrUnexpectedEOF = wire.ErrUnexpectedEOF

	// ErrInvalidWireType indicates a reserved or undefined wire type.
	ErrInvalidWireType = wire.ErrInvalidWireType

	// ErrInvalidFieldNumber indicates a tag carrying field number zero or a
	// descriptor whose number is below one.
	ErrInvalidFieldNumber = wire.ErrInvalidFieldNumber

	// ErrInvalidUTF8 indicates a string field holds invalid UTF-8.
	// It is recoverable: the field is dropped and decoding continues.
	ErrInvalidUTF8 = wire.ErrInvalidUTF8

	// ErrWireTypeMismatch indicates a known field arrived with the wrong wire
	// type. It is only reported with Options.StrictWireType.
	ErrWireTypeMismatch = errors.New("wiremsg: wire type mismatch")

	// ErrFieldNumberOverflow indicates a descriptor number above 2^29-1.
	ErrFieldNumberOverflow = errors.New("wiremsg: field number overflow")

	// ErrPresenceUnsupported indicates Has was called on a field without
	// explicit presence.
	ErrPresenceUnsupported = errors.New("wiremsg: field does not track presence")

	// ErrKindMismatch indicates a value of the wrong kind for a field.
	ErrKindMismatch = errors.New("wiremsg: value kind does not match field")

	// ErrUnknownField indicates a field number or name not in the schema.
	ErrUnknownField = errors.New("wiremsg: unknown field")

	// ErrMaxDepthExceeded indicates the maximum nesting depth was exceeded.
	ErrMaxDepthExceeded = errors.New("wiremsg: maximum nesting depth exceeded")

	// ErrMaxSizeExceeded indicates the maximum message size was exceeded.
	ErrMaxSizeExceeded = errors.New("wiremsg: maximum message size exceeded")

	// ErrMaxStringLength indicates the maximum string length was exceeded.
	ErrMaxStringLength = errors.New("wiremsg: maximum string length exceeded")

	// ErrMaxBytesLength indicates the maximum bytes length was exceeded.
	ErrMaxBytesLength = errors.New("wiremsg: maximum bytes length exceeded")

	// ErrMaxRepeated indicates a repeated field grew past its limit.
	ErrMaxRepeated = errors.New("wiremsg: maximum repeated length exceeded")

	// ErrMaxMapSize indicates the maximum map size was exceeded.
	ErrMaxMapSize = errors.New("wiremsg: maximum map size exceeded")

	// ErrOverflow indicates a number too large for its target kind.
	ErrOverflow = errors.New("wiremsg: numeric overflow")

	// ErrUnresolvedSchema indicates a descriptor that was never resolved.
	ErrUnresolvedSchema = errors.New("wiremsg: schema is not resolved")
)

// DecodeError provides detailed context for decoding failures.
// It implements the error interface and supports error unwrapping.
type DecodeError struct {
	// Type is the full name of the message being decoded.
	Type string

	// Field is the name of the field being decoded (if applicable).
	Field string

	// FieldNumber is the wire field number (if applicable).
	FieldNumber int32

	// Offset is the byte offset in the message where the error occurred,
	// or -1 if unknown.
	Offset int

	// Message describes what went wrong.
	Message string

	// Cause is the underlying error, if any.
	Cause error
}

// Error returns a formatted error message.
func (e *DecodeError) Error() string {
	var prefix string
	if e.Type != "" && e.Field != "" {
		prefix = fmt.Sprintf("%s.%s", e.Type, e.Field)
	} else if e.Type != "" {
		prefix = e.Type
	} else if e.Field != "" {
		prefix = e.Field
	}
	if e.Field == "" && e.FieldNumber != 0 {
		prefix = fmt.Sprintf("%s#%d", prefix, e.FieldNumber)
	}

	if prefix != "" {
		if e.Offset >= 0 {
			return fmt.Sprintf("wiremsg: decode %s at offset %d: %s", prefix, e.Offset, e.Message)
		}
		return fmt.Sprintf("wiremsg: decode %s: %s", prefix, e.Message)
	}

	if e.Offset >= 0 {
		return fmt.Sprintf("wiremsg: decode at offset %d: %s", e.Offset, e.Message)
	}
	return fmt.Sprintf("wiremsg: decode: %s", e.Message)
}

// Unwrap returns the underlying cause of the error.
func (e *DecodeError) Unwrap() error {
	return e.Cause
}

// Recoverable reports whether decoding continued past this error.
func (e *DecodeError) Recoverable() bool {
	return errors.Is(e.Cause, ErrInvalidUTF8)
}

// NewDecodeErrorAt creates a new DecodeError with offset information.
func NewDecodeErrorAt(offset int, message string, cause error) *DecodeError {
	return &DecodeError{
		Offset:  offset,
		Message: message,
		Cause:   cause,
	}
}

// EncodeError provides detailed context for encoding failures.
type EncodeError struct {
	// Type is the name of the message being encoded.
	Type string

	// Field is the name of the field being encoded (if applicable).
	Field string

	// Message describes what went wrong.
	Message string

	// Cause is the underlying error, if any.
	Cause error
}

// Error returns a formatted error message.
func (e *EncodeError) Error() string {
	var prefix string
	if e.Type != "" && e.Field != "" {
		prefix = fmt.Sprintf("%s.%s", e.Type, e.Field)
	} else if e.Type != "" {
		prefix = e.Type
	} else if e.Field != "" {
		prefix = e.Field
	}

	if prefix != "" {
		return fmt.Sprintf("wiremsg: encode %s: %s", prefix, e.Message)
	}
	return fmt.Sprintf("wiremsg: encode: %s", e.Message)
}

// Unwrap returns the underlying cause of the error.
func (e *EncodeError) Unwrap() error {
	return e.Cause
}

// NewEncodeError creates a new EncodeError.
func NewEncodeError(message string, cause error) *EncodeError {
	return &EncodeError{
		Message: message,
		Cause:   cause,
	}
}

// FieldError reports a misuse of the Message API on one field.
type FieldError struct {
	Type   string
	Field  string
	Number int32
	Cause  error
}

func (e *FieldError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%v: %s.%s", e.Cause, e.Type, e.Field)
	}
	return fmt.Sprintf("%v: %s#%d", e.Cause, e.Type, e.Number)
}

// Unwrap returns the underlying cause of the error.
func (e *FieldError) Unwrap() error {
	return e.Cause
}

// IsFatal returns true if the error indicates a programming error
// that should not occur in correct code.
func IsFatal(err error) bool {
	switch {
	case errors.Is(err, ErrFieldNumberOverflow),
		errors.Is(err, ErrInvalidFieldNumber) && isEncodeError(err),
		errors.Is(err, ErrPresenceUnsupported),
		errors.Is(err, ErrKindMismatch),
		errors.Is(err, ErrUnresolvedSchema):
		return true
	default:
		return false
	}
}

func isEncodeError(err error) bool {
	var ee *EncodeError
	return errors.As(err, &ee)
}

// IsLimitExceeded returns true if the error indicates a configured limit was exceeded.
func IsLimitExceeded(err error) bool {
	switch {
	case errors.Is(err, ErrMaxDepthExceeded),
		errors.Is(err, ErrMaxSizeExceeded),
		errors.Is(err, ErrMaxStringLength),
		errors.Is(err, ErrMaxBytesLength),
		errors.Is(err, ErrMaxRepeated),
		errors.Is(err, ErrMaxMapSize):
		return true
	default:
		return false
	}
}

// IsMalformed returns true if the error means the input is not a well-formed
// message: truncated, bad varint or bad tag.
func IsMalformed(err error) bool {
	switch {
	case errors.Is(err, ErrMalformedVarint),
		errors.Is(err, ErrUnexpectedEOF),
		errors.Is(err, ErrInvalidWireType),
		errors.Is(err, ErrInvalidFieldNumber) && !isEncodeError(err),
		errors.Is(err, ErrWireTypeMismatch):
		return true
	default:
		return false
	}
}
