package wiremsg

import (
	"github.com/rs/zerolog"

	"github.com/blockberries/wiremsg/internal/wire"
)

// Limits defines resource limits for encoding/decoding.
type Limits struct {
	// MaxMessageSize is the maximum total message size in bytes, applied to
	// the top-level input, every nested length prefix and the encoder output.
	// A value of 0 means no limit.
	MaxMessageSize int64

	// MaxDepth is the maximum nesting depth of messages.
	// A value of 0 means no limit.
	MaxDepth int

	// MaxStringLength is the maximum length of a string in bytes.
	// A value of 0 means no limit.
	MaxStringLength int

	// MaxBytesLength is the maximum length of a bytes field.
	// A value of 0 means no limit.
	MaxBytesLength int

	// MaxRepeated is the maximum number of elements in one repeated field.
	// A value of 0 means no limit.
	MaxRepeated int

	// MaxMapSize is the maximum number of entries in a map.
	// A value of 0 means no limit.
	MaxMapSize int
}

// DefaultLimits are the default resource limits.
// These are generous limits suitable for most use cases.
var DefaultLimits = Limits{
	MaxMessageSize:  64 * 1024 * 1024, // 64 MB
	MaxDepth:        100,
	MaxStringLength: 10 * 1024 * 1024,  // 10 MB
	MaxBytesLength:  100 * 1024 * 1024, // 100 MB
	MaxRepeated:     1_000_000,
	MaxMapSize:      1_000_000,
}

// SecureLimits are conservative limits for untrusted input.
var SecureLimits = Limits{
	MaxMessageSize:  1 * 1024 * 1024, // 1 MB
	MaxDepth:        32,
	MaxStringLength: 1 * 1024 * 1024,  // 1 MB
	MaxBytesLength:  10 * 1024 * 1024, // 10 MB
	MaxRepeated:     10_000,
	MaxMapSize:      10_000,
}

// NoLimits disables all resource limits.
// Use with caution - only for trusted input.
var NoLimits = Limits{}

// Options configures encoding/decoding behavior.
type Options struct {
	// Limits specifies resource limits.
	Limits Limits

	// StrictWireType fails decoding when a known field arrives with a wire
	// type other than the one its kind implies. When false the value is
	// skipped like an unknown field.
	StrictWireType bool

	// ValidateUTF8 rejects string fields holding invalid UTF-8. The field is
	// dropped, ErrInvalidUTF8 is reported and decoding continues.
	ValidateUTF8 bool

	// Deterministic sorts map entries by key when encoding.
	Deterministic bool

	// PackRepeated writes every repeated numeric field packed, not only the
	// fields marked Packed in the schema.
	PackRepeated bool

	// KeepUnknown retains the raw bytes of unknown fields on the decoded
	// message so that re-encoding writes them back out.
	KeepUnknown bool

	// Logger receives debug events for skipped fields.
	Logger zerolog.Logger
}

// DefaultOptions are the default encoding/decoding options.
var DefaultOptions = Options{
	Limits:        DefaultLimits,
	ValidateUTF8:  true,
	Deterministic: true,
	Logger:        zerolog.Nop(),
}

// SecureOptions are conservative options for untrusted input.
var SecureOptions = Options{
	Limits:        SecureLimits,
	ValidateUTF8:  true,
	Deterministic: true,
	Logger:        zerolog.Nop(),
}

// StrictOptions reject wire-type mismatches and keep unknown fields.
var StrictOptions = Options{
	Limits:         DefaultLimits,
	StrictWireType: true,
	ValidateUTF8:   true,
	Deterministic:  true,
	KeepUnknown:    true,
	Logger:         zerolog.Nop(),
}

// FastOptions skip UTF-8 validation and map sorting.
// Use when decoding output from a trusted encoder.
var FastOptions = Options{
	Limits: DefaultLimits,
	Logger: zerolog.Nop(),
}

// WithLogger returns a copy of o logging to l.
func (o Options) WithLogger(l zerolog.Logger) Options {
	o.Logger = l
	return o
}

// WithLimits returns a copy of o with the given limits.
func (o Options) WithLimits(l Limits) Options {
	o.Limits = l
	return o
}

// Version information, set by ldflags at build time.
var (
	// Version is the semantic version of the library.
	Version = "dev"

	// GitCommit is the git commit hash.
	GitCommit = "unknown"

	// BuildDate is the build timestamp.
	BuildDate = "unknown"
)

// VersionInfo returns a formatted version string.
func VersionInfo() string {
	return Version + " (" + GitCommit + ", " + BuildDate + ")"
}

// Size constants for primitive types.
const (
	// Fixed32Size is the encoded size of a fixed 32-bit value.
	Fixed32Size = wire.Fixed32Size

	// Fixed64Size is the encoded size of a fixed 64-bit value.
	Fixed64Size = wire.Fixed64Size

	// MaxVarintLen64 is the maximum encoded size of a varint64.
	MaxVarintLen64 = wire.MaxVarintLen64

	// MaxTagSize is the maximum encoded size of a field tag.
	MaxTagSize = 5
)

// MaxInt is the maximum value of int (platform dependent).
const MaxInt = int(^uint(0) >> 1)
