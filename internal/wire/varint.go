// Package wire provides the low-level primitives of the protobuf-compatible
// tag/length/value wire format: varints, zig-zag integers, tags, fixed-width
// values and length-delimited payloads.
//
// All functions operate on plain byte slices. Append* functions extend a buffer
// and return it; Decode* and Consume* functions read from the front of a slice
// and report how many bytes they consumed.
package wire

import "errors"

// MaxVarintLen64 is the maximum number of bytes for a varint-encoded uint64.
// A uint64 has 64 bits and each varint byte carries 7, so ceil(64/7) = 10.
const MaxVarintLen64 = 10

// Errors for varint decoding.
var (
	// ErrMalformedVarint indicates a varint that does not terminate within
	// MaxVarintLen64 bytes or whose value overflows uint64.
	ErrMalformedVarint = errors.New("wiremsg: malformed varint")

	// ErrUnexpectedEOF indicates the input ended before a value was complete.
	ErrUnexpectedEOF = errors.New("wiremsg: unexpected end of data")
)

// AppendUvarint appends the varint encoding of v to buf and returns the extended buffer.
//
// The encoding uses 7 bits per byte, with the MSB as a continuation flag.
// Bytes are ordered from least significant to most significant, and the output
// is always the minimal byte count.
//
// Example encodings:
//   - 0 → [0x00]
//   - 1 → [0x01]
//   - 127 → [0x7f]
//   - 128 → [0x80, 0x01]
//   - 300 → [0xac, 0x02]
func AppendUvarint(buf []byte, v uint64) []byte {
	for v >= 0x80 {
		buf = append(buf, byte(v)|0x80)
		v >>= 7
	}
	return append(buf, byte(v))
}

// AppendSvarint appends the zig-zag encoded varint of v to buf.
//
// ZigZag encoding maps signed integers to unsigned integers so that numbers with
// small absolute values have small varint encodings:
//
//	0 → 0, -1 → 1, 1 → 2, -2 → 3, 2 → 4, ...
func AppendSvarint(buf []byte, v int64) []byte {
	return AppendUvarint(buf, EncodeZigZag(v))
}

// EncodeZigZag maps a signed integer onto an unsigned one: (n << 1) ^ (n >> 63).
// The arithmetic right shift produces all 1s for negative values.
func EncodeZigZag(v int64) uint64 {
	return uint64(v<<1) ^ uint64(v>>63)
}

// DecodeZigZag is the inverse of EncodeZigZag.
func DecodeZigZag(v uint64) int64 {
	return int64(v>>1) ^ -int64(v&1)
}

// DecodeUvarint decodes a varint from data and returns the value and the number
// of bytes consumed.
//
// It fails with ErrUnexpectedEOF if data ends inside the varint and with
// ErrMalformedVarint if ten bytes are read without a terminating byte or the
// tenth byte carries more than the final bit of a uint64.
func DecodeUvarint(data []byte) (uint64, int, error) {
	if len(data) == 0 {
		return 0, 0, ErrUnexpectedEOF
	}

	// Fast path for single-byte varints (values 0-127)
	if data[0] < 0x80 {
		return uint64(data[0]), 1, nil
	}

	var v uint64
	var shift uint

	for i := 0; i < len(data); i++ {
		b := data[i]
		if i == MaxVarintLen64-1 {
			// The tenth byte can only contribute bit 63.
			if b > 1 {
				return 0, 0, ErrMalformedVarint
			}
		}

		v |= uint64(b&0x7f) << shift
		if b < 0x80 {
			return v, i + 1, nil
		}
		shift += 7
	}

	return 0, 0, ErrUnexpectedEOF
}

// DecodeSvarint decodes a zig-zag encoded varint from data.
func DecodeSvarint(data []byte) (int64, int, error) {
	uv, n, err := DecodeUvarint(data)
	if err != nil {
		return 0, n, err
	}
	return DecodeZigZag(uv), n, nil
}

// UvarintSize returns the number of bytes required to encode v as a varint.
func UvarintSize(v uint64) int {
	switch {
	case v < 1<<7:
		return 1
	case v < 1<<14:
		return 2
	case v < 1<<21:
		return 3
	case v < 1<<28:
		return 4
	case v < 1<<35:
		return 5
	case v < 1<<42:
		return 6
	case v < 1<<49:
		return 7
	case v < 1<<56:
		return 8
	case v < 1<<63:
		return 9
	default:
		return 10
	}
}

// SvarintSize returns the number of bytes required to encode v as a zig-zag varint.
func SvarintSize(v int64) int {
	return UvarintSize(EncodeZigZag(v))
}
