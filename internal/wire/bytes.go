package wire

import (
	"errors"
	"unicode/utf8"
)

// ErrInvalidUTF8 indicates a string payload that is not valid UTF-8.
var ErrInvalidUTF8 = errors.New("wiremsg: invalid UTF-8 string")

// AppendBytes appends a length-prefixed byte slice.
func AppendBytes(buf []byte, b []byte) []byte {
	buf = AppendUvarint(buf, uint64(len(b)))
	return append(buf, b...)
}

// AppendString appends a length-prefixed string.
func AppendString(buf []byte, s string) []byte {
	buf = AppendUvarint(buf, uint64(len(s)))
	return append(buf, s...)
}

// DecodeBytes reads a length-prefixed payload from data.
// The returned slice aliases data; n includes the length prefix.
//
// The declared length is checked against the remaining input before slicing,
// so a corrupt prefix can never cause a read past the end of data.
func DecodeBytes(data []byte) (b []byte, n int, err error) {
	length, n, err := DecodeUvarint(data)
	if err != nil {
		return nil, 0, err
	}
	if length > uint64(len(data)-n) {
		return nil, 0, ErrUnexpectedEOF
	}
	end := n + int(length)
	return data[n:end:end], end, nil
}

// DecodeString reads a length-prefixed string and validates it as UTF-8.
// On ErrInvalidUTF8 the consumed length is still reported so callers can
// continue past the bad field.
func DecodeString(data []byte) (string, int, error) {
	b, n, err := DecodeBytes(data)
	if err != nil {
		return "", 0, err
	}
	if !utf8.Valid(b) {
		return "", n, ErrInvalidUTF8
	}
	return string(b), n, nil
}

// BytesSize returns the encoded size of a length-prefixed payload of length n.
func BytesSize(n int) int {
	return UvarintSize(uint64(n)) + n
}
