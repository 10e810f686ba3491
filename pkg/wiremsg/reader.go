package wiremsg

import (
	"fmt"

	"github.com/blockberries/wiremsg/internal/wire"
	"github.com/blockberries/wiremsg/pkg/schema"
)

// Reader walks encoded fields with bounds checking and a sticky error.
// Once an error occurs every later read returns a zero value.
type Reader struct {
	data  []byte
	pos   int
	base  int // offset of data within the top-level input
	opts  Options
	depth int
	err   error
}

// NewReader creates a new Reader for the given data.
func NewReader(data []byte) *Reader {
	return NewReaderWithOptions(data, DefaultOptions)
}

// NewReaderWithOptions creates a new Reader with the specified options.
func NewReaderWithOptions(data []byte, opts Options) *Reader {
	return &Reader{
		data: data,
		opts: opts,
	}
}

// Reset resets the reader to read from new data.
func (r *Reader) Reset(data []byte) {
	r.data = data
	r.pos = 0
	r.base = 0
	r.depth = 0
	r.err = nil
}

// Options returns the reader's current options.
func (r *Reader) Options() Options {
	return r.opts
}

// Len returns the number of unread bytes.
func (r *Reader) Len() int {
	if r.pos >= len(r.data) {
		return 0
	}
	return len(r.data) - r.pos
}

// Pos returns the current read position relative to this reader's data.
func (r *Reader) Pos() int {
	return r.pos
}

// Offset returns the current position within the top-level input.
func (r *Reader) Offset() int {
	return r.base + r.pos
}

// EOF returns true if all data has been read.
func (r *Reader) EOF() bool {
	return r.pos >= len(r.data)
}

// Err returns the first error that occurred during reading, if any.
func (r *Reader) Err() error {
	return r.err
}

// setError records the first error that occurs.
func (r *Reader) setError(err error) {
	if r.err == nil {
		r.err = err
	}
}

// setErrorAt records an error with position information.
func (r *Reader) setErrorAt(err error, message string) {
	if r.err == nil {
		r.err = NewDecodeErrorAt(r.Offset(), message, err)
	}
}

// ensure checks that n bytes are available.
func (r *Reader) ensure(n int) bool {
	if r.err != nil {
		return false
	}
	if n < 0 || n > len(r.data)-r.pos {
		r.setErrorAt(ErrUnexpectedEOF, "unexpected end of data")
		return false
	}
	return true
}

// enterNested increases the nesting depth and checks limits.
func (r *Reader) enterNested() bool {
	if r.opts.Limits.MaxDepth > 0 && r.depth >= r.opts.Limits.MaxDepth {
		r.setErrorAt(ErrMaxDepthExceeded, "message nesting too deep")
		return false
	}
	r.depth++
	return true
}

// ReadTag reads a field tag (field number + wire type).
func (r *Reader) ReadTag() (int32, wire.Type) {
	if r.err != nil {
		return 0, 0
	}
	num, typ, n, err := wire.DecodeTag(r.data[r.pos:])
	if err != nil {
		r.setErrorAt(err, "invalid field tag")
		return 0, 0
	}
	r.pos += n
	return num, typ
}

// ReadUvarint reads an unsigned varint.
func (r *Reader) ReadUvarint() uint64 {
	if r.err != nil {
		return 0
	}
	v, n, err := wire.DecodeUvarint(r.data[r.pos:])
	if err != nil {
		r.setErrorAt(err, "invalid varint")
		return 0
	}
	r.pos += n
	return v
}

// ReadScalar reads one numeric value of f's kind and returns it in raw form.
func (r *Reader) ReadScalar(f *schema.Field) uint64 {
	if r.err != nil {
		return 0
	}
	v, n, err := f.ConsumeScalar(r.data[r.pos:])
	if err != nil {
		r.setErrorAt(err, fmt.Sprintf("invalid %v value", f.Kind))
		return 0
	}
	r.pos += n
	return v
}

// ReadLength reads a length prefix and checks that many bytes follow.
// A nonzero limit caps the length, failing with limitErr.
func (r *Reader) ReadLength(limit int64, limitErr error) int {
	start := r.pos
	length := r.ReadUvarint()
	if r.err != nil {
		return 0
	}
	if length > uint64(MaxInt) {
		r.setErrorAt(ErrUnexpectedEOF, "length overflow")
		return 0
	}
	if limit > 0 && length > uint64(limit) {
		r.pos = start
		r.setErrorAt(limitErr, fmt.Sprintf("length %d exceeds limit %d", length, limit))
		return 0
	}
	if !r.ensure(int(length)) {
		return 0
	}
	return int(length)
}

// ReadRawBytes reads n bytes without copying. The result aliases the input.
func (r *Reader) ReadRawBytes(n int) []byte {
	if !r.ensure(n) {
		return nil
	}
	b := r.data[r.pos : r.pos+n : r.pos+n]
	r.pos += n
	return b
}

// ReadBytes reads a length-prefixed payload, copying it out of the input.
func (r *Reader) ReadBytes(limit int, limitErr error) []byte {
	n := r.ReadLength(int64(limit), limitErr)
	if r.err != nil {
		return nil
	}
	raw := r.ReadRawBytes(n)
	out := make([]byte, len(raw))
	copy(out, raw)
	return out
}

// SkipValue skips a value based on its wire type.
func (r *Reader) SkipValue(typ wire.Type) {
	if r.err != nil {
		return
	}
	n, err := wire.ConsumeValue(typ, r.data[r.pos:])
	if err != nil {
		r.setErrorAt(err, fmt.Sprintf("cannot skip %v value", typ))
		return
	}
	r.pos += n
}

// SubReader returns a reader over the next length bytes and advances past
// them. The sub-reader inherits options, depth and absolute offsets.
func (r *Reader) SubReader(length int) *Reader {
	if !r.ensure(length) {
		return nil
	}
	sub := &Reader{
		data:  r.data[r.pos : r.pos+length : r.pos+length],
		base:  r.base + r.pos,
		opts:  r.opts,
		depth: r.depth,
	}
	r.pos += length
	return sub
}
