package wiremsg

import (
	"sync"

	"github.com/blockberries/wiremsg/internal/wire"
	"github.com/blockberries/wiremsg/pkg/schema"
)

// Writer accumulates encoded fields with buffer management and a sticky
// error. The first failure is kept and every later write is a no-op.
//
// The zero value is ready to use, but for better performance,
// use NewWriter or GetWriter.
type Writer struct {
	buf    []byte
	opts   Options
	depth  int
	err    error
	frozen bool // prevents further writes after Bytes() is called

	// start is where this encoding begins in buf, and open counts length
	// placeholders not yet closed by endLength.
	start int
	open  int
}

// writerPool provides pooled writers for reduced allocations.
var writerPool = sync.Pool{
	New: func() any {
		return &Writer{
			buf:  make([]byte, 0, 256),
			opts: DefaultOptions,
		}
	},
}

// NewWriter creates a new Writer with default options.
func NewWriter() *Writer {
	return NewWriterWithOptions(DefaultOptions)
}

// NewWriterWithOptions creates a new Writer with the specified options.
func NewWriterWithOptions(opts Options) *Writer {
	return &Writer{
		buf:  make([]byte, 0, 256),
		opts: opts,
	}
}

// GetWriter gets a Writer from the pool.
// The Writer should be returned with PutWriter when done.
func GetWriter() *Writer {
	w := writerPool.Get().(*Writer)
	w.Reset()
	w.opts = DefaultOptions
	return w
}

// PutWriter returns a Writer to the pool.
// The Writer must not be used after calling this.
func PutWriter(w *Writer) {
	if w == nil {
		return
	}
	// Don't pool large buffers to avoid memory bloat
	if cap(w.buf) > 64*1024 {
		return
	}
	w.Reset()
	writerPool.Put(w)
}

// Reset clears the writer for reuse.
func (w *Writer) Reset() {
	w.buf = w.buf[:0]
	w.start = 0
	w.open = 0
	w.depth = 0
	w.err = nil
	w.frozen = false
}

// SetOptions updates the writer's options.
func (w *Writer) SetOptions(opts Options) {
	w.opts = opts
}

// Options returns the writer's current options.
func (w *Writer) Options() Options {
	return w.opts
}

// Len returns the current length of the encoded data.
func (w *Writer) Len() int {
	return len(w.buf)
}

// encoded returns the bytes this encoding has produced so far, not counting
// open length placeholders. The count only grows as writes continue, and it
// is exact once every placeholder is closed.
func (w *Writer) encoded() int {
	return len(w.buf) - w.start - w.open*MaxVarintLen64
}

// Bytes returns the encoded data.
// The returned slice is only valid until the next call to Reset.
// To get a copy, use BytesCopy.
func (w *Writer) Bytes() []byte {
	w.frozen = true
	return w.buf
}

// BytesCopy returns a copy of the encoded data.
func (w *Writer) BytesCopy() []byte {
	result := make([]byte, len(w.buf))
	copy(result, w.buf)
	return result
}

// Err returns the first error that occurred during writing, if any.
func (w *Writer) Err() error {
	return w.err
}

// setError records the first error that occurs.
func (w *Writer) setError(err error) {
	if w.err == nil {
		w.err = err
	}
}

// checkWrite ensures we can write to the buffer.
func (w *Writer) checkWrite() bool {
	if w.frozen {
		w.setError(NewEncodeError("writer is frozen after Bytes() call", nil))
		return false
	}
	return w.err == nil
}

// fits reports whether n more encoded bytes stay within MaxMessageSize.
func (w *Writer) fits(n int) bool {
	if w.opts.Limits.MaxMessageSize > 0 && int64(w.encoded()+n) > w.opts.Limits.MaxMessageSize {
		w.setError(NewEncodeError("output exceeds maximum message size", ErrMaxSizeExceeded))
		return false
	}
	return true
}

// grow ensures the buffer has room for n more bytes.
func (w *Writer) grow(n int) {
	if len(w.buf)+n <= cap(w.buf) {
		return
	}
	newCap := cap(w.buf) * 2
	if newCap < len(w.buf)+n {
		newCap = len(w.buf) + n
	}
	newBuf := make([]byte, len(w.buf), newCap)
	copy(newBuf, w.buf)
	w.buf = newBuf
}

// enterNested increases the nesting depth and checks limits.
func (w *Writer) enterNested() bool {
	if w.opts.Limits.MaxDepth > 0 && w.depth >= w.opts.Limits.MaxDepth {
		w.setError(NewEncodeError("message nesting too deep", ErrMaxDepthExceeded))
		return false
	}
	w.depth++
	return true
}

// exitNested decreases the nesting depth.
func (w *Writer) exitNested() {
	if w.depth > 0 {
		w.depth--
	}
}

// WriteTag writes a field tag (field number + wire type).
func (w *Writer) WriteTag(num int32, typ wire.Type) {
	if !w.checkWrite() || !w.fits(wire.TagSize(num)) {
		return
	}
	w.grow(MaxTagSize)
	w.buf = wire.AppendTag(w.buf, num, typ)
}

// WriteUvarint writes an unsigned varint.
func (w *Writer) WriteUvarint(v uint64) {
	if !w.checkWrite() || !w.fits(wire.UvarintSize(v)) {
		return
	}
	w.grow(MaxVarintLen64)
	w.buf = wire.AppendUvarint(w.buf, v)
}

// WriteScalar writes one numeric value of f's kind in raw form, without a tag.
func (w *Writer) WriteScalar(f *schema.Field, v uint64) {
	if !w.checkWrite() || !w.fits(f.ScalarSize(v)) {
		return
	}
	w.grow(MaxVarintLen64)
	w.buf = f.AppendScalar(w.buf, v)
}

// WriteString writes a length-prefixed string.
func (w *Writer) WriteString(s string) {
	if !w.checkWrite() || !w.fits(wire.BytesSize(len(s))) {
		return
	}
	w.grow(MaxVarintLen64 + len(s))
	w.buf = wire.AppendString(w.buf, s)
}

// WriteBytes writes a length-prefixed byte slice.
func (w *Writer) WriteBytes(b []byte) {
	if !w.checkWrite() || !w.fits(wire.BytesSize(len(b))) {
		return
	}
	w.grow(MaxVarintLen64 + len(b))
	w.buf = wire.AppendBytes(w.buf, b)
}

// WriteRawBytes writes bytes without a length prefix.
func (w *Writer) WriteRawBytes(b []byte) {
	if !w.checkWrite() || !w.fits(len(b)) {
		return
	}
	w.grow(len(b))
	w.buf = append(w.buf, b...)
}

// BeginMessage starts writing a length-prefixed nested message.
// Returns a checkpoint that must be passed to EndMessage.
func (w *Writer) BeginMessage() int {
	if !w.checkWrite() || !w.enterNested() {
		return -1
	}
	return w.beginLength()
}

// EndMessage finishes writing a length-prefixed message.
// The checkpoint should be the value returned by BeginMessage.
func (w *Writer) EndMessage(checkpoint int) {
	if checkpoint < 0 {
		return
	}
	w.exitNested()
	w.endLength(checkpoint)
}

// beginLength reserves room for a length prefix and returns its position.
// Packed runs use it directly since they do not nest. The placeholder does
// not count toward MaxMessageSize until endLength knows the real prefix.
func (w *Writer) beginLength() int {
	if !w.checkWrite() {
		return -1
	}
	w.grow(MaxVarintLen64)
	checkpoint := len(w.buf)
	w.buf = append(w.buf, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0)
	w.open++
	return checkpoint
}

// endLength writes the length of everything after checkpoint into the
// reserved prefix and closes the gap left by a short varint.
func (w *Writer) endLength(checkpoint int) {
	if checkpoint < 0 || w.err != nil {
		return
	}
	w.open--
	start := checkpoint + MaxVarintLen64
	length := len(w.buf) - start

	var lenBuf [MaxVarintLen64]byte
	lenBytes := wire.AppendUvarint(lenBuf[:0], uint64(length))

	if shift := MaxVarintLen64 - len(lenBytes); shift > 0 {
		copy(w.buf[checkpoint+len(lenBytes):], w.buf[start:])
		w.buf = w.buf[:len(w.buf)-shift]
	}
	copy(w.buf[checkpoint:], lenBytes)
	w.fits(0)
}
