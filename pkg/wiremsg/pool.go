package wiremsg

import (
	"sync"
)

// Size-tiered buffer pools for encoder output.
// Buffers are pooled in size classes: 64, 256, 1024, 4096, 16384, 65536 bytes.
var bufferPools = [6]sync.Pool{
	{New: func() any { return make([]byte, 0, 64) }},
	{New: func() any { return make([]byte, 0, 256) }},
	{New: func() any { return make([]byte, 0, 1024) }},
	{New: func() any { return make([]byte, 0, 4096) }},
	{New: func() any { return make([]byte, 0, 16384) }},
	{New: func() any { return make([]byte, 0, 65536) }},
}

// bufferSizes maps pool index to capacity.
var bufferSizes = [6]int{64, 256, 1024, 4096, 16384, 65536}

// poolIndex returns the smallest pool whose buffers hold size bytes, or -1.
func poolIndex(size int) int {
	for i, c := range bufferSizes {
		if size <= c {
			return i
		}
	}
	return -1
}

// GetBuffer gets a zero-length buffer with capacity for at least sizeHint
// bytes. Hints above 64KB are allocated directly.
func GetBuffer(sizeHint int) []byte {
	idx := poolIndex(sizeHint)
	if idx < 0 {
		return make([]byte, 0, sizeHint)
	}
	buf := bufferPools[idx].Get().([]byte)
	return buf[:0]
}

// PutBuffer returns a buffer to the pool matching its capacity.
// Buffers larger than 64KB, or smaller than the smallest class, are dropped.
func PutBuffer(buf []byte) {
	c := cap(buf)
	if c < bufferSizes[0] || c > bufferSizes[len(bufferSizes)-1] {
		return
	}
	// largest class the buffer can fully serve
	i := len(bufferSizes) - 1
	for bufferSizes[i] > c {
		i--
	}
	bufferPools[i].Put(buf[:0])
}

// GetWriterWithHint gets a Writer whose buffer is sized for the hint.
// The Writer should be returned with PutWriter when done.
func GetWriterWithHint(sizeHint int, opts Options) *Writer {
	return &Writer{
		buf:  GetBuffer(sizeHint),
		opts: opts,
	}
}

// PutWriterBuffer returns the Writer's buffer to the pool.
// Call this instead of PutWriter if you want to keep the Writer.
func PutWriterBuffer(w *Writer) {
	if w == nil || w.buf == nil {
		return
	}
	PutBuffer(w.buf)
	w.buf = nil
}
