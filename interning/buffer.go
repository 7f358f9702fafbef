package interning

import (
	"math"
	"unsafe"
)

// header is the length prefix of an interned buffer. The payload bytes
// follow it directly inside the same allocation, so a *header is all a
// Handle needs to recover both the length and the content.
type header struct {
	n uintptr
}

const (
	headerSize  = unsafe.Sizeof(header{})
	headerAlign = unsafe.Alignof(header{})
	wordSize    = unsafe.Sizeof(uintptr(0))

	// maxSize is the largest multiple of headerAlign representable as an int.
	maxSize = uint(math.MaxInt) &^ uint(headerAlign-1)

	// MaxLen is the longest text a buffer can hold.
	MaxLen = maxSize - uint(headerSize)
)

// layout describes the single allocation backing a buffer.
type layout struct {
	size  uint
	align uint
}

// words is the number of machine words needed to hold the layout.
func (l layout) words() int {
	return int(l.size / uint(wordSize))
}

// layoutOf computes the layout of a buffer holding n payload bytes: the
// header followed by n bytes, padded to the header's alignment.
func layoutOf(n uint) (layout, error) {
	if n > MaxLen {
		return layout{}, &LayoutError{Len: n}
	}
	size := uint(headerSize) + n
	align := uint(headerAlign)
	size = (size + align - 1) &^ (align - 1)
	return layout{size: size, align: align}, nil
}

// newBuffer copies s into a freshly allocated, length-prefixed block and
// returns its stable address. The block is never written again.
func newBuffer(s string) (*header, error) {
	l, err := layoutOf(uint(len(s)))
	if err != nil {
		return nil, err
	}
	// A word slice keeps the block aligned for the header and marks it as
	// pointer-free for the garbage collector.
	block := make([]uintptr, l.words())
	h := leak(block)
	h.n = uintptr(len(s))
	if len(s) > 0 {
		copy(unsafe.Slice(h.payload(), len(s)), s)
	}
	return h, nil
}

// leak turns the block into a bare address. From here on the only
// references are the handles and the table that owns them.
func leak(block []uintptr) *header {
	return (*header)(unsafe.Pointer(unsafe.SliceData(block)))
}

// payload returns the address of the first byte after the header. It must
// only be called on buffers with a non-zero length.
func (h *header) payload() *byte {
	return (*byte)(unsafe.Add(unsafe.Pointer(h), headerSize))
}

func (h *header) len() int {
	return int(h.n)
}

// text returns the payload as a string view. No copy and no UTF-8
// validation are performed.
func (h *header) text() string {
	if h.n == 0 {
		return ""
	}
	return unsafe.String(h.payload(), int(h.n))
}
