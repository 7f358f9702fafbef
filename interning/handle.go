package interning

import (
	"fmt"
	"strings"
	"unsafe"

	"github.com/cespare/xxhash/v2"
)

// Handle is an interned string. It is a single pointer to a length-prefixed
// buffer owned by an intern table, so it is cheap to copy and safe to share
// between goroutines.
//
// The zero Handle means "no value". Handles for equal text obtained from the
// same table are identical, so == on handles is a pointer comparison.
type Handle struct {
	p *header
}

// Handle must stay exactly pointer-sized.
var _ [unsafe.Sizeof(Handle{}) - unsafe.Sizeof(uintptr(0))]struct{}

var _ [unsafe.Sizeof(uintptr(0)) - unsafe.Sizeof(Handle{})]struct{}

// emptyHeader backs the empty sentinel. No table ever stores it.
var emptyHeader header

var empty = Handle{p: &emptyHeader}

// Empty returns the handle of the zero-length string.
func Empty() Handle {
	return empty
}

// Intern returns the handle for s from the global table.
// It panics if s is longer than MaxLen.
func Intern(s string) Handle {
	if s == "" {
		return empty
	}
	return Global().Intern(s)
}

// TryIntern is like Intern but reports an overflow instead of panicking.
func TryIntern(s string) (Handle, error) {
	if s == "" {
		return empty, nil
	}
	return Global().GetOrIntern(s)
}

// InternBytes interns b into the global table after validating it as UTF-8.
func InternBytes(b []byte) (Handle, error) {
	if len(b) == 0 {
		return empty, nil
	}
	return Global().InternBytes(b)
}

// IsZero reports whether h is the "no value" handle.
func (h Handle) IsZero() bool {
	return h.p == nil
}

// IsEmpty reports whether h holds the zero-length string.
func (h Handle) IsEmpty() bool {
	return h.Len() == 0
}

// String returns the interned text. The result shares memory with the
// buffer and remains valid after h itself is discarded.
func (h Handle) String() string {
	if h.p == nil || h.p == &emptyHeader {
		return ""
	}
	return h.p.text()
}

// Len returns the length of the text in bytes.
func (h Handle) Len() int {
	if h.p == nil || h.p == &emptyHeader {
		return 0
	}
	return h.p.len()
}

// Equal compares handles by content.
func (h Handle) Equal(o Handle) bool {
	return h.String() == o.String()
}

// EqualString reports whether h holds s.
func (h Handle) EqualString(s string) bool {
	return h.String() == s
}

// Compare orders handles by content, as strings.Compare.
func (h Handle) Compare(o Handle) int {
	return strings.Compare(h.String(), o.String())
}

// Hash returns the content hash of h. It matches the hash a table computes
// for the raw text.
func (h Handle) Hash() uint64 {
	return hashString(h.String())
}

// Clone returns a copy of the text that does not share the buffer.
func (h Handle) Clone() string {
	return strings.Clone(h.String())
}

// AppendTo appends the text to dst.
func (h Handle) AppendTo(dst []byte) []byte {
	return append(dst, h.String()...)
}

// MarshalText implements encoding.TextMarshaler.
func (h Handle) MarshalText() ([]byte, error) {
	return h.AppendTo(nil), nil
}

// UnmarshalText implements encoding.TextUnmarshaler by interning text into
// the global table.
func (h *Handle) UnmarshalText(text []byte) error {
	v, err := InternBytes(text)
	if err != nil {
		return err
	}
	*h = v
	return nil
}

// GoString implements fmt.GoStringer.
func (h Handle) GoString() string {
	if h.p == nil {
		return "interning.Handle{}"
	}
	return fmt.Sprintf("interning.Handle{%q}", h.String())
}

func hashString(s string) uint64 {
	return xxhash.Sum64String(s)
}
