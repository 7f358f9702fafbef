package interning

import (
	"errors"
	"fmt"
)

var (
	// ErrOverflow is returned when a text is too long to be laid out as a
	// single length-prefixed buffer.
	ErrOverflow = errors.New("interning: layout overflow")

	// ErrInvalidUTF8 is returned by InternBytes for input that is not UTF-8.
	ErrInvalidUTF8 = errors.New("interning: invalid utf-8")

	// ErrPoisoned is the panic value raised by a table whose write lock was
	// abandoned by a panicking holder.
	ErrPoisoned = errors.New("interning: table poisoned")
)

// LayoutError reports the rejected payload length.
type LayoutError struct {
	Len uint
}

func (e *LayoutError) Error() string {
	return fmt.Sprintf("interning: cannot lay out %d bytes (max %d): %v", e.Len, MaxLen, ErrOverflow)
}

func (e *LayoutError) Unwrap() error {
	return ErrOverflow
}
