package config

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidConfig     = errors.New("invalid config")
	ErrInvalidYamlFormat = errors.New("invalid yaml format")
)

// FieldError reports a config field that failed validation.
type FieldError struct {
	Field  string
	Value  interface{}
	Reason string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("invalid config field %q (%v): %s", e.Field, e.Value, e.Reason)
}

func (e *FieldError) Unwrap() error {
	return ErrInvalidConfig
}
