package logger

import "go.uber.org/zap"

// Logger is the structured logger used across lsi. Components receive it
// instead of reaching for a global.
type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)
	Fatal(msg string, fields ...Field)
	With(fields ...Field) Logger
	Sync() error
	// Zap exposes the underlying logger for packages that take a *zap.Logger
	// directly, such as interning.
	Zap() *zap.Logger
}

// Field represents a structured log field
type Field struct {
	Key   string
	Value interface{}
}

// F is shorthand for building a Field.
func F(key string, value interface{}) Field {
	return Field{Key: key, Value: value}
}

// Err builds the conventional "error" field.
func Err(err error) Field {
	return Field{Key: "error", Value: err}
}
