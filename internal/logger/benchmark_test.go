package logger

import (
	"io"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func discardLogger(level zapcore.Level) *ZapLogger {
	enc := zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
	return &ZapLogger{zap: zap.New(zapcore.NewCore(enc, zapcore.AddSync(io.Discard), level))}
}

// BenchmarkZapLogger_Info measures the cost of one structured entry.
func BenchmarkZapLogger_Info(b *testing.B) {
	logger := discardLogger(zapcore.InfoLevel)

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		logger.Info("interned corpus",
			Field{Key: "entries", Value: i},
			Field{Key: "path", Value: "corpus.txt"},
		)
	}
}

// BenchmarkZapLogger_DebugDisabled measures a call filtered out by level.
func BenchmarkZapLogger_DebugDisabled(b *testing.B) {
	logger := discardLogger(zapcore.InfoLevel)

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		logger.Debug("probe", Field{Key: "hash", Value: uint64(i)})
	}
}
