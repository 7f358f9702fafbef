package workers

import (
	"sync/atomic"
	"time"
)

// poolMetrics tracks chunk throughput for a Pool. All fields are updated
// atomically by the worker goroutines.
type poolMetrics struct {
	chunks       atomic.Int64
	texts        atomic.Int64
	failed       atomic.Int64
	totalLatency atomic.Int64 // nanoseconds
	maxLatency   atomic.Int64
	resetAt      atomic.Int64 // unix nanoseconds
}

// Metrics is a point-in-time copy of the pool counters.
type Metrics struct {
	ChunksProcessed int64         `json:"chunks_processed"`
	ChunksFailed    int64         `json:"chunks_failed"`
	TextsInterned   int64         `json:"texts_interned"`
	TotalLatency    time.Duration `json:"total_latency"`
	MaxLatency      time.Duration `json:"max_latency"`
	Running         int           `json:"running"`
	Since           time.Time     `json:"since"`
}

// AvgLatency is the mean time spent per successful chunk.
func (m Metrics) AvgLatency() time.Duration {
	if m.ChunksProcessed == 0 {
		return 0
	}
	return m.TotalLatency / time.Duration(m.ChunksProcessed)
}

func newPoolMetrics() *poolMetrics {
	m := &poolMetrics{}
	m.resetAt.Store(time.Now().UnixNano())
	return m
}

func (m *poolMetrics) recordChunk(texts int, latency time.Duration) {
	m.chunks.Add(1)
	m.texts.Add(int64(texts))
	m.totalLatency.Add(latency.Nanoseconds())

	for {
		old := m.maxLatency.Load()
		if latency.Nanoseconds() <= old {
			break
		}
		if m.maxLatency.CompareAndSwap(old, latency.Nanoseconds()) {
			break
		}
	}
}

func (m *poolMetrics) recordFailure() {
	m.failed.Add(1)
}

func (m *poolMetrics) snapshot(running int) Metrics {
	return Metrics{
		ChunksProcessed: m.chunks.Load(),
		ChunksFailed:    m.failed.Load(),
		TextsInterned:   m.texts.Load(),
		TotalLatency:    time.Duration(m.totalLatency.Load()),
		MaxLatency:      time.Duration(m.maxLatency.Load()),
		Running:         running,
		Since:           time.Unix(0, m.resetAt.Load()),
	}
}

func (m *poolMetrics) reset() {
	m.chunks.Store(0)
	m.failed.Store(0)
	m.texts.Store(0)
	m.totalLatency.Store(0)
	m.maxLatency.Store(0)
	m.resetAt.Store(time.Now().UnixNano())
}
