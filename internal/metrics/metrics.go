// Package metrics exports intern table and worker pool counters to
// Prometheus.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"lsi/internal/workers"
	"lsi/interning"
)

const namespace = "lsi"

// TableSource is satisfied by *interning.Table.
type TableSource interface {
	Stats() interning.Stats
}

// PoolSource is satisfied by *workers.Pool.
type PoolSource interface {
	Stats() workers.Metrics
}

// Collector reads the sources on every scrape. It holds no state of its own.
type Collector struct {
	table TableSource
	pool  PoolSource

	entries *prometheus.Desc
	bytes   *prometheus.Desc
	hits    *prometheus.Desc
	misses  *prometheus.Desc

	chunks  *prometheus.Desc
	failed  *prometheus.Desc
	texts   *prometheus.Desc
	running *prometheus.Desc
}

// NewCollector exports table stats. pool may be nil.
func NewCollector(table TableSource, pool PoolSource) *Collector {
	strategy := []string{"strategy"}
	return &Collector{
		table: table,
		pool:  pool,

		entries: prometheus.NewDesc(prometheus.BuildFQName(namespace, "table", "entries"),
			"Distinct strings held by the intern table.", strategy, nil),
		bytes: prometheus.NewDesc(prometheus.BuildFQName(namespace, "table", "bytes"),
			"Payload bytes held by the intern table.", strategy, nil),
		hits: prometheus.NewDesc(prometheus.BuildFQName(namespace, "table", "hits_total"),
			"Lookups answered by an existing entry.", strategy, nil),
		misses: prometheus.NewDesc(prometheus.BuildFQName(namespace, "table", "misses_total"),
			"Lookups that inserted a new entry.", strategy, nil),

		chunks: prometheus.NewDesc(prometheus.BuildFQName(namespace, "workers", "chunks_total"),
			"Chunks interned by the worker pool.", nil, nil),
		failed: prometheus.NewDesc(prometheus.BuildFQName(namespace, "workers", "chunks_failed_total"),
			"Chunks that returned an error or panicked.", nil, nil),
		texts: prometheus.NewDesc(prometheus.BuildFQName(namespace, "workers", "texts_total"),
			"Texts interned by the worker pool.", nil, nil),
		running: prometheus.NewDesc(prometheus.BuildFQName(namespace, "workers", "running"),
			"Workers currently running a task.", nil, nil),
	}
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.entries
	ch <- c.bytes
	ch <- c.hits
	ch <- c.misses
	if c.pool != nil {
		ch <- c.chunks
		ch <- c.failed
		ch <- c.texts
		ch <- c.running
	}
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	st := c.table.Stats()
	ch <- prometheus.MustNewConstMetric(c.entries, prometheus.GaugeValue, float64(st.Entries), st.Strategy)
	ch <- prometheus.MustNewConstMetric(c.bytes, prometheus.GaugeValue, float64(st.Bytes), st.Strategy)
	ch <- prometheus.MustNewConstMetric(c.hits, prometheus.CounterValue, float64(st.Hits), st.Strategy)
	ch <- prometheus.MustNewConstMetric(c.misses, prometheus.CounterValue, float64(st.Misses), st.Strategy)

	if c.pool == nil {
		return
	}
	ps := c.pool.Stats()
	ch <- prometheus.MustNewConstMetric(c.chunks, prometheus.CounterValue, float64(ps.ChunksProcessed))
	ch <- prometheus.MustNewConstMetric(c.failed, prometheus.CounterValue, float64(ps.ChunksFailed))
	ch <- prometheus.MustNewConstMetric(c.texts, prometheus.CounterValue, float64(ps.TextsInterned))
	ch <- prometheus.MustNewConstMetric(c.running, prometheus.GaugeValue, float64(ps.Running))
}

// NewRegistry returns a registry holding the lsi collector plus the Go
// runtime and process collectors.
func NewRegistry(table TableSource, pool PoolSource) (*prometheus.Registry, error) {
	reg := prometheus.NewRegistry()
	for _, c := range []prometheus.Collector{
		NewCollector(table, pool),
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return reg, nil
}
