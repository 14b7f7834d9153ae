package monitor

import "github.com/prometheus/client_golang/prometheus"

// Metrics mirrors Monitoring's gauges as live Prometheus series, for
// embedding moamosaic inside a long-running server the way
// protomaps-go-pmtiles's pmtiles/server_metrics.go exposes its own tile
// counters. Registration is opt-in against a caller-supplied Registerer so
// the core engine never touches prometheus.DefaultRegisterer.
type Metrics struct {
	blockCacheSize  prometheus.Gauge
	blockQueueSize  prometheus.Gauge
	blocksWritten   prometheus.Counter
}

// NewMetrics registers moamosaic's gauges/counters against reg and returns
// a Metrics handle. Pass nil reg to build an unregistered, inert Metrics
// (useful in tests or when the caller doesn't want Prometheus at all).
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		blockCacheSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "moamosaic_block_cache_size",
			Help: "Number of (input file, output block) contributions currently held in the block cache awaiting merge.",
		}),
		blockQueueSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "moamosaic_block_queue_size",
			Help: "Number of read blocks currently queued for the writer loop.",
		}),
		blocksWritten: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "moamosaic_blocks_written_total",
			Help: "Total number of output blocks written.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.blockCacheSize, m.blockQueueSize, m.blocksWritten)
	}
	return m
}

func (m *Metrics) SetBlockCacheSize(n int) { m.blockCacheSize.Set(float64(n)) }
func (m *Metrics) SetBlockQueueSize(n int) { m.blockQueueSize.Set(float64(n)) }
func (m *Metrics) IncBlocksWritten()       { m.blocksWritten.Inc() }
