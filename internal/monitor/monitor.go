// Package monitor implements the Monitoring component (C9): phase timing,
// min/max pixel-value and queue-depth gauges, and a JSON-serializable
// report, plus the structured logger every other package threads through.
package monitor

import (
	"sync"
	"time"
)

// Phase names, matching the original's monitor JSON report sections.
const (
	PhaseImgInfoDict = "imginfodict"
	PhaseProjection  = "projection"
	PhaseAnalysis    = "analysis"
	PhaseDoMosaic    = "domosaic"
	PhasePyramids    = "pyramids"
)

// Interval is one phase's start/end timestamps.
type Interval struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Seconds reports the interval's duration.
func (iv Interval) Seconds() float64 {
	if iv.End.IsZero() {
		return 0
	}
	return iv.End.Sub(iv.Start).Seconds()
}

// Gauge tracks the minimum and maximum of a series of observed values,
// used for both the block-cache/block-queue occupancy gauges and each
// band's output pixel-value range.
type Gauge struct {
	Min, Max float64
	seen     bool
}

// Observe records one sample.
func (g *Gauge) Observe(v float64) {
	if !g.seen {
		g.Min, g.Max, g.seen = v, v, true
		return
	}
	if v < g.Min {
		g.Min = v
	}
	if v > g.Max {
		g.Max = v
	}
}

// Seen reports whether any sample has been observed.
func (g *Gauge) Seen() bool { return g.seen }

// Monitoring accumulates the run's timing and gauge data (spec.md §3/§6),
// safe for concurrent Observe calls from reader/writer goroutines.
type Monitoring struct {
	mu sync.Mutex

	phases map[string]*Interval
	gauges map[string]*Gauge

	Params map[string]any
}

// New builds an empty Monitoring.
func New() *Monitoring {
	return &Monitoring{
		phases: make(map[string]*Interval),
		gauges: make(map[string]*Gauge),
		Params: make(map[string]any),
	}
}

// StartPhase records phase's start time, returning an EndPhase func the
// caller defers.
func (m *Monitoring) StartPhase(phase string) func() {
	m.mu.Lock()
	iv := &Interval{Start: time.Now()}
	m.phases[phase] = iv
	m.mu.Unlock()

	return func() {
		m.mu.Lock()
		iv.End = time.Now()
		m.mu.Unlock()
	}
}

// Observe records v against the named gauge (e.g. "blockQueueSize",
// "band1_pixelvalue_max"), creating it on first use.
func (m *Monitoring) Observe(gauge string, v float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.gauges[gauge]
	if !ok {
		g = &Gauge{}
		m.gauges[gauge] = g
	}
	g.Observe(v)
}

// Report is the JSON-serializable snapshot spec.md §6 describes. Emitting
// it to a file is a cmd/moamosaic concern (spec.md §1's "JSON reporting...
// consumed through" framing keeps that out of the engine itself).
type Report struct {
	Phases map[string]Interval  `json:"phases"`
	Gauges map[string]GaugeJSON `json:"gauges"`
	Params map[string]any       `json:"params"`
}

// GaugeJSON is a Gauge's JSON-friendly shape.
type GaugeJSON struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// Report snapshots the accumulated phases and gauges.
func (m *Monitoring) Report() Report {
	m.mu.Lock()
	defer m.mu.Unlock()

	phases := make(map[string]Interval, len(m.phases))
	for k, v := range m.phases {
		phases[k] = *v
	}
	gauges := make(map[string]GaugeJSON, len(m.gauges))
	for k, v := range m.gauges {
		if v.Seen() {
			gauges[k] = GaugeJSON{Min: v.Min, Max: v.Max}
		}
	}
	params := make(map[string]any, len(m.Params))
	for k, v := range m.Params {
		params[k] = v
	}

	return Report{Phases: phases, Gauges: gauges, Params: params}
}
