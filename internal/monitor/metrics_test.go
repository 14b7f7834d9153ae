package monitor

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func gaugeValue(t *testing.T, g prometheus.Gauge) float64 {
	t.Helper()
	var m dto.Metric
	if err := g.Write(&m); err != nil {
		t.Fatalf("Write: %v", err)
	}
	return m.GetGauge().GetValue()
}

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	if err := c.Write(&m); err != nil {
		t.Fatalf("Write: %v", err)
	}
	return m.GetCounter().GetValue()
}

func TestMetricsUnregisteredStillWorks(t *testing.T) {
	m := NewMetrics(nil)
	m.SetBlockCacheSize(3)
	m.SetBlockQueueSize(7)
	m.IncBlocksWritten()
	m.IncBlocksWritten()

	if got := gaugeValue(t, m.blockCacheSize); got != 3 {
		t.Errorf("blockCacheSize = %v, want 3", got)
	}
	if got := gaugeValue(t, m.blockQueueSize); got != 7 {
		t.Errorf("blockQueueSize = %v, want 7", got)
	}
	if got := counterValue(t, m.blocksWritten); got != 2 {
		t.Errorf("blocksWritten = %v, want 2", got)
	}
}

func TestMetricsRegistersAgainstProvidedRegisterer(t *testing.T) {
	reg := prometheus.NewRegistry()
	NewMetrics(reg)

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	names := make(map[string]bool, len(families))
	for _, f := range families {
		names[f.GetName()] = true
	}
	for _, want := range []string{
		"moamosaic_block_cache_size",
		"moamosaic_block_queue_size",
		"moamosaic_blocks_written_total",
	} {
		if !names[want] {
			t.Errorf("registry missing metric %q", want)
		}
	}
}

func TestNewLoggerBuildsBothModes(t *testing.T) {
	if _, err := NewLogger(false); err != nil {
		t.Errorf("NewLogger(false): %v", err)
	}
	if _, err := NewLogger(true); err != nil {
		t.Errorf("NewLogger(true): %v", err)
	}
}
