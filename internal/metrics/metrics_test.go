package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func counterValue(t *testing.T, reg *prometheus.Registry, name string, labels map[string]string) float64 {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatal(err)
	}
	for _, f := range families {
		if f.GetName() != name {
			continue
		}
	next:
		for _, m := range f.GetMetric() {
			for _, lp := range m.GetLabel() {
				if labels[lp.GetName()] != lp.GetValue() {
					continue next
				}
			}
			return m.GetCounter().GetValue()
		}
	}
	return 0
}

func TestCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.PageFetched()
	m.PageFetched()
	m.CallsIngested(237)
	m.RecordSkipped("duplicate")
	m.Fallback("timeout")
	m.Classified("fallback", "No Answer")
	m.ObserveBatch(1.5)

	if v := counterValue(t, reg, "call_outcomes_ingest_pages_total", nil); v != 2 {
		t.Fatalf("pages = %v", v)
	}
	if v := counterValue(t, reg, "call_outcomes_calls_ingested_total", nil); v != 237 {
		t.Fatalf("calls = %v", v)
	}
	if v := counterValue(t, reg, "call_outcomes_fallbacks_total", map[string]string{"reason": "timeout"}); v != 1 {
		t.Fatalf("fallbacks = %v", v)
	}
	if v := counterValue(t, reg, "call_outcomes_classifications_total", map[string]string{"model": "fallback", "category": "No Answer"}); v != 1 {
		t.Fatalf("classifications = %v", v)
	}
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.PageFetched()
	m.CallsIngested(1)
	m.RecordSkipped("x")
	m.TranscriptFetch("failed")
	m.Classified("a", "b")
	m.Fallback("x")
	m.ObserveBatch(1)
}
