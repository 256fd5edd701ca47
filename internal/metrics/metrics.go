package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the service's Prometheus collectors. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	pages           prometheus.Counter
	callsIngested   prometheus.Counter
	recordsSkipped  *prometheus.CounterVec
	transcripts     *prometheus.CounterVec
	classifications *prometheus.CounterVec
	fallbacks       *prometheus.CounterVec
	batchDuration   prometheus.Histogram
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		pages: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "call_outcomes_ingest_pages_total",
			Help: "Conversation list pages fetched from the call platform",
		}),
		callsIngested: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "call_outcomes_calls_ingested_total",
			Help: "Call records returned by ingestion",
		}),
		recordsSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "call_outcomes_records_skipped_total",
			Help: "Raw records dropped during ingestion by reason",
		}, []string{"reason"}),
		transcripts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "call_outcomes_transcript_fetch_total",
			Help: "Per-record transcript enrichment attempts by outcome",
		}, []string{"outcome"}),
		classifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "call_outcomes_classifications_total",
			Help: "Classified calls by producing model and category",
		}, []string{"model", "category"}),
		fallbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "call_outcomes_fallbacks_total",
			Help: "Generative classification failures by reason",
		}, []string{"reason"}),
		batchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "call_outcomes_batch_duration_seconds",
			Help:    "Wall time of one analyze-calls run",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 10),
		}),
	}
	reg.MustRegister(m.pages, m.callsIngested, m.recordsSkipped, m.transcripts,
		m.classifications, m.fallbacks, m.batchDuration)
	return m
}

func (m *Metrics) PageFetched() {
	if m == nil {
		return
	}
	m.pages.Inc()
}

func (m *Metrics) CallsIngested(n int) {
	if m == nil {
		return
	}
	m.callsIngested.Add(float64(n))
}

func (m *Metrics) RecordSkipped(reason string) {
	if m == nil {
		return
	}
	m.recordsSkipped.WithLabelValues(reason).Inc()
}

// TranscriptFetch outcome is one of enriched, empty, failed.
func (m *Metrics) TranscriptFetch(outcome string) {
	if m == nil {
		return
	}
	m.transcripts.WithLabelValues(outcome).Inc()
}

func (m *Metrics) Classified(model, category string) {
	if m == nil {
		return
	}
	m.classifications.WithLabelValues(model, category).Inc()
}

func (m *Metrics) Fallback(reason string) {
	if m == nil {
		return
	}
	m.fallbacks.WithLabelValues(reason).Inc()
}

func (m *Metrics) ObserveBatch(seconds float64) {
	if m == nil {
		return
	}
	m.batchDuration.Observe(seconds)
}
