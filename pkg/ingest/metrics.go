package ingest

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exposes ingestion counters. A nil *Metrics records nothing.
type Metrics struct {
	messages      *prometheus.CounterVec
	batches       prometheus.Counter
	batchDuration prometheus.Histogram
}

// NewMetrics creates and registers the ingestion collectors on reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		messages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "queueingest",
			Name:      "messages_total",
			Help:      "Messages processed, labelled by outcome.",
		}, []string{"outcome"}),
		batches: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "queueingest",
			Name:      "batches_total",
			Help:      "Batches processed.",
		}),
		batchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "queueingest",
			Name:      "batch_duration_seconds",
			Help:      "Wall-clock time spent writing a batch.",
			Buckets:   prometheus.DefBuckets,
		}),
	}
	for _, c := range []prometheus.Collector{m.messages, m.batches, m.batchDuration} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("failed to register ingest metrics: %w", err)
		}
	}
	return m, nil
}

func (m *Metrics) observe(outcome *BatchOutcome, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.batches.Inc()
	m.batchDuration.Observe(elapsed.Seconds())
	for _, r := range outcome.Results {
		m.messages.WithLabelValues(r.Kind.String()).Inc()
	}
}
