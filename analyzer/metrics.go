package analyzer

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics are optional; a nil *Metrics records nothing.
type Metrics struct {
	ingestions         *prometheus.CounterVec
	rowsIngested       prometheus.Counter
	rowWarnings        prometheus.Counter
	fallbackTimestamps prometheus.Counter
	ingestDuration     prometheus.Histogram
	queries            *prometheus.CounterVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		ingestions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sls_analyzer",
			Name:      "ingestions_total",
			Help:      "Ingestion runs by outcome.",
		}, []string{"status"}),
		rowsIngested: f.NewCounter(prometheus.CounterOpts{
			Namespace: "sls_analyzer",
			Name:      "rows_ingested_total",
			Help:      "Log records committed by successful ingestion runs.",
		}),
		rowWarnings: f.NewCounter(prometheus.CounterOpts{
			Namespace: "sls_analyzer",
			Name:      "row_warnings_total",
			Help:      "Rows that were skipped or defaulted during ingestion.",
		}),
		fallbackTimestamps: f.NewCounter(prometheus.CounterOpts{
			Namespace: "sls_analyzer",
			Name:      "fallback_timestamps_total",
			Help:      "Committed records whose timestamp fell back to capture time.",
		}),
		ingestDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: "sls_analyzer",
			Name:      "ingest_duration_seconds",
			Help:      "Wall time of ingestion runs.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 4, 8),
		}),
		queries: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sls_analyzer",
			Name:      "queries_total",
			Help:      "Read operations by kind and outcome.",
		}, []string{"kind", "status"}),
	}
}

func (m *Metrics) observeIngest(status string, seconds float64, c Counters, warnings int) {
	if m == nil {
		return
	}
	m.ingestions.WithLabelValues(status).Inc()
	m.ingestDuration.Observe(seconds)
	m.rowWarnings.Add(float64(warnings))
	if status == "ok" {
		m.rowsIngested.Add(float64(c.TotalLogs))
		m.fallbackTimestamps.Add(float64(c.FallbackTimestamps))
	}
}

func (m *Metrics) observeQuery(kind string, err error) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.queries.WithLabelValues(kind, status).Inc()
}
