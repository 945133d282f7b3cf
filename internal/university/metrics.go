package university

import "github.com/prometheus/client_golang/prometheus"

// Metrics are the Prometheus collectors updated by a Service.
type Metrics struct {
	loads         *prometheus.CounterVec
	searches      prometheus.Counter
	records       prometheus.Gauge
	fetchDuration prometheus.Histogram
}

// NewMetrics creates the collectors and registers them with reg when reg is non-nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		loads: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "campus_university_loads_total",
				Help: "Dataset loads by origin (cache, network) and outcome (ok, error).",
			},
			[]string{"origin", "outcome"},
		),
		searches: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "campus_university_searches_total",
			Help: "Search calls that reached the dataset.",
		}),
		records: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "campus_university_records",
			Help: "Records currently held in memory.",
		}),
		fetchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "campus_university_fetch_duration_seconds",
			Help:    "Latency of dataset fetches from the network.",
			Buckets: prometheus.DefBuckets,
		}),
	}
	if reg != nil {
		reg.MustRegister(m.loads, m.searches, m.records, m.fetchDuration)
	}
	return m
}

// Loads exposes the load counter, mainly for tests.
func (m *Metrics) Loads() *prometheus.CounterVec { return m.loads }

// Records exposes the in-memory size gauge.
func (m *Metrics) Records() prometheus.Gauge { return m.records }
