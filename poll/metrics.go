package poll

import "github.com/prometheus/client_golang/prometheus"

// Metrics records poll activity. A nil *Metrics records nothing.
type Metrics struct {
	cycles *prometheus.CounterVec
	items  *prometheus.CounterVec
	known  prometheus.Gauge
}

// NewMetrics registers the poll collectors on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		cycles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "marketbot",
			Subsystem: "poll",
			Name:      "cycles_total",
			Help:      "Poll cycles by engine and result (ok, failed, skipped).",
		}, []string{"engine", "result"}),
		items: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "marketbot",
			Subsystem: "poll",
			Name:      "items_total",
			Help:      "Items acted on by engine and result (ok, failed).",
		}, []string{"engine", "result"}),
		known: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "marketbot",
			Name:      "known_ads",
			Help:      "Advertisement IDs in the notifier's known set.",
		}),
	}
	reg.MustRegister(m.cycles, m.items, m.known)
	return m
}

func (m *Metrics) cycle(engine, result string) {
	if m == nil {
		return
	}
	m.cycles.WithLabelValues(engine, result).Inc()
}

func (m *Metrics) item(engine, result string) {
	if m == nil {
		return
	}
	m.items.WithLabelValues(engine, result).Inc()
}

func (m *Metrics) knownAds(n int) {
	if m == nil {
		return
	}
	m.known.Set(float64(n))
}
