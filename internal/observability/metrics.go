package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the counters exposed on an optional debug endpoint, bound to
// their own registry so tests can create independent instances.
type Metrics struct {
	InjectionsSent    *prometheus.CounterVec
	CallbacksReceived *prometheus.CounterVec
	registry          *prometheus.Registry
}

// NewMetrics constructs a Metrics with its own registry, so --metrics-addr
// can be enabled or skipped per process without a global init dance.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		InjectionsSent: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "ricochet_injections_sent_total",
				Help: "Total number of injection attempts sent.",
			},
			[]string{"context_tag", "outcome"},
		),
		CallbacksReceived: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "ricochet_callbacks_received_total",
				Help: "Total number of out-of-band callbacks received.",
			},
			[]string{"protocol"},
		),
		registry: reg,
	}
	return m
}

// Handler returns the HTTP handler to mount on --metrics-addr.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
