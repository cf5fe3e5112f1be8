package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups all Prometheus instruments used by the service.
type Metrics struct {
	StoredSessions  prometheus.Gauge
	SessionEvents   *prometheus.CounterVec
	Sends           *prometheus.CounterVec
	QuotaDenials    prometheus.Counter
	ReconcileRuns   prometheus.Counter
	SearchQueries   prometheus.Counter
	WSMessages      *prometheus.CounterVec
	ExchangeLatency prometheus.Histogram
}

func NewMetrics(namespace string) *Metrics {
	return NewMetricsWith(prometheus.DefaultRegisterer, namespace)
}

// NewMetricsWith registers on an explicit registerer, so tests can use
// a throwaway registry instead of the process-global one.
func NewMetricsWith(reg prometheus.Registerer, namespace string) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		StoredSessions: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "stored_sessions",
			Help:      "Number of sessions in the saved-sessions list.",
		}),
		SessionEvents: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_events_total",
			Help:      "Session lifecycle events by type.",
		}, []string{"event"}),
		Sends: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sends_total",
			Help:      "Message exchanges by outcome.",
		}, []string{"outcome"}),
		QuotaDenials: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "quota_denials_total",
			Help:      "Sends blocked by the anonymous message quota.",
		}),
		ReconcileRuns: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconcile_runs_total",
			Help:      "UI reconciliation passes.",
		}),
		SearchQueries: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "search_queries_total",
			Help:      "Conversation search queries served.",
		}),
		WSMessages: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ws_messages_total",
			Help:      "WebSocket messages by direction and type.",
		}, []string{"direction", "type"}),
		ExchangeLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "exchange_latency_ms",
			Help:      "Round-trip latency of a user query in milliseconds.",
			Buckets:   []float64{100, 250, 500, 1000, 2000, 5000, 10000, 30000},
		}),
	}
}

func (m *Metrics) ObserveExchangeLatency(d time.Duration) {
	m.ExchangeLatency.Observe(float64(d.Milliseconds()))
}

func MetricsHandler() http.Handler {
	return promhttp.Handler()
}
