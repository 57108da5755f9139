package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups all Prometheus instruments used by the service. A nil
// *Metrics is a no-op so tests can run without touching the default
// registry.
type Metrics struct {
	ActiveSessions   prometheus.Gauge
	SessionEvents    *prometheus.CounterVec
	SpeechOutcomes   *prometheus.CounterVec
	SynthesisLatency *prometheus.HistogramVec
	BusyRejections   prometheus.Counter
	BroadcastDrops   prometheus.Counter
	CommandKinds     *prometheus.CounterVec
}

func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		ActiveSessions: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_sessions",
			Help:      "Number of live assistant sessions.",
		}),
		SessionEvents: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_events_total",
			Help:      "Session state transitions by new state.",
		}, []string{"state"}),
		SpeechOutcomes: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "speech_outcomes_total",
			Help:      "Speech deliveries by provider, including text-only degradation.",
		}, []string{"provider"}),
		SynthesisLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "synthesis_latency_ms",
			Help:      "Time to synthesize one reply in milliseconds.",
			Buckets:   []float64{50, 100, 250, 500, 1000, 2500, 5000, 10000},
		}, []string{"provider"}),
		BusyRejections: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "busy_rejections_total",
			Help:      "Inputs rejected because the session was mid-utterance.",
		}),
		BroadcastDrops: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "broadcast_drops_total",
			Help:      "Events shed from slow subscriber buffers.",
		}),
		CommandKinds: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commands_total",
			Help:      "Interpreted commands by kind.",
		}, []string{"kind"}),
	}
}

func (m *Metrics) SetActiveSessions(n int) {
	if m == nil {
		return
	}
	m.ActiveSessions.Set(float64(n))
}

func (m *Metrics) RecordSessionEvent(state string) {
	if m == nil {
		return
	}
	m.SessionEvents.WithLabelValues(state).Inc()
}

func (m *Metrics) RecordSpeechOutcome(provider string) {
	if m == nil {
		return
	}
	m.SpeechOutcomes.WithLabelValues(provider).Inc()
}

func (m *Metrics) ObserveSynthesisLatency(provider string, d time.Duration) {
	if m == nil {
		return
	}
	m.SynthesisLatency.WithLabelValues(provider).Observe(float64(d.Milliseconds()))
}

func (m *Metrics) RecordBusyRejection() {
	if m == nil {
		return
	}
	m.BusyRejections.Inc()
}

func (m *Metrics) RecordBroadcastDrop() {
	if m == nil {
		return
	}
	m.BroadcastDrops.Inc()
}

func (m *Metrics) RecordCommand(kind string) {
	if m == nil {
		return
	}
	m.CommandKinds.WithLabelValues(kind).Inc()
}

func MetricsHandler() http.Handler {
	return promhttp.Handler()
}
