package client

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/luma/goxlr/protocol"
)

const (
	metricsNamespace = "goxlr"
	metricsSubsystem = "client"
)

// Request outcomes, used as the "outcome" label on goxlr_client_requests_total.
const (
	outcomeOk          = "ok"
	outcomeDaemonError = "daemon_error"
	outcomeProtocol    = "protocol_error"
	outcomeTimeout     = "timeout"
	outcomeClosed      = "closed"
	outcomeCancelled   = "cancelled"
)

// Metrics holds the Prometheus metrics for a Conn.
type Metrics struct {
	Requests      *prometheus.CounterVec
	Frames        *prometheus.CounterVec
	PushesDropped prometheus.Counter
	Keepalives    prometheus.Counter
	Pending       prometheus.Gauge
}

// NewMetrics creates the metrics and registers them with registry. A nil
// registry leaves them unregistered, which is what tests and most library
// users want.
func NewMetrics(registry prometheus.Registerer) *Metrics {
	factory := promauto.With(registry)

	return &Metrics{
		Requests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "requests_total",
			Help:      "Requests sent to the daemon, by outcome",
		}, []string{"outcome"}),

		Frames: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "frames_received_total",
			Help:      "Frames received from the daemon, by identifier class",
		}, []string{"class"}),

		PushesDropped: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "pushes_dropped_total",
			Help:      "Patch batches dropped because nobody read them in time",
		}),

		Keepalives: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "keepalives_sent_total",
			Help:      "Keepalive pings sent to the daemon",
		}),

		Pending: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "pending_requests",
			Help:      "Requests waiting for a reply",
		}),
	}
}

func (m *Metrics) frame(class protocol.IDClass) {
	m.Frames.WithLabelValues(class.String()).Inc()
}

func (m *Metrics) request(outcome string) {
	m.Requests.WithLabelValues(outcome).Inc()
}
