package chat

import "github.com/prometheus/client_golang/prometheus"

// Metrics counts chat traffic. A nil *Metrics records nothing.
type Metrics struct {
	messages    *prometheus.CounterVec
	rejected    *prometheus.CounterVec
	rateLimited prometheus.Counter
}

// NewMetrics registers the chat collectors on reg. Connection and room
// gauges read straight from manager.
func NewMetrics(reg prometheus.Registerer, manager *ConnectionManager) *Metrics {
	m := &Metrics{
		messages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chat_messages_total",
			Help: "Messages persisted and delivered, by conversation kind.",
		}, []string{"kind"}),
		rejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chat_events_rejected_total",
			Help: "Inbound socket events answered with messageError, by reason.",
		}, []string{"reason"}),
		rateLimited: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "chat_events_rate_limited_total",
			Help: "Inbound socket events dropped by the per-connection limiter.",
		}),
	}

	connected := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "chat_connected_clients",
		Help: "Number of users with an open websocket.",
	}, func() float64 { return float64(manager.Count()) })
	rooms := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "chat_active_rooms",
		Help: "Number of team rooms with at least one member.",
	}, func() float64 { return float64(manager.RoomCount()) })

	reg.MustRegister(m.messages, m.rejected, m.rateLimited, connected, rooms)
	return m
}

func (m *Metrics) messageDelivered(kind string) {
	if m == nil {
		return
	}
	m.messages.WithLabelValues(kind).Inc()
}

func (m *Metrics) eventRejected(reason string) {
	if m == nil {
		return
	}
	m.rejected.WithLabelValues(reason).Inc()
}

func (m *Metrics) eventRateLimited() {
	if m == nil {
		return
	}
	m.rateLimited.Inc()
}
