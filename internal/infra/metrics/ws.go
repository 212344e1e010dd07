package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		activeSessions,
		framesSentTotal,
		inboundDroppedTotal,
	)
}

var (
	activeSessions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "support_sessions_active",
			Help: "Number of open support chat sessions.",
		},
	)

	framesSentTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "support_frames_sent_total",
			Help: "Outbound websocket frames by type.",
		},
		[]string{"type"}, // chat_opened|bot|warning|error
	)

	inboundDroppedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "support_inbound_dropped_total",
			Help: "Inbound frames rejected before reaching the responder.",
		},
		[]string{"reason"}, // backpressure|rate_limit|invalid|malformed|binary
	)
)

func SessionOpened() { activeSessions.Inc() }
func SessionClosed() { activeSessions.Dec() }

func IncFrameSent(frameType string) {
	framesSentTotal.WithLabelValues(norm(frameType)).Inc()
}

func IncInboundDropped(reason string) {
	inboundDroppedTotal.WithLabelValues(norm(reason)).Inc()
}
