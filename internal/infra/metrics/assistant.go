package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	register(
		turnsTotal,
		fallbacksTotal,
	)
}

var (
	turnsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "assistant_turns_total",
			Help: "Answered turns by intent and whether the fallback template was used.",
		},
		[]string{"intent", "fallback"},
	)

	fallbacksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "assistant_fallbacks_total",
			Help: "Fallback replies by intent and cause.",
		},
		[]string{"intent", "reason"}, // reason: timeout|quota|unavailable|empty|error
	)
)

func IncTurn(intent string, fallback bool) {
	turnsTotal.WithLabelValues(norm(intent), strconv.FormatBool(fallback)).Inc()
}

func IncFallback(intent, reason string) {
	fallbacksTotal.WithLabelValues(norm(intent), norm(reason)).Inc()
}
