package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	register(
		llmTokensIn,
		llmTokensOut,
		llmCallsLatencyMs,
	)
}

var (
	llmTokensIn = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "llm_tokens_in",
			Help: "Sum of prompt (input) tokens per provider/model.",
		},
		[]string{"provider", "model"},
	)

	llmTokensOut = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "llm_tokens_out",
			Help: "Sum of completion (output) tokens per provider/model.",
		},
		[]string{"provider", "model"},
	)

	llmCallsLatencyMs = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "llm_calls_latency_ms",
			Help:    "LLM call latency distribution in milliseconds.",
			Buckets: []float64{50, 100, 200, 400, 800, 1600, 3000, 5000, 10000, 15000},
		},
		[]string{"provider", "outcome"}, // outcome: ok|empty|timeout|quota|unavailable|error
	)
)

func ObserveLLMUsage(provider, model string, tokensIn, tokensOut int) {
	lbl := []string{norm(provider), norm(model)}
	llmTokensIn.WithLabelValues(lbl...).Add(float64(tokensIn))
	llmTokensOut.WithLabelValues(lbl...).Add(float64(tokensOut))
}

func ObserveLLMCall(provider, outcome string, latencyMs int64) {
	llmCallsLatencyMs.WithLabelValues(norm(provider), norm(outcome)).Observe(float64(latencyMs))
}
