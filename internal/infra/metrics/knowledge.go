package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(knowledgePassages, adminLoginTotal) }

var knowledgePassages = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Name: "knowledge_passages",
		Help: "Passages in the current knowledge snapshot.",
	},
)

var adminLoginTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "admin_login_total",
		Help: "Tracks attempts to log into the diagnostics API.",
	},
	[]string{"status"}, // 'authorized', 'unauthorized'
)

func SetKnowledgePassages(n int) {
	knowledgePassages.Set(float64(n))
}

func IncAdminLogin(status string) {
	adminLoginTotal.WithLabelValues(norm(status)).Inc()
}
