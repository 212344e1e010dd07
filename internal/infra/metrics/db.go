package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(dbPoolStats, transcriptWritesTotal) }

var dbPoolStats = prometheus.NewGaugeVec(
	prometheus.GaugeOpts{
		Name: "db_pool_stats",
		Help: "Current state of the database connection pool.",
	},
	[]string{"state"}, // 'total', 'idle', 'in_use'
)

var transcriptWritesTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "transcript_writes_total",
		Help: "Chat transcript writes by result.",
	},
	[]string{"result"}, // ok|error|dropped
)

func SetDBPoolStats(total, idle, inUse int32) {
	dbPoolStats.WithLabelValues("total").Set(float64(total))
	dbPoolStats.WithLabelValues("idle").Set(float64(idle))
	dbPoolStats.WithLabelValues("in_use").Set(float64(inUse))
}

func IncTranscriptWrite(result string) {
	transcriptWritesTotal.WithLabelValues(norm(result)).Inc()
}
