package metrics

import (
	"net/http"

	"github.com/gustycube/pingscope/internal/health"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

var (
	RunsTotal        = prometheus.NewCounterVec(prometheus.CounterOpts{Name: "pingscope_runs_total", Help: "analysis runs"}, []string{"status"})
	HostsTotal       = prometheus.NewCounterVec(prometheus.CounterOpts{Name: "pingscope_hosts_total", Help: "hosts analysed"}, []string{"status"})
	IntervalsTotal   = prometheus.NewCounterVec(prometheus.CounterOpts{Name: "pingscope_intervals_total", Help: "intervals detected"}, []string{"label"})
	RecordsTotal     = prometheus.NewCounterVec(prometheus.CounterOpts{Name: "pingscope_records_total", Help: "records ingested"}, []string{"source"})
	MalformedRecords = prometheus.NewCounter(prometheus.CounterOpts{Name: "pingscope_malformed_records_total", Help: "records that failed to parse"})
	EmitBatches      = prometheus.NewCounterVec(prometheus.CounterOpts{Name: "pingscope_emit_batches_total", Help: "event batches published"}, []string{"status"})
	SinkBreakerOpen  = prometheus.NewGaugeVec(prometheus.GaugeOpts{Name: "pingscope_sink_breaker_open", Help: "1 while a sink's circuit breaker is not closed"}, []string{"sink"})
	RunDuration      = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "pingscope_run_duration_seconds",
		Help:    "wall time of one analysis run",
		Buckets: prometheus.ExponentialBuckets(0.001, 4, 8),
	})
)

func init() {
	prometheus.MustRegister(RunsTotal, HostsTotal, IntervalsTotal, RecordsTotal, MalformedRecords, EmitBatches, SinkBreakerOpen, RunDuration)
}

// Handler returns the metrics and health endpoints on one mux.
func Handler(h *health.Handler) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	if h != nil {
		mux.HandleFunc("/health", h.HealthHandler)
		mux.HandleFunc("/ready", h.ReadinessHandler)
		mux.HandleFunc("/live", h.LivenessHandler)
	}
	return mux
}

func ServeWithHealth(addr string, healthHandler *health.Handler, log *zap.SugaredLogger) {
	if err := http.ListenAndServe(addr, Handler(healthHandler)); err != nil {
		log.Warnw("metrics server stopped", "err", err)
	}
}
