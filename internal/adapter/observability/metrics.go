package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"route", "method", "status"},
	)
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		},
		[]string{"route", "method"},
	)

	BoardRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "board_requests_total",
			Help: "Total number of outbound job-board requests by endpoint and outcome",
		},
		[]string{"endpoint", "outcome"},
	)
	BoardRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "board_request_duration_seconds",
			Help:    "Outbound job-board request duration in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"endpoint"},
	)
	BoardRetriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "board_retries_total",
			Help: "Retries performed against the job board by cause",
		},
		[]string{"cause"},
	)

	LLMRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "llm_requests_total",
			Help: "Total number of LLM requests by provider and operation",
		},
		[]string{"provider", "operation"},
	)
	LLMRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "llm_request_duration_seconds",
			Help:    "LLM request duration in seconds",
			Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60, 120, 300},
		},
		[]string{"provider", "operation"},
	)

	PipelineRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_runs_total",
			Help: "Completed pipeline runs by terminal status",
		},
		[]string{"status"},
	)
	PipelineRunning = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "pipeline_running",
			Help: "Number of pipeline runs currently executing",
		},
	)
	ApplicationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "applications_total",
			Help: "Per-vacancy outcomes across all runs",
		},
		[]string{"status"},
	)
)

// InitMetrics registers all Prometheus collectors once per process.
func InitMetrics() {
	prometheus.MustRegister(HTTPRequestsTotal)
	prometheus.MustRegister(HTTPRequestDuration)
	prometheus.MustRegister(BoardRequestsTotal)
	prometheus.MustRegister(BoardRequestDuration)
	prometheus.MustRegister(BoardRetriesTotal)
	prometheus.MustRegister(LLMRequestsTotal)
	prometheus.MustRegister(LLMRequestDuration)
	prometheus.MustRegister(PipelineRunsTotal)
	prometheus.MustRegister(PipelineRunning)
	prometheus.MustRegister(ApplicationsTotal)
}

// HTTPMetricsMiddleware records Prometheus metrics for each request.
func HTTPMetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		dur := time.Since(start).Seconds()
		var route string
		if rc := chi.RouteContext(r.Context()); rc != nil {
			route = rc.RoutePattern()
		}
		if route == "" {
			route = r.URL.Path
		}
		HTTPRequestsTotal.WithLabelValues(route, r.Method, strconv.Itoa(ww.Status())).Inc()
		HTTPRequestDuration.WithLabelValues(route, r.Method).Observe(dur)
	})
}
