// Package metrics provides Prometheus-based metrics recording for the
// HTTP surface, dispatch pipeline, and planner model calls.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder holds the service's Prometheus metric vectors.
type Recorder struct {
	httpRequestsTotal   *prometheus.CounterVec
	httpDuration        *prometheus.HistogramVec
	dispatchTotal       *prometheus.CounterVec
	dispatchDuration    *prometheus.HistogramVec
	plannerCallsTotal   *prometheus.CounterVec
	plannerCallDuration *prometheus.HistogramVec
	sseSubscribers      prometheus.Gauge
}

// NewRecorder registers the metric vectors on the default registry.
func NewRecorder() *Recorder {
	return &Recorder{
		httpRequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total HTTP requests by route, method, and status code",
			},
			[]string{"route", "method", "status"},
		),
		httpDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"route", "method"},
		),
		dispatchTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agent_dispatch_total",
				Help: "Agent dispatches by agent and outcome status",
			},
			[]string{"agent", "status"},
		),
		dispatchDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "agent_dispatch_duration_seconds",
				Help:    "End-to-end dispatch pipeline duration in seconds",
				Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
			},
			[]string{"agent"},
		),
		plannerCallsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "planner_calls_total",
				Help: "Planner model calls by operation and status",
			},
			[]string{"operation", "status"},
		),
		plannerCallDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "planner_call_duration_seconds",
				Help:    "Planner model call duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		sseSubscribers: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "progress_sse_subscribers",
				Help: "Currently connected progress stream subscribers",
			},
		),
	}
}

// RecordDispatch records one completed dispatch.
func (r *Recorder) RecordDispatch(agent, status string, duration time.Duration) {
	r.dispatchTotal.WithLabelValues(agent, status).Inc()
	r.dispatchDuration.WithLabelValues(agent).Observe(duration.Seconds())
}

// RecordPlannerCall records one model call.
func (r *Recorder) RecordPlannerCall(operation, status string, duration time.Duration) {
	r.plannerCallsTotal.WithLabelValues(operation, status).Inc()
	r.plannerCallDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// SSEConnected tracks a progress subscriber attach/detach pair.
func (r *Recorder) SSEConnected() func() {
	r.sseSubscribers.Inc()
	return r.sseSubscribers.Dec
}

// statusRecorder captures the response code written by a handler.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (w *statusRecorder) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// Flush forwards to the underlying writer so SSE streaming keeps working
// through the middleware.
func (w *statusRecorder) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Middleware instruments an HTTP handler under the given route label.
func (r *Recorder) Middleware(route string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, req)
		r.httpRequestsTotal.WithLabelValues(route, req.Method, strconv.Itoa(rec.status)).Inc()
		r.httpDuration.WithLabelValues(route, req.Method).Observe(time.Since(start).Seconds())
	})
}
