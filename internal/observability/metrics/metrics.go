// Package metrics exposes the Prometheus instrumentation shared by the
// ingestion pipeline and the retrieval handlers.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder owns the metric vectors for one process. Construct it once and
// share it; duplicate registration on the same registry panics.
type Recorder struct {
	registry *prometheus.Registry

	intakeAccepted prometheus.Counter
	intakeRejected prometheus.Counter
	copies         *prometheus.CounterVec
	caseSyncs      *prometheus.CounterVec
	rangeRequests  *prometheus.CounterVec
	httpRequests   *prometheus.CounterVec
	httpDuration   *prometheus.HistogramVec
}

// NewRecorder creates a Recorder backed by its own registry.
func NewRecorder() *Recorder {
	registry := prometheus.NewRegistry()
	r := &Recorder{
		registry: registry,
		intakeAccepted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "hearingvault_intake_accepted_total",
			Help: "Segment descriptors admitted to the intake queue.",
		}),
		intakeRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "hearingvault_intake_rejected_total",
			Help: "Segment descriptors rejected because the intake queue was full.",
		}),
		copies: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hearingvault_blob_copies_total",
			Help: "Blob replication attempts by outcome.",
		}, []string{"outcome"}),
		caseSyncs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hearingvault_case_syncs_total",
			Help: "Case synchronization attempts by outcome.",
		}, []string{"outcome"}),
		rangeRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hearingvault_range_requests_total",
			Help: "Segment retrieval requests by response class.",
		}, []string{"kind"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hearingvault_http_requests_total",
			Help: "HTTP requests by method and status.",
		}, []string{"method", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "hearingvault_http_request_duration_seconds",
			Help:    "HTTP request latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method"}),
	}
	registry.MustRegister(
		r.intakeAccepted,
		r.intakeRejected,
		r.copies,
		r.caseSyncs,
		r.rangeRequests,
		r.httpRequests,
		r.httpDuration,
	)
	return r
}

// Handler returns the /metrics endpoint for this recorder's registry.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

func (r *Recorder) IntakeAccepted() {
	if r != nil {
		r.intakeAccepted.Inc()
	}
}

func (r *Recorder) IntakeRejected() {
	if r != nil {
		r.intakeRejected.Inc()
	}
}

func (r *Recorder) CopyOutcome(outcome string) {
	if r != nil {
		r.copies.WithLabelValues(outcome).Inc()
	}
}

func (r *Recorder) CaseSyncOutcome(outcome string) {
	if r != nil {
		r.caseSyncs.WithLabelValues(outcome).Inc()
	}
}

// RangeRequest records a retrieval request. Kind is one of "full", "partial",
// or "rejected".
func (r *Recorder) RangeRequest(kind string) {
	if r != nil {
		r.rangeRequests.WithLabelValues(kind).Inc()
	}
}

// ResponseRecorder captures the response status written by a handler.
type ResponseRecorder struct {
	http.ResponseWriter
	status int
}

// NewResponseRecorder wraps a ResponseWriter so middleware can observe the
// final status code.
func NewResponseRecorder(w http.ResponseWriter) *ResponseRecorder {
	return &ResponseRecorder{ResponseWriter: w, status: http.StatusOK}
}

func (r *ResponseRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// Status returns the status code sent to the client.
func (r *ResponseRecorder) Status() int {
	return r.status
}

// Middleware instruments request counts and latency for every handler behind it.
func Middleware(recorder *Recorder, next http.Handler) http.Handler {
	if recorder == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		rec := NewResponseRecorder(w)
		start := time.Now()
		next.ServeHTTP(rec, req)
		recorder.httpRequests.WithLabelValues(req.Method, strconv.Itoa(rec.Status())).Inc()
		recorder.httpDuration.WithLabelValues(req.Method).Observe(time.Since(start).Seconds())
	})
}
