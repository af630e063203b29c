package service

import (
	"fmt"
	"net/http"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsSnapshot is a lightweight view of the counters for the summary endpoint.
type MetricsSnapshot struct {
	RequestsTotal            uint64    `json:"requests_total"`
	AverageRequestDurationMs float64   `json:"average_request_duration_ms"`
	TransitionsTotal         uint64    `json:"transitions_total"`
	AlertsEmittedTotal       uint64    `json:"alerts_emitted_total"`
	EvaluationTicksTotal     uint64    `json:"evaluation_ticks_total"`
	SkippedTicksTotal        uint64    `json:"skipped_ticks_total"`
	SupportRequestsTotal     uint64    `json:"support_requests_total"`
	PresenceUpdatesTotal     uint64    `json:"presence_updates_total"`
	Goroutines               int       `json:"goroutines"`
	GeneratedAt              time.Time `json:"generated_at"`
}

// MetricsService encapsulates Prometheus instrumentation and provides lightweight snapshots for API consumption.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	transitions     *prometheus.CounterVec
	alertsEmitted   *prometheus.CounterVec
	evaluations     *prometheus.CounterVec
	evalDuration    prometheus.Observer
	supportRequests *prometheus.CounterVec
	presenceUpdates *prometheus.CounterVec
	dispatches      *prometheus.CounterVec

	requestCount         uint64
	requestDurationTotal uint64
	transitionCount      uint64
	alertCount           uint64
	tickCount            uint64
	skippedTickCount     uint64
	supportCount         uint64
	presenceCount        uint64
}

// NewMetricsService registers core Prometheus collectors.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "delivery_transitions_total",
		Help: "Delivery lifecycle actions by outcome",
	}, []string{"action", "outcome"})

	alertsEmitted := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "alerts_emitted_total",
		Help: "Alerts promoted to a user for the first time",
	}, []string{"kind"})

	evaluations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "alert_evaluations_total",
		Help: "Notification evaluation ticks by outcome",
	}, []string{"outcome"})

	evalDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "alert_evaluation_duration_seconds",
		Help:    "Duration of a full notification tick",
		Buckets: prometheus.DefBuckets,
	})

	supportRequests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "support_requests_total",
		Help: "Support shortcut requests by outcome",
	}, []string{"outcome"})

	presenceUpdates := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "presence_updates_total",
		Help: "Location upserts by outcome",
	}, []string{"outcome"})

	dispatches := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "alert_dispatch_total",
		Help: "Interruptive alert deliveries by sink and outcome",
	}, []string{"sink", "outcome"})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, transitions, alertsEmitted, evaluations, evalDuration,
		supportRequests, presenceUpdates, dispatches, goroutines)

	handler := promhttp.HandlerFor(registry, promhttp.HandlerOpts{})

	return &MetricsService{
		registry:        registry,
		handler:         handler,
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		transitions:     transitions,
		alertsEmitted:   alertsEmitted,
		evaluations:     evaluations,
		evalDuration:    evalDuration,
		supportRequests: supportRequests,
		presenceUpdates: presenceUpdates,
		dispatches:      dispatches,
	}
}

// Handler exposes the Prometheus HTTP handler.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// ObserveHTTPRequest records request metrics and aggregates simple stats for snapshots.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
	atomic.AddUint64(&m.requestCount, 1)
	atomic.AddUint64(&m.requestDurationTotal, uint64(duration.Nanoseconds()))
}

// ObserveTransition counts a lifecycle action.
func (m *MetricsService) ObserveTransition(action, outcome string) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(action, outcome).Inc()
	atomic.AddUint64(&m.transitionCount, 1)
}

// ObserveEvaluation records one notification tick.
func (m *MetricsService) ObserveEvaluation(outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.evaluations.WithLabelValues(outcome).Inc()
	m.evalDuration.Observe(duration.Seconds())
	atomic.AddUint64(&m.tickCount, 1)
	if outcome != "ok" {
		atomic.AddUint64(&m.skippedTickCount, 1)
	}
}

// ObserveAlert counts an alert on its first promotion to a user.
func (m *MetricsService) ObserveAlert(kind string) {
	if m == nil {
		return
	}
	m.alertsEmitted.WithLabelValues(kind).Inc()
	atomic.AddUint64(&m.alertCount, 1)
}

// ObserveDispatch counts a toast delivery attempt.
func (m *MetricsService) ObserveDispatch(sink, outcome string) {
	if m == nil {
		return
	}
	m.dispatches.WithLabelValues(sink, outcome).Inc()
}

// ObserveSupport counts a support shortcut request.
func (m *MetricsService) ObserveSupport(outcome string) {
	if m == nil {
		return
	}
	m.supportRequests.WithLabelValues(outcome).Inc()
	atomic.AddUint64(&m.supportCount, 1)
}

// ObservePresence counts a location upsert.
func (m *MetricsService) ObservePresence(outcome string) {
	if m == nil {
		return
	}
	m.presenceUpdates.WithLabelValues(outcome).Inc()
	atomic.AddUint64(&m.presenceCount, 1)
}

// Snapshot returns aggregated counters.
func (m *MetricsService) Snapshot() MetricsSnapshot {
	if m == nil {
		return MetricsSnapshot{}
	}
	requests := atomic.LoadUint64(&m.requestCount)
	reqDuration := atomic.LoadUint64(&m.requestDurationTotal)

	var avgRequestMs float64
	if requests > 0 {
		avgRequestMs = float64(reqDuration) / float64(requests) / float64(time.Millisecond)
	}

	return MetricsSnapshot{
		RequestsTotal:            requests,
		AverageRequestDurationMs: avgRequestMs,
		TransitionsTotal:         atomic.LoadUint64(&m.transitionCount),
		AlertsEmittedTotal:       atomic.LoadUint64(&m.alertCount),
		EvaluationTicksTotal:     atomic.LoadUint64(&m.tickCount),
		SkippedTicksTotal:        atomic.LoadUint64(&m.skippedTickCount),
		SupportRequestsTotal:     atomic.LoadUint64(&m.supportCount),
		PresenceUpdatesTotal:     atomic.LoadUint64(&m.presenceCount),
		Goroutines:               runtime.NumGoroutine(),
		GeneratedAt:              time.Now().UTC(),
	}
}
