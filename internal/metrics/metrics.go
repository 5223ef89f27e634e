// Package metrics provides Prometheus metrics for the camera, its
// acquisition stream and the HTTP API.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "camnode"

var (
	apiRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "api",
		Name:      "requests_total",
		Help:      "HTTP requests by method, route and status",
	}, []string{"method", "route", "status"})

	apiRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "api",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route"})

	acquisitionStarts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "camera",
		Name:      "acquisition_starts_total",
		Help:      "Number of times acquisition was started",
	}, []string{"device"})

	evaluations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "evaluator",
		Name:      "evaluations_total",
		Help:      "Expressions evaluated through the API, by result",
	}, []string{"result"})
)

// ObserveRequest records one HTTP request.
func ObserveRequest(method, route string, status int, d time.Duration) {
	apiRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	apiRequestDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

// IncAcquisitionStarts counts a started acquisition.
func IncAcquisitionStarts(deviceID string) {
	acquisitionStarts.WithLabelValues(deviceID).Inc()
}

// ObserveEvaluation counts an expression evaluation.
func ObserveEvaluation(err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	evaluations.WithLabelValues(result).Inc()
}

// Handler returns the Prometheus metrics HTTP handler for the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
