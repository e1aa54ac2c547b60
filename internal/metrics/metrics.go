package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "shadematch",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"method", "path", "status"},
	)

	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "shadematch",
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// ClassificationsTotal counts skin tone classifications by source and tone.
	ClassificationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "shadematch",
			Name:      "classifications_total",
			Help:      "Total number of skin tone classifications",
		},
		[]string{"source", "tone"},
	)

	// ClassificationDuration observes classifier latency by source.
	ClassificationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "shadematch",
			Name:      "classification_duration_seconds",
			Help:      "Skin tone classification duration in seconds",
			Buckets:   []float64{0.001, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"source"},
	)

	// ClassifierRequestsTotal counts calls to a classifier backend by outcome.
	ClassifierRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "shadematch",
			Name:      "classifier_requests_total",
			Help:      "Total number of classifier backend requests",
		},
		[]string{"classifier", "status"},
	)

	// ClassifierCircuitState is the classifier circuit breaker state (0=closed, 1=half-open, 2=open).
	ClassifierCircuitState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "shadematch",
			Name:      "classifier_circuit_state",
			Help:      "Classifier circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)
)

func init() {
	prometheus.MustRegister(httpRequestDuration)
	prometheus.MustRegister(httpRequestsTotal)
	prometheus.MustRegister(ClassificationsTotal)
	prometheus.MustRegister(ClassificationDuration)
	prometheus.MustRegister(ClassifierRequestsTotal)
	prometheus.MustRegister(ClassifierCircuitState)
}

// ObserveClassification records one classification outcome.
func ObserveClassification(source, tone string, duration time.Duration) {
	ClassificationsTotal.WithLabelValues(source, tone).Inc()
	ClassificationDuration.WithLabelValues(source).Observe(duration.Seconds())
}

// Middleware records HTTP request duration and count.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		status := strconv.Itoa(c.Writer.Status())
		path := normalizePath(c.FullPath())

		httpRequestDuration.WithLabelValues(c.Request.Method, path, status).Observe(time.Since(start).Seconds())
		httpRequestsTotal.WithLabelValues(c.Request.Method, path, status).Inc()
	}
}

// normalizePath uses the route pattern so unmatched paths share one label.
func normalizePath(path string) string {
	if path == "" {
		return "unknown"
	}
	return path
}
