package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	requestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "vaultadmin_requests_total",
		Help: "Total number of HTTP requests.",
	}, []string{"method", "path", "status"})

	requestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "vaultadmin_request_duration_seconds",
		Help:    "HTTP request duration in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path"})

	coreSchemaValid = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "vaultadmin_core_schema_valid",
		Help: "Whether all core tables are present: 0=missing tables, 1=valid.",
	})

	secretRecordsTotal = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "vaultadmin_secret_records_total",
		Help: "Number of stored encrypted private keys.",
	})

	credentialsTotal = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "vaultadmin_credentials_total",
		Help: "Number of stored credentials.",
	})
)

func init() {
	prometheus.MustRegister(requestsTotal, requestDuration, coreSchemaValid, secretRecordsTotal, credentialsTotal)
}

// MetricsHandler returns the Prometheus metrics HTTP handler.
func MetricsHandler() http.Handler {
	return promhttp.Handler()
}

// metricsMiddleware records request metrics.
func metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rr := &responseRecorder{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(rr, r)

		dur := time.Since(start).Seconds()
		status := strconv.Itoa(rr.statusCode)
		requestsTotal.WithLabelValues(r.Method, r.URL.Path, status).Inc()
		requestDuration.WithLabelValues(r.Method, r.URL.Path).Observe(dur)
	})
}

type responseRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (r *responseRecorder) WriteHeader(code int) {
	r.statusCode = code
	r.ResponseWriter.WriteHeader(code)
}
