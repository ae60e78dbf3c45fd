package fetchly

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// promCollector counts calls for Prometheus scraping. A nil collector
// records nothing.
type promCollector struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// newPromCollector registers the fetchly collectors on reg. Clients sharing
// a registerer share the collectors. It returns nil when reg is nil.
func newPromCollector(reg prometheus.Registerer) *promCollector {
	if reg == nil {
		return nil
	}

	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "fetchly_requests_total",
		Help: "Number of fetchly client calls by method, status code and error type.",
	}, []string{"method", "code", "error_type"})

	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "fetchly_request_duration_seconds",
		Help:    "Duration of fetchly client calls in seconds.",
		Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
	}, []string{"method", "error_type"})

	return &promCollector{
		requests: register(reg, requests),
		duration: register(reg, duration),
	}
}

// register registers c, returning the already registered collector of the
// same description when there is one.
func register[C prometheus.Collector](reg prometheus.Registerer, c C) C {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing
			}
		}
		debugLogger.Warn().Err(err).Msg("fetchly: prometheus collector not registered")
	}
	return c
}

func (p *promCollector) observe(method Method, code int, errorType *ErrorType, d time.Duration) {
	if p == nil {
		return
	}

	label := "none"
	if errorType != nil {
		label = string(*errorType)
	}
	p.requests.WithLabelValues(string(method), strconv.Itoa(code), label).Inc()
	p.duration.WithLabelValues(string(method), label).Observe(d.Seconds())
}

// PrometheusHandler returns an http.Handler that serves the metrics gathered
// by g in the Prometheus text format.
//
// Example:
//
//	reg := prometheus.NewRegistry()
//	client := fetchly.New(fetchly.WithPrometheusRegisterer(reg))
//	mux.Handle("/metrics", fetchly.PrometheusHandler(reg))
func PrometheusHandler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
