package httpclient

import (
	"errors"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
)

// Metric name suffixes appended to the sanitized application name.
const (
	MetricRequestsFailed  = "http_requests_failed"
	MetricRequestsTimeout = "http_requests_timeout"
	MetricExceptions      = "http_exceptions"
)

// MetricsCollector holds the three request outcome counters of one
// application. It is safe for concurrent use.
type MetricsCollector struct {
	requestsFailed  *prometheus.CounterVec
	requestsTimeout *prometheus.CounterVec
	exceptions      *prometheus.CounterVec

	registerer prometheus.Registerer
}

// NewMetricsCollector creates a metrics collector on the default registerer.
func NewMetricsCollector(appName string) (*MetricsCollector, error) {
	return NewMetricsCollectorWithRegistry(appName, prometheus.DefaultRegisterer)
}

// NewMetricsCollectorWithRegistry creates a collector using supplied registerer.
// Counters already registered under the same names are reused, so a client
// rebuilt for the same application keeps counting where the previous one
// stopped.
func NewMetricsCollectorWithRegistry(appName string, registerer prometheus.Registerer) (*MetricsCollector, error) {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	labels := []string{"method", "endpoint"}
	mc := &MetricsCollector{registerer: registerer}

	var err error
	mc.requestsFailed, err = registerCounterVec(registerer, prometheus.CounterOpts{
		Name: MetricName(appName, MetricRequestsFailed),
		Help: "Count requests failed",
	}, labels)
	if err != nil {
		return nil, err
	}
	mc.requestsTimeout, err = registerCounterVec(registerer, prometheus.CounterOpts{
		Name: MetricName(appName, MetricRequestsTimeout),
		Help: "Count requests timed out",
	}, labels)
	if err != nil {
		return nil, err
	}
	mc.exceptions, err = registerCounterVec(registerer, prometheus.CounterOpts{
		Name: MetricName(appName, MetricExceptions),
		Help: "Count of exceptions",
	}, labels)
	if err != nil {
		return nil, err
	}

	return mc, nil
}

func registerCounterVec(registerer prometheus.Registerer, opts prometheus.CounterOpts, labels []string) (*prometheus.CounterVec, error) {
	vec := prometheus.NewCounterVec(opts, labels)
	if err := registerer.Register(vec); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
		}
		return nil, err
	}
	return vec, nil
}

// MetricName builds "{app}_{suffix}" with app reduced to a valid Prometheus
// identifier.
func MetricName(appName, suffix string) string {
	return sanitizeMetricPrefix(appName) + "_" + suffix
}

func sanitizeMetricPrefix(appName string) string {
	var builder strings.Builder
	builder.Grow(len(appName))
	for i, r := range appName {
		switch {
		case r == '_' || r == ':':
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9' && i > 0:
		default:
			r = '_'
		}
		builder.WriteRune(r)
	}
	return builder.String()
}

// RecordFailed increments the non-2xx counter.
func (mc *MetricsCollector) RecordFailed(method, endpoint string) {
	if mc == nil {
		return
	}

	mc.requestsFailed.WithLabelValues(method, endpoint).Inc()
}

// RecordTimeout increments the timeout counter.
func (mc *MetricsCollector) RecordTimeout(method, endpoint string) {
	if mc == nil {
		return
	}

	mc.requestsTimeout.WithLabelValues(method, endpoint).Inc()
}

// RecordException increments the exception counter.
func (mc *MetricsCollector) RecordException(method, endpoint string) {
	if mc == nil {
		return
	}

	mc.exceptions.WithLabelValues(method, endpoint).Inc()
}

// Record increments the counter matching outcome. Success and caller
// cancellation are not counted.
func (mc *MetricsCollector) Record(outcome Outcome, method, endpoint string) {
	switch outcome {
	case OutcomeFailed:
		mc.RecordFailed(method, endpoint)
	case OutcomeTimeout:
		mc.RecordTimeout(method, endpoint)
	case OutcomeException:
		mc.RecordException(method, endpoint)
	}
}

// Registerer exposes the registerer the counters live on.
func (mc *MetricsCollector) Registerer() prometheus.Registerer {
	return mc.registerer
}
