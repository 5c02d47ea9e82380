package httpclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNewMetricsCollectorWithRegistry(t *testing.T) {
	registry := prometheus.NewRegistry()
	collector, err := NewMetricsCollectorWithRegistry("svc", registry)
	if err != nil {
		t.Fatalf("NewMetricsCollectorWithRegistry() returned error: %v", err)
	}

	if collector.requestsFailed == nil {
		t.Error("requestsFailed metric not initialized")
	}

	if collector.requestsTimeout == nil {
		t.Error("requestsTimeout metric not initialized")
	}

	if collector.exceptions == nil {
		t.Error("exceptions metric not initialized")
	}

	if collector.Registerer() != registry {
		t.Error("Registry not set correctly")
	}
}

func TestMetricName(t *testing.T) {
	testCases := []struct {
		app    string
		suffix string
		want   string
	}{
		{"svc", MetricRequestsFailed, "svc_http_requests_failed"},
		{"svc", MetricRequestsTimeout, "svc_http_requests_timeout"},
		{"svc", MetricExceptions, "svc_http_exceptions"},
		{"dwh-loader", MetricExceptions, "dwh_loader_http_exceptions"},
		{"9lives", MetricExceptions, "_lives_http_exceptions"},
		{"a.b:c", MetricRequestsFailed, "a_b:c_http_requests_failed"},
	}

	for _, tc := range testCases {
		if got := MetricName(tc.app, tc.suffix); got != tc.want {
			t.Errorf("MetricName(%q, %q) = %q, want %q", tc.app, tc.suffix, got, tc.want)
		}
	}
}

func TestMetricNamesExported(t *testing.T) {
	registry := prometheus.NewRegistry()
	collector, err := NewMetricsCollectorWithRegistry("svc", registry)
	if err != nil {
		t.Fatalf("NewMetricsCollectorWithRegistry() returned error: %v", err)
	}

	collector.RecordFailed(http.MethodGet, "example.com/")
	collector.RecordTimeout(http.MethodGet, "example.com/")
	collector.RecordException(http.MethodGet, "example.com/")

	n, err := testutil.GatherAndCount(registry,
		"svc_http_requests_failed",
		"svc_http_requests_timeout",
		"svc_http_exceptions",
	)
	if err != nil {
		t.Fatalf("GatherAndCount() returned error: %v", err)
	}
	if n != 3 {
		t.Errorf("Expected 3 series, got %d", n)
	}
}

func TestRecordOutcome(t *testing.T) {
	collector, err := NewMetricsCollectorWithRegistry("outcome", prometheus.NewRegistry())
	if err != nil {
		t.Fatalf("NewMetricsCollectorWithRegistry() returned error: %v", err)
	}

	for _, outcome := range []Outcome{OutcomeSuccess, OutcomeCanceled, OutcomeFailed, OutcomeTimeout, OutcomeTimeout, OutcomeException} {
		collector.Record(outcome, http.MethodGet, "example.com/")
	}

	if got := testutil.ToFloat64(collector.requestsFailed); got != 1 {
		t.Errorf("Expected failed=1, got %v", got)
	}
	if got := testutil.ToFloat64(collector.requestsTimeout); got != 2 {
		t.Errorf("Expected timeout=2, got %v", got)
	}
	if got := testutil.ToFloat64(collector.exceptions); got != 1 {
		t.Errorf("Expected exceptions=1, got %v", got)
	}
}

func TestMetricsCollectorWithNil(t *testing.T) {
	var collector *MetricsCollector

	// These should not panic
	collector.RecordFailed("GET", "test")
	collector.RecordTimeout("GET", "test")
	collector.RecordException("GET", "test")
	collector.Record(OutcomeFailed, "GET", "test")
}

func TestCountersSurviveClientRestart(t *testing.T) {
	registry := prometheus.NewRegistry()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	for i := 0; i < 2; i++ {
		client, err := New("restart", WithRegisterer(registry))
		if err != nil {
			t.Fatalf("New() #%d returned error: %v", i, err)
		}
		if resp, _ := client.Get(context.Background(), server.URL); resp != nil {
			t.Fatal("Expected absent result")
		}
		client.Close()
	}

	n, err := testutil.GatherAndCount(registry, "restart_http_requests_failed")
	if err != nil {
		t.Fatalf("GatherAndCount() returned error: %v", err)
	}
	if n != 1 {
		t.Fatalf("Expected one series, got %d", n)
	}

	collector, err := NewMetricsCollectorWithRegistry("restart", registry)
	if err != nil {
		t.Fatalf("NewMetricsCollectorWithRegistry() returned error: %v", err)
	}
	if got := testutil.ToFloat64(collector.requestsFailed); got != 2 {
		t.Errorf("Expected failed=2 across restarts, got %v", got)
	}
}

func TestRegistrationConflict(t *testing.T) {
	registry := prometheus.NewRegistry()
	registry.MustRegister(prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "clash_http_exceptions",
		Help: "Gauge squatting on the exceptions counter name",
	}))

	if _, err := New("clash", WithRegisterer(registry)); err == nil {
		t.Fatal("Expected registration error")
	}
}

// Example from the behaviour contract: limit 10, timeout 2s, app "svc".
func TestNeverRespondingURLTimesOut(t *testing.T) {
	if testing.Short() {
		t.Skip("waits for the full two second timeout")
	}

	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-release:
		}
	}))
	defer server.Close()
	defer close(release)

	registry := prometheus.NewRegistry()
	client, err := New("svc",
		WithRegisterer(registry),
		WithConfig(ClientConfig{ConnectionLimit: 10, RequestTimeout: 2 * time.Second}),
	)
	if err != nil {
		t.Fatalf("New() returned error: %v", err)
	}
	defer client.Close()

	start := time.Now()
	resp, err := client.Get(context.Background(), server.URL)
	elapsed := time.Since(start)

	if resp != nil || err != nil {
		t.Fatalf("Expected absent result, got resp=%v err=%v", resp, err)
	}
	if elapsed < 2*time.Second || elapsed > 3*time.Second {
		t.Errorf("Expected ~2s, got %v", elapsed)
	}

	n, err := testutil.GatherAndCount(registry, "svc_http_requests_timeout")
	if err != nil || n != 1 {
		t.Fatalf("Expected svc_http_requests_timeout to be exported, n=%d err=%v", n, err)
	}
	if got := testutil.ToFloat64(client.Metrics().requestsTimeout); got != 1 {
		t.Errorf("Expected svc_http_requests_timeout=1, got %v", got)
	}
}
