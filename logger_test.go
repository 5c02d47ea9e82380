package httpclient

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func newObservedClient(t *testing.T, options ...Option) (*Client, *observer.ObservedLogs) {
	t.Helper()

	core, logs := observer.New(zapcore.DebugLevel)
	client, err := New(testAppName, append([]Option{
		WithRegisterer(prometheus.NewRegistry()),
		WithLogger(zap.New(core)),
		WithMaxLoggedBody(8),
	}, options...)...)
	if err != nil {
		t.Fatalf("New() returned error: %v", err)
	}
	t.Cleanup(client.Close)
	return client, logs
}

func TestLoggerIsNamed(t *testing.T) {
	server := jsonServer(t, http.StatusOK, testResponseBody)
	client, logs := newObservedClient(t)

	if resp, _ := client.Get(context.Background(), server.URL); resp == nil {
		t.Fatal("Expected a response")
	}

	entries := logs.FilterMessage("Request succeeded").All()
	if len(entries) != 1 {
		t.Fatalf("Expected one success entry, got %d", len(entries))
	}
	if entries[0].LoggerName != DefaultLogName {
		t.Errorf("Expected logger name %q, got %q", DefaultLogName, entries[0].LoggerName)
	}
	if entries[0].Level != zapcore.DebugLevel {
		t.Errorf("Expected debug level, got %v", entries[0].Level)
	}
	if got := entries[0].ContextMap()["outcome"]; got != "success" {
		t.Errorf("Expected outcome success, got %v", got)
	}
}

func TestCustomLogName(t *testing.T) {
	server := jsonServer(t, http.StatusOK, testResponseBody)
	client, logs := newObservedClient(t, WithLogName("dwh_http_client"))

	_, _ = client.Get(context.Background(), server.URL)

	if logs.All()[0].LoggerName != "dwh_http_client" {
		t.Errorf("Expected logger name dwh_http_client, got %q", logs.All()[0].LoggerName)
	}
}

func TestFailedRequestLogged(t *testing.T) {
	server := jsonServer(t, http.StatusBadRequest, `{"error":"bad request body"}`)
	client, logs := newObservedClient(t)

	_, _ = client.Get(context.Background(), server.URL)

	entries := logs.FilterMessage("Request failed").All()
	if len(entries) != 1 {
		t.Fatalf("Expected one failure entry, got %d", len(entries))
	}
	entry := entries[0]
	if entry.Level != zapcore.WarnLevel {
		t.Errorf("Expected warn level, got %v", entry.Level)
	}

	fields := entry.ContextMap()
	if fields["status"] != int64(http.StatusBadRequest) {
		t.Errorf("Expected status field 400, got %v", fields["status"])
	}
	if fields["text"] != `{"error"...` {
		t.Errorf("Expected truncated text, got %v", fields["text"])
	}
	if fields["url"] != server.URL {
		t.Errorf("Expected url field %s, got %v", server.URL, fields["url"])
	}
	if fields["request_id"] == "" {
		t.Error("Expected request_id field")
	}
	if fields["outcome"] != "failed" {
		t.Errorf("Expected outcome failed, got %v", fields["outcome"])
	}
}

func TestExceptionLogged(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	client, logs := newObservedClient(t)
	_, _ = client.Get(context.Background(), url)

	entries := logs.FilterMessage("Request exception").All()
	if len(entries) != 1 {
		t.Fatalf("Expected one exception entry, got %d", len(entries))
	}
	if entries[0].Level != zapcore.ErrorLevel {
		t.Errorf("Expected error level, got %v", entries[0].Level)
	}
	if _, ok := entries[0].ContextMap()["error"]; !ok {
		t.Error("Expected error field")
	}
	if got := entries[0].ContextMap()["outcome"]; got != "exception" {
		t.Errorf("Expected outcome exception, got %v", got)
	}
}

func TestTimeoutLogged(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer server.Close()

	client, logs := newObservedClient(t, WithRequestTimeout(50*time.Millisecond))
	_, _ = client.Get(context.Background(), server.URL)

	entries := logs.FilterMessage("Request timed out").All()
	if len(entries) != 1 {
		t.Fatalf("Expected one timeout entry, got %d", len(entries))
	}
	if got := entries[0].ContextMap()["outcome"]; got != "timeout" {
		t.Errorf("Expected outcome timeout, got %v", got)
	}
}

func TestCanceledLoggedWithOutcome(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer server.Close()

	client, logs := newObservedClient(t)
	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(50*time.Millisecond, cancel)

	_, err := client.Get(ctx, server.URL)

	var clientErr *ClientError
	if !errors.As(err, &clientErr) {
		t.Fatalf("Expected *ClientError, got %v", err)
	}
	if clientErr.Outcome != OutcomeCanceled {
		t.Errorf("Expected outcome canceled on error, got %v", clientErr.Outcome)
	}

	entries := logs.FilterMessage("Request canceled").All()
	if len(entries) != 1 {
		t.Fatalf("Expected one canceled entry, got %d", len(entries))
	}
	if got := entries[0].ContextMap()["outcome"]; got != "canceled" {
		t.Errorf("Expected outcome canceled, got %v", got)
	}
}

func TestPropagatedExceptionCarriesOutcome(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	client, _ := newObservedClient(t, WithErrorMode(ErrorModePropagate))
	_, err := client.Get(context.Background(), url)

	var clientErr *ClientError
	if !errors.As(err, &clientErr) {
		t.Fatalf("Expected *ClientError, got %v", err)
	}
	if clientErr.Outcome != OutcomeException {
		t.Errorf("Expected outcome exception on error, got %v", clientErr.Outcome)
	}
}

func TestRequestIDGeneratorUsed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get(RequestIDHeader); got != "fixed-id" {
			t.Errorf("Expected fixed-id header, got %s", got)
		}
	}))
	defer server.Close()

	client, logs := newObservedClient(t, WithRequestIDGenerator(func() string { return "fixed-id" }))
	_, _ = client.Get(context.Background(), server.URL)

	if got := logs.All()[0].ContextMap()["request_id"]; got != "fixed-id" {
		t.Errorf("Expected request_id fixed-id in log, got %v", got)
	}
}
