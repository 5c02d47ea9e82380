package httpclient

import (
	"context"
	"net/http"
	"net/url"
	"time"
)

// ClientConfig holds the two knobs every client needs.
type ClientConfig struct {
	ConnectionLimit int
	RequestTimeout  time.Duration
}

// ErrorMode selects what a caller sees when a request fails with a
// transport or codec exception. The exception is counted either way.
type ErrorMode int

const (
	// ErrorModeSwallow returns an absent result (nil, nil).
	ErrorModeSwallow ErrorMode = iota
	// ErrorModePropagate returns a *ClientError of type Exception, Encode or Decode.
	ErrorModePropagate
)

func (m ErrorMode) String() string {
	switch m {
	case ErrorModeSwallow:
		return "swallow"
	case ErrorModePropagate:
		return "propagate"
	default:
		return "unknown"
	}
}

// Outcome classifies a finished request.
type Outcome int

const (
	OutcomeSuccess Outcome = iota
	OutcomeFailed
	OutcomeTimeout
	OutcomeException
	OutcomeCanceled
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeFailed:
		return "failed"
	case OutcomeTimeout:
		return "timeout"
	case OutcomeException:
		return "exception"
	case OutcomeCanceled:
		return "canceled"
	default:
		return "unknown"
	}
}

// Middleware represents a middleware function
type Middleware func(req *http.Request, next RoundTripper) (*http.Response, error)

// RoundTripper represents the HTTP transport interface
type RoundTripper interface {
	RoundTrip(*http.Request) (*http.Response, error)
}

// RoundTripperFunc is a helper type for middleware
type RoundTripperFunc func(*http.Request) (*http.Response, error)

func (f RoundTripperFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

// Service is something that can be started and stopped.
type Service interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// Option represents a configuration option
type Option func(*Client)

// RequestOption adjusts a single request.
type RequestOption func(*requestOptions)

type requestOptions struct {
	timeout   time.Duration
	headers   http.Header
	extra     http.Header
	params    url.Values
	payload   any
	hasBody   bool
	decodeTo  any
	userAgent string
}

// call carries per-request state through the pipeline.
type call struct {
	requestID  string
	method     string
	url        string
	endpoint   string
	statusCode int
	start      time.Time
}
