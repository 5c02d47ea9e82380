package httpclient

import (
	"errors"
	"fmt"
	"time"
)

// Error types carried by ClientError.Type.
const (
	ErrorTypeValidation = "Validation"
	ErrorTypeException  = "Exception"
	ErrorTypeEncode     = "Encode"
	ErrorTypeDecode     = "Decode"
	ErrorTypeCanceled   = "Canceled"
)

// Sentinel errors for common failure scenarios
var (
	// ErrInvalidConfig is wrapped by the error New returns for a bad configuration
	ErrInvalidConfig = errors.New("httpclient: invalid configuration")

	// ErrClientClosed is the cause recorded for requests issued after Close
	ErrClientClosed = errors.New("httpclient: client closed")
)

// ClientError describes a request that could not produce a result, or a
// configuration that could not produce a client. Outcome is only
// meaningful for request errors.
type ClientError struct {
	Type       string
	Outcome    Outcome
	Message    string
	Cause      error
	RequestID  string
	Method     string
	URL        string
	Endpoint   string
	StatusCode int
	Timestamp  time.Time
	Duration   time.Duration
}

// Error implements error interface.
func (e *ClientError) Error() string {
	if e == nil {
		return "<nil>"
	}

	msg := fmt.Sprintf("%s: %s", e.Type, e.Message)
	if e.Cause != nil {
		msg = fmt.Sprintf("%s (%v)", msg, e.Cause)
	}
	if e.RequestID != "" {
		msg = fmt.Sprintf("[%s] %s", e.RequestID, msg)
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *ClientError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// Is compares error types for errors.Is.
func (e *ClientError) Is(target error) bool {
	if e == nil {
		return false
	}
	if targetErr, ok := target.(*ClientError); ok {
		return e.Type == targetErr.Type
	}
	return false
}

// IsException reports whether err is a propagated transport or codec failure.
func IsException(err error) bool {
	var clientErr *ClientError
	if !errors.As(err, &clientErr) {
		return false
	}
	switch clientErr.Type {
	case ErrorTypeException, ErrorTypeEncode, ErrorTypeDecode:
		return true
	default:
		return false
	}
}

func (c *Client) createClientError(errorType string, outcome Outcome, message string, cause error, call *call) *ClientError {
	return &ClientError{
		Type:       errorType,
		Outcome:    outcome,
		Message:    message,
		Cause:      cause,
		RequestID:  call.requestID,
		Method:     call.method,
		URL:        call.url,
		Endpoint:   call.endpoint,
		StatusCode: call.statusCode,
		Timestamp:  time.Now(),
		Duration:   time.Since(call.start),
	}
}
